package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ShadowPrefix marks AppleDouble metadata files that macOS writes next to
// real files on foreign filesystems. They carry the real file's extension
// but no image data.
const ShadowPrefix = "._"

// Source is a HEIC file found under a scan root.
type Source struct {
	// Path is the file's path as reachable from the working directory.
	Path string
	// RelPath is the path relative to the scan root.
	RelPath string
	// Size is the file size in bytes.
	Size int64
}

// IsCandidate reports whether a file name should be converted: a .heic
// extension in any case, and not an AppleDouble shadow.
func IsCandidate(name string) bool {
	if strings.HasPrefix(name, ShadowPrefix) {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".heic")
}

// Scan returns the HEIC files in root sorted by relative path. With
// recursive set it descends into subdirectories. A symlinked root is
// followed. Subdirectories that cannot be read are skipped and reported
// through onSkip, which may be nil.
func Scan(root string, recursive bool, onSkip func(path string, err error)) ([]Source, error) {
	var sources []Source

	// WalkDir does not descend into a symlinked root, so walk the target
	// and map paths back under the caller's root.
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}

	add := func(path string, d fs.DirEntry) error {
		if !IsCandidate(d.Name()) {
			return nil
		}
		info, err := regularFileInfo(path, d)
		if err != nil || info == nil {
			return err
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Path: filepath.Join(root, rel), RelPath: rel, Size: info.Size()})
		return nil
	}

	if recursive {
		err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == walkRoot {
					return err
				}
				if onSkip != nil {
					onSkip(path, err)
				}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			return add(path, d)
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(walkRoot)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := add(filepath.Join(walkRoot, entry.Name()), entry); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].RelPath < sources[j].RelPath
	})
	return sources, nil
}

// regularFileInfo returns file info for regular files, following symlinks.
// It returns nil info, and no error, for anything else.
func regularFileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			// dangling link
			return nil, nil
		}
		if !info.Mode().IsRegular() {
			return nil, nil
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

// OutputPath returns where the converted form of src goes. Without an output
// directory the result sits next to the source; with one, the source's path
// relative to the scan root is mirrored under it.
func OutputPath(src Source, outputDir, ext string) string {
	if outputDir == "" {
		return ReplaceExt(src.Path, ext)
	}
	return filepath.Join(outputDir, ReplaceExt(src.RelPath, ext))
}

// ReplaceExt swaps the final extension of path for ext (given without dot).
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
