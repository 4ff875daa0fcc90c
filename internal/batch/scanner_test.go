package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func relPaths(sources []Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, filepath.ToSlash(s.RelPath))
	}
	return out
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.heic", true},
		{"PHOTO.HEIC", true},
		{"Photo.HeIc", true},
		{"._photo.heic", false},
		{"photo.heif", false},
		{"photo.jpg", false},
		{"heic", false},
		{"photo.heic.bak", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCandidate(tt.name))
		})
	}
}

func TestScan_Flat(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.heic"))
	touch(t, filepath.Join(root, "a.HEIC"))
	touch(t, filepath.Join(root, "._a.HEIC"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "c.heic"))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.heic"), 0o755))

	sources, err := Scan(root, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.HEIC", "b.heic"}, relPaths(sources))
	assert.Equal(t, filepath.Join(root, "a.HEIC"), sources[0].Path)
	assert.EqualValues(t, 1, sources[0].Size)
}

func TestScan_Recursive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "top.heic"))
	touch(t, filepath.Join(root, "2024", "jan", "one.heic"))
	touch(t, filepath.Join(root, "2024", "jan", "._one.heic"))
	touch(t, filepath.Join(root, "2024", "feb.heic"))

	sources, err := Scan(root, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/feb.heic", "2024/jan/one.heic", "top.heic"}, relPaths(sources))
}

func TestScan_Symlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.heic")
	touch(t, target)
	if err := os.Symlink(target, filepath.Join(root, "link.heic")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling.heic")))

	sources, err := Scan(root, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"link.heic"}, relPaths(sources))
}

func TestScan_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	touch(t, filepath.Join(target, "a.heic"))
	touch(t, filepath.Join(target, "sub", "b.heic"))

	root := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, root); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	flat, err := Scan(root, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.heic"}, relPaths(flat))

	deep, err := Scan(root, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.heic", "sub/b.heic"}, relPaths(deep))
	// paths stay under the root the caller gave
	assert.Equal(t, filepath.Join(root, "sub", "b.heic"), deep[1].Path)
}

func TestScan_SkipsUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	touch(t, filepath.Join(root, "ok.heic"))
	touch(t, filepath.Join(root, "locked", "hidden.heic"))
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	var skipped []string
	sources, err := Scan(root, true, func(path string, err error) {
		skipped = append(skipped, path)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.heic"}, relPaths(sources))
	assert.Len(t, skipped, 1)
}

func TestScan_Empty(t *testing.T) {
	sources, err := Scan(t.TempDir(), true, nil)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), false, nil)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	src := Source{Path: filepath.Join("in", "2024", "IMG_1.HEIC"), RelPath: filepath.Join("2024", "IMG_1.HEIC")}

	assert.Equal(t, filepath.Join("in", "2024", "IMG_1.jpg"), OutputPath(src, "", "jpg"))
	assert.Equal(t, filepath.Join("out", "2024", "IMG_1.webp"), OutputPath(src, "out", "webp"))
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "photo.jpg", ReplaceExt("photo.heic", "jpg"))
	assert.Equal(t, "a.b.webp", ReplaceExt("a.b.HEIC", "webp"))
	assert.Equal(t, "noext.jpg", ReplaceExt("noext", "jpg"))
}
