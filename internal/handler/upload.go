package handler

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const fallbackName = "upload"

// sanitizeFilename reduces a client-supplied name to a safe basename made of
// ASCII letters, digits, '-', '_' and '.'. Runs of anything else become a
// single underscore. Leading dots are dropped so the result is never hidden
// or relative; a name whose stem is lost entirely becomes upload.<ext>.
func sanitizeFilename(name string) string {
	// clients may send either separator
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(strings.TrimLeft(b.String(), "."), "_")
	if out == "" || strings.Trim(out, ".") == "" {
		return fallbackName
	}
	// the whole stem was replaced, only the extension is left
	if strings.HasPrefix(out, ".") {
		out = fallbackName + out
	}
	return out
}

// stem returns name without its final extension.
func stem(name string) string {
	s := strings.TrimSuffix(name, filepath.Ext(name))
	if s == "" {
		return fallbackName
	}
	return s
}

// saveUpload copies src to a new file in dir named <uuid>-<name> and returns
// its path. A partially written file is removed.
func saveUpload(dir, name string, src io.Reader) (string, error) {
	path := filepath.Join(dir, uuid.NewString()+"-"+name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", errors.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Errorf("close upload: %w", err)
	}
	return path, nil
}

func removeUpload(path string, logger *zerolog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("removing upload failed")
	}
}
