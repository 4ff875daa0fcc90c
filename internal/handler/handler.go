package handler

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/harliandi/heicconv/internal/converter"
)

const (
	maxMemory = 32 << 20 // 32MB max in-memory for multipart parsing
	fileField = "file"
)

// Error messages returned to clients.
const (
	msgNoFile       = "no file selected"
	msgUnsupported  = "only HEIC files are supported"
	msgTooLarge     = "file too large"
	msgBadUpload    = "malformed multipart upload"
	msgNotMultipart = "content type must be multipart/form-data"
	msgBusy         = "server busy, please retry"
	msgMethod       = "method not allowed"
	msgUploadFailed = "could not store upload"
)

// Pool runs conversions on behalf of the handler.
type Pool interface {
	Submit(ctx context.Context, data []byte, opts converter.Options) (*converter.Result, error)
}

// Config controls upload limits and temp storage.
type Config struct {
	MaxUploadMB    int
	UploadDir      string
	ConvertTimeout time.Duration
}

// Handler handles HTTP requests for image conversion
type Handler struct {
	pool      Pool
	maxUpload int64
	uploadDir string
	timeout   time.Duration
}

// New creates a new Handler
func New(pool Pool, cfg Config) *Handler {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 100
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = 2 * time.Minute
	}
	return &Handler{
		pool:      pool,
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		uploadDir: cfg.UploadDir,
		timeout:   cfg.ConvertTimeout,
	}
}

// Convert handles the /convert endpoint
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}

	// multipart framing needs a little room beyond the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, msgNotMultipart)
		default:
			logger.Debug().Err(err).Msg("multipart parse failed")
			writeError(w, http.StatusBadRequest, msgBadUpload)
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(fileField)
	if err != nil || header.Filename == "" {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	if !isHEICExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, msgUnsupported)
		return
	}

	// form fields win over the query string
	opts := converter.ParseOptions(r.FormValue("format"), r.FormValue("quality"))
	name := sanitizeFilename(header.Filename)

	path, err := saveUpload(h.uploadDir, name, file)
	if err != nil {
		logger.Error().Err(err).Str("dir", h.uploadDir).Msg("saving upload failed")
		writeError(w, http.StatusInternalServerError, msgUploadFailed)
		return
	}
	defer removeUpload(path, logger)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("reading upload failed")
		writeError(w, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.pool.Submit(ctx, data, opts)
	if err != nil {
		if errors.Is(err, converter.ErrPoolBusy) || errors.Is(err, converter.ErrPoolStopped) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, msgBusy)
			return
		}
		logger.Warn().Err(err).Str("file", name).Str("format", opts.Format.String()).Msg("conversion failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Debug().
		Str("file", name).
		Str("format", opts.Format.String()).
		Int("quality", opts.Quality).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("bytes", len(res.Data)).
		Msg("converted")

	sendAttachment(w, res, stem(name))
}

// Health handles the /health endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendAttachment writes the encoded image as a download named
// <stem>.<extension>.
func sendAttachment(w http.ResponseWriter, res *converter.Result, stem string) {
	filename := stem + "." + res.Extension

	header := w.Header()
	header.Set("Content-Type", res.MIMEType)
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	header.Set("Content-Length", strconv.Itoa(len(res.Data)))
	header.Set("ETag", `"`+strconv.FormatUint(xxhash.Sum64(res.Data), 16)+`"`)
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// isHEICExtension checks the upload name ends in .heic, ignoring case.
func isHEICExtension(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".heic")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
