// Package batch converts every HEIC file in a directory.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/harliandi/heicconv/internal/converter"
	"github.com/harliandi/heicconv/pkg/metrics"
)

// DefaultTimeout bounds a single file conversion.
const DefaultTimeout = 2 * time.Minute

// FileConverter converts one file on disk.
type FileConverter interface {
	ConvertFile(ctx context.Context, path string, opts converter.Options) (*converter.Result, error)
}

// Reporter receives progress events. Calls are serialized.
type Reporter interface {
	Found(n int)
	Start(src Source)
	Done(src Source, output string)
	Failed(src Source, err error)
	NoFiles(dir string)
}

// Config controls a directory run.
type Config struct {
	Options   converter.Options
	Recursive bool
	// OutputDir, when set, receives the outputs mirroring the source tree.
	OutputDir string
	// Workers bounds concurrent conversions. 1 processes files in order.
	Workers int
	Timeout time.Duration
}

// Failure records a file that could not be converted.
type Failure struct {
	Source Source
	Err    error
}

// Summary is the outcome of a directory run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    []Failure
}

// Runner drives conversions over files and directories.
type Runner struct {
	conv     FileConverter
	reporter Reporter
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewRunner returns a Runner. A nil reporter discards progress events.
func NewRunner(conv FileConverter, reporter Reporter, logger zerolog.Logger) *Runner {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Runner{conv: conv, reporter: reporter, logger: logger}
}

// Run converts every HEIC file under root. Individual failures are counted
// in the summary and never stop the run; the returned error is reserved for
// an unusable root.
func (r *Runner) Run(ctx context.Context, root string, cfg Config) (Summary, error) {
	cfg = cfg.withDefaults()

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return Summary{}, &converter.InputError{Reason: fmt.Sprintf("invalid directory: %s", root)}
	}

	sources, err := Scan(root, cfg.Recursive, func(path string, err error) {
		r.logger.Warn().Err(err).Str("dir", path).Msg("skipping unreadable directory")
	})
	if err != nil {
		return Summary{}, errors.Errorf("scan %s: %w", root, err)
	}
	if len(sources) == 0 {
		r.report(func() { r.reporter.NoFiles(root) })
		return Summary{}, nil
	}

	r.logger.Debug().
		Str("root", root).
		Int("files", len(sources)).
		Int("workers", cfg.Workers).
		Bool("recursive", cfg.Recursive).
		Msg("starting directory conversion")
	r.report(func() { r.reporter.Found(len(sources)) })

	summary := Summary{Total: len(sources)}
	var g errgroup.Group
	g.SetLimit(cfg.Workers)

	for _, src := range sources {
		g.Go(func() error {
			out := OutputPath(src, cfg.OutputDir, cfg.Options.Normalize().Format.Extension())
			r.report(func() { r.reporter.Start(src) })

			err := r.convert(ctx, src.Path, out, cfg.Options, cfg.Timeout)

			r.mu.Lock()
			defer r.mu.Unlock()
			if err != nil {
				summary.Failed = append(summary.Failed, Failure{Source: src, Err: err})
				metrics.RecordBatchFile("error")
				r.reporter.Failed(src, err)
				return nil
			}
			summary.Succeeded++
			metrics.RecordBatchFile("success")
			r.reporter.Done(src, out)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failed, func(i, j int) bool {
		return summary.Failed[i].Source.RelPath < summary.Failed[j].Source.RelPath
	})
	return summary, nil
}

// ConvertOne converts the file at in and writes it to out. An empty out
// places the result next to the input with the format's extension. It
// returns the path written.
func (r *Runner) ConvertOne(ctx context.Context, in, out string, opts converter.Options, timeout time.Duration) (string, error) {
	info, err := os.Stat(in)
	if err != nil || info.IsDir() {
		return "", &converter.InputError{Reason: fmt.Sprintf("invalid path: %s", in)}
	}
	if out == "" {
		out = ReplaceExt(in, opts.Normalize().Format.Extension())
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	src := Source{Path: in, RelPath: filepath.Base(in), Size: info.Size()}
	r.report(func() { r.reporter.Start(src) })

	if err := r.convert(ctx, in, out, opts, timeout); err != nil {
		r.report(func() { r.reporter.Failed(src, err) })
		return "", err
	}
	r.report(func() { r.reporter.Done(src, out) })
	return out, nil
}

func (r *Runner) convert(ctx context.Context, in, out string, opts converter.Options, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := r.conv.ConvertFile(ctx, in, opts)
	if err != nil {
		r.logger.Debug().Err(err).Str("file", in).Msg("conversion failed")
		return err
	}

	if err := writeFileAtomic(out, res.Data); err != nil {
		return err
	}
	r.logger.Debug().
		Str("file", in).
		Str("output", out).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("bytes", len(res.Data)).
		Dur("took", time.Since(start)).
		Msg("converted")
	return nil
}

func (r *Runner) report(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// writeFileAtomic writes data to a temp file beside path and renames it into
// place, so a failed write never leaves a truncated image behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Errorf("create output: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Errorf("close output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Errorf("rename output: %w", err)
	}
	return nil
}

// NopReporter discards progress events.
type NopReporter struct{}

func (NopReporter) Found(int) {}
func (NopReporter) Start(Source) {}
func (NopReporter) Done(Source, string) {}
func (NopReporter) Failed(Source, error) {}
func (NopReporter) NoFiles(string) {}
