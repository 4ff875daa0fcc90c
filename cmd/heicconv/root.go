package main

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/harliandi/heicconv/internal/batch"
	"github.com/harliandi/heicconv/internal/converter"
	"github.com/harliandi/heicconv/internal/logging"
)

var (
	errUsage   = errors.New("missing input path")
	errInvalid = errors.New("invalid path")
	errFailed  = errors.New("conversion failed")
)

type rootOpts struct {
	quality   string
	format    string
	recursive bool
	workers   int
	timeout   time.Duration
	verbose   bool
}

// newRootCmd builds the command. conv does the decoding; progress goes to
// stdout and debug logs to stderr.
func newRootCmd(conv batch.FileConverter, stdout, stderr io.Writer) *cobra.Command {
	o := &rootOpts{}

	cmd := &cobra.Command{
		Use:   "heicconv <file-or-dir> [output]",
		Short: "Convert HEIC images to JPEG or WebP",
		Long: `heicconv converts HEIC photos to JPEG (default) or WebP.

Given a file it writes the converted image next to it, or to [output].
Given a directory it converts every .heic file in it, writing results
next to the sources or mirrored under [output].`,
		Example: `  heicconv photo.heic
  heicconv photo.heic out.jpg
  heicconv ./photos
  heicconv ./photos ./converted --recursive
  heicconv ./photos --quality=90 --format=webp`,
		Args:          cobra.MaximumNArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errUsage
			}
			return o.run(cmd, conv, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&o.quality, "quality", "q", "95", "output quality, 1-100")
	flags.StringVarP(&o.format, "format", "f", "jpg", "output format: jpg or webp")
	flags.BoolVarP(&o.recursive, "recursive", "r", false, "descend into subdirectories")
	flags.IntVarP(&o.workers, "workers", "w", 1, "files converted in parallel")
	flags.DurationVar(&o.timeout, "timeout", batch.DefaultTimeout, "per-file conversion timeout")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log conversion details to stderr")

	return cmd
}

func (o *rootOpts) run(cmd *cobra.Command, conv batch.FileConverter, args []string, stdout, stderr io.Writer) error {
	rep := newConsoleReporter(stdout)

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger := logging.New(stderr, level, "console")
	ctx := cmd.Context()

	quality, ok := converter.LookupQuality(o.quality)
	if !ok && cmd.Flags().Changed("quality") {
		rep.Warning("quality must be between %d and %d, using default (%d)",
			converter.MinQuality, converter.MaxQuality, converter.DefaultQuality)
	}
	opts := converter.NewOptions(o.format, quality)

	input := args[0]
	var output string
	if len(args) > 1 {
		output = args[1]
	}

	logger.Debug().
		Str("input", input).
		Str("output", output).
		Str("format", opts.Format.String()).
		Int("quality", opts.Quality).
		Str("backend", converter.Backend()).
		Int("cpus", runtime.NumCPU()).
		Msg("starting")

	runner := batch.NewRunner(conv, rep, logger)

	info, err := os.Stat(input)
	if err != nil {
		rep.Error("invalid path: %s", input)
		return errInvalid
	}

	if !info.IsDir() {
		if _, err := runner.ConvertOne(ctx, input, output, opts, o.timeout); err != nil {
			return errFailed
		}
		return nil
	}

	summary, err := runner.Run(ctx, input, batch.Config{
		Options:   opts,
		Recursive: o.recursive,
		OutputDir: output,
		Workers:   o.workers,
		Timeout:   o.timeout,
	})
	if err != nil {
		rep.Error("%v", err)
		return errInvalid
	}
	if summary.Total > 0 {
		rep.Summary(summary)
	}
	for _, f := range summary.Failed {
		logger.Debug().Err(f.Err).Str("file", filepath.ToSlash(f.Source.RelPath)).Msg("failed")
	}
	return nil
}
