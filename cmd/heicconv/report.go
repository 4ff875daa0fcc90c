package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/harliandi/heicconv/internal/batch"
)

var (
	tagProcessing = color.New(color.FgCyan).SprintFunc()
	tagSuccess    = color.New(color.FgGreen).SprintFunc()
	tagError      = color.New(color.FgRed, color.Bold).SprintFunc()
	tagWarning    = color.New(color.FgYellow).SprintFunc()
	tagInfo       = color.New(color.FgBlue).SprintFunc()
)

// consoleReporter prints one tagged line per event.
type consoleReporter struct {
	w io.Writer
}

func newConsoleReporter(w io.Writer) *consoleReporter {
	return &consoleReporter{w: w}
}

func (r *consoleReporter) line(tag, format string, args ...any) {
	fmt.Fprintf(r.w, "%s %s\n", tag, fmt.Sprintf(format, args...))
}

func (r *consoleReporter) Found(n int) {
	r.line(tagInfo("[FOUND]"), "%d HEIC files", n)
}

func (r *consoleReporter) Start(src batch.Source) {
	r.line(tagProcessing("[PROCESSING]"), "%s", filepath.Base(src.Path))
}

func (r *consoleReporter) Done(_ batch.Source, out string) {
	r.line(tagSuccess("[SUCCESS]"), "%s created", out)
}

func (r *consoleReporter) Failed(_ batch.Source, err error) {
	r.Error("%v", err)
}

func (r *consoleReporter) NoFiles(dir string) {
	r.Warning("no HEIC files found in %s", dir)
}

func (r *consoleReporter) Summary(s batch.Summary) {
	r.line(tagInfo("[SUMMARY]"), "%d/%d files converted successfully", s.Succeeded, s.Total)
}

func (r *consoleReporter) Error(format string, args ...any) {
	r.line(tagError("[ERROR]"), format, args...)
}

func (r *consoleReporter) Warning(format string, args ...any) {
	r.line(tagWarning("[WARNING]"), format, args...)
}
