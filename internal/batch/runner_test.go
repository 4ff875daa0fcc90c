package batch_test

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harliandi/heicconv/internal/batch"
	"github.com/harliandi/heicconv/internal/converter"
	"github.com/harliandi/heicconv/internal/converter/convertertest"
)

// recorder keeps every event as a line.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Found(n int) { r.add("found %d", n) }
func (r *recorder) Start(src batch.Source) { r.add("start %s", filepath.ToSlash(src.RelPath)) }
func (r *recorder) Done(src batch.Source, out string) {
	r.add("done %s", filepath.ToSlash(src.RelPath))
}
func (r *recorder) Failed(src batch.Source, err error) {
	r.add("failed %s", filepath.ToSlash(src.RelPath))
}
func (r *recorder) NoFiles(dir string) { r.add("none") }

func writeHEIC(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, convertertest.Payload(), 0o644))
}

func newRunner(rep batch.Reporter) *batch.Runner {
	conv := convertertest.NewConverter(convertertest.Gradient(32, 24))
	return batch.NewRunner(conv, rep, zerolog.Nop())
}

func TestRun_SkipsShadowFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.heic", "b.HEIC", "c.heic"} {
		writeHEIC(t, filepath.Join(root, name))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "._shadow.heic"), []byte{0, 5, 22, 7}, 0o644))

	rep := &recorder{}
	summary, err := newRunner(rep).Run(context.Background(), root, batch.Config{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Empty(t, summary.Failed)

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		data, err := os.ReadFile(filepath.Join(root, name))
		require.NoError(t, err, name)
		img, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	}
	assert.NoFileExists(t, filepath.Join(root, "._shadow.jpg"))
}

func TestRun_SequentialOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c.heic", "a.heic", "b.heic"} {
		writeHEIC(t, filepath.Join(root, name))
	}

	rep := &recorder{}
	_, err := newRunner(rep).Run(context.Background(), root, batch.Config{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"found 3",
		"start a.heic", "done a.heic",
		"start b.heic", "done b.heic",
		"start c.heic", "done c.heic",
	}, rep.events)
}

func TestRun_CountsFailures(t *testing.T) {
	root := t.TempDir()
	writeHEIC(t, filepath.Join(root, "good.heic"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.heic"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.heic"), nil, 0o644))

	summary, err := newRunner(nil).Run(context.Background(), root, batch.Config{Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failed, 2)
	assert.Equal(t, "bad.heic", summary.Failed[0].Source.RelPath)
	assert.Equal(t, "empty.heic", summary.Failed[1].Source.RelPath)
	assert.True(t, converter.IsConversionError(summary.Failed[1].Err))

	assert.FileExists(t, filepath.Join(root, "good.jpg"))
	assert.NoFileExists(t, filepath.Join(root, "bad.jpg"))
}

func TestRun_RecursiveMirrorsIntoOutputDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "converted")
	writeHEIC(t, filepath.Join(root, "top.heic"))
	writeHEIC(t, filepath.Join(root, "2024", "jan", "deep.heic"))

	cfg := batch.Config{
		Recursive: true,
		OutputDir: out,
		Workers:   4,
		Options:   converter.Options{Format: converter.FormatWebP, Quality: 80},
	}
	summary, err := newRunner(nil).Run(context.Background(), root, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)

	assert.FileExists(t, filepath.Join(out, "top.webp"))
	assert.FileExists(t, filepath.Join(out, "2024", "jan", "deep.webp"))
	assert.NoFileExists(t, filepath.Join(root, "top.webp"))
}

func TestRun_NonRecursiveIgnoresSubdirs(t *testing.T) {
	root := t.TempDir()
	writeHEIC(t, filepath.Join(root, "top.heic"))
	writeHEIC(t, filepath.Join(root, "sub", "deep.heic"))

	summary, err := newRunner(nil).Run(context.Background(), root, batch.Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.NoFileExists(t, filepath.Join(root, "sub", "deep.jpg"))
}

func TestRun_NoFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0o644))

	rep := &recorder{}
	summary, err := newRunner(rep).Run(context.Background(), root, batch.Config{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Equal(t, []string{"none"}, rep.events)
}

func TestRun_InvalidRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.heic")
	writeHEIC(t, file)

	for _, root := range []string{filepath.Join(t.TempDir(), "missing"), file} {
		_, err := newRunner(nil).Run(context.Background(), root, batch.Config{})
		require.Error(t, err)
		assert.True(t, converter.IsInputError(err))
		assert.True(t, strings.HasPrefix(err.Error(), "invalid directory: "))
	}
}

func TestRun_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeHEIC(t, filepath.Join(root, "a.heic"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newRunner(nil).Run(ctx, root, batch.Config{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Succeeded)
	require.Len(t, summary.Failed, 1)
	assert.True(t, converter.IsConversionError(summary.Failed[0].Err))
}

func TestConvertOne(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "IMG_0001.HEIC")
	writeHEIC(t, in)

	rep := &recorder{}
	out, err := newRunner(rep).ConvertOne(context.Background(), in, "", converter.DefaultOptions(), 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "IMG_0001.jpg"), out)
	assert.FileExists(t, out)
	assert.Equal(t, []string{"start IMG_0001.HEIC", "done IMG_0001.HEIC"}, rep.events)

	// no temp files are left next to the output
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConvertOne_ExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.heic")
	writeHEIC(t, in)
	want := filepath.Join(dir, "nested", "out.webp")

	out, err := newRunner(nil).ConvertOne(context.Background(), in, want,
		converter.Options{Format: converter.FormatWebP, Quality: 50}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
}

func TestConvertOne_InvalidPath(t *testing.T) {
	rep := &recorder{}
	runner := newRunner(rep)

	_, err := runner.ConvertOne(context.Background(), filepath.Join(t.TempDir(), "nope.heic"), "", converter.DefaultOptions(), 0)
	require.Error(t, err)
	assert.True(t, converter.IsInputError(err))
	assert.True(t, strings.HasPrefix(err.Error(), "invalid path: "))

	_, err = runner.ConvertOne(context.Background(), t.TempDir(), "", converter.DefaultOptions(), 0)
	assert.True(t, converter.IsInputError(err))
	assert.Empty(t, rep.events)
}

func TestConvertOne_Failure(t *testing.T) {
	in := filepath.Join(t.TempDir(), "broken.heic")
	require.NoError(t, os.WriteFile(in, []byte("garbage"), 0o644))

	rep := &recorder{}
	_, err := newRunner(rep).ConvertOne(context.Background(), in, "", converter.DefaultOptions(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, convertertest.ErrNotFake)
	assert.Equal(t, []string{"start broken.heic", "failed broken.heic"}, rep.events)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(in), "broken.jpg"))
}
