package assembly_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"folio/internal/assembly"
	"folio/internal/logging"
	"folio/internal/testsupport"
)

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeGIF(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestAssembleWritesOrderedPDF(t *testing.T) {
	base := t.TempDir()
	pages := filepath.Join(base, "Sample_Work")
	out := filepath.Join(base, "pdf")
	testsupport.WritePNG(t, filepath.Join(pages, "00001.png"), 8, 12)
	writeJPEG(t, filepath.Join(pages, "00002.jpg"), 16, 10)
	writeGIF(t, filepath.Join(pages, "00010.gif"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(pages, "notes.txt"), []byte("skip"), 0o644))

	codec := assembly.NewPDFCodec(out, logging.NewNop())
	path, err := codec.Assemble(context.Background(), pages, "Sample_Work", "123456")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "Sample_Work.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	require.Contains(t, string(data), "/Count 3")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not remain")

	owner, ok, err := assembly.ReadOwner(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "123456", owner.String())
}

func TestReadOwnerWithoutMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o644))

	_, ok, err := assembly.ReadOwner(path)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = assembly.ReadOwner(filepath.Join(t.TempDir(), "missing.pdf"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestListPagesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10.png", "2.png", "00001.webp", "cover.jpg", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "3.png"), 0o755))

	pages, err := assembly.ListPages(dir)
	require.NoError(t, err)
	var names []string
	for _, p := range pages {
		names = append(names, filepath.Base(p.Path))
	}
	require.Equal(t, []string{"00001.webp", "2.png", "10.png", "cover.jpg"}, names)
	require.Equal(t, 1, pages[0].Ordinal)
}

func TestAssembleEmptyDirectory(t *testing.T) {
	base := t.TempDir()
	codec := assembly.NewPDFCodec(filepath.Join(base, "pdf"), nil)
	_, err := codec.Assemble(context.Background(), base, "empty", "1")
	require.True(t, errors.Is(err, assembly.ErrNoPages))
	_, statErr := os.Stat(codec.OutputPath("empty"))
	require.True(t, os.IsNotExist(statErr))
}

func TestAssembleCorruptPageLeavesNoArtifact(t *testing.T) {
	base := t.TempDir()
	pages := filepath.Join(base, "w")
	testsupport.WritePNG(t, filepath.Join(pages, "00001.png"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(pages, "00002.png"), []byte("not a png"), 0o644))

	codec := assembly.NewPDFCodec(filepath.Join(base, "pdf"), nil)
	_, err := codec.Assemble(context.Background(), pages, "w", "1")
	require.Error(t, err)
	_, statErr := os.Stat(codec.OutputPath("w"))
	require.True(t, os.IsNotExist(statErr))
}

func TestAssembleHonoursCancellation(t *testing.T) {
	base := t.TempDir()
	pages := filepath.Join(base, "w")
	testsupport.WritePNG(t, filepath.Join(pages, "00001.png"), 4, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := assembly.NewPDFCodec(filepath.Join(base, "pdf"), nil).Assemble(ctx, pages, "w", "1")
	require.ErrorIs(t, err, context.Canceled)
}
