package assembly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/webp"

	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/workid"
)

// pointsPerPixel maps image pixels to PDF points at 96 dpi.
const pointsPerPixel = 0.75

// ownerMarker prefixes the work id stored in the document keywords.
const ownerMarker = "folio-work:"

// ownerScanBytes bounds how much of an artifact's tail ReadOwner inspects.
// The info dictionary sits just before the cross-reference table.
const ownerScanBytes = 1 << 20

// ErrNoPages is returned when the source directory holds no page images.
var ErrNoPages = errors.New("assembly: no page images")

var pageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Codec assembles page directories into PDF artifacts.
type Codec interface {
	Assemble(ctx context.Context, sourceDir, name string, owner workid.ID) (string, error)
}

// PDFCodec is the fpdf-backed Codec. Artifacts are written to OutputDir.
type PDFCodec struct {
	outputDir string
	creator   string
	logger    *slog.Logger
}

// NewPDFCodec returns a codec writing <outputDir>/<name>.pdf.
func NewPDFCodec(outputDir string, logger *slog.Logger) *PDFCodec {
	return &PDFCodec{
		outputDir: outputDir,
		creator:   "folio",
		logger:    logging.NewComponentLogger(logger, "assembly"),
	}
}

// OutputPath returns where Assemble writes the artifact for name.
func (c *PDFCodec) OutputPath(name string) string {
	return filepath.Join(c.outputDir, name+".pdf")
}

// PageFile is a page image found in a work directory.
type PageFile struct {
	Path    string
	Ordinal int
}

// Assemble writes every page image in sourceDir, in ordinal order, to
// <outputDir>/<name>.pdf and returns that path. owner is stored in the
// document keywords so ReadOwner can tell which work produced the file.
func (c *PDFCodec) Assemble(ctx context.Context, sourceDir, name string, owner workid.ID) (string, error) {
	pages, err := ListPages(sourceDir)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoPages, sourceDir)
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", SizeStr: "A4"})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(name, true)
	pdf.SetCreator(c.creator, true)
	pdf.SetSubject("Work "+owner.String(), false)
	pdf.SetKeywords(ownerMarker+owner.String(), false)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := addPage(pdf, page, i); err != nil {
			return "", err
		}
	}
	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("assembly: build document: %w", err)
	}

	target := c.OutputPath(name)
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("assembly: create output directory: %w", err)
	}
	err = fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		return pdf.Output(w)
	})
	if err != nil {
		return "", fmt.Errorf("assembly: write %s: %w", target, err)
	}
	c.logger.Debug("pdf assembled",
		logging.String("path", target),
		logging.Int("pages", len(pages)),
	)
	return target, nil
}

// ReadOwner returns the work id recorded in the artifact at path. ok is false
// when the file carries no owner, such as a PDF produced by another tool.
func ReadOwner(path string) (owner workid.ID, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", false, err
	}
	size := info.Size()
	offset := max(size-ownerScanBytes, 0)
	tail := make([]byte, size-offset)
	if _, err := f.ReadAt(tail, offset); err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}

	marker := []byte("(" + ownerMarker)
	at := bytes.LastIndex(tail, marker)
	if at < 0 {
		return "", false, nil
	}
	rest := tail[at+len(marker):]
	end := bytes.IndexByte(rest, ')')
	if end < 0 {
		return "", false, nil
	}
	id, err := workid.Parse(string(rest[:end]))
	if err != nil {
		return "", false, nil
	}
	return id, true, nil
}

func addPage(pdf *fpdf.Fpdf, page PageFile, index int) error {
	data, err := os.ReadFile(page.Path)
	if err != nil {
		return fmt.Errorf("assembly: read %s: %w", page.Path, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("assembly: decode %s: %w", filepath.Base(page.Path), err)
	}
	imageType := "JPG"
	if format != "jpeg" {
		data, err = normalizePNG(data)
		if err != nil {
			return fmt.Errorf("assembly: convert %s: %w", filepath.Base(page.Path), err)
		}
		imageType = "PNG"
	}

	w := float64(cfg.Width) * pointsPerPixel
	h := float64(cfg.Height) * pointsPerPixel
	key := "page-" + strconv.Itoa(index)
	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(key, opts, bytes.NewReader(data))
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	pdf.ImageOptions(key, 0, 0, w, h, false, opts, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("assembly: embed %s: %w", filepath.Base(page.Path), err)
	}
	return nil
}

// normalizePNG decodes any registered image format and re-encodes it as an
// 8-bit non-interlaced PNG.
func normalizePNG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ListPages returns the page images in dir ordered by ordinal. Files whose
// names do not start with digits sort after numbered pages, by name. Files
// without an image extension are ignored.
func ListPages(dir string) ([]PageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("assembly: read %s: %w", dir, err)
	}
	var pages []PageFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !pageExts[ext] {
			continue
		}
		pages = append(pages, PageFile{
			Path:    filepath.Join(dir, entry.Name()),
			Ordinal: ordinalOf(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))),
		})
	}
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Ordinal != pages[j].Ordinal {
			return pages[i].Ordinal < pages[j].Ordinal
		}
		return pages[i].Path < pages[j].Path
	})
	return pages, nil
}

func ordinalOf(stem string) int {
	end := 0
	for end < len(stem) && stem[end] >= '0' && stem[end] <= '9' {
		end++
	}
	if end == 0 {
		return math.MaxInt
	}
	n, err := strconv.Atoi(stem[:end])
	if err != nil {
		return math.MaxInt
	}
	return n
}
