package pdf

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/pdfblocks/pdfblocks/internal/config"
)

// PageRenderer rasterises full pages for the image fallback path. It holds
// an open document handle for the life of one read request; callers must
// Close it on every exit path.
type PageRenderer struct {
	cfg config.Config
	doc *fitz.Document
}

// OpenRenderer opens the document for page rasterisation
func OpenRenderer(cfg config.Config, path string) (*PageRenderer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	return &PageRenderer{cfg: cfg, doc: doc}, nil
}

// Close releases the underlying document
func (r *PageRenderer) Close() error {
	return r.doc.Close()
}

// RenderPage rasterises the 1-indexed page at the given DPI. A dpi of 0
// or less falls back to the configured page image DPI.
func (r *PageRenderer) RenderPage(pageNr int, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = r.cfg.PageImageDPI
	}
	img, err := r.doc.ImageDPI(pageNr-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNr, err)
	}
	return img, nil
}

// LazyRenderer opens the rasteriser on first use. Most requests never
// render a page, so the MuPDF open cost is deferred until a corrupted page
// or an image_only request actually needs it. Not safe for concurrent use.
type LazyRenderer struct {
	cfg  config.Config
	path string
	r    *PageRenderer
	err  error
}

// NewLazyRenderer prepares a renderer for the given document without
// opening it
func NewLazyRenderer(cfg config.Config, path string) *LazyRenderer {
	return &LazyRenderer{cfg: cfg, path: path}
}

// RenderPage opens the document on first call, then delegates. An open
// failure is sticky and returned on every subsequent call.
func (l *LazyRenderer) RenderPage(pageNr int, dpi int) (image.Image, error) {
	if l.r == nil && l.err == nil {
		l.r, l.err = OpenRenderer(l.cfg, l.path)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.r.RenderPage(pageNr, dpi)
}

// Close releases the renderer if it was ever opened
func (l *LazyRenderer) Close() error {
	if l.r == nil {
		return nil
	}
	return l.r.Close()
}

// WhiteoutHeaderFooter paints white bands over the header and footer of a
// rendered page image: the top headerRatio of the page height, and
// everything from footerStartRatio down. Running headers, footers and page
// numbers repeat on every page and only waste the model's attention.
func WhiteoutHeaderFooter(img image.Image, headerRatio, footerStartRatio float64) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	height := bounds.Dy()
	headerHeight := int(float64(height) * headerRatio)
	footerStart := int(float64(height) * footerStartRatio)
	white := image.NewUniform(color.White)

	header := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+headerHeight)
	draw.Draw(out, header, white, image.Point{}, draw.Src)

	footer := image.Rect(bounds.Min.X, bounds.Min.Y+footerStart, bounds.Max.X, bounds.Max.Y)
	draw.Draw(out, footer, white, image.Point{}, draw.Src)

	return out
}
