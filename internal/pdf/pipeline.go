package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdfblocks/pdfblocks/internal/config"
)

// TextSource provides positioned page text. PageContent carries the layout
// analysis; PlainText is the cheap raw-text probe used for diagnostics.
type TextSource interface {
	PageContent(pageNr int) (*PageContent, error)
	PlainText(pageNr int) (string, error)
}

// ImageSource provides the embedded image objects of a page
type ImageSource interface {
	ExtractPageImages(pageNr int, logger *logrus.Logger) ([]EmbeddedImage, error)
}

// Renderer rasterises pages
type Renderer interface {
	RenderPage(pageNr int, dpi int) (image.Image, error)
}

// DiagnosticSource reports structural parser diagnostics for a page
type DiagnosticSource interface {
	MalformedObjects(pageNr int) int
}

// ReadRequest is a validated page read. StartPage and EndPage are 1-indexed,
// inclusive and already clamped to the document by the validator.
type ReadRequest struct {
	FilePath           string
	StartPage          int
	EndPage            int
	Mode               config.Mode
	FilterHeaderFooter bool
	CropImages         bool
	MaxImageDimension  int
	PageImageDPI       int
}

// Extractor composes the extraction backends into the page pipeline. All
// fields are required; the zero value is not usable.
type Extractor struct {
	Config      config.Config
	Logger      *logrus.Logger
	Text        TextSource
	Images      ImageSource
	Renderer    Renderer
	Diagnostics DiagnosticSource
}

// Page-number separator lines like "- 3 -" that some generators emit as
// standalone text fragments
var pageNumberSeparator = regexp.MustCompile(`^-\s*\d+\s*-$`)

// ReadPages runs the pipeline over the requested range. Pages are processed
// in order and every per-fragment failure is isolated: a page that cannot be
// read yields an empty page, an image that cannot be decoded is skipped. The
// returned image list lines up with the [IMAGE_N] placeholders in the page
// blocks, numbered globally across the request.
func (e *Extractor) ReadPages(ctx context.Context, req ReadRequest) (*ReadResult, error) {
	e.Logger.WithFields(logrus.Fields{
		"file":  req.FilePath,
		"pages": fmt.Sprintf("%d-%d", req.StartPage, req.EndPage),
		"mode":  req.Mode,
	}).Debug("Reading PDF pages")

	sink := &imageSink{}
	result := &ReadResult{FilePath: req.FilePath}

	for pageNr := req.StartPage; pageNr <= req.EndPage; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Pages = append(result.Pages, e.extractPage(pageNr, req, sink))
	}

	result.TotalPagesRead = len(result.Pages)
	result.TotalImages = len(sink.images)
	result.Images = sink.images
	return result, nil
}

// extractPage runs the per-page flow: text and tables, corruption check,
// page render when the text is unusable, embedded images, then ordering and
// assembly of the final block list.
func (e *Extractor) extractPage(pageNr int, req ReadRequest, sink *imageSink) PageData {
	page := PageData{PageNumber: pageNr}

	var (
		textBlocks  []Block
		tableBlocks []Block
		corrupted   bool
	)

	if req.Mode == config.ModeImageOnly {
		e.addTextHint(&page, pageNr)
	} else {
		regions, tables := e.extractText(pageNr)

		var markdowns []string
		tableNr := 0
		for _, table := range tables {
			markdown := ToMarkdown(table.Rows)
			if markdown == "" {
				continue
			}
			tableNr++
			markdowns = append(markdowns, markdown)
			content := fmt.Sprintf("**Table %d**\n\n%s", tableNr, markdown)
			tableBlocks = append(tableBlocks, NewBlock(BlockTable, content, table.Top))
		}

		for _, region := range regions {
			textBlocks = append(textBlocks, NewBlock(BlockText, region.Text, region.Top))
		}

		var ratio float64
		corrupted, ratio = e.pageCorruption(pageNr, regions, markdowns)
		if corrupted {
			flag := true
			page.TextCorrupted = &flag
			page.CorruptionRatio = &ratio
		}
	}

	// The rendered page replaces unusable text: always in image_only mode,
	// and in auto mode when the text failed the corruption check. The same
	// condition suppresses the text and table blocks below.
	suppressText := req.Mode == config.ModeImageOnly ||
		(req.Mode == config.ModeAuto && corrupted)
	if suppressText {
		e.renderPageImage(&page, pageNr, req, sink)
	}

	var imageBlocks []Block
	if req.Mode == config.ModeAuto {
		imageBlocks = e.extractEmbeddedImages(pageNr, req, sink)
	}

	blocks := OrderBlocks(textBlocks, tableBlocks, imageBlocks)
	blocks = MergeAdjacentTextBlocks(blocks)
	page.ContentBlocks = assembleBlocks(blocks, suppressText)
	return page
}

// extractText pulls the positioned text of one page. A failing page yields
// no regions and no tables; extraction continues with the remaining pages.
func (e *Extractor) extractText(pageNr int) ([]TextRegion, []Table) {
	content, err := e.Text.PageContent(pageNr)
	if err != nil {
		e.Logger.WithError(err).WithField("page", pageNr).Warn("Text extraction failed for page")
		return nil, nil
	}
	return content.Regions, content.Tables
}

// pageCorruption decides whether a page's text is corrupted. Parser
// diagnostics take precedence: a page with enough dangling object references
// is damaged regardless of how its text reads. Otherwise the character
// heuristic runs over the region text and the table markdown together, so
// mojibake hiding inside table cells still flags the page.
func (e *Extractor) pageCorruption(pageNr int, regions []TextRegion, markdowns []string) (bool, float64) {
	detector := NewDetector(e.Config)

	if corrupted, ratio := detector.DetectStructural(e.Diagnostics.MalformedObjects(pageNr)); corrupted {
		return true, ratio
	}

	parts := make([]string, 0, len(regions)+len(markdowns))
	for _, region := range regions {
		if region.Text != "" {
			parts = append(parts, region.Text)
		}
	}
	parts = append(parts, markdowns...)
	return detector.Detect(strings.Join(parts, "\n\n"))
}

// addTextHint probes the page text in image_only mode so the response can
// tell the caller whether switching to auto would recover usable text
func (e *Extractor) addTextHint(page *PageData, pageNr int) {
	text, err := e.Text.PlainText(pageNr)
	if err != nil {
		e.Logger.WithError(err).WithField("page", pageNr).Debug("Plain text probe failed")
		return
	}

	charCount := len([]rune(strings.TrimSpace(text)))
	if charCount == 0 {
		return
	}
	page.ExtractableCharCount = &charCount

	detector := NewDetector(e.Config)
	corrupted, ratio := detector.DetectStructural(e.Diagnostics.MalformedObjects(pageNr))
	if !corrupted {
		corrupted, ratio = detector.Detect(text)
	}

	if corrupted {
		page.TextHint = fmt.Sprintf("%d chars (%d%% corrupted). Text extraction not recommended.",
			charCount, int(ratio*100))
	} else {
		page.TextHint = fmt.Sprintf("%d chars extractable. Use 'auto' to get text.", charCount)
	}
}

// renderPageImage rasterises the page, whites out the header and footer
// bands, fits the result into the dimension budget and JPEG-encodes it. A
// render failure is logged and the page carries on without an image.
func (e *Extractor) renderPageImage(page *PageData, pageNr int, req ReadRequest, sink *imageSink) {
	img, err := e.Renderer.RenderPage(pageNr, req.PageImageDPI)
	if err != nil {
		e.Logger.WithError(err).WithField("page", pageNr).Warn("Failed to render page image")
		return
	}

	if req.FilterHeaderFooter {
		img = WhiteoutHeaderFooter(img, e.Config.HeaderFooterRatio, e.Config.FooterStartRatio)
	}
	img = FitWithin(img, req.MaxImageDimension, req.MaxImageDimension)

	data, err := EncodeJPEG(img, e.Config.JPEGQuality)
	if err != nil {
		e.Logger.WithError(err).WithField("page", pageNr).Warn("Failed to encode page image")
		return
	}

	bounds := img.Bounds()
	page.PageImage = sink.add(data, "jpeg")
	page.PageImageWidth = bounds.Dx()
	page.PageImageHeight = bounds.Dy()
}

// extractEmbeddedImages pulls the page's embedded image objects and turns
// the survivors into placeholder blocks. Failures are isolated to the single
// image: one undecodable object never costs the page its other images.
func (e *Extractor) extractEmbeddedImages(pageNr int, req ReadRequest, sink *imageSink) []Block {
	embedded, err := e.Images.ExtractPageImages(pageNr, e.Logger)
	if err != nil {
		e.Logger.WithError(err).WithField("page", pageNr).Debug("Embedded image extraction failed")
		return nil
	}

	processor := NewImageProcessor(e.Config)
	var blocks []Block

	for i, img := range embedded {
		fields := logrus.Fields{"page": pageNr, "image": i}

		if req.FilterHeaderFooter && processor.IsHeaderFooterImage(img.DisplayWidth, img.DisplayHeight) {
			e.Logger.WithFields(fields).Debug("Skipping header/footer image")
			continue
		}

		data := encodeEmbedded(img)
		if data == nil {
			e.Logger.WithFields(fields).Debug("Skipping undecodable embedded image")
			continue
		}

		if req.CropImages {
			shrunk, _, _ := processor.ShrinkToLimit(data, req.MaxImageDimension)
			if shrunk == nil {
				e.Logger.WithFields(fields).Debug("Discarding image below minimum dimension")
				continue
			}
			data = shrunk
		}

		blocks = append(blocks, NewBlock(BlockImage, sink.add(data, "png"), img.Top))
	}

	return blocks
}

// encodeEmbedded normalises an embedded image to PNG at its display size.
// Images drawn smaller than their intrinsic pixels are downscaled to what
// the reader would actually see. Returns nil when the bytes cannot be
// decoded or re-encoded.
func encodeEmbedded(img EmbeddedImage) []byte {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil
	}

	if img.DisplayWidth > 0 && img.DisplayHeight > 0 {
		decoded = FitWithin(decoded, img.DisplayWidth, img.DisplayHeight)
	}

	data, err := EncodePNG(decoded)
	if err != nil {
		return nil
	}
	return data
}

// assembleBlocks produces the final block list. When text is suppressed
// (image_only requests and corrupted pages in auto mode) only image blocks
// survive. Otherwise text is trimmed and blocks that are empty or a bare
// page-number separator are dropped.
func assembleBlocks(blocks []Block, suppressText bool) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if suppressText && b.Type != BlockImage {
			continue
		}
		if b.Type == BlockText {
			content := strings.TrimSpace(b.Content)
			if content == "" || pageNumberSeparator.MatchString(content) {
				continue
			}
			b.Content = content
		}
		out = append(out, b)
	}
	return out
}

// imageSink collects out-of-band image payloads and hands out their
// [IMAGE_N] placeholders in allocation order
type imageSink struct {
	images []ExtractedImage
}

func (s *imageSink) add(data []byte, format string) string {
	placeholder := fmt.Sprintf("[IMAGE_%d]", len(s.images))
	s.images = append(s.images, ExtractedImage{Data: data, Format: format})
	return placeholder
}
