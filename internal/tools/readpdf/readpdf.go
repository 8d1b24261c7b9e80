// Package readpdf implements the read_pdf tool: structured page extraction
// with up-front limit validation, content-order preservation and a page
// render fallback for corrupted or scanned documents.
package readpdf

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pdfblocks/pdfblocks/internal/config"
	"github.com/pdfblocks/pdfblocks/internal/filematch"
	"github.com/pdfblocks/pdfblocks/internal/pdf"
	"github.com/pdfblocks/pdfblocks/internal/registry"
	"github.com/pdfblocks/pdfblocks/internal/security"
	"github.com/pdfblocks/pdfblocks/internal/tools"
)

// maxFileSuggestions caps the fuzzy-match list in FILE_NOT_FOUND responses
const maxFileSuggestions = 3

// ReadPDFTool extracts ordered text, table and image content from PDFs
type ReadPDFTool struct{}

// init registers the read_pdf tool
func init() {
	registry.Register(&ReadPDFTool{})
}

// Definition returns the tool's definition for MCP registration. The
// description and parameter defaults reflect the loaded configuration, so
// clients see the behaviour this server will actually apply.
func (t *ReadPDFTool) Definition() mcp.Tool {
	cfg := config.Load(nil)
	return mcp.NewTool(
		"read_pdf",
		mcp.WithDescription(describeTool(cfg)),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("PDF file path (relative to the working directory or absolute)"),
		),
		mcp.WithNumber("start_page",
			mcp.Description("Start page (1-indexed, inclusive, default: 1)"),
			mcp.DefaultNumber(1),
		),
		mcp.WithNumber("end_page",
			mcp.Description("End page (1-indexed, inclusive, default: last page)"),
		),
		mcp.WithString("extraction_mode",
			mcp.Description("Content extraction mode:\n- 'auto': extract text/tables, add a page image only if the text is corrupted\n- 'text_only': extract text/tables only, no images\n- 'image_only': skip text extraction, provide full page images"),
			mcp.Enum("auto", "text_only", "image_only"),
			mcp.DefaultString(string(cfg.DefaultExtractionMode)),
		),
		mcp.WithBoolean("filter_header_footer",
			mcp.Description("Filter out header/footer images (top/bottom bands of the page, default: true)"),
			mcp.DefaultBool(true),
		),
		mcp.WithBoolean("crop_images",
			mcp.Description("Crop extracted images to max_image_dimension (default: true)"),
			mcp.DefaultBool(true),
		),
		mcp.WithNumber("max_image_dimension",
			mcp.Description(fmt.Sprintf("Maximum image dimension in pixels, 28-4096 (default: %d, A4 height)", cfg.MaxImageDimension)),
		),
		mcp.WithNumber("page_image_dpi",
			mcp.Description(fmt.Sprintf("DPI for page image rendering, 50-300 (default: %d)", cfg.PageImageDPI)),
		),
	)
}

// describeTool builds the tool description around the configured default
// extraction mode
func describeTool(cfg config.Config) string {
	base := fmt.Sprintf("Read PDF content. Always prefer this over cat or file read for PDF files. Limits: %d pages per request.", cfg.MaxPagesPerRequest)
	switch cfg.DefaultExtractionMode {
	case config.ModeTextOnly:
		return base + " Extracts text and tables only. Use 'image_only' to see actual page layout, or 'auto' for smart detection."
	case config.ModeImageOnly:
		return base + " Returns page images for visual analysis. Use 'text_only' for pure text extraction, or 'auto' for smart detection."
	default:
		return base + " Works with both text and scanned documents. Use 'image_only' to see actual page layout, or 'text_only' for pure text."
	}
}

// Execute reads the requested pages and returns the structured content as
// indented JSON, followed by one image content part per extracted image in
// placeholder order. Domain failures (missing files, exceeded limits,
// corrupt documents) come back as a JSON error envelope rather than a
// protocol error so the calling model can act on the structured detail.
func (t *ReadPDFTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	cfg := config.Load(logger)

	request, err := t.ParseRequest(cfg, args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	reqLog := logger.WithFields(logrus.Fields{
		"request_id": uuid.New().String(),
		"file_path":  request.FilePath,
	})
	reqLog.WithFields(logrus.Fields{
		"start_page": request.StartPage,
		"mode":       request.Mode,
	}).Debug("Executing read_pdf tool")

	path, err := resolvePath(request.FilePath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		similar := filematch.FindSimilar(path, maxFileSuggestions)
		reqLog.WithField("suggestions", len(similar)).Debug("PDF file not found")
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:          pdf.ErrFileNotFound,
			Message:        filematch.NotFoundMessage(path, similar),
			SuggestedFiles: similar,
		})
	}

	if err := security.CheckFileAccess(path); err != nil {
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrPermissionDenied,
			Message: err.Error(),
		})
	}

	probe, err := os.Open(path)
	if err != nil {
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrPermissionDenied,
			Message: fmt.Sprintf("Permission denied: Cannot read file %s", path),
		})
	}
	_ = probe.Close()

	doc, err := pdf.OpenDocument(path)
	if err != nil {
		return t.newToolResultJSON(openErrorResponse(path, err))
	}
	defer func() { _ = doc.Close() }()

	validation := pdf.NewValidator(cfg, doc).Validate(request.StartPage, request.EndPage)
	if !validation.Valid {
		reqLog.WithField("error", validation.Error).Debug("Read request rejected by validation")
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:           validation.Error,
			Message:         validation.Message,
			TotalPages:      validation.TotalPages,
			TotalImages:     validation.TotalImages,
			SuggestedRanges: validation.SuggestedRanges,
		})
	}

	text, err := pdf.OpenTextExtractor(path)
	if err != nil {
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrInvalidPDF,
			Message: fmt.Sprintf("Invalid or corrupted PDF file: %v", err),
		})
	}
	defer func() { _ = text.Close() }()

	renderer := pdf.NewLazyRenderer(cfg, path)
	defer func() { _ = renderer.Close() }()

	extractor := &pdf.Extractor{
		Config:      cfg,
		Logger:      logger,
		Text:        text,
		Images:      doc,
		Renderer:    renderer,
		Diagnostics: doc,
	}

	result, err := extractor.ReadPages(ctx, pdf.ReadRequest{
		FilePath:           path,
		StartPage:          request.StartPage,
		EndPage:            validation.EndPage,
		Mode:               request.Mode,
		FilterHeaderFooter: request.FilterHeaderFooter,
		CropImages:         request.CropImages,
		MaxImageDimension:  request.MaxImageDimension,
		PageImageDPI:       request.PageImageDPI,
	})
	if err != nil {
		return nil, err
	}

	reqLog.WithFields(logrus.Fields{
		"pages_read": result.TotalPagesRead,
		"images":     result.TotalImages,
	}).Debug("read_pdf completed")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	content := make([]mcp.Content, 0, len(result.Images)+1)
	content = append(content, mcp.NewTextContent(string(data)))
	for _, img := range result.Images {
		content = append(content, mcp.NewImageContent(
			base64.StdEncoding.EncodeToString(img.Data),
			"image/"+img.Format,
		))
	}

	return &mcp.CallToolResult{Content: content}, nil
}

// ParseRequest parses and validates the tool arguments, resolving defaults
// from the loaded configuration
func (t *ReadPDFTool) ParseRequest(cfg config.Config, args map[string]any) (*Request, error) {
	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: file_path")
	}

	request := &Request{
		FilePath:           filePath,
		StartPage:          1,
		Mode:               cfg.DefaultExtractionMode,
		FilterHeaderFooter: true,
		CropImages:         true,
		MaxImageDimension:  cfg.MaxImageDimension,
		PageImageDPI:       cfg.PageImageDPI,
	}

	if raw, ok := args["start_page"].(float64); ok {
		request.StartPage = int(raw)
		if request.StartPage < 1 {
			return nil, fmt.Errorf("start_page must be at least 1")
		}
	}

	if raw, ok := args["end_page"].(float64); ok {
		endPage := int(raw)
		if endPage < 1 {
			return nil, fmt.Errorf("end_page must be at least 1")
		}
		request.EndPage = &endPage
	}

	if raw, ok := args["extraction_mode"].(string); ok && raw != "" {
		mode, err := config.ParseMode(raw)
		if err != nil {
			return nil, err
		}
		request.Mode = mode
	}

	if raw, ok := args["filter_header_footer"].(bool); ok {
		request.FilterHeaderFooter = raw
	}
	if raw, ok := args["crop_images"].(bool); ok {
		request.CropImages = raw
	}

	if raw, ok := args["max_image_dimension"].(float64); ok {
		request.MaxImageDimension = int(raw)
		if request.MaxImageDimension < 28 || request.MaxImageDimension > 4096 {
			return nil, fmt.Errorf("max_image_dimension must be between 28 and 4096")
		}
	}

	if raw, ok := args["page_image_dpi"].(float64); ok {
		request.PageImageDPI = int(raw)
		if request.PageImageDPI < 50 || request.PageImageDPI > 300 {
			return nil, fmt.Errorf("page_image_dpi must be between 50 and 300")
		}
	}

	return request, nil
}

// resolvePath absolutises the caller's path against the working directory
// and resolves symlinks when the target exists
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// openErrorResponse maps a document open failure onto the wire error kinds.
// The not-found and permission cases are normally caught by the pre-checks;
// they remain here for the races those checks cannot close.
func openErrorResponse(path string, err error) pdf.ErrorResponse {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return pdf.ErrorResponse{
			Error:   pdf.ErrFileNotFound,
			Message: fmt.Sprintf("PDF file not found: %s", path),
		}
	case errors.Is(err, fs.ErrPermission):
		return pdf.ErrorResponse{
			Error:   pdf.ErrPermissionDenied,
			Message: fmt.Sprintf("Permission denied accessing PDF: %s", path),
		}
	default:
		return pdf.ErrorResponse{
			Error:   pdf.ErrInvalidPDF,
			Message: fmt.Sprintf("Invalid or corrupted PDF file: %v", err),
		}
	}
}

// newToolResultJSON creates a new tool result with JSON content
func (t *ReadPDFTool) newToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// ProvideExtendedInfo provides detailed usage information for the read_pdf tool
func (t *ReadPDFTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Read the first pages of a report",
				Arguments: map[string]any{
					"file_path": "reports/annual_report_2024.pdf",
					"end_page":  5,
				},
				ExpectedResult: "JSON with pages 1-5 as ordered content blocks (text, tables as markdown, image placeholders), followed by the extracted images as separate image content parts",
			},
			{
				Description: "Read a scanned document as page images",
				Arguments: map[string]any{
					"file_path":       "scans/contract.pdf",
					"extraction_mode": "image_only",
				},
				ExpectedResult: "One rendered page image per page plus an extractable_char_count/text_hint diagnostic telling you whether 'auto' mode would recover usable text",
			},
			{
				Description: "Read a specific page range text-only",
				Arguments: map[string]any{
					"file_path":       "manual.pdf",
					"start_page":      11,
					"end_page":        20,
					"extraction_mode": "text_only",
				},
				ExpectedResult: "Pages 11-20 as text and table blocks only; no images are extracted or rendered regardless of text quality",
			},
			{
				Description: "Keep original image resolution",
				Arguments: map[string]any{
					"file_path":           "slides.pdf",
					"crop_images":         false,
					"max_image_dimension": 2048,
				},
				ExpectedResult: "Embedded images are returned without the downscaling pass, page renders still fit within 2048 pixels",
			},
		},
		CommonPatterns: []string{
			"Call list_pdfs first and pass its returned 'path' values straight into file_path",
			"Large documents are rejected with suggested_ranges - loop over those ranges instead of guessing page numbers",
			"If a page comes back with text_corrupted: true, the rendered page image carries the content the text blocks could not",
			"Use grep_pdf to locate the pages worth reading before spending a read_pdf call on them",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "PAGE_LIMIT_EXCEEDED or IMAGE_LIMIT_EXCEEDED errors",
				Solution: "The request spans more pages or images than the configured limits allow. Re-issue one read_pdf call per entry in the suggested_ranges array of the error response.",
			},
			{
				Problem:  "FILE_NOT_FOUND with a 'Did you mean' list",
				Solution: "The path did not resolve to a file. Pick one of the suggested_files entries, or run list_pdfs to see every PDF under the working directory.",
			},
			{
				Problem:  "PERMISSION_DENIED for a file that exists",
				Solution: "Files outside the working directory (and any configured allowed roots) are refused. Move the file under the working directory or add its root to PDFBLOCKS_ALLOWED_ROOTS.",
			},
			{
				Problem:  "Pages come back with empty content_blocks",
				Solution: "The page genuinely has no extractable text, or its text failed to parse. Retry with extraction_mode 'image_only' to see the rendered page.",
			},
		},
		ParameterDetails: map[string]string{
			"file_path":       "Relative paths resolve against the server's working directory. Missing files return fuzzy-matched suggestions instead of a bare error.",
			"extraction_mode": "'auto' suppresses corrupted text in favour of a page render; 'text_only' never renders; 'image_only' always renders and skips text extraction entirely.",
			"start_page":      "1-indexed and inclusive. Combined with end_page the range must stay within the configured per-request page limit.",
			"end_page":        "Defaults to the last page. Values past the end of the document are clamped silently.",
			"page_image_dpi":  "Only affects rendered page images (corrupted pages and image_only mode). Higher DPI costs tokens: 100 is usually enough for layout reading.",
		},
		WhenToUse:    "Use to hand PDF content to a model in reading order: reports, papers and manuals with mixed text, tables and figures, and scanned documents via image_only mode.",
		WhenNotToUse: "Don't use to locate text across many documents (grep_pdf is cheaper), to enumerate files (list_pdfs), or for password-protected PDFs, which fail as INVALID_PDF.",
	}
}
