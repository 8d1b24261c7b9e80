package readpdf_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfblocks/pdfblocks/internal/config"
	"github.com/pdfblocks/pdfblocks/internal/pdf"
	"github.com/pdfblocks/pdfblocks/internal/security"
	"github.com/pdfblocks/pdfblocks/internal/testutil"
	"github.com/pdfblocks/pdfblocks/internal/tools/readpdf"
)

func executeTool(t *testing.T, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := &readpdf.ReadPDFTool{}
	result, err := tool.Execute(testutil.CreateTestContext(), testutil.CreateTestLogger(), testutil.CreateTestCache(), args)
	require.NoError(t, err)
	return result
}

// allowAllFiles clears the global security manager for the duration of a test
// so file access checks pass regardless of the process working directory.
func allowAllFiles(t *testing.T) {
	t.Helper()
	prev := security.SetGlobalManager(nil)
	t.Cleanup(func() { security.SetGlobalManager(prev) })
}

func TestReadPDFTool_Definition(t *testing.T) {
	tool := &readpdf.ReadPDFTool{}
	def := tool.Definition()

	assert.Equal(t, "read_pdf", def.Name)
	assert.Contains(t, def.Description, "Read PDF content")
	assert.Contains(t, def.Description, "10 pages per request")
}

func TestReadPDFTool_ParseRequest(t *testing.T) {
	tool := &readpdf.ReadPDFTool{}
	cfg := config.Default()

	t.Run("DefaultsApplied", func(t *testing.T) {
		request, err := tool.ParseRequest(cfg, map[string]any{"file_path": "doc.pdf"})
		require.NoError(t, err)

		assert.Equal(t, "doc.pdf", request.FilePath)
		assert.Equal(t, 1, request.StartPage)
		assert.Nil(t, request.EndPage)
		assert.Equal(t, config.ModeAuto, request.Mode)
		assert.True(t, request.FilterHeaderFooter)
		assert.True(t, request.CropImages)
		assert.Equal(t, cfg.MaxImageDimension, request.MaxImageDimension)
		assert.Equal(t, cfg.PageImageDPI, request.PageImageDPI)
	})

	t.Run("OverridesApplied", func(t *testing.T) {
		request, err := tool.ParseRequest(cfg, map[string]any{
			"file_path":            "doc.pdf",
			"start_page":           float64(3),
			"end_page":             float64(7),
			"extraction_mode":      "image_only",
			"filter_header_footer": false,
			"crop_images":          false,
			"max_image_dimension":  float64(2048),
			"page_image_dpi":       float64(150),
		})
		require.NoError(t, err)

		assert.Equal(t, 3, request.StartPage)
		require.NotNil(t, request.EndPage)
		assert.Equal(t, 7, *request.EndPage)
		assert.Equal(t, config.ModeImageOnly, request.Mode)
		assert.False(t, request.FilterHeaderFooter)
		assert.False(t, request.CropImages)
		assert.Equal(t, 2048, request.MaxImageDimension)
		assert.Equal(t, 150, request.PageImageDPI)
	})

	t.Run("InvalidParameters", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]any
			want string
		}{
			{"MissingFilePath", map[string]any{}, "file_path"},
			{"StartPageBelowOne", map[string]any{"file_path": "doc.pdf", "start_page": float64(0)}, "start_page"},
			{"EndPageBelowOne", map[string]any{"file_path": "doc.pdf", "end_page": float64(0)}, "end_page"},
			{"UnknownMode", map[string]any{"file_path": "doc.pdf", "extraction_mode": "ocr"}, "extraction mode"},
			{"DimensionTooSmall", map[string]any{"file_path": "doc.pdf", "max_image_dimension": float64(27)}, "max_image_dimension"},
			{"DimensionTooLarge", map[string]any{"file_path": "doc.pdf", "max_image_dimension": float64(5000)}, "max_image_dimension"},
			{"DPITooLow", map[string]any{"file_path": "doc.pdf", "page_image_dpi": float64(49)}, "page_image_dpi"},
			{"DPITooHigh", map[string]any{"file_path": "doc.pdf", "page_image_dpi": float64(301)}, "page_image_dpi"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tool.ParseRequest(cfg, tt.args)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			})
		}
	})
}

func TestReadPDFTool_Execute_InvalidArguments(t *testing.T) {
	allowAllFiles(t)

	tool := &readpdf.ReadPDFTool{}
	_, err := tool.Execute(testutil.CreateTestContext(), testutil.CreateTestLogger(), testutil.CreateTestCache(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameters")
}

func TestReadPDFTool_Execute_FileNotFoundSuggestions(t *testing.T) {
	allowAllFiles(t)
	dir := t.TempDir()
	testutil.WritePDF(t, filepath.Join(dir, "annual_report_2024.pdf"), 1)
	t.Chdir(dir)

	result := executeTool(t, map[string]any{"file_path": "anual_report_2024.pdf"})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrFileNotFound, resp.Error)
	assert.Contains(t, resp.Message, "PDF file not found")
	assert.Contains(t, resp.Message, "Did you mean one of these?")
	assert.Equal(t, []string{"annual_report_2024.pdf"}, resp.SuggestedFiles)
}

func TestReadPDFTool_Execute_AccessOutsideAllowedRoots(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	testutil.WritePDF(t, filepath.Join(outside, "doc.pdf"), 1)
	t.Chdir(root)

	prev := security.SetGlobalManager(security.NewManagerWithRoots(testutil.CreateTestLogger(), []string{root}, nil))
	t.Cleanup(func() { security.SetGlobalManager(prev) })

	result := executeTool(t, map[string]any{"file_path": filepath.Join(outside, "doc.pdf")})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrPermissionDenied, resp.Error)
	assert.Equal(t, "Access denied: File path must be within the current working directory", resp.Message)
}

func TestReadPDFTool_Execute_UnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	allowAllFiles(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.pdf")
	testutil.WritePDF(t, path, 1)
	require.NoError(t, os.Chmod(path, 0o000))
	t.Chdir(dir)

	result := executeTool(t, map[string]any{"file_path": "locked.pdf"})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrPermissionDenied, resp.Error)
	assert.Contains(t, resp.Message, "Permission denied: Cannot read file")
}

func TestReadPDFTool_Execute_CorruptFile(t *testing.T) {
	allowAllFiles(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("this is not a pdf"), 0o644))
	t.Chdir(dir)

	result := executeTool(t, map[string]any{"file_path": "broken.pdf"})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrInvalidPDF, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Message, "Invalid or corrupted PDF file:"),
		"unexpected message: %s", resp.Message)
}

func TestReadPDFTool_Execute_PageLimit(t *testing.T) {
	allowAllFiles(t)
	dir := t.TempDir()
	testutil.WritePDF(t, filepath.Join(dir, "big.pdf"), 12)
	t.Chdir(dir)

	result := executeTool(t, map[string]any{"file_path": "big.pdf"})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrPageLimitExceeded, resp.Error)
	assert.Contains(t, resp.Message, "Requested page count (12) exceeds the limit (10)")
	assert.Equal(t, 12, resp.TotalPages)
	require.Len(t, resp.SuggestedRanges, 2)
	assert.Equal(t, pdf.SuggestedRange{StartPage: 1, EndPage: 10, PageCount: 10}, resp.SuggestedRanges[0])
	assert.Equal(t, pdf.SuggestedRange{StartPage: 11, EndPage: 12, PageCount: 2}, resp.SuggestedRanges[1])
}

func TestReadPDFTool_Execute_InvalidRange(t *testing.T) {
	allowAllFiles(t)
	dir := t.TempDir()
	testutil.WritePDF(t, filepath.Join(dir, "doc.pdf"), 5)
	t.Chdir(dir)

	t.Run("StartBeyondDocument", func(t *testing.T) {
		result := executeTool(t, map[string]any{"file_path": "doc.pdf", "start_page": float64(9)})

		var resp pdf.ErrorResponse
		testutil.ResultJSON(t, result, &resp)
		assert.Equal(t, pdf.ErrInvalidPageRange, resp.Error)
		assert.Equal(t, "Start page (9) is out of document range. This document has 5 pages. Please request pages between 1-5.", resp.Message)
		assert.Equal(t, 5, resp.TotalPages)
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		result := executeTool(t, map[string]any{"file_path": "doc.pdf", "start_page": float64(3), "end_page": float64(1)})

		var resp pdf.ErrorResponse
		testutil.ResultJSON(t, result, &resp)
		assert.Equal(t, pdf.ErrInvalidPageRange, resp.Error)
		assert.Equal(t, "End page (1) is less than start page (3). This document has 5 pages. Please request a valid range (e.g., 3-5).", resp.Message)
	})
}

func TestReadPDFTool_Execute_EmptyDocument(t *testing.T) {
	allowAllFiles(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	testutil.WritePDF(t, path, 2)
	t.Chdir(dir)

	result := executeTool(t, map[string]any{"file_path": "doc.pdf"})

	var out pdf.ReadResult
	testutil.ResultJSON(t, result, &out)

	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	assert.Equal(t, resolved, out.FilePath)
	assert.Equal(t, 2, out.TotalPagesRead)
	assert.Equal(t, 0, out.TotalImages)
	require.Len(t, out.Pages, 2)
	assert.Equal(t, 1, out.Pages[0].PageNumber)
	assert.Equal(t, 2, out.Pages[1].PageNumber)
	assert.Empty(t, out.Pages[0].ContentBlocks)
	assert.Nil(t, out.Pages[0].TextCorrupted)
	assert.Empty(t, testutil.ResultImages(t, result))
}

func TestReadPDFTool_Execute_EmbeddedImage(t *testing.T) {
	allowAllFiles(t)
	dir := t.TempDir()

	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var jpegBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, src, nil))
	testutil.WritePDFWithImage(t, filepath.Join(dir, "figure.pdf"), jpegBuf.Bytes(), 64, 48)
	t.Chdir(dir)

	result := executeTool(t, map[string]any{"file_path": "figure.pdf"})

	var out pdf.ReadResult
	testutil.ResultJSON(t, result, &out)
	assert.Equal(t, 1, out.TotalImages)
	require.Len(t, out.Pages, 1)
	require.Len(t, out.Pages[0].ContentBlocks, 1)
	assert.Equal(t, pdf.BlockImage, out.Pages[0].ContentBlocks[0].Type)
	assert.Equal(t, "[IMAGE_0]", out.Pages[0].ContentBlocks[0].Content)

	images := testutil.ResultImages(t, result)
	require.Len(t, images, 1)
	assert.Equal(t, "image/png", images[0].MIMEType)

	raw, err := base64.StdEncoding.DecodeString(images[0].Data)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
	assert.Equal(t, 48, decoded.Bounds().Dy())
}
