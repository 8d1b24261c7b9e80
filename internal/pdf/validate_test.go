package pdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfblocks/pdfblocks/internal/config"
	"github.com/pdfblocks/pdfblocks/internal/pdf"
)

// fakeDoc implements pdf.DocumentInfo with a fixed page count and per-page
// image counts, recording which pages were queried
type fakeDoc struct {
	pages      int
	images     []int // indexed by pageNr-1, missing entries count as 0
	imageCalls []int
}

func (f *fakeDoc) PageCount() int { return f.pages }

func (f *fakeDoc) PageImageCount(pageNr int) int {
	f.imageCalls = append(f.imageCalls, pageNr)
	if pageNr-1 < len(f.images) {
		return f.images[pageNr-1]
	}
	return 0
}

func TestValidator_Validate_WithinLimits(t *testing.T) {
	doc := &fakeDoc{pages: 8}
	v := pdf.NewValidator(config.Default(), doc)

	result := v.Validate(1, nil)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)
	assert.Equal(t, 8, result.EndPage)
	assert.Empty(t, result.SuggestedRanges)
}

func TestValidator_Validate_ClampsEndToDocument(t *testing.T) {
	doc := &fakeDoc{pages: 15}
	v := pdf.NewValidator(config.Default(), doc)

	end := 19
	result := v.Validate(10, &end)

	require.True(t, result.Valid)
	// 10-19 on a 15 page document clamps silently to 10-15, six pages
	assert.Equal(t, 15, result.EndPage)
	assert.Equal(t, []int{10, 11, 12, 13, 14, 15}, doc.imageCalls)
}

func TestValidator_Validate_StartBeyondDocument(t *testing.T) {
	doc := &fakeDoc{pages: 3}
	v := pdf.NewValidator(config.Default(), doc)

	result := v.Validate(5, nil)

	require.False(t, result.Valid)
	assert.Equal(t, pdf.ErrInvalidPageRange, result.Error)
	assert.Contains(t, result.Message, "Start page (5) is out of document range")
	assert.Contains(t, result.Message, "1-3")
	assert.Equal(t, 3, result.TotalPages)
	// Rejected before any image counting
	assert.Empty(t, doc.imageCalls)
}

func TestValidator_Validate_StartAtLastPage(t *testing.T) {
	doc := &fakeDoc{pages: 3}
	v := pdf.NewValidator(config.Default(), doc)

	result := v.Validate(3, nil)

	assert.True(t, result.Valid)
}

func TestValidator_Validate_EndBeforeStart(t *testing.T) {
	doc := &fakeDoc{pages: 20}
	v := pdf.NewValidator(config.Default(), doc)

	end := 2
	result := v.Validate(5, &end)

	require.False(t, result.Valid)
	assert.Equal(t, pdf.ErrInvalidPageRange, result.Error)
	assert.Contains(t, result.Message, "End page (2) is less than start page (5)")
	assert.Contains(t, result.Message, "5-14")
	assert.Equal(t, 20, result.TotalPages)
}

func TestValidator_Validate_PageLimitExceeded(t *testing.T) {
	doc := &fakeDoc{pages: 30}
	v := pdf.NewValidator(config.Default(), doc)

	result := v.Validate(1, nil)

	require.False(t, result.Valid)
	assert.Equal(t, pdf.ErrPageLimitExceeded, result.Error)
	assert.Contains(t, result.Message, "Requested page count (30) exceeds the limit (10)")
	assert.Equal(t, 30, result.TotalPages)

	expected := []pdf.SuggestedRange{
		{StartPage: 1, EndPage: 10, EstimatedImages: 0, PageCount: 10},
		{StartPage: 11, EndPage: 20, EstimatedImages: 0, PageCount: 10},
		{StartPage: 21, EndPage: 30, EstimatedImages: 0, PageCount: 10},
	}
	assert.Equal(t, expected, result.SuggestedRanges)
}

func TestValidator_Validate_ImageLimitExceeded(t *testing.T) {
	doc := &fakeDoc{pages: 5, images: []int{20, 20, 20, 0, 0}}
	v := pdf.NewValidator(config.Default(), doc)

	result := v.Validate(1, nil)

	require.False(t, result.Valid)
	assert.Equal(t, pdf.ErrImageLimitExceeded, result.Error)
	assert.Contains(t, result.Message, "Image count in the requested range (60) exceeds the limit (50)")
	assert.Equal(t, 60, result.TotalImages)

	expected := []pdf.SuggestedRange{
		{StartPage: 1, EndPage: 2, EstimatedImages: 40, PageCount: 2},
		{StartPage: 3, EndPage: 5, EstimatedImages: 20, PageCount: 3},
	}
	assert.Equal(t, expected, result.SuggestedRanges)
}

func TestValidator_Validate_ImageCountAtLimit(t *testing.T) {
	doc := &fakeDoc{pages: 2, images: []int{25, 25}}
	v := pdf.NewValidator(config.Default(), doc)

	result := v.Validate(1, nil)

	assert.True(t, result.Valid)
}

func TestValidator_SuggestRanges_SinglePageOverflow(t *testing.T) {
	// One page alone exceeds the image limit: it still gets its own range so
	// the split always makes forward progress
	doc := &fakeDoc{pages: 2, images: []int{100, 0}}
	v := pdf.NewValidator(config.Default(), doc)

	ranges := v.SuggestRanges(1, 2)

	expected := []pdf.SuggestedRange{
		{StartPage: 1, EndPage: 1, EstimatedImages: 100, PageCount: 1},
		{StartPage: 2, EndPage: 2, EstimatedImages: 0, PageCount: 1},
	}
	assert.Equal(t, expected, ranges)
}

func TestValidator_SuggestRanges_CapsRangeCount(t *testing.T) {
	doc := &fakeDoc{pages: 100}
	v := pdf.NewValidator(config.Default(), doc)

	ranges := v.SuggestRanges(1, 100)

	require.Len(t, ranges, 5)
	assert.Equal(t, 41, ranges[4].StartPage)
	assert.Equal(t, 50, ranges[4].EndPage)
}

func TestValidator_SuggestRanges_ContiguousAndWithinLimits(t *testing.T) {
	cfg := config.Default()
	doc := &fakeDoc{pages: 23}
	doc.images = make([]int, doc.pages)
	for i := range doc.images {
		doc.images[i] = (i * 13) % 17
	}
	v := pdf.NewValidator(cfg, doc)

	ranges := v.SuggestRanges(1, 23)

	require.NotEmpty(t, ranges)
	assert.LessOrEqual(t, len(ranges), cfg.MaxSuggestedRanges)
	assert.Equal(t, 1, ranges[0].StartPage)

	for i, r := range ranges {
		assert.Equal(t, r.EndPage-r.StartPage+1, r.PageCount)
		assert.LessOrEqual(t, r.PageCount, cfg.MaxPagesPerRequest)
		if r.PageCount > 1 {
			assert.LessOrEqual(t, r.EstimatedImages, cfg.MaxImagesPerRequest)
		}
		if i > 0 {
			assert.Equal(t, ranges[i-1].EndPage+1, r.StartPage)
		}
	}
}
