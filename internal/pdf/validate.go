package pdf

import (
	"fmt"

	"github.com/pdfblocks/pdfblocks/internal/config"
)

// DocumentInfo is the pre-scan view of a document the validator works from:
// the page count and the number of embedded image objects on each page.
// Counting image objects is cheap relative to extraction, which is the whole
// point of validating before any extraction work starts.
type DocumentInfo interface {
	PageCount() int
	PageImageCount(pageNr int) int
}

// ValidationResult reports whether a read request may proceed. On rejection
// it carries the error kind, an actionable message and, for limit
// violations, alternative page ranges that fit within the limits. On
// success EndPage holds the request's end clamped to the document, ready
// for the extraction loop.
type ValidationResult struct {
	Valid           bool
	Error           ErrorKind
	Message         string
	EndPage         int
	TotalPages      int
	TotalImages     int
	SuggestedRanges []SuggestedRange
}

// Validator pre-checks read requests against the configured page and image
// limits before any extraction work is done
type Validator struct {
	cfg config.Config
	doc DocumentInfo
}

// NewValidator returns a validator for one document
func NewValidator(cfg config.Config, doc DocumentInfo) *Validator {
	return &Validator{cfg: cfg, doc: doc}
}

// Validate checks a 1-indexed page range request. A nil endPage means "to
// the last page". An endPage beyond the document is clamped silently; a
// start page beyond the document or an inverted range is an error. Page and
// image limits are enforced in that order, each rejection carrying suggested
// sub-ranges the caller can retry with.
func (v *Validator) Validate(startPage int, endPage *int) ValidationResult {
	totalPages := v.doc.PageCount()

	if startPage > totalPages {
		return ValidationResult{
			Error: ErrInvalidPageRange,
			Message: fmt.Sprintf(
				"Start page (%d) is out of document range. This document has %d pages. Please request pages between 1-%d.",
				startPage, totalPages, totalPages),
			TotalPages: totalPages,
		}
	}

	if endPage != nil && *endPage < startPage {
		return ValidationResult{
			Error: ErrInvalidPageRange,
			Message: fmt.Sprintf(
				"End page (%d) is less than start page (%d). This document has %d pages. Please request a valid range (e.g., %d-%d).",
				*endPage, startPage, totalPages, startPage, min(startPage+9, totalPages)),
			TotalPages: totalPages,
		}
	}

	actualEnd := totalPages
	if endPage != nil {
		actualEnd = min(*endPage, totalPages)
	}
	pageCount := actualEnd - startPage + 1

	if pageCount > v.cfg.MaxPagesPerRequest {
		return ValidationResult{
			Error: ErrPageLimitExceeded,
			Message: fmt.Sprintf(
				"Requested page count (%d) exceeds the limit (%d). This document has %d pages. Please read in multiple batches using the suggested ranges or invoke a separate agent.",
				pageCount, v.cfg.MaxPagesPerRequest, totalPages),
			TotalPages:      totalPages,
			SuggestedRanges: v.SuggestRanges(startPage, actualEnd),
		}
	}

	totalImages := 0
	for pageNr := startPage; pageNr <= actualEnd; pageNr++ {
		if pageNr > totalPages {
			break
		}
		totalImages += v.doc.PageImageCount(pageNr)
	}

	if totalImages > v.cfg.MaxImagesPerRequest {
		return ValidationResult{
			Error: ErrImageLimitExceeded,
			Message: fmt.Sprintf(
				"Image count in the requested range (%d) exceeds the limit (%d). Please read in smaller batches using the suggested ranges, select a page range with fewer images, or invoke a separate agent to process.",
				totalImages, v.cfg.MaxImagesPerRequest),
			TotalPages:      totalPages,
			TotalImages:     totalImages,
			SuggestedRanges: v.SuggestRanges(startPage, actualEnd),
		}
	}

	return ValidationResult{Valid: true, EndPage: actualEnd, TotalPages: totalPages}
}

// SuggestRanges splits [startPage, endPage] into consecutive sub-ranges that
// each respect the page limit and, as far as possible, the image limit. The
// split is greedy and image-density-aware: a range tentatively spans the
// full page budget, then ends early before the page that would push its
// image total over the limit. A range's first page is always included even
// when that page alone exceeds the image limit, which guarantees forward
// progress; such a degenerate single-page range reports its real image
// count. At most MaxSuggestedRanges ranges are returned, so wide requests
// may not be covered to endPage.
func (v *Validator) SuggestRanges(startPage, endPage int) []SuggestedRange {
	var ranges []SuggestedRange
	totalPages := v.doc.PageCount()
	currentStart := startPage

	for currentStart <= endPage && len(ranges) < v.cfg.MaxSuggestedRanges {
		currentEnd := min(currentStart+v.cfg.MaxPagesPerRequest-1, endPage)
		currentImages := 0
		finalEnd := currentStart

		for pageNr := currentStart; pageNr <= currentEnd; pageNr++ {
			if pageNr > totalPages {
				break
			}

			pageImages := v.doc.PageImageCount(pageNr)

			if currentImages+pageImages > v.cfg.MaxImagesPerRequest {
				if pageNr == currentStart {
					currentImages += pageImages
					finalEnd = pageNr
				} else {
					finalEnd = pageNr - 1
				}
				break
			}

			currentImages += pageImages
			finalEnd = pageNr
		}

		ranges = append(ranges, SuggestedRange{
			StartPage:       currentStart,
			EndPage:         finalEnd,
			EstimatedImages: currentImages,
			PageCount:       finalEnd - currentStart + 1,
		})

		currentStart = finalEnd + 1
	}

	return ranges
}
