package readpdf

import "github.com/pdfblocks/pdfblocks/internal/config"

// Request carries the parsed read_pdf arguments with defaults resolved
// against the loaded configuration
type Request struct {
	// FilePath is the PDF path as given by the caller, relative to the
	// working directory or absolute
	FilePath string `json:"file_path"`

	// StartPage is the first page to read, 1-indexed inclusive
	StartPage int `json:"start_page"`

	// EndPage is the last page to read; nil means the last page of the
	// document
	EndPage *int `json:"end_page,omitempty"`

	// Mode selects what to extract: auto, text_only or image_only
	Mode config.Mode `json:"extraction_mode"`

	// FilterHeaderFooter drops header/footer images and whites out the
	// header/footer bands of rendered pages
	FilterHeaderFooter bool `json:"filter_header_footer"`

	// CropImages downscales extracted images to MaxImageDimension
	CropImages bool `json:"crop_images"`

	// MaxImageDimension caps the longer image side in pixels
	MaxImageDimension int `json:"max_image_dimension"`

	// PageImageDPI is the rasterisation resolution for page renders
	PageImageDPI int `json:"page_image_dpi"`
}
