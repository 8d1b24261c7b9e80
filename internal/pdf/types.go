package pdf

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockTable BlockType = "table"
	BlockImage BlockType = "image"
)

// Block is a single piece of page content positioned on the vertical axis.
// Top is the distance from the top of the page in PDF points and is only
// used to order blocks; it is not serialised.
type Block struct {
	Type    BlockType `json:"type"`
	Content string    `json:"content,omitempty"`

	top float64
}

// NewBlock creates a block at the given vertical position.
func NewBlock(blockType BlockType, content string, top float64) Block {
	return Block{Type: blockType, Content: content, top: top}
}

// Top returns the block's vertical position.
func (b Block) Top() float64 { return b.top }

// TextRegion is a span of page text between table regions.
type TextRegion struct {
	// Top is the region's vertical position in PDF points
	Top float64
	// Text is the extracted text for the region
	Text string
}

// Table is a positioned cell matrix extracted from a page.
type Table struct {
	// Top is the table's vertical position in PDF points
	Top float64
	// Rows holds the cell text, row-major; merged continuation cells are ""
	Rows [][]string
}

// EmbeddedImage is a decoded image object from a page's resources.
type EmbeddedImage struct {
	// Data is the encoded image (PNG after processing)
	Data []byte
	// Width and Height are pixel dimensions of the decoded image
	Width  int
	Height int
	// DisplayWidth and DisplayHeight are the size the image is drawn at on
	// the page, in PDF points; zero when unknown
	DisplayWidth  int
	DisplayHeight int
	// Top is the image's vertical position on the page in PDF points
	Top float64
}

// ExtractedImage is an image returned to the client out of band. Its index
// in the result list matches the [IMAGE_N] placeholder in the page blocks.
type ExtractedImage struct {
	// Data is the encoded image bytes
	Data []byte
	// Format is "jpeg" for rendered pages or "png" for embedded images
	Format string
}

// PageData is the extraction result for a single page.
type PageData struct {
	// PageNumber is 1-indexed
	PageNumber int `json:"page_number"`

	// ContentBlocks holds text, table and image blocks in reading order
	ContentBlocks []Block `json:"content_blocks"`

	// TextCorrupted is set when the page text failed the corruption check
	TextCorrupted *bool `json:"text_corrupted,omitempty"`

	// CorruptionRatio is the detector's ratio, present only when corrupted
	CorruptionRatio *float64 `json:"corruption_ratio,omitempty"`

	// PageImage is the [IMAGE_N] placeholder for the rendered page, when one
	// was produced
	PageImage string `json:"page_image,omitempty"`

	// PageImageWidth and PageImageHeight are the rendered image dimensions
	PageImageWidth  int `json:"page_image_width,omitempty"`
	PageImageHeight int `json:"page_image_height,omitempty"`

	// ExtractableCharCount reports how much text the page carries; only set
	// in image_only mode when the probe found any
	ExtractableCharCount *int `json:"extractable_char_count,omitempty"`

	// TextHint explains whether switching modes would recover text; only set
	// in image_only mode
	TextHint string `json:"text_hint,omitempty"`
}

// ReadResult is the full result of a read request.
type ReadResult struct {
	// FilePath is the resolved path of the document
	FilePath string `json:"file_path"`

	// Pages holds the per-page results in request order
	Pages []PageData `json:"pages"`

	// TotalPagesRead is the number of pages processed
	TotalPagesRead int `json:"total_pages_read"`

	// TotalImages counts every extracted image, page renders included
	TotalImages int `json:"total_images"`

	// Images are the out-of-band image payloads in placeholder order
	Images []ExtractedImage `json:"-"`
}

// SuggestedRange is a page range that respects the configured limits.
type SuggestedRange struct {
	// StartPage and EndPage are 1-indexed and inclusive
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`

	// EstimatedImages is the image count accumulated for the range
	EstimatedImages int `json:"estimated_images"`

	// PageCount is the number of pages in the range
	PageCount int `json:"page_count"`
}
