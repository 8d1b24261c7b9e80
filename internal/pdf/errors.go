package pdf

// ErrorKind is the machine-readable error category returned to MCP clients
// alongside a human-readable message
type ErrorKind string

const (
	ErrFileNotFound       ErrorKind = "FILE_NOT_FOUND"
	ErrPermissionDenied   ErrorKind = "PERMISSION_DENIED"
	ErrInvalidPDF         ErrorKind = "INVALID_PDF"
	ErrInvalidPageRange   ErrorKind = "INVALID_PAGE_RANGE"
	ErrPageLimitExceeded  ErrorKind = "PAGE_LIMIT_EXCEEDED"
	ErrImageLimitExceeded ErrorKind = "IMAGE_LIMIT_EXCEEDED"
	ErrDirectoryNotFound  ErrorKind = "DIRECTORY_NOT_FOUND"
	ErrNotADirectory      ErrorKind = "NOT_A_DIRECTORY"
	ErrGrepNotInstalled   ErrorKind = "PDFGREP_NOT_INSTALLED"
	ErrInvalidPattern     ErrorKind = "INVALID_PATTERN"
	ErrInternal           ErrorKind = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON envelope tools return in place of their success
// payload. Only the fields relevant to the failure are populated; the rest
// drop out of the serialized form.
type ErrorResponse struct {
	Error           ErrorKind        `json:"error"`
	Message         string           `json:"message"`
	TotalPages      int              `json:"total_pages,omitempty"`
	TotalImages     int              `json:"total_images,omitempty"`
	SuggestedRanges []SuggestedRange `json:"suggested_ranges,omitempty"`
	SuggestedFiles  []string         `json:"suggested_files,omitempty"`
	InstallHint     string           `json:"install_hint,omitempty"`
}
