package listpdfs

// Request holds the parsed list_pdfs parameters.
type Request struct {
	// WorkingDirectory is the directory to search, relative or absolute.
	WorkingDirectory string `json:"working_directory"`

	// Recursive includes subdirectories in the search.
	Recursive bool `json:"recursive"`

	// MaxDepth bounds recursion: files more than MaxDepth directories below
	// the working directory are not listed.
	MaxDepth int `json:"max_depth"`

	// NamePattern is an optional glob the file name must match.
	NamePattern string `json:"name_pattern,omitempty"`
}

// PDFInfo describes one discovered PDF file.
type PDFInfo struct {
	// Name is the file name with extension.
	Name string `json:"name"`

	// Path is the absolute file path, usable directly with read_pdf.
	Path string `json:"path"`

	// Pages is the total page count.
	Pages int `json:"pages"`
}

// Result is the list_pdfs success payload.
type Result struct {
	// PDFs lists the files found, sorted by path.
	PDFs []PDFInfo `json:"pdfs"`

	// TotalCount is the number of files in PDFs.
	TotalCount int `json:"total_count"`

	// WorkingDirectory is the resolved directory that was searched.
	WorkingDirectory string `json:"working_directory"`
}
