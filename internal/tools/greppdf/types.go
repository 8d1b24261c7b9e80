package greppdf

// Request holds the parsed grep_pdf parameters.
type Request struct {
	// Pattern is the search pattern, a regex unless FixedStrings is set.
	Pattern string `json:"pattern"`

	// FilePath targets one PDF. Empty means search WorkingDirectory.
	FilePath string `json:"file_path,omitempty"`

	// WorkingDirectory is the directory searched when FilePath is empty.
	WorkingDirectory string `json:"working_directory"`

	// IgnoreCase makes the search case-insensitive.
	IgnoreCase bool `json:"ignore_case"`

	// FixedStrings treats Pattern as a literal string.
	FixedStrings bool `json:"fixed_strings"`

	// Context is the number of context lines around each match, 0-5.
	Context int `json:"context"`

	// MaxCount caps the matches returned per file, 1-100.
	MaxCount int `json:"max_count"`

	// Recursive includes subdirectories in directory searches.
	Recursive bool `json:"recursive"`

	// StartPage is the first page searched, 1-indexed.
	StartPage int `json:"start_page"`

	// EndPage is the last page searched. Nil means the last page.
	EndPage *int `json:"end_page,omitempty"`
}

// Match is a single matching line.
type Match struct {
	// File is the PDF file path as reported by pdfgrep.
	File string `json:"file"`

	// Page is the 1-indexed page the line was found on.
	Page int `json:"page"`

	// Text is the matched line.
	Text string `json:"text"`
}

// Result is the grep_pdf success payload.
type Result struct {
	// Matches lists the matching lines in pdfgrep output order.
	Matches []Match `json:"matches"`

	// Total is the number of matches returned.
	Total int `json:"total"`

	// Truncated is set when the match count hit the max_count cap.
	Truncated bool `json:"truncated"`

	// FilesSearched is the number of distinct files with matches.
	FilesSearched int `json:"files_searched"`
}
