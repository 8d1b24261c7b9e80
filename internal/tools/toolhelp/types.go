package toolhelp

import "github.com/pdfblocks/pdfblocks/internal/tools"

// Response is the help payload for one tool
type Response struct {
	// ToolName is the tool the help applies to
	ToolName string `json:"tool_name"`
	// Description is the tool's schema description
	Description string `json:"description"`
	// InputSchema is the tool's full parameter schema
	InputSchema any `json:"input_schema,omitempty"`
	// Help carries the examples, patterns and troubleshooting tips
	Help *tools.ExtendedHelp `json:"help,omitempty"`
}
