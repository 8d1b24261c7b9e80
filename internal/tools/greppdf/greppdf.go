// Package greppdf implements the grep_pdf tool: text search across PDF
// files by shelling out to pdfgrep, with page-aware match parsing.
package greppdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pdfblocks/pdfblocks/internal/pdf"
	"github.com/pdfblocks/pdfblocks/internal/registry"
	"github.com/pdfblocks/pdfblocks/internal/security"
	"github.com/pdfblocks/pdfblocks/internal/tools"
)

// grepTimeout bounds one pdfgrep run
const grepTimeout = 60 * time.Second

// pdfgrepCommandEnv overrides the PATH lookup for the pdfgrep binary and may
// carry extra flags, split with shell quoting rules
const pdfgrepCommandEnv = "PDFBLOCKS_PDFGREP_COMMAND"

const installHint = "brew install pdfgrep (macOS) or apt install pdfgrep (Ubuntu)"

// GrepPDFTool searches PDF text without page limits
type GrepPDFTool struct{}

// init registers the grep_pdf tool
func init() {
	registry.Register(&GrepPDFTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *GrepPDFTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"grep_pdf",
		mcp.WithDescription("Search text in PDFs. Use instead of read_pdf to find specific text. Returns matching lines with page numbers. NOTE: No page limit (unlike read_pdf's 10-page limit)."),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Search pattern (regex by default)"),
		),
		mcp.WithString("file_path",
			mcp.Description("Specific PDF file. If not provided, searches ALL PDFs in working_directory"),
		),
		mcp.WithString("working_directory",
			mcp.Description("Base directory for search (only used when file_path is not provided)"),
			mcp.DefaultString("."),
		),
		mcp.WithBoolean("ignore_case",
			mcp.Description("Case-insensitive search"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("fixed_strings",
			mcp.Description("Treat pattern as literal string, not regex"),
			mcp.DefaultBool(false),
		),
		mcp.WithNumber("context",
			mcp.Description("Lines of context before/after match (0-5, default: 2)"),
			mcp.DefaultNumber(2),
		),
		mcp.WithNumber("max_count",
			mcp.Description("Maximum matches to return (1-100)"),
			mcp.DefaultNumber(20),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Include subdirectories when searching directory"),
			mcp.DefaultBool(true),
		),
		mcp.WithNumber("start_page",
			mcp.Description("Start page (1-indexed, inclusive)"),
			mcp.DefaultNumber(1),
		),
		mcp.WithNumber("end_page",
			mcp.Description("End page (1-indexed, inclusive, default: last page)"),
		),
	)
}

// Execute runs pdfgrep against one file or a directory tree and returns the
// parsed matches as indented JSON. The binary is resolved before anything
// else so a missing installation is reported the same way regardless of the
// arguments. Domain failures come back as a JSON error envelope.
func (t *GrepPDFTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	base, err := pdfgrepCommand()
	if err != nil {
		logger.WithError(err).Warn("pdfgrep is not available")
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:       pdf.ErrGrepNotInstalled,
			Message:     "pdfgrep is not installed. Please install it first.",
			InstallHint: installHint,
		})
	}

	request, err := t.ParseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	reqLog := logger.WithFields(logrus.Fields{
		"request_id": uuid.New().String(),
		"pattern":    request.Pattern,
	})

	dirMode := request.FilePath == ""

	var target string
	if dirMode {
		target, err = resolvePath(request.WorkingDirectory)
		if err != nil {
			return nil, err
		}
		info, statErr := os.Stat(target)
		if statErr != nil {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrDirectoryNotFound,
				Message: fmt.Sprintf("Directory not found: %s", target),
			})
		}
		if !info.IsDir() {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrDirectoryNotFound,
				Message: fmt.Sprintf("Not a directory: %s", target),
			})
		}
	} else {
		target, err = resolvePath(request.FilePath)
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(target); statErr != nil {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrFileNotFound,
				Message: fmt.Sprintf("PDF file not found: %s", target),
			})
		}
		if !strings.EqualFold(filepath.Ext(target), ".pdf") {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrFileNotFound,
				Message: fmt.Sprintf("Not a PDF file: %s", target),
			})
		}
	}

	if err := security.CheckFileAccess(target); err != nil {
		reqLog.WithError(err).Warn("Search target blocked")
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrPermissionDenied,
			Message: err.Error(),
		})
	}

	argv := buildCommand(base, request, dirMode, target)
	reqLog.WithField("command", strings.Join(argv, " ")).Info("Running pdfgrep")

	runCtx, cancel := context.WithTimeout(ctx, grepTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if dirMode {
		cmd.Dir = target
	} else {
		cmd.Dir = filepath.Dir(target)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrInternal,
			Message: "Search timed out after 60 seconds",
		})
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrInternal,
				Message: fmt.Sprintf("Error during search: %v", runErr),
			})
		}
		exitCode = exitErr.ExitCode()
	}

	// pdfgrep exits 1 for "no matches", which is a normal empty result.
	// Exit 2 covers real failures, invalid regexes included.
	if exitCode == 2 {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		if strings.Contains(errMsg, "Invalid") || strings.Contains(strings.ToLower(errMsg), "regex") {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrInvalidPattern,
				Message: fmt.Sprintf("Invalid search pattern: %s", errMsg),
			})
		}
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrInternal,
			Message: fmt.Sprintf("pdfgrep error: %s", errMsg),
		})
	}

	matches, filesFound := parseMatches(stdout.String())

	reqLog.WithFields(logrus.Fields{
		"total": len(matches),
		"files": filesFound,
	}).Debug("grep_pdf completed")

	return t.newToolResultJSON(Result{
		Matches:       matches,
		Total:         len(matches),
		Truncated:     len(matches) >= request.MaxCount,
		FilesSearched: filesFound,
	})
}

// ParseRequest parses and validates the raw tool arguments
func (t *GrepPDFTool) ParseRequest(args map[string]any) (*Request, error) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: pattern")
	}

	request := &Request{
		Pattern:          pattern,
		WorkingDirectory: ".",
		Context:          2,
		MaxCount:         20,
		Recursive:        true,
		StartPage:        1,
	}

	if filePath, ok := args["file_path"].(string); ok {
		request.FilePath = filePath
	}
	if dir, ok := args["working_directory"].(string); ok && dir != "" {
		request.WorkingDirectory = dir
	}
	if ignoreCase, ok := args["ignore_case"].(bool); ok {
		request.IgnoreCase = ignoreCase
	}
	if fixedStrings, ok := args["fixed_strings"].(bool); ok {
		request.FixedStrings = fixedStrings
	}
	if raw, ok := args["context"].(float64); ok {
		contextLines := int(raw)
		if contextLines < 0 || contextLines > 5 {
			return nil, fmt.Errorf("context must be between 0 and 5")
		}
		request.Context = contextLines
	}
	if raw, ok := args["max_count"].(float64); ok {
		maxCount := int(raw)
		if maxCount < 1 || maxCount > 100 {
			return nil, fmt.Errorf("max_count must be between 1 and 100")
		}
		request.MaxCount = maxCount
	}
	if recursive, ok := args["recursive"].(bool); ok {
		request.Recursive = recursive
	}
	if raw, ok := args["start_page"].(float64); ok {
		startPage := int(raw)
		if startPage < 1 {
			return nil, fmt.Errorf("start_page must be at least 1")
		}
		request.StartPage = startPage
	}
	if raw, ok := args["end_page"].(float64); ok {
		endPage := int(raw)
		if endPage < 1 {
			return nil, fmt.Errorf("end_page must be at least 1")
		}
		request.EndPage = &endPage
	}

	return request, nil
}

// pdfgrepCommand resolves the pdfgrep invocation from the override variable
// or the PATH
func pdfgrepCommand() ([]string, error) {
	if custom := os.Getenv(pdfgrepCommandEnv); custom != "" {
		parts, err := shlex.Split(custom)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", pdfgrepCommandEnv, err)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("invalid %s: empty command", pdfgrepCommandEnv)
		}
		return parts, nil
	}

	path, err := exec.LookPath("pdfgrep")
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// buildCommand assembles the pdfgrep argument vector. Page numbers and file
// names are always requested since the output parser depends on them. The
// page range flag is only added for non-default ranges; the open end is
// capped at 9999, which pdfgrep clamps to the document.
func buildCommand(base []string, request *Request, dirMode bool, target string) []string {
	argv := append([]string(nil), base...)
	argv = append(argv, "-n", "-H")

	if request.IgnoreCase {
		argv = append(argv, "-i")
	}
	if request.FixedStrings {
		argv = append(argv, "-F")
	}
	if request.Context > 0 {
		argv = append(argv, "-C", strconv.Itoa(request.Context))
	}
	argv = append(argv, "-m", strconv.Itoa(request.MaxCount))
	if request.Recursive && dirMode {
		argv = append(argv, "-r")
	}
	if request.StartPage != 1 || request.EndPage != nil {
		end := 9999
		if request.EndPage != nil {
			end = *request.EndPage
		}
		argv = append(argv, "--page-range", fmt.Sprintf("%d-%d", request.StartPage, end))
	}

	argv = append(argv, request.Pattern, target)
	return argv
}

// parseMatches parses pdfgrep's "file:page:text" lines. Colons inside file
// names are handled by taking the first all-digit segment after a non-empty
// prefix as the page number. Context separators and context lines (which
// use '-' delimiters) are dropped.
func parseMatches(output string) ([]Match, int) {
	matches := []Match{}
	files := map[string]struct{}{}

	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return matches, 0
	}

	for _, line := range strings.Split(trimmed, "\n") {
		if line == "" || line == "--" {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}

		pageIdx := -1
		for i := 1; i < len(parts); i++ {
			if isAllDigits(parts[i]) {
				pageIdx = i
				break
			}
		}
		if pageIdx < 1 {
			continue
		}

		page, err := strconv.Atoi(parts[pageIdx])
		if err != nil {
			continue
		}

		file := strings.Join(parts[:pageIdx], ":")
		matches = append(matches, Match{
			File: file,
			Page: page,
			Text: strings.Join(parts[pageIdx+1:], ":"),
		})
		files[file] = struct{}{}
	}

	return matches, len(files)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

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

// newToolResultJSON marshals data as indented JSON into a text result
func (t *GrepPDFTool) newToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// ProvideExtendedInfo provides detailed usage information for the grep_pdf tool
func (t *GrepPDFTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Find a term across every PDF in the current directory",
				Arguments: map[string]any{
					"pattern": "quarterly revenue",
				},
				ExpectedResult: "JSON with matches of {file, page, text}, total, truncated and files_searched",
			},
			{
				Description: "Case-insensitive literal search in one document",
				Arguments: map[string]any{
					"pattern":       "Total (EUR)",
					"file_path":     "reports/fy2024.pdf",
					"ignore_case":   true,
					"fixed_strings": true,
				},
				ExpectedResult: "Matching lines from fy2024.pdf only, '(' and ')' treated literally",
			},
			{
				Description: "Regex search limited to an appendix",
				Arguments: map[string]any{
					"pattern":    "ISO[ -]?27001",
					"file_path":  "audit.pdf",
					"start_page": 40,
					"max_count":  50,
				},
				ExpectedResult: "Up to 50 matches from page 40 onwards",
			},
		},
		CommonPatterns: []string{
			"Grep first to locate the page, then read_pdf with a narrow start_page/end_page range",
			"Use fixed_strings=true when the pattern contains regex metacharacters like ( ) or +",
			"truncated=true means more matches exist: raise max_count or narrow the pattern",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "PDFGREP_NOT_INSTALLED error",
				Solution: "Install pdfgrep (see install_hint in the response) or point PDFBLOCKS_PDFGREP_COMMAND at the binary.",
			},
			{
				Problem:  "INVALID_PATTERN for a plain-looking search term",
				Solution: "The term contains regex metacharacters. Set fixed_strings=true to search it literally.",
			},
			{
				Problem:  "No matches in a document that clearly contains the text",
				Solution: "The PDF is likely scanned images without a text layer. Use read_pdf with extraction_mode=image_only to view the pages.",
			},
		},
		ParameterDetails: map[string]string{
			"pattern":   "Extended regular expression unless fixed_strings is set. Matches are line-based.",
			"max_count": "Applied per file by pdfgrep; the response is flagged truncated when the total hits this cap.",
			"context":   "Context lines are used for terminal display by pdfgrep; only matching lines carry a page number and appear in matches.",
		},
		WhenToUse:    "Use grep_pdf to find where specific text occurs across one or many PDFs without any page limit.",
		WhenNotToUse: "Do not use it to read passages or tables (use read_pdf) or on scanned documents without a text layer.",
	}
}
