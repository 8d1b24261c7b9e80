// Package listpdfs implements the list_pdfs tool: PDF discovery under a
// working directory with optional recursion, a depth limit and glob name
// filtering.
package listpdfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	pagecache "github.com/pdfblocks/pdfblocks/internal/cache"
	"github.com/pdfblocks/pdfblocks/internal/config"
	"github.com/pdfblocks/pdfblocks/internal/pdf"
	"github.com/pdfblocks/pdfblocks/internal/registry"
	"github.com/pdfblocks/pdfblocks/internal/tools"
)

const (
	// pageCountCacheKey addresses the page count cache inside the shared
	// tool cache
	pageCountCacheKey = "listpdfs:page_counts"
	// pageCountTTL bounds reuse of a cached page count; the mtime in the
	// cache key already invalidates rewritten files
	pageCountTTL = 15 * time.Minute
)

// ListPDFsTool finds PDF files under a working directory
type ListPDFsTool struct{}

// init registers the list_pdfs tool
func init() {
	registry.Register(&ListPDFsTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ListPDFsTool) Definition() mcp.Tool {
	cfg := config.Load(nil)
	return mcp.NewTool(
		"list_pdfs",
		mcp.WithDescription("Find PDF files in a directory. Use name_pattern for glob filtering (e.g., '*report*'). Returns name, path, pages for each PDF. Use the returned 'path' directly with read_pdf."),
		mcp.WithString("working_directory",
			mcp.Description("Working directory to search (relative or absolute path, default: current directory)"),
			mcp.DefaultString("."),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Whether to include subdirectories"),
			mcp.DefaultBool(true),
		),
		mcp.WithNumber("max_depth",
			mcp.Description(fmt.Sprintf("Maximum recursion depth, at least 1 (default: %d)", cfg.MaxRecursionDepth)),
			mcp.DefaultNumber(float64(cfg.MaxRecursionDepth)),
		),
		mcp.WithString("name_pattern",
			mcp.Description("Glob pattern for filename filtering (e.g., '*report*', 'doc_202?.pdf')"),
		),
	)
}

// Execute searches the working directory and returns the discovered PDFs as
// indented JSON. A missing or wrong-typed directory comes back as a JSON
// error envelope; files that cannot be opened as PDFs are skipped silently
// so one corrupt file never hides the rest of a directory.
func (t *ListPDFsTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	cfg := config.Load(logger)

	request, err := t.ParseRequest(cfg, args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	reqLog := logger.WithFields(logrus.Fields{
		"request_id":        uuid.New().String(),
		"working_directory": request.WorkingDirectory,
	})
	reqLog.WithFields(logrus.Fields{
		"recursive":    request.Recursive,
		"max_depth":    request.MaxDepth,
		"name_pattern": request.NamePattern,
	}).Debug("Executing list_pdfs tool")

	workingDir, err := resolvePath(request.WorkingDirectory)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(workingDir)
	if err != nil {
		reqLog.Debug("Working directory not found")
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrDirectoryNotFound,
			Message: directoryNotFoundMessage(logger, workingDir),
		})
	}
	if !info.IsDir() {
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrNotADirectory,
			Message: fmt.Sprintf("Path is not a directory: %s", workingDir),
		})
	}

	paths, err := collectPDFPaths(ctx, workingDir, request.Recursive, request.MaxDepth)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return t.newToolResultJSON(pdf.ErrorResponse{
				Error:   pdf.ErrPermissionDenied,
				Message: fmt.Sprintf("Permission denied: %v", err),
			})
		}
		return t.newToolResultJSON(pdf.ErrorResponse{
			Error:   pdf.ErrInternal,
			Message: fmt.Sprintf("Failed to list PDFs: %v", err),
		})
	}

	counts := pageCounts(cache)

	pdfs := make([]PDFInfo, 0, len(paths))
	for _, pdfPath := range paths {
		if request.NamePattern != "" {
			matched, err := matchName(filepath.Base(pdfPath), request.NamePattern)
			if err != nil {
				return t.newToolResultJSON(pdf.ErrorResponse{
					Error:   pdf.ErrInternal,
					Message: fmt.Sprintf("Failed to list PDFs: invalid name_pattern %q", request.NamePattern),
				})
			}
			if !matched {
				continue
			}
		}

		fileInfo, err := os.Stat(pdfPath)
		if err != nil {
			reqLog.WithError(err).WithField("path", pdfPath).Debug("Skipping unstatable PDF")
			continue
		}
		pageCount, err := countPages(counts, pdfPath, fileInfo.ModTime())
		if err != nil {
			reqLog.WithError(err).WithField("path", pdfPath).Debug("Skipping unreadable PDF")
			continue
		}

		pdfs = append(pdfs, PDFInfo{
			Name:  filepath.Base(pdfPath),
			Path:  pdfPath,
			Pages: pageCount,
		})
	}

	reqLog.WithField("total_count", len(pdfs)).Debug("list_pdfs completed")

	return t.newToolResultJSON(Result{
		PDFs:             pdfs,
		TotalCount:       len(pdfs),
		WorkingDirectory: workingDir,
	})
}

// ParseRequest parses and validates the raw tool arguments
func (t *ListPDFsTool) ParseRequest(cfg config.Config, args map[string]any) (*Request, error) {
	request := &Request{
		WorkingDirectory: ".",
		Recursive:        true,
		MaxDepth:         cfg.MaxRecursionDepth,
	}

	if dir, ok := args["working_directory"].(string); ok && dir != "" {
		request.WorkingDirectory = dir
	}
	if recursive, ok := args["recursive"].(bool); ok {
		request.Recursive = recursive
	}
	if raw, ok := args["max_depth"].(float64); ok {
		maxDepth := int(raw)
		if maxDepth < 1 {
			return nil, fmt.Errorf("max_depth must be at least 1")
		}
		request.MaxDepth = maxDepth
	}
	if pattern, ok := args["name_pattern"].(string); ok {
		request.NamePattern = pattern
	}

	return request, nil
}

// pageCounts returns the per-process page count cache, creating it inside
// the shared tool cache on first use
func pageCounts(shared *sync.Map) *pagecache.Cache {
	created, _ := shared.LoadOrStore(pageCountCacheKey, pagecache.New(pageCountTTL))
	return created.(*pagecache.Cache)
}

// countPages returns the page count for path, reusing the cached count while
// the file's mtime is unchanged. Opening every PDF is what makes large
// directory listings slow, so repeat listings should not pay it twice.
func countPages(counts *pagecache.Cache, path string, modTime time.Time) (int, error) {
	key := fmt.Sprintf("%s|%d", path, modTime.UnixNano())
	if cached, ok := counts.Get(key); ok {
		return cached.(int), nil
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, err
	}
	counts.Set(key, pages)
	return pages, nil
}

// collectPDFPaths gathers the .pdf files under root. Recursion descends at
// most maxDepth directories below root; unreadable subdirectories are
// skipped so a single bad mount never empties the listing. The returned
// paths are sorted.
func collectPDFPaths(ctx context.Context, root string, recursive bool, maxDepth int) ([]string, error) {
	var paths []string

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && isPDFName(entry.Name()) {
				paths = append(paths, filepath.Join(root, entry.Name()))
			}
		}
		return paths, nil
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil || rel == "." {
				return nil
			}
			if len(strings.Split(rel, string(filepath.Separator))) > maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && isPDFName(d.Name()) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// matchName does a case-insensitive glob match on a file name. Both sides
// are NFC normalized so decomposed names written by macOS still match
// patterns typed in composed form.
func matchName(name, pattern string) (bool, error) {
	normalizedName := norm.NFC.String(strings.ToLower(name))
	normalizedPattern := norm.NFC.String(strings.ToLower(pattern))
	return path.Match(normalizedPattern, normalizedName)
}

// directoryNotFoundMessage names the missing directory and, when the current
// directory is listable, the first-level folders the caller likely meant
func directoryNotFoundMessage(logger *logrus.Logger, workingDir string) string {
	base := fmt.Sprintf("Working directory not found: %s", workingDir)

	cwd, err := os.Getwd()
	if err != nil {
		return base
	}

	entries, err := os.ReadDir(cwd)
	if err != nil {
		logger.WithError(err).WithField("dir", cwd).Debug("Could not list current directory")
		return base
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			subdirs = append(subdirs, "  - "+entry.Name())
		}
	}
	if len(subdirs) == 0 {
		return base
	}

	return fmt.Sprintf("%s\n\nAvailable folders in current directory (%s):\n%s",
		base, cwd, strings.Join(subdirs, "\n"))
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
func (t *ListPDFsTool) newToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// ProvideExtendedInfo provides detailed usage information for the list_pdfs tool
func (t *ListPDFsTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "List every PDF under the current directory",
				Arguments:   map[string]any{},
				ExpectedResult: "JSON with a pdfs array of {name, path, pages} entries, " +
					"total_count and the resolved working_directory",
			},
			{
				Description: "Find report PDFs in a documents folder without recursing",
				Arguments: map[string]any{
					"working_directory": "docs/reports",
					"recursive":         false,
					"name_pattern":      "*report*",
				},
				ExpectedResult: "Only the top-level files of docs/reports whose name contains 'report'",
			},
			{
				Description: "Search a deep archive tree",
				Arguments: map[string]any{
					"working_directory": "/data/archive",
					"max_depth":         4,
				},
				ExpectedResult: "PDFs up to four directory levels below /data/archive",
			},
		},
		CommonPatterns: []string{
			"Call list_pdfs first, then pass a returned 'path' to read_pdf unchanged",
			"Use name_pattern '*2024*' style filters instead of listing everything and filtering client-side",
			"Large trees: raise max_depth only as far as needed, page counting opens every file found",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "DIRECTORY_NOT_FOUND with a list of available folders",
				Solution: "The working_directory does not exist. Pick one of the listed folders or pass an absolute path.",
			},
			{
				Problem:  "A PDF you can see on disk is missing from the result",
				Solution: "Files that cannot be opened as PDFs (corrupted or password protected) are skipped. Check the file with read_pdf to get the exact error.",
			},
			{
				Problem:  "Empty result despite matching files in subdirectories",
				Solution: "Check recursive=true and raise max_depth: files deeper than max_depth levels are not listed.",
			},
		},
		ParameterDetails: map[string]string{
			"working_directory": "Relative paths are resolved against the server's working directory. The resolved absolute path is echoed in the response.",
			"name_pattern":      "Shell-style glob matched case-insensitively against the file name only, not the path. '*' matches any run of characters, '?' one character.",
			"max_depth":         "Counted in directories below working_directory: 1 means direct subdirectories only.",
		},
		WhenToUse:    "Use list_pdfs to discover what documents exist before reading them, or to map a directory structure of reports.",
		WhenNotToUse: "Do not use it to search text inside documents (use grep_pdf) or when you already know the exact file path (use read_pdf directly).",
	}
}
