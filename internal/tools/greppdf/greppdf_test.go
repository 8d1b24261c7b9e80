package greppdf_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfblocks/pdfblocks/internal/pdf"
	"github.com/pdfblocks/pdfblocks/internal/security"
	"github.com/pdfblocks/pdfblocks/internal/testutil"
	"github.com/pdfblocks/pdfblocks/internal/tools/greppdf"
)

func executeTool(t *testing.T, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := &greppdf.GrepPDFTool{}
	result, err := tool.Execute(testutil.CreateTestContext(), testutil.CreateTestLogger(), testutil.CreateTestCache(), args)
	require.NoError(t, err)
	return result
}

func allowAllFiles(t *testing.T) {
	t.Helper()
	prev := security.SetGlobalManager(nil)
	t.Cleanup(func() { security.SetGlobalManager(prev) })
}

// writeFakePdfgrep installs a shell script in place of the pdfgrep binary
// for the duration of a test.
func writeFakePdfgrep(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell script pdfgrep stub")
	}
	path := filepath.Join(t.TempDir(), "fake-pdfgrep")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PDFBLOCKS_PDFGREP_COMMAND", path)
}

func TestGrepPDFTool_Definition(t *testing.T) {
	tool := &greppdf.GrepPDFTool{}
	def := tool.Definition()

	assert.Equal(t, "grep_pdf", def.Name)
	assert.Contains(t, def.Description, "Search text in PDFs")
}

func TestGrepPDFTool_ParseRequest(t *testing.T) {
	tool := &greppdf.GrepPDFTool{}

	t.Run("DefaultsApplied", func(t *testing.T) {
		request, err := tool.ParseRequest(map[string]any{"pattern": "revenue"})
		require.NoError(t, err)

		assert.Equal(t, "revenue", request.Pattern)
		assert.Empty(t, request.FilePath)
		assert.Equal(t, ".", request.WorkingDirectory)
		assert.False(t, request.IgnoreCase)
		assert.False(t, request.FixedStrings)
		assert.Equal(t, 2, request.Context)
		assert.Equal(t, 20, request.MaxCount)
		assert.True(t, request.Recursive)
		assert.Equal(t, 1, request.StartPage)
		assert.Nil(t, request.EndPage)
	})

	t.Run("OverridesApplied", func(t *testing.T) {
		request, err := tool.ParseRequest(map[string]any{
			"pattern":           "revenue",
			"file_path":         "doc.pdf",
			"working_directory": "docs",
			"ignore_case":       true,
			"fixed_strings":     true,
			"context":           float64(0),
			"max_count":         float64(100),
			"recursive":         false,
			"start_page":        float64(4),
			"end_page":          float64(9),
		})
		require.NoError(t, err)

		assert.Equal(t, "doc.pdf", request.FilePath)
		assert.Equal(t, "docs", request.WorkingDirectory)
		assert.True(t, request.IgnoreCase)
		assert.True(t, request.FixedStrings)
		assert.Equal(t, 0, request.Context)
		assert.Equal(t, 100, request.MaxCount)
		assert.False(t, request.Recursive)
		assert.Equal(t, 4, request.StartPage)
		require.NotNil(t, request.EndPage)
		assert.Equal(t, 9, *request.EndPage)
	})

	t.Run("InvalidParameters", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]any
			want string
		}{
			{"MissingPattern", map[string]any{}, "pattern"},
			{"ContextTooHigh", map[string]any{"pattern": "x", "context": float64(6)}, "context"},
			{"ContextNegative", map[string]any{"pattern": "x", "context": float64(-1)}, "context"},
			{"MaxCountZero", map[string]any{"pattern": "x", "max_count": float64(0)}, "max_count"},
			{"MaxCountTooHigh", map[string]any{"pattern": "x", "max_count": float64(101)}, "max_count"},
			{"StartPageZero", map[string]any{"pattern": "x", "start_page": float64(0)}, "start_page"},
			{"EndPageZero", map[string]any{"pattern": "x", "end_page": float64(0)}, "end_page"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tool.ParseRequest(tt.args)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			})
		}
	})
}

func TestGrepPDFTool_Execute_NotInstalled(t *testing.T) {
	t.Setenv("PDFBLOCKS_PDFGREP_COMMAND", "")
	t.Setenv("PATH", t.TempDir())

	result := executeTool(t, map[string]any{"pattern": "x"})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrGrepNotInstalled, resp.Error)
	assert.Equal(t, "pdfgrep is not installed. Please install it first.", resp.Message)
	assert.Contains(t, resp.InstallHint, "apt install pdfgrep")
}

func TestGrepPDFTool_Execute_FileNotFound(t *testing.T) {
	writeFakePdfgrep(t, "exit 1")
	allowAllFiles(t)
	dir := t.TempDir()

	result := executeTool(t, map[string]any{
		"pattern":   "x",
		"file_path": filepath.Join(dir, "missing.pdf"),
	})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrFileNotFound, resp.Error)
	assert.Contains(t, resp.Message, "PDF file not found:")
}

func TestGrepPDFTool_Execute_NotAPDF(t *testing.T) {
	writeFakePdfgrep(t, "exit 1")
	allowAllFiles(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	result := executeTool(t, map[string]any{"pattern": "x", "file_path": path})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrFileNotFound, resp.Error)
	assert.Contains(t, resp.Message, "Not a PDF file:")
}

func TestGrepPDFTool_Execute_DirectoryNotFound(t *testing.T) {
	writeFakePdfgrep(t, "exit 1")
	allowAllFiles(t)

	result := executeTool(t, map[string]any{
		"pattern":           "x",
		"working_directory": filepath.Join(t.TempDir(), "missing"),
	})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrDirectoryNotFound, resp.Error)
	assert.Contains(t, resp.Message, "Directory not found:")
}

func TestGrepPDFTool_Execute_NotADirectory(t *testing.T) {
	writeFakePdfgrep(t, "exit 1")
	allowAllFiles(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	result := executeTool(t, map[string]any{"pattern": "x", "working_directory": path})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrDirectoryNotFound, resp.Error)
	assert.Contains(t, resp.Message, "Not a directory:")
}

func TestGrepPDFTool_Execute_TargetOutsideAllowedRoots(t *testing.T) {
	writeFakePdfgrep(t, "exit 1")
	root := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(outside, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	t.Chdir(root)

	prev := security.SetGlobalManager(security.NewManagerWithRoots(testutil.CreateTestLogger(), []string{root}, nil))
	t.Cleanup(func() { security.SetGlobalManager(prev) })

	result := executeTool(t, map[string]any{"pattern": "x", "file_path": path})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrPermissionDenied, resp.Error)
	assert.Equal(t, "Access denied: File path must be within the current working directory", resp.Message)
}

func TestGrepPDFTool_Execute_ParsesMatches(t *testing.T) {
	writeFakePdfgrep(t, strings.Join([]string{
		`printf '%s\n' \`,
		`  '/data/report.pdf:3:Total revenue: 42' \`,
		`  '--' \`,
		`  '/data/report.pdf-4-just context' \`,
		`  '/data/we:ird.pdf:7:odd name' \`,
		`  '/data/archive/old.pdf:10:Revenue down'`,
	}, "\n"))
	allowAllFiles(t)

	result := executeTool(t, map[string]any{"pattern": "revenue", "working_directory": t.TempDir()})

	var out greppdf.Result
	testutil.ResultJSON(t, result, &out)

	require.Len(t, out.Matches, 3)
	assert.Equal(t, greppdf.Match{File: "/data/report.pdf", Page: 3, Text: "Total revenue: 42"}, out.Matches[0])
	assert.Equal(t, greppdf.Match{File: "/data/we:ird.pdf", Page: 7, Text: "odd name"}, out.Matches[1])
	assert.Equal(t, greppdf.Match{File: "/data/archive/old.pdf", Page: 10, Text: "Revenue down"}, out.Matches[2])
	assert.Equal(t, 3, out.Total)
	assert.False(t, out.Truncated)
	assert.Equal(t, 3, out.FilesSearched)
}

func TestGrepPDFTool_Execute_Truncated(t *testing.T) {
	writeFakePdfgrep(t, `printf '%s\n' 'a.pdf:1:first' 'a.pdf:2:second'`)
	allowAllFiles(t)

	result := executeTool(t, map[string]any{
		"pattern":           "x",
		"working_directory": t.TempDir(),
		"max_count":         float64(2),
	})

	var out greppdf.Result
	testutil.ResultJSON(t, result, &out)
	assert.Equal(t, 2, out.Total)
	assert.True(t, out.Truncated)
	assert.Equal(t, 1, out.FilesSearched)
}

func TestGrepPDFTool_Execute_NoMatches(t *testing.T) {
	writeFakePdfgrep(t, "exit 1")
	allowAllFiles(t)

	result := executeTool(t, map[string]any{"pattern": "x", "working_directory": t.TempDir()})

	var out greppdf.Result
	testutil.ResultJSON(t, result, &out)
	assert.Equal(t, 0, out.Total)
	assert.Empty(t, out.Matches)
	assert.False(t, out.Truncated)
	assert.Equal(t, 0, out.FilesSearched)
	assert.Contains(t, testutil.ResultText(t, result), `"matches": []`)
}

func TestGrepPDFTool_Execute_InvalidPattern(t *testing.T) {
	writeFakePdfgrep(t, `echo 'pdfgrep: Invalid regular expression' >&2; exit 2`)
	allowAllFiles(t)

	result := executeTool(t, map[string]any{"pattern": "(", "working_directory": t.TempDir()})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrInvalidPattern, resp.Error)
	assert.Equal(t, "Invalid search pattern: pdfgrep: Invalid regular expression", resp.Message)
}

func TestGrepPDFTool_Execute_GrepFailure(t *testing.T) {
	writeFakePdfgrep(t, `echo 'pdfgrep: some backend failure' >&2; exit 2`)
	allowAllFiles(t)

	result := executeTool(t, map[string]any{"pattern": "x", "working_directory": t.TempDir()})

	var resp pdf.ErrorResponse
	testutil.ResultJSON(t, result, &resp)
	assert.Equal(t, pdf.ErrInternal, resp.Error)
	assert.Equal(t, "pdfgrep error: pdfgrep: some backend failure", resp.Message)
}

func TestGrepPDFTool_Execute_CommandConstruction(t *testing.T) {
	readArgs := func(t *testing.T, path string) []string {
		t.Helper()
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	t.Run("FileMode", func(t *testing.T) {
		argsFile := filepath.Join(t.TempDir(), "args")
		t.Setenv("ARGS_FILE", argsFile)
		writeFakePdfgrep(t, `printf '%s\n' "$@" > "$ARGS_FILE"; exit 1`)
		allowAllFiles(t)

		dir := t.TempDir()
		path := filepath.Join(dir, "doc.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
		resolved, err := filepath.EvalSymlinks(path)
		require.NoError(t, err)

		executeTool(t, map[string]any{
			"pattern":       "total",
			"file_path":     path,
			"ignore_case":   true,
			"fixed_strings": true,
			"context":       float64(3),
			"max_count":     float64(5),
			"start_page":    float64(2),
			"end_page":      float64(8),
		})

		want := []string{"-n", "-H", "-i", "-F", "-C", "3", "-m", "5", "--page-range", "2-8", "total", resolved}
		assert.Equal(t, want, readArgs(t, argsFile))
	})

	t.Run("DirectoryMode", func(t *testing.T) {
		argsFile := filepath.Join(t.TempDir(), "args")
		t.Setenv("ARGS_FILE", argsFile)
		writeFakePdfgrep(t, `printf '%s\n' "$@" > "$ARGS_FILE"; exit 1`)
		allowAllFiles(t)

		dir := t.TempDir()
		resolved, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)

		executeTool(t, map[string]any{"pattern": "x", "working_directory": dir})

		want := []string{"-n", "-H", "-C", "2", "-m", "20", "-r", "x", resolved}
		assert.Equal(t, want, readArgs(t, argsFile))
	})
}
