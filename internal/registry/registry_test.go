package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfblocks/pdfblocks/internal/tools"
)

type stubTool struct {
	name string
}

func (s *stubTool) Definition() mcp.Tool {
	return mcp.NewTool(s.name, mcp.WithDescription("stub"))
}

func (s *stubTool) Execute(_ context.Context, _ *logrus.Logger, _ *sync.Map, _ map[string]interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("{}"), nil
}

func resetRegistry() {
	toolRegistry = make(map[string]tools.Tool)
	disabledTools = make(map[string]bool)
}

func TestRegisterAndGetTool(t *testing.T) {
	resetRegistry()
	Register(&stubTool{name: "read_pdf"})

	tool, ok := GetTool("read_pdf")
	require.True(t, ok)
	assert.Equal(t, "read_pdf", tool.Definition().Name)

	_, ok = GetTool("unknown")
	assert.False(t, ok)
}

func TestDisabledToolsHideRegisteredTools(t *testing.T) {
	resetRegistry()
	Register(&stubTool{name: "read_pdf"})
	Register(&stubTool{name: "grep_pdf"})

	t.Setenv("DISABLED_TOOLS", "grep_pdf, bogus")
	Init(nil)

	_, ok := GetTool("grep_pdf")
	assert.False(t, ok)

	_, ok = GetTool("read_pdf")
	assert.True(t, ok)

	assert.Equal(t, []string{"read_pdf"}, GetEnabledToolNames())

	enabled := GetEnabledTools()
	assert.Len(t, enabled, 1)
	assert.Contains(t, enabled, "read_pdf")
}

func TestInitSharedResources(t *testing.T) {
	resetRegistry()
	t.Setenv("DISABLED_TOOLS", "")
	logger := logrus.New()
	Init(logger)

	assert.Same(t, logger, GetLogger())
	assert.NotNil(t, GetCache())
}
