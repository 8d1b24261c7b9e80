// Package toolhelp implements the get_tool_help tool, which surfaces each
// tool's usage examples and troubleshooting tips to MCP clients that cannot
// see extended help any other way.
package toolhelp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pdfblocks/pdfblocks/internal/registry"
	"github.com/pdfblocks/pdfblocks/internal/tools"
)

// ToolHelpTool serves extended help for the registered tools
type ToolHelpTool struct{}

// init registers the get_tool_help tool
func init() {
	registry.Register(&ToolHelpTool{})
}

// Definition returns the tool's definition for MCP registration. The
// tool_name enum is built from the registry, so it always matches the tools
// actually exposed.
func (t *ToolHelpTool) Definition() mcp.Tool {
	withHelp := registry.GetToolNamesWithExtendedHelp()

	description := "Get usage examples, common patterns and troubleshooting tips for a pdfblocks tool. Use when a tool call returns an unexpected error."
	if len(withHelp) == 0 {
		description = "No tools currently provide extended help."
	}

	return mcp.NewTool(
		"get_tool_help",
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(withHelp...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute looks the tool up and returns its schema together with the
// extended help as indented JSON
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	toolName, ok := args["tool_name"].(string)
	if !ok || toolName == "" {
		return nil, fmt.Errorf("invalid parameters: missing or invalid required parameter: tool_name")
	}

	logger.WithField("tool", toolName).Debug("Executing get_tool_help tool")

	tool, exists := registry.GetTool(toolName)
	if !exists {
		return nil, fmt.Errorf("tool %q not found or disabled. Tools with extended help: %s",
			toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	provider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return nil, fmt.Errorf("tool %q does not provide extended help. Tools with extended help: %s",
			toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	def := tool.Definition()
	return t.newToolResultJSON(Response{
		ToolName:    def.Name,
		Description: def.Description,
		InputSchema: def.InputSchema,
		Help:        provider.ProvideExtendedInfo(),
	})
}

func (t *ToolHelpTool) newToolResultJSON(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
