package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pdfblocks/pdfblocks/internal/tools"
)

var (
	// toolRegistry maps tool names to their implementations. Tools register
	// themselves from package init, which runs before Init; the disabled set
	// is therefore applied by the getters, not at registration time.
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is the set of tool names disabled via DISABLED_TOOLS
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger

	// cache is the shared cache instance
	cache *sync.Map
)

// Init initialises the shared resources and parses the environment
func Init(l *logrus.Logger) {
	logger = l
	cache = &sync.Map{}
	parseDisabledTools()
}

// parseDisabledTools parses the DISABLED_TOOLS environment variable, a
// comma-separated list of tool names
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for tool := range strings.SplitSeq(os.Getenv("DISABLED_TOOLS"), ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled via environment variable")
		}
	}
}

// Register adds a tool implementation to the registry
func Register(tool tools.Tool) {
	name := tool.Definition().Name
	toolRegistry[name] = tool
	if logger != nil {
		logger.WithField("tool", name).Debug("Tool registered")
	}
}

// GetTool retrieves a tool by name, reporting false when the tool is
// unknown or disabled
func GetTool(name string) (tools.Tool, bool) {
	if disabledTools[name] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all tools that should be exposed to clients
func GetEnabledTools() map[string]tools.Tool {
	enabled := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		enabled[name] = tool
	}
	return enabled
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	var names []string
	for name := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names
// that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	var names []string
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// GetCache returns the shared cache instance
func GetCache() *sync.Map {
	return cache
}
