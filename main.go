package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	toolcli "github.com/pdfblocks/pdfblocks/internal/cli"
	"github.com/pdfblocks/pdfblocks/internal/config"
	"github.com/pdfblocks/pdfblocks/internal/registry"
	"github.com/pdfblocks/pdfblocks/internal/security"
	"github.com/pdfblocks/pdfblocks/internal/tools"

	// Import all tool packages to register them
	_ "github.com/pdfblocks/pdfblocks/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup. Atomic so signal-driven shutdown and
// the normal exit path never race.
var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool
)

const (
	// DefaultMemoryLimit caps the Go heap at 2GB; page rendering on large
	// documents is the main consumer
	DefaultMemoryLimit = 2 * 1024 * 1024 * 1024
)

// parseLogLevel parses the LOG_LEVEL environment variable.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		return logrus.WarnLevel
	}

	switch strings.ToLower(strings.TrimSpace(logLevelStr)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime soft memory limit, overridable
// via PDFBLOCKS_MEMORY_LIMIT (bytes)
func setMemoryLimit() {
	memLimit := int64(DefaultMemoryLimit)
	if memLimitStr := os.Getenv("PDFBLOCKS_MEMORY_LIMIT"); memLimitStr != "" {
		if parsed, err := strconv.ParseInt(memLimitStr, 10, 64); err == nil && parsed > 0 {
			memLimit = parsed
		}
	}
	debug.SetMemoryLimit(memLimit)
}

func main() {
	// Best-effort .env load; LOG_LEVEL and the PDF_*/PDFBLOCKS_* settings
	// below can come from it
	_ = godotenv.Load()

	setMemoryLimit()

	// Context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until the transport mode is known - early logging on
	// stdout would corrupt the stdio protocol
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger)

	// Ensure cleanup runs on normal exit OR signal
	defer performCleanup(logger)

	app := &cli.Command{
		Name:    "pdfblocks",
		Usage:   "MCP server that reads PDFs as ordered text, table and image blocks",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio or http)",
				Sources: cli.EnvVars("PDFBLOCKS_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:    "port",
				Value:   "18080",
				Usage:   "Port for the Streamable HTTP transport",
				Sources: cli.EnvVars("PDFBLOCKS_PORT"),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Value:   "http://localhost",
				Usage:   "Base URL for the Streamable HTTP transport",
				Sources: cli.EnvVars("PDFBLOCKS_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "endpoint-path",
				Value:   "/mcp",
				Usage:   "Endpoint path for the Streamable HTTP transport",
				Sources: cli.EnvVars("PDFBLOCKS_ENDPOINT_PATH"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Force debug level logging regardless of LOG_LEVEL",
				Sources: cli.EnvVars("PDFBLOCKS_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Log file path (default: ~/.pdfblocks/logs/pdfblocks.log)",
				Sources: cli.EnvVars("PDFBLOCKS_LOG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					bold := color.New(color.Bold).SprintFunc()
					fmt.Printf("%s version %s\n", bold("pdfblocks"), Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
			cliCommand(logger),
		},
		Action: func(cliCtx context.Context, cmd *cli.Command) error {
			transport := cmd.String("transport")

			// Track stdio mode for error handling (atomic to prevent races
			// with signal handlers)
			isStdioMode.Store(transport == "stdio")

			configureLogging(logger, cmd)

			// Tool failures can be recorded to a separate file for later
			// debugging; off by default
			if err := tools.InitGlobalErrorLogger(logger); err != nil {
				logger.WithError(err).Debug("Failed to initialise tool error logger")
				if transport != "stdio" {
					logger.WithError(err).Warn("Failed to initialise tool error logger")
				}
			}

			// File access policy: allowed roots plus the optional deny list
			logger.Debug("Initialising security manager")
			security.Init(logger)

			// Fail on a broken extraction configuration now rather than at
			// the first tool call
			cfg := config.Load(logger)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid extraction configuration: %w", err)
			}

			if transport != "stdio" {
				logger.Infof("Starting pdfblocks version %s (commit: %s, built: %s)",
					Version, Commit, BuildDate)
			}

			logger.Debug("Creating MCP server")
			mcpSrv := mcpserver.NewMCPServer("pdfblocks", Version,
				mcpserver.WithToolCapabilities(true),
				mcpserver.WithLogging(),
			)

			enabledTools := registry.GetEnabledTools()
			logger.WithField("tool_count", len(enabledTools)).Debug("MCP server created, registering tools")

			for toolName, toolImpl := range enabledTools {
				name := toolName
				tool := toolImpl

				if transport != "stdio" {
					logger.Infof("Registering tool: %s", name)
				}

				mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
					// Fresh registry lookup so disabled tools stay refusable
					// even after registration
					currentTool, ok := registry.GetTool(name)
					if !ok {
						return nil, fmt.Errorf("tool not found: %s", name)
					}

					args, ok := request.Params.Arguments.(map[string]any)
					if !ok {
						return nil, fmt.Errorf("invalid arguments type: expected map[string]interface{}, got %T", request.Params.Arguments)
					}

					result, err := currentTool.Execute(toolCtx, registry.GetLogger(), registry.GetCache(), args)
					if err != nil {
						if transport != "stdio" {
							logger.WithError(err).Errorf("Tool execution failed: %s", name)
						}

						if errorLogger := tools.GetGlobalErrorLogger(); errorLogger != nil && errorLogger.IsEnabled() {
							errorLogger.LogToolError(name, args, err, transport)
						}

						return nil, fmt.Errorf("tool execution failed: %w", err)
					}

					return result, nil
				})
			}

			logger.WithField("transport", transport).Debug("Starting server")
			switch transport {
			case "stdio":
				return mcpserver.ServeStdio(mcpSrv)
			case "http":
				return startStreamableHTTPServer(cliCtx, cmd, mcpSrv, logger)
			default:
				return fmt.Errorf("unsupported transport: %s (use stdio or http)", transport)
			}
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		// In stdio mode nothing may be written to stdout or stderr; the MCP
		// protocol owns the pipes even when startup fails
		if !isStdioMode.Load() {
			logger.Fatalf("Error: %v", err)
		}
		os.Exit(1)
	}
}

// cliCommand exposes the tools directly on the command line, without an MCP
// client in the loop
func cliCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "cli",
		Usage: "Run tools directly without an MCP client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "Output format (text or json)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			// Tool output owns stdout, so logs go to stderr
			logger.SetOutput(os.Stderr)
			if cmd.Bool("debug") {
				logger.SetLevel(logrus.DebugLevel)
			}
			security.Init(logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available tools",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return newCLIRunner(logger, cmd).ListTools()
				},
			},
			{
				Name:      "help",
				Usage:     "Show parameters and usage examples for a tool",
				ArgsUsage: "<tool>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return fmt.Errorf("usage: pdfblocks cli help <tool>")
					}
					return newCLIRunner(logger, cmd).HelpTool(cmd.Args().First())
				},
			},
			{
				Name:      "run",
				Usage:     "Run a tool with --flag or JSON arguments",
				ArgsUsage: "<tool> [--param value ...] ['{\"param\": ...}']",
				// Tool parameters are parsed by the runner against the tool
				// schema, not by the CLI framework
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					args := cmd.Args().Slice()
					if len(args) == 0 {
						return fmt.Errorf("usage: pdfblocks cli run <tool> [--param value ...]")
					}
					return newCLIRunner(logger, cmd).RunTool(ctx, args[0], args[1:])
				},
			},
		},
	}
}

func newCLIRunner(logger *logrus.Logger, cmd *cli.Command) *toolcli.Runner {
	output := toolcli.OutputText
	if strings.EqualFold(cmd.String("output"), "json") {
		output = toolcli.OutputJSON
	}
	return toolcli.NewRunner(logger, registry.GetCache(), output)
}

// configureLogging sends all server logging to a file so stdout stays clean
// for the MCP protocol. Non-stdio transports also get a stderr copy; when
// the file cannot be opened, stdio mode goes silent rather than risking the
// protocol stream.
func configureLogging(logger *logrus.Logger, cmd *cli.Command) {
	logLevel := parseLogLevel()
	if cmd.Bool("debug") {
		logLevel = logrus.DebugLevel
	}
	// The log file is the only place problems surface in stdio mode, so
	// record at least warnings there
	if isStdioMode.Load() && logLevel < logrus.WarnLevel {
		logLevel = logrus.WarnLevel
	}

	var out io.Writer
	if file, err := openLogFile(cmd.String("log-file")); err == nil {
		debugLogFile.Store(file)
		out = file
		if !isStdioMode.Load() {
			out = io.MultiWriter(file, os.Stderr)
		}
	} else if isStdioMode.Load() {
		out = io.Discard
	} else {
		out = os.Stderr
	}

	logger.SetOutput(out)
	logger.SetLevel(logLevel)
	// Keep the standard logger aligned for any library that uses it
	logrus.SetOutput(out)
	logrus.SetLevel(logLevel)

	logger.WithField("level", logLevel.String()).Debug("Logging configured")
}

// openLogFile opens path for appending, creating parent directories as
// needed. An empty path means ~/.pdfblocks/logs/pdfblocks.log.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(homeDir, ".pdfblocks", "logs", "pdfblocks.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(logger *logrus.Logger) {
	// Close the error logger while the main log can still record a failure
	if errorLogger := tools.GetGlobalErrorLogger(); errorLogger != nil {
		if err := errorLogger.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close tool error logger")
		}
	}

	// Close the log file last; nothing may log after this (stdio mode: no
	// output allowed, other modes: the logger writes to this file)
	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}
}

// startStreamableHTTPServer runs the Streamable HTTP transport with graceful
// shutdown on SIGINT/SIGTERM
func startStreamableHTTPServer(ctx context.Context, cmd *cli.Command, mcpServer *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := cmd.String("port")
	baseURL := cmd.String("base-url")
	endpointPath := cmd.String("endpoint-path")

	logger.Infof("Starting Streamable HTTP server on %s:%s%s", baseURL, port, endpointPath)

	httpServer := mcpserver.NewStreamableHTTPServer(mcpServer,
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHeartbeatInterval(30*time.Second),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	)

	mux := http.NewServeMux()
	mux.Handle(endpointPath, httpServer)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
		// WriteTimeout must outlast the 60 second pdfgrep ceiling
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case serverErr <- err:
			case <-ctx.Done():
				// Context cancelled, error no longer relevant
			}
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}

	logger.Info("HTTP server stopped gracefully")
	return nil
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
