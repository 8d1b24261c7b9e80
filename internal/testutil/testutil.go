// Package testutil provides shared helpers for pdfblocks tests.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

// CreateTestLogger creates a logger suitable for testing.
func CreateTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// CreateTestCache creates a cache suitable for testing.
func CreateTestCache() *sync.Map {
	return &sync.Map{}
}

// CreateTestContext creates a context suitable for testing.
func CreateTestContext() context.Context {
	return context.Background()
}

// ResultText extracts the first text content from a tool result.
func ResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("expected a tool result, got nil")
	}
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			return text.Text
		}
	}
	t.Fatal("tool result contains no text content")
	return ""
}

// ResultJSON unmarshals the first text content of a tool result into dst.
func ResultJSON(t *testing.T, result *mcp.CallToolResult, dst any) {
	t.Helper()
	text := ResultText(t, result)
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		t.Fatalf("tool result is not valid JSON: %v\n%s", err, text)
	}
}

// ResultImages returns the image contents of a tool result in order.
func ResultImages(t *testing.T, result *mcp.CallToolResult) []mcp.ImageContent {
	t.Helper()
	if result == nil {
		t.Fatal("expected a tool result, got nil")
	}
	var images []mcp.ImageContent
	for _, content := range result.Content {
		if img, ok := mcp.AsImageContent(content); ok {
			images = append(images, *img)
		}
	}
	return images
}
