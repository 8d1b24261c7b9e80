// Package security enforces the file access policy shared by every tool
// that touches the filesystem. Paths must resolve inside the allowed roots,
// and an optional deny list blocks sensitive files by glob.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Global manager instance
var (
	globalManager *Manager
	globalMutex   sync.RWMutex
)

// Manager enforces the file access policy. Checks are safe for concurrent
// use; the deny list reloads in the background when its file changes.
type Manager struct {
	logger *logrus.Logger
	roots  []string
	deny   *denyList
}

// NewManager builds a manager whose allowed roots are the working directory
// plus any PDFBLOCKS_ALLOWED_ROOTS entries (comma-separated). Roots are
// resolved through symlinks once, up front, and the deny list is loaded
// from the security file when one exists.
func NewManager(logger *logrus.Logger) (*Manager, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	roots := []string{cwd}
	for _, root := range strings.Split(os.Getenv("PDFBLOCKS_ALLOWED_ROOTS"), ",") {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		roots = append(roots, expandHome(root))
	}

	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		resolved = append(resolved, resolvePath(root))
	}

	deny, err := newDenyList(logger, denyFilePath())
	if err != nil {
		return nil, err
	}

	return &Manager{logger: logger, roots: resolved, deny: deny}, nil
}

// NewManagerWithRoots builds a manager with explicit roots and deny
// patterns, bypassing the environment and the security file. Intended for
// tests.
func NewManagerWithRoots(logger *logrus.Logger, roots []string, denyPatterns []string) *Manager {
	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		resolved = append(resolved, resolvePath(root))
	}

	deny := &denyList{logger: logger}
	deny.setPatterns(denyPatterns)

	return &Manager{logger: logger, roots: resolved, deny: deny}
}

// CheckFileAccess reports whether the policy allows touching path. The path
// is resolved through symlinks before both checks, so a link inside a root
// cannot smuggle access to a target outside it. The returned error message
// is written for the client, not the log.
func (m *Manager) CheckFileAccess(path string) error {
	resolved := resolvePath(path)

	if !m.insideRoots(resolved) {
		m.logger.WithFields(logrus.Fields{
			"path":     path,
			"resolved": resolved,
		}).Warn("Blocked file access outside allowed roots")
		return errors.New("Access denied: File path must be within the current working directory")
	}

	if pattern, denied := m.deny.match(resolved); denied {
		m.logger.WithFields(logrus.Fields{
			"path":    path,
			"pattern": pattern,
		}).Warn("Blocked file access by deny list")
		return fmt.Errorf("Access denied: %s is blocked by the security deny list", path)
	}

	return nil
}

func (m *Manager) insideRoots(path string) bool {
	for _, root := range m.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Close stops the deny list watcher
func (m *Manager) Close() error {
	return m.deny.close()
}

// Init builds the global manager once. A failure logs a warning and leaves
// the policy disabled rather than refusing to start the server.
func Init(logger *logrus.Logger) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalManager != nil {
		return
	}

	manager, err := NewManager(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise security manager, continuing without file access policy")
		return
	}
	globalManager = manager
}

// CheckFileAccess checks a path against the global policy. Paths are
// allowed when the policy was never initialised.
func CheckFileAccess(path string) error {
	globalMutex.RLock()
	manager := globalManager
	globalMutex.RUnlock()

	if manager == nil {
		return nil
	}
	return manager.CheckFileAccess(path)
}

// SetGlobalManager swaps the global manager and returns the previous one.
// Intended for tests.
func SetGlobalManager(m *Manager) *Manager {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	prev := globalManager
	globalManager = m
	return prev
}

// denyFilePath returns the deny list location: PDFBLOCKS_SECURITY_FILE, or
// ~/.pdfblocks/security.yaml
func denyFilePath() string {
	if path := os.Getenv("PDFBLOCKS_SECURITY_FILE"); path != "" {
		return expandHome(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pdfblocks", "security.yaml")
}

// resolvePath makes a path absolute and follows symlinks. A path that does
// not exist yet is resolved through its deepest existing ancestor so the
// containment check still sees where it would land.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	dir, rest := filepath.Dir(abs), filepath.Base(abs)
	for {
		if resolvedDir, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolvedDir, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// expandHome expands ~ to the user's home directory
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
