package security

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// denyFile is the on-disk shape of the optional security file
type denyFile struct {
	// DenyFiles holds glob patterns matched against both the full resolved
	// path and the base name
	DenyFiles []string `yaml:"deny_files"`
	// AutoReload controls the file watcher; unset means enabled
	AutoReload *bool `yaml:"auto_reload"`
}

// denyList holds the compiled deny globs, hot reloading when the security
// file changes
type denyList struct {
	logger *logrus.Logger
	path   string

	mutex    sync.RWMutex
	patterns []string
	watcher  *fsnotify.Watcher
}

// newDenyList loads the deny list from path. A missing file means an empty
// list; a present file is watched for changes unless it opts out.
func newDenyList(logger *logrus.Logger, path string) (*denyList, error) {
	d := &denyList{logger: logger, path: path}
	if path == "" {
		return d, nil
	}

	autoReload, err := d.load()
	if err != nil {
		return nil, err
	}

	if autoReload {
		if err := d.watch(); err != nil {
			logger.WithError(err).Warn("Failed to watch security deny list, auto-reload disabled")
		}
	}
	return d, nil
}

// load reads the deny file and swaps in its patterns, reporting whether the
// watcher should run. A file that does not exist is an empty list and needs
// no watching.
func (d *denyList) load() (bool, error) {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		d.setPatterns(nil)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read security file: %w", err)
	}

	var file denyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return false, fmt.Errorf("failed to parse security file %s: %w", d.path, err)
	}

	d.setPatterns(file.DenyFiles)
	return file.AutoReload == nil || *file.AutoReload, nil
}

// setPatterns normalises and installs the deny patterns: home expansion,
// then NFC so rules written on any platform match NFD filenames from macOS
// volumes
func (d *denyList) setPatterns(patterns []string) {
	normalized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		normalized = append(normalized, norm.NFC.String(expandHome(pattern)))
	}

	d.mutex.Lock()
	d.patterns = normalized
	d.mutex.Unlock()
}

// match reports whether a resolved path hits a deny pattern. Both the base
// name and the full path are tried, so "*.key" blocks key files anywhere
// while patterns with separators pin a location.
func (d *denyList) match(path string) (string, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if len(d.patterns) == 0 {
		return "", false
	}

	normalized := norm.NFC.String(path)
	base := filepath.Base(normalized)

	for _, pattern := range d.patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return pattern, true
		}
		if ok, _ := filepath.Match(pattern, normalized); ok {
			return pattern, true
		}
	}
	return "", false
}

// watch reloads the deny list whenever the security file is rewritten
func (d *denyList) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(d.path); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			d.logger.WithError(closeErr).Warn("Failed to close watcher after add error")
		}
		return fmt.Errorf("failed to watch security file: %w", err)
	}
	d.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					d.logger.Debug("Security deny list changed, reloading")
					if _, err := d.load(); err != nil {
						d.logger.WithError(err).Error("Failed to reload security deny list")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.WithError(err).Error("Security deny list watcher error")
			}
		}
	}()
	return nil
}

// close stops the watcher when one is running
func (d *denyList) close() error {
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Close()
}
