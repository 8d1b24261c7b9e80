// Package config holds the extraction configuration for pdfblocks.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then PDF_* environment variables. The resulting Config is passed
// explicitly to every component that needs it - there is no package-level
// configuration state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Mode selects how read_pdf extracts page content.
type Mode string

const (
	// ModeAuto extracts text and tables, adding a rendered page image only
	// when the extracted text looks corrupted.
	ModeAuto Mode = "auto"
	// ModeTextOnly extracts text and tables and never renders page images.
	ModeTextOnly Mode = "text_only"
	// ModeImageOnly skips text extraction and returns rendered page images.
	ModeImageOnly Mode = "image_only"
)

// ParseMode validates and returns an extraction mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeTextOnly, ModeImageOnly:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid extraction mode %q (must be auto, text_only or image_only)", s)
}

// Config holds all tunable limits and thresholds for PDF extraction.
type Config struct {
	// Core request limits
	MaxPagesPerRequest  int `yaml:"max_pages_per_request"`
	MaxImagesPerRequest int `yaml:"max_images_per_request"`
	MaxRecursionDepth   int `yaml:"max_recursion_depth"`
	MaxSuggestedRanges  int `yaml:"max_suggested_ranges"`

	// Image processing
	MaxImageDimension int `yaml:"max_image_dimension"`
	MinImageDimension int `yaml:"min_image_dimension"`
	MaxAspectRatio    float64 `yaml:"max_aspect_ratio"`
	PageImageDPI      int `yaml:"page_image_dpi"`
	JPEGQuality       int `yaml:"jpeg_quality"`

	// Header/footer filtering, as fractions of the page height
	HeaderFooterRatio float64 `yaml:"header_footer_ratio"`
	FooterStartRatio  float64 `yaml:"footer_start_ratio"`

	// Text corruption detection
	CorruptionThreshold float64 `yaml:"corruption_threshold"`

	// Extraction mode used when the request does not specify one
	DefaultExtractionMode Mode `yaml:"default_extraction_mode"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxPagesPerRequest:    10,
		MaxImagesPerRequest:   50,
		MaxRecursionDepth:     2,
		MaxSuggestedRanges:    5,
		MaxImageDimension:     842, // A4 height in pixels at 72 DPI
		MinImageDimension:     28,
		MaxAspectRatio:        15.0,
		PageImageDPI:          100,
		JPEGQuality:           85,
		HeaderFooterRatio:     0.06,
		FooterStartRatio:      0.94,
		CorruptionThreshold:   0.3,
		DefaultExtractionMode: ModeAuto,
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// PDF_* environment variables, in increasing order of precedence.
func Load(logger *logrus.Logger) Config {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg := Default()
	cfg.applyFile(logger)
	cfg.applyEnv(logger)
	return cfg
}

// ConfigFilePath returns the YAML config file location: PDF_CONFIG_FILE if
// set, otherwise ~/.pdfblocks/config.yaml.
func ConfigFilePath() string {
	if p := os.Getenv("PDF_CONFIG_FILE"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".pdfblocks", "config.yaml")
}

func (c *Config) applyFile(logger *logrus.Logger) {
	path := ConfigFilePath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return // no config file is the normal case
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Invalid config file, using defaults")
		*c = Default()
	}
}

func (c *Config) applyEnv(logger *logrus.Logger) {
	envInt(logger, "PDF_MAX_PAGES_PER_REQUEST", &c.MaxPagesPerRequest)
	envInt(logger, "PDF_MAX_IMAGES_PER_REQUEST", &c.MaxImagesPerRequest)
	envInt(logger, "PDF_MAX_RECURSION_DEPTH", &c.MaxRecursionDepth)
	envInt(logger, "PDF_MAX_SUGGESTED_RANGES", &c.MaxSuggestedRanges)
	envInt(logger, "PDF_MAX_IMAGE_DIMENSION", &c.MaxImageDimension)
	envInt(logger, "PDF_MIN_IMAGE_DIMENSION", &c.MinImageDimension)
	envFloat(logger, "PDF_MAX_ASPECT_RATIO", &c.MaxAspectRatio)
	envInt(logger, "PDF_PAGE_IMAGE_DPI", &c.PageImageDPI)
	envInt(logger, "PDF_JPEG_QUALITY", &c.JPEGQuality)
	envFloat(logger, "PDF_HEADER_FOOTER_RATIO", &c.HeaderFooterRatio)
	envFloat(logger, "PDF_FOOTER_START_RATIO", &c.FooterStartRatio)
	envFloat(logger, "PDF_CORRUPTION_THRESHOLD", &c.CorruptionThreshold)

	if v := os.Getenv("PDF_DEFAULT_EXTRACTION_MODE"); v != "" {
		mode, err := ParseMode(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			logger.WithField("value", v).Warn("Invalid PDF_DEFAULT_EXTRACTION_MODE, keeping previous value")
		} else {
			c.DefaultExtractionMode = mode
		}
	}
}

func envInt(logger *logrus.Logger, key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.WithField("var", key).Warn("Invalid integer value, keeping previous value")
		return
	}
	*dst = parsed
}

func envFloat(logger *logrus.Logger, key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.WithField("var", key).Warn("Invalid float value, keeping previous value")
		return
	}
	*dst = parsed
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.MaxPagesPerRequest <= 0 {
		return fmt.Errorf("max_pages_per_request must be greater than 0")
	}
	if c.MaxImagesPerRequest <= 0 {
		return fmt.Errorf("max_images_per_request must be greater than 0")
	}
	if c.MaxSuggestedRanges <= 0 {
		return fmt.Errorf("max_suggested_ranges must be greater than 0")
	}
	if c.MinImageDimension <= 0 || c.MaxImageDimension < c.MinImageDimension {
		return fmt.Errorf("image dimension limits must satisfy 0 < min <= max (got min=%d max=%d)",
			c.MinImageDimension, c.MaxImageDimension)
	}
	if c.MaxAspectRatio <= 1 {
		return fmt.Errorf("max_aspect_ratio must be greater than 1")
	}
	if c.PageImageDPI < 50 || c.PageImageDPI > 300 {
		return fmt.Errorf("page_image_dpi must be between 50 and 300")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}
	if c.HeaderFooterRatio < 0 || c.FooterStartRatio > 1 || c.HeaderFooterRatio >= c.FooterStartRatio {
		return fmt.Errorf("header/footer ratios must satisfy 0 <= header_footer_ratio < footer_start_ratio <= 1")
	}
	if c.CorruptionThreshold <= 0 || c.CorruptionThreshold > 1 {
		return fmt.Errorf("corruption_threshold must be in (0, 1]")
	}
	if _, err := ParseMode(string(c.DefaultExtractionMode)); err != nil {
		return err
	}
	return nil
}
