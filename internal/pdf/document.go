package pdf

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	// Embedded images come back from pdfcpu as PNG, JPEG or TIFF files
	// depending on the stream filter, plus the odd GIF or BMP.
	_ "image/gif"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Document is the structural view of a PDF file, backed by pdfcpu. It
// answers page counts, per-page image counts and parser diagnostics, and
// extracts embedded image objects. Not safe for concurrent use.
type Document struct {
	path string
	file *os.File
	conf *model.Configuration
	ctx  *model.Context
}

// OpenDocument opens and validates a PDF. Validation is relaxed so that
// the slightly malformed files common in the wild still load; files that
// fail even relaxed validation surface as an error here.
func OpenDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read PDF structure: %w", err)
	}

	return &Document{path: path, file: f, conf: conf, ctx: ctx}, nil
}

// Close releases the underlying file handle.
func (d *Document) Close() error {
	return d.file.Close()
}

// Path returns the file path the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// PageImageCount returns how many image objects a page references. Used
// for request validation and range suggestion before any extraction work.
func (d *Document) PageImageCount(pageNr int) int {
	if d.ctx.Optimize == nil {
		return 0
	}
	return len(pdfcpu.ImageObjNrs(d.ctx, pageNr))
}

// MalformedObjects counts indirect references on a page that fail to
// dereference. The content streams plus the XObject and Font resource
// dictionaries are checked; a damaged file shows up as dangling object
// pointers here even when its text still extracts.
func (d *Document) MalformedObjects(pageNr int) int {
	pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil || pageDict == nil {
		return 0
	}

	malformed := 0

	if obj, found := pageDict.Find("Contents"); found {
		switch contents := obj.(type) {
		case types.Array:
			for _, entry := range contents {
				if _, err := d.ctx.Dereference(entry); err != nil {
					malformed++
				}
			}
		default:
			if _, err := d.ctx.Dereference(obj); err != nil {
				malformed++
			}
		}
	}

	resObj, found := pageDict.Find("Resources")
	if !found {
		return malformed
	}
	resources, err := d.ctx.DereferenceDict(resObj)
	if err != nil {
		return malformed + 1
	}
	for _, key := range []string{"XObject", "Font"} {
		obj, found := resources.Find(key)
		if !found {
			continue
		}
		dict, err := d.ctx.DereferenceDict(obj)
		if err != nil {
			malformed++
			continue
		}
		for _, ref := range dict {
			if _, err := d.ctx.Dereference(ref); err != nil {
				malformed++
			}
		}
	}

	return malformed
}

// ExtractPageImages pulls the embedded image objects of one page and
// decodes their pixel dimensions. Images that cannot be read or decoded
// are skipped individually so a single broken object never loses the
// rest of the page.
func (d *Document) ExtractPageImages(pageNr int, logger *logrus.Logger) ([]EmbeddedImage, error) {
	tempDir, err := os.MkdirTemp("", "pdfblocks_images_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.WithError(err).Warn("Failed to clean up image temp directory")
		}
	}()

	pageSelection := []string{strconv.Itoa(pageNr)}
	if err := api.ExtractImagesFile(d.path, tempDir, pageSelection, d.conf); err != nil {
		return nil, fmt.Errorf("failed to extract images from page %d: %w", pageNr, err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list extracted images: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var images []EmbeddedImage
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tempDir, name))
		if err != nil {
			logger.WithError(err).WithField("image", name).Debug("Skipping unreadable extracted image")
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			logger.WithError(err).WithField("image", name).Debug("Skipping undecodable extracted image")
			continue
		}
		images = append(images, EmbeddedImage{
			Data:   data,
			Width:  cfg.Width,
			Height: cfg.Height,
			// pdfcpu exposes no placement coordinates for image objects,
			// so the display size falls back to the intrinsic pixels and
			// the vertical position to the top of the page.
			DisplayWidth:  cfg.Width,
			DisplayHeight: cfg.Height,
			Top:           0,
		})
	}

	return images, nil
}
