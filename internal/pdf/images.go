package pdf

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/pdfblocks/pdfblocks/internal/config"
)

// ImageProcessor filters and downsizes extracted images before they are
// returned to the client
type ImageProcessor struct {
	cfg config.Config
}

// NewImageProcessor returns a processor using the given limits
func NewImageProcessor(cfg config.Config) *ImageProcessor {
	return &ImageProcessor{cfg: cfg}
}

// IsHeaderFooterImage reports whether an image of the given pixel size looks
// like page furniture: below the minimum dimension, or with an aspect ratio
// extreme enough to be a rule line or border. A MaxAspectRatio of 0 disables
// the aspect check.
func (p *ImageProcessor) IsHeaderFooterImage(width, height int) bool {
	if width < p.cfg.MinImageDimension || height < p.cfg.MinImageDimension {
		return true
	}

	if p.cfg.MaxAspectRatio > 0 && width > 0 && height > 0 {
		aspect := math.Max(float64(width)/float64(height), float64(height)/float64(width))
		if aspect > p.cfg.MaxAspectRatio {
			return true
		}
	}

	return false
}

// ShrinkToLimit decodes an image and scales it down so neither dimension
// exceeds maxDimension, preserving aspect ratio. Images already small enough
// are returned as the original bytes without a re-encode. Images below the
// minimum dimension, and bytes that do not decode at all, are discarded by
// returning nil data. The reported dimensions are those of the returned
// image.
func (p *ImageProcessor) ShrinkToLimit(data []byte, maxDimension int) ([]byte, int, int) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < p.cfg.MinImageDimension || height < p.cfg.MinImageDimension {
		return nil, width, height
	}

	if width <= maxDimension && height <= maxDimension {
		return data, width, height
	}

	scale := math.Min(float64(maxDimension)/float64(width), float64(maxDimension)/float64(height))
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	resized := resizeImage(img, newWidth, newHeight)

	var encoded []byte
	var encodeErr error
	if format == "jpeg" {
		encoded, encodeErr = EncodeJPEG(resized, p.cfg.JPEGQuality)
	} else {
		encoded, encodeErr = EncodePNG(resized)
	}
	if encodeErr != nil {
		return data, width, height
	}

	return encoded, newWidth, newHeight
}

// FitWithin scales an image down to fit inside the given bounds, preserving
// aspect ratio. Images already inside the bounds pass through unchanged;
// images are never upscaled.
func FitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width <= maxWidth && height <= maxHeight {
		return img
	}

	scale := math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	return resizeImage(img, int(float64(width)*scale), int(float64(height)*scale))
}

// resizeImage rescales with Catmull-Rom resampling, the highest quality
// kernel available for downscaling
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// EncodePNG encodes an image as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes an image as JPEG at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
