package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

var (
	// ErrUnsupportedImage is returned when the payload cannot be decoded as an image.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrImageTooLarge is returned when the decoded pixel count exceeds the limit.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// ProcessedImage is a re-encoded image ready for upload.
type ProcessedImage struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// NormalizeImage decodes raw bytes, applies EXIF orientation, shrinks the long
// edge to maxDimension and re-encodes. PNG input stays PNG, everything else
// becomes JPEG. Images with more than maxPixels pixels are rejected from the
// header alone, before any pixel data is decoded.
func NormalizeImage(raw []byte, maxDimension, maxPixels int) (*ProcessedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty dimensions", ErrUnsupportedImage)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	bounds := img.Bounds()
	if maxDimension > 0 && (bounds.Dx() > maxDimension || bounds.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	out := &ProcessedImage{ContentType: "image/jpeg", Extension: ".jpg"}
	encodeFormat := imaging.JPEG
	opts := []imaging.EncodeOption{imaging.JPEGQuality(85)}
	if format == "png" {
		out.ContentType = "image/png"
		out.Extension = ".png"
		encodeFormat = imaging.PNG
		opts = nil
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, encodeFormat, opts...); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	out.Data = buf.Bytes()
	out.Width = img.Bounds().Dx()
	out.Height = img.Bounds().Dy()
	return out, nil
}
