package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	RatioLandscape = "1280:720"
	RatioPortrait  = "720:1280"

	maxUploadEdge = 1024
	jpegQuality   = 85
)

var ErrUndecodable = errors.New("image could not be decoded")

// Info describes the decoded header of an image.
type Info struct {
	Width  int
	Height int
	Format string
}

// Inspect reads the image header without decoding pixels.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// AspectRatio maps dimensions onto the two supported output ratios. Square
// images are treated as landscape.
func AspectRatio(width, height int) string {
	if width >= height {
		return RatioLandscape
	}
	return RatioPortrait
}

// PrepareForUpload downsizes the image to fit within 1024x1024 and re-encodes
// it as JPEG. Smaller images are re-encoded without resizing.
func PrepareForUpload(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxUploadEdge || bounds.Dy() > maxUploadEdge {
		img = imaging.Fit(img, maxUploadEdge, maxUploadEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes data as a base64 data URL, sniffing the content type.
func DataURL(data []byte) string {
	contentType := http.DetectContentType(data)
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
