// Package upload validates user supplied files and normalises images.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// Common MIME allow-lists.
var (
	ImageMIMEs = []string{"image/png", "image/jpeg", "image/gif"}
	PDFMIMEs   = []string{"application/pdf"}
)

// Validation failures surfaced to callers.
var (
	ErrEmpty       = errors.New("file is empty")
	ErrTooLarge    = errors.New("file exceeds size limit")
	ErrUnsupported = errors.New("file type not allowed")
)

// ReadLimited reads at most maxBytes from r, failing with ErrTooLarge beyond it.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Detect sniffs the content and checks it against the allowed MIME types.
// Client supplied Content-Type headers are ignored.
func Detect(data []byte, allowed []string) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	detected := mimetype.Detect(data)
	for _, mt := range allowed {
		if detected.Is(mt) {
			return detected, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected.String())
}

// SquareThumbnail crops the image around its centre and scales it to size x size PNG.
func SquareThumbnail(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
