package imagegen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
)

// Validate checks that data is a decodable image of a sane size and returns its content type.
// WebP is accepted by signature only since no decoder is registered for it.
func Validate(data []byte, maxSize int) (string, error) {
	if len(data) <= minImageSize {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidImage, len(data))
	}
	if maxSize > 0 && len(data) > maxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/webp":
		return contentType, nil
	case "image/jpeg", "image/png", "image/gif":
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return contentType, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidImage, contentType)
	}
}
