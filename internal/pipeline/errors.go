package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidImage is wrapped by every InvalidImageError.
var ErrInvalidImage = errors.New("invalid image")

// InvalidImageError is returned by Detect when the raster cannot hold a card.
//
// It is the only error Detect returns. Every other failure is absorbed by a
// later tier and recorded in the result's debug trace.
type InvalidImageError struct {
	Width  int
	Height int
	Reason string
}

// Error implements the error interface.
func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image %dx%d: %s", e.Width, e.Height, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidImage.
func (e *InvalidImageError) Unwrap() error {
	return ErrInvalidImage
}
