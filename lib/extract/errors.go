package extract

import (
	"errors"
	"fmt"
)

var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeMismatchError is returned when an upstream document lacks a path the
// extraction depends on, it is never worth retrying.
type ShapeMismatchError struct {
	Path string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: missing %s", e.Path)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
