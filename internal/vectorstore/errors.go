package vectorstore

import "errors"

var (
	// ErrDimensionMismatch indicates a vector whose dimensionality does
	// not match the collection configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
