// Package util holds small helpers shared across batchwatch packages.
package util

// Ptr returns a pointer to v, for optional columns and literals.
func Ptr[T any](v T) *T {
	return &v
}
