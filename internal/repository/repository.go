// Package repository contains catalog abstractions for document records.
// Implementations live in subpackages (postgres, memory).
package repository

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool {
	return &v
}
