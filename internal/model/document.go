package model

import "time"

// Document is one stored version of a logical document.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID          string    `json:"id"`
	LogicalName string    `json:"logical_name"`
	Filename    string    `json:"filename"`
	StorageKey  string    `json:"storage_key"`
	Version     int       `json:"version"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Extension   string    `json:"extension"`
	IsCurrent   bool      `json:"is_current"`
	CreatedAt   time.Time `json:"created_at"`
}
