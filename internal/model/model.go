package model

// Package model contains domain models/data structures.
// Keep it free of business logic.

// VersionInfo summarizes where a document sits in its logical name's history.
type VersionInfo struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Document
	VersionInfo VersionInfo `json:"version_info"`
	Spoofed     bool        `json:"extension_corrected"`
}

// VersionList groups every stored version of a logical name, newest first.
type VersionList struct {
	LogicalName   string     `json:"logical_name"`
	TotalVersions int        `json:"total_versions"`
	Versions      []Document `json:"versions"`
}
