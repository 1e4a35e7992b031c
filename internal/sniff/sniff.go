// Package sniff classifies uploaded payloads by their content rather than by the
// extension a client claims for them.
package sniff

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnrecognizedType is returned when content inspection finds no known signature.
var ErrUnrecognizedType = errors.New("unrecognized file type")

// headerLimit bounds how much of a payload is inspected. Office containers (zip, ole)
// keep their distinguishing entries further in than the library default.
const headerLimit = 64 * 1024

const defaultBaseName = "document"

func init() {
	mimetype.SetLimit(headerLimit)
}

// Result is the outcome of sniffing a payload.
type Result struct {
	// MIME is the detected media type without parameters, e.g. "text/plain".
	MIME string
	// Extension is the canonical extension for MIME, lower-case with a leading dot.
	Extension string
	// DeclaredExtension is whatever extension the caller supplied, lower-cased.
	DeclaredExtension string
	// BaseName is the declared file name stripped of directories and extension.
	BaseName string
}

// Spoofed reports whether the caller's extension disagreed with the content.
func (r Result) Spoofed() bool {
	return r.DeclaredExtension != r.Extension
}

// LogicalName is the grouping key for versions: base name plus detected extension.
func (r Result) LogicalName() string {
	return r.BaseName + r.Extension
}

// Detect inspects buf and returns its true type. declaredName only contributes the
// base name; its extension never overrides the detected one.
func Detect(buf []byte, declaredName string) (Result, error) {
	if len(buf) == 0 {
		return Result{}, ErrUnrecognizedType
	}

	m := mimetype.Detect(buf)
	if m == nil || m.Is("application/octet-stream") || m.Extension() == "" {
		return Result{}, ErrUnrecognizedType
	}

	base, declaredExt := splitName(declaredName)
	return Result{
		MIME:              stripParams(m.String()),
		Extension:         strings.ToLower(m.Extension()),
		DeclaredExtension: declaredExt,
		BaseName:          base,
	}, nil
}

// ExtensionFor returns the canonical extension for a stored media type, or "" when the
// type is unknown to the detector.
func ExtensionFor(mimeType string) string {
	if m := mimetype.Lookup(stripParams(mimeType)); m != nil {
		return strings.ToLower(m.Extension())
	}
	return ""
}

func splitName(name string) (base, ext string) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" {
		name = ""
	}
	ext = strings.ToLower(filepath.Ext(name))
	base = strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultBaseName
	}
	return base, ext
}

func stripParams(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		mt, _, _ = strings.Cut(v, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
