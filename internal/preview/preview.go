// Package preview turns stored document bytes into a PNG preview.
//
// A Dispatcher classifies the content type, hands the bytes to the Backend registered
// for that category and falls back to a rendered placeholder image whenever the
// category is unknown or the backend fails, panics or runs out of time. Callers
// always get a PNG.
package preview

import (
	"context"
	"errors"
	"mime"
	"strings"
)

var (
	// ErrEmptyBuffer is returned by backends given zero bytes.
	ErrEmptyBuffer = errors.New("empty buffer")
	// ErrUnsupportedDocument is returned for inputs a backend recognizes but cannot
	// render, such as a PDF without pages.
	ErrUnsupportedDocument = errors.New("unsupported document")
	// ErrMalformedOutput is returned when a backend produces something that is not a PNG.
	ErrMalformedOutput = errors.New("backend produced malformed output")
)

// ContentTypePNG is the content type of every preview.
const ContentTypePNG = "image/png"

// Category is a family of content types sharing one rendering strategy.
type Category string

const (
	CategoryUnknown Category = ""
	CategoryImage   Category = "image"
	CategoryPDF     Category = "pdf"
	CategoryOffice  Category = "office"
	CategoryText    Category = "text"
)

// Label is the human-readable name used in placeholder messages.
func (c Category) Label() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryPDF:
		return "PDF"
	case CategoryOffice:
		return "office document"
	case CategoryText:
		return "text"
	}
	return "document"
}

// metricLabel never returns an empty string.
func (c Category) metricLabel() string {
	if c == CategoryUnknown {
		return "unknown"
	}
	return string(c)
}

// officeFormats lists the office formats LibreOffice is asked to convert.
var officeFormats = []struct{ ext, mime string }{
	{".doc", "application/msword"},
	{".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	{".xls", "application/vnd.ms-excel"},
	{".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	{".ppt", "application/vnd.ms-powerpoint"},
	{".pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	{".odt", "application/vnd.oasis.opendocument.text"},
	{".ods", "application/vnd.oasis.opendocument.spreadsheet"},
	{".odp", "application/vnd.oasis.opendocument.presentation"},
}

// officeTypes maps office MIME types to the extension LibreOffice expects.
var officeTypes = func() map[string]string {
	m := make(map[string]string, len(officeFormats))
	for _, f := range officeFormats {
		m[f.mime] = f.ext
	}
	return m
}()

var textTypes = map[string]bool{
	"text/plain":       true,
	"text/csv":         true,
	"application/json": true,
}

// Classify maps a content type (parameters allowed) to its Category.
func Classify(contentType string) Category {
	mt := normalizeType(contentType)
	switch {
	case mt == "":
		return CategoryUnknown
	case strings.HasPrefix(mt, "image/"):
		return CategoryImage
	case mt == "application/pdf":
		return CategoryPDF
	case officeTypes[mt] != "":
		return CategoryOffice
	case textTypes[mt]:
		return CategoryText
	}
	return CategoryUnknown
}

func normalizeType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

// State is a step in a single render.
type State string

const (
	StateReceived   State = "received"
	StateClassified State = "classified"
	StateRendering  State = "rendering"
	StateRendered   State = "rendered"
	StateFallback   State = "fallback"
)

// Input is what the dispatcher renders. ContentType is trusted as stored; the bytes
// are not sniffed again. Name is only used to label the unsupported placeholder.
type Input struct {
	Data        []byte
	ContentType string
	Name        string
}

// Result is the outcome of a render. PNG is always set.
// Err holds the cause of a fallback and is nil otherwise.
type Result struct {
	PNG         []byte
	ContentType string
	Category    Category
	State       State
	Err         error
}

// Backend renders one category of documents to PNG bytes.
type Backend interface {
	Render(ctx context.Context, in Input) ([]byte, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, in Input) ([]byte, error)

func (f BackendFunc) Render(ctx context.Context, in Input) ([]byte, error) { return f(ctx, in) }
