// Package mimetype holds the static content-type tables: extension lookup,
// binary classification and the set of types the server negotiates.
package mimetype

import (
	"path/filepath"
	"strings"
)

const (
	OctetStream = "application/octet-stream"
	HTML        = "text/html"
	Plain       = "text/plain"
)

var byExtension = map[string]string{
	"html":    HTML,
	"css":     "text/css",
	"js":      "application/javascript",
	"json":    "application/json",
	"pdf":     "application/pdf",
	"xml":     "text/xml",
	"png":     "image/png",
	"jpg":     "image/jpeg",
	"jpeg":    "image/jpeg",
	"gif":     "image/gif",
	"zip":     "application/zip",
	"py":      Plain,
	"svg":     "image/svg+xml",
	"svg+xml": "image/svg+xml",
	"c":       Plain,
	"cpp":     Plain,
	"csv":     "text/csv",
	"webp":    "image/webp",
	"txt":     Plain,
}

var binaryTypes = map[string]bool{
	OctetStream:       true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
	"application/zip": true,
}

// acceptable is the fixed allow-list matched against a request's Accept header.
var acceptable = []string{
	"text/css",
	"*/*",
	HTML,
	"application/json",
	"application/javascript",
}

// ByPath returns the content type for the extension of name.
// Unknown or missing extensions map to OctetStream.
func ByPath(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if t, ok := byExtension[strings.ToLower(ext)]; ok {
		return t
	}
	return OctetStream
}

// IsBinary reports whether bodies of contentType must be sent as raw bytes.
func IsBinary(contentType string) bool {
	return binaryTypes[contentType]
}

// Acceptable returns a copy of the negotiated allow-list.
func Acceptable() []string {
	out := make([]string, len(acceptable))
	copy(out, acceptable)
	return out
}

// Accepts reports whether the Accept header value names at least one type
// from the allow-list. Media-range parameters (";q=0.8") are ignored.
func Accepts(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaRange, _, _ := strings.Cut(part, ";")
		mediaRange = strings.ToLower(strings.TrimSpace(mediaRange))
		if mediaRange == "" {
			continue
		}
		for _, t := range acceptable {
			if mediaRange == t {
				return true
			}
		}
	}
	return false
}
