// Package pages renders the html the server generates itself: error pages
// and directory listings.
package pages

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/devwelkin/hermes-static/internal/response"
)

const pageHead = `<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8">` +
	`<meta name="viewport" content="width=device-width, initial-scale=1.0"><title>%s</title></head>`

// ErrorData is what an error template is executed with.
type ErrorData struct {
	Code   int
	Reason string
	Title  string
}

// Builder renders pages. The zero value uses the built-in error page.
type Builder struct {
	errorTmpl *template.Template
}

// NewBuilder returns a Builder that renders error pages with the template
// file at templatePath, or the built-in page if templatePath is empty.
func NewBuilder(templatePath string) (*Builder, error) {
	if templatePath == "" {
		return &Builder{}, nil
	}
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("error page template: %w", err)
	}
	return &Builder{errorTmpl: tmpl}, nil
}

// ErrorPage renders the page for code, titled "<code> <reason>".
func (b *Builder) ErrorPage(code response.StatusCode) ([]byte, error) {
	title := code.String()
	if b == nil || b.errorTmpl == nil {
		return DefaultErrorPage(code), nil
	}

	var buf bytes.Buffer
	err := b.errorTmpl.Execute(&buf, ErrorData{Code: int(code), Reason: code.Reason(), Title: title})
	if err != nil {
		return nil, fmt.Errorf("render %s page: %w", title, err)
	}
	return buf.Bytes(), nil
}

// DefaultErrorPage is the built-in error page.
func DefaultErrorPage(code response.StatusCode) []byte {
	title := html.EscapeString(code.String())

	var b strings.Builder
	fmt.Fprintf(&b, pageHead, title)
	b.WriteString(`<body><div style="display: flex; justify-content: center; align-items: center; height: 90vh; width: 80vw; margin: auto;">`)
	fmt.Fprintf(&b, `<h1 id="content" style="font-size: 2cm;">%s</h1></div></body></html>`, title)
	return []byte(b.String())
}

// DirectoryListing lists the immediate children of dirPath. urlPath is the
// directory's decoded path relative to the served root ("" for the root).
// Links are percent-encoded, displayed names are not. Directories get a
// trailing slash. It returns false if dirPath cannot be read.
func DirectoryListing(dirPath, urlPath string) ([]byte, bool) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, false
	}

	urlPath = strings.Trim(urlPath, "/")
	base := "/"
	if urlPath != "" {
		base = escapePath(urlPath) + "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, pageHead, "Directory Listing")
	fmt.Fprintf(&b, "<body><h1>Directory Listing for /%s</h1><hr><ul>", html.EscapeString(urlPath))

	if urlPath != "" {
		parent := path.Dir("/" + urlPath)
		if parent != "/" {
			parent = escapePath(strings.TrimPrefix(parent, "/")) + "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">../</a></li>`, parent)
	}

	for _, e := range entries {
		name := e.Name()
		href := base + url.PathEscape(name)
		display := html.EscapeString(name)
		if isDir(dirPath, e) {
			href += "/"
			display += "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, href, display)
	}
	b.WriteString("</ul><hr></body></html>")

	return []byte(b.String()), true
}

// escapePath percent-encodes each segment of a slash-separated relative path
// and returns it rooted.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

// isDir follows symlinks so a link to a directory is listed as one.
func isDir(dirPath string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dirPath, e.Name()))
	return err == nil && info.IsDir()
}
