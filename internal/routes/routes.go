// Package routes holds the static url-path → file table used in route mode.
package routes

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMalformedRoute = errors.New("malformed route")

// Route maps an exact url path to a file under the static root.
type Route struct {
	URLPath string
	Target  string
}

// Table is an ordered route list. It is built once and never modified.
type Table []Route

// Default is the table the server ships with.
func Default() Table {
	return Table{
		{URLPath: "/", Target: "index.html"},
		{URLPath: "/about", Target: "aboutme.html"},
		{URLPath: "/ping", Target: "pong.html"},
	}
}

// Lookup returns the first route whose URLPath equals urlPath exactly.
// Later duplicates are never reached.
func (t Table) Lookup(urlPath string) (Route, bool) {
	for _, r := range t {
		if r.URLPath == urlPath {
			return r, true
		}
	}
	return Route{}, false
}

// Load reads a route file: one "<url-path> <target-file>" pair per line.
// Blank lines and lines starting with '#' are skipped; order is kept.
func Load(r io.Reader) (Table, error) {
	var t Table
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || !strings.HasPrefix(fields[0], "/") {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedRoute, lineNo, line)
		}
		t = append(t, Route{URLPath: fields[0], Target: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
