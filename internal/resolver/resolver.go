// Package resolver decides what a request path refers to: a routed file, a
// static file, a directory listing, or nothing.
package resolver

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/devwelkin/hermes-static/internal/mimetype"
	"github.com/devwelkin/hermes-static/internal/routes"
)

// Kind tags a Resource.
type Kind int

const (
	NotFound Kind = iota
	UnsupportedMedia
	RoutedFile
	StaticFile
	DirectoryListing
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case UnsupportedMedia:
		return "unsupported-media"
	case RoutedFile:
		return "routed-file"
	case StaticFile:
		return "static-file"
	case DirectoryListing:
		return "directory-listing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Resource is the outcome of resolving one request path.
type Resource struct {
	Kind Kind
	// Path is the filesystem path for files and directories.
	Path string
	// URLPath is the decoded request path relative to the served root,
	// without a leading slash. Set for DirectoryListing.
	URLPath string
}

// Resolver is read-only after construction and safe for concurrent use.
type Resolver struct {
	root     string
	serveDir string
	routes   routes.Table
}

// New builds a Resolver. An empty serveDir selects route mode, where paths
// are looked up under root and in table; otherwise the whole serveDir tree is
// browsable.
func New(root, serveDir string, table routes.Table) (*Resolver, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", root, err)
	}
	r := &Resolver{root: absRoot, routes: table}

	if serveDir != "" {
		absDir, err := filepath.Abs(serveDir)
		if err != nil {
			return nil, fmt.Errorf("serve directory %q: %w", serveDir, err)
		}
		info, err := os.Stat(absDir)
		if err != nil {
			return nil, fmt.Errorf("serve directory %q: %w", serveDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("serve directory %q is not a directory", serveDir)
		}
		if real, err := filepath.EvalSymlinks(absDir); err == nil {
			absDir = real
		}
		r.serveDir = absDir
	}
	return r, nil
}

// DirectoryMode reports whether the resolver browses a directory tree.
func (r *Resolver) DirectoryMode() bool {
	return r.serveDir != ""
}

// Resolve maps a raw request target and the request's Accept header value to
// a Resource.
func (r *Resolver) Resolve(target, accept string) Resource {
	if r.DirectoryMode() {
		return r.resolveDirectory(target)
	}
	return r.resolveRoute(target, accept)
}

func (r *Resolver) resolveRoute(target, accept string) Resource {
	if !mimetype.Accepts(accept) {
		return Resource{Kind: UnsupportedMedia}
	}

	decoded, ok := DecodePath(target)
	if !ok {
		return Resource{Kind: NotFound}
	}

	if p, rel := contain(r.root, decoded); isRegular(p) {
		return Resource{Kind: StaticFile, Path: p, URLPath: rel}
	}

	// routes match the decoded path, same as static files
	route, ok := r.routes.Lookup(decoded)
	if !ok {
		return Resource{Kind: NotFound}
	}
	p, rel := contain(r.root, route.Target)
	return Resource{Kind: RoutedFile, Path: p, URLPath: rel}
}

func (r *Resolver) resolveDirectory(target string) Resource {
	decoded, ok := DecodePath(target)
	if !ok {
		return Resource{Kind: NotFound}
	}

	p, rel := contain(r.serveDir, decoded)

	// a symlink may still point outside the tree
	real, err := filepath.EvalSymlinks(p)
	if err != nil || !within(r.serveDir, real) {
		return Resource{Kind: NotFound}
	}

	info, err := os.Stat(real)
	switch {
	case err != nil:
		return Resource{Kind: NotFound}
	case info.IsDir():
		return Resource{Kind: DirectoryListing, Path: p, URLPath: rel}
	case info.Mode().IsRegular():
		return Resource{Kind: StaticFile, Path: p, URLPath: rel}
	default:
		return Resource{Kind: NotFound}
	}
}

// DecodePath strips any query or fragment from target and percent-decodes it.
// It reports false for a malformed escape such as %zz.
func DecodePath(target string) (string, bool) {
	if i := strings.IndexAny(target, "?#"); i != -1 {
		target = target[:i]
	}
	decoded, err := url.PathUnescape(target)
	if err != nil {
		return "", false
	}
	return decoded, true
}

// contain joins the url path p onto root so that the result can never climb
// above root. It returns the filesystem path and the cleaned path relative to
// root in slash form ("" for root itself).
func contain(root, p string) (string, string) {
	cleaned := path.Clean("/" + strings.TrimLeft(p, "/"))
	rel := strings.TrimPrefix(cleaned, "/")
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, full) {
		return root, ""
	}
	return full, rel
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isRegular(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
