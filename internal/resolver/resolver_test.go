package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devwelkin/hermes-static/internal/routes"
)

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func newRouteResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<h1>home</h1>")
	writeFile(t, filepath.Join(root, "css", "site.css"), "body{}")
	writeFile(t, filepath.Join(root, "my file.txt"), "spaced")

	r, err := New(root, "", routes.Default())
	require.NoError(t, err)
	return r, r.root
}

func newDirResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "b.png"), "\x89PNG")

	r, err := New(t.TempDir(), dir, nil)
	require.NoError(t, err)
	return r, r.serveDir
}

func TestRouteModeNegotiation(t *testing.T) {
	r, _ := newRouteResolver(t)

	for _, accept := range []string{"", "image/png", "text/plain"} {
		res := r.Resolve("/", accept)
		assert.Equal(t, UnsupportedMedia, res.Kind, accept)
	}
	// negotiation comes before the path is even looked at
	assert.Equal(t, UnsupportedMedia, r.Resolve("/missing", "image/png").Kind)
}

func TestRouteModeRoutedFile(t *testing.T) {
	r, root := newRouteResolver(t)

	res := r.Resolve("/", "text/html")
	assert.Equal(t, RoutedFile, res.Kind)
	assert.Equal(t, filepath.Join(root, "index.html"), res.Path)

	res = r.Resolve("/about?lang=en", "*/*")
	assert.Equal(t, RoutedFile, res.Kind)
	assert.Equal(t, filepath.Join(root, "aboutme.html"), res.Path)
}

func TestRouteModeMatchesDecodedPath(t *testing.T) {
	r, root := newRouteResolver(t)

	res := r.Resolve("/ab%6Fut", "*/*")
	assert.Equal(t, RoutedFile, res.Kind)
	assert.Equal(t, filepath.Join(root, "aboutme.html"), res.Path)

	// a bad escape is never matched literally
	assert.Equal(t, NotFound, r.Resolve("/ab%zzout", "*/*").Kind)
}

func TestRouteModeStaticFileWinsOverRoute(t *testing.T) {
	r, root := newRouteResolver(t)

	res := r.Resolve("/css/site.css", "text/css")
	assert.Equal(t, StaticFile, res.Kind)
	assert.Equal(t, filepath.Join(root, "css", "site.css"), res.Path)

	res = r.Resolve("/my%20file.txt", "*/*")
	assert.Equal(t, StaticFile, res.Kind)
	assert.Equal(t, filepath.Join(root, "my file.txt"), res.Path)
}

func TestRouteModeAcceptedButMissingIsNotFound(t *testing.T) {
	r, _ := newRouteResolver(t)

	assert.Equal(t, NotFound, r.Resolve("/missing", "application/json").Kind)
	assert.Equal(t, NotFound, r.Resolve("/css", "*/*").Kind)
	assert.Equal(t, NotFound, r.Resolve("/bad%zzescape", "*/*").Kind)
}

func TestDirectoryModeKinds(t *testing.T) {
	r, dir := newDirResolver(t)
	assert.True(t, r.DirectoryMode())

	res := r.Resolve("/", "")
	assert.Equal(t, DirectoryListing, res.Kind)
	assert.Equal(t, dir, res.Path)
	assert.Equal(t, "", res.URLPath)

	res = r.Resolve("/sub/", "")
	assert.Equal(t, DirectoryListing, res.Kind)
	assert.Equal(t, "sub", res.URLPath)

	res = r.Resolve("/sub/b.png", "image/png")
	assert.Equal(t, StaticFile, res.Kind)
	assert.Equal(t, filepath.Join(dir, "sub", "b.png"), res.Path)

	assert.Equal(t, NotFound, r.Resolve("/nope.txt", "").Kind)
}

func TestDirectoryModeIgnoresAccept(t *testing.T) {
	r, _ := newDirResolver(t)
	assert.Equal(t, StaticFile, r.Resolve("/a.txt", "image/gif").Kind)
}

func TestDirectoryModeTraversal(t *testing.T) {
	r, dir := newDirResolver(t)

	outside := filepath.Join(filepath.Dir(dir), "secret.txt")
	writeFile(t, outside, "do not serve")
	t.Cleanup(func() { os.Remove(outside) })

	attempts := []string{
		"/../secret.txt",
		"/../../../../etc/passwd",
		"/sub/../../secret.txt",
		"/%2e%2e/secret.txt",
		"/%2E%2E%2Fsecret.txt",
		"/sub/..%2F..%2Fsecret.txt",
		"//../secret.txt",
	}
	for _, target := range attempts {
		res := r.Resolve(target, "*/*")
		if res.Kind == NotFound {
			continue
		}
		assert.True(t, strings.HasPrefix(res.Path, dir), "%s resolved to %s", target, res.Path)
		assert.NotEqual(t, outside, res.Path, target)
	}
}

func TestDirectoryModeSymlinkEscape(t *testing.T) {
	r, dir := newDirResolver(t)

	outsideDir := t.TempDir()
	writeFile(t, filepath.Join(outsideDir, "secret.txt"), "nope")
	if err := os.Symlink(outsideDir, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	assert.Equal(t, NotFound, r.Resolve("/link/secret.txt", "").Kind)
	assert.Equal(t, NotFound, r.Resolve("/link/", "").Kind)
}

func TestNewRejectsBadServeDir(t *testing.T) {
	_, err := New(".", filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	_, err = New(".", file, nil)
	assert.Error(t, err)
}

func TestDecodePath(t *testing.T) {
	p, ok := DecodePath("/a%20b/c?x=%zz#frag")
	require.True(t, ok)
	assert.Equal(t, "/a b/c", p)

	_, ok = DecodePath("/%zz")
	assert.False(t, ok)
}

func TestContain(t *testing.T) {
	root := filepath.FromSlash("/srv/www")
	cases := map[string]string{
		"":                 "",
		"/":                "",
		"/a/b":             "a/b",
		"../../etc/passwd": "etc/passwd",
		"/a/../../b":       "b",
	}
	for in, wantRel := range cases {
		full, rel := contain(root, in)
		assert.Equal(t, wantRel, rel, in)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(wantRel)), full, in)
	}
}
