package headers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedHeader is returned for a header line without a ": " separator.
var ErrMalformedHeader = errors.New("malformed header line")

// Headers maps lowercased field names to their value.
type Headers map[string]string

func NewHeaders() Headers {
	return map[string]string{}
}

// ParseLine parses a single "Name: Value" line and stores it. Names are
// lowercased; a repeated name overwrites the earlier value.
func (h Headers) ParseLine(line string) error {
	name, value, ok := strings.Cut(line, ": ")
	if !ok {
		return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}

	// last one wins
	h[strings.ToLower(name)] = value
	return nil
}

// Get looks up a header by name, case-insensitively.
func (h Headers) Get(key string) (string, bool) {
	value, ok := h[strings.ToLower(key)]
	return value, ok
}

// Set adds or overwrites a header.
func (h Headers) Set(key, value string) {
	h[strings.ToLower(key)] = value
}
