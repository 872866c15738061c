// request.go

package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devwelkin/hermes-static/internal/headers"
)

// Custom errors
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrInvalidEncoding  = errors.New("request is not valid utf-8")
	ErrEmptyRequest     = errors.New("connection closed before any data was sent")
	ErrHeaderTooLarge   = errors.New("request header block too large")
	ErrBodyTooLarge     = errors.New("declared request body too large")
)

type Request struct {
	RequestLine RequestLine
	Headers     headers.Headers
	Body        []byte
}

type RequestLine struct {
	HTTPVersion   string
	RequestTarget string
	Method        string
}

// RequestFromReader reads one message from reader and parses it.
func RequestFromReader(reader io.Reader, idle time.Duration) (*Request, error) {
	raw, err := ReadMessage(reader, idle)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse turns a raw message into a Request. Method, target and version are
// always non-empty on success.
func Parse(raw []byte) (*Request, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidEncoding
	}

	head, body, err := splitMessage(raw)
	if err != nil {
		return nil, err
	}

	// framing and parsing must agree on the body length
	if _, err := contentLength(head); err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")

	reqLine, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	h := headers.NewHeaders()
	for _, line := range lines[1:] {
		if err := h.ParseLine(line); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
	}

	return &Request{
		RequestLine: *reqLine,
		Headers:     h,
		Body:        body,
	}, nil
}

// splitMessage separates the header block from the body at the first blank
// line. Bare LF line endings are tolerated.
func splitMessage(raw []byte) (head, body []byte, err error) {
	sep := headerTerminator
	idx := bytes.Index(raw, sep)
	if idx == -1 {
		sep = []byte("\n\n")
		idx = bytes.Index(raw, sep)
	}
	if idx == -1 {
		return nil, nil, fmt.Errorf("%w: no blank line after headers", ErrMalformedRequest)
	}
	if idx == 0 {
		return nil, nil, fmt.Errorf("%w: empty header block", ErrMalformedRequest)
	}
	return raw[:idx], raw[idx+len(sep):], nil
}

func parseRequestLine(line string) (*RequestLine, error) {
	parts := strings.Split(line, " ")
	// panic guard
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts in request line, got %d", ErrMalformedRequest, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty token in request line %q", ErrMalformedRequest, line)
		}
	}

	return &RequestLine{
		Method:        parts[0],
		RequestTarget: parts[1],
		HTTPVersion:   parts[2],
	}, nil
}
