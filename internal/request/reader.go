package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	readChunkSize = 2048

	// MaxHeaderBytes bounds how much is buffered while looking for the end of
	// the header block.
	MaxHeaderBytes = 64 << 10

	// MaxBodyBytes is the largest Content-Length a request may declare.
	MaxBodyBytes = 10 << 20
)

var headerTerminator = []byte("\r\n\r\n")

// deadliner is the part of net.Conn the reader needs for its idle timeout.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadMessage reads one raw http message from r: everything up to and
// including the blank line after the headers, followed by as many body bytes
// as Content-Length declares.
//
// If r has a SetReadDeadline method and idle > 0, every read must produce
// data within idle or the read fails with the deadline error.
//
// A peer that closes early is not an error: whatever was accumulated is
// returned, and an incomplete header block is left for Parse to reject.
// A body shorter than Content-Length is accepted the same way.
func ReadMessage(r io.Reader, idle time.Duration) ([]byte, error) {
	dl, _ := r.(deadliner)

	var accumulated []byte
	readBuf := make([]byte, readChunkSize)

	bodyStart := -1
	want := 0

	for {
		if dl != nil && idle > 0 {
			// a conn that cannot take a deadline anymore is closed, and the
			// Read below reports that
			_ = dl.SetReadDeadline(time.Now().Add(idle))
		}

		n, err := r.Read(readBuf)
		if n > 0 {
			accumulated = append(accumulated, readBuf[:n]...)
		}

		if bodyStart == -1 {
			// the terminator may straddle two reads, so search the whole buffer
			if idx := bytes.Index(accumulated, headerTerminator); idx != -1 {
				length, lenErr := contentLength(accumulated[:idx])
				if lenErr != nil {
					return nil, lenErr
				}
				bodyStart = idx + len(headerTerminator)
				want = bodyStart + length
			} else if len(accumulated) > MaxHeaderBytes {
				return nil, ErrHeaderTooLarge
			}
		}

		if bodyStart != -1 && len(accumulated) >= want {
			return accumulated[:want], nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(accumulated) == 0 {
					return nil, ErrEmptyRequest
				}
				return accumulated, nil
			}
			return nil, err
		}
	}
}

// contentLength finds the Content-Length header in a raw header block.
// A missing, unparseable or negative value means no body is expected.
// Repeated headers must carry the same value, and the value may not exceed
// MaxBodyBytes.
func contentLength(headerBlock []byte) (int, error) {
	lines := strings.Split(strings.ReplaceAll(string(headerBlock), "\r\n", "\n"), "\n")

	seen := ""
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		value = strings.TrimSpace(value)
		if seen != "" && value != seen {
			return 0, fmt.Errorf("%w: conflicting Content-Length values %q and %q", ErrMalformedRequest, seen, value)
		}
		seen = value
	}
	if seen == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(seen)
	if errors.Is(err, strconv.ErrRange) || (err == nil && n > MaxBodyBytes) {
		return 0, fmt.Errorf("%w: Content-Length %s exceeds %d", ErrBodyTooLarge, seen, MaxBodyBytes)
	}
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}
