package response

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/devwelkin/hermes-static/internal/mimetype"
)

// Response is a fully decided response waiting to be written.
type Response struct {
	StatusCode  StatusCode
	Body        []byte
	ContentType string
}

type writerState int

const (
	stateStatus writerState = iota // nothing written yet
	stateDone                      // response sent
)

// Writer writes exactly one response to a connection.
type Writer struct {
	w     io.Writer   // connection
	state writerState // state machine
}

// NewWriter creates a new response Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStatus,
	}
}

// WriteResponse serializes res. Content-Length always comes from len(res.Body),
// even when omitBody suppresses the body for HEAD.
//
// Binary content types go out as two writes, header then raw body. Text goes
// out as one write of header and body together.
func (w *Writer) WriteResponse(res *Response, omitBody bool) error {
	if w.state != stateStatus {
		return errors.New("WriteResponse called twice")
	}
	w.state = stateDone

	head := Head(res.StatusCode, len(res.Body), res.ContentType)
	if omitBody || len(res.Body) == 0 {
		_, err := w.w.Write(head)
		return err
	}

	if mimetype.IsBinary(res.ContentType) {
		if _, err := w.w.Write(head); err != nil {
			return err
		}
		_, err := w.w.Write(res.Body)
		return err
	}

	msg := make([]byte, 0, len(head)+len(res.Body))
	msg = append(msg, head...)
	msg = append(msg, res.Body...)
	_, err := w.w.Write(msg)
	return err
}

// Head renders the status line and headers, including the blank line.
func Head(code StatusCode, contentLen int, contentType string) []byte {
	return []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nContent-Type: %s\r\n\r\n",
		code, code.Reason(), contentLen, contentType))
}

// IsPeerGone reports whether err means the client went away mid-write.
func IsPeerGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
