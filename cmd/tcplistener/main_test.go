package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDump(t *testing.T) {
	var out bytes.Buffer
	dump(&out, strings.NewReader("POST /echo HTTP/1.1\r\nHost: localhost\r\nContent-Length: 2\r\n\r\nhi"), time.Second)

	s := out.String()
	assert.Contains(t, s, "- Method: POST\n")
	assert.Contains(t, s, "- Target: /echo\n")
	assert.Contains(t, s, "- content-length: 2\n- host: localhost\n")
	assert.Contains(t, s, "Body:\nhi\n")
}

func TestDumpParseError(t *testing.T) {
	var out bytes.Buffer
	dump(&out, strings.NewReader("GARBAGE\r\n\r\n"), time.Second)
	assert.Contains(t, out.String(), "parse error: malformed request")
}

func TestDumpEmpty(t *testing.T) {
	var out bytes.Buffer
	dump(&out, strings.NewReader(""), time.Second)
	assert.Contains(t, out.String(), "read error")
}
