package httpwire

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedResponse is wrapped by every error ParseResponse returns.
var ErrMalformedResponse = errors.New("malformed HTTP response")

// statusLine matches "HTTP/1.0 200" and "HTTP/1.1 200", followed by anything.
var statusLine = regexp.MustCompile(`^HTTP/1\.[01] (\d{3})`)

// headerTerminator separates the head block from the body.
var headerTerminator = []byte("\r\n\r\n")

// Field is one header line, with name and value trimmed.
type Field struct {
	Name  string
	Value string
}

// Header holds the header fields of a response in the order they arrived.
type Header []Field

// Get returns the value for name. The last field whose name matches exactly
// wins; without one, the last case-insensitive match is returned.
func (h Header) Get(name string) string {
	v, _ := h.lookup(name)
	return v
}

func (h Header) lookup(name string) (string, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Name == name {
			return h[i].Value, true
		}
	}
	for i := len(h) - 1; i >= 0; i-- {
		if strings.EqualFold(h[i].Name, name) {
			return h[i].Value, true
		}
	}
	return "", false
}

// Response is a parsed HTTP response. It is a transient value: the crawler
// consumes it immediately and does not retain it.
type Response struct {
	// StatusCode is the three-digit code from the status line.
	StatusCode int

	// Header holds the response headers.
	Header Header

	// Body is everything after the blank line that ends the head block.
	Body []byte
}

// ParseResponse parses a complete response buffer.
//
// The buffer is split at the first "\r\n\r\n". The first head line must
// start with "HTTP/1.0 " or "HTTP/1.1 " and a three-digit code. Each further
// head line is split at its first colon and both sides are trimmed.
func ParseResponse(buf []byte) (*Response, error) {
	head, body, found := bytes.Cut(buf, headerTerminator)
	if !found {
		return nil, fmt.Errorf("%w: no blank line after headers", ErrMalformedResponse)
	}

	lines := strings.Split(string(head), "\r\n")

	m := statusLine.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, fmt.Errorf("%w: bad status line %q", ErrMalformedResponse, truncate(lines[0], 64))
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad status code %q", ErrMalformedResponse, m[1])
	}

	header := make(Header, 0, len(lines)-1)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line without colon %q", ErrMalformedResponse, truncate(line, 64))
		}
		header = append(header, Field{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}

	return &Response{
		StatusCode: code,
		Header:     header,
		Body:       body,
	}, nil
}

// truncate shortens s for inclusion in error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
