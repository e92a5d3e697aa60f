// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// HTTP-like methods accepted on the wire.
const (
	MethodGet    = "GET"
	MethodPut    = "PUT"
	MethodPost   = "POST"
	MethodDelete = "DELETE"
)

const statusLinePrefix = "HTTP/1.1 "

// MaxHeaderLength bounds the start line plus headers of an HTTP-like
// message.
const MaxHeaderLength = 64 << 10

var httpPrefixes = []string{statusLinePrefix, MethodGet + " ", MethodPut + " ", MethodPost + " ", MethodDelete + " "}

// HTTPMessage is a request (Method set) or a response (Status set).
// Header keys are lowercase.
type HTTPMessage struct {
	Method  string
	URL     string
	Status  int
	Headers map[string]string
	Body    []byte
}

// NewRequest builds a request for url.
func NewRequest(method, url string, body []byte) *HTTPMessage {
	return &HTTPMessage{Method: method, URL: url, Headers: map[string]string{}, Body: body}
}

// IsResponse reports whether m is a status-line message.
func (m *HTTPMessage) IsResponse() bool { return m.Method == "" }

// Header returns the value for key, matched case-insensitively.
func (m *HTTPMessage) Header(key string) string {
	return m.Headers[strings.ToLower(key)]
}

// Encode renders the message. Headers are written in sorted order and
// content-length is set whenever there is a body.
func (m *HTTPMessage) Encode() []byte {
	var buffer bytes.Buffer
	if m.IsResponse() {
		fmt.Fprintf(&buffer, "%s%d OK\n", statusLinePrefix, m.Status)
	} else {
		fmt.Fprintf(&buffer, "%s %s\n", m.Method, m.URL)
	}

	headers := make(map[string]string, len(m.Headers)+1)
	for key, value := range m.Headers {
		headers[strings.ToLower(key)] = value
	}
	delete(headers, "content-length")
	if len(m.Body) > 0 {
		headers["content-length"] = strconv.Itoa(len(m.Body))
	}
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&buffer, "%s:%s\n", key, headers[key])
	}

	buffer.WriteByte('\n')
	buffer.Write(m.Body)
	return buffer.Bytes()
}

// parseHTTP parses one message from the head of buffer, returning
// consumed == 0 when incomplete.
func parseHTTP(buffer []byte) (*HTTPMessage, int, *ParseError) {
	end := bytes.Index(buffer, []byte("\n\n"))
	if end < 0 {
		if len(buffer) > MaxHeaderLength {
			return nil, 0, malformed("", "header block too long", nil)
		}
		return nil, 0, nil
	}
	if end > MaxHeaderLength {
		return nil, 0, malformed("", "header block too long", nil)
	}

	lines := strings.Split(string(buffer[:end]), "\n")
	startLine := lines[0]
	message := &HTTPMessage{Headers: map[string]string{}}

	if rest, ok := strings.CutPrefix(startLine, statusLinePrefix); ok {
		statusField, _, _ := strings.Cut(rest, " ")
		status, err := strconv.Atoi(statusField)
		if err != nil || status < 100 || status > 999 {
			return nil, 0, malformed(startLine, "bad status code", err)
		}
		message.Status = status
	} else {
		method, url, ok := strings.Cut(startLine, " ")
		if !ok || !knownMethod(method) {
			return nil, 0, malformed(startLine, "bad request line", nil)
		}
		url = strings.TrimSpace(url)
		if url == "" {
			return nil, 0, malformed(startLine, "request without url", nil)
		}
		message.Method = method
		message.URL = url
	}

	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, 0, malformed(startLine, fmt.Sprintf("header line %q without colon", line), nil)
		}
		message.Headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	bodyLength := 0
	if contentLength, ok := message.Headers["content-length"]; ok {
		length, err := strconv.Atoi(contentLength)
		if err != nil || length < 0 {
			return nil, 0, malformed(startLine, "non-numeric content-length", err)
		}
		if length > MaxArgumentLength {
			return nil, 0, malformed(startLine, fmt.Sprintf("content-length %d exceeds %d", length, MaxArgumentLength), nil)
		}
		bodyLength = length
	}

	headerLength := end + 2
	if len(buffer) < headerLength+bodyLength {
		return nil, 0, nil
	}
	if bodyLength > 0 {
		message.Body = bytes.Clone(buffer[headerLength : headerLength+bodyLength])
	}
	return message, headerLength + bodyLength, nil
}

func knownMethod(method string) bool {
	switch method {
	case MethodGet, MethodPut, MethodPost, MethodDelete:
		return true
	}
	return false
}
