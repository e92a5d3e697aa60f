// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"strings"
)

// ErrorKind classifies why a session disconnected.
type ErrorKind uint8

const (
	ErrorNone ErrorKind = iota
	// ErrorConnect means the maestro host or port could not be
	// reached, or the connection dropped.
	ErrorConnect
	// ErrorServer means the maestro failed to start or to report its
	// port.
	ErrorServer
	// ErrorSSH means authentication or host key verification failed.
	ErrorSSH
	// ErrorProtocol means the maestro sent a frame that does not parse.
	ErrorProtocol
)

var errorKindNames = [...]string{
	ErrorNone:     "none",
	ErrorConnect:  "connect",
	ErrorServer:   "server",
	ErrorSSH:      "ssh",
	ErrorProtocol: "protocol",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return errorKindNames[ErrorNone]
}

// ParseErrorKind maps a name as the maestro reports it ("ssh",
// "error:ssh") to an ErrorKind. Unknown names map to ErrorNone and
// ok is false.
func ParseErrorKind(name string) (kind ErrorKind, ok bool) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "error:")
	for index, candidate := range errorKindNames {
		if candidate == name {
			return ErrorKind(index), true
		}
	}
	return ErrorNone, false
}

// Failure is a classified session failure.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil && f.Message == "" {
		return f.Kind.String() + " error: " + f.Err.Error()
	}
	return f.Kind.String() + " error: " + f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

func failure(kind ErrorKind, message string, err error) *Failure {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Failure{Kind: kind, Message: message, Err: err}
}

// classify returns err as a Failure, defaulting to fallback.
func classify(err error, fallback ErrorKind) *Failure {
	var classified *Failure
	if errors.As(err, &classified) {
		return classified
	}
	return failure(fallback, "", err)
}

// ErrNotLoggedIn is returned by Send when the session is
// disconnected. Requests are queued only while a connection attempt
// is in progress.
var ErrNotLoggedIn = errors.New("transport: not logged in")

// ErrBusy is returned by Connect when the session is not disconnected.
var ErrBusy = errors.New("transport: connection already in progress")
