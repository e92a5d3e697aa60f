// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package request builds the action requests a client sends to its
// maestro. A request is a URI-like string, a fixed prefix per action
// followed by named parameters:
//
//	/tag-insert?server=node1;tag=fast%20nodes
//
// Parameters keep the order they were added in and are separated by
// ';'. Values are percent-encoded so they may contain any byte.
// Building a request has no side effects; transmission is up to the
// caller.
package request

import (
	"fmt"
	"net/url"
	"strings"
)

// Action is the operation a request asks the maestro to perform.
type Action string

const (
	Connect     Action = "/server"
	Disconnect  Action = "/disconnect"
	Remove      Action = "/remove"
	Stop        Action = "/stop"
	TagInsert   Action = "/tag-insert"
	TagRemove   Action = "/tag-remove"
	Autoconnect Action = "/autoconnect"
	Run         Action = "/run"
	SSHAnswer   Action = "/ssh-answer"
	Confirm     Action = "/confirm"
)

var knownActions = map[Action]bool{
	Connect: true, Disconnect: true, Remove: true, Stop: true,
	TagInsert: true, TagRemove: true, Autoconnect: true, Run: true,
	SSHAnswer: true, Confirm: true,
}

// Param is one named request parameter.
type Param struct {
	Name  string
	Value string
}

// P is shorthand for a Param literal.
func P(name, value string) Param { return Param{Name: name, Value: value} }

// Request is a parsed action request.
type Request struct {
	Action Action
	Params []Param
}

// Get returns the value of the first parameter named name.
func (r Request) Get(name string) (string, bool) {
	for _, param := range r.Params {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

// String renders the request. It is equivalent to Build.
func (r Request) String() string { return Build(r.Action, r.Params...) }

// Build renders action with params.
func Build(action Action, params ...Param) string {
	var builder strings.Builder
	builder.WriteString(string(action))
	for index, param := range params {
		if index == 0 {
			builder.WriteByte('?')
		} else {
			builder.WriteByte(';')
		}
		builder.WriteString(escape(param.Name))
		builder.WriteByte('=')
		builder.WriteString(escape(param.Value))
	}
	return builder.String()
}

// Parse is the inverse of Build. It rejects unknown prefixes and
// parameters without '='.
func Parse(raw string) (Request, error) {
	prefix, query, hasQuery := strings.Cut(raw, "?")
	action := Action(prefix)
	if !knownActions[action] {
		return Request{}, fmt.Errorf("request: unknown action %q", prefix)
	}

	parsed := Request{Action: action}
	if !hasQuery || query == "" {
		return parsed, nil
	}
	for _, pair := range strings.Split(query, ";") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Request{}, fmt.Errorf("request: parameter %q without value", pair)
		}
		decodedName, err := url.PathUnescape(name)
		if err != nil {
			return Request{}, fmt.Errorf("request: parameter name %q: %w", name, err)
		}
		decodedValue, err := url.PathUnescape(value)
		if err != nil {
			return Request{}, fmt.Errorf("request: parameter %q: %w", decodedName, err)
		}
		parsed.Params = append(parsed.Params, Param{Name: decodedName, Value: decodedValue})
	}
	return parsed, nil
}

// secretParams names parameters whose values never appear in logs.
var secretParams = map[string]bool{"pass": true}

// Redact renders raw for logging, masking the values of secret
// parameters. A request that does not parse is reduced to its path.
func Redact(raw string) string {
	parsed, err := Parse(raw)
	if err != nil {
		path, _, _ := strings.Cut(raw, "?")
		return path
	}
	for index, param := range parsed.Params {
		if secretParams[param.Name] && param.Value != "" {
			parsed.Params[index].Value = "xxxxx"
		}
	}
	return parsed.String()
}

// escape percent-encodes everything outside the RFC 3986 unreserved
// set, so ';', '=', '?' and spaces never leak into the structure.
func escape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
