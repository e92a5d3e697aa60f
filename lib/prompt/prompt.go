// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt carries questions from the control plane to whoever
// can answer them: the user behind a terminal or a graphical shell.
//
// Prompts are asynchronous. The asker never blocks its event loop: it
// hands a Request and an answer function to a Prompter and carries on.
// The Prompter calls the answer function exactly once, from any
// goroutine, and the asker posts the answer back onto its loop. The
// Request ID correlates the two for prompters that queue requests.
package prompt

import "sync/atomic"

// Kind selects what is being asked.
type Kind uint8

const (
	// KindPassword asks for a secret. Answer.Password carries it.
	KindPassword Kind = iota + 1
	// KindQuestion asks a yes/no question, such as whether to trust an
	// unknown host key.
	KindQuestion
	// KindConfirm asks the user to confirm an action on a worker.
	KindConfirm
)

func (k Kind) String() string {
	switch k {
	case KindPassword:
		return "password"
	case KindQuestion:
		return "question"
	case KindConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// Request is one prompt.
type Request struct {
	ID      uint64
	Kind    Kind
	Address string

	// AcceptsKey is set on password prompts when the asker could
	// install a public key instead of remembering the password.
	AcceptsKey bool

	Title  string
	Text   string
	Action string // KindConfirm only
}

// Answer is the response to a Request. Accepted is false when the
// user declined or cancelled; a password answer with Accepted false
// means no password was given.
type Answer struct {
	Accepted bool
	Password string
}

// Prompter presents requests to the user.
type Prompter interface {
	Prompt(request Request, answer func(Answer))
}

// Func adapts a function to a Prompter.
type Func func(request Request, answer func(Answer))

func (f Func) Prompt(request Request, answer func(Answer)) { f(request, answer) }

// Decline is a Prompter that refuses every request, for callers with
// nobody to ask.
var Decline Prompter = Func(func(_ Request, answer func(Answer)) { answer(Answer{}) })

var lastID atomic.Uint64

// NextID returns a process-unique request id.
func NextID() uint64 { return lastID.Add(1) }
