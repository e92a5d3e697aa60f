// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/gebr-project/gebr/lib/prompt"
)

// TerminalPrompter asks prompts on the controlling terminal. Prompts
// are answered one at a time on a background goroutine, so Prompt
// never blocks the event loop that calls it. Without a terminal every
// prompt is declined.
type TerminalPrompter struct {
	mu     sync.Mutex
	input  *os.File
	output io.Writer
	lines  *bufio.Reader
}

// NewTerminalPrompter opens /dev/tty, falling back to stdin when it
// is a terminal.
func NewTerminalPrompter() *TerminalPrompter {
	input, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return &TerminalPrompter{}
		}
		return newTerminalPrompter(os.Stdin, os.Stderr)
	}
	return newTerminalPrompter(input, input)
}

func newTerminalPrompter(input *os.File, output io.Writer) *TerminalPrompter {
	return &TerminalPrompter{input: input, output: output, lines: bufio.NewReader(input)}
}

// Prompt implements prompt.Prompter.
func (p *TerminalPrompter) Prompt(request prompt.Request, answer func(prompt.Answer)) {
	if p.input == nil {
		answer(prompt.Answer{})
		return
	}
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		answer(p.ask(request))
	}()
}

func (p *TerminalPrompter) ask(request prompt.Request) prompt.Answer {
	if request.Title != "" {
		fmt.Fprintf(p.output, "%s\n", request.Title)
	}
	switch request.Kind {
	case prompt.KindPassword:
		fmt.Fprintf(p.output, "%s ", request.Text)
		password, err := term.ReadPassword(int(p.input.Fd()))
		fmt.Fprintln(p.output)
		if err != nil || len(password) == 0 {
			return prompt.Answer{}
		}
		return prompt.Answer{Accepted: true, Password: string(password)}
	default:
		fmt.Fprintf(p.output, "%s [y/N] ", request.Text)
		line, err := p.lines.ReadString('\n')
		if err != nil && line == "" {
			return prompt.Answer{}
		}
		return prompt.Answer{Accepted: parseYes(line)}
	}
}

func parseYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Close releases the terminal.
func (p *TerminalPrompter) Close() error {
	if p.input == nil || p.input == os.Stdin {
		return nil
	}
	return p.input.Close()
}
