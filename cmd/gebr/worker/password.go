// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

func readPassword(address string) (string, error) {
	descriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(descriptor) {
		return "", errors.New("--password needs a terminal on standard input")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", address)
	password, err := term.ReadPassword(descriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
