// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/gebr-project/gebr/lib/prompt"
)

const passwordDeclinedMessage = "No password provided."

var errPasswordDeclined = errors.New("password prompt declined")

type askRequest struct {
	address string
	title   string
	text    string
}

type askFunc func(ctx context.Context, request prompt.Request) (prompt.Answer, error)

// passwordAuthenticator feeds ssh.PasswordCallback. The cached
// password goes first; every later try asks. The SSH library calls it
// from the handshake goroutine.
type passwordAuthenticator struct {
	address string
	cached  string
	ask     func(askRequest) (string, bool, error)

	mu          sync.Mutex
	tries       int
	last        string
	wasDeclined bool
}

func (a *passwordAuthenticator) next() (string, error) {
	a.mu.Lock()
	a.tries++
	first := a.tries == 1
	cached := a.cached
	a.mu.Unlock()

	if first && cached != "" {
		a.remember(cached)
		return cached, nil
	}

	text := fmt.Sprintf("Enter the SSH password for %s.", a.address)
	if !first {
		text = fmt.Sprintf("Permission denied. Enter the SSH password for %s.", a.address)
	}
	password, accepted, err := a.ask(askRequest{address: a.address, title: "SSH password", text: text})
	if err != nil {
		return "", err
	}
	if !accepted {
		a.mu.Lock()
		a.wasDeclined = true
		a.mu.Unlock()
		return "", errPasswordDeclined
	}
	a.remember(password)
	return password, nil
}

func (a *passwordAuthenticator) remember(password string) {
	a.mu.Lock()
	a.last = password
	a.mu.Unlock()
}

// used is the last password handed to the server. After a successful
// handshake that is the one that worked.
func (a *passwordAuthenticator) used() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *passwordAuthenticator) declined() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wasDeclined
}

func askPassword(ctx context.Context, ask askFunc, request askRequest) (string, bool, error) {
	if ask == nil {
		return "", false, nil
	}
	answer, err := ask(ctx, prompt.Request{
		Kind:    prompt.KindPassword,
		Address: request.address,
		Title:   request.title,
		Text:    request.text,
	})
	if err != nil {
		return "", false, err
	}
	return answer.Password, answer.Accepted, nil
}

func askYesNo(ctx context.Context, ask askFunc, request askRequest) (bool, error) {
	if ask == nil {
		return false, nil
	}
	answer, err := ask(ctx, prompt.Request{
		Kind:    prompt.KindQuestion,
		Address: request.address,
		Title:   request.title,
		Text:    request.text,
	})
	if err != nil {
		return false, err
	}
	return answer.Accepted, nil
}

// publicKeyMethods offers the agent's keys, then every identity file
// that exists and is not passphrase protected.
func publicKeyMethods(identityFiles []string, agentSocket string, logger *slog.Logger) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if agentSocket != "" {
		if conn, err := net.Dial("unix", agentSocket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			logger.Debug("ssh agent unavailable", "socket", agentSocket, "error", err)
		}
	}

	var signers []ssh.Signer
	for _, path := range identityFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if !errors.As(err, &missing) {
				logger.Warn("skipping unreadable identity file", "path", path, "error", err)
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods
}
