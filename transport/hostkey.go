// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// hostKeyVerifier checks server keys against a known_hosts file. An
// unknown key is put to the user as a question and appended to the
// file when accepted. A key that contradicts a recorded one is always
// refused.
type hostKeyVerifier struct {
	path    string
	address string
	ask     func(askRequest) (bool, error)

	mu       sync.Mutex
	rejected *Failure
}

func (v *hostKeyVerifier) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	if v.path != "" {
		if err := ensureFile(v.path); err != nil {
			return v.reject(failure(ErrorSSH, "", fmt.Errorf("known hosts: %w", err)))
		}
		callback, err := knownhosts.New(v.path)
		if err != nil {
			return v.reject(failure(ErrorSSH, "", fmt.Errorf("known hosts: %w", err)))
		}
		err = callback(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return v.reject(failure(ErrorSSH, "", err))
		}
		if len(keyErr.Want) > 0 {
			return v.reject(failure(ErrorSSH,
				fmt.Sprintf("The host key of %s has changed. Refusing to connect.", v.address), err))
		}
	}

	question := fmt.Sprintf("The authenticity of host %s can't be established.\n"+
		"%s key fingerprint is %s.\nAre you sure you want to continue connecting?",
		v.address, key.Type(), ssh.FingerprintSHA256(key))
	accepted, err := v.ask(askRequest{address: v.address, title: "Unknown host key", text: question})
	if err != nil {
		return err
	}
	if !accepted {
		return v.reject(failure(ErrorSSH, "SSH host key rejected.", nil))
	}
	if v.path == "" {
		return nil
	}
	return appendKnownHost(v.path, hostname, key)
}

func (v *hostKeyVerifier) reject(f *Failure) error {
	v.mu.Lock()
	v.rejected = f
	v.mu.Unlock()
	return f
}

func (v *hostKeyVerifier) failure() *Failure {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rejected
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return err
	}
	return file.Close()
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("recording host key: %w", err)
	}
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("recording host key: %w", err)
	}
	return file.Close()
}
