// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHLauncher starts a maestro on a remote host by running a bootstrap
// command over SSH. The SSH client stays open afterwards and serves as
// the session's [Tunnel].
type SSHLauncher struct {
	User string
	Port int

	// Command is the bootstrap command line, already rendered for the
	// configured binary. Its first line of output is the port.
	Command string

	// KnownHosts is the known_hosts file consulted and extended on
	// accepted host keys. Empty means every host key is asked about
	// and nothing is remembered.
	KnownHosts string

	IdentityFiles []string
	AgentSocket   string

	// PasswordAttempts bounds password tries per launch, cached
	// password included.
	PasswordAttempts int

	// HandshakeTimeout bounds the SSH handshake once the TCP
	// connection is up. Prompts the user has not yet answered count
	// against it, so it should be generous.
	HandshakeTimeout time.Duration

	Dialer Dialer
	Logger *slog.Logger
}

func (l *SSHLauncher) Launch(ctx context.Context, request LaunchRequest) (Maestro, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("address", request.Address)

	port := l.Port
	if port == 0 {
		port = 22
	}
	address := net.JoinHostPort(request.Address, strconv.Itoa(port))

	dialer := l.Dialer
	if dialer == nil {
		dialer = &TCPDialer{Timeout: 30 * time.Second}
	}
	conn, err := dialer.DialContext(ctx, address)
	if err != nil {
		return nil, failure(ErrorConnect, fmt.Sprintf("cannot reach %s", address), err)
	}
	stopClosing := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClosing()

	verifier := &hostKeyVerifier{
		path:    l.KnownHosts,
		address: request.Address,
		ask:     func(r askRequest) (bool, error) { return askYesNo(ctx, request.Ask, r) },
	}
	authenticator := &passwordAuthenticator{
		address: request.Address,
		cached:  request.Password,
		ask: func(p askRequest) (string, bool, error) {
			return askPassword(ctx, request.Ask, p)
		},
	}

	attempts := l.PasswordAttempts
	if attempts < 1 {
		attempts = 1
	}
	methods := publicKeyMethods(l.IdentityFiles, l.AgentSocket, logger)
	methods = append(methods, ssh.RetryableAuthMethod(ssh.PasswordCallback(authenticator.next), attempts))

	if l.HandshakeTimeout > 0 {
		conn.SetDeadline(time.Now().Add(l.HandshakeTimeout))
	}
	sshConn, channels, requests, err := ssh.NewClientConn(conn, address, &ssh.ClientConfig{
		User:            l.User,
		Auth:            methods,
		HostKeyCallback: verifier.check,
	})
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if rejected := verifier.failure(); rejected != nil {
			return nil, rejected
		}
		if authenticator.declined() {
			return nil, failure(ErrorSSH, passwordDeclinedMessage, err)
		}
		return nil, failure(ErrorSSH, "SSH authentication failed", err)
	}
	conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, channels, requests)

	session, maestroPort, err := l.bootstrap(ctx, client)
	if err != nil {
		client.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	logger.Info("remote maestro started", "port", maestroPort)
	return &sshMaestro{
		client:   client,
		session:  session,
		port:     maestroPort,
		password: authenticator.used(),
	}, nil
}

// bootstrap runs the launch command and reads the maestro's port from
// its output.
func (l *SSHLauncher) bootstrap(ctx context.Context, client *ssh.Client) (*ssh.Session, int, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, 0, failure(ErrorServer, "", fmt.Errorf("opening bootstrap session: %w", err))
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, 0, failure(ErrorServer, "", fmt.Errorf("bootstrap stdout: %w", err))
	}
	if err := session.Start(l.Command); err != nil {
		session.Close()
		return nil, 0, failure(ErrorServer, "", fmt.Errorf("running %q: %w", l.Command, err))
	}
	port, rest, err := readPort(ctx, stdout)
	if err != nil {
		session.Close()
		return nil, 0, err
	}
	go rest.WriteTo(io.Discard)
	return session, port, nil
}

type sshMaestro struct {
	client   *ssh.Client
	session  *ssh.Session
	port     int
	password string
	stopOnce sync.Once
}

func (m *sshMaestro) Port() int        { return m.port }
func (m *sshMaestro) Password() string { return m.password }
func (m *sshMaestro) Tunnel() Tunnel   { return m }

func (m *sshMaestro) DialRemote(ctx context.Context, port int) (net.Conn, error) {
	return m.client.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

func (m *sshMaestro) ListenRemote(port int) (net.Listener, error) {
	return m.client.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

func (m *sshMaestro) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.session.Close()
		err = m.client.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}
