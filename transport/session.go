// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gebr-project/gebr/lib/clock"
	"github.com/gebr-project/gebr/lib/eventloop"
	"github.com/gebr-project/gebr/lib/netutil"
	"github.com/gebr-project/gebr/lib/prompt"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/lib/request"
)

const (
	// tunnelPortRange is how many local ports above the base are tried
	// for the tunnel listener.
	tunnelPortRange = 100

	defaultPollInterval = 200 * time.Millisecond
	defaultPollAttempts = 150
	readBufferSize      = 32 << 10
)

// Handler receives what a Session observes. Both methods run on the
// session's loop.
type Handler interface {
	// StateChanged reports every state transition. failure is the
	// sticky failure, nil unless the session went down on an error.
	StateChanged(state protocol.State, failure *Failure)

	// Frame delivers one decoded inbound frame, the login answer
	// included.
	Frame(frame protocol.Frame)
}

// Recorder receives every chunk read from the maestro before it is
// decoded. Flush is called when a connection ends, so a journal read
// while the client runs holds every finished connection.
// *journal.Writer implements it.
type Recorder interface {
	Append(at time.Time, generation uint64, data []byte) error
	Flush() error
}

// Callback receives the response to a request. Legacy connections
// carry no responses, so the callback gets nil once the request has
// been written.
type Callback func(response *protocol.HTTPMessage)

// Config configures a Session.
type Config struct {
	// Loop owns the session. Required.
	Loop *eventloop.Loop

	// Address is the maestro host.
	Address string

	// Launcher starts the maestro. Required.
	Launcher Launcher

	ProtocolVersion string

	// Hostname identifies this client in the login.
	Hostname string

	// Display is the local X display (the DISPLAY variable). Local
	// logins send it verbatim; remote logins send the xauth cookie
	// for it and forward the display port the maestro asks for.
	Display string

	// Cookie reads the X authorization cookie for remote logins. Nil
	// sends an empty cookie.
	Cookie CookieFunc

	// TunnelBasePort is the first local port tried for a remote
	// maestro's tunnel. Zero lets the kernel choose.
	TunnelBasePort int

	// PollInterval and PollAttempts pace the wait for the maestro to
	// answer through a fresh tunnel.
	PollInterval time.Duration
	PollAttempts int

	Dialer   Dialer
	Prompter prompt.Prompter
	Handler  Handler
	Recorder Recorder
	Clock    clock.Clock
	Logger   *slog.Logger
}

// LoginInfo is the maestro's answer to the login.
type LoginInfo struct {
	Hostname     string
	DisplayPort  string
	FilesystemID string
}

// outbound is a queued request, or a raw legacy frame when frame is
// set.
type outbound struct {
	url      string
	body     []byte
	callback Callback
	frame    []byte
}

// Session is the connection to one maestro. All methods must be called
// on the configured loop.
type Session struct {
	config Config
	loop   *eventloop.Loop
	clock  clock.Clock
	logger *slog.Logger

	state      protocol.State
	failure    *Failure
	generation uint64
	password   string
	cookie     string
	login      LoginInfo

	ctx             context.Context
	cancel          context.CancelFunc
	maestro         Maestro
	tunnelListener  net.Listener
	tunnelPort      int
	displayListener net.Listener
	pollTimer       *clock.Timer
	polls           int

	conn      net.Conn
	writer    *eventloop.Loop
	decoder   *protocol.Decoder
	queued    []outbound
	callbacks []Callback
}

// New returns a disconnected session.
func New(config Config) *Session {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Dialer == nil {
		config.Dialer = &TCPDialer{Timeout: 30 * time.Second}
	}
	if config.Prompter == nil {
		config.Prompter = prompt.Decline
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.PollAttempts <= 0 {
		config.PollAttempts = defaultPollAttempts
	}
	return &Session{
		config: config,
		loop:   config.Loop,
		clock:  config.Clock,
		logger: config.Logger.With("address", config.Address),
		state:  protocol.StateDisconnected,
	}
}

func (s *Session) Address() string       { return s.config.Address }
func (s *Session) State() protocol.State { return s.state }
func (s *Session) LoggedIn() bool        { return s.state == protocol.StateLoggedIn }
func (s *Session) Login() LoginInfo      { return s.login }
func (s *Session) Generation() uint64    { return s.generation }
func (s *Session) TunnelPort() int       { return s.tunnelPort }
func (s *Session) Failure() *Failure     { return s.failure }
func (s *Session) Framing() protocol.Framing {
	if s.decoder == nil {
		return protocol.FramingUnknown
	}
	return s.decoder.Framing()
}

// Remote reports whether the maestro was started over SSH. It is
// meaningful once launching has finished.
func (s *Session) Remote() bool { return s.maestro != nil && s.maestro.Tunnel() != nil }

// Connect starts a connection attempt. It clears the sticky failure
// and returns ErrBusy unless the session is disconnected.
func (s *Session) Connect() error {
	if s.state != protocol.StateDisconnected {
		return ErrBusy
	}
	if s.config.Launcher == nil {
		return errors.New("transport: no launcher configured")
	}

	s.failure = nil
	s.generation++
	generation := s.generation
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.setState(protocol.StateLaunching)

	ctx := s.ctx
	request := LaunchRequest{
		Address:  s.config.Address,
		Password: s.password,
		Ask:      s.ask,
	}
	launcher, cookieFunc, display := s.config.Launcher, s.config.Cookie, s.config.Display
	go func() {
		maestro, err := launcher.Launch(ctx, request)
		var cookie string
		if err == nil && maestro.Tunnel() != nil && cookieFunc != nil {
			cookie = cookieFunc(ctx, display)
		}
		posted := s.loop.Post(func() { s.launched(generation, maestro, cookie, err) })
		if !posted && maestro != nil {
			maestro.Stop()
		}
	}()
	return nil
}

func (s *Session) launched(generation uint64, maestro Maestro, cookie string, err error) {
	if generation != s.generation {
		if maestro != nil {
			maestro.Stop()
		}
		return
	}
	if err != nil {
		s.fail(classify(err, ErrorServer))
		return
	}

	s.maestro = maestro
	s.cookie = cookie
	if password := maestro.Password(); password != "" {
		s.password = password
	}
	if maestro.Tunnel() == nil {
		s.dial(net.JoinHostPort(s.config.Address, strconv.Itoa(maestro.Port())))
		return
	}
	s.openTunnel()
}

// openTunnel listens locally and forwards every accepted connection
// to the maestro's port through the SSH client, then polls until the
// maestro answers.
func (s *Session) openTunnel() {
	s.setState(protocol.StateOpeningTunnel)

	listener, port, err := netutil.ListenFirstFree("127.0.0.1", s.config.TunnelBasePort, tunnelPortRange)
	if err != nil {
		s.fail(failure(ErrorConnect, "", fmt.Errorf("opening tunnel: %w", err)))
		return
	}
	s.tunnelListener = listener
	s.tunnelPort = port

	ctx, tunnel, remotePort := s.ctx, s.maestro.Tunnel(), s.maestro.Port()
	logger := s.logger.With("tunnel_port", port)
	go func() {
		err := netutil.Forward(listener, func() (net.Conn, error) {
			return tunnel.DialRemote(ctx, remotePort)
		}, logger)
		if err != nil {
			logger.Warn("tunnel forwarder stopped", "error", err)
		}
	}()

	logger.Debug("tunnel listening", "remote_port", remotePort)
	s.polls = 0
	s.schedulePoll()
}

func (s *Session) schedulePoll() {
	generation := s.generation
	s.pollTimer = s.clock.AfterFunc(s.config.PollInterval, func() {
		s.loop.Post(func() { s.probe(generation) })
	})
}

func (s *Session) probe(generation uint64) {
	if generation != s.generation || s.state != protocol.StateOpeningTunnel {
		return
	}
	s.pollTimer = nil
	s.polls++

	ctx, tunnel, port := s.ctx, s.maestro.Tunnel(), s.maestro.Port()
	go func() {
		conn, err := tunnel.DialRemote(ctx, port)
		posted := s.loop.Post(func() { s.probed(generation, conn, err) })
		if !posted && conn != nil {
			conn.Close()
		}
	}()
}

// probed handles a poll. The connection that answered becomes the
// session's connection, so the maestro sees one client per login.
func (s *Session) probed(generation uint64, conn net.Conn, err error) {
	if generation != s.generation || s.state != protocol.StateOpeningTunnel {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err == nil {
		s.setState(protocol.StateConnecting)
		s.connected(generation, fmt.Sprintf("tunnel to port %d", s.maestro.Port()), conn, nil)
		return
	}
	if s.polls >= s.config.PollAttempts {
		s.fail(failure(ErrorConnect,
			fmt.Sprintf("maestro did not answer on port %d", s.maestro.Port()), err))
		return
	}
	s.logger.Debug("maestro not answering yet", "attempt", s.polls, "error", err)
	s.schedulePoll()
}

func (s *Session) dial(address string) {
	s.setState(protocol.StateConnecting)

	generation, ctx, dialer := s.generation, s.ctx, s.config.Dialer
	go func() {
		conn, err := dialer.DialContext(ctx, address)
		posted := s.loop.Post(func() { s.connected(generation, address, conn, err) })
		if !posted && conn != nil {
			conn.Close()
		}
	}()
}

func (s *Session) connected(generation uint64, address string, conn net.Conn, err error) {
	if generation != s.generation {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.fail(failure(ErrorConnect, fmt.Sprintf("cannot connect to the maestro at %s", address), err))
		return
	}

	s.conn = conn
	s.decoder = protocol.NewDecoder()
	s.writer = eventloop.New()
	go s.writer.Run(s.ctx)
	go s.read(generation, conn)

	locality, display := "local", s.config.Display
	if s.Remote() {
		locality, display = "remote", s.cookie
	}
	login, err := protocol.Encode(protocol.KindLogin, s.config.ProtocolVersion, s.config.Hostname, locality, display)
	if err != nil {
		s.fail(failure(ErrorProtocol, "", err))
		return
	}
	s.writeRaw(login, nil)
	s.setState(protocol.StateConnected)
}

// read runs on its own goroutine for the life of conn.
func (s *Session) read(generation uint64, conn net.Conn) {
	buffer := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			data := bytes.Clone(buffer[:n])
			s.loop.Post(func() { s.received(generation, data) })
		}
		if err != nil {
			s.loop.Post(func() { s.readFailed(generation, err) })
			return
		}
	}
}

func (s *Session) received(generation uint64, data []byte) {
	if generation != s.generation {
		return
	}
	if s.config.Recorder != nil {
		if err := s.config.Recorder.Append(s.clock.Now(), generation, data); err != nil {
			s.logger.Warn("recording maestro traffic failed", "error", err)
		}
	}

	frames, err := s.decoder.Feed(data)
	for _, frame := range frames {
		s.handleFrame(frame)
		if generation != s.generation {
			return
		}
	}
	if err != nil {
		s.fail(failure(ErrorProtocol, "", err))
	}
}

func (s *Session) handleFrame(frame protocol.Frame) {
	switch {
	case frame.IsHTTP() && frame.HTTP.IsResponse():
		if s.state == protocol.StateConnected {
			if frame.HTTP.Status < 200 || frame.HTTP.Status > 299 {
				s.fail(failure(ErrorServer, fmt.Sprintf("maestro refused the login with status %d", frame.HTTP.Status), nil))
				return
			}
			s.loggedIn(LoginInfo{})
			break
		}
		if len(s.callbacks) == 0 {
			s.logger.Warn("unsolicited response from maestro", "status", frame.HTTP.Status)
			break
		}
		callback := s.callbacks[0]
		s.callbacks = s.callbacks[1:]
		if callback != nil {
			callback(frame.HTTP)
		}
	case frame.IsHTTP():
		s.logger.Debug("request from maestro", "method", frame.HTTP.Method, "url", frame.HTTP.URL)
	case frame.Message.Kind == protocol.KindReturn && frame.Message.Field(0) == protocol.KindLogin.Code():
		s.loggedIn(LoginInfo{
			Hostname:     frame.Message.Field(1),
			DisplayPort:  frame.Message.Field(2),
			FilesystemID: frame.Message.Field(3),
		})
	}
	if s.config.Handler != nil {
		s.config.Handler.Frame(frame)
	}
}

// loggedIn flushes requests queued during the connection attempt
// before anyone learns of the new state, so they go out ahead of
// requests sent from the notification.
func (s *Session) loggedIn(info LoginInfo) {
	if s.state != protocol.StateConnected {
		s.logger.Debug("ignoring repeated login answer")
		return
	}
	s.login = info
	s.state = protocol.StateLoggedIn

	queued := s.queued
	s.queued = nil
	for _, out := range queued {
		s.write(out)
	}
	s.forwardDisplay(info.DisplayPort)

	s.logger.Info("logged in to maestro", "hostname", info.Hostname, "queued", len(queued))
	s.notify()
}

// forwardDisplay listens on the display port on the maestro host and
// relays each connection to the local X server.
func (s *Session) forwardDisplay(port string) {
	if !s.Remote() || port == "" || port == "0" {
		return
	}
	remotePort, err := strconv.Atoi(port)
	if err != nil {
		s.logger.Warn("maestro asked for an invalid display port", "port", port)
		return
	}
	dial, ok := displayDialer(s.config.Display)
	if !ok {
		s.logger.Warn("no local display to forward", "display", s.config.Display)
		return
	}

	generation, tunnel := s.generation, s.maestro.Tunnel()
	logger := s.logger.With("display_port", remotePort)
	go func() {
		listener, err := tunnel.ListenRemote(remotePort)
		s.loop.Post(func() {
			if err != nil {
				logger.Warn("display forwarding failed", "error", err)
				return
			}
			if generation != s.generation {
				listener.Close()
				return
			}
			s.displayListener = listener
			go netutil.Forward(listener, dial, logger)
			logger.Debug("display forwarding started")
		})
	}()
}

func (s *Session) readFailed(generation uint64, err error) {
	if generation != s.generation {
		return
	}
	message := "connection to the maestro lost"
	if errors.Is(err, io.EOF) {
		message = "the maestro closed the connection"
	}
	s.fail(failure(ErrorConnect, message, err))
}

// Send issues a request. Before login the request is queued and sent
// in order once the maestro answers the login.
func (s *Session) Send(url string, body []byte, callback Callback) error {
	return s.enqueue(outbound{url: url, body: body, callback: callback})
}

// SendMessage sends a legacy frame, queued like Send.
func (s *Session) SendMessage(kind protocol.Kind, fields ...string) error {
	frame, err := protocol.Encode(kind, fields...)
	if err != nil {
		return err
	}
	return s.enqueue(outbound{frame: frame})
}

func (s *Session) enqueue(out outbound) error {
	switch s.state {
	case protocol.StateDisconnected, protocol.StateUnknown:
		return ErrNotLoggedIn
	case protocol.StateLoggedIn:
		s.write(out)
	default:
		s.queued = append(s.queued, out)
	}
	return nil
}

// Queued returns the number of requests waiting for login.
func (s *Session) Queued() int { return len(s.queued) }

func (s *Session) write(out outbound) {
	if out.frame != nil {
		s.writeRaw(out.frame, nil)
		return
	}
	s.logger.Debug("sending request", "request", request.Redact(out.url))
	data := protocol.NewRequest(protocol.MethodPut, out.url, out.body).Encode()
	if s.Framing() == protocol.FramingHTTP {
		s.callbacks = append(s.callbacks, out.callback)
		s.writeRaw(data, nil)
		return
	}
	var done func()
	if out.callback != nil {
		done = func() { out.callback(nil) }
	}
	s.writeRaw(data, done)
}

// writeRaw hands data to the connection's writer. done runs on the
// loop after the write succeeded.
func (s *Session) writeRaw(data []byte, done func()) {
	generation, conn := s.generation, s.conn
	s.writer.Post(func() {
		_, err := conn.Write(data)
		s.loop.Post(func() {
			if generation != s.generation {
				return
			}
			if err != nil {
				s.fail(failure(ErrorConnect, "", fmt.Errorf("writing to the maestro: %w", err)))
				return
			}
			if done != nil {
				done()
			}
		})
	})
}

// Disconnect stops the maestro and drops the connection. Queued
// requests and outstanding callbacks are discarded without being
// called. The sticky failure is left as it was.
func (s *Session) Disconnect() {
	if s.state == protocol.StateDisconnected {
		return
	}
	s.logger.Info("disconnecting from maestro")
	s.teardown()
	s.setState(protocol.StateDisconnected)
}

func (s *Session) fail(f *Failure) {
	s.logger.Warn("maestro session failed", "kind", f.Kind, "message", f.Message, "error", f.Err)
	s.failure = f
	s.teardown()
	s.setState(protocol.StateDisconnected)
}

func (s *Session) teardown() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pollTimer.Stop()
	s.pollTimer = nil
	for _, listener := range []net.Listener{s.displayListener, s.tunnelListener} {
		if listener != nil {
			listener.Close()
		}
	}
	s.displayListener, s.tunnelListener, s.tunnelPort = nil, nil, 0
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		if s.config.Recorder != nil {
			if err := s.config.Recorder.Flush(); err != nil {
				s.logger.Warn("flushing maestro traffic journal", "error", err)
			}
		}
	}
	if s.maestro != nil {
		if err := s.maestro.Stop(); err != nil {
			s.logger.Warn("stopping maestro", "error", err)
		}
		s.maestro = nil
	}
	s.writer, s.decoder = nil, nil
	s.queued, s.callbacks = nil, nil
	s.login = LoginInfo{}
	s.cookie = ""
}

func (s *Session) setState(state protocol.State) {
	s.state = state
	s.logger.Debug("session state", "state", state)
	s.notify()
}

func (s *Session) notify() {
	if s.config.Handler != nil {
		s.config.Handler.StateChanged(s.state, s.failure)
	}
}

// ask presents a prompt on the loop and waits for the answer. It runs
// on launch goroutines.
func (s *Session) ask(ctx context.Context, request prompt.Request) (prompt.Answer, error) {
	request.ID = prompt.NextID()
	answers := make(chan prompt.Answer, 1)
	var once sync.Once
	deliver := func(answer prompt.Answer) {
		once.Do(func() { answers <- answer })
	}
	if !s.loop.Post(func() { s.config.Prompter.Prompt(request, deliver) }) {
		return prompt.Answer{}, eventloop.ErrStopped
	}
	select {
	case answer := <-answers:
		return answer, nil
	case <-ctx.Done():
		return prompt.Answer{}, ctx.Err()
	}
}
