// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gebr-project/gebr/lib/clock"
	"github.com/gebr-project/gebr/lib/eventloop"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/lib/testutil"
)

const waitTimeout = 5 * time.Second

type stateChange struct {
	state   protocol.State
	failure *Failure
}

type recordingHandler struct {
	states chan stateChange
	frames chan protocol.Frame
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		states: make(chan stateChange, 64),
		frames: make(chan protocol.Frame, 64),
	}
}

func (h *recordingHandler) StateChanged(state protocol.State, failure *Failure) {
	h.states <- stateChange{state, failure}
}

func (h *recordingHandler) Frame(frame protocol.Frame) { h.frames <- frame }

// next returns the next state change.
func (h *recordingHandler) next(t *testing.T) stateChange {
	t.Helper()
	return testutil.RequireReceive[stateChange](t, h.states, waitTimeout, "waiting for a state change")
}

// waitFor skips state changes until want.
func (h *recordingHandler) waitFor(t *testing.T, want protocol.State) stateChange {
	t.Helper()
	for {
		change := testutil.RequireReceive[stateChange](t, h.states, waitTimeout, "waiting for %v", want)
		if change.state == want {
			return change
		}
	}
}

type launcherFunc func(ctx context.Context, request LaunchRequest) (Maestro, error)

func (f launcherFunc) Launch(ctx context.Context, request LaunchRequest) (Maestro, error) {
	return f(ctx, request)
}

type fakeMaestro struct {
	port     int
	password string
	tunnel   Tunnel
	stopped  chan struct{}
	once     sync.Once
}

func newFakeMaestro(port int) *fakeMaestro {
	return &fakeMaestro{port: port, stopped: make(chan struct{})}
}

func (m *fakeMaestro) Port() int        { return m.port }
func (m *fakeMaestro) Password() string { return m.password }
func (m *fakeMaestro) Tunnel() Tunnel   { return m.tunnel }

func (m *fakeMaestro) Stop() error {
	m.once.Do(func() { close(m.stopped) })
	return nil
}

// maestroServer accepts client connections on a loopback port.
type maestroServer struct {
	listener net.Listener
	conns    chan net.Conn
}

func startMaestroServer(t *testing.T) *maestroServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	server := &maestroServer{listener: listener, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			t.Cleanup(func() { conn.Close() })
			server.conns <- conn
		}
	}()
	return server
}

func (s *maestroServer) port() int { return s.listener.Addr().(*net.TCPAddr).Port }

func (s *maestroServer) accept(t *testing.T) net.Conn {
	t.Helper()
	return testutil.RequireReceive[net.Conn](t, s.conns, waitTimeout, "waiting for the client to connect")
}

// readFrames reads from conn until decoder has produced count frames.
func readFrames(t *testing.T, conn net.Conn, decoder *protocol.Decoder, count int) []protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var frames []protocol.Frame
	buffer := make([]byte, 4096)
	for len(frames) < count {
		n, err := conn.Read(buffer)
		if n > 0 {
			decoded, decodeErr := decoder.Feed(buffer[:n])
			if decodeErr != nil {
				t.Fatalf("server Feed() error: %v", decodeErr)
			}
			frames = append(frames, decoded...)
		}
		if err != nil {
			t.Fatalf("server read error after %d frames: %v", len(frames), err)
		}
	}
	return frames
}

func writeFrame(t *testing.T, conn net.Conn, data []byte, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("encoding frame: %v", err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("server write error: %v", err)
	}
}

func newTestSession(t *testing.T, config Config) (*Session, *recordingHandler) {
	t.Helper()
	loop := eventloop.New()
	testutil.StartLoop(t, loop)
	handler := newRecordingHandler()
	config.Loop = loop
	config.Handler = handler
	if config.ProtocolVersion == "" {
		config.ProtocolVersion = "1.0.6"
	}
	if config.Hostname == "" {
		config.Hostname = "client"
	}
	return New(config), handler
}

func onLoop(t *testing.T, session *Session, fn func()) {
	t.Helper()
	testutil.CallLoop(t, session.loop, fn)
}

func TestLocalLoginFlushesQueuedRequests(t *testing.T) {
	server := startMaestroServer(t)
	maestro := newFakeMaestro(server.port())
	session, handler := newTestSession(t, Config{
		Address: "127.0.0.1",
		Display: ":0",
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			return maestro, nil
		}),
	})

	answered := make(chan *protocol.HTTPMessage, 1)
	onLoop(t, session, func() {
		if err := session.Connect(); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}
		if err := session.Send("/server?address=n1", nil, func(response *protocol.HTTPMessage) {
			answered <- response
		}); err != nil {
			t.Fatalf("Send() before login error: %v", err)
		}
	})

	conn := server.accept(t)
	frames := readFrames(t, conn, protocol.NewDecoder(), 1)
	login := frames[0].Message
	if login.Kind != protocol.KindLogin {
		t.Fatalf("first frame = %v, want INI", login.Kind)
	}
	if want := []string{"1.0.6", "client", "local", ":0"}; !slices.Equal(login.Fields, want) {
		t.Errorf("login fields = %q, want %q", login.Fields, want)
	}

	var states []protocol.State
	for range 3 {
		states = append(states, handler.next(t).state)
	}
	if want := []protocol.State{protocol.StateLaunching, protocol.StateConnecting, protocol.StateConnected}; !slices.Equal(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	onLoop(t, session, func() {
		if session.Queued() != 1 {
			t.Errorf("Queued() = %d, want 1", session.Queued())
		}
	})

	data, err := protocol.EncodeReturn(protocol.KindLogin, "maestro-host", "0", "fs-1")
	writeFrame(t, conn, data, err)
	handler.waitFor(t, protocol.StateLoggedIn)

	requests := readFrames(t, conn, protocol.NewDecoder(), 1)
	request := requests[0].HTTP
	if request == nil || request.Method != protocol.MethodPut || request.URL != "/server?address=n1" {
		t.Fatalf("queued request = %+v, want PUT /server?address=n1", request)
	}
	if response := testutil.RequireReceive[*protocol.HTTPMessage](t, answered, waitTimeout, "waiting for the callback"); response != nil {
		t.Errorf("legacy callback got %+v, want nil", response)
	}

	frame := testutil.RequireReceive[protocol.Frame](t, handler.frames, waitTimeout, "waiting for the login frame")
	if frame.Message.Kind != protocol.KindReturn {
		t.Errorf("handler frame = %v, want RET", frame.Message.Kind)
	}
	onLoop(t, session, func() {
		info := session.Login()
		if info.Hostname != "maestro-host" || info.FilesystemID != "fs-1" {
			t.Errorf("Login() = %+v", info)
		}
		if session.Queued() != 0 {
			t.Errorf("Queued() = %d after login, want 0", session.Queued())
		}
	})

	conn.Close()
	change := handler.waitFor(t, protocol.StateDisconnected)
	if change.failure == nil || change.failure.Kind != ErrorConnect {
		t.Errorf("failure after remote close = %v, want connect error", change.failure)
	}
	testutil.RequireClosed(t, maestro.stopped, waitTimeout, "maestro not stopped after disconnect")
}

// memoryRecorder keeps appended chunks and counts flushes.
type memoryRecorder struct {
	mu      sync.Mutex
	data    []byte
	flushes int
}

func (r *memoryRecorder) Append(_ time.Time, _ uint64, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data...)
	return nil
}

func (r *memoryRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func TestRecorderFlushedWhenConnectionEnds(t *testing.T) {
	server := startMaestroServer(t)
	maestro := newFakeMaestro(server.port())
	recorder := &memoryRecorder{}
	session, handler := newTestSession(t, Config{
		Address: "127.0.0.1",
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			return maestro, nil
		}),
		Recorder: recorder,
	})
	onLoop(t, session, func() { session.Connect() })

	conn := server.accept(t)
	readFrames(t, conn, protocol.NewDecoder(), 1)
	data, err := protocol.EncodeReturn(protocol.KindLogin, "maestro-host", "0", "fs-1")
	writeFrame(t, conn, data, err)
	handler.waitFor(t, protocol.StateLoggedIn)

	conn.Close()
	handler.waitFor(t, protocol.StateDisconnected)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if string(recorder.data) != string(data) {
		t.Errorf("recorded %q, want the login answer %q", recorder.data, data)
	}
	if recorder.flushes != 1 {
		t.Errorf("Flush() called %d times, want 1", recorder.flushes)
	}
}

func TestDisconnectDropsQueuedRequests(t *testing.T) {
	launchCancelled := make(chan struct{})
	session, handler := newTestSession(t, Config{
		Address: "127.0.0.1",
		Launcher: launcherFunc(func(ctx context.Context, _ LaunchRequest) (Maestro, error) {
			<-ctx.Done()
			close(launchCancelled)
			return nil, ctx.Err()
		}),
	})

	onLoop(t, session, func() {
		if err := session.Connect(); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}
		if err := session.Connect(); !errors.Is(err, ErrBusy) {
			t.Errorf("second Connect() = %v, want ErrBusy", err)
		}
		session.Send("/stop?address=n1", nil, func(*protocol.HTTPMessage) {
			t.Error("callback of a discarded request ran")
		})
		session.Disconnect()

		if session.Queued() != 0 {
			t.Errorf("Queued() = %d after Disconnect, want 0", session.Queued())
		}
		if session.Failure() != nil {
			t.Errorf("Failure() = %v after an explicit stop, want nil", session.Failure())
		}
		if err := session.Send("/stop?address=n1", nil, nil); !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("Send() while disconnected = %v, want ErrNotLoggedIn", err)
		}
	})

	testutil.RequireClosed(t, launchCancelled, waitTimeout, "launch context not cancelled")
	handler.waitFor(t, protocol.StateDisconnected)

	// The cancelled launch reports an error; it belongs to an old
	// attempt and must not become the session's failure.
	onLoop(t, session, func() {})
	onLoop(t, session, func() {
		if session.Failure() != nil {
			t.Errorf("stale launch error surfaced: %v", session.Failure())
		}
	})
}

func TestStaleLaunchIsStopped(t *testing.T) {
	release := make(chan struct{})
	maestro := newFakeMaestro(1)
	session, _ := newTestSession(t, Config{
		Address: "127.0.0.1",
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			<-release
			return maestro, nil
		}),
	})

	onLoop(t, session, func() {
		session.Connect()
		session.Disconnect()
	})
	close(release)
	testutil.RequireClosed(t, maestro.stopped, waitTimeout, "maestro from a stale launch left running")
	onLoop(t, session, func() {
		if session.State() != protocol.StateDisconnected {
			t.Errorf("State() = %v, want disconnected", session.State())
		}
	})
}

func TestLaunchFailureIsSticky(t *testing.T) {
	session, handler := newTestSession(t, Config{
		Address: "127.0.0.1",
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			return nil, errors.New("gebrm: not found")
		}),
	})
	onLoop(t, session, func() { session.Connect() })

	change := handler.waitFor(t, protocol.StateDisconnected)
	if change.failure == nil || change.failure.Kind != ErrorServer {
		t.Fatalf("failure = %v, want server error", change.failure)
	}
	onLoop(t, session, func() {
		if session.Failure() != change.failure {
			t.Error("Failure() does not hold the reported failure")
		}
	})
}

func TestProtocolErrorDisconnects(t *testing.T) {
	server := startMaestroServer(t)
	session, handler := newTestSession(t, Config{
		Address: "127.0.0.1",
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			return newFakeMaestro(server.port()), nil
		}),
	})
	onLoop(t, session, func() { session.Connect() })

	conn := server.accept(t)
	readFrames(t, conn, protocol.NewDecoder(), 1)
	writeFrame(t, conn, []byte("XYZ 3 abc\n"), nil)

	change := handler.waitFor(t, protocol.StateDisconnected)
	if change.failure == nil || change.failure.Kind != ErrorProtocol {
		t.Fatalf("failure = %v, want protocol error", change.failure)
	}
	var parseErr *protocol.ParseError
	if !errors.As(change.failure, &parseErr) {
		t.Errorf("failure %v does not wrap a ParseError", change.failure)
	}
}

// fakeTunnel dials a loopback server, failing the first failFirst
// dials.
type fakeTunnel struct {
	address   string
	failFirst int32
	dials     atomic.Int32
}

func (f *fakeTunnel) DialRemote(ctx context.Context, _ int) (net.Conn, error) {
	if f.dials.Add(1) <= f.failFirst {
		return nil, errors.New("connection refused")
	}
	return (&net.Dialer{}).DialContext(ctx, "tcp", f.address)
}

func (f *fakeTunnel) ListenRemote(int) (net.Listener, error) {
	return nil, errors.New("not supported")
}

func TestTunnelPollsUntilMaestroAnswers(t *testing.T) {
	server := startMaestroServer(t)
	tunnel := &fakeTunnel{address: server.listener.Addr().String(), failFirst: 1}
	maestro := newFakeMaestro(server.port())
	maestro.tunnel = tunnel
	fake := clock.Fake(time.Unix(1700000000, 0))

	session, handler := newTestSession(t, Config{
		Address: "10.0.0.9",
		Display: ":0",
		Cookie:  func(context.Context, string) string { return "c00kie" },
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			return maestro, nil
		}),
		Clock: fake,
	})
	onLoop(t, session, func() { session.Connect() })
	handler.waitFor(t, protocol.StateOpeningTunnel)

	// First probe is refused and rearms the poll timer.
	fake.WaitForTimers(1)
	fake.Advance(defaultPollInterval)
	fake.WaitForTimers(1)
	fake.Advance(defaultPollInterval)

	handler.waitFor(t, protocol.StateConnecting)
	conn := server.accept(t)
	frames := readFrames(t, conn, protocol.NewDecoder(), 1)
	if want := []string{"1.0.6", "client", "remote", "c00kie"}; !slices.Equal(frames[0].Message.Fields, want) {
		t.Errorf("login fields = %q, want %q", frames[0].Message.Fields, want)
	}

	data, err := protocol.EncodeReturn(protocol.KindLogin, "far", "", "fs")
	writeFrame(t, conn, data, err)
	handler.waitFor(t, protocol.StateLoggedIn)

	// The poll that succeeded carried the login: the maestro saw one
	// client.
	if dials := tunnel.dials.Load(); dials != 2 {
		t.Errorf("tunnel dialed %d times, want 2", dials)
	}
	select {
	case extra := <-server.conns:
		t.Errorf("maestro accepted a second connection from %v", extra.RemoteAddr())
	default:
	}

	onLoop(t, session, func() {
		if session.TunnelPort() == 0 {
			t.Error("TunnelPort() = 0 while logged in")
		}
		if !session.Remote() {
			t.Error("Remote() = false for a tunnelled maestro")
		}
		session.Disconnect()
	})
	handler.waitFor(t, protocol.StateDisconnected)
	if pending := fake.PendingCount(); pending != 0 {
		t.Errorf("%d timers pending after disconnect", pending)
	}
}

func TestTunnelPollGivesUp(t *testing.T) {
	maestro := newFakeMaestro(4242)
	maestro.tunnel = &fakeTunnel{failFirst: 1 << 30}
	fake := clock.Fake(time.Unix(1700000000, 0))

	session, handler := newTestSession(t, Config{
		Address: "10.0.0.9",
		Launcher: launcherFunc(func(context.Context, LaunchRequest) (Maestro, error) {
			return maestro, nil
		}),
		Clock:        fake,
		PollAttempts: 2,
	})
	onLoop(t, session, func() { session.Connect() })
	handler.waitFor(t, protocol.StateOpeningTunnel)

	for range 2 {
		fake.WaitForTimers(1)
		fake.Advance(defaultPollInterval)
	}
	change := handler.waitFor(t, protocol.StateDisconnected)
	if change.failure == nil || change.failure.Kind != ErrorConnect {
		t.Fatalf("failure = %v, want connect error", change.failure)
	}
	testutil.RequireClosed(t, maestro.stopped, waitTimeout, "maestro not stopped")
}

func TestParseErrorKind(t *testing.T) {
	tests := map[string]ErrorKind{
		"none":           ErrorNone,
		"error:connect":  ErrorConnect,
		"error:server":   ErrorServer,
		"SSH":            ErrorSSH,
		"error:protocol": ErrorProtocol,
	}
	for name, want := range tests {
		got, ok := ParseErrorKind(name)
		if !ok || got != want {
			t.Errorf("ParseErrorKind(%q) = %v, %v; want %v", name, got, ok, want)
		}
	}
	if _, ok := ParseErrorKind("error:weird"); ok {
		t.Error("ParseErrorKind(error:weird) ok")
	}
}
