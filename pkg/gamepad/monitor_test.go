package gamepad

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fakeRead struct {
	events []Event
	err    error
}

// fakeSource hands out whatever the test pushes into reads and answers
// probes from a script.
type fakeSource struct {
	reads chan fakeRead

	lock         sync.Mutex
	probeResults []error
	probeDefault error
	probes       int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		reads:        make(chan fakeRead),
		probeDefault: ErrDeviceAbsent,
	}
}

func (f *fakeSource) ReadEvents(ctx context.Context) ([]Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-f.reads:
		return r.events, r.err
	}
}

func (f *fakeSource) Probe(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.probes++
	if len(f.probeResults) > 0 {
		err := f.probeResults[0]
		f.probeResults = f.probeResults[1:]
		return err
	}
	return f.probeDefault
}

func (f *fakeSource) probeCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.probes
}

func (f *fakeSource) send(t *testing.T, r fakeRead) {
	t.Helper()
	select {
	case f.reads <- r:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the monitor to read")
	}
}

type logRecorder struct {
	lock  sync.Mutex
	lines []string
}

func (l *logRecorder) Logf(format string, args ...interface{}) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logRecorder) count(substr string) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the monitor to stop")
	}
}

func newTestMonitor(src Source, logs *logRecorder, opts ...Option) *Monitor {
	opts = append([]Option{
		WithReconnectDelay(time.Millisecond),
		WithLogf(logs.Logf),
	}, opts...)
	return New(src, opts...)
}

func leftStickHalf() fakeRead {
	return fakeRead{events: []Event{
		{Type: EvAbs, Code: AbsY, Value: 16384},
		{Type: EvSyn, Code: SynReport},
	}}
}

func TestMonitorGivesUpAfterMaxAttempts(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs)
	m.Start(context.Background())
	defer m.Stop()

	src.send(t, leftStickHalf())
	waitFor(t, "connection", m.IsConnected)
	waitFor(t, "left stick", func() bool { return m.Read().Get(LeftJoystickY) == 0.5 })

	src.send(t, fakeRead{err: errors.Wrap(ErrDeviceAbsent, "read /dev/input/event3")})
	waitDone(t, m)

	if !errors.Is(m.Err(), ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", m.Err())
	}
	if n := src.probeCount(); n != MaxReconnectAttempts {
		t.Fatalf("expected %d probes, got %d", MaxReconnectAttempts, n)
	}
	if n := m.ReconnectAttempts(); n != MaxReconnectAttempts {
		t.Fatalf("expected attempt counter %d, got %d", MaxReconnectAttempts, n)
	}
	if m.IsConnected() {
		t.Fatal("monitor should report disconnected")
	}
	if m.ConnState() != GivenUp {
		t.Fatalf("expected given-up state, got %v", m.ConnState())
	}
	if logs.count("Controller disconnected") != 1 {
		t.Fatal("expected one disconnection log line")
	}

	before := logs.count("Warning:")
	if s := m.Read(); !s.IsZero() {
		t.Fatalf("expected zero snapshot while disconnected, got %v", s)
	}
	if logs.count("Warning:") != before+1 {
		t.Fatal("reading while disconnected should log a warning")
	}

	logs.lock.Lock()
	for _, line := range logs.lines {
		if !strings.HasPrefix(line, "JOYSTICK: ") {
			t.Errorf("log line without the JOYSTICK prefix: %q", line)
		}
	}
	logs.lock.Unlock()

	// The loop has exited so nothing consumes reads any more.
	select {
	case src.reads <- leftStickHalf():
		t.Fatal("monitor is still polling after giving up")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMonitorReconnectsOnSecondProbe(t *testing.T) {
	src := newFakeSource()
	src.probeResults = []error{ErrDeviceAbsent, nil}
	logs := &logRecorder{}

	var transitions []string
	var transLock sync.Mutex
	hook := func(from, to ConnState) {
		transLock.Lock()
		defer transLock.Unlock()
		transitions = append(transitions, from.String()+">"+to.String())
	}

	m := newTestMonitor(src, logs, WithStateChangeHook(hook))
	m.Start(context.Background())
	defer m.Stop()

	src.send(t, leftStickHalf())
	waitFor(t, "connection", m.IsConnected)

	src.send(t, fakeRead{err: ErrDeviceAbsent})
	waitFor(t, "second probe", func() bool { return src.probeCount() == 2 })
	waitFor(t, "reconnection", m.IsConnected)

	if logs.count("reconnected successfully") != 1 {
		t.Fatal("expected a reconnection log line")
	}
	// Values were zeroed on disconnect and stay zero until new input.
	if s := m.Read(); !s.IsZero() {
		t.Fatalf("expected zero snapshot after reconnect, got %v", s)
	}

	// Polling resumes normally.
	src.send(t, fakeRead{events: []Event{{Type: EvKey, Code: BtnSouth, Value: 1}}})
	waitFor(t, "A button", func() bool { return m.Read().Pressed(A) })
	if n := m.ReconnectAttempts(); n != 0 {
		t.Fatalf("attempt counter should reset once reads succeed, got %d", n)
	}

	transLock.Lock()
	got := strings.Join(transitions, " ")
	transLock.Unlock()
	if got != "initial>connected connected>retrying retrying>connected" {
		t.Fatalf("unexpected transitions: %s", got)
	}
}

// unreadableSource opens fine but every read reports the device gone.
type unreadableSource struct {
	lock          sync.Mutex
	reads, probes int
}

func (u *unreadableSource) ReadEvents(ctx context.Context) ([]Event, error) {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.reads++
	return nil, errors.Wrap(ErrDeviceAbsent, "read /dev/input/event3: input/output error")
}

func (u *unreadableSource) Probe(ctx context.Context) error {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.probes++
	return nil
}

func TestMonitorUnreadableDeviceSpendsAttempts(t *testing.T) {
	src := &unreadableSource{}
	logs := &logRecorder{}
	m := newTestMonitor(src, logs, WithReconnectDelay(10*time.Millisecond))
	start := time.Now()
	m.Start(context.Background())
	defer m.Stop()

	waitDone(t, m)

	if !errors.Is(m.Err(), ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", m.Err())
	}
	if m.ConnState() != GivenUp {
		t.Fatalf("expected given-up state, got %v", m.ConnState())
	}
	src.lock.Lock()
	reads, probes := src.reads, src.probes
	src.lock.Unlock()
	if probes != MaxReconnectAttempts || reads != MaxReconnectAttempts+1 {
		t.Fatalf("expected %d probes and %d reads, got %d and %d",
			MaxReconnectAttempts, MaxReconnectAttempts+1, probes, reads)
	}
	if n := logs.count("reconnected successfully"); n != MaxReconnectAttempts {
		t.Fatalf("expected %d reconnection log lines, got %d", MaxReconnectAttempts, n)
	}
	if elapsed := time.Since(start); elapsed < (MaxReconnectAttempts-1)*10*time.Millisecond {
		t.Fatalf("gave up after %v without backing off", elapsed)
	}
}

func TestMonitorInitialFailureUsesSameRetryPolicy(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs, WithMaxReconnectAttempts(3))
	m.Start(context.Background())
	defer m.Stop()

	src.send(t, fakeRead{err: ErrDeviceAbsent})
	waitDone(t, m)

	if !errors.Is(m.Err(), ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", m.Err())
	}
	if n := src.probeCount(); n != 3 {
		t.Fatalf("expected 3 probes, got %d", n)
	}
	if logs.count("Controller disconnected") != 0 {
		t.Fatal("a device that never connected should not log a disconnection")
	}
}

func TestMonitorUnknownErrorIsFatal(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs)
	m.Start(context.Background())
	defer m.Stop()

	src.send(t, leftStickHalf())
	waitFor(t, "connection", m.IsConnected)

	boom := errors.New("permission denied")
	src.send(t, fakeRead{err: boom})
	waitDone(t, m)

	if !errors.Is(m.Err(), boom) {
		t.Fatalf("expected the device error to propagate, got %v", m.Err())
	}
	if n := src.probeCount(); n != 0 {
		t.Fatalf("unknown errors should not trigger reconnects, got %d probes", n)
	}
	if m.IsConnected() {
		t.Fatal("monitor should not report connected after a fatal error")
	}
	if s := m.Read(); !s.IsZero() {
		t.Fatalf("expected zero snapshot, got %v", s)
	}
}

func TestMonitorStopJoinsAndFreezesState(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs)
	m.Start(context.Background())

	src.send(t, leftStickHalf())
	waitFor(t, "left stick", func() bool { return m.Read().Get(LeftJoystickY) == 0.5 })

	m.Stop()
	select {
	case <-m.Done():
	default:
		t.Fatal("Stop returned before the polling goroutine exited")
	}
	if m.Err() != nil {
		t.Fatalf("a stopped monitor should have no error, got %v", m.Err())
	}

	select {
	case src.reads <- fakeRead{events: []Event{{Type: EvAbs, Code: AbsY, Value: -32768}}}:
		t.Fatal("monitor is still polling after Stop")
	case <-time.After(20 * time.Millisecond):
	}
	if v := m.Read().Get(LeftJoystickY); v != 0.5 {
		t.Fatalf("state changed after Stop: %v", v)
	}

	// A second Stop is harmless.
	m.Stop()
}

func TestMonitorStopInterruptsBackoff(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs, WithReconnectDelay(time.Hour))
	m.Start(context.Background())

	src.send(t, fakeRead{err: ErrDeviceAbsent})
	waitFor(t, "first failed probe", func() bool { return m.ReconnectAttempts() == 1 })

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt the reconnect delay")
	}
	if m.Err() != nil {
		t.Fatalf("expected no error after Stop, got %v", m.Err())
	}
}

func TestMonitorStartIsIdempotent(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs)
	m.Start(context.Background())
	defer m.Stop()

	done := m.Done()
	m.Start(context.Background())
	if m.Done() != done {
		t.Fatal("second Start launched another polling goroutine")
	}
}

func TestMonitorRestartAfterGivingUp(t *testing.T) {
	src := newFakeSource()
	logs := &logRecorder{}
	m := newTestMonitor(src, logs, WithMaxReconnectAttempts(1))
	m.Start(context.Background())
	defer m.Stop()

	src.send(t, fakeRead{err: ErrDeviceAbsent})
	waitDone(t, m)
	if m.ConnState() != GivenUp {
		t.Fatalf("expected given-up, got %v", m.ConnState())
	}

	m.Start(context.Background())
	if m.ConnState() != Initial || m.ReconnectAttempts() != 0 || m.Err() != nil {
		t.Fatalf("restart should reset the monitor: state=%v attempts=%d err=%v",
			m.ConnState(), m.ReconnectAttempts(), m.Err())
	}
	src.send(t, leftStickHalf())
	waitFor(t, "connection after restart", m.IsConnected)
}

func TestReadBeforeConnectIsZero(t *testing.T) {
	logs := &logRecorder{}
	m := newTestMonitor(newFakeSource(), logs)
	if s := m.Read(); !s.IsZero() {
		t.Fatalf("expected zero snapshot, got %v", s)
	}
	if logs.count("not connected") != 1 {
		t.Fatal("expected a warning")
	}
	if m.IsConnected() {
		t.Fatal("new monitor should not be connected")
	}
}
