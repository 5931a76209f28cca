package gamepad

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	MaxReconnectAttempts  = 5
	DefaultReconnectDelay = 3 * time.Second
)

// Source is the gamepad driver layer. Both methods block and must return
// promptly once ctx is cancelled. A missing or unplugged device is reported
// with an error wrapping ErrDeviceAbsent.
type Source interface {
	ReadEvents(ctx context.Context) ([]Event, error)
	Probe(ctx context.Context) error
}

type ConnState uint8

const (
	// Initial: no contact with the device yet.
	Initial ConnState = iota
	Connected
	Retrying
	GivenUp
)

func (s ConnState) String() string {
	switch s {
	case Initial:
		return "initial"
	case Connected:
		return "connected"
	case Retrying:
		return "retrying"
	case GivenUp:
		return "given-up"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

type Options struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	Logf                 func(format string, args ...interface{})
	// OnStateChange is called from the polling goroutine after every
	// connectivity transition. It must not block.
	OnStateChange func(from, to ConnState)
}

type Option func(*Options)

func WithMaxReconnectAttempts(n int) Option {
	return func(o *Options) { o.MaxReconnectAttempts = n }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(o *Options) { o.ReconnectDelay = d }
}

func WithLogf(logf func(format string, args ...interface{})) Option {
	return func(o *Options) { o.Logf = logf }
}

func WithStateChangeHook(f func(from, to ConnState)) Option {
	return func(o *Options) { o.OnStateChange = f }
}

// Monitor polls a Source in a background goroutine and keeps the latest
// value of every channel. Only the polling goroutine writes the channel
// state; Read may zero it while disconnected.
type Monitor struct {
	source Source
	opts   Options

	lifecycleLock sync.Mutex // Guards cancel and done.
	cancel        context.CancelFunc
	done          chan struct{}

	lock     sync.RWMutex // Guards everything below.
	state    State
	conn     ConnState
	attempts int
	err      error
}

func New(source Source, opts ...Option) *Monitor {
	o := Options{
		MaxReconnectAttempts: MaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		Logf:                 log.Printf,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = MaxReconnectAttempts
	}
	if o.Logf == nil {
		o.Logf = func(string, ...interface{}) {}
	}
	done := make(chan struct{})
	close(done)
	return &Monitor{
		source: source,
		opts:   o,
		done:   done,
	}
}

// Start launches the polling goroutine. It does nothing if one is already
// running.
func (m *Monitor) Start(ctx context.Context) {
	m.lifecycleLock.Lock()
	defer m.lifecycleLock.Unlock()

	select {
	case <-m.done:
	default:
		return
	}

	m.lock.Lock()
	m.state = State{}
	m.conn = Initial
	m.attempts = 0
	m.err = nil
	m.lock.Unlock()

	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)
}

// Stop cancels the polling goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	m.lifecycleLock.Lock()
	cancel, done := m.cancel, m.done
	m.lifecycleLock.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed when the current polling goroutine exits.
func (m *Monitor) Done() <-chan struct{} {
	m.lifecycleLock.Lock()
	defer m.lifecycleLock.Unlock()
	return m.done
}

// Err returns why the last polling goroutine stopped: ErrReconnectExhausted,
// an unexpected device error, or nil if it was stopped or is still running.
func (m *Monitor) Err() error {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.err
}

// Read returns a snapshot of every channel. While disconnected it logs a
// warning and returns (and stores) all zeros.
func (m *Monitor) Read() State {
	m.lock.RLock()
	conn, state := m.conn, m.state
	m.lock.RUnlock()

	if conn == Connected {
		return state
	}

	m.opts.Logf("JOYSTICK: Warning: Controller is not connected! (you might need to press any button to connect)")
	m.lock.Lock()
	if m.conn != Connected {
		m.state = State{}
	}
	m.lock.Unlock()
	return State{}
}

func (m *Monitor) IsConnected() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.conn == Connected
}

func (m *Monitor) ConnState() ConnState {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.conn
}

// ReconnectAttempts is the number of failed reconnect attempts since the
// last successful read.
func (m *Monitor) ReconnectAttempts() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.attempts
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := m.poll(ctx)
	if ctx.Err() != nil && !errors.Is(err, ErrReconnectExhausted) {
		// Stopped by the caller.
		err = nil
	}

	m.lock.Lock()
	m.err = err
	m.lock.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, ErrReconnectExhausted):
		m.setConn(GivenUp)
		m.opts.Logf("JOYSTICK: ERROR: %v. Stopping controller monitoring.", err)
	default:
		// Unknown device errors are fatal to the loop, not retried.
		m.lock.Lock()
		m.state = State{}
		m.lock.Unlock()
		m.setConn(GivenUp)
		m.opts.Logf("JOYSTICK: ERROR: Controller monitoring failed: %v", err)
	}
}

func (m *Monitor) poll(ctx context.Context) error {
	// Set while the device answered a probe but has not produced a read
	// since. A read failing in that window spends a reconnect attempt.
	probed := false
	for ctx.Err() == nil {
		events, err := m.source.ReadEvents(ctx)
		if err == nil {
			m.applyBatch(events)
			probed = false
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, ErrDeviceAbsent) {
			return errors.Wrap(err, "reading gamepad")
		}

		if m.IsConnected() && !probed {
			m.opts.Logf("JOYSTICK: Controller disconnected. Attempting to reconnect...")
		}
		m.disconnected()

		if err := m.reconnect(ctx, probed); err != nil {
			return err
		}
		probed = true
	}
	return ctx.Err()
}

// reconnect probes the source until it answers, the attempt budget runs out
// or ctx is cancelled. With unreadable set the first attempt is already
// spent, so it starts with the backoff.
func (m *Monitor) reconnect(ctx context.Context, unreadable bool) error {
	limit := m.opts.MaxReconnectAttempts
	for ctx.Err() == nil {
		if !unreadable {
			err := m.source.Probe(ctx)
			if err == nil {
				m.opts.Logf("JOYSTICK: Controller reconnected successfully!")
				m.setConn(Connected)
				return nil
			}
			if ctx.Err() != nil {
				break
			}
			if !errors.Is(err, ErrDeviceAbsent) {
				return errors.Wrap(err, "probing gamepad")
			}
		}
		unreadable = false

		m.lock.Lock()
		m.attempts++
		attempts := m.attempts
		m.lock.Unlock()

		if attempts >= limit {
			m.opts.Logf("JOYSTICK: Reconnection attempt %d/%d failed.", attempts, limit)
			return ErrReconnectExhausted
		}
		m.opts.Logf("JOYSTICK: Reconnection attempt %d/%d failed. %d attempts remaining. Retrying in %v...",
			attempts, limit, limit-attempts, m.opts.ReconnectDelay)

		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	return ctx.Err()
}

// applyBatch folds events into the channel state and marks the device
// connected in one critical section so a concurrent Read cannot zero a
// half-applied batch.
func (m *Monitor) applyBatch(events []Event) {
	m.lock.Lock()
	for _, e := range events {
		m.state.apply(e)
	}
	from := m.conn
	m.conn = Connected
	m.attempts = 0
	m.lock.Unlock()

	m.notify(from, Connected)
}

func (m *Monitor) disconnected() {
	m.lock.Lock()
	m.state = State{}
	m.lock.Unlock()
	m.setConn(Retrying)
}

func (m *Monitor) setConn(to ConnState) {
	m.lock.Lock()
	from := m.conn
	m.conn = to
	m.lock.Unlock()

	m.notify(from, to)
}

func (m *Monitor) notify(from, to ConnState) {
	if from != to && m.opts.OnStateChange != nil {
		m.opts.OnStateChange(from, to)
	}
}
