//go:build linux

// Package consumer connects to a producer and hands every received frame to
// a visitor, releasing the frame's mapping and descriptor after each call.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
)

// Config configures a consumer session.
type Config struct {
	SocketPath string
	Geometry   frames.Geometry
	// Handshake expects the producer's geometry hello before the first frame.
	Handshake bool
	Reconnect ReconnectPolicy
}

// Session is a consumer endpoint:
// Idle → Connecting → Connected → Looping → Closed.
type Session struct {
	cfg    Config
	id     string
	bus    *events.Bus
	logger logging.Logger

	mu      sync.Mutex
	state   State
	channel *frames.Channel

	attempts atomic.Uint64
	consumed atomic.Uint64
	failed   atomic.Uint64
}

// New creates an idle session. bus may be nil.
func New(cfg Config, bus *events.Bus) (*Session, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, frames.SetupError("invalid geometry", err)
	}
	if cfg.SocketPath == "" {
		return nil, frames.SetupError("socket path is required", nil)
	}
	id := uuid.NewString()
	return &Session{
		cfg:    cfg,
		id:     id,
		bus:    bus,
		logger: logging.GetLogger("consumer").With("session_id", id),
		state:  StateIdle,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Attempts: s.attempts.Load(),
		Consumed: s.consumed.Load(),
		Failed:   s.failed.Load(),
	}
}

// Connect dials the producer, retrying according to the reconnect policy,
// and runs the geometry handshake when enabled. Failure is a setup error.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("connect: session is %s", state)
	}
	s.mu.Unlock()
	s.setState(StateConnecting)

	var dialer net.Dialer
	var conn *net.UnixConn
	dial := func() error {
		attempt := s.attempts.Add(1)
		c, err := dialer.DialContext(ctx, "unix", s.cfg.SocketPath)
		if err != nil {
			s.logger.Debug("Dial failed", "attempt", attempt, "error", err)
			return err
		}
		conn = c.(*net.UnixConn)
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Producer not reachable, retrying", "socket", s.cfg.SocketPath, "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(dial, s.cfg.Reconnect.backOff(ctx), notify); err != nil {
		s.setState(StateClosed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return frames.SetupError(fmt.Sprintf("connect %s after %d attempt(s)", s.cfg.SocketPath, s.attempts.Load()), err)
	}

	ch, err := frames.NewChannel(conn, s.cfg.Geometry)
	if err != nil {
		_ = conn.Close()
		s.setState(StateClosed)
		return frames.SetupError("channel", err)
	}
	if s.cfg.Handshake {
		if err := ch.Accept(); err != nil {
			_ = ch.Close()
			s.setState(StateClosed)
			return err
		}
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
	s.setState(StateConnected)
	s.logger.Info("Connected to producer", "socket", s.cfg.SocketPath, "geometry", s.cfg.Geometry.String())
	return nil
}

// Loop consumes frames until the producer disconnects, a frame cannot be
// mapped, or ctx is cancelled. Visitor failures are logged and the loop
// continues. A nil return means ctx was cancelled.
func (s *Session) Loop(ctx context.Context, visit frames.Visitor) error {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return errors.New("loop: not connected")
	}
	s.setState(StateLooping)

	// Closing the socket is the only way to interrupt a blocked receive.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-done:
		}
	}()

	bytes := ch.Geometry().Size()
	for {
		if ctx.Err() != nil {
			return nil
		}

		var index uint64
		err := ch.Consume(func(v frames.View) error {
			index = v.Index
			return visit(v)
		})
		if err == nil {
			s.consumed.Add(1)
			s.logger.Debug("Frame consumed", "index", index)
			s.bus.Publish(events.FrameConsumedEvent{
				SessionID: s.id,
				Index:     index,
				Bytes:     bytes,
				Timestamp: time.Now().Format(time.RFC3339),
			})
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		var fe *frames.Error
		if errors.As(err, &fe) && (fe.Code == frames.CodeVisitorFailed || fe.Code == frames.CodeMapFailed) {
			s.failed.Add(1)
			s.bus.Publish(events.FrameFailedEvent{
				SessionID: s.id,
				Index:     ch.Received() - 1,
				Code:      string(fe.Code),
				Error:     err.Error(),
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
		if frames.IsRecoverable(err) {
			s.logger.Warn("Frame rejected by visitor", "index", ch.Received()-1, "error", err)
			continue
		}

		if frames.HasCode(err, frames.CodeDisconnected) {
			s.logger.Info("Producer disconnected", "consumed", s.consumed.Load())
		} else {
			s.logger.Error("Consumer loop ended", "error", err)
		}
		return err
	}
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	var err error
	if ch != nil {
		err = ch.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	s.setState(StateClosed)
	return err
}

// Run connects and consumes until the session ends. It returns nil when ctx
// is cancelled, a setup error when the producer cannot be reached, and the
// session-ending error otherwise.
func (s *Session) Run(ctx context.Context, visit frames.Visitor) error {
	if err := s.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer s.Close()

	return s.Loop(ctx, visit)
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from == to {
		return
	}

	s.logger.Debug("State changed", "from", string(from), "to", string(to))
	s.bus.Publish(events.SessionStateChangedEvent{
		Role:      events.RoleConsumer,
		SessionID: s.id,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
