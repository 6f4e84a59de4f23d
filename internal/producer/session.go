//go:build linux

// Package producer serves frames from a media source to exactly one
// consumer over a local stream socket.
package producer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
	"github.com/smazurov/framelink/internal/source"
)

// ErrSourceExhausted is returned by Serve when the source closed its frame
// channel.
var ErrSourceExhausted = errors.New("source exhausted")

// Config configures a producer session.
type Config struct {
	SocketPath string
	Geometry   frames.Geometry
	// Handshake sends the geometry hello before the first frame.
	Handshake bool
	// AcceptNext returns the session to Listening after a consumer leaves
	// instead of closing it.
	AcceptNext bool
}

// Session is a producer endpoint:
// Idle → Listening → Connected → Serving → Closed.
type Session struct {
	cfg    Config
	id     string
	bus    *events.Bus
	logger logging.Logger

	mu       sync.Mutex
	state    State
	listener *net.UnixListener
	channel  *frames.Channel

	connections atomic.Uint64
	published   atomic.Uint64
	skipped     atomic.Uint64
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
		logger: logging.GetLogger("producer").With("session_id", id),
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
		Connections: s.connections.Load(),
		Published:   s.published.Load(),
		Skipped:     s.skipped.Load(),
	}
}

// Listen binds the rendezvous socket, replacing any stale socket file a
// crashed predecessor left behind.
func (s *Session) Listen() error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("listen: session is %s", state)
	}
	l, err := listenUnix(s.cfg.SocketPath)
	if err != nil {
		s.mu.Unlock()
		return frames.SetupError("bind rendezvous socket", err)
	}
	s.listener = l
	s.mu.Unlock()

	s.setState(StateListening)
	s.logger.Info("Listening for consumer", "socket", s.cfg.SocketPath, "geometry", s.cfg.Geometry.String())
	return nil
}

// Accept blocks until one consumer connects, then runs the geometry
// handshake when enabled. Cancelling ctx unblocks the wait.
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	state := s.state
	s.mu.Unlock()
	if l == nil || state != StateListening {
		return fmt.Errorf("accept: session is %s", state)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.SetDeadline(time.Now())
		case <-done:
		}
	}()

	conn, err := l.AcceptUnix()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return frames.SetupError("accept consumer", err)
	}
	_ = l.SetDeadline(time.Time{})

	ch, err := frames.NewChannel(conn, s.cfg.Geometry)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if s.cfg.Handshake {
		if err := ch.Offer(); err != nil {
			_ = ch.Close()
			return err
		}
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
	s.connections.Add(1)
	s.setState(StateConnected)
	s.logger.Info("Consumer connected")
	return nil
}

// Serve publishes every frame src yields until the consumer goes away, src
// runs dry or ctx is cancelled. Frames that cannot be exported are logged
// and skipped. A nil return means ctx was cancelled.
func (s *Session) Serve(ctx context.Context, src source.Source) error {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return errors.New("serve: no consumer connected")
	}
	s.setState(StateServing)

	// A send blocked on a full socket buffer only returns once the deadline
	// passes, so cancellation moves the deadline to now.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Conn().SetWriteDeadline(time.Now())
		case <-done:
		}
	}()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-src.Frames():
			if !ok {
				return ErrSourceExhausted
			}
			err := s.publish(ch, f, seq)
			if err == nil {
				seq++
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if frames.IsRecoverable(err) {
				continue
			}
			s.logger.Error("Consumer lost", "error", err, "published", seq)
			return err
		}
	}
}

func (s *Session) publish(ch *frames.Channel, f source.Frame, seq uint64) error {
	defer f.Release()

	if f.Err != nil {
		s.skip(f.BatchIndex, f.Err.Error())
		return frames.NewError(frames.CodeExportFailed, "source", f.Err)
	}
	if f.Geometry != (frames.Geometry{}) && f.Geometry != s.cfg.Geometry {
		reason := fmt.Sprintf("geometry %s differs from agreed %s", f.Geometry, s.cfg.Geometry)
		s.skip(f.BatchIndex, reason)
		return frames.NewError(frames.CodeExportFailed, reason, nil)
	}

	if err := ch.Publish(f.FD); err != nil {
		if frames.IsRecoverable(err) {
			s.skip(f.BatchIndex, err.Error())
		}
		return err
	}

	s.published.Add(1)
	s.logger.Debug("Frame published", "sequence", seq, "batch_index", f.BatchIndex)
	s.bus.Publish(events.FramePublishedEvent{
		SessionID:  s.id,
		Sequence:   seq,
		BatchIndex: f.BatchIndex,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	return nil
}

func (s *Session) skip(batch uint64, reason string) {
	s.skipped.Add(1)
	s.logger.Warn("Skipping frame", "batch_index", batch, "reason", reason)
	s.bus.Publish(events.FrameSkippedEvent{
		SessionID:  s.id,
		BatchIndex: batch,
		Reason:     reason,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// Disconnect drops the current consumer and returns to Listening.
func (s *Session) Disconnect() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	closed := s.state == StateClosed
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if !closed {
		s.setState(StateListening)
	}
}

// Close releases the connection and the rendezvous socket. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	ch, l := s.channel, s.listener
	s.channel, s.listener = nil, nil
	s.mu.Unlock()

	var errs []error
	if ch != nil {
		errs = append(errs, ch.Close())
	}
	if l != nil {
		errs = append(errs, l.Close())
	}
	s.setState(StateClosed)
	s.logger.Info("Session closed", "published", s.published.Load(), "skipped", s.skipped.Load())
	return errors.Join(errs...)
}

// Run drives the whole lifecycle against src: listen, accept, serve, close.
// It returns nil when ctx is cancelled or src runs dry, a setup error when
// the socket cannot be bound, and the session-ending error otherwise.
func (s *Session) Run(ctx context.Context, src source.Source) error {
	if err := s.Listen(); err != nil {
		return err
	}
	defer s.Close()

	for {
		if err := s.Accept(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if frames.HasCode(err, frames.CodeHandshakeFailed) && s.cfg.AcceptNext {
				s.logger.Warn("Handshake failed, waiting for another consumer", "error", err)
				continue
			}
			return err
		}

		err := s.Serve(ctx, src)
		switch {
		case ctx.Err() != nil, errors.Is(err, ErrSourceExhausted):
			if errors.Is(err, ErrSourceExhausted) {
				s.logger.Info("Source finished, closing session")
			}
			return nil
		case s.cfg.AcceptNext:
			s.logger.Info("Waiting for the next consumer")
			s.Disconnect()
		default:
			return err
		}
	}
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
		Role:      events.RoleProducer,
		SessionID: s.id,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
