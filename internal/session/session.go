package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"score-annotator/internal/config"
)

var (
	ErrClosed    = errors.New("session closed")
	ErrQueueFull = errors.New("send queue full")
)

// State WebSocket connection state
type State int32

const (
	StateOpen    State = iota // accepting outbound frames
	StateClosing              // queue closed, write pump draining
	StateClosed               // socket closed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// closeGrace is how long the reader waits for the peer's close frame after
// ours has been sent.
const closeGrace = time.Second

// Socket is the part of a websocket connection a Session uses.
// *websocket.Conn from gofiber/contrib satisfies it. The socket itself is
// closed by whoever runs the read loop.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
}

// Session one client socket (Thread-Safe). Outbound frames go through a
// bounded queue drained by WritePump, the only goroutine that writes data
// frames.
type Session struct {
	id          string
	sock        Socket
	connectedAt time.Time
	writeWait   time.Duration
	log         *zap.Logger

	state atomic.Int32

	mu   sync.Mutex // guards send close
	send chan []byte
	done chan struct{}
}

// New creates a session. Start WritePump in its own goroutine.
func New(sock Socket, cfg config.WebSocketConfig, log *zap.Logger) *Session {
	queue := cfg.SendQueueSize
	if queue <= 0 {
		queue = 256
	}
	id := uuid.NewString()

	return &Session{
		id:          id,
		sock:        sock,
		connectedAt: time.Now(),
		writeWait:   cfg.WriteTimeout,
		log:         log.With(zap.String("session", id)),
		send:        make(chan []byte, queue),
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// State current state
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsOpen reports whether frames are still accepted.
func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// Duration connection lifetime
func (s *Session) Duration() time.Duration {
	return time.Since(s.connectedAt)
}

// Send queues one text frame without blocking. A full queue means the peer
// cannot keep up; the session is closed and ErrQueueFull returned.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateOpen {
		return ErrClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		s.log.Warn("send queue full, closing slow consumer", zap.Int("queued", len(s.send)))
		s.closeLocked()
		return ErrQueueFull
	}
}

// Ping writes a ping control frame. Control frames may be written
// concurrently with the write pump.
func (s *Session) Ping() error {
	if !s.IsOpen() {
		return ErrClosed
	}
	return s.sock.WriteControl(websocket.PingMessage, nil, s.deadline())
}

// Close stops accepting frames. Already queued frames are still written
// before the close frame. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	return nil
}

func (s *Session) closeLocked() {
	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		close(s.send)
	}
}

// WritePump writes queued frames until the queue is closed or a write
// fails, then starts the close handshake: a close frame goes out and the
// read side gets closeGrace to see the peer's reply.
func (s *Session) WritePump() {
	defer close(s.done)

	for data := range s.send {
		if err := s.sock.SetWriteDeadline(s.deadline()); err != nil {
			s.log.Debug("set write deadline failed", zap.Error(err))
		}
		if err := s.sock.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug("write failed", zap.Error(err))
			s.Close()
			break
		}
	}

	_ = s.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), s.deadline())
	if err := s.sock.SetReadDeadline(time.Now().Add(closeGrace)); err != nil {
		s.log.Debug("set read deadline failed", zap.Error(err))
	}
	s.state.Store(int32(StateClosed))
}

// Wait blocks until WritePump has returned.
func (s *Session) Wait() {
	<-s.done
}

func (s *Session) deadline() time.Time {
	if s.writeWait <= 0 {
		return time.Now().Add(5 * time.Second)
	}
	return time.Now().Add(s.writeWait)
}
