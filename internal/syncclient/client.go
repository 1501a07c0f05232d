package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"score-annotator/internal/protocol"
)

const (
	DefaultPingInterval        = 30 * time.Second
	DefaultCursorSweepInterval = time.Second
	DefaultCursorMaxAge        = 5 * time.Second
)

var ErrNotConnected = errors.New("not connected")

// Options configure a Client.
type Options struct {
	URL     string
	Profile protocol.Participant
	RoomID  string

	Clock               clock.Clock
	Dialer              *websocket.Dialer
	PingInterval        time.Duration
	CursorSweepInterval time.Duration
	CursorMaxAge        time.Duration
	WriteTimeout        time.Duration
	Logger              *zap.Logger

	// OnChange receives a snapshot after every state change.
	OnChange func(Snapshot)
	// OnMessage receives every decoded server message before it is reduced.
	OnMessage func(protocol.Message)
	// OnStatus receives every status transition.
	OnStatus func(Status)
}

// Client owns one socket. There is no reconnect: once the status is
// disconnected or error, build a new Client.
type Client struct {
	opts  Options
	clock clock.Clock
	log   *zap.Logger

	mu      sync.Mutex
	status  Status
	state   *State
	closing bool

	conn    *websocket.Conn
	writeMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.CursorSweepInterval <= 0 {
		opts.CursorSweepInterval = DefaultCursorSweepInterval
	}
	if opts.CursorMaxAge <= 0 {
		opts.CursorMaxAge = DefaultCursorMaxAge
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		opts:   opts,
		clock:  opts.Clock,
		log:    opts.Logger.Named("syncclient"),
		status: StatusConnecting,
		state:  NewState(),
		done:   make(chan struct{}),
	}
}

// Connect dials the server, sends join and starts the ping and cursor sweep
// timers. A failed dial moves the client to StatusError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusConnecting {
		c.mu.Unlock()
		return fmt.Errorf("connect in status %s", c.status)
	}
	c.mu.Unlock()

	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	if err := c.write(protocol.NewJoin(c.opts.Profile, c.opts.RoomID)); err != nil {
		c.fail(err)
		_ = conn.Close()
		return fmt.Errorf("send join: %w", err)
	}

	// tickers exist before Connect returns so a mock clock can drive them
	ping := c.clock.Ticker(c.opts.PingInterval)
	sweep := c.clock.Ticker(c.opts.CursorSweepInterval)

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop(ping)
	go c.sweepLoop(sweep)
	return nil
}

// Close sends a close frame and waits for the background goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	alreadyClosing := c.closing
	c.closing = true
	c.mu.Unlock()

	if alreadyClosing || conn == nil {
		return nil
	}

	c.stop()
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), c.clock.Now().Add(c.opts.WriteTimeout))
	c.writeMu.Unlock()
	err := conn.Close()

	c.wg.Wait()
	c.setStatus(StatusDisconnected)
	return err
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Snapshot()
}

// Senders report false without queuing when the socket is not connected.

func (c *Client) SendStrokeStart(strokeID, tool, color string, thickness float64) bool {
	return c.send(protocol.StrokeStart{
		Type:      protocol.TypeStrokeStart,
		StrokeID:  strokeID,
		Tool:      tool,
		Color:     color,
		Thickness: thickness,
	})
}

func (c *Client) SendStrokePoint(strokeID string, p protocol.Point) bool {
	return c.send(protocol.StrokePoint{
		Type:     protocol.TypeStrokePoint,
		StrokeID: strokeID,
		X:        p.X,
		Y:        p.Y,
		Pressure: p.Pressure,
	})
}

func (c *Client) SendStrokeEnd(strokeID, svgPath string) bool {
	return c.send(protocol.StrokeEnd{Type: protocol.TypeStrokeEnd, StrokeID: strokeID, SVGPath: svgPath})
}

func (c *Client) SendStrokeDelete(strokeID string) bool {
	return c.send(protocol.StrokeDelete{Type: protocol.TypeStrokeDelete, StrokeID: strokeID})
}

func (c *Client) SendCursorMove(x, y float64) bool {
	return c.send(protocol.CursorMove{Type: protocol.TypeCursorMove, X: x, Y: y})
}

func (c *Client) SendLeave() bool {
	return c.send(protocol.Leave{Type: protocol.TypeLeave})
}

func (c *Client) send(msg protocol.Message) bool {
	if c.Status() != StatusConnected {
		return false
	}
	if err := c.write(msg); err != nil {
		c.log.Debug("send failed", zap.Stringer("type", msg.MessageType()), zap.Error(err))
		return false
	}
	return true
}

func (c *Client) write(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}

		msg, err := protocol.DecodeServer(data)
		if err != nil {
			c.log.Warn("undecodable server message", zap.Error(err))
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(msg)
		}

		c.mu.Lock()
		changed := c.state.Apply(msg, c.clock.Now())
		var snap Snapshot
		if changed {
			snap = c.state.Snapshot()
		}
		c.mu.Unlock()

		if changed && c.opts.OnChange != nil {
			c.opts.OnChange(snap)
		}
	}
}

// stop ends the ping and sweep loops.
func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Client) readFailed(err error) {
	c.stop()

	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()

	switch {
	case closing:
		// Close sets the status once the goroutines are gone
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Info("server closed connection", zap.Error(err))
		c.setStatus(StatusDisconnected)
	default:
		c.fail(err)
	}
}

func (c *Client) fail(err error) {
	c.log.Warn("connection failed", zap.Error(err))
	c.setStatus(StatusError)
}

func (c *Client) pingLoop(ticker *clock.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.send(protocol.Ping{Type: protocol.TypePing})
		}
	}
}

// sweepLoop prunes stale cursors without waiting for server traffic.
func (c *Client) sweepLoop(ticker *clock.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			pruned := c.state.PruneCursors(c.clock.Now(), c.opts.CursorMaxAge)
			var snap Snapshot
			if pruned {
				snap = c.state.Snapshot()
			}
			c.mu.Unlock()

			if pruned && c.opts.OnChange != nil {
				c.opts.OnChange(snap)
			}
		}
	}
}

// setStatus moves forward only: terminal states are never left.
func (c *Client) setStatus(next Status) {
	c.mu.Lock()
	prev := c.status
	if prev == next || prev == StatusDisconnected || prev == StatusError {
		c.mu.Unlock()
		return
	}
	c.status = next
	c.mu.Unlock()

	c.log.Debug("status", zap.String("from", string(prev)), zap.String("to", string(next)))
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(next)
	}
}
