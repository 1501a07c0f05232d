package hub

import (
	"context"

	"go.uber.org/zap"
)

// Run drives the flush, heartbeat and idle sweep timers until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	flush := h.clock.Ticker(h.opts.FlushInterval)
	defer flush.Stop()
	heartbeat := h.clock.Ticker(h.opts.HeartbeatInterval)
	defer heartbeat.Stop()
	sweep := h.clock.Ticker(h.opts.IdleSweepInterval)
	defer sweep.Stop()

	h.log.Info("hub started",
		zap.Duration("flush", h.opts.FlushInterval),
		zap.Duration("heartbeat", h.opts.HeartbeatInterval),
		zap.Duration("idle_timeout", h.opts.IdleTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			h.Flush()
			h.log.Info("hub stopped")
			return nil
		case <-flush.C:
			h.Flush()
		case <-heartbeat.C:
			h.Heartbeat()
		case <-sweep.C:
			h.ReapIdle()
		}
	}
}

// Heartbeat pings every open connection. Connections found closed, or whose
// ping fails, are removed through the departure path.
func (h *Hub) Heartbeat() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.registry.conns))
	for _, m := range h.registry.conns {
		conns = append(conns, m.conn)
	}
	h.mu.Unlock()

	var dead []Conn
	for _, conn := range conns {
		if !conn.IsOpen() {
			dead = append(dead, conn)
			continue
		}
		if err := conn.Ping(); err != nil {
			h.log.Debug("ping failed", zap.String("conn", conn.ID()), zap.Error(err))
			dead = append(dead, conn)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	for _, conn := range dead {
		if m := h.registry.byConn(conn.ID()); m != nil {
			h.removeMember(m)
		}
	}
	h.mu.Unlock()

	for _, conn := range dead {
		_ = conn.Close()
	}
	h.log.Info("heartbeat removed dead connections", zap.Int("count", len(dead)))
}

// ReapIdle evicts connections whose last activity is older than IdleTimeout.
func (h *Hub) ReapIdle() {
	now := h.clock.Now()

	h.mu.Lock()
	var idle []Conn
	for _, m := range h.registry.conns {
		if now.Sub(m.lastActivity) > h.opts.IdleTimeout {
			idle = append(idle, m.conn)
			h.removeMember(m)
		}
	}
	h.mu.Unlock()

	for _, conn := range idle {
		h.log.Info("evicting idle connection", zap.String("conn", conn.ID()))
		_ = conn.Close()
	}
}
