// Package link carries protocol messages between a coordinator and an engine
// running in another process, over a single WebSocket.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

// ErrNoEngine is returned by Ensure when no engine connected in time.
var ErrNoEngine = errors.New("link: no engine connected")

const writeTimeout = 5 * time.Second

// Server accepts the engine's connection and forwards its notifications to
// upstream. It is the coordinator's Host when the engine runs remotely.
type Server struct {
	upstream bus.Sender
	wait     time.Duration

	mu    sync.Mutex
	conn  net.Conn
	ready chan struct{}

	wmu sync.Mutex
}

// NewServer returns a Server. Ensure waits up to wait for an engine to connect.
func NewServer(upstream bus.Sender, wait time.Duration) *Server {
	return &Server{upstream: upstream, wait: wait, ready: make(chan struct{})}
}

// ServeHTTP upgrades the request and serves the engine until it disconnects.
// A new engine connection replaces the previous one.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Warn("link: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// ready is closed exactly while a connection is attached.
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	if old == nil {
		close(s.ready)
	}
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	slog.Info("link: engine connected", "remote", r.RemoteAddr)

	s.readLoop(conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.ready = make(chan struct{})
	}
	s.mu.Unlock()
	conn.Close()
	slog.Info("link: engine disconnected", "remote", r.RemoteAddr)
}

func (s *Server) readLoop(conn net.Conn) {
	ctx := context.Background()
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			slog.Debug("link: read loop exit", "error", err)
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("link: bad frame from engine", "error", err)
			continue
		}
		if err := s.upstream.Send(ctx, msg); err != nil {
			slog.Warn("link: notification dropped", "type", msg.Type, "tab_id", msg.TabID, "error", err)
		}
	}
}

// Connected reports whether an engine is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Ensure waits for an engine connection and returns the Server as its sender.
func (s *Server) Ensure(ctx context.Context) (bus.Sender, error) {
	s.mu.Lock()
	ready := s.ready
	connected := s.conn != nil
	s.mu.Unlock()
	if connected {
		return s, nil
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()
	select {
	case <-ready:
		return s, nil
	case <-timer.C:
		return nil, ErrNoEngine
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes msg to the connected engine.
func (s *Server) Send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return bus.ErrUndeliverable
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wsutil.WriteServerText(conn, data); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrUndeliverable, err)
	}
	return nil
}
