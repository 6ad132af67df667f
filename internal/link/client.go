package link

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

// DefaultRetryInterval is the pause between connection attempts.
const DefaultRetryInterval = time.Second

// Client is the engine side of the link. It keeps reconnecting to the
// coordinator and delivers every received command to an inbox.
type Client struct {
	url   string
	retry time.Duration

	mu   sync.Mutex
	conn net.Conn
	wmu  sync.Mutex
}

func NewClient(url string, retry time.Duration) *Client {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &Client{url: url, retry: retry}
}

// Run connects and reads until ctx ends, reconnecting after every failure.
func (c *Client) Run(ctx context.Context, inbox bus.Sender) {
	for {
		if err := c.session(ctx, inbox); err != nil && ctx.Err() == nil {
			slog.Warn("link: connection to coordinator lost", "url", c.url, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retry):
		}
	}
}

func (c *Client) session(ctx context.Context, inbox bus.Sender) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	slog.Info("link: connected to coordinator", "url", c.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("link: bad frame from coordinator", "error", err)
			continue
		}
		if err := inbox.Send(ctx, msg); err != nil {
			slog.Warn("link: command dropped", "type", msg.Type, "tab_id", msg.TabID, "error", err)
		}
	}
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes msg to the coordinator. Without a connection the message is
// dropped with bus.ErrUndeliverable.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return bus.ErrUndeliverable
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wsutil.WriteClientText(conn, data); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrUndeliverable, err)
	}
	return nil
}
