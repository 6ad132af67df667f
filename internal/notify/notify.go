// Package notify pushes capture failures to an ntfy-style webhook.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

const (
	defaultQueue = 16
	postTimeout  = 5 * time.Second
)

// Notifier is a bus.Sender for the control-surface side. It forwards
// status-update messages that carry an error and ignores everything else.
// Posting happens on a background goroutine so Send never blocks.
type Notifier struct {
	endpoint string
	client   *http.Client

	queue chan string
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New starts a notifier posting to endpoint. A nil client uses
// http.DefaultClient.
func New(endpoint string, client *http.Client) *Notifier {
	n := &Notifier{
		endpoint: endpoint,
		client:   client,
		queue:    make(chan string, defaultQueue),
		done:     make(chan struct{}),
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

func (n *Notifier) Send(_ context.Context, msg protocol.Message) error {
	if msg.Type != protocol.TypeStatusUpdate || msg.Error == "" {
		return nil
	}
	text := fmt.Sprintf("tab %d: enhancement failed (%s): %s", msg.TabID, msg.Status, msg.Error)
	select {
	case <-n.done:
		return bus.ErrUndeliverable
	default:
	}
	select {
	case n.queue <- text:
		return nil
	default:
		slog.Warn("notify: queue full, dropping notification", "tab_id", msg.TabID)
		return bus.ErrUndeliverable
	}
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case text := <-n.queue:
			n.post(text)
		case <-n.done:
			for {
				select {
				case text := <-n.queue:
					n.post(text)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) post(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	if err := Post(ctx, n.client, n.endpoint, text); err != nil {
		slog.Warn("notify: post failed", "endpoint", n.endpoint, "error", err)
	}
}

// Close flushes queued notifications and stops the worker.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.done) })
	n.wg.Wait()
}

// Post sends message as a plain-text POST to endpoint.
func Post(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "tabvoice")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: post failed: status=%d", resp.StatusCode)
	}
	return nil
}
