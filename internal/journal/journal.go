// Package journal appends every status transition to date-organized JSONL
// files so a session's history can be inspected after the fact.
package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// FileName is the journal file inside each day's directory.
	FileName = "transitions.jsonl"

	closeTimeout = 5 * time.Second
)

// Record is one line of the journal.
type Record struct {
	Time   time.Time      `json:"time"`
	TabID  settings.TabID `json:"tab_id"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// Journal is a bus.Sender that records status-update messages. Writes happen
// on a background goroutine; Send drops the record when the buffer is full.
type Journal struct {
	dir       string
	maxSizeMB int
	now       func() time.Time

	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

func New(dir string, bufferSize, maxSizeMB int) *Journal {
	return newJournal(dir, bufferSize, maxSizeMB, time.Now)
}

func newJournal(dir string, bufferSize, maxSizeMB int, now func() time.Time) *Journal {
	if bufferSize < 1 {
		bufferSize = 1
	}
	j := &Journal{
		dir:       dir,
		maxSizeMB: maxSizeMB,
		now:       now,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

func (j *Journal) Send(_ context.Context, msg protocol.Message) error {
	if msg.Type != protocol.TypeStatusUpdate {
		return nil
	}
	rec := Record{Time: j.now().UTC(), TabID: msg.TabID, Status: msg.Status, Error: msg.Error}
	select {
	case <-j.done:
		return bus.ErrUndeliverable
	default:
	}
	select {
	case j.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal: buffer full, dropping record", "tab_id", msg.TabID)
		return bus.ErrUndeliverable
	}
}

// Close flushes pending records and closes the current file.
func (j *Journal) Close() error {
	j.once.Do(func() { close(j.done) })
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		err := j.logger.Close()
		j.logger = nil
		return err
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case rec := <-j.writeCh:
			j.write(rec)
		case <-j.done:
			j.drain()
			return
		}
	}
}

func (j *Journal) drain() {
	timeout := time.After(closeTimeout)
	for {
		select {
		case rec := <-j.writeCh:
			j.write(rec)
		case <-timeout:
			slog.Warn("journal: close timeout, some records may be lost")
			return
		default:
			return
		}
	}
}

func (j *Journal) write(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal: marshal record", "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := rec.Time.Format("2006-01-02")
	if j.logger == nil || date != j.currentDate {
		if err := j.rotate(date); err != nil {
			slog.Error("journal: open file", "date", date, "error", err)
			return
		}
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal: write record", "error", err)
	}
}

func (j *Journal) rotate(date string) error {
	if j.logger != nil {
		_ = j.logger.Close()
		j.logger = nil
	}
	dir := filepath.Join(j.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	j.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    j.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	j.currentDate = date
	slog.Debug("journal: opened file", "dir", dir)
	return nil
}

// Path returns the journal file for the day of t.
func Path(dir string, t time.Time) string {
	return filepath.Join(dir, t.UTC().Format("2006-01-02"), FileName)
}
