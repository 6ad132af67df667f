package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	return out
}

func TestJournal_RecordsStatusUpdates(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	j := newJournal(dir, 8, 1, func() time.Time { return at })
	ctx := context.Background()

	_ = j.Send(ctx, protocol.StatusUpdate(3, "starting", ""))
	_ = j.Send(ctx, protocol.StopProcessing(3))
	_ = j.Send(ctx, protocol.StatusUpdate(3, "inactive", "capture not permitted"))
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := readRecords(t, Path(dir, at))
	if len(got) != 2 {
		t.Fatalf("records = %+v; want 2 status updates", got)
	}
	if got[0].Status != "starting" || got[1].Error != "capture not permitted" {
		t.Fatalf("records = %+v; want starting then failed inactive", got)
	}
	if !got[0].Time.Equal(at) {
		t.Fatalf("Time = %v; want %v", got[0].Time, at)
	}
}

func TestJournal_RotatesByDay(t *testing.T) {
	dir := t.TempDir()
	day1 := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	now := day1
	j := newJournal(dir, 1, 1, func() time.Time { return now })
	ctx := context.Background()

	_ = j.Send(ctx, protocol.StatusUpdate(1, "active", ""))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(Path(dir, day1)); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	now = day2
	_ = j.Send(ctx, protocol.StatusUpdate(1, "inactive", ""))
	_ = j.Close()

	if n := len(readRecords(t, Path(dir, day1))); n != 1 {
		t.Fatalf("day one records = %d; want 1", n)
	}
	if n := len(readRecords(t, Path(dir, day2))); n != 1 {
		t.Fatalf("day two records = %d; want 1", n)
	}
}

func TestJournal_SendAfterClose(t *testing.T) {
	j := New(t.TempDir(), 1, 1)
	_ = j.Close()
	if err := j.Send(context.Background(), protocol.StatusUpdate(1, "active", "")); !errors.Is(err, bus.ErrUndeliverable) {
		t.Fatalf("Send() after Close = %v; want ErrUndeliverable", err)
	}
}
