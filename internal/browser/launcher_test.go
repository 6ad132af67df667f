package browser

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestLaunch_SkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port})
	l.lookPath = func(string) (string, error) {
		t.Fatal("lookPath called; want no launch")
		return "", nil
	}
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if l.Launched() {
		t.Fatal("Launched() = true; want false")
	}
}

func TestDetect_NoBrowser(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("falls back to the installed Chrome app")
	}
	l := NewLauncher(Config{})
	l.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if _, err := l.detect(); err == nil {
		t.Fatal("detect() error = nil; want error")
	}
}

func TestDetect_ExplicitBinary(t *testing.T) {
	l := NewLauncher(Config{Binary: "my-chrome"})
	var asked []string
	l.lookPath = func(name string) (string, error) {
		asked = append(asked, name)
		return "/opt/" + name, nil
	}
	got, err := l.detect()
	if err != nil || got != "/opt/my-chrome" {
		t.Fatalf("detect() = %q, %v; want /opt/my-chrome", got, err)
	}
	if len(asked) != 1 {
		t.Fatalf("lookPath calls = %v; want only the configured binary", asked)
	}
}

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9220, ProfileDir: "/tmp/p"})
	joined := strings.Join(l.args(), " ")
	for _, want := range []string{"--remote-debugging-port=" + strconv.Itoa(9220), "--user-data-dir=/tmp/p", "about:blank"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args() = %q; missing %q", joined, want)
		}
	}
}

func TestWaitForCDP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Browser":"Chrome"}`))
	}))
	defer srv.Close()

	if err := waitForCDP(context.Background(), srv.URL+"/json/version", 2*time.Second); err != nil {
		t.Fatalf("waitForCDP() error = %v", err)
	}
}

func TestWaitForCDP_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := waitForCDP(context.Background(), srv.URL, 600*time.Millisecond); err == nil {
		t.Fatal("waitForCDP() error = nil; want timeout")
	}
}
