// Package browser starts a Chromium with remote debugging enabled so the tab
// watcher has something to attach to.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

// ErrNoBrowser is returned when no Chromium binary can be found.
var ErrNoBrowser = errors.New("browser: no chromium-browser, chromium or google-chrome found")

const defaultReadyTimeout = 15 * time.Second

type Config struct {
	CDPAddress   string
	CDPPort      int
	ProfileDir   string
	StartURL     string
	Binary       string // empty means detect
	ReadyTimeout time.Duration
}

func (c Config) hostPort() string {
	return net.JoinHostPort(c.CDPAddress, strconv.Itoa(c.CDPPort))
}

// Launcher owns at most one browser process.
type Launcher struct {
	cfg      Config
	cmd      *exec.Cmd
	lookPath func(string) (string, error)
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StartURL == "" {
		cfg.StartURL = "about:blank"
	}
	return &Launcher{cfg: cfg, lookPath: exec.LookPath}
}

func (l *Launcher) detect() (string, error) {
	if l.cfg.Binary != "" {
		return l.lookPath(l.cfg.Binary)
	}
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if path, err := l.lookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		const macPath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", ErrNoBrowser
}

func listening(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (l *Launcher) args() []string {
	return []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--user-data-dir=" + l.cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--autoplay-policy=no-user-gesture-required",
		l.cfg.StartURL,
	}
}

// Launch starts the browser unless something already listens on the CDP
// port, then waits for the CDP endpoint to answer.
func (l *Launcher) Launch(ctx context.Context) error {
	if listening(l.cfg.hostPort()) {
		slog.Info("browser: CDP port in use, not launching", "addr", l.cfg.hostPort())
		return nil
	}

	path, err := l.detect()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("browser: create profile dir: %w", err)
	}

	l.cmd = exec.Command(path, l.args()...)
	l.cmd.Stdout = os.Stdout
	l.cmd.Stderr = os.Stderr
	if err := l.cmd.Start(); err != nil {
		l.cmd = nil
		return fmt.Errorf("browser: start %s: %w", path, err)
	}
	slog.Info("browser: started", "path", path, "pid", l.cmd.Process.Pid)

	if err := waitForCDP(ctx, "http://"+l.cfg.hostPort()+"/json/version", l.cfg.ReadyTimeout); err != nil {
		l.Stop()
		return err
	}
	slog.Info("browser: CDP ready", "addr", l.cfg.hostPort())
	return nil
}

// waitForCDP polls url until it answers 200 OK.
func waitForCDP(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("browser: CDP not ready within %s at %s", timeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Launched reports whether this launcher owns a running browser.
func (l *Launcher) Launched() bool {
	return l.cmd != nil
}

// Stop sends SIGTERM to a browser this launcher started and falls back to
// SIGKILL after five seconds. A browser that was already running is left alone.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil {
		return
	}
	cmd := l.cmd
	l.cmd = nil
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("browser: stopped", "pid", cmd.Process.Pid)
	case <-time.After(5 * time.Second):
		slog.Warn("browser: no exit after SIGTERM, killing", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-done
	}
}
