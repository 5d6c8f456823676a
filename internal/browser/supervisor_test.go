//go:build unix

package browser

import (
	"context"
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/browserenv/internal/process"
	"github.com/giantswarm/browserenv/internal/testutil"
)

// freePort returns a loopback port with nothing listening on it.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func newFakeSupervisor(t *testing.T, mode string) (*Supervisor, string) {
	t.Helper()
	args, env, record := testutil.FakeBrowserRecorded(t, mode)
	s, err := New(Config{
		ProfileID:    "p1",
		Args:         append(args, "--user-data-dir=/tmp/p1"),
		Env:          env,
		Port:         freePort(t),
		PollInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(time.Second) })
	return s, record
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg     Config
		wantErr string
	}{
		"missing profile": {
			cfg:     Config{Args: []string{"chrome"}, Port: 9300},
			wantErr: "profile id",
		},
		"missing binary": {
			cfg:     Config{ProfileID: "p", Port: 9300},
			wantErr: "browser binary",
		},
		"empty binary": {
			cfg:     Config{ProfileID: "p", Args: []string{""}, Port: 9300},
			wantErr: "browser binary",
		},
		"bad port": {
			cfg:     Config{ProfileID: "p", Args: []string{"chrome"}, Port: 70000},
			wantErr: "port",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("New() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLaunchArgs(t *testing.T) {
	t.Parallel()

	in := []string{"/usr/bin/chrome", "--user-data-dir=/p"}
	got := LaunchArgs(in, 9300)
	want := []string{
		"/usr/bin/chrome", "--user-data-dir=/p",
		"--remote-debugging-port=9300", "--remote-allow-origins=*", "--no-sandbox",
	}
	if !slices.Equal(got, want) {
		t.Errorf("LaunchArgs() = %v, want %v", got, want)
	}
	if len(in) != 2 {
		t.Errorf("input slice modified: %v", in)
	}
}

func TestLaunchEnv_OverlaysHost(t *testing.T) {
	t.Setenv("BROWSERENV_ENV_PROBE", "host")

	env := launchEnv(map[string]string{"BROWSERENV_ENV_PROBE": "caller", "TZ": "UTC"})

	// The caller's value must come after the host's so exec keeps it.
	last := ""
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "BROWSERENV_ENV_PROBE="); ok {
			last = v
		}
	}
	if last != "caller" {
		t.Errorf("effective BROWSERENV_ENV_PROBE = %q, want %q", last, "caller")
	}
	if !slices.Contains(env, "TZ=UTC") {
		t.Error("caller variable TZ missing")
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	t.Parallel()

	s, record := newFakeSupervisor(t, testutil.ModeServe)

	info, err := s.Start(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info.ProfileID != "p1" {
		t.Errorf("ProfileID = %q, want %q", info.ProfileID, "p1")
	}
	if info.DebugPort != s.Port() {
		t.Errorf("DebugPort = %d, want %d", info.DebugPort, s.Port())
	}
	if want := "http://127.0.0.1:" + strconv.Itoa(s.Port()); info.CDPURL != want {
		t.Errorf("CDPURL = %q, want %q", info.CDPURL, want)
	}
	if !strings.HasPrefix(info.WSEndpoint, "ws://127.0.0.1:") {
		t.Errorf("WSEndpoint = %q, want ws:// URL", info.WSEndpoint)
	}
	if !s.IsRunning() {
		t.Fatal("expected supervisor to be running")
	}
	got, ok := s.Info()
	if !ok || got != info {
		t.Errorf("Info() = %+v, %v; want %+v, true", got, ok, info)
	}

	rec := testutil.ReadRecord(t, record)
	if rec.PID != info.PID {
		t.Errorf("recorded PID %d, descriptor PID %d", rec.PID, info.PID)
	}
	wantTail := []string{
		"--user-data-dir=/tmp/p1",
		"--remote-debugging-port=" + strconv.Itoa(s.Port()),
		"--remote-allow-origins=*",
		"--no-sandbox",
	}
	if !slices.Equal(rec.Args, wantTail) {
		t.Errorf("browser argv = %v, want %v", rec.Args, wantTail)
	}

	if err := s.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected supervisor to be stopped")
	}
	if _, ok := s.Info(); ok {
		t.Error("Info should report false after Stop")
	}
	if !testutil.WaitGone(info.PID, 5*time.Second) {
		t.Errorf("process %d still alive after Stop", info.PID)
	}
}

func TestSupervisor_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _ := newFakeSupervisor(t, testutil.ModeServe)

	first, err := s.Start(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := s.Start(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first != second {
		t.Errorf("second Start returned %+v, want %+v", second, first)
	}
}

func TestSupervisor_MissingWebSocketURL(t *testing.T) {
	t.Parallel()

	s, _ := newFakeSupervisor(t, testutil.ModeServeNoWS)

	info, err := s.Start(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info.WSEndpoint != "" {
		t.Errorf("WSEndpoint = %q, want empty", info.WSEndpoint)
	}
}

func TestSupervisor_ImmediateExit(t *testing.T) {
	t.Parallel()

	s, _ := newFakeSupervisor(t, testutil.ModeExitPrefix+"21")

	timeout := 10 * time.Second
	start := time.Now()
	_, err := s.Start(context.Background(), timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrBrowser) {
		t.Fatalf("expected ErrBrowser, got %v", err)
	}
	if errors.Is(err, ErrBrowserTimeout) {
		t.Errorf("exit must not match ErrBrowserTimeout: %v", err)
	}
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *process.ExitError in chain, got %v", err)
	}
	if exitErr.Code != 21 {
		t.Errorf("exit code = %d, want 21", exitErr.Code)
	}
	if !strings.Contains(err.Error(), "exited with code 21") {
		t.Errorf("error message %q should carry the exit code", err)
	}
	if elapsed > timeout/2 {
		t.Errorf("Start took %v, expected well under %v", elapsed, timeout)
	}
	if s.IsRunning() {
		t.Error("supervisor should not be running after a failed start")
	}
}

func TestSupervisor_NeverReady(t *testing.T) {
	t.Parallel()

	s, record := newFakeSupervisor(t, testutil.ModeHang)

	timeout := 500 * time.Millisecond
	start := time.Now()
	_, err := s.Start(context.Background(), timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrBrowserTimeout) {
		t.Fatalf("expected ErrBrowserTimeout, got %v", err)
	}
	if errors.Is(err, ErrBrowser) {
		t.Errorf("timeout must not match ErrBrowser: %v", err)
	}
	if !strings.Contains(err.Error(), "port "+strconv.Itoa(s.Port())) {
		t.Errorf("error %q should name the port", err)
	}
	if elapsed < timeout {
		t.Errorf("Start returned after %v, before the %v timeout", elapsed, timeout)
	}

	rec := testutil.ReadRecord(t, record)
	if !testutil.WaitGone(rec.PID, 5*time.Second) {
		t.Errorf("process %d survived a failed start", rec.PID)
	}
}

func TestSupervisor_SpawnFailure(t *testing.T) {
	t.Parallel()

	s, err := New(Config{
		ProfileID: "p1",
		Args:      []string{"/nonexistent/browserenv-no-such-browser"},
		Port:      freePort(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Start(context.Background(), time.Second)
	if !errors.Is(err, ErrBrowser) {
		t.Fatalf("expected ErrBrowser, got %v", err)
	}
}

func TestSupervisor_StopEscalatesToKill(t *testing.T) {
	t.Parallel()

	s, _ := newFakeSupervisor(t, testutil.ModeServeIgnoreTerm)

	info, err := s.Start(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(200 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !testutil.WaitGone(info.PID, 5*time.Second) {
		t.Errorf("process %d survived Stop", info.PID)
	}
}

func TestSupervisor_StopWhenNotStarted(t *testing.T) {
	t.Parallel()

	s, _ := newFakeSupervisor(t, testutil.ModeServe)
	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("Stop on unstarted supervisor: %v", err)
	}
}

func TestSupervisor_ExitAfterStartIsNotRunning(t *testing.T) {
	t.Parallel()

	s, _ := newFakeSupervisor(t, testutil.ModeServe)
	info, err := s.Start(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := killPID(info.PID); err != nil {
		t.Fatalf("kill: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning should report false after the process died")
	}
	if _, ok := s.Info(); ok {
		t.Error("Info should report false for a dead process")
	}
	// Stop on an exited process clears state without error.
	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("Stop after exit: %v", err)
	}
}
