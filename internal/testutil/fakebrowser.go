//go:build unix

package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

const (
	// EnvHelper marks a re-executed test binary as the fake browser.
	EnvHelper = "BROWSERENV_TEST_HELPER"

	// EnvMode selects the fake browser behavior.
	EnvMode = "BROWSERENV_TEST_MODE"

	// EnvRecord names a file the fake browser writes its argv and DISPLAY to.
	EnvRecord = "BROWSERENV_TEST_RECORD"
)

// Fake browser behaviors.
const (
	// ModeServe answers /json/version with a webSocketDebuggerUrl.
	ModeServe = "serve"

	// ModeServeNoWS answers /json/version without a webSocketDebuggerUrl.
	ModeServeNoWS = "serve-nows"

	// ModeServeIgnoreTerm serves like ModeServe but ignores SIGTERM.
	ModeServeIgnoreTerm = "serve-ignore-term"

	// ModeHang never opens the debugging port.
	ModeHang = "hang"

	// ModeExitPrefix followed by a code exits immediately with that code,
	// e.g. "exit:21".
	ModeExitPrefix = "exit:"

	// ModeServeAfterPrefix followed by a duration serves like ModeServe
	// once the delay has passed, e.g. "serve-after:500ms".
	ModeServeAfterPrefix = "serve-after:"
)

// Record is what the fake browser saw at startup.
type Record struct {
	Args    []string `json:"args"`
	Display string   `json:"display"`
	PID     int      `json:"pid"`
}

// FakeBrowser returns an argv whose element 0 is the test binary and the
// environment that makes it behave per mode. Pass both through a LaunchSpec
// or supervisor config.
func FakeBrowser(tb testing.TB, mode string) (args []string, env map[string]string) {
	tb.Helper()
	exe, err := os.Executable()
	if err != nil {
		tb.Fatalf("locate test binary: %v", err)
	}
	return []string{exe}, map[string]string{
		EnvHelper: "browser",
		EnvMode:   mode,
	}
}

// FakeBrowserRecorded is FakeBrowser plus a record file the helper fills in
// once started. Read it with ReadRecord.
func FakeBrowserRecorded(tb testing.TB, mode string) (args []string, env map[string]string, recordPath string) {
	tb.Helper()
	args, env = FakeBrowser(tb, mode)
	recordPath = filepath.Join(tb.TempDir(), "record.json")
	env[EnvRecord] = recordPath
	return args, env, recordPath
}

// ReadRecord loads the record written by a fake browser.
func ReadRecord(tb testing.TB, path string) Record {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read fake browser record: %v", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		tb.Fatalf("decode fake browser record: %v", err)
	}
	return r
}

// ProcessAlive reports whether pid still exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// WaitGone polls until pid no longer exists or timeout elapses.
func WaitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return !ProcessAlive(pid)
}

// RunHelperIfRequested runs the fake browser and exits when the helper
// environment variable is set. It returns immediately otherwise.
func RunHelperIfRequested() {
	if os.Getenv(EnvHelper) != "browser" {
		return
	}
	os.Exit(runFakeBrowser(os.Args[1:], os.Getenv(EnvMode)))
}

func runFakeBrowser(args []string, mode string) int {
	if path := os.Getenv(EnvRecord); path != "" {
		data, _ := json.Marshal(Record{Args: args, Display: os.Getenv("DISPLAY"), PID: os.Getpid()})
		if err := os.WriteFile(path, data, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "fake browser: write record: %v\n", err)
			return 1
		}
	}

	if code, ok := strings.CutPrefix(mode, ModeExitPrefix); ok {
		n, err := strconv.Atoi(code)
		if err != nil {
			return 2
		}
		return n
	}

	if delay, ok := strings.CutPrefix(mode, ModeServeAfterPrefix); ok {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return 2
		}
		time.Sleep(d)
		mode = ModeServe
	}

	if mode == ModeHang {
		for {
			time.Sleep(time.Hour)
		}
	}

	port := debugPort(args)
	if port == 0 {
		fmt.Fprintln(os.Stderr, "fake browser: no --remote-debugging-port")
		return 2
	}
	if mode == ModeServeIgnoreTerm {
		signal.Ignore(syscall.SIGTERM)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]string{
			"Browser":          "FakeChrome/1.0",
			"Protocol-Version": "1.3",
		}
		if mode != ModeServeNoWS {
			body["webSocketDebuggerUrl"] = fmt.Sprintf("ws://127.0.0.1:%d/devtools/browser/fake-%d", port, os.Getpid())
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake browser: listen: %v\n", err)
		return 3
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	_ = srv.Serve(l)
	return 0
}

func debugPort(args []string) int {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "--remote-debugging-port="); ok {
			n, err := strconv.Atoi(v)
			if err == nil {
				return n
			}
		}
	}
	return 0
}
