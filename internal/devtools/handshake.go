package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/giantswarm/browserenv/internal/process"
	"github.com/giantswarm/browserenv/internal/sentinel"
)

// ErrNotReady is returned when the endpoint did not answer within the
// handshake timeout. The error chain also carries the last transport error.
const ErrNotReady = sentinel.Error("devtools endpoint not ready")

// PollInterval is the pause between consecutive /json/version requests.
const PollInterval = 300 * time.Millisecond

// RequestTimeout bounds a single /json/version request.
const RequestTimeout = 2 * time.Second

// maxVersionBody caps how much of a /json/version response is read.
const maxVersionBody = 1 << 20

// Version is the document served at /json/version.
type Version struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// BaseURL returns the HTTP base URL of the debugging endpoint on port.
func BaseURL(port int) string {
	return "http://127.0.0.1:" + strconv.Itoa(port)
}

// Config configures WaitForEndpoint.
type Config struct {
	Port    int
	Timeout time.Duration

	// Interval overrides PollInterval when positive.
	Interval time.Duration

	// Exited aborts the handshake with process.ErrProcessExited once closed.
	Exited <-chan struct{}

	// Client overrides the HTTP client. Its own Timeout is still bounded by
	// RequestTimeout through the request context.
	Client *http.Client

	Logger *slog.Logger
}

// FetchVersion performs one GET /json/version request against baseURL.
// Any non-2xx status or undecodable body is an error.
func FetchVersion(ctx context.Context, client *http.Client, baseURL string) (Version, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/json/version", http.NoBody)
	if err != nil {
		return Version{}, fmt.Errorf("create version request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Version{}, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) // best-effort drain
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Version{}, fmt.Errorf("GET /json/version: unexpected status %d", resp.StatusCode)
	}
	var v Version
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxVersionBody)).Decode(&v); err != nil {
		return Version{}, fmt.Errorf("decode /json/version: %w", err)
	}
	return v, nil
}

// newClient builds the polling client. Keep-alives are disabled so failed
// attempts against a not yet listening port do not pile up idle connections.
func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   RequestTimeout,
	}
}

// WaitForEndpoint polls /json/version on cfg.Port until it answers and
// returns the advertised webSocketDebuggerUrl, which is empty when the
// browser omits it.
//
// The exit channel is checked before every request. If it is closed the
// error wraps process.ErrProcessExited. If cfg.Timeout elapses the error
// wraps ErrNotReady and the last transport error seen.
func WaitForEndpoint(ctx context.Context, cfg Config) (string, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = newClient()
		defer client.CloseIdleConnections()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = PollInterval
	}
	baseURL := BaseURL(cfg.Port)

	// lastErr and wsURL are only touched by the check, which the poll loop
	// never runs concurrently with itself.
	var (
		lastErr error
		wsURL   string
	)
	err := process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      interval,
		Timeout:       cfg.Timeout,
		Name:          "devtools",
		Port:          cfg.Port,
		Logger:        log,
		ProcessExited: cfg.Exited,
	}, func(checkCtx context.Context, attempt int) (bool, error) {
		v, err := FetchVersion(checkCtx, client, baseURL)
		if err != nil {
			// A request cut short by the loop's own deadline says nothing
			// about the browser; keep the previous error.
			if checkCtx.Err() == nil || lastErr == nil {
				lastErr = err
			}
			if log.Enabled(checkCtx, slog.LevelDebug) {
				log.Debug("devtools handshake attempt", "port", cfg.Port, "attempt", attempt, "error", err)
			}
			return false, nil
		}
		wsURL = v.WebSocketDebuggerURL
		return true, nil
	})
	if err == nil {
		return wsURL, nil
	}

	if errors.Is(err, process.ErrWaitTimeout) {
		last := lastErr
		if last == nil {
			last = errors.New("no attempt completed")
		}
		return "", fmt.Errorf("%w after %s on port %d: %w", ErrNotReady, cfg.Timeout, cfg.Port, last)
	}
	return "", err
}
