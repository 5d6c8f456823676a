package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"

	"github.com/giantswarm/browserenv/internal/core"
	"github.com/giantswarm/browserenv/internal/devtools"
	"github.com/giantswarm/browserenv/internal/fileutil"
)

// hookTimeout bounds the database work done inside a pool hook.
const hookTimeout = 5 * time.Second

const schema = `
	CREATE TABLE IF NOT EXISTS instances (
		profile_id  TEXT PRIMARY KEY,
		pid         INTEGER NOT NULL,
		debug_port  INTEGER NOT NULL,
		ws_endpoint TEXT NOT NULL,
		cdp_url     TEXT NOT NULL,
		owner_pid   INTEGER NOT NULL,
		started_at  INTEGER NOT NULL
	)
`

// Entry is one recorded instance.
type Entry struct {
	Info      core.ConnectionInfo `json:"info" yaml:"info"`
	OwnerPID  int                 `json:"owner_pid" yaml:"owner_pid"`
	StartedAt time.Time           `json:"started_at" yaml:"started_at"`
}

var _ core.Hooks = (*Ledger)(nil)

// Ledger is a handle on the instance database. It is safe for concurrent use.
type Ledger struct {
	db       *sql.DB
	path     string
	ownerPID int
	log      *slog.Logger

	// alive, identify and kill are replaced in tests.
	alive    func(pid int) bool
	identify func(ctx context.Context, e Entry) bool
	kill     func(pid int) error
}

// Open opens or creates the ledger database at path, creating parent
// directories as needed. If logger is nil, slog.Default() is used.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}

	// Several orchestrators may share the file; WAL plus a busy timeout lets
	// them write without failing on each other's locks.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	return &Ledger{
		db:       db,
		path:     path,
		ownerPID: os.Getpid(),
		log:      logger,
		alive:    processAlive,
		identify: sameBrowser,
		kill:     killGroup,
	}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores info as owned by the current process, replacing any row for
// the same profile id.
func (l *Ledger) Record(ctx context.Context, info core.ConnectionInfo) error {
	const stmt = `
		INSERT OR REPLACE INTO instances
			(profile_id, pid, debug_port, ws_endpoint, cdp_url, owner_pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, stmt,
		info.ProfileID, info.PID, info.DebugPort, info.WSEndpoint, info.CDPURL,
		l.ownerPID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record instance %s: %w", info.ProfileID, err)
	}
	return nil
}

// Remove deletes the row for id if the current process owns it.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM instances WHERE profile_id = ? AND owner_pid = ?`, id, l.ownerPID)
	if err != nil {
		return fmt.Errorf("remove instance %s: %w", id, err)
	}
	return nil
}

// List returns every recorded instance ordered by profile id.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	const query = `
		SELECT profile_id, pid, debug_port, ws_endpoint, cdp_url, owner_pid, started_at
		FROM instances ORDER BY profile_id
	`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			started int64
		)
		if err := rows.Scan(&e.Info.ProfileID, &e.Info.PID, &e.Info.DebugPort,
			&e.Info.WSEndpoint, &e.Info.CDPURL, &e.OwnerPID, &started); err != nil {
			return nil, fmt.Errorf("scan instance row: %w", err)
		}
		e.StartedAt = time.Unix(started, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instance rows: %w", err)
	}
	return entries, nil
}

// Reap kills the browsers recorded by orchestrators that no longer run and
// deletes their rows. Rows whose browser is already gone are deleted too.
// It returns the entries it removed.
//
// A pid is only killed while its debugging endpoint still advertises the
// recorded webSocketDebuggerUrl. Otherwise the pid was reused by another
// process and the row is dropped without signalling anything.
func (l *Ledger) Reap(ctx context.Context) ([]Entry, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		reaped []Entry
		errs   []error
	)
	for _, e := range entries {
		ownerGone := e.OwnerPID != l.ownerPID && !l.alive(e.OwnerPID)
		browserGone := !l.alive(e.Info.PID)
		if !ownerGone && !browserGone {
			continue
		}

		switch {
		case browserGone:
		case !l.identify(ctx, e):
			l.log.Warn("recorded pid no longer belongs to the browser; dropping row",
				"id", e.Info.ProfileID, "pid", e.Info.PID, "cdp_url", e.Info.CDPURL)
		default:
			if err := l.kill(e.Info.PID); err != nil {
				errs = append(errs, fmt.Errorf("kill orphan %s (pid %d): %w", e.Info.ProfileID, e.Info.PID, err))
				continue
			}
			l.log.Info("killed orphaned browser", "id", e.Info.ProfileID, "pid", e.Info.PID, "owner_pid", e.OwnerPID)
		}

		if _, err := l.db.ExecContext(ctx,
			`DELETE FROM instances WHERE profile_id = ? AND owner_pid = ?`,
			e.Info.ProfileID, e.OwnerPID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", e.Info.ProfileID, err))
			continue
		}
		reaped = append(reaped, e)
	}
	return reaped, errors.Join(errs...)
}

// sameBrowser reports whether the endpoint recorded for e still answers
// with the recorded webSocketDebuggerUrl, which embeds a per-launch id.
func sameBrowser(ctx context.Context, e Entry) bool {
	if e.Info.CDPURL == "" || e.Info.WSEndpoint == "" {
		return false
	}
	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   devtools.RequestTimeout,
	}
	v, err := devtools.FetchVersion(ctx, client, e.Info.CDPURL)
	if err != nil {
		return false
	}
	return v.WebSocketDebuggerURL == e.Info.WSEndpoint
}

func (l *Ledger) OnStarted(info core.ConnectionInfo, _ time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := l.Record(ctx, info); err != nil {
		l.log.Warn("ledger record failed", "id", info.ProfileID, "error", err)
	}
}

func (l *Ledger) OnStopped(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := l.Remove(ctx, id); err != nil {
		l.log.Warn("ledger remove failed", "id", id, "error", err)
	}
}

func (l *Ledger) OnStartFailed(string, error) {}

func (l *Ledger) OnDisplayStarted(string) {}
