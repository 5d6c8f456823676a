package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/browserenv/internal/core"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func info(id string, pid, port int) core.ConnectionInfo {
	return core.ConnectionInfo{
		ProfileID:  id,
		PID:        pid,
		DebugPort:  port,
		WSEndpoint: "ws://127.0.0.1/devtools/browser/" + id,
		CDPURL:     "http://127.0.0.1",
	}
}

func TestLedger_RecordListRemove(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, info("b", 200, 9201)))
	require.NoError(t, l.Record(ctx, info("a", 100, 9200)))

	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, info("a", 100, 9200), entries[0].Info)
	assert.Equal(t, "b", entries[1].Info.ProfileID)
	assert.Equal(t, l.ownerPID, entries[0].OwnerPID)
	assert.WithinDuration(t, time.Now(), entries[0].StartedAt, time.Minute)

	require.NoError(t, l.Remove(ctx, "a"))
	entries, err = l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Info.ProfileID)
}

func TestLedger_RecordReplaces(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, info("a", 100, 9200)))
	require.NoError(t, l.Record(ctx, info("a", 101, 9201)))

	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 101, entries[0].Info.PID)
}

func TestLedger_RemoveIgnoresForeignRows(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, info("a", 100, 9200)))
	_, err := l.db.ExecContext(ctx, `UPDATE instances SET owner_pid = 1 WHERE profile_id = 'a'`)
	require.NoError(t, err)

	require.NoError(t, l.Remove(ctx, "a"))
	entries, err := l.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a row owned by another orchestrator must survive Remove")
}

func TestLedger_Reap(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	const deadOwner = 4_000_001
	live := map[int]bool{
		l.ownerPID: true,
		100:        true, // ours, running
		200:        true, // orphan, running
		400:        true, // owned by a live foreign orchestrator
		500:        true,
	}
	var (
		mu     sync.Mutex
		killed []int
	)
	l.alive = func(pid int) bool { return live[pid] }
	l.identify = func(context.Context, Entry) bool { return true }
	l.kill = func(pid int) error {
		mu.Lock()
		defer mu.Unlock()
		killed = append(killed, pid)
		return nil
	}

	require.NoError(t, l.Record(ctx, info("ours", 100, 9200)))
	require.NoError(t, l.Record(ctx, info("orphan", 200, 9201)))
	require.NoError(t, l.Record(ctx, info("gone", 300, 9202)))
	require.NoError(t, l.Record(ctx, info("foreign", 400, 9203)))
	_, err := l.db.ExecContext(ctx,
		`UPDATE instances SET owner_pid = ? WHERE profile_id IN ('orphan', 'gone')`, deadOwner)
	require.NoError(t, err)
	_, err = l.db.ExecContext(ctx,
		`UPDATE instances SET owner_pid = 500 WHERE profile_id = 'foreign'`)
	require.NoError(t, err)

	reaped, err := l.Reap(ctx)
	require.NoError(t, err)

	var ids []string
	for _, e := range reaped {
		ids = append(ids, e.Info.ProfileID)
	}
	assert.ElementsMatch(t, []string{"orphan", "gone"}, ids)
	assert.Equal(t, []int{200}, killed, "only the running orphan is killed")

	entries, err := l.List(ctx)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Info.ProfileID)
	}
	assert.Equal(t, []string{"foreign", "ours"}, left)
}

func TestLedger_ReapKeepsRowWhenKillFails(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	l.alive = func(pid int) bool { return pid == 200 }
	l.identify = func(context.Context, Entry) bool { return true }
	l.kill = func(int) error { return errors.New("operation not permitted") }

	require.NoError(t, l.Record(ctx, info("orphan", 200, 9201)))
	_, err := l.db.ExecContext(ctx, `UPDATE instances SET owner_pid = 4000001`)
	require.NoError(t, err)

	reaped, err := l.Reap(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kill orphan orphan (pid 200)")
	assert.Empty(t, reaped)

	entries, err := l.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedger_ReapDropsReusedPID(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	var (
		identified []string
		killed     []int
	)
	l.alive = func(pid int) bool { return pid == 200 }
	l.identify = func(_ context.Context, e Entry) bool {
		identified = append(identified, e.Info.ProfileID)
		return false
	}
	l.kill = func(pid int) error {
		killed = append(killed, pid)
		return nil
	}

	require.NoError(t, l.Record(ctx, info("orphan", 200, 9201)))
	_, err := l.db.ExecContext(ctx, `UPDATE instances SET owner_pid = 4000001`)
	require.NoError(t, err)

	reaped, err := l.Reap(ctx)
	require.NoError(t, err)
	require.Len(t, reaped, 1)
	assert.Equal(t, "orphan", reaped[0].Info.ProfileID)
	assert.Equal(t, []string{"orphan"}, identified)
	assert.Empty(t, killed, "a pid that no longer serves the recorded endpoint must not be signalled")

	entries, err := l.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSameBrowser(t *testing.T) {
	t.Parallel()

	const ws = "ws://127.0.0.1:9222/devtools/browser/4b1e"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Browser":"Chrome/130","webSocketDebuggerUrl":"` + ws + `"}`))
	}))
	t.Cleanup(srv.Close)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := map[string]struct {
		cdpURL string
		wsURL  string
		want   bool
	}{
		"matching endpoint":    {cdpURL: srv.URL, wsURL: ws, want: true},
		"different browser":    {cdpURL: srv.URL, wsURL: "ws://127.0.0.1:9222/devtools/browser/other", want: false},
		"nothing listening":    {cdpURL: closedURL, wsURL: ws, want: false},
		"no recorded endpoint": {cdpURL: srv.URL, wsURL: "", want: false},
		"no recorded cdp url":  {cdpURL: "", wsURL: ws, want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := Entry{Info: core.ConnectionInfo{ProfileID: "p", PID: 1, CDPURL: tc.cdpURL, WSEndpoint: tc.wsURL}}
			assert.Equal(t, tc.want, sameBrowser(context.Background(), e))
		})
	}
}

func TestLedger_Hooks(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	var hooks core.Hooks = l
	hooks.OnStarted(info("a", 100, 9200), time.Second)
	hooks.OnStartFailed("b", errors.New("boom"))
	hooks.OnDisplayStarted(":99")

	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Info.ProfileID)

	hooks.OnStopped("a")
	entries, err = l.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedger_SharedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	first, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Record(ctx, info("a", 100, 9200)))
	entries, err := second.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, path, second.Path())
}
