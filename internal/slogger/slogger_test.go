package slogger

import (
	"bytes"
	"context"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		verbosity int
		want      charmlog.Level
	}{
		"default": {verbosity: 0, want: charmlog.WarnLevel},
		"-v":      {verbosity: 1, want: charmlog.InfoLevel},
		"-vv":     {verbosity: 2, want: charmlog.DebugLevel},
		"-vvv":    {verbosity: 3, want: charmlog.DebugLevel},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Level(tc.verbosity))
		})
	}
}

func TestNew_FiltersByVerbosity(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Verbosity: 1, Output: &buf})

	log.Debug("poll attempt", "port", 9222)
	log.Info("instance started", "id", "p1")

	out := buf.String()
	assert.NotContains(t, out, "poll attempt")
	assert.Contains(t, out, "instance started")
	assert.Contains(t, out, "p1")
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, FromContext(context.Background()))

	var buf bytes.Buffer
	log := New(Config{Output: &buf})
	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}
