//go:build unix

package core

import (
	"os"
	"testing"

	"github.com/giantswarm/browserenv/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.RunHelperIfRequested()
	os.Exit(m.Run())
}
