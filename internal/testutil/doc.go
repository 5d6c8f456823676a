// Package testutil holds hermetic fakes shared by browserenv tests.
//
// The fake browser is the test binary itself, re-executed as a helper
// process. Packages that use it call RunHelperIfRequested at the top of
// TestMain; when the helper environment variable is set the call serves the
// requested behavior and exits instead of running tests.
package testutil
