// Package fileutil creates the directories browserenv writes state into:
// the display lock directory and the parent of the instance ledger.
package fileutil
