// Package storage keeps a history of reminder firings.
//
// It records when each popup was shown and when the user dismissed it. The
// history is informational only: nothing is restored from it on startup.
package storage
