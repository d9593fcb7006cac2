// Package scheduler runs reminders.
//
// Each reminder gets its own supervised goroutine that sleeps for the
// reminder's interval, fires (popup + shared alarm), and re-arms
// unconditionally. A firing that has not been dismissed yet does not
// suppress the next one, so several alerts can ring at once; the alarm
// coordinator reference-counts them.
//
// Run waits for every task to end. A task whose firing fails stops for good
// (its later recurrences are lost) and the error is returned from Run once
// the remaining tasks have also ended.
//
// The alarm belongs to the caller. Run leaves it as it is on return, so a
// Scheduler can be re-run with an edited list while earlier alerts keep
// ringing until they are dismissed.
package scheduler
