// Package notifier shows desktop notifications and reports when the user
// dismisses them.
//
// # Transport
//
// On Linux the renderer talks to the freedesktop notification daemon
// (org.freedesktop.Notifications) over the session D-Bus. Each Show returns
// a Handle; the renderer listens for NotificationClosed signals and fires the
// handle's dismissal callback exactly once.
//
// Other platforms are unsupported: Open returns ErrUnsupported and callers
// treat that as fatal.
package notifier
