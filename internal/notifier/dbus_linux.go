//go:build linux

package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/time/rate"

	logx "unpotato/pkg/logx"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	iface      = "org.freedesktop.Notifications"

	signalClosed = iface + ".NotificationClosed"
)

// DBusRenderer shows notifications through the freedesktop notification daemon.
type DBusRenderer struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	log     logx.Logger
	limiter *rate.Limiter
	signals chan *dbus.Signal
	quit    chan struct{}
	done    chan struct{}

	// mu is held across Notify so a NotificationClosed signal for a fresh id
	// is not dispatched before its handle is registered.
	mu     sync.Mutex
	open   map[uint32]*DismissHandle
	closed bool
}

// Open connects to the session bus. Failure is fatal for callers; there is
// no silent fallback.
func Open(cfg Config, log logx.Logger) (Renderer, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("notifier: connect session bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember("NotificationClosed"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notifier: subscribe NotificationClosed: %w", err)
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	r := &DBusRenderer{
		conn:    conn,
		obj:     conn.Object(busName, objectPath),
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		signals: make(chan *dbus.Signal, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		open:    map[uint32]*DismissHandle{},
	}
	conn.Signal(r.signals)
	go r.dispatch()
	return r, nil
}

func (r *DBusRenderer) Show(ctx context.Context, n Notification) (Handle, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	if n.SoundHint != "" {
		hints["sound-name"] = dbus.MakeVariant(n.SoundHint)
	}
	// 0 means "never expire" to freedesktop notification daemons.
	expire := int32(0)
	if n.Timeout > 0 {
		expire = int32(n.Timeout.Milliseconds())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	call := r.obj.CallWithContext(ctx, iface+".Notify", 0,
		n.AppName, uint32(0), "", n.Summary, n.Body, []string{}, hints, expire)
	if call.Err != nil {
		return nil, fmt.Errorf("notifier: show %q: %w", n.Summary, call.Err)
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return nil, fmt.Errorf("notifier: show %q: decode id: %w", n.Summary, err)
	}

	h := NewDismissHandle(id)
	r.open[id] = h
	r.log.Debug("notification shown", logx.Uint64("id", uint64(id)), logx.String("summary", n.Summary))
	return h, nil
}

func (r *DBusRenderer) dispatch() {
	defer close(r.done)
	for {
		var (
			sig *dbus.Signal
			ok  bool
		)
		select {
		case <-r.quit:
			return
		case sig, ok = <-r.signals:
			if !ok {
				r.log.Warn("notification signal stream closed; dismissals will no longer be reported")
				return
			}
		}
		if sig == nil || sig.Name != signalClosed || len(sig.Body) < 1 {
			continue
		}
		id, ok := sig.Body[0].(uint32)
		if !ok {
			continue
		}
		var reason uint32
		if len(sig.Body) > 1 {
			reason, _ = sig.Body[1].(uint32)
		}

		r.mu.Lock()
		h := r.open[id]
		delete(r.open, id)
		r.mu.Unlock()
		if h == nil {
			// another application's notification
			continue
		}
		r.log.Debug("notification closed", logx.Uint64("id", uint64(id)), logx.Uint64("reason", uint64(reason)))
		h.Dismiss()
	}
}

// Close disconnects from the bus. Handles still open never report dismissal.
func (r *DBusRenderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.conn.RemoveSignal(r.signals)
	err := r.conn.Close()
	close(r.quit)
	<-r.done
	return err
}
