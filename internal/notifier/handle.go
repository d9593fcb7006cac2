package notifier

import "sync"

// DismissHandle is a Handle whose dismissal is driven by Dismiss.
// Renderers (and test fakes) embed it.
type DismissHandle struct {
	id uint32

	mu        sync.Mutex
	dismissed bool
	fn        func()
	fired     bool
}

func NewDismissHandle(id uint32) *DismissHandle { return &DismissHandle{id: id} }

func (h *DismissHandle) ID() uint32 { return h.id }

func (h *DismissHandle) OnDismiss(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if h.fn != nil {
		h.mu.Unlock()
		return
	}
	h.fn = fn
	run := h.takeLocked()
	h.mu.Unlock()
	if run != nil {
		run()
	}
}

// Dismiss marks the popup closed. The callback (now or later) runs once.
func (h *DismissHandle) Dismiss() {
	h.mu.Lock()
	h.dismissed = true
	run := h.takeLocked()
	h.mu.Unlock()
	if run != nil {
		run()
	}
}

// Dismissed reports whether Dismiss was called.
func (h *DismissHandle) Dismissed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dismissed
}

func (h *DismissHandle) takeLocked() func() {
	if !h.dismissed || h.fn == nil || h.fired {
		return nil
	}
	h.fired = true
	return h.fn
}
