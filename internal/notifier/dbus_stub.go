//go:build !linux

package notifier

import logx "unpotato/pkg/logx"

// Open is unavailable outside Linux.
func Open(cfg Config, log logx.Logger) (Renderer, error) {
	_, _ = cfg, log
	return nil, ErrUnsupported
}
