// Package channels has non-blocking send helpers for producers that must
// never stall, such as audio callbacks.
package channels

import "errors"

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrChannelFull   = errors.New("channel full")
)
