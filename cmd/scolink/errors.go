package main

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

// Command-level errors
var (
	// ErrDaemonNotRunning indicates the status socket is absent or refused,
	// meaning no scolink daemon is serving it.
	ErrDaemonNotRunning = errors.New("daemon not running")
)

// FormatUserError renders err for terminal users, collapsing common
// low-level causes into actionable messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, ErrDaemonNotRunning),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENOENT):
		return "scolink daemon is not running (start it with 'scolink run')"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	default:
		return fmt.Sprintf("%v", err)
	}
}
