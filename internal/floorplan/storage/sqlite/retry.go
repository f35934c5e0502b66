package sqlite

import (
	"strings"
	"time"
)

const (
	busyRetries   = 5
	busyBaseDelay = 10 * time.Millisecond
)

// isSQLiteBusy reports whether err is a lock contention error that is worth
// retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy runs fn until it succeeds, fails with a non-busy error, or
// busyRetries attempts have been made. The delay doubles after each attempt.
func retryOnBusy(fn func() error) error {
	delay := busyBaseDelay
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}
