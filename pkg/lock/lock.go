// Package lock provides the in-flight lock that keeps overlapping invocations
// from promoting files and submitting jobs at the same time.
package lock

import (
	"context"
	"errors"
)

// ErrNotHeld is returned by Release when the lock belongs to someone else or
// has already expired.
var ErrNotHeld = errors.New("lock not held")

// Locker is a named, expiring mutual-exclusion record. Tokens identify the holder.
type Locker interface {
	// Acquire reports whether the lock was taken for token.
	Acquire(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}
