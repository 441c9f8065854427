package ports

import (
	"context"
	"time"
)

// Locker is a named advisory lock used to serialize a locally-initiated
// subscription status write against a concurrently arriving provider
// notification for the same subscription.
//
// Acquire returns a release function that must be called on every exit path,
// including error paths. The TTL bounds the hold time so a crashed holder
// cannot deadlock future acquirers.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}
