package libshare

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-key time-to-live, used for
// transient state like audit codes. Expiry is the backend's job; no
// component runs its own eviction timer.
type Cache interface {
	// Get returns the value for key, or ErrNotFound when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value under key for ttl, overwriting any prior value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases the backend connection.
	Close() error
}

// Mailer delivers outbound mail. Actual delivery is a collaborator; the
// services only hand messages over.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NopMailer silently accepts every message. Use in tests and in
// deployments without a configured mail relay.
type NopMailer struct{}

func (NopMailer) Send(context.Context, string, string, string) error { return nil }
