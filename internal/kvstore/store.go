package kvstore

import "context"

// Store is a durable key-value medium shared by independent engine instances.
//
// Instances coordinate through it with last-writer-wins semantics: there is no
// transaction primitive spanning more than one operation. Change events are
// delivered to every subscribed instance except the one that performed the
// write, and delivery is best-effort; consumers that must converge re-read
// keys on their own schedule (see tenant.ContextStore.Refresh).

type Store interface {
	// Get returns the value for key. The second result is false when the key
	// is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key to value and notifies other instances.
	Set(ctx context.Context, key, value string) error

	// Delete removes key and notifies other instances. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Subscribe registers fn for change events originated by other instances.
	// fn must not block. The returned func cancels the subscription.
	Subscribe(ctx context.Context, fn func(Event)) (func(), error)
}

// Event describes a single mutation of the shared medium.
type Event struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Deleted bool   `json:"deleted"`

	// Origin identifies the instance that performed the write. Instances use
	// it to suppress self-notification.
	Origin string `json:"origin"`
}
