package memo

// entry is the per-key record owned by a shard. It exists while the key
// holds a cached value or a live timer.
type entry struct {
	// args is a private copy of the call's argument list (the key).
	args []any

	val    any
	cached bool

	// Current expiry timer; nil when the memo never expires.
	timer *timer
}
