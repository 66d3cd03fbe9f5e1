package memory

import "time"

// Options controls the in-memory cache store.
type Options struct {
	// MaxEntries bounds the store with LRU eviction. Zero means unbounded,
	// matching a plain session-lifetime response cache.
	MaxEntries int
	// Clock supplies the current time; tests inject a fake one.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxEntries < 0 {
		o.MaxEntries = 0
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
