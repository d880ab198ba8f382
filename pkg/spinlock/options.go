package spinlock

// Observer receives contention events from a lock. Implementations are
// called from every goroutine contending on the lock and must be safe for
// concurrent use.
type Observer interface {
	// Acquired is called once the lock is held, contended reports whether
	// the first compare-and-swap failed.
	Acquired(contended bool)
	// Yielded is called each time a waiter gives up its time slice.
	Yielded()
}

// Option configures a lock.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options contains all options which will be applied when creating a lock.
type Options struct {
	// Observer is notified of acquisitions and yields, nil disables it.
	Observer Observer
}

// WithOptions accepts the whole options config.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithObserver sets up a contention observer.
func WithObserver(obs Observer) Option {
	return func(opts *Options) {
		opts.Observer = obs
	}
}
