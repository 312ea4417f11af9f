// Package store provides local storage backends for the Academy Shell.
//
// The shell keeps small key-value state on device: the cached navigation
// config, user preferences, the registered push token, and the plaintext
// fallback tier of the secure credential store. Backends include an in-memory
// store for tests and a SQLite-backed store for the daemon.
package store

// Store is the key-value contract shared by all backends.
type Store interface {
	// GetItem returns the value for key and whether it was present.
	GetItem(key string) (string, bool, error)
	// SetItem stores or replaces the value for key.
	SetItem(key, value string) error
	// RemoveItem deletes the value for key. Removing a missing key is not an error.
	RemoveItem(key string) error
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the SQLite database file path.
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}
