package store

// DefaultPath is used when Open is called with an empty path.
const DefaultPath = "simpleKVStore"

// DefaultBufferCapacity is the number of resident entries the write
// buffer holds. Write proactively flushes once this many entries are
// dirty, rather than waiting for a write to hit a full buffer of
// all-dirty entries and fail.
const DefaultBufferCapacity = 10000

// Config configures a Store at Open time. Use Option functions to
// override individual fields; the zero Config plus newConfig's
// defaults is what Open(path) uses.
type Config struct {
	Path            string
	BufferCapacity  int
	DisableFileLock bool
}

// Option mutates a Config, the same functional-options style used
// throughout this package's constructors rather than a config-file
// loader.
type Option func(*Config)

// WithBufferCapacity overrides the write buffer's resident-entry
// capacity.
func WithBufferCapacity(n int) Option {
	return func(c *Config) { c.BufferCapacity = n }
}

// WithoutFileLock disables the advisory flock taken on the page file.
// Intended for tests that open the same store path from one process
// in quick succession.
func WithoutFileLock() Option {
	return func(c *Config) { c.DisableFileLock = true }
}

func newConfig(path string, opts ...Option) Config {
	if path == "" {
		path = DefaultPath
	}
	cfg := Config{Path: path, BufferCapacity: DefaultBufferCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
