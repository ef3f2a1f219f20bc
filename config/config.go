package config

// Config holds the source-level constants the listener, worker pool, and
// connection state machine are built from. There are no flags and no
// environment lookups in scope — operators who need a different port or
// buffer size rebuild with different constants.
type Config struct {
	Host string
	Port int

	// ReadBufferSize and WriteBufferSize size each connection's ring
	// buffer and write buffer respectively.
	ReadBufferSize  int
	WriteBufferSize int

	// AcceptBacklog is the listen() backlog passed to the kernel.
	AcceptBacklog int

	// MaxParams records the inline ParamArray capacity. That capacity is
	// the compile-time constant router.MaxParams; nothing reads this
	// field, so changing it does not change the capacity.
	MaxParams int

	// EnableBPFAffinity turns on the SO_ATTACH_REUSEPORT_CBPF filter
	// across the worker pool's listening sockets. When false, or when
	// attaching fails and is tolerated, workers fall back to the
	// kernel's default (unordered) REUSEPORT load balancing.
	EnableBPFAffinity bool
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Host:              "127.0.0.1",
		Port:              8080,
		ReadBufferSize:    8 * 1024,
		WriteBufferSize:   8 * 1024,
		AcceptBacklog:     128,
		MaxParams:         4,
		EnableBPFAffinity: true,
	}
}
