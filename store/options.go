package store

import "go.uber.org/zap"

type config struct {
	logger        *zap.Logger
	exclusiveAnon bool
}

// Option configures a root store at construction time. There is no runtime
// reconfiguration surface.
type Option func(*config)

// WithLogger installs the zap logger used for lifecycle, cancellation, and
// drop events. The default is a nop logger; reducers themselves never log.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithExclusiveAnonymousTask restores the legacy single-slot policy for
// effects without a cancellation id: starting a new anonymous task cancels
// the previous one. By default anonymous tasks run concurrently.
func WithExclusiveAnonymousTask() Option {
	return func(cfg *config) {
		cfg.exclusiveAnon = true
	}
}

func newConfig(opts []Option) config {
	cfg := config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
