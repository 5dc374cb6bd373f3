package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	watch  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithWatcher enables the markdown directory watcher regardless of the
// configuration file setting.
func WithWatcher() Option {
	return func(a *application) {
		a.watch = true
	}
}
