package hookrun

import (
	"io"
	"log/slog"
)

func WithLogger(log *slog.Logger) option {
	return func(s *Session) {
		s.log = log
	}
}

// WithStdout sets the stream the runner writes its report to.
func WithStdout(w io.Writer) option {
	return func(s *Session) {
		s.stdout = w
	}
}

// WithStderr sets the stream for usage and load errors.
func WithStderr(w io.Writer) option {
	return func(s *Session) {
		s.stderr = w
	}
}

// WithCatalog replaces DefaultCatalog as the source of plugin modules.
func WithCatalog(c *Catalog) option {
	return func(s *Session) {
		s.catalog = c
	}
}

// WithModules replaces DefaultModules as the set of loadable modules.
func WithModules(modules ...*Module) option {
	return func(s *Session) {
		set := &ModuleSet{}
		for _, m := range modules {
			set.Add(m)
		}
		s.modules = set
	}
}

// WithConfig preloads configuration, e.g. for sessions that don't read
// config files.
func WithConfig(c *Config) option {
	return func(s *Session) {
		s.config = c
	}
}

func WithVerbosity(v int) option {
	return func(s *Session) {
		s.verbosity = v
	}
}
