package hookrun

import (
	"io"
	"log/slog"
	"os"
)

// Session is the context of a test run. It owns the hook registry, the
// configuration, the plugins and the runner, so that independent
// sessions never see each other's state.
type Session struct {
	log     *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	hooks   *Hooks
	config  *Config
	catalog *Catalog
	modules *ModuleSet

	plugins          *pluginManager
	options          []CommandOption
	discoveryOptions []CommandOption
	// autoRegister makes RegisterPluginType instantiate plugin types
	// immediately. It is only turned on while plugins are loaded.
	autoRegister bool

	runner     *TextRunner
	queued     []queuedMessage
	verbosity  int
	interrupts *InterruptHandler
}

type queuedMessage struct {
	msg       string
	verbosity []int
}

type option func(s *Session)

// New configures a new Session.
func New(opts ...option) *Session {
	s := &Session{
		log:              slog.Default(),
		stdout:           os.Stdout,
		stderr:           os.Stderr,
		hooks:            NewHooks(),
		config:           newConfig(),
		catalog:          DefaultCatalog,
		modules:          DefaultModules,
		options:          []CommandOption{},
		discoveryOptions: []CommandOption{},
		queued:           []queuedMessage{},
		verbosity:        1,
	}

	for _, o := range opts {
		o(s)
	}

	s.plugins = newPluginManager(s.hooks, s.log)
	s.interrupts = newInterruptHandler(s.log)

	return s
}

func (s *Session) Hooks() *Hooks {
	return s.hooks
}

func (s *Session) Log() *slog.Logger {
	return s.log
}

func (s *Session) Modules() *ModuleSet {
	return s.modules
}

func (s *Session) Interrupts() *InterruptHandler {
	return s.interrupts
}

// Runner returns the current runner, nil before NewRunner was called.
func (s *Session) Runner() *TextRunner {
	return s.runner
}

func (s *Session) Verbosity() int {
	return s.verbosity
}

func (s *Session) SetVerbosity(v int) {
	s.verbosity = v
	if s.runner != nil {
		s.runner.Verbosity = v
	}
}

// Config returns a section of the loaded configuration.
func (s *Session) Config(section string) Section {
	return s.config.Section(section)
}

// Message writes through the runner. Messages sent before the runner
// exists are queued.
func (s *Session) Message(msg string, verbosity ...int) {
	if s.runner == nil {
		s.queued = append(s.queued, queuedMessage{msg: msg, verbosity: verbosity})
		return
	}

	s.runner.Message(msg, verbosity...)
}

func (s *Session) flushMessages() {
	queued := s.queued
	s.queued = []queuedMessage{}

	for _, m := range queued {
		s.runner.Message(m.msg, m.verbosity...)
	}
}
