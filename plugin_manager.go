package hookrun

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var ErrPluginNotRegistered = errors.New("plugin module not registered")

// PluginConstructor creates a plugin for a session.
type PluginConstructor func(s *Session) (Plugin, error)

// PluginModule is a named set of plugin types that is loaded when its
// name is listed in the `plugins` config key.
type PluginModule struct {
	Name  string
	Types []PluginConstructor
	// Initialise, if set, is called after the types were registered.
	Initialise func(s *Session) error
}

// Catalog maps plugin module names to plugin modules.
type Catalog struct {
	mu      sync.Mutex
	modules map[string]PluginModule
}

func NewCatalog() *Catalog {
	return &Catalog{modules: map[string]PluginModule{}}
}

// DefaultCatalog is used by sessions that were not given a catalog.
var DefaultCatalog = NewCatalog()

// Register adds a plugin module. It panics if the name is taken.
func (c *Catalog) Register(m PluginModule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.modules[m.Name]; dup {
		panic(fmt.Sprintf("hookrun: plugin module %q registered twice", m.Name))
	}

	c.modules[m.Name] = m
}

func (c *Catalog) Lookup(name string) (PluginModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.modules[name]
	return m, ok
}

func (c *Catalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// RegisterPluginModule adds m to DefaultCatalog. Plugin packages call it
// from an init function.
func RegisterPluginModule(m PluginModule) {
	DefaultCatalog.Register(m)
}

type pluginEntry struct {
	plugin   Plugin
	active   bool
	bindings []*Binding
}

type pluginManager struct {
	hooks   *Hooks
	entries map[Plugin]*pluginEntry
	// all plugins in construction order
	all []Plugin
	// instances holds the current instance per plugin name
	instances map[string]Plugin
	types     []PluginConstructor
	loaded    []string

	log *slog.Logger
}

func newPluginManager(hooks *Hooks, log *slog.Logger) *pluginManager {
	return &pluginManager{
		hooks:     hooks,
		entries:   map[Plugin]*pluginEntry{},
		all:       []Plugin{},
		instances: map[string]Plugin{},
		types:     []PluginConstructor{},
		loaded:    []string{},
		log:       log,
	}
}

func (m *pluginManager) entry(p Plugin) *pluginEntry {
	e, ok := m.entries[p]
	if !ok {
		e = &pluginEntry{plugin: p}
		m.entries[p] = e
		m.all = append(m.all, p)
	}
	return e
}

// LoadPlugins reads the configuration and loads the listed plugin
// modules unless pluginsDisabled is set.
func (s *Session) LoadPlugins(pluginsDisabled, noUserConfig bool, configLocations []string) error {
	cfg, err := LoadConfig(noUserConfig, configLocations...)
	if err != nil {
		return err
	}

	for _, src := range cfg.Sources {
		s.log.Debug("loaded config", "source", src)
	}

	return s.LoadPluginsFromConfig(cfg, pluginsDisabled)
}

// LoadPluginsFromConfig loads the plugin modules listed in cfg. After
// loading, plugin types registered through RegisterPluginType are no
// longer instantiated automatically.
func (s *Session) LoadPluginsFromConfig(cfg *Config, pluginsDisabled bool) error {
	s.config = cfg

	verbosity, err := configVerbosity(cfg.Section(GlobalSection), s.verbosity)
	if err != nil {
		return err
	}
	s.verbosity = verbosity

	s.autoRegister = true
	defer func() { s.autoRegister = false }()

	if pluginsDisabled {
		return nil
	}

	for _, name := range cfg.Plugins() {
		if err := s.importPlugin(name); err != nil {
			return err
		}
	}

	return nil
}

// configVerbosity reads the `verbosity` key, either a number or one of
// the names in Verbosities.
func configVerbosity(section Section, def int) (int, error) {
	v, err := section.AsInt("verbosity", def)
	if err == nil {
		return v, nil
	}

	raw, _ := section.Get("verbosity")
	if named, ok := Verbosities[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return named, nil
	}

	return 0, err
}

func (s *Session) importPlugin(name string) error {
	m, ok := s.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("loading plugin %q: %w", name, ErrPluginNotRegistered)
	}

	for _, ctor := range m.Types {
		if err := s.RegisterPluginType(ctor); err != nil {
			return fmt.Errorf("loading plugin %q: %w", name, err)
		}
	}

	if m.Initialise != nil {
		if err := m.Initialise(s); err != nil {
			return fmt.Errorf("initialising plugin %q: %w", name, err)
		}
	}

	s.plugins.loaded = append(s.plugins.loaded, name)
	s.log.Debug("loaded plugin module", "plugin", name)

	return nil
}

// LoadedPluginModules returns the names of the plugin modules loaded so far.
func (s *Session) LoadedPluginModules() []string {
	return slices.Clone(s.plugins.loaded)
}

// RegisterPluginType records a plugin type. While plugins are being
// loaded the type is also instantiated and added to the session.
func (s *Session) RegisterPluginType(ctor PluginConstructor) error {
	s.plugins.types = append(s.plugins.types, ctor)

	if !s.autoRegister {
		return nil
	}

	p, err := ctor(s)
	if err != nil {
		return fmt.Errorf("constructing plugin: %w", err)
	}

	return s.AddPlugin(p)
}

// AddPlugin applies the activation policy to a newly constructed plugin:
// plugins configured `always-on` are registered right away, others wait
// for their command line switch.
func (s *Session) AddPlugin(p Plugin) error {
	e := s.plugins.entry(p)
	s.plugins.instances[p.Name()] = p

	section := newSection("")
	if cs, ok := p.(ConfigSectioner); ok {
		section = s.Config(cs.ConfigSection())
	}

	alwaysOn, err := section.AsBool("always-on", false)
	if err != nil {
		return fmt.Errorf("configuring plugin %q: %w", p.Name(), err)
	}

	if alwaysOn {
		return s.RegisterPlugin(p)
	}

	if sw, ok := p.(Switcher); ok && !e.active {
		swi := sw.CommandLineSwitch()

		return s.AddOption(func() error { return s.RegisterPlugin(p) }, swi.Short, swi.Long, swi.Help)
	}

	return nil
}

// RegisterPlugin activates a plugin by binding its listeners to the
// hooks. Registering an active plugin is a no-op.
func (s *Session) RegisterPlugin(p Plugin) error {
	e := s.plugins.entry(p)
	if e.active {
		return nil
	}

	if a, ok := p.(Activator); ok {
		if err := a.Activate(); err != nil {
			return fmt.Errorf("activating plugin %q: %w", p.Name(), err)
		}
	}

	bindings := []*Binding{}

	for _, lb := range listenerBindings {
		handler, ok := lb.bind(p)
		if !ok {
			continue
		}

		b, err := s.hooks.Register(lb.hook, handler)
		if err != nil {
			return err
		}

		bindings = append(bindings, b)
	}

	if len(bindings) == 0 {
		return fmt.Errorf("plugin %q does not implement any hook", p.Name())
	}

	e.bindings = bindings
	e.active = true
	if _, ok := s.plugins.instances[p.Name()]; !ok {
		s.plugins.instances[p.Name()] = p
	}

	s.log.Debug("plugin activated", "plugin", p.Name(), "hooks", len(bindings))

	return nil
}

// UnregisterPlugin removes all handlers of a plugin. Handlers that are
// already gone are ignored.
func (s *Session) UnregisterPlugin(p Plugin) {
	e, ok := s.plugins.entries[p]
	if !ok {
		return
	}

	for _, b := range e.bindings {
		if err := s.hooks.Unregister(b.Hook(), b); err != nil && !errors.Is(err, ErrHandlerNotFound) {
			s.log.Warn("unregistering plugin handler failed", "plugin", p.Name(), "error", err)
		}
	}

	wasActive := e.active

	e.bindings = nil
	e.active = false

	if s.plugins.instances[p.Name()] == p {
		delete(s.plugins.instances, p.Name())
	}

	if d, ok := p.(Deactivator); ok && wasActive {
		d.Deactivate()
	}
}

// IsActive reports whether the plugin's handlers are bound.
func (s *Session) IsActive(p Plugin) bool {
	e, ok := s.plugins.entries[p]
	return ok && e.active
}

// PluginInstance returns the current instance of the named plugin.
func (s *Session) PluginInstance(name string) (Plugin, bool) {
	p, ok := s.plugins.instances[name]
	return p, ok
}

// Plugins returns all plugins of the session in construction order.
func (s *Session) Plugins() []Plugin {
	return slices.Clone(s.plugins.all)
}

// ActivePlugins returns the active plugins in construction order.
func (s *Session) ActivePlugins() []Plugin {
	active := []Plugin{}
	for _, p := range s.plugins.all {
		if s.plugins.entries[p].active {
			active = append(active, p)
		}
	}
	return active
}

// PluginsLoaded fires the pluginsLoaded hook.
func (s *Session) PluginsLoaded() {
	s.hooks.Dispatch(HookPluginsLoaded, &PluginsLoadedEvent{Session: s, Plugins: s.Plugins()})
}

// CommandOption is a command line option contributed through AddOption.
// Either Callback or List is set.
type CommandOption struct {
	Short string
	Long  string
	Help  string
	// Callback is called if the switch is given.
	Callback func() error
	// List receives every value given for the option.
	List *[]string
}

// Name returns the long name, or the short one if there is none.
func (o CommandOption) Name() string {
	if o.Long != "" {
		return o.Long
	}
	return o.Short
}

// AddOption adds a command line switch calling callback. Short options
// must be single upper case letters, lower case ones are reserved.
func (s *Session) AddOption(callback func() error, short, long, help string) error {
	return s.addOption(&s.options, CommandOption{Short: short, Long: long, Help: help, Callback: callback})
}

// AddListOption adds a command line option whose values are appended to dest.
func (s *Session) AddListOption(dest *[]string, short, long, help string) error {
	return s.addOption(&s.options, CommandOption{Short: short, Long: long, Help: help, List: dest})
}

// AddDiscoveryOption adds a switch that is only available for discovery.
func (s *Session) AddDiscoveryOption(callback func() error, short, long, help string) error {
	return s.addOption(&s.discoveryOptions, CommandOption{Short: short, Long: long, Help: help, Callback: callback})
}

func (s *Session) addOption(options *[]CommandOption, o CommandOption) error {
	if err := validateOption(o); err != nil {
		return err
	}

	for _, existing := range append(slices.Clone(s.options), s.discoveryOptions...) {
		if (o.Short != "" && existing.Short == o.Short) || (o.Long != "" && existing.Long == o.Long) {
			return ConfigError{Reason: fmt.Sprintf("option %q is already defined", o.Name())}
		}
	}

	*options = append(*options, o)

	return nil
}

func validateOption(o CommandOption) error {
	if o.Short == "" && o.Long == "" {
		return ConfigError{Reason: "option needs a short or long name"}
	}

	if o.Short != "" {
		r, size := utf8.DecodeRuneInString(o.Short)
		if size != len(o.Short) {
			return ConfigError{Reason: fmt.Sprintf("short option %q must be a single character", o.Short)}
		}
		if strings.ToLower(o.Short) == o.Short || !unicode.IsLetter(r) {
			return ConfigError{Reason: fmt.Sprintf("lowercase short options are reserved: %q", o.Short)}
		}
	}

	return nil
}

// Options returns the options added by plugins.
func (s *Session) Options() []CommandOption {
	return slices.Clone(s.options)
}

func (s *Session) DiscoveryOptions() []CommandOption {
	return slices.Clone(s.discoveryOptions)
}
