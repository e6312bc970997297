package hookrun

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/ini.v1"
)

const (
	// CfgName is the file name looked up in the default config locations
	// and in directories passed as explicit locations.
	CfgName = "unittest.cfg"
	// GlobalSection holds the plugin lists and runner defaults.
	GlobalSection = "unittest"
)

var (
	trueValues  = []string{"1", "true", "on", "yes"}
	falseValues = []string{"0", "false", "off", "no", ""}
)

var iniOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	InsensitiveKeys:            true,
	SpaceBeforeInlineComment:   true,
}

// ConfigError reports a malformed configuration value or option.
type ConfigError struct {
	Section string
	Key     string
	Value   string
	Reason  string
}

func (e ConfigError) Error() string {
	if e.Key == "" {
		return "config error: " + e.Reason
	}

	return fmt.Sprintf("config error in [%s] %s = %q: %s", e.Section, e.Key, e.Value, e.Reason)
}

// ConfigLocationError is returned when an explicitly requested config
// location does not exist.
type ConfigLocationError struct {
	Path string
}

func (e ConfigLocationError) Error() string {
	return fmt.Sprintf("config location %q not found", e.Path)
}

// Section is the merged key/value data of one config section.
type Section struct {
	name  string
	items map[string]string
}

func newSection(name string) Section {
	return Section{name: name, items: map[string]string{}}
}

func (s Section) Name() string {
	return s.name
}

func (s Section) Get(key string) (string, bool) {
	v, ok := s.items[strings.ToLower(key)]
	return v, ok
}

func (s Section) Keys() []string {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s Section) AsStr(key, def string) string {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	return strings.TrimSpace(v)
}

// AsBool parses a boolean value. Accepted tokens are case insensitive.
func (s Section) AsBool(key string, def bool) (bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}

	token := strings.ToLower(strings.TrimSpace(v))

	if slices.Contains(trueValues, token) {
		return true, nil
	}
	if slices.Contains(falseValues, token) {
		return false, nil
	}

	return false, ConfigError{Section: s.name, Key: key, Value: v, Reason: "not a boolean"}
}

// AsTri is AsBool with a third state: nil when the key is not set.
func (s Section) AsTri(key string) (*bool, error) {
	if _, ok := s.Get(key); !ok {
		return nil, nil
	}

	b, err := s.AsBool(key, false)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (s Section) AsInt(key string, def int) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}

	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ConfigError{Section: s.name, Key: key, Value: v, Reason: "not an integer"}
	}

	return i, nil
}

func (s Section) AsFloat(key string, def float64) (float64, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, ConfigError{Section: s.name, Key: key, Value: v, Reason: "not a number"}
	}

	return f, nil
}

// AsList splits a multi-line value, dropping blank lines and lines
// starting with '#'.
func (s Section) AsList(key string) []string {
	v, ok := s.Get(key)
	if !ok {
		return []string{}
	}

	return splitList(v)
}

func splitList(v string) []string {
	items := []string{}

	for _, line := range strings.Split(v, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}

	return items
}

// Config is the configuration merged from all sources.
type Config struct {
	sections map[string]Section
	plugins  map[string]struct{}
	excluded map[string]struct{}
	// Sources lists the files that were read, in merge order.
	Sources []string
}

func newConfig() *Config {
	return &Config{
		sections: map[string]Section{},
		plugins:  map[string]struct{}{},
		excluded: map[string]struct{}{},
		Sources:  []string{},
	}
}

// Section returns the named section. Missing sections are empty.
func (c *Config) Section(name string) Section {
	if s, ok := c.sections[name]; ok {
		return s
	}
	return newSection(name)
}

// Plugins returns the sorted union of all `plugins` lists minus the
// union of all `excluded-plugins` lists.
func (c *Config) Plugins() []string {
	names := []string{}

	for name := range c.plugins {
		if _, excluded := c.excluded[name]; excluded {
			continue
		}
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (c *Config) merge(f *ini.File) {
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}

		merged, ok := c.sections[sec.Name()]
		if !ok {
			merged = newSection(sec.Name())
			c.sections[sec.Name()] = merged
		}

		for _, k := range sec.Keys() {
			merged.items[strings.ToLower(k.Name())] = k.Value()
		}

		if sec.Name() != GlobalSection {
			continue
		}

		if k, err := sec.GetKey("plugins"); err == nil {
			for _, p := range splitList(k.Value()) {
				c.plugins[p] = struct{}{}
			}
		}
		if k, err := sec.GetKey("excluded-plugins"); err == nil {
			for _, p := range splitList(k.Value()) {
				c.excluded[p] = struct{}{}
			}
		}
	}
}

func (c *Config) mergeSource(name string, source any) error {
	f, err := ini.LoadSources(iniOptions, source)
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", name, err)
	}

	c.merge(f)
	c.Sources = append(c.Sources, name)

	return nil
}

// ParseConfig merges in-memory config documents, later ones overriding
// earlier ones.
func ParseConfig(data ...[]byte) (*Config, error) {
	c := newConfig()

	for i, d := range data {
		if err := c.mergeSource(fmt.Sprintf("<data %d>", i), d); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// LoadConfig reads the user config (unless noUserConfig is set), the
// config in the current directory and every explicit location. Default
// locations that don't exist are skipped, explicit ones must exist. An
// explicit location may be a file or a directory containing CfgName.
func LoadConfig(noUserConfig bool, locations ...string) (*Config, error) {
	paths := []string{}

	if !noUserConfig {
		paths = append(paths, filepath.Join(xdg.Home, CfgName))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	paths = append(paths, filepath.Join(cwd, CfgName))

	defaults := len(paths)

	for _, l := range locations {
		p, err := resolveConfigLocation(l)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	c := newConfig()

	for i, p := range paths {
		if i < defaults {
			if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
				continue
			}
		}

		if err := c.mergeSource(p, p); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func resolveConfigLocation(location string) (string, error) {
	path, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("resolving config location %q: %w", location, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", ConfigLocationError{Path: location}
	}

	if info.IsDir() {
		path = filepath.Join(path, CfgName)
		if _, err := os.Stat(path); err != nil {
			return "", ConfigLocationError{Path: path}
		}
	}

	return path, nil
}
