package plugin

import (
	"regexp"

	"github.com/raphi011/hookrun"
)

func init() {
	hookrun.RegisterPluginModule(hookrun.PluginModule{
		Name:  "matchregexp",
		Types: []hookrun.PluginConstructor{NewMatchRegexp},
	})
}

// DefaultRegexpPattern replaces the glob pattern of discovery when no
// other pattern was given.
const DefaultRegexpPattern = `\.go$`

// MatchRegexp matches file names during discovery with regular
// expressions instead of globs. With `full-path` the whole path is matched.
type MatchRegexp struct {
	session  *hookrun.Session
	fullPath bool
	pattern  string
}

func NewMatchRegexp(s *hookrun.Session) (hookrun.Plugin, error) {
	section := s.Config("matchregexp")

	fullPath, err := section.AsBool("full-path", false)
	if err != nil {
		return nil, err
	}

	alwaysOn, err := section.AsBool("always-on", false)
	if err != nil {
		return nil, err
	}

	p := &MatchRegexp{
		session:  s,
		fullPath: fullPath,
		pattern:  section.AsStr("pattern", DefaultRegexpPattern),
	}

	if !alwaysOn {
		help := "Match filenames during test discovery with regular expressions instead of glob"

		if err := s.AddDiscoveryOption(func() error { return s.RegisterPlugin(p) }, "R", "match-regexp", help); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *MatchRegexp) Name() string {
	return "matchregexp"
}

func (p *MatchRegexp) ConfigSection() string {
	return "matchregexp"
}

func (p *MatchRegexp) MatchPath(e *hookrun.MatchPathEvent) bool {
	e.SetHandled()

	pattern := e.Pattern
	if pattern == hookrun.DefaultPattern {
		pattern = p.pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		p.session.Log().Warn("invalid discovery pattern", "pattern", pattern, "error", err)
		return false
	}

	if p.fullPath {
		return re.MatchString(e.Path)
	}
	return re.MatchString(e.Name)
}
