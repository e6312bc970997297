package plugin

import (
	"regexp"

	"github.com/raphi011/hookrun"
)

func init() {
	hookrun.RegisterPluginModule(hookrun.PluginModule{
		Name:  "filtertests",
		Types: []hookrun.PluginConstructor{NewFilterTests},
	})
}

// FilterTests only runs the tests whose id matches one of the regular
// expressions given with -F/--filter or in the `filter` key.
type FilterTests struct {
	session  *hookrun.Session
	patterns []string
	filters  []*regexp.Regexp
}

func NewFilterTests(s *hookrun.Session) (hookrun.Plugin, error) {
	p := &FilterTests{
		session:  s,
		patterns: s.Config("filtertests").AsList("filter"),
	}

	if err := s.AddListOption(&p.patterns, "F", "filter", "Filter test methods loaded with a regexp"); err != nil {
		return nil, err
	}

	if err := s.RegisterPlugin(p); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *FilterTests) Name() string {
	return "filtertests"
}

func (p *FilterTests) PluginsLoaded(_ *hookrun.PluginsLoadedEvent) {
	p.filters = []*regexp.Regexp{}

	for _, pattern := range p.patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			p.session.Log().Warn("ignoring invalid filter", "filter", pattern, "error", err)
			continue
		}
		p.filters = append(p.filters, re)
	}

	if len(p.filters) == 0 {
		p.session.UnregisterPlugin(p)
	}
}

func (p *FilterTests) StartTestRun(e *hookrun.StartTestRunEvent) {
	suite := hookrun.NewSuite()

	for tc := range hookrun.Flatten(e.Suite) {
		for _, re := range p.filters {
			if re.MatchString(tc.ID()) {
				_ = suite.AddTest(tc)
				break
			}
		}
	}

	e.Suite = suite
}
