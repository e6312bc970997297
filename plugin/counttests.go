// Package plugin contains the built-in plugins. Importing the package
// registers them in hookrun.DefaultCatalog, they are loaded by listing
// their names in the `plugins` key of the [unittest] config section.
package plugin

import (
	"fmt"

	"github.com/raphi011/hookrun"
)

func init() {
	hookrun.RegisterPluginModule(hookrun.PluginModule{
		Name:  "counttests",
		Types: []hookrun.PluginConstructor{NewCountTests},
	})
}

// CountTests prints a progress indicator before every test.
type CountTests struct {
	session *hookrun.Session
	current int
	total   int
}

func NewCountTests(s *hookrun.Session) (hookrun.Plugin, error) {
	return &CountTests{session: s}, nil
}

func (p *CountTests) Name() string {
	return "counttests"
}

func (p *CountTests) ConfigSection() string {
	return "count"
}

func (p *CountTests) CommandLineSwitch() hookrun.Switch {
	return hookrun.Switch{Long: "count", Help: "display a progress indicator of tests"}
}

func (p *CountTests) StartTestRun(e *hookrun.StartTestRunEvent) {
	p.current = 0
	p.total = 0
	if e.Suite != nil {
		p.total = e.Suite.CountTestCases()
	}
}

func (p *CountTests) StartTest(e *hookrun.StartTestEvent) {
	p.current++
	p.session.Message(fmt.Sprintf("[%d/%d]  ", p.current, p.total), 2)
}
