package plugin

import (
	"fmt"

	"github.com/raphi011/hookrun"
)

func init() {
	hookrun.RegisterPluginModule(hookrun.PluginModule{
		Name:  "timed",
		Types: []hookrun.PluginConstructor{NewTimedTests},
	})
}

// TimedTests prints the time taken by every test that ran at least
// `threshold` seconds.
type TimedTests struct {
	session   *hookrun.Session
	threshold float64
}

func NewTimedTests(s *hookrun.Session) (hookrun.Plugin, error) {
	threshold, err := s.Config("timed").AsFloat("threshold", 0)
	if err != nil {
		return nil, err
	}

	return &TimedTests{session: s, threshold: threshold}, nil
}

func (p *TimedTests) Name() string {
	return "timed"
}

func (p *TimedTests) ConfigSection() string {
	return "timed"
}

func (p *TimedTests) CommandLineSwitch() hookrun.Switch {
	return hookrun.Switch{Short: "T", Long: "timed", Help: "Output time taken for each test"}
}

func (p *TimedTests) StopTest(e *hookrun.StopTestEvent) {
	if taken := e.TimeTaken.Seconds(); taken >= p.threshold {
		p.session.Message(fmt.Sprintf("  %.2f seconds  ", taken), 2)
	}
}
