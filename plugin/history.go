package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raphi011/hookrun"
	"github.com/raphi011/hookrun/internal/storage"
)

func init() {
	hookrun.RegisterPluginModule(hookrun.PluginModule{
		Name:  "history",
		Types: []hookrun.PluginConstructor{NewHistory},
	})
}

// History stores every command line run in the sqlite database at
// `path`. Runs started by a server are stored by the server itself.
type History struct {
	session *hookrun.Session
	path    string
	storage *storage.Storage
	start   time.Time
}

func NewHistory(s *hookrun.Session) (hookrun.Plugin, error) {
	return &History{
		session: s,
		path:    s.Config("history").AsStr("path", "hookrun.db"),
	}, nil
}

func (p *History) Name() string {
	return "history"
}

func (p *History) ConfigSection() string {
	return "history"
}

func (p *History) CommandLineSwitch() hookrun.Switch {
	return hookrun.Switch{Short: "H", Long: "history", Help: "Store the run in the run history"}
}

func (p *History) Activate() error {
	s, err := storage.New(p.path, p.session.Log())
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}

	p.storage = s

	return nil
}

func (p *History) Deactivate() {
	if p.storage == nil {
		return
	}

	if err := p.storage.Close(); err != nil {
		p.session.Log().Warn("closing run history failed", "error", err)
	}
	p.storage = nil
}

func (p *History) StartTestRun(e *hookrun.StartTestRunEvent) {
	p.start = e.StartTime
}

func (p *History) StopTestRun(e *hookrun.StopTestRunEvent) {
	if e.Runner.TriggeredBy != "cli" || p.storage == nil {
		return
	}

	record := hookrun.NewRunRecord(uuid.NewString(), e.Runner.TriggeredBy, e.Result, p.start, e.StopTime)

	if err := p.storage.SaveRun(context.Background(), record); err != nil {
		p.session.Log().Error("storing run failed", "error", err)
		return
	}

	p.session.Message(fmt.Sprintf("Run stored as %s\n", record.ID), 2)
}

// Storage returns the run history while the plugin is active.
func (p *History) Storage() *storage.Storage {
	return p.storage
}
