package plugin

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/raphi011/hookrun"
)

func init() {
	hookrun.RegisterPluginModule(hookrun.PluginModule{
		Name:  "logchannels",
		Types: []hookrun.PluginConstructor{NewLogChannels},
	})
}

// LogChannels moves the runner messages of the selected verbosity
// channels from the output stream into the log.
type LogChannels struct {
	session  *hookrun.Session
	values   []string
	channels []int
	log      *slog.Logger
}

func NewLogChannels(s *hookrun.Session) (hookrun.Plugin, error) {
	p := &LogChannels{
		session: s,
		values:  s.Config("logchannels").AsList("channel"),
		log:     s.Log().With("plugin", "logchannels"),
	}

	if err := s.AddListOption(&p.values, "", "channel", "enable a log channel for output"); err != nil {
		return nil, err
	}

	if err := s.RegisterPlugin(p); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *LogChannels) Name() string {
	return "logchannels"
}

func (p *LogChannels) PluginsLoaded(_ *hookrun.PluginsLoadedEvent) {
	p.channels = []int{}

	for _, v := range p.values {
		channel, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			p.log.Warn("ignoring invalid channel", "channel", v)
			continue
		}
		p.channels = append(p.channels, channel)
	}

	if len(p.channels) == 0 {
		p.session.UnregisterPlugin(p)
	}
}

func (p *LogChannels) Message(e *hookrun.MessageEvent) {
	for _, v := range e.Verbosity {
		if slices.Contains(p.channels, v) {
			e.SetHandled()
			p.log.Info(strings.TrimRight(e.Message, "\n"), "channel", v)
			return
		}
	}
}
