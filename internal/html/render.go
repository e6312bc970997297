package html

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/raphi011/hookrun/internal/html/util"
	"github.com/raphi011/hookrun/internal/model"
)

//go:embed run.tmpl
var runTemplate string

//go:embed runs.tmpl
var runsTemplate string

var templatesByName map[string]*template.Template

var funcs = template.FuncMap{
	"relativeTime": util.FormatRelativeTime,
	"duration":     util.FormatDuration,
	"counts":       countsLine,
}

func init() {
	templatesByName = make(map[string]*template.Template)

	templates := []struct {
		name     string
		template string
	}{
		{name: "run", template: runTemplate},
		{name: "runs", template: runsTemplate},
	}

	for _, t := range templates {
		template, err := template.New(t.name).Funcs(funcs).Parse(t.template)
		if err != nil {
			panic(fmt.Sprintf("unable to parse html template %s: %v", t.name, err))
		}

		templatesByName[t.name] = template
	}
}

func RenderRun(run model.RunRecord, w io.Writer) error {
	return templatesByName["run"].Execute(w, run)
}

func RenderRuns(runs []model.RunRecord, w io.Writer) error {
	return templatesByName["runs"].Execute(w, runs)
}

// countsLine formats the number of tests per outcome, skipping outcomes
// without tests.
func countsLine(run model.RunRecord) string {
	counts := run.Counts()

	line := ""
	for _, o := range model.Outcomes {
		if counts[o] == 0 {
			continue
		}
		if line != "" {
			line += ", "
		}
		line += fmt.Sprintf("%s=%d", o, counts[o])
	}

	return line
}
