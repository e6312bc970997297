package html

import (
	"bytes"
	"testing"
	"time"

	"github.com/raphi011/hookrun/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun() model.RunRecord {
	start := time.Now().Add(-2 * time.Hour)

	return model.RunRecord{
		ID:           "4d2c1e0a-8f0b-4f5e-9a51-3f9d0c7b6a21",
		TriggeredBy:  "scheduled",
		TestsRun:     3,
		Start:        start,
		End:          start.Add(1500 * time.Millisecond),
		DurationInMS: 1500,
		Tests: []model.TestRecord{
			{TestID: "m.A.passes", Outcome: model.OutcomePassed},
			{TestID: "m.A.fails", Outcome: model.OutcomeFailed, Details: "<boom>"},
			{TestID: "m.A.skips", Outcome: model.OutcomeSkipped, Details: "not today"},
		},
	}
}

func TestRenderRun(t *testing.T) {
	w := &bytes.Buffer{}

	require.NoError(t, RenderRun(testRun(), w))

	assert.Contains(t, w.String(), "FAILED: ran 3 tests")
	assert.Contains(t, w.String(), "passed=1, failed=1, skipped=1")
	assert.Contains(t, w.String(), "Triggered by scheduled 2 h ago")
	assert.Contains(t, w.String(), "<td>m.A.fails</td>")
	assert.Contains(t, w.String(), "&lt;boom&gt;")
}

func TestRenderRuns(t *testing.T) {
	w := &bytes.Buffer{}

	run := testRun()
	run.Successful = true

	require.NoError(t, RenderRuns([]model.RunRecord{run}, w))

	assert.Contains(t, w.String(), `<a href="/runs/`+run.ID+`">`)
	assert.Contains(t, w.String(), "<td>OK</td>")
}
