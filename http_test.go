package hookrun_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/raphi011/hookrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, config string) (*hookrun.Server, *httptest.Server) {
	t.Helper()

	s := session(t, nil, mixedModule())

	if config != "" {
		cfg, err := hookrun.ParseConfig([]byte(config))
		require.NoError(t, err)
		require.NoError(t, s.LoadPluginsFromConfig(cfg, true))
	}

	srv, err := s.NewServer("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

func get(t *testing.T, url, accept string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", accept)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })

	return res
}

func TestStartRunStoresTheRun(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, "")

	res, err := http.Post(ts.URL+"/runs", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusCreated, res.StatusCode)

	var run hookrun.RunRecord
	require.NoError(t, json.NewDecoder(res.Body).Decode(&run))

	assert.Equal(t, "http", run.TriggeredBy)
	assert.False(t, run.Successful)
	assert.Equal(t, 3, run.TestsRun)
	assert.Len(t, run.Tests, 3)

	res = get(t, ts.URL+"/runs/"+run.ID, "application/json")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var loaded hookrun.RunRecord
	require.NoError(t, json.NewDecoder(res.Body).Decode(&loaded))
	assert.Equal(t, run.ID, loaded.ID)
	require.Len(t, loaded.Tests, 3)
	assert.Equal(t, "m.A.fails", loaded.Tests[1].TestID)
	assert.Equal(t, hookrun.OutcomeFailed, loaded.Tests[1].Outcome)

	res = get(t, ts.URL+"/runs", "application/json")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var runs []hookrun.RunRecord
	require.NoError(t, json.NewDecoder(res.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestGetRunErrors(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, "")

	res := get(t, ts.URL+"/runs/not-a-uuid", "application/json")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = get(t, ts.URL+"/runs/"+uuid.NewString(), "application/json")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRunsAreRenderedAsHTML(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, "")

	run, err := srv.Run(context.Background(), "test")
	require.NoError(t, err)

	res := get(t, ts.URL+"/runs", "text/html")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `href="/runs/`+run.ID+`"`)

	res = get(t, ts.URL+"/runs/"+run.ID, "text/html")
	body, err = io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "m.A.fails")
	assert.Contains(t, string(body), "FAILED")
}

func TestMetricsAreExposed(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, "")

	_, err := srv.Run(context.Background(), "test")
	require.NoError(t, err)

	res := get(t, ts.URL+"/metrics", "text/plain")
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "hookrun_test_runs_total"))
}

func TestSchedulesAreReadFromTheHistorySection(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "[history]\nschedule = @every 1h\n  0 30 * * * *\n")

	runs, err := srv.ScheduleFromConfig()
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "@every 1h", runs[0].Schedule)
	assert.NotEqual(t, runs[0].EntryID, runs[1].EntryID)

	_, err = srv.Schedule("every now and then")
	assert.Error(t, err)
}
