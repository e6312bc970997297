package hookrun_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raphi011/hookrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginsAreMergedAcrossFilesMinusExcluded(t *testing.T) {
	t.Parallel()

	cfg, err := hookrun.ParseConfig(
		[]byte("[unittest]\nplugins = a\n  b\n"),
		[]byte("[unittest]\nplugins = c\nexcluded-plugins = b\n"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, cfg.Plugins())
}

func TestLaterSourcesOverrideEarlierValues(t *testing.T) {
	t.Parallel()

	cfg, err := hookrun.ParseConfig(
		[]byte("[timed]\nthreshold = 1\nalways-on = true\n"),
		[]byte("[timed]\nthreshold = 2.5\n"),
	)
	require.NoError(t, err)

	threshold, err := cfg.Section("timed").AsFloat("threshold", 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, threshold, 0.0001)

	alwaysOn, err := cfg.Section("timed").AsBool("always-on", false)
	require.NoError(t, err)
	assert.True(t, alwaysOn)
}

func TestAsBool(t *testing.T) {
	t.Parallel()

	cfg, err := hookrun.ParseConfig([]byte("[s]\na = Yes\nb = off\nc = 1\nd = maybe\nKey = on\n"))
	require.NoError(t, err)

	section := cfg.Section("s")

	for key, expected := range map[string]bool{"a": true, "b": false, "c": true, "key": true, "missing": false} {
		v, err := section.AsBool(key, false)
		require.NoError(t, err, key)
		assert.Equal(t, expected, v, key)
	}

	_, err = section.AsBool("d", false)

	var cfgErr hookrun.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "d", cfgErr.Key)
	assert.Equal(t, "maybe", cfgErr.Value)
}

func TestAsTriDistinguishesUnsetKeys(t *testing.T) {
	t.Parallel()

	cfg, err := hookrun.ParseConfig([]byte("[s]\nset = false\n"))
	require.NoError(t, err)

	v, err := cfg.Section("s").AsTri("set")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)

	v, err = cfg.Section("s").AsTri("unset")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAsListSplitsLines(t *testing.T) {
	t.Parallel()

	cfg, err := hookrun.ParseConfig([]byte("[filtertests]\nfilter = ^files\\.\n  Network\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{`^files\.`, "Network"}, cfg.Section("filtertests").AsList("filter"))
	assert.Empty(t, cfg.Section("filtertests").AsList("missing"))
	assert.Empty(t, cfg.Section("missing").Keys())
}

func TestAsIntReportsMalformedValues(t *testing.T) {
	t.Parallel()

	cfg, err := hookrun.ParseConfig([]byte("[unittest]\nverbosity = loud\n"))
	require.NoError(t, err)

	_, err = cfg.Section(hookrun.GlobalSection).AsInt("verbosity", 1)
	assert.ErrorAs(t, err, &hookrun.ConfigError{})
}

func TestLoadConfigReadsExplicitFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.cfg"), []byte("[unittest]\nplugins = b\n"), 0o600))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(sub, hookrun.CfgName), []byte("[unittest]\nplugins = c\n"), 0o600))

	cfg, err := hookrun.LoadConfig(true, "extra.cfg", sub)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, cfg.Plugins())
	assert.Len(t, cfg.Sources, 2)
}

func TestLoadConfigFailsForMissingExplicitLocations(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := hookrun.LoadConfig(true, "does-not-exist.cfg")

	var locErr hookrun.ConfigLocationError
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, "does-not-exist.cfg", locErr.Path)
}

func TestLoadConfigSkipsMissingDefaultLocations(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := hookrun.LoadConfig(true)
	require.NoError(t, err)

	assert.Empty(t, cfg.Sources)
	assert.Empty(t, cfg.Plugins())
}
