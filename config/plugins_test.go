package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPluginsConfigEnabledDisabled(t *testing.T) {
	t.Parallel()
	cfg := map[string]interface{}{
		"global_option": "kept",
		"plugins": map[string]interface{}{
			"a": map[string]interface{}{"enabled": false, "key": "value"},
			"b": map[string]interface{}{"option": int64(123)},
		},
	}

	plugins, err := ExtractPluginsConfig(cfg)
	require.NoError(t, err)

	assert.False(t, plugins["a"].Enabled)
	assert.Equal(t, "value", plugins["a"].Table["key"])
	assert.NotContains(t, plugins["a"].Table, "enabled")

	assert.True(t, plugins["b"].Enabled) // no key present, defaults to enabled
	assert.Equal(t, int64(123), plugins["b"].Table["option"])

	assert.Equal(t, "kept", cfg["global_option"])
	assert.NotContains(t, cfg, "plugins")
}

func TestExtractPluginsConfigEnableFallbackKey(t *testing.T) {
	t.Parallel()
	cfg := map[string]interface{}{
		"plugins": map[string]interface{}{
			"c": map[string]interface{}{"enable": false},
		},
	}
	plugins, err := ExtractPluginsConfig(cfg)
	require.NoError(t, err)
	assert.False(t, plugins["c"].Enabled)
	assert.NotContains(t, plugins["c"].Table, "enable")
}

func TestExtractPluginsConfigNoPluginsTable(t *testing.T) {
	t.Parallel()
	cfg := map[string]interface{}{"global_option": 1}
	plugins, err := ExtractPluginsConfig(cfg)
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

func TestExtractPluginsConfigRejectsNonTablePlugins(t *testing.T) {
	t.Parallel()
	cfg := map[string]interface{}{"plugins": "not a table"}
	_, err := ExtractPluginsConfig(cfg)
	require.Error(t, err)
}

func TestExtractPluginsConfigRejectsNonBoolEnabled(t *testing.T) {
	t.Parallel()
	cfg := map[string]interface{}{
		"plugins": map[string]interface{}{
			"a": map[string]interface{}{"enabled": "yes"},
		},
	}
	_, err := ExtractPluginsConfig(cfg)
	require.Error(t, err)
}
