package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderReadsExistingFile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "alumet-config.toml", []byte("max_update_interval = \"1s\"\n"), 0o644))

	parsed, err := NewLoader(fs, "alumet-config.toml").Load()
	require.NoError(t, err)
	assert.Equal(t, "1s", parsed["max_update_interval"])
}

func TestLoaderFallsBackToDefaultAndSaves(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	loader := NewLoader(fs, "missing.toml").OrDefault(func() (string, error) {
		return "max_update_interval = \"2s\"\n", nil
	}, true)

	parsed, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "2s", parsed["max_update_interval"])

	saved, err := afero.ReadFile(fs, "missing.toml")
	require.NoError(t, err)
	assert.Contains(t, string(saved), "2s")
}

func TestLoaderFailsWithoutDefaultWhenFileMissing(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	_, err := NewLoader(fs, "missing.toml").Load()
	require.Error(t, err)
}

func TestLoaderAppliesOverride(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "alumet-config.toml", []byte("max_update_interval = \"1s\"\n"), 0o644))

	loader := NewLoader(fs, "alumet-config.toml").WithOverride(map[string]interface{}{"max_update_interval": "10s"})
	parsed, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "10s", parsed["max_update_interval"])
}

func TestLoaderSubstitutesEnvBeforeParsing(t *testing.T) {
	t.Setenv("ALUMET_TEST_INTERVAL", "42s")
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "alumet-config.toml", []byte("max_update_interval = \"${ALUMET_TEST_INTERVAL}\"\n"), 0o644))

	loader := NewLoader(fs, "alumet-config.toml").SubstituteEnvVariables(true)
	parsed, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "42s", parsed["max_update_interval"])
}
