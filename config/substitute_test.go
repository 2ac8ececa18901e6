package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvNoSubstitution(t *testing.T) {
	t.Parallel()
	out, err := SubstituteEnv("plain text, no variables here")
	require.NoError(t, err)
	assert.Equal(t, "plain text, no variables here", out)
}

func TestSubstituteEnvBasic(t *testing.T) {
	t.Setenv("ALUMET_TEST_VAR", "hello")
	out, err := SubstituteEnv("value = \"${ALUMET_TEST_VAR}\"")
	require.NoError(t, err)
	assert.Equal(t, "value = \"hello\"", out)
}

func TestSubstituteEnvMultiple(t *testing.T) {
	t.Setenv("ALUMET_TEST_A", "foo")
	t.Setenv("ALUMET_TEST_B", "bar")
	out, err := SubstituteEnv("a = \"${ALUMET_TEST_A}\"\nb = \"${ALUMET_TEST_B}\"")
	require.NoError(t, err)
	assert.Equal(t, "a = \"foo\"\nb = \"bar\"", out)
}

func TestSubstituteEnvEscaped(t *testing.T) {
	t.Parallel()
	out, err := SubstituteEnv(`value = "\${NOT_A_VAR}"`)
	require.NoError(t, err)
	assert.Equal(t, `value = "${NOT_A_VAR}"`, out)
}

func TestSubstituteEnvEscapedUnescapedMix(t *testing.T) {
	t.Setenv("ALUMET_TEST_VAR", "real")
	out, err := SubstituteEnv(`a = "\${NOT_A_VAR}" b = "${ALUMET_TEST_VAR}"`)
	require.NoError(t, err)
	assert.Equal(t, `a = "${NOT_A_VAR}" b = "real"`, out)
}

func TestSubstituteEnvUnclosed(t *testing.T) {
	t.Parallel()
	_, err := SubstituteEnv("value = \"${UNCLOSED_FOREVER")
	require.Error(t, err)
}

func TestSubstituteEnvMissingVariable(t *testing.T) {
	t.Parallel()
	_, err := SubstituteEnv("value = \"${ALUMET_DEFINITELY_UNSET_VAR}\"")
	require.Error(t, err)
}
