package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOverrideInsertsNewKey(t *testing.T) {
	t.Parallel()
	original := map[string]interface{}{"a": 1}
	MergeOverride(original, map[string]interface{}{"b": 2})
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, original)
}

func TestMergeOverrideReplacesScalar(t *testing.T) {
	t.Parallel()
	original := map[string]interface{}{"a": 1}
	MergeOverride(original, map[string]interface{}{"a": 99})
	assert.Equal(t, map[string]interface{}{"a": 99}, original)
}

func TestMergeOverrideDeepMergesTables(t *testing.T) {
	t.Parallel()
	original := map[string]interface{}{
		"plugins": map[string]interface{}{
			"demo": map[string]interface{}{"interval": "1s", "enabled": true},
		},
	}
	override := map[string]interface{}{
		"plugins": map[string]interface{}{
			"demo": map[string]interface{}{"interval": "5s"},
		},
	}
	MergeOverride(original, override)

	demo := original["plugins"].(map[string]interface{})["demo"].(map[string]interface{})
	assert.Equal(t, "5s", demo["interval"])
	assert.Equal(t, true, demo["enabled"]) // untouched key survives the merge
}

func TestMergeOverrideTableReplacesNonTable(t *testing.T) {
	t.Parallel()
	original := map[string]interface{}{"a": "scalar"}
	override := map[string]interface{}{"a": map[string]interface{}{"nested": 1}}
	MergeOverride(original, override)
	assert.Equal(t, map[string]interface{}{"nested": 1}, original["a"])
}
