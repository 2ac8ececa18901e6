package config

import "fmt"

// PluginConfig is one plugin's extracted startup configuration: whether it
// is enabled, and its own config subsection with the enabled/enable key
// already removed.
type PluginConfig struct {
	Enabled bool
	Table   map[string]interface{}
}

// ErrBadType is returned when a config value has a different shape than
// expected (e.g. `plugins.foo` is not a table, or `plugins.foo.enabled` is
// not a boolean).
type ErrBadType struct {
	Path     string
	Expected string
}

func (e *ErrBadType) Error() string {
	return fmt.Sprintf("%s: expected %s", e.Path, e.Expected)
}

// ExtractPluginsConfig removes the top-level "plugins" table from config
// and returns one PluginConfig per plugin section, keyed by plugin name.
// Each section's "enabled" key (or, if absent, its "enable" key) is read
// and removed; a section with neither key defaults to enabled. config is
// mutated in place: the "plugins" key is gone from it afterwards, leaving
// only the agent's own global settings.
func ExtractPluginsConfig(config map[string]interface{}) (map[string]PluginConfig, error) {
	raw, ok := config["plugins"]
	delete(config, "plugins")
	if !ok {
		return map[string]PluginConfig{}, nil
	}

	pluginsTable, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &ErrBadType{Path: "plugins", Expected: "table"}
	}

	result := make(map[string]PluginConfig, len(pluginsTable))
	for name, section := range pluginsTable {
		pc, err := processPluginSection(name, section)
		if err != nil {
			return nil, err
		}
		result[name] = pc
	}
	return result, nil
}

func processPluginSection(name string, section interface{}) (PluginConfig, error) {
	table, ok := section.(map[string]interface{})
	if !ok {
		return PluginConfig{}, &ErrBadType{Path: fmt.Sprintf("plugins.%s", name), Expected: "table"}
	}

	enabledRaw, hasEnabled := table["enabled"]
	if !hasEnabled {
		enabledRaw, hasEnabled = table["enable"]
		delete(table, "enable")
	} else {
		delete(table, "enabled")
	}

	if !hasEnabled {
		return PluginConfig{Enabled: true, Table: table}, nil
	}

	enabled, ok := enabledRaw.(bool)
	if !ok {
		return PluginConfig{}, &ErrBadType{Path: fmt.Sprintf("plugins.%s.enabled", name), Expected: "boolean"}
	}
	return PluginConfig{Enabled: enabled, Table: table}, nil
}
