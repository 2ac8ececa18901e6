// Package agent implements the plugin lifecycle and the three-phase
// startup/shutdown sequence that turns a set of plugins into a running
// measurement pipeline.
package agent

import (
	"fmt"

	"github.com/alumet-dev/alumet/config"
)

// Plugin is the unit a plugin package registers with the builder: a
// loadable source of metrics, sources, transforms and/or outputs, plus a
// lifecycle the builder drives in a fixed order.
type Plugin interface {
	Name() string
	Version() string
	DefaultConfig() (*config.Table, error)
	Init(cfg *config.Table) error
	Start(ctx *AlumetStart) error
	PrePipelineStart(ctx *AlumetPreStart) error
	PostPipelineStart(ctx *AlumetPostStart) error
	Stop() error
}

// PluginMetadata identifies a plugin before it exists: its declared name
// and version, and a factory that produces a fresh, not-yet-initialized
// instance. The factory indirection is what lets PluginSet hold several
// plugins of the same Go type (e.g. in tests) without them sharing state.
type PluginMetadata struct {
	Name    string
	Version string
	New     func() Plugin
}

// PluginInfo bundles one plugin's metadata with its enabled flag and its
// extracted config sub-table, exactly as produced by
// config.ExtractPluginsConfig plus a PluginSet registration.
type PluginInfo struct {
	Metadata PluginMetadata
	Enabled  bool
	Config   *config.Table
}

// PluginSet is the ordered collection of plugins a Builder starts from.
// Insertion order is preserved and drives every phase of startup, so that
// two runs with the same registration order behave identically.
type PluginSet struct {
	order []string
	infos map[string]PluginInfo
}

// NewPluginSet returns an empty set.
func NewPluginSet() *PluginSet {
	return &PluginSet{infos: make(map[string]PluginInfo)}
}

// Add registers one plugin. Adding the same name twice replaces the
// previous registration but keeps its original position in iteration
// order.
func (s *PluginSet) Add(metadata PluginMetadata, enabled bool, cfg *config.Table) {
	if _, exists := s.infos[metadata.Name]; !exists {
		s.order = append(s.order, metadata.Name)
	}
	if cfg == nil {
		cfg = config.EmptyTable()
	}
	s.infos[metadata.Name] = PluginInfo{Metadata: metadata, Enabled: enabled, Config: cfg}
}

// partition splits the set into enabled and disabled PluginInfo slices,
// both in registration order.
func (s *PluginSet) partition() (enabled, disabled []PluginInfo) {
	for _, name := range s.order {
		info := s.infos[name]
		if info.Enabled {
			enabled = append(enabled, info)
		} else {
			disabled = append(disabled, info)
		}
	}
	return enabled, disabled
}

// initPlugin instantiates and initializes one enabled plugin, verifying
// that the result still reports the metadata it was registered under.
func initPlugin(info PluginInfo) (Plugin, error) {
	p := info.Metadata.New()
	if err := p.Init(info.Config); err != nil {
		return nil, fmt.Errorf("plugin failed to initialize: %s v%s: %w", info.Metadata.Name, info.Metadata.Version, err)
	}
	if p.Name() != info.Metadata.Name || p.Version() != info.Metadata.Version {
		return nil, fmt.Errorf(
			"invalid plugin: metadata is %q v%s but the plugin's methods return %q v%s",
			info.Metadata.Name, info.Metadata.Version, p.Name(), p.Version(),
		)
	}
	return p, nil
}
