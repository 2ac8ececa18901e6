// Package demo is a self-contained plugin exercising the minimal surface
// area a plugin needs: one metric and one manually-triggerable source. It
// exists for tests and as a reference a real plugin can be copied from.
package demo

import (
	"time"

	"github.com/alumet-dev/alumet/agent"
	"github.com/alumet-dev/alumet/config"
	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

const (
	PluginName    = "demo"
	PluginVersion = "0.1.0"
)

// Config is demo's own configuration: the constant value its source pushes
// on every manual trigger.
type Config struct {
	Value uint64 `toml:"value"`
}

func defaultConfig() Config {
	return Config{Value: 42}
}

// Metadata returns demo's PluginMetadata, for registration in a PluginSet.
func Metadata() agent.PluginMetadata {
	return agent.PluginMetadata{
		Name:    PluginName,
		Version: PluginVersion,
		New:     func() agent.Plugin { return &Plugin{} },
	}
}

// Plugin implements agent.Plugin. It registers one metric, test_metric,
// and one source, pusher, that pushes Value once per manual trigger.
type Plugin struct {
	cfg    Config
	metric metrics.MetricID
}

var _ agent.Plugin = (*Plugin)(nil)

func (p *Plugin) Name() string    { return PluginName }
func (p *Plugin) Version() string { return PluginVersion }

func (p *Plugin) DefaultConfig() (*config.Table, error) {
	text, err := config.MarshalDefault(defaultConfig())
	if err != nil {
		return nil, err
	}
	return config.ParseTable(text)
}

func (p *Plugin) Init(cfg *config.Table) error {
	p.cfg = defaultConfig()
	if cfg != nil {
		if err := cfg.Decode(&p.cfg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) Start(ctx *agent.AlumetStart) error {
	id, err := ctx.Builder.Registry.Register("test_metric", "", metrics.U64, metrics.UnitUnity, metrics.Strict)
	if err != nil {
		return err
	}
	p.metric = id

	ctx.AddSource("pusher", func(ectx *agent.ElementBuildContext) (pipeline.Source, trigger.Spec, error) {
		m, _ := ectx.Registry.ByID(p.metric)
		src := &source{metric: m, value: p.cfg.Value}
		spec := trigger.Spec{
			Kind:               trigger.Manual,
			FlushRounds:        1,
			UpdateRounds:       1,
			AllowManualTrigger: true,
		}
		return src, spec, nil
	})
	return nil
}

func (p *Plugin) PrePipelineStart(ctx *agent.AlumetPreStart) error   { return nil }
func (p *Plugin) PostPipelineStart(ctx *agent.AlumetPostStart) error { return nil }
func (p *Plugin) Stop() error                                       { return nil }

// source pushes one point carrying value every time it is polled.
type source struct {
	metric *metrics.Metric
	value  uint64
}

func (s *source) Poll(acc *metrics.MeasurementAccumulator, timestamp time.Time) error {
	p, err := metrics.NewPoint(s.metric, timestamp, metrics.LocalMachineResource, metrics.LocalMachineResource, metrics.NewU64Value(s.value))
	if err != nil {
		return err
	}
	acc.Push(p)
	return nil
}
