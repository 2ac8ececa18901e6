package agent

import (
	"sync"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

type sourceReg struct {
	plugin, element string
	factory         SourceFactory
}

type transformReg struct {
	plugin, element string
	factory         TransformFactory
}

type outputReg struct {
	plugin, element string
	factory         OutputFactory
}

// PipelineBuilder accumulates the sources, transforms and outputs plugins
// register during Start, plus the metric registry they all share, and
// turns them into a running Pipeline on Build. A plugin never sees this
// type directly; it goes through AlumetStart's Add* methods.
type PipelineBuilder struct {
	Registry *metrics.Registry

	// SourceChannelSize bounds the single channel every source writes its
	// flushed buffers into and the per-output broadcast queues; it is the
	// pipeline-wide backpressure budget before the drop-oldest policy
	// kicks in.
	SourceChannelSize int

	// Constraints are applied to every source's trigger Spec at Build time,
	// clamping a Periodic interval and/or rejecting Manual triggering
	// outright. The CLI sets these, typically from cmd.GeneralConfig
	// plus a command-specific override (the exec command always allows
	// manual triggering), via AfterPluginsStart.
	Constraints trigger.Constraints

	mu              sync.Mutex
	sources         []sourceReg
	transforms      []transformReg
	outputs         []outputReg
	metricListeners []metrics.MetricListener
}

// NewPipelineBuilder returns a builder with an empty registry and the
// documented default channel size.
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{
		Registry:          metrics.NewRegistry(),
		SourceChannelSize: 256,
	}
}

func (b *PipelineBuilder) AddSource(plugin, element string, factory SourceFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, sourceReg{plugin: plugin, element: element, factory: factory})
}

func (b *PipelineBuilder) AddTransform(plugin, element string, factory TransformFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transforms = append(b.transforms, transformReg{plugin: plugin, element: element, factory: factory})
}

func (b *PipelineBuilder) AddOutput(plugin, element string, factory OutputFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append(b.outputs, outputReg{plugin: plugin, element: element, factory: factory})
}

func (b *PipelineBuilder) AddMetricListener(l metrics.MetricListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metricListeners = append(b.metricListeners, l)
}

// Stats reports how many of each element kind are currently registered,
// used by the startup log summary.
type Stats struct {
	Sources         int
	Transforms      int
	Outputs         int
	MetricListeners int
}

func (b *PipelineBuilder) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Sources:         len(b.sources),
		Transforms:      len(b.transforms),
		Outputs:         len(b.outputs),
		MetricListeners: len(b.metricListeners),
	}
}

func (b *PipelineBuilder) channelSize() int {
	if b.SourceChannelSize <= 0 {
		return 256
	}
	return b.SourceChannelSize
}
