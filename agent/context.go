package agent

import (
	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

// ElementBuildContext is handed to a source/transform/output factory at
// build time: just enough to resolve metrics and know which plugin is
// building the element.
type ElementBuildContext struct {
	Plugin   string
	Registry *metrics.Registry
}

// SourceFactory builds one source and its initial trigger spec. It runs
// during the pipeline's build phase, after every plugin's Start and
// PrePipelineStart have already registered metrics, so metric ids it needs
// are guaranteed to already exist.
type SourceFactory func(ctx *ElementBuildContext) (pipeline.Source, trigger.Spec, error)

// TransformFactory builds one transform.
type TransformFactory func(ctx *ElementBuildContext) (pipeline.Transform, error)

// OutputFactory builds one output sink.
type OutputFactory func(ctx *ElementBuildContext) (output.Blocking, error)

// PreStartAction is registered by a plugin during Start and run during the
// pre-pipeline-start phase, after that plugin's own PrePipelineStart.
type PreStartAction func(ctx *AlumetPreStart) error

// PostStartAction is registered by a plugin during Start and run during the
// post-pipeline-start phase, after that plugin's own PostPipelineStart.
type PostStartAction func(ctx *AlumetPostStart) error

type preStartEntry struct {
	plugin string
	action PreStartAction
}

type postStartEntry struct {
	plugin string
	action PostStartAction
}

// AlumetStart is the context passed to Plugin.Start: mutable access to the
// pipeline builder, and the ability to register pre/post-start actions
// tied to the calling plugin's own name.
type AlumetStart struct {
	CurrentPlugin string
	Builder       *PipelineBuilder

	preActions  *[]preStartEntry
	postActions *[]postStartEntry
}

func (c *AlumetStart) AddSource(element string, factory SourceFactory) {
	c.Builder.AddSource(c.CurrentPlugin, element, factory)
}

func (c *AlumetStart) AddTransform(element string, factory TransformFactory) {
	c.Builder.AddTransform(c.CurrentPlugin, element, factory)
}

func (c *AlumetStart) AddOutput(element string, factory OutputFactory) {
	c.Builder.AddOutput(c.CurrentPlugin, element, factory)
}

func (c *AlumetStart) AddMetricListener(l metrics.MetricListener) {
	c.Builder.AddMetricListener(l)
}

// RegisterPreStartAction queues f to run during the pre-pipeline-start
// phase, right after this plugin's own PrePipelineStart hook.
func (c *AlumetStart) RegisterPreStartAction(f PreStartAction) {
	*c.preActions = append(*c.preActions, preStartEntry{plugin: c.CurrentPlugin, action: f})
}

// RegisterPostStartAction queues f to run during the post-pipeline-start
// phase, right after this plugin's own PostPipelineStart hook.
func (c *AlumetStart) RegisterPostStartAction(f PostStartAction) {
	*c.postActions = append(*c.postActions, postStartEntry{plugin: c.CurrentPlugin, action: f})
}

// AlumetPreStart is the context passed to Plugin.PrePipelineStart and to
// any PreStartAction: the pipeline builder is still mutable at this point,
// but every plugin's Start has already run.
type AlumetPreStart struct {
	CurrentPlugin string
	Builder       *PipelineBuilder
}

// AlumetPostStart is the context passed to Plugin.PostPipelineStart and to
// any PostStartAction: the pipeline is now running, typically used by a
// plugin to stash the control handle for later use (e.g. an exec command
// triggering a source manually).
type AlumetPostStart struct {
	CurrentPlugin string
	Pipeline      *Pipeline
}

func groupPreActions(entries []preStartEntry) map[string][]PreStartAction {
	grouped := make(map[string][]PreStartAction, len(entries))
	for _, e := range entries {
		grouped[e.plugin] = append(grouped[e.plugin], e.action)
	}
	return grouped
}

func groupPostActions(entries []postStartEntry) map[string][]PostStartAction {
	grouped := make(map[string][]PostStartAction, len(entries))
	for _, e := range entries {
		grouped[e.plugin] = append(grouped[e.plugin], e.action)
	}
	return grouped
}
