package agent

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Callbacks holds the single-shot hooks an agent.Builder user can set to
// run code interleaved with the startup phases, without having to write a
// Plugin for it. Each is nil by default, i.e. a no-op.
type Callbacks struct {
	AfterPluginsInit     func(plugins []Plugin)
	AfterPluginsStart    func(builder *PipelineBuilder)
	BeforeOperationBegin func(builder *PipelineBuilder)
	AfterOperationBegin  func(pipeline *Pipeline)
}

// Builder drives the agent's three-phase startup: it owns the plugin set,
// the pipeline builder plugins register into, and the callbacks.
type Builder struct {
	plugins         *PluginSet
	pipelineBuilder *PipelineBuilder
	callbacks       Callbacks
	logger          logrus.FieldLogger
}

// NewBuilder returns a Builder with a fresh, default-configured pipeline
// builder.
func NewBuilder(plugins *PluginSet, logger logrus.FieldLogger) *Builder {
	return FromPipelineBuilder(plugins, NewPipelineBuilder(), logger)
}

// FromPipelineBuilder returns a Builder over a caller-supplied pipeline
// builder, for callers that need to customize its settings (channel size,
// registry) before plugins start registering elements into it.
func FromPipelineBuilder(plugins *PluginSet, pipelineBuilder *PipelineBuilder, logger logrus.FieldLogger) *Builder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Builder{plugins: plugins, pipelineBuilder: pipelineBuilder, logger: logger}
}

func (b *Builder) AfterPluginsInit(f func([]Plugin)) *Builder {
	b.callbacks.AfterPluginsInit = f
	return b
}

func (b *Builder) AfterPluginsStart(f func(*PipelineBuilder)) *Builder {
	b.callbacks.AfterPluginsStart = f
	return b
}

func (b *Builder) BeforeOperationBegin(f func(*PipelineBuilder)) *Builder {
	b.callbacks.BeforeOperationBegin = f
	return b
}

func (b *Builder) AfterOperationBegin(f func(*Pipeline)) *Builder {
	b.callbacks.AfterOperationBegin = f
	return b
}

// BuildAndStart runs the full startup sequence: init every enabled plugin
// in order, start them, run their pre-pipeline-start hooks, build and
// start the pipeline, then run post-pipeline-start hooks. It aborts on the
// first error at any phase; phases already completed are not rolled back,
// matching the upstream agent's "first such error with context" policy.
func (b *Builder) BuildAndStart() (*RunningAgent, error) {
	logger := b.logger

	logger.Info("Initializing the plugins...")
	enabled, disabled := b.plugins.partition()

	initialized := make([]Plugin, 0, len(enabled))
	for _, info := range enabled {
		p, err := initPlugin(info)
		if err != nil {
			return nil, err
		}
		initialized = append(initialized, p)
	}
	logInitSummary(logger, len(initialized), len(disabled))
	if b.callbacks.AfterPluginsInit != nil {
		b.callbacks.AfterPluginsInit(initialized)
	}

	logger.Info("Starting the plugins...")
	var preActions []preStartEntry
	var postActions []postStartEntry
	for _, p := range initialized {
		ctx := &AlumetStart{
			CurrentPlugin: p.Name(),
			Builder:       b.pipelineBuilder,
			preActions:    &preActions,
			postActions:   &postActions,
		}
		if err := p.Start(ctx); err != nil {
			return nil, fmt.Errorf("plugin failed to start: %s v%s: %w", p.Name(), p.Version(), err)
		}
	}
	printStats(logger, b.pipelineBuilder, initialized, disabled)
	if b.callbacks.AfterPluginsStart != nil {
		b.callbacks.AfterPluginsStart(b.pipelineBuilder)
	}

	logger.Info("Running pre-pipeline-start hooks...")
	preByPlugin := groupPreActions(preActions)
	for _, p := range initialized {
		ctx := &AlumetPreStart{CurrentPlugin: p.Name(), Builder: b.pipelineBuilder}
		if err := p.PrePipelineStart(ctx); err != nil {
			return nil, fmt.Errorf("plugin pre_pipeline_start failed: %s v%s: %w", p.Name(), p.Version(), err)
		}
		for _, action := range preByPlugin[p.Name()] {
			if err := action(ctx); err != nil {
				return nil, fmt.Errorf("plugin pre-pipeline-start action failed: %s v%s: %w", p.Name(), p.Version(), err)
			}
		}
	}
	if b.callbacks.BeforeOperationBegin != nil {
		b.callbacks.BeforeOperationBegin(b.pipelineBuilder)
	}

	logger.Info("Starting the measurement pipeline...")
	pl, err := b.pipelineBuilder.Build(logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline failed to build: %w", err)
	}
	logger.Info("ALUMET measurement pipeline has started.")

	logger.Info("Running post-pipeline-start hooks...")
	postByPlugin := groupPostActions(postActions)
	for _, p := range initialized {
		ctx := &AlumetPostStart{CurrentPlugin: p.Name(), Pipeline: pl}
		if err := p.PostPipelineStart(ctx); err != nil {
			return nil, fmt.Errorf("plugin post_pipeline_start method failed: %s v%s: %w", p.Name(), p.Version(), err)
		}
		for _, action := range postByPlugin[p.Name()] {
			if err := action(ctx); err != nil {
				return nil, fmt.Errorf("plugin post-pipeline-start action failed: %s v%s: %w", p.Name(), p.Version(), err)
			}
		}
	}
	if b.callbacks.AfterOperationBegin != nil {
		b.callbacks.AfterOperationBegin(pl)
	}

	logger.Info("ALUMET agent is ready.")

	return &RunningAgent{Pipeline: pl, InitializedPlugins: initialized, logger: logger}, nil
}

// logInitSummary logs the exact phrasing scenario 1 asserts on: a fully
// empty agent must log "No plugin has been initialized" verbatim.
func logInitSummary(logger logrus.FieldLogger, nInitialized, nDisabled int) {
	switch {
	case nInitialized == 0 && nDisabled == 0:
		logger.Warn("No plugin has been initialized, there may be a problem with your agent implementation. Please check your builder.")
	case nInitialized == 0:
		logger.Warn("No plugin has been initialized because they were all disabled in the config. Please check your configuration.")
	case nInitialized == 1:
		logger.Info("1 plugin initialized.")
	default:
		logger.Infof("%d plugins initialized.", nInitialized)
	}
}
