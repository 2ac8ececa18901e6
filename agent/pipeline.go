package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/pipeline/control"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

// Pipeline is a running measurement pipeline: a fixed set of source,
// transform and output tasks wired together and reachable through a
// control.Handle. It is built once by PipelineBuilder.Build and torn down
// once by WaitForShutdown.
type Pipeline struct {
	registry *metrics.Registry
	control  *control.Handle

	ctx    context.Context
	cancel context.CancelFunc

	sources       []*pipeline.SourceController
	outputs       []*pipeline.OutputController
	transformStop chan struct{}
	done          []<-chan error
}

// Control returns the handle plugins and the CLI use to pause, resume,
// reconfigure or stop individual elements while the pipeline runs.
func (p *Pipeline) Control() *control.Handle { return p.control }

// Registry returns the shared metric registry.
func (p *Pipeline) Registry() *metrics.Registry { return p.registry }

// Build wires every registered source, transform and output into a running
// Pipeline: one shared channel from sources into the transform task, one
// Broadcaster fanning the transform task's output out to every output
// task. Factories run in registration order; a factory error aborts the
// build and cancels anything already started.
func (b *PipelineBuilder) Build(logger logrus.FieldLogger) (*Pipeline, error) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := control.New(cancel)

	sourceOut := make(chan *metrics.MeasurementBuffer, b.channelSize())
	bcast := pipeline.NewBroadcaster()
	transformStop := make(chan struct{})

	p := &Pipeline{
		registry:      b.Registry,
		control:       handle,
		ctx:           ctx,
		cancel:        cancel,
		transformStop: transformStop,
	}

	entries := make([]pipeline.NamedTransform, 0, len(b.transforms))
	for _, reg := range b.transforms {
		t, err := reg.factory(&ElementBuildContext{Plugin: reg.plugin, Registry: b.Registry})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("building transform %s/%s: %w", reg.plugin, reg.element, err)
		}
		entries = append(entries, pipeline.NamedTransform{
			Name:      pipeline.NewTransformName(reg.plugin, reg.element),
			Transform: t,
		})
	}
	transformControllers, transformDone, err := pipeline.StartTransformTask(entries, sourceOut, bcast.Send, transformStop, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting transform task: %w", err)
	}
	p.done = append(p.done, transformDone)
	for _, tc := range transformControllers {
		handle.RegisterTransform(tc)
	}

	abort := func() {
		for _, s := range p.sources {
			s.Stop()
		}
		for _, o := range p.outputs {
			o.Stop()
		}
		close(transformStop)
	}

	for _, reg := range b.sources {
		src, spec, err := reg.factory(&ElementBuildContext{Plugin: reg.plugin, Registry: b.Registry})
		if err != nil {
			abort()
			cancel()
			return nil, fmt.Errorf("building source %s/%s: %w", reg.plugin, reg.element, err)
		}
		spec, err = trigger.Constrain(spec, b.Constraints)
		if err != nil {
			abort()
			cancel()
			return nil, fmt.Errorf("source %s/%s: %w", reg.plugin, reg.element, err)
		}
		name := pipeline.NewSourceName(reg.plugin, reg.element)
		ctrl, done := pipeline.StartSource(name, src, spec, sourceOut, b.Registry, logger)
		handle.RegisterSource(ctrl)
		p.sources = append(p.sources, ctrl)
		p.done = append(p.done, done)
	}

	outCtx := &output.Context{Registry: b.Registry}
	for _, reg := range b.outputs {
		sink, err := reg.factory(&ElementBuildContext{Plugin: reg.plugin, Registry: b.Registry})
		if err != nil {
			abort()
			cancel()
			return nil, fmt.Errorf("building output %s/%s: %w", reg.plugin, reg.element, err)
		}
		name := pipeline.NewOutputName(reg.plugin, reg.element)
		ctrl, done := pipeline.StartOutput(name, sink, bcast, b.channelSize(), outCtx, logger)
		handle.RegisterOutput(ctrl)
		p.outputs = append(p.outputs, ctrl)
		p.done = append(p.done, done)
	}

	for _, l := range b.metricListeners {
		b.Registry.AddListener(l)
	}

	return p, nil
}

// WaitForShutdown blocks until the pipeline's control handle is shut down
// (or an externally cancelled context reaches it) or timeout elapses,
// whichever comes first, then stops every source and output task and the
// transform task, waits for them to exit, and returns an aggregate error.
// When the timeout elapses first, the tasks are still told to stop, but
// they are not waited for and the timeout error is returned.
// timeout == 0 disables the deadline and waits indefinitely.
func (p *Pipeline) WaitForShutdown(timeout time.Duration) error {
	var timeoutErr error
	if timeout <= 0 {
		<-p.ctx.Done()
	} else {
		select {
		case <-p.ctx.Done():
		case <-time.After(timeout):
			timeoutErr = fmt.Errorf("timeout of %s expired while waiting for the pipeline to shut down", timeout)
		}
	}

	for _, s := range p.sources {
		s.Stop()
	}
	for _, o := range p.outputs {
		o.Stop()
	}
	close(p.transformStop)
	if timeoutErr != nil {
		return timeoutErr
	}

	var firstErr error
	n := 0
	for _, d := range p.done {
		if err := <-d; err != nil {
			n++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if n == 0 {
		return nil
	}
	return fmt.Errorf("%d element task(s) reported an error, first: %w", n, firstErr)
}
