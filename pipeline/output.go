package pipeline

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

// outputState is the Enable|Disable|Pause lifecycle of one output task.
// Unlike a source, a disabled output keeps draining its broadcast
// subscription (so it never falls behind and reports spurious lag) but
// discards every buffer instead of writing it.
type outputState uint32

const (
	outputEnabled outputState = iota
	outputDisabled
	outputPaused
	outputStopped
)

// outputControlState is the shared record an OutputController and a running
// output task both hold. sub is the same broadcastSubscriber the task
// drains, kept here too so EnableDiscard can clear the backlog directly
// instead of racing the task's own receive loop.
type outputControlState struct {
	state atomic.Uint32 // outputState
	sub   *broadcastSubscriber
	stop  chan struct{}
}

func newOutputControlState(sub *broadcastSubscriber) *outputControlState {
	s := &outputControlState{sub: sub, stop: make(chan struct{})}
	s.state.Store(uint32(outputEnabled))
	return s
}

// OutputController is the control-plane-facing handle for one running
// output task.
type OutputController struct {
	name  OutputName
	state *outputControlState
}

func (c *OutputController) Name() OutputName { return c.name }
func (c *OutputController) Enable()          { c.state.state.Store(uint32(outputEnabled)) }
func (c *OutputController) Disable()         { c.state.state.Store(uint32(outputDisabled)) }
func (c *OutputController) Pause()           { c.state.state.Store(uint32(outputPaused)) }

// Stop permanently ends the output task; it never resumes after this.
func (c *OutputController) Stop() {
	c.state.state.Store(uint32(outputStopped))
	select {
	case <-c.state.stop:
	default:
		close(c.state.stop)
	}
}

// EnableDiscard re-enables a (usually previously disabled) output,
// throwing away whatever is currently sitting in its broadcast queue first,
// so stale data from while the output was off does not leak into the newly
// enabled stream.
func (c *OutputController) EnableDiscard() {
	drainSubscriber(c.state.sub)
	c.state.state.Store(uint32(outputEnabled))
}

// runOutputBlocking is a Blocking output's task: it owns sink exclusively,
// draining its broadcast subscription and calling sink.Write for every
// buffer while Enabled. Because the task's own goroutine is the one that
// blocks on Write, a slow sink never stalls the broadcaster's non-blocking
// send to other outputs or back-pressures the transform stage. It exits
// when stop is closed (pipeline shutdown) or sub.ch is closed (test/unit
// callers that don't run a full pipeline shutdown).
func runOutputBlocking(
	name OutputName,
	sink output.Blocking,
	sub *broadcastSubscriber,
	state *outputControlState,
	ctx *output.Context,
	logger logrus.FieldLogger,
) error {
	for {
		var buf *metrics.MeasurementBuffer
		select {
		case b, ok := <-sub.ch:
			if !ok {
				return nil
			}
			buf = b
		case <-state.stop:
			return nil
		}

		if lag := sub.takeLag(); lag > 0 {
			logger.WithField("output", name.String()).Warnf("lagged by %d buffers", lag)
		}

		st := outputState(state.state.Load())

		switch st {
		case outputStopped:
			return nil
		case outputPaused, outputDisabled:
			continue
		}

		if err := sink.Write(buf, ctx); err != nil {
			switch {
			case IsFatal(err):
				logger.WithField("output", name.String()).WithError(err).Error("fatal write error, output stopping")
				return err
			default:
				logger.WithField("output", name.String()).WithError(err).Warn("write error")
			}
		}
	}
}

// StartOutput subscribes sink to bcast's fan-out, spawns its blocking task
// on its own goroutine, and returns the controller the pipeline builder
// registers with the control plane plus the task's terminal-error channel.
// bufferSize bounds how many buffers this output may lag behind before the
// broadcaster starts dropping the oldest for it.
func StartOutput(
	name OutputName,
	sink output.Blocking,
	bcast *Broadcaster,
	bufferSize int,
	ctx *output.Context,
	logger logrus.FieldLogger,
) (*OutputController, <-chan error) {
	sub := bcast.subscribe(name.String(), bufferSize, logger)
	state := newOutputControlState(sub)

	done := make(chan error, 1)
	go func() {
		err := runOutputBlocking(name, sink, sub, state, ctx, logger)
		bcast.unsubscribe(sub)
		done <- err
	}()
	return &OutputController{name: name, state: state}, done
}

// drainSubscriber discards every buffer currently queued for sub without
// blocking, used by EnableDiscard to avoid writing stale pre-enable data.
func drainSubscriber(sub *broadcastSubscriber) {
	for {
		select {
		case <-sub.ch:
		default:
			return
		}
	}
}
