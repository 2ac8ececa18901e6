package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

// Source produces measurements on demand. Poll must return promptly: a
// source that blocks stalls its own trigger loop, not the rest of the
// pipeline, but a chronically slow source will fall behind its schedule.
type Source interface {
	Poll(acc *metrics.MeasurementAccumulator, timestamp time.Time) error
}

// taskState is the Run|Pause|Stop lifecycle of one element task, read and
// written atomically on the hot path.
type taskState uint32

const (
	taskRun taskState = iota
	taskPause
	taskStop
)

// sourceState is the shared, concurrency-safe record a SourceController and
// a running source task both hold: the task reads it on every update round,
// the controller writes to it from control-message handling. Only the
// pending trigger spec needs a mutex; everything else is atomic or
// channel-based.
type sourceState struct {
	state         atomic.Uint32 // taskState
	changeNotify  chan struct{} // one-slot wake, sent to by the controller
	manualTrigger chan struct{} // one-slot, used by Manual triggers

	mu          sync.Mutex
	hasPending  bool
	pendingSpec trigger.Spec
}

func newSourceState(initial trigger.Spec) *sourceState {
	s := &sourceState{
		changeNotify:  make(chan struct{}, 1),
		manualTrigger: make(chan struct{}, 1),
		hasPending:    true,
		pendingSpec:   initial,
	}
	s.state.Store(uint32(taskRun))
	return s
}

func (s *sourceState) notify() {
	select {
	case s.changeNotify <- struct{}{}:
	default:
	}
}

// setState updates the run/pause/stop state and wakes the task so the new
// state is observed with bounded latency even while it is suspended.
func (s *sourceState) setState(st taskState) {
	s.state.Store(uint32(st))
	s.notify()
}

// setTrigger installs a new Spec (already constrained by the pipeline) to
// take effect at the task's next update round.
func (s *sourceState) setTrigger(spec trigger.Spec) {
	s.mu.Lock()
	s.pendingSpec = spec
	s.hasPending = true
	s.mu.Unlock()
	s.notify()
}

// takePendingSpec returns and clears any Spec installed by setTrigger since
// the last call.
func (s *sourceState) takePendingSpec() (trigger.Spec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPending {
		return trigger.Spec{}, false
	}
	s.hasPending = false
	return s.pendingSpec, true
}

func (s *sourceState) triggerNow() {
	select {
	case s.manualTrigger <- struct{}{}:
	default:
	}
}

// SourceController is the control-plane-facing handle for one running
// source task. It is obtained from the pipeline builder when a source is
// created and consumed by control message handling (see pipeline/control).
type SourceController struct {
	name  SourceName
	state *sourceState
}

func (c *SourceController) Name() SourceName { return c.name }

func (c *SourceController) Pause()  { c.state.setState(taskPause) }
func (c *SourceController) Resume() { c.state.setState(taskRun) }
func (c *SourceController) Stop()   { c.state.setState(taskStop) }

// StartSource builds a source task's initial shared state, spawns its main
// loop on its own goroutine, and returns the controller the pipeline
// builder registers with the control plane plus a channel that receives
// exactly one value (nil or the task's terminal error) when it exits.
func StartSource(
	name SourceName,
	src Source,
	spec trigger.Spec,
	out chan *metrics.MeasurementBuffer,
	registry *metrics.Registry,
	logger logrus.FieldLogger,
) (*SourceController, <-chan error) {
	state := newSourceState(spec)
	done := make(chan error, 1)
	go func() {
		if spec.RealtimePriority {
			unlock := raisePriority(logger)
			defer unlock()
		}
		done <- runSource(name, src, out, state, registry, logger)
	}()
	return &SourceController{name: name, state: state}, done
}

func (c *SourceController) SetTrigger(spec trigger.Spec) { c.state.setTrigger(spec) }

func (c *SourceController) TriggerManually() { c.state.triggerNow() }

// flushPolicy selects what a source task does when its downstream channel
// is full at flush time. dropOldest (the chosen, documented default) drops
// the oldest pending buffer and logs a warning rather than blocking the
// trigger loop; the alternative, never implemented here, would fail the
// source outright with a Fatal BufferFull error.
type flushPolicy uint8

const (
	flushDropOldest flushPolicy = iota
)

// runSource is the source task's main loop. It owns src exclusively for the
// task's lifetime, and is the sole reader of state's pending spec slot and
// the sole writer to out.
func runSource(
	name SourceName,
	src Source,
	out chan *metrics.MeasurementBuffer,
	state *sourceState,
	registry *metrics.Registry,
	logger logrus.FieldLogger,
) error {
	spec, ok := state.takePendingSpec()
	if !ok {
		return Fatal(fmt.Errorf("source %s: no initial trigger configured", name))
	}
	trig := trigger.New(spec, state.manualTrigger, nil)
	flushRounds, updateRounds := spec.FlushRounds, spec.UpdateRounds

	buf := metrics.NewMeasurementBuffer(flushRounds)

	i := 1
	for {
		reason := trig.Next(state.changeNotify)

		update := false
		if reason == trigger.Triggered {
			acc := metrics.NewMeasurementAccumulator(buf)
			err := src.Poll(acc, time.Now())
			switch {
			case err == nil:
				// ok
			case err == ErrNormalStop:
				logger.WithField("source", name.String()).Info("source stopped itself")
				return nil
			case IsFatal(err):
				logger.WithField("source", name.String()).WithError(err).Error("fatal poll error, source stopping")
				return err
			case IsRetryable(err):
				logger.WithField("source", name.String()).WithError(err).Warn("non-fatal poll error, will retry")
			default:
				// Unwrapped errors from third-party Source implementations are
				// treated as CanRetry: a crashing pipeline over one undeclared
				// error type is worse than a logged retry.
				logger.WithField("source", name.String()).WithError(err).Warn("unclassified poll error, will retry")
			}

			if i%flushRounds == 0 {
				buf = flushBuffer(buf, out, name, logger, flushDropOldest)
			}

			update = i%updateRounds == 0
			i++
		} else {
			update = true
		}

		for update {
			st := taskState(state.state.Load())

			if newSpec, has := state.takePendingSpec(); has {
				prevFlushRounds := flushRounds
				flushRounds, updateRounds = newSpec.FlushRounds, newSpec.UpdateRounds
				trig = trigger.New(newSpec, state.manualTrigger, nil)
				buf = adaptBufferCapacity(buf, prevFlushRounds, flushRounds)
			}

			switch st {
			case taskRun:
				update = false
			case taskPause:
				<-state.changeNotify
			case taskStop:
				return nil
			}
		}
	}
}

func flushBuffer(
	buf *metrics.MeasurementBuffer,
	out chan *metrics.MeasurementBuffer,
	name SourceName,
	logger logrus.FieldLogger,
	policy flushPolicy,
) *metrics.MeasurementBuffer {
	prevLen := buf.Len()
	select {
	case out <- buf:
		logger.WithField("source", name.String()).Debugf("flushed %d measurements", prevLen)
	default:
		switch policy {
		case flushDropOldest:
			select {
			case dropped := <-out:
				logger.WithField("source", name.String()).
					Warnf("downstream channel full, dropped %d buffered measurements", dropped.Len())
				out <- buf
			default:
				// Channel drained between the failed send and here; retry once.
				out <- buf
			}
		}
	}
	return metrics.NewMeasurementBuffer(prevLen)
}

func adaptBufferCapacity(buf *metrics.MeasurementBuffer, prevFlushRounds, newFlushRounds int) *metrics.MeasurementBuffer {
	prevLen := buf.Len()
	if prevFlushRounds <= 0 {
		prevFlushRounds = 1
	}
	hint := newFlushRounds * prevLen / prevFlushRounds
	if hint < buf.Cap() {
		return buf
	}
	grown := metrics.NewMeasurementBuffer(hint)
	buf.ForEach(func(p metrics.MeasurementPoint) { grown.Append(p) })
	return grown
}
