package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
)

// maxTransforms bounds the number of transforms one pipeline can chain: the
// active set is a single 64-bit atomic mask, one bit per transform. A
// pipeline needing more than 64 transforms should be split, or the mask
// widened to a versioned bit-vector; neither is needed by any deployment
// seen so far.
const maxTransforms = 64

// Transform mutates a buffer in place between the source stage and the
// output fan-out.
type Transform interface {
	Apply(buf *metrics.MeasurementBuffer) error
}

// TransformController flips one transform's bit in the running task's
// active-set mask from the control plane.
type TransformController struct {
	name  TransformName
	index int
	mask  *atomic.Uint64
}

func (c *TransformController) Name() TransformName { return c.name }

func (c *TransformController) Enable() {
	c.mask.Or(uint64(1) << uint(c.index))
}

func (c *TransformController) Disable() {
	c.mask.And(^(uint64(1) << uint(c.index)))
}

// transformEntry pairs one registered Transform with its bit position in
// the running mask, preserving Create order (the chain applies transforms
// in the order they were registered).
type transformEntry struct {
	name TransformName
	t    Transform
}

// NamedTransform is one (name, implementation) pair as registered by a
// plugin at build time; its position in the slice passed to
// StartTransformTask fixes its place in the ordered apply chain and its bit
// in the active-set mask.
type NamedTransform struct {
	Name      TransformName
	Transform Transform
}

// StartTransformTask builds the single transform task's active-set mask
// (every entry enabled by default), spawns its loop, and returns one
// TransformController per entry plus the task's terminal-error channel.
func StartTransformTask(
	entries []NamedTransform,
	in <-chan *metrics.MeasurementBuffer,
	broadcastOut func(*metrics.MeasurementBuffer),
	stop <-chan struct{},
	logger logrus.FieldLogger,
) ([]*TransformController, <-chan error, error) {
	if len(entries) > maxTransforms {
		return nil, nil, Fatal(errTooManyTransforms(len(entries)))
	}

	mask := new(atomic.Uint64)
	if len(entries) > 0 {
		mask.Store(^uint64(0) >> uint(64-len(entries)))
	}

	taskEntries := make([]transformEntry, len(entries))
	controllers := make([]*TransformController, len(entries))
	for i, e := range entries {
		taskEntries[i] = transformEntry{name: e.Name, t: e.Transform}
		controllers[i] = &TransformController{name: e.Name, index: i, mask: mask}
	}

	done := make(chan error, 1)
	go func() {
		done <- runTransform(taskEntries, mask, in, broadcastOut, stop, logger)
	}()
	return controllers, done, nil
}

// runTransform reads buffers from in, applies every enabled transform in
// registration order, and broadcasts the result to out. A CanRetry error
// from one transform is logged and the buffer still continues down the
// chain and out to the broadcast; a Fatal error terminates the task, which
// severs the only remaining path to outputs.
func runTransform(
	entries []transformEntry,
	mask *atomic.Uint64,
	in <-chan *metrics.MeasurementBuffer,
	out func(*metrics.MeasurementBuffer),
	stop <-chan struct{},
	logger logrus.FieldLogger,
) error {
	if len(entries) > maxTransforms {
		return Fatal(errTooManyTransforms(len(entries)))
	}

	for {
		select {
		case buf, ok := <-in:
			if !ok {
				return nil
			}
			active := mask.Load()
			for i, entry := range entries {
				if active&(uint64(1)<<uint(i)) == 0 {
					continue
				}
				err := entry.t.Apply(buf)
				switch {
				case err == nil:
					// ok
				case IsFatal(err):
					logger.WithField("transform", entry.name.String()).WithError(err).
						Error("fatal transform error, transform task stopping")
					return err
				default:
					logger.WithField("transform", entry.name.String()).WithError(err).
						Warn("non-fatal transform error, buffer still broadcast")
				}
			}
			out(buf)
		case <-stop:
			return nil
		}
	}
}

func errTooManyTransforms(n int) error {
	return fmt.Errorf("pipeline: %d transforms registered, exceeds the %d-bit active-set mask", n, maxTransforms)
}
