// Package control implements the pipeline's control plane: a single
// AnonymousControlHandle, shared by every plugin, the CLI and the test
// harness, that routes requests to element tasks by name pattern.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alumet-dev/alumet/pipeline"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

// ErrNoTarget is returned when a selector matches zero currently-registered
// elements. It is not necessarily a programming error (an element may have
// exited on its own), so callers that want strict behavior should check
// for it explicitly.
var ErrNoTarget = errors.New("control: selector matched no element")

// ErrShuttingDown is returned by every operation once Shutdown has been
// called.
var ErrShuttingDown = errors.New("control: pipeline is shutting down")

// Handle is the process-wide, cheap-to-clone control surface. The zero
// value is not usable; construct with New.
type Handle struct {
	cancel context.CancelFunc

	mu         sync.RWMutex
	sources    map[pipeline.SourceName]*pipeline.SourceController
	transforms map[pipeline.TransformName]*pipeline.TransformController
	outputs    map[pipeline.OutputName]*pipeline.OutputController
	down       bool
}

// New builds a Handle whose Shutdown calls cancel. cancel is normally the
// CancelFunc of the pipeline's root context.
func New(cancel context.CancelFunc) *Handle {
	return &Handle{
		cancel:     cancel,
		sources:    make(map[pipeline.SourceName]*pipeline.SourceController),
		transforms: make(map[pipeline.TransformName]*pipeline.TransformController),
		outputs:    make(map[pipeline.OutputName]*pipeline.OutputController),
	}
}

// RegisterSource makes ctrl reachable by control messages. Called by the
// pipeline builder immediately after a source task is spawned.
func (h *Handle) RegisterSource(ctrl *pipeline.SourceController) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources[ctrl.Name()] = ctrl
}

func (h *Handle) RegisterTransform(ctrl *pipeline.TransformController) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transforms[ctrl.Name()] = ctrl
}

func (h *Handle) RegisterOutput(ctrl *pipeline.OutputController) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputs[ctrl.Name()] = ctrl
}

func (h *Handle) matchingSources(sel pipeline.SourceSelector) []*pipeline.SourceController {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*pipeline.SourceController
	for name, ctrl := range h.sources {
		if sel.Matches(name) {
			out = append(out, ctrl)
		}
	}
	return out
}

func (h *Handle) matchingTransforms(sel pipeline.TransformSelector) []*pipeline.TransformController {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*pipeline.TransformController
	for name, ctrl := range h.transforms {
		if sel.Matches(name) {
			out = append(out, ctrl)
		}
	}
	return out
}

func (h *Handle) matchingOutputs(sel pipeline.OutputSelector) []*pipeline.OutputController {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*pipeline.OutputController
	for name, ctrl := range h.outputs {
		if sel.Matches(name) {
			out = append(out, ctrl)
		}
	}
	return out
}

func (h *Handle) isDown() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.down
}

// SourceCommand selects which Configure action a source message applies.
type SourceCommand uint8

const (
	SourcePause SourceCommand = iota
	SourceResume
	SourceStop
)

// ConfigureSources applies cmd to every source matched by sel. This is the
// fire-and-forget form (send(msg) in the design): it enqueues the state
// change and returns once it has been applied to every currently-known
// matching controller, without waiting for the task to observe it.
func (h *Handle) ConfigureSources(sel pipeline.SourceSelector, cmd SourceCommand) error {
	if h.isDown() {
		return ErrShuttingDown
	}
	targets := h.matchingSources(sel)
	if len(targets) == 0 {
		return ErrNoTarget
	}
	for _, ctrl := range targets {
		switch cmd {
		case SourcePause:
			ctrl.Pause()
		case SourceResume:
			ctrl.Resume()
		case SourceStop:
			ctrl.Stop()
		}
	}
	return nil
}

// SetSourceTrigger installs a new TriggerSpec on every source matched by
// sel, after applying constraints (so a plugin cannot bypass the pipeline's
// max-update-interval or manual-trigger policy through reconfiguration).
func (h *Handle) SetSourceTrigger(sel pipeline.SourceSelector, spec trigger.Spec, constraints trigger.Constraints) error {
	if h.isDown() {
		return ErrShuttingDown
	}
	constrained, err := trigger.Constrain(spec, constraints)
	if err != nil {
		return fmt.Errorf("control: set trigger: %w", err)
	}
	targets := h.matchingSources(sel)
	if len(targets) == 0 {
		return ErrNoTarget
	}
	for _, ctrl := range targets {
		ctrl.SetTrigger(constrained)
	}
	return nil
}

// TriggerManually wakes every matched source's manual trigger immediately,
// used by the exec command and by deterministic tests.
func (h *Handle) TriggerManually(sel pipeline.SourceSelector) error {
	if h.isDown() {
		return ErrShuttingDown
	}
	targets := h.matchingSources(sel)
	if len(targets) == 0 {
		return ErrNoTarget
	}
	for _, ctrl := range targets {
		ctrl.TriggerManually()
	}
	return nil
}

// EnableTransforms and DisableTransforms flip the matched transforms' bits
// in the running active-set mask.
func (h *Handle) EnableTransforms(sel pipeline.TransformSelector) error {
	if h.isDown() {
		return ErrShuttingDown
	}
	targets := h.matchingTransforms(sel)
	if len(targets) == 0 {
		return ErrNoTarget
	}
	for _, ctrl := range targets {
		ctrl.Enable()
	}
	return nil
}

func (h *Handle) DisableTransforms(sel pipeline.TransformSelector) error {
	if h.isDown() {
		return ErrShuttingDown
	}
	targets := h.matchingTransforms(sel)
	if len(targets) == 0 {
		return ErrNoTarget
	}
	for _, ctrl := range targets {
		ctrl.Disable()
	}
	return nil
}

// OutputCommand selects which action an output message applies.
type OutputCommand uint8

const (
	OutputEnable OutputCommand = iota
	OutputEnableDiscard
	OutputDisable
	OutputPause
)

// ConfigureOutputs applies cmd to every output matched by sel.
func (h *Handle) ConfigureOutputs(sel pipeline.OutputSelector, cmd OutputCommand) error {
	if h.isDown() {
		return ErrShuttingDown
	}
	targets := h.matchingOutputs(sel)
	if len(targets) == 0 {
		return ErrNoTarget
	}
	for _, ctrl := range targets {
		switch cmd {
		case OutputEnable:
			ctrl.Enable()
		case OutputEnableDiscard:
			ctrl.EnableDiscard()
		case OutputDisable:
			ctrl.Disable()
		case OutputPause:
			ctrl.Pause()
		}
	}
	return nil
}

// SendWait is send_wait: it performs action (which must itself be one of
// this Handle's Configure*/Enable*/Disable*/TriggerManually/SetSourceTrigger
// calls) and aborts with a timeout error if ctx is cancelled first. Every
// action above already completes synchronously once it acquires its
// read lock, so in practice this only matters under lock contention or a
// caller-supplied deadline that has already expired.
func (h *Handle) SendWait(ctx context.Context, action func() error) error {
	done := make(chan error, 1)
	go func() { done <- action() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("control: %w", ctx.Err())
	}
}

// Dispatch is the multi-element form of SendWait and behaves exactly like
// it: it returns once action has returned (having updated the shared state
// of every matched controller) or ctx is done. It does not wait for the
// targeted tasks to observe or acknowledge the change.
func (h *Handle) Dispatch(ctx context.Context, action func() error) error {
	return h.SendWait(ctx, action)
}

// Shutdown cancels the pipeline's root context, causing every task to
// observe cancellation at its next suspension point, and marks the handle
// down so further control operations fail fast instead of racing shutdown.
func (h *Handle) Shutdown() {
	h.mu.Lock()
	h.down = true
	h.mu.Unlock()
	h.cancel()
}
