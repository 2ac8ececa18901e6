// Package trigger implements the schedules that decide when a source task
// polls: periodic (interval-based, catch-up on drift), manual (driven by a
// control message or the exec command), and external (driven by a
// plugin-provided readiness channel, e.g. a cgroup-creation watcher).
package trigger

import (
	"fmt"
	"time"
)

// Reason is returned by Trigger.Next: either the scheduled moment arrived,
// or the caller was woken early and should check for configuration changes
// without polling.
type Reason uint8

const (
	Triggered Reason = iota
	Interrupted
)

func (r Reason) String() string {
	if r == Triggered {
		return "triggered"
	}
	return "interrupted"
}

// Kind selects which Trigger implementation a Spec builds.
type Kind uint8

const (
	Periodic Kind = iota
	Manual
	External
)

// Spec is the declarative description of a source's schedule, as set at
// element-build time or by a SetTrigger control message.
type Spec struct {
	Kind     Kind
	Interval time.Duration // Periodic only

	// FlushRounds controls how often (in poll iterations) the source hands
	// its local buffer downstream; UpdateRounds controls how often it
	// checks for control updates. Both must be >= 1.
	FlushRounds int
	UpdateRounds int

	AllowManualTrigger bool
	RealtimePriority   bool
}

// Validate reports whether spec's rounds are positive and, for Periodic,
// the interval is positive.
func (s Spec) Validate() error {
	if s.FlushRounds < 1 {
		return fmt.Errorf("trigger spec: flush_rounds must be >= 1, got %d", s.FlushRounds)
	}
	if s.UpdateRounds < 1 {
		return fmt.Errorf("trigger spec: update_rounds must be >= 1, got %d", s.UpdateRounds)
	}
	if s.Kind == Periodic && s.Interval <= 0 {
		return fmt.Errorf("trigger spec: periodic interval must be positive, got %s", s.Interval)
	}
	return nil
}

// Constraints are pipeline-wide limits applied to every source's Spec at
// build time (and on every SetTrigger reconfiguration).
type Constraints struct {
	// MaxUpdateInterval clamps any Periodic interval that would exceed it,
	// bounding reconfiguration latency. Zero means unconstrained.
	MaxUpdateInterval time.Duration
	// AllowManualTrigger, if false, rejects any Spec of Kind Manual.
	AllowManualTrigger bool
}

// Constrain clamps spec to satisfy constraints, returning an error if spec
// cannot be made to satisfy them (e.g. Manual requested but disallowed).
func Constrain(spec Spec, constraints Constraints) (Spec, error) {
	if spec.Kind == Manual && !constraints.AllowManualTrigger {
		return Spec{}, fmt.Errorf("trigger spec: manual triggering is not allowed by this pipeline's constraints")
	}
	if spec.Kind == Periodic && constraints.MaxUpdateInterval > 0 && spec.Interval > constraints.MaxUpdateInterval {
		spec.Interval = constraints.MaxUpdateInterval
	}
	return spec, nil
}

// Trigger is the running schedule built from a Spec. Next suspends the
// caller until either the scheduled moment arrives (Triggered) or interrupt
// is closed/signaled (Interrupted), in which case the caller should
// re-check its task state before calling Next again.
type Trigger interface {
	Next(interrupt <-chan struct{}) Reason
}

// New builds the Trigger implementation named by spec.Kind. manualCh is
// used by Manual triggers (signaled by a TriggerManually control message);
// externalReady is used by External triggers (signaled by a plugin-owned
// future/event source). Both may be nil for kinds that don't need them.
func New(spec Spec, manualCh <-chan struct{}, externalReady <-chan struct{}) Trigger {
	switch spec.Kind {
	case Manual:
		return &manualTrigger{signal: manualCh}
	case External:
		return &externalTrigger{ready: externalReady}
	default:
		return newPeriodicTrigger(spec.Interval)
	}
}
