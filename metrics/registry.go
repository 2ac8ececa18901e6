// Package metrics implements the canonical metric catalog (Registry),
// the measurement model (MeasurementPoint, MeasurementBuffer, resource and
// consumer identifiers), and the overflow-safe CounterDiff helper used by
// hardware-counter probes.
package metrics

import (
	"fmt"
	"regexp"
	"sync"
)

// ValueType is the runtime type tag carried by a MeasurementPoint's value.
// It must match the declared value type of the point's metric.
type ValueType uint8

const (
	U64 ValueType = iota
	I64
	F64
)

func (t ValueType) String() string {
	switch t {
	case U64:
		return "u64"
	case I64:
		return "i64"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// MetricID is the opaque, dense, process-stable handle returned by
// Registry.Register.
type MetricID uint32

// Metric is a registered descriptor. Once registered, Name, ValueType and
// Unit are immutable; Id is stable for the process lifetime.
type Metric struct {
	ID          MetricID
	Name        string
	Description string
	ValueType   ValueType
	Unit        Unit
}

// DuplicatePolicy controls what happens when Register is called with a name
// that is already registered.
type DuplicatePolicy uint8

const (
	// Strict: any re-registration of an existing name is an error.
	Strict DuplicatePolicy = iota
	// Ignore: if the new descriptor is identical to the existing one,
	// return the existing id; otherwise error.
	Ignore
	// Rename: append a numeric discriminator to the name and register a
	// distinct metric.
	Rename
)

// ErrConflict is returned when a name is re-registered with an incompatible
// descriptor under the Strict or Ignore policies.
type ErrConflict struct {
	Name string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("metric %q is already registered with an incompatible descriptor", e.Name)
}

// ErrInvalidName is returned for empty or otherwise-invalid metric names.
type ErrInvalidName struct {
	Name string
}

func (e *ErrInvalidName) Error() string {
	return fmt.Sprintf("invalid metric name %q", e.Name)
}

// MetricListener is notified synchronously whenever a new metric is
// registered, including metrics registered after the pipeline has started.
type MetricListener interface {
	OnMetricRegistered(m Metric)
}

// Registry is the canonical, process-wide catalog of metric descriptors.
// It is read-mostly (samples look metrics up far more often than plugins
// register them) so it is guarded by a read-biased sync.RWMutex, mirroring
// the locking discipline described for the shared metric registry.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*Metric
	byID      []*Metric
	listeners []MetricListener
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Metric)}
}

var nameRe = regexp.MustCompile(`^[\p{L}\p{N}_.]+$`)

const maxNameLength = 128

// checkName reports whether name is an acceptable metric name: non-empty,
// no longer than maxNameLength, and composed only of letters (any script),
// digits, underscores and dots.
func checkName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	return nameRe.MatchString(name)
}

// Register adds a metric descriptor to the catalog, applying policy if name
// is already registered. It returns the (possibly pre-existing) metric id.
func (r *Registry) Register(name, description string, valueType ValueType, unit Unit, policy DuplicatePolicy) (MetricID, error) {
	if !checkName(name) {
		return 0, &ErrInvalidName{Name: name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		switch policy {
		case Ignore:
			if existing.Description == description && existing.ValueType == valueType && existing.Unit == unit {
				return existing.ID, nil
			}
			return 0, &ErrConflict{Name: name}
		case Rename:
			for i := 1; ; i++ {
				candidate := fmt.Sprintf("%s_%d", name, i)
				if _, taken := r.byName[candidate]; !taken {
					name = candidate
					break
				}
			}
		default: // Strict
			return 0, &ErrConflict{Name: name}
		}
	}

	m := &Metric{
		ID:          MetricID(len(r.byID)),
		Name:        name,
		Description: description,
		ValueType:   valueType,
		Unit:        unit,
	}
	r.byID = append(r.byID, m)
	r.byName[name] = m

	for _, l := range r.listeners {
		l.OnMetricRegistered(*m)
	}

	return m.ID, nil
}

// ByName looks up a metric by name.
func (r *Registry) ByName(name string) (*Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// ByID looks up a metric by id.
func (r *Registry) ByID(id MetricID) (*Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// All returns a snapshot slice of every registered metric, in ascending id
// order (i.e. registration order).
func (r *Registry) All() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metric, len(r.byID))
	for i, m := range r.byID {
		out[i] = *m
	}
	return out
}

// AddListener registers l to be notified of every future registration. It
// does not replay already-registered metrics; callers that need the full
// set should call All() first.
func (r *Registry) AddListener(l MetricListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}
