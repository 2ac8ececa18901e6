package metrics

import (
	"fmt"
	"time"
)

// AttributeValue is the value carried by a MeasurementPoint attribute. It is
// one of string, int64, float64 or bool.
type AttributeValue struct {
	value any
}

func StringAttr(v string) AttributeValue  { return AttributeValue{v} }
func IntAttr(v int64) AttributeValue      { return AttributeValue{v} }
func FloatAttr(v float64) AttributeValue  { return AttributeValue{v} }
func BoolAttr(v bool) AttributeValue      { return AttributeValue{v} }

// String renders the attribute value for CSV-style serialization.
func (a AttributeValue) String() string {
	switch v := a.value.(type) {
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Raw returns the underlying Go value.
func (a AttributeValue) Raw() any { return a.value }

// Attribute is one (key, value) entry. MeasurementPoint keeps these in an
// ordered slice (rather than a map) so that attribute insertion order is
// observable and stable, matching the "ordered map" data-model requirement.
type Attribute struct {
	Key   string
	Value AttributeValue
}

// Value is the tagged union carried by MeasurementPoint.Value. Exactly one
// of U64/I64/F64 is meaningful, selected by Type.
type Value struct {
	Type ValueType
	U64  uint64
	I64  int64
	F64  float64
}

func NewU64Value(v uint64) Value { return Value{Type: U64, U64: v} }
func NewI64Value(v int64) Value  { return Value{Type: I64, I64: v} }
func NewF64Value(v float64) Value { return Value{Type: F64, F64: v} }

// String renders the value for CSV-style serialization.
func (v Value) String() string {
	switch v.Type {
	case U64:
		return fmt.Sprintf("%d", v.U64)
	case I64:
		return fmt.Sprintf("%d", v.I64)
	case F64:
		return fmt.Sprintf("%g", v.F64)
	default:
		return ""
	}
}

// MeasurementPoint is a single sample: a metric reference, a timestamp, the
// resource it was measured on, the consumer it is attributed to, a typed
// value, and an ordered set of attributes.
type MeasurementPoint struct {
	Timestamp  time.Time
	MetricID   MetricID
	Resource   ResourceID
	Consumer   ResourceID
	Value      Value
	attributes []Attribute
}

// NewPoint constructs a point, validating that value's runtime type matches
// the metric's declared value type.
func NewPoint(metric *Metric, timestamp time.Time, resource, consumer ResourceID, value Value) (MeasurementPoint, error) {
	if value.Type != metric.ValueType {
		return MeasurementPoint{}, fmt.Errorf(
			"value type %s does not match metric %q's declared type %s", value.Type, metric.Name, metric.ValueType,
		)
	}
	return MeasurementPoint{
		Timestamp: timestamp,
		MetricID:  metric.ID,
		Resource:  resource,
		Consumer:  consumer,
		Value:     value,
	}, nil
}

// WithAttr appends an attribute and returns the point for chaining. key must
// be non-empty; a zero-value key panics, since that is a build-time plugin
// programming error, not a runtime condition to recover from.
func (p MeasurementPoint) WithAttr(key string, value AttributeValue) MeasurementPoint {
	if key == "" {
		panic("metrics: attribute key must not be empty")
	}
	p.attributes = append(p.attributes, Attribute{Key: key, Value: value})
	return p
}

// Attributes returns the point's attributes in insertion order.
func (p MeasurementPoint) Attributes() []Attribute {
	return p.attributes
}

// Attr looks up a single attribute by key.
func (p MeasurementPoint) Attr(key string) (AttributeValue, bool) {
	for _, a := range p.attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return AttributeValue{}, false
}
