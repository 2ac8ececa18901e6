package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alumet-dev/alumet/metrics"
)

// wirePoint is the on-the-wire representation of a MeasurementPoint. It
// carries the metric by name rather than by MetricID, since a MetricID is
// only stable within the process that registered it; the receiving agent
// resolves (or registers) the metric by name on decode.
type wirePoint struct {
	Metric       string            `json:"metric"`
	Timestamp    time.Time         `json:"timestamp"`
	ValueType    metrics.ValueType `json:"value_type"`
	U64          uint64            `json:"u64,omitempty"`
	I64          int64             `json:"i64,omitempty"`
	F64          float64           `json:"f64,omitempty"`
	ResourceKind string            `json:"resource_kind"`
	ResourceID   string            `json:"resource_id"`
	ConsumerKind string            `json:"consumer_kind"`
	ConsumerID   string            `json:"consumer_id"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

type wireBuffer struct {
	// MessageID identifies this published batch; NATS delivers no message
	// id of its own, so this is what ties a publish log line on the output
	// side to a receive log line on the input side.
	MessageID string      `json:"message_id"`
	Points    []wirePoint `json:"points"`
}

// encode serializes buf for publication. The registry is used to resolve
// each point's metric name. The returned messageID is also embedded in the
// payload, for logging/correlation on the receiving side.
func encode(buf *metrics.MeasurementBuffer, registry *metrics.Registry) ([]byte, string, error) {
	messageID := uuid.NewString()
	wb := wireBuffer{MessageID: messageID, Points: make([]wirePoint, 0, buf.Len())}
	for _, p := range buf.Points() {
		m, ok := registry.ByID(p.MetricID)
		if !ok {
			return nil, "", fmt.Errorf("relay encode: unknown metric id %d", p.MetricID)
		}

		var attrs map[string]string
		if a := p.Attributes(); len(a) > 0 {
			attrs = make(map[string]string, len(a))
			for _, kv := range a {
				attrs[kv.Key] = kv.Value.String()
			}
		}

		wb.Points = append(wb.Points, wirePoint{
			Metric:       m.Name,
			Timestamp:    p.Timestamp,
			ValueType:    p.Value.Type,
			U64:          p.Value.U64,
			I64:          p.Value.I64,
			F64:          p.Value.F64,
			ResourceKind: p.Resource.KindName(),
			ResourceID:   p.Resource.ID(),
			ConsumerKind: p.Consumer.KindName(),
			ConsumerID:   p.Consumer.ID(),
			Attributes:   attrs,
		})
	}
	data, err := json.Marshal(wb)
	if err != nil {
		return nil, "", err
	}
	return data, messageID, nil
}

// decode reconstructs a MeasurementBuffer from a published payload,
// resolving each point's metric by name against registry. A point whose
// metric name is not (yet) known to the receiving registry is skipped; the
// relay input source does not register metrics on the receiver's behalf,
// since metric registration is a plugin-startup-time operation. The
// returned messageID echoes the one encode generated, for correlating a
// receive log line with the sender's publish log line.
func decode(data []byte, registry *metrics.Registry) (*metrics.MeasurementBuffer, string, error) {
	var wb wireBuffer
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, "", fmt.Errorf("relay decode: %w", err)
	}

	buf := metrics.NewMeasurementBuffer(len(wb.Points))
	for _, wp := range wb.Points {
		m, ok := registry.ByName(wp.Metric)
		if !ok {
			continue
		}

		var value metrics.Value
		switch wp.ValueType {
		case metrics.U64:
			value = metrics.NewU64Value(wp.U64)
		case metrics.I64:
			value = metrics.NewI64Value(wp.I64)
		default:
			value = metrics.NewF64Value(wp.F64)
		}

		p, err := metrics.NewPoint(m, wp.Timestamp, resourceFrom(wp.ResourceKind, wp.ResourceID), resourceFrom(wp.ConsumerKind, wp.ConsumerID), value)
		if err != nil {
			return nil, wb.MessageID, fmt.Errorf("relay decode: %w", err)
		}
		for k, v := range wp.Attributes {
			p = p.WithAttr(k, metrics.StringAttr(v))
		}
		buf.Append(p)
	}
	return buf, wb.MessageID, nil
}

// resourceFrom reconstructs a ResourceID from its wire kind/id pair. Numeric
// kinds parse their id back into a number; the Custom kind and kinds not
// recognized here round-trip through NewCustomResource so no information is
// dropped even if the sender runs a newer resource-kind set.
func resourceFrom(kind, id string) metrics.ResourceID {
	switch kind {
	case "local_machine":
		return metrics.LocalMachineResource
	case "cpu_package":
		return metrics.NewCpuPackageResource(parseUint32(id))
	case "cpu":
		return metrics.NewCpuResource(parseUint32(id))
	case "gpu":
		return metrics.NewGpuResource(id)
	case "control_group":
		return metrics.NewControlGroupResource(id)
	case "process":
		return metrics.NewProcessResource(parseUint32(id))
	default:
		return metrics.NewCustomResource(kind, id)
	}
}

func parseUint32(s string) uint32 {
	var n uint32
	fmt.Sscanf(s, "%d", &n)
	return n
}
