package influxdb

import (
	"context"
	"crypto/tls"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

// writeAPI is the subset of api.WriteAPIBlocking this package depends on, so
// tests can substitute a fake instead of talking to a real InfluxDB server.
type writeAPI interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Output is a blocking output.Blocking sink that writes each measurement
// point as an InfluxDB line-protocol point: measurement = metric name, tags
// = resource/consumer kind and id plus the point's attributes, field =
// value.
type Output struct {
	api    writeAPI
	logger logrus.FieldLogger
	client influxdb2.Client // nil when constructed via newWithAPI for tests
}

// New constructs an influxdb output from cfg, dialing no connection until
// the first Write call (the client library connects lazily).
func New(cfg Config, logger logrus.FieldLogger) (*Output, error) {
	if !cfg.URL.Valid || !cfg.Bucket.Valid || !cfg.Org.Valid {
		return nil, fmt.Errorf("influxdb output: url, org and bucket are required")
	}
	opts := influxdb2.DefaultOptions().SetTLSConfig(&tls.Config{InsecureSkipVerify: cfg.SkipTLS.Bool})
	client := influxdb2.NewClientWithOptions(cfg.URL.String, cfg.Token.String, opts)
	return &Output{
		api:    client.WriteAPIBlocking(cfg.Org.String, cfg.Bucket.String),
		logger: logger,
		client: client,
	}, nil
}

func newWithAPI(api writeAPI, logger logrus.FieldLogger) *Output {
	return &Output{api: api, logger: logger}
}

var _ output.Blocking = (*Output)(nil)

func (o *Output) Write(buf *metrics.MeasurementBuffer, ctx *output.Context) error {
	points := make([]*write.Point, 0, buf.Len())
	for _, p := range buf.Points() {
		pt, err := o.point(p, ctx.Registry)
		if err != nil {
			return fmt.Errorf("influxdb output: %w", err)
		}
		points = append(points, pt)
	}
	if len(points) == 0 {
		return nil
	}
	if err := o.api.WritePoint(context.Background(), points...); err != nil {
		return fmt.Errorf("influxdb output: write: %w", err)
	}
	return nil
}

// Close releases the underlying HTTP client, if one was created by New.
func (o *Output) Close() error {
	if o.client != nil {
		o.client.Close()
	}
	return nil
}

func (o *Output) point(p metrics.MeasurementPoint, registry *metrics.Registry) (*write.Point, error) {
	m, ok := registry.ByID(p.MetricID)
	if !ok {
		return nil, fmt.Errorf("unknown metric id %d", p.MetricID)
	}

	tags := map[string]string{
		"resource_kind": p.Resource.KindName(),
		"resource_id":   p.Resource.ID(),
		"consumer_kind": p.Consumer.KindName(),
		"consumer_id":   p.Consumer.ID(),
	}
	for _, a := range p.Attributes() {
		tags[a.Key] = a.Value.String()
	}

	fields := map[string]any{"value": rawValue(p.Value)}

	return influxdb2.NewPoint(m.Name, tags, fields, p.Timestamp), nil
}

func rawValue(v metrics.Value) any {
	switch v.Type {
	case metrics.U64:
		return v.U64
	case metrics.I64:
		return v.I64
	default:
		return v.F64
	}
}
