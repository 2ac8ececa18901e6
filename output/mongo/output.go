package mongo

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	alumetmetrics "github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

// inserter is the subset of *mongo.Collection this package depends on, so
// tests can substitute a fake instead of talking to a real server.
type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// document is the BSON shape of one measurement point.
type document struct {
	Metric       string            `bson:"metric"`
	Timestamp    int64             `bson:"timestamp"` // unix seconds, UTC
	Value        any               `bson:"value"`
	ResourceKind string            `bson:"resource_kind"`
	ResourceID   string            `bson:"resource_id"`
	ConsumerKind string            `bson:"consumer_kind"`
	ConsumerID   string            `bson:"consumer_id"`
	Attributes   map[string]string `bson:"attributes,omitempty"`
}

// Output is a blocking output.Blocking sink that inserts every point of a
// flushed buffer into a MongoDB collection via a single InsertMany call.
type Output struct {
	collection inserter
	logger     logrus.FieldLogger
	client     *mongo.Client // nil when constructed via newWithCollection for tests
}

// New dials cfg.URI and returns an output bound to cfg.Database/cfg.Collection.
func New(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Output, error) {
	if !cfg.URI.Valid {
		return nil, fmt.Errorf("mongo output: uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI.String))
	if err != nil {
		return nil, fmt.Errorf("mongo output: connect: %w", err)
	}
	coll := client.Database(cfg.Database.String).Collection(cfg.Collection.String)
	return &Output{collection: coll, logger: logger, client: client}, nil
}

func newWithCollection(coll inserter, logger logrus.FieldLogger) *Output {
	return &Output{collection: coll, logger: logger}
}

var _ output.Blocking = (*Output)(nil)

func (o *Output) Write(buf *alumetmetrics.MeasurementBuffer, ctx *output.Context) error {
	if buf.Len() == 0 {
		return nil
	}

	docs := make([]interface{}, 0, buf.Len())
	for _, p := range buf.Points() {
		d, err := o.document(p, ctx.Registry)
		if err != nil {
			return fmt.Errorf("mongo output: %w", err)
		}
		docs = append(docs, d)
	}

	if _, err := o.collection.InsertMany(context.Background(), docs); err != nil {
		return fmt.Errorf("mongo output: insert: %w", err)
	}
	return nil
}

// Close disconnects the underlying client, if one was created by New.
func (o *Output) Close(ctx context.Context) error {
	if o.client != nil {
		return o.client.Disconnect(ctx)
	}
	return nil
}

func (o *Output) document(p alumetmetrics.MeasurementPoint, registry *alumetmetrics.Registry) (document, error) {
	m, ok := registry.ByID(p.MetricID)
	if !ok {
		return document{}, fmt.Errorf("unknown metric id %d", p.MetricID)
	}

	var attrs map[string]string
	if points := p.Attributes(); len(points) > 0 {
		attrs = make(map[string]string, len(points))
		for _, a := range points {
			attrs[a.Key] = a.Value.String()
		}
	}

	return document{
		Metric:       m.Name,
		Timestamp:    p.Timestamp.Unix(),
		Value:        rawValue(p.Value),
		ResourceKind: p.Resource.KindName(),
		ResourceID:   p.Resource.ID(),
		ConsumerKind: p.Consumer.KindName(),
		ConsumerID:   p.Consumer.ID(),
		Attributes:   attrs,
	}, nil
}

func rawValue(v alumetmetrics.Value) any {
	switch v.Type {
	case alumetmetrics.U64:
		return v.U64
	case alumetmetrics.I64:
		return v.I64
	default:
		return v.F64
	}
}
