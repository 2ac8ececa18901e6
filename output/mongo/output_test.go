package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	alumetmetrics "github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

type fakeInserter struct {
	inserted []interface{}
	err      error
}

func (f *fakeInserter) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, documents...)
	return &mongo.InsertManyResult{}, nil
}

func TestWriteInsertsOneDocumentPerPoint(t *testing.T) {
	t.Parallel()

	registry := alumetmetrics.NewRegistry()
	id, err := registry.Register("test_metric", "", alumetmetrics.U64, alumetmetrics.UnitUnity, alumetmetrics.Strict)
	require.NoError(t, err)
	m, _ := registry.ByID(id)

	p1, err := alumetmetrics.NewPoint(m, time.Unix(10, 0), alumetmetrics.LocalMachineResource, alumetmetrics.LocalMachineResource, alumetmetrics.NewU64Value(1))
	require.NoError(t, err)
	p2, err := alumetmetrics.NewPoint(m, time.Unix(20, 0), alumetmetrics.NewCpuResource(3), alumetmetrics.LocalMachineResource, alumetmetrics.NewU64Value(2))
	require.NoError(t, err)
	p2 = p2.WithAttr("domain", alumetmetrics.StringAttr("core"))

	buf := alumetmetrics.NewMeasurementBuffer(2)
	buf.Append(p1)
	buf.Append(p2)

	fake := &fakeInserter{}
	o := newWithCollection(fake, logrus.StandardLogger())

	require.NoError(t, o.Write(buf, &output.Context{Registry: registry}))
	require.Len(t, fake.inserted, 2)

	d1 := fake.inserted[0].(document)
	assert.Equal(t, "test_metric", d1.Metric)
	assert.Equal(t, int64(10), d1.Timestamp)
	assert.Equal(t, "local_machine", d1.ResourceKind)
	assert.Nil(t, d1.Attributes)

	d2 := fake.inserted[1].(document)
	assert.Equal(t, "cpu", d2.ResourceKind)
	assert.Equal(t, "3", d2.ResourceID)
	assert.Equal(t, map[string]string{"domain": "core"}, d2.Attributes)
}

func TestWriteEmptyBufferSkipsInsert(t *testing.T) {
	t.Parallel()

	registry := alumetmetrics.NewRegistry()
	fake := &fakeInserter{}
	o := newWithCollection(fake, logrus.StandardLogger())

	buf := alumetmetrics.NewMeasurementBuffer(0)
	require.NoError(t, o.Write(buf, &output.Context{Registry: registry}))
	assert.Empty(t, fake.inserted)
}

func TestNewRequiresURI(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{}, logrus.StandardLogger())
	require.Error(t, err)
}
