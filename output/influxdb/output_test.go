package influxdb

import (
	"context"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

type fakeWriteAPI struct {
	written []*write.Point
	err     error
}

func (f *fakeWriteAPI) WritePoint(ctx context.Context, points ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, points...)
	return nil
}

func TestWritePointTagsAndField(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	id, err := registry.Register("cpu_energy", "", metrics.F64, metrics.Unit{Base: "joule"}, metrics.Strict)
	require.NoError(t, err)
	m, _ := registry.ByID(id)

	p, err := metrics.NewPoint(m, time.Unix(100, 0), metrics.NewCpuPackageResource(0), metrics.NewProcessResource(42), metrics.NewF64Value(3.5))
	require.NoError(t, err)
	p = p.WithAttr("domain", metrics.StringAttr("package"))

	buf := metrics.NewMeasurementBuffer(1)
	buf.Append(p)

	fake := &fakeWriteAPI{}
	o := newWithAPI(fake, logrus.StandardLogger())

	require.NoError(t, o.Write(buf, &output.Context{Registry: registry}))
	require.Len(t, fake.written, 1)

	line := fake.written[0].String()
	assert.Contains(t, line, "cpu_energy")
	assert.Contains(t, line, "resource_kind=cpu_package")
	assert.Contains(t, line, "resource_id=0")
	assert.Contains(t, line, "consumer_kind=process")
	assert.Contains(t, line, "consumer_id=42")
	assert.Contains(t, line, "domain=package")
}

func TestWriteEmptyBufferSkipsCall(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	fake := &fakeWriteAPI{}
	o := newWithAPI(fake, logrus.StandardLogger())

	buf := metrics.NewMeasurementBuffer(0)
	require.NoError(t, o.Write(buf, &output.Context{Registry: registry}))
	assert.Empty(t, fake.written)
}

func TestWritePropagatesAPIError(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	id, err := registry.Register("m", "", metrics.U64, metrics.UnitUnity, metrics.Strict)
	require.NoError(t, err)
	m, _ := registry.ByID(id)
	p, err := metrics.NewPoint(m, time.Now(), metrics.LocalMachineResource, metrics.LocalMachineResource, metrics.NewU64Value(1))
	require.NoError(t, err)

	buf := metrics.NewMeasurementBuffer(1)
	buf.Append(p)

	fake := &fakeWriteAPI{err: assert.AnError}
	o := newWithAPI(fake, logrus.StandardLogger())

	err = o.Write(buf, &output.Context{Registry: registry})
	require.Error(t, err)
}

func TestNewRequiresConnectionFields(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, logrus.StandardLogger())
	require.Error(t, err)
}
