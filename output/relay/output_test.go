package relay

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return nil
}

func TestOutputPublishesEncodedBuffer(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	id, err := registry.Register("test_metric", "", metrics.U64, metrics.UnitUnity, metrics.Strict)
	require.NoError(t, err)
	m, _ := registry.ByID(id)
	p, err := metrics.NewPoint(m, time.Now(), metrics.LocalMachineResource, metrics.LocalMachineResource, metrics.NewU64Value(7))
	require.NoError(t, err)

	buf := metrics.NewMeasurementBuffer(1)
	buf.Append(p)

	fake := &fakePublisher{}
	o := newOutputWithPublisher(fake, "alumet.measurements", logrus.StandardLogger())

	require.NoError(t, o.Write(buf, &output.Context{Registry: registry}))
	assert.Equal(t, "alumet.measurements", fake.subject)
	assert.NotEmpty(t, fake.data)

	decoded, _, err := decode(fake.data, registry)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Len())
}

func TestOutputSkipsEmptyBuffer(t *testing.T) {
	t.Parallel()
	fake := &fakePublisher{}
	o := newOutputWithPublisher(fake, "alumet.measurements", logrus.StandardLogger())
	require.NoError(t, o.Write(metrics.NewMeasurementBuffer(0), &output.Context{Registry: metrics.NewRegistry()}))
	assert.Nil(t, fake.data)
}
