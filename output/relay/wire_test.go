package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet/metrics"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	id, err := registry.Register("test_metric", "", metrics.F64, metrics.UnitUnity, metrics.Strict)
	require.NoError(t, err)
	m, _ := registry.ByID(id)

	p, err := metrics.NewPoint(m, time.Unix(1000, 0).UTC(), metrics.NewCpuPackageResource(1), metrics.NewProcessResource(99), metrics.NewF64Value(2.5))
	require.NoError(t, err)
	p = p.WithAttr("domain", metrics.StringAttr("package"))

	buf := metrics.NewMeasurementBuffer(1)
	buf.Append(p)

	data, messageID, err := encode(buf, registry)
	require.NoError(t, err)
	require.NotEmpty(t, messageID)

	decoded, decodedMessageID, err := decode(data, registry)
	require.NoError(t, err)
	require.Equal(t, 1, decoded.Len())
	assert.Equal(t, messageID, decodedMessageID)

	out := decoded.Points()[0]
	assert.Equal(t, id, out.MetricID)
	assert.True(t, out.Timestamp.Equal(p.Timestamp))
	assert.Equal(t, 2.5, out.Value.F64)
	assert.Equal(t, "cpu_package", out.Resource.KindName())
	assert.Equal(t, "1", out.Resource.ID())
	assert.Equal(t, "process", out.Consumer.KindName())
	assert.Equal(t, "99", out.Consumer.ID())
	v, ok := out.Attr("domain")
	require.True(t, ok)
	assert.Equal(t, "package", v.String())
}

func TestDecodeSkipsUnknownMetric(t *testing.T) {
	t.Parallel()

	sender := metrics.NewRegistry()
	id, err := sender.Register("only_on_sender", "", metrics.U64, metrics.UnitUnity, metrics.Strict)
	require.NoError(t, err)
	m, _ := sender.ByID(id)
	p, err := metrics.NewPoint(m, time.Now(), metrics.LocalMachineResource, metrics.LocalMachineResource, metrics.NewU64Value(1))
	require.NoError(t, err)

	buf := metrics.NewMeasurementBuffer(1)
	buf.Append(p)
	data, _, err := encode(buf, sender)
	require.NoError(t, err)

	receiver := metrics.NewRegistry() // does not know "only_on_sender"
	decoded, _, err := decode(data, receiver)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Len())
}
