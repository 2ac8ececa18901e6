package pipeline

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/pipeline/trigger"
)

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// countingSource pushes one point per Poll and stops after n polls.
type countingSource struct {
	metric *metrics.Metric
	n      int
	polled int
}

func (s *countingSource) Poll(acc *metrics.MeasurementAccumulator, timestamp time.Time) error {
	s.polled++
	if s.polled > s.n {
		return ErrNormalStop
	}
	p, err := metrics.NewPoint(s.metric, timestamp, metrics.LocalMachineResource, metrics.LocalMachineResource, metrics.NewU64Value(uint64(s.polled)))
	if err != nil {
		return err
	}
	acc.Push(p)
	return nil
}

func newTestMetric(t *testing.T) *metrics.Metric {
	t.Helper()
	r := metrics.NewRegistry()
	id, err := r.Register("test_metric", "", metrics.U64, metrics.UnitUnity, metrics.Strict)
	require.NoError(t, err)
	m, _ := r.ByID(id)
	return m
}

func TestRunSourceManualTriggerDeliversOnePointPerPoll(t *testing.T) {
	t.Parallel()

	m := newTestMetric(t)
	src := &countingSource{metric: m, n: 2}

	spec := trigger.Spec{Kind: trigger.Manual, FlushRounds: 1, UpdateRounds: 1, AllowManualTrigger: true}
	state := newSourceState(spec)
	out := make(chan *metrics.MeasurementBuffer, 4)

	done := make(chan error, 1)
	go func() {
		done <- runSource(NewSourceName("demo", "counter"), src, out, state, nil, discardLogger())
	}()

	state.triggerNow()
	buf1 := <-out
	require.Equal(t, 1, buf1.Len())
	assert.Equal(t, uint64(1), buf1.Points()[0].Value.U64)

	state.triggerNow()
	buf2 := <-out
	require.Equal(t, 1, buf2.Len())
	assert.Equal(t, uint64(2), buf2.Points()[0].Value.U64)

	state.triggerNow()
	err := <-done
	assert.NoError(t, err)
}

func TestRunSourcePauseThenResume(t *testing.T) {
	t.Parallel()

	m := newTestMetric(t)
	src := &countingSource{metric: m, n: 5}

	spec := trigger.Spec{Kind: trigger.Manual, FlushRounds: 1, UpdateRounds: 1, AllowManualTrigger: true}
	state := newSourceState(spec)
	out := make(chan *metrics.MeasurementBuffer, 4)

	done := make(chan error, 1)
	go func() {
		done <- runSource(NewSourceName("demo", "counter"), src, out, state, nil, discardLogger())
	}()

	ctrl := &SourceController{name: NewSourceName("demo", "counter"), state: state}
	ctrl.Pause()

	// A manual trigger fired while paused must not produce output until Resume.
	state.triggerNow()
	select {
	case <-out:
		t.Fatal("source produced a buffer while paused")
	case <-time.After(20 * time.Millisecond):
	}

	ctrl.Resume()
	state.triggerNow()
	buf := <-out
	require.Equal(t, 1, buf.Len())

	ctrl.Stop()
	assert.NoError(t, <-done)
}

func TestRunSourceStopExitsCleanly(t *testing.T) {
	t.Parallel()

	m := newTestMetric(t)
	src := &countingSource{metric: m, n: 100}

	spec := trigger.Spec{Kind: trigger.Manual, FlushRounds: 1, UpdateRounds: 1, AllowManualTrigger: true}
	state := newSourceState(spec)
	out := make(chan *metrics.MeasurementBuffer, 4)

	done := make(chan error, 1)
	go func() {
		done <- runSource(NewSourceName("demo", "counter"), src, out, state, nil, discardLogger())
	}()

	ctrl := &SourceController{name: NewSourceName("demo", "counter"), state: state}
	ctrl.Stop()
	// Stop only takes effect at the next update round; nudge the trigger.
	state.triggerNow()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("source task did not stop")
	}
}

func TestRunSourceSetTriggerReplacesSchedule(t *testing.T) {
	t.Parallel()

	m := newTestMetric(t)
	src := &countingSource{metric: m, n: 100}

	spec := trigger.Spec{Kind: trigger.Manual, FlushRounds: 1, UpdateRounds: 1, AllowManualTrigger: true}
	state := newSourceState(spec)
	out := make(chan *metrics.MeasurementBuffer, 4)

	done := make(chan error, 1)
	go func() {
		done <- runSource(NewSourceName("demo", "counter"), src, out, state, nil, discardLogger())
	}()

	ctrl := &SourceController{name: NewSourceName("demo", "counter"), state: state}
	ctrl.SetTrigger(trigger.Spec{Kind: trigger.Periodic, Interval: 5 * time.Millisecond, FlushRounds: 1, UpdateRounds: 1})

	select {
	case buf := <-out:
		assert.Equal(t, 1, buf.Len())
	case <-time.After(time.Second):
		t.Fatal("periodic trigger installed via SetTrigger never fired")
	}

	ctrl.Stop()
	<-done
}

func TestRunSourceMissingInitialTriggerIsFatal(t *testing.T) {
	t.Parallel()

	state := &sourceState{changeNotify: make(chan struct{}, 1), manualTrigger: make(chan struct{}, 1)}
	out := make(chan *metrics.MeasurementBuffer, 1)

	err := runSource(NewSourceName("demo", "counter"), &countingSource{}, out, state, nil, discardLogger())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}
