package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumet-dev/alumet/metrics"
)

func TestBroadcasterFansOutToEverySubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	s1 := b.subscribe("a", 4, discardLogger())
	s2 := b.subscribe("b", 4, discardLogger())

	buf := metrics.NewMeasurementBuffer(0)
	b.Send(buf)

	got1 := <-s1.ch
	got2 := <-s2.ch
	assert.NotSame(t, got1, got2, "each subscriber must receive an independent clone")
}

func TestBroadcasterDropsOldestOnLaggingSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	s := b.subscribe("slow", 1, discardLogger())

	b.Send(metrics.NewMeasurementBuffer(0))
	b.Send(metrics.NewMeasurementBuffer(0)) // s hasn't read yet; channel (cap 1) is full

	require.Equal(t, uint64(1), s.lagged.Load())
	<-s.ch // the surviving (second) buffer
	assert.Equal(t, uint64(1), s.takeLag())
	assert.Equal(t, uint64(0), s.lagged.Load())
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	s := b.subscribe("gone", 4, discardLogger())
	b.unsubscribe(s)

	b.Send(metrics.NewMeasurementBuffer(0))
	select {
	case <-s.ch:
		t.Fatal("unsubscribed subscriber still received a buffer")
	default:
	}
}
