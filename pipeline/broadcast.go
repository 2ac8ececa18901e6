package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
)

// broadcastSubscriber is one output's view of the transform stage's
// fan-out: a bounded channel plus a lag counter. Buffers are not shared
// across subscribers; each one gets its own Clone so that an output's
// pending reads never alias another output's. lagged is written from
// Broadcaster.Send (the transform task's goroutine) and read/cleared from
// takeLag (the owning output task's goroutine), so it is an atomic.Uint64
// rather than a plain uint64.
type broadcastSubscriber struct {
	ch     chan *metrics.MeasurementBuffer
	lagged atomic.Uint64
	logger logrus.FieldLogger
	name   string
}

// Broadcaster fans every buffer handed to it out to all current
// subscribers, never blocking the sender: a subscriber that cannot keep up
// has its oldest pending buffer dropped and its lag counter incremented,
// surfaced as a "lagged by N" warning the next time it does receive. It
// sits between the transform task and every output task.
type Broadcaster struct {
	mu   sync.Mutex
	subs []*broadcastSubscriber
}

// NewBroadcaster returns an empty fan-out with no subscribers yet.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) subscribe(name string, bufferSize int, logger logrus.FieldLogger) *broadcastSubscriber {
	sub := &broadcastSubscriber{
		ch:     make(chan *metrics.MeasurementBuffer, bufferSize),
		logger: logger,
		name:   name,
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub
}

func (b *Broadcaster) unsubscribe(sub *broadcastSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Send fans buf out to every current subscriber. It is the transform task's
// broadcastOut callback once a pipeline is wired up.
func (b *Broadcaster) Send(buf *metrics.MeasurementBuffer) {
	b.mu.Lock()
	subs := make([]*broadcastSubscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		clone := buf.Clone()
		select {
		case sub.ch <- clone:
		default:
			select {
			case <-sub.ch:
				sub.lagged.Add(1)
			default:
			}
			select {
			case sub.ch <- clone:
			default:
				sub.lagged.Add(1)
			}
		}
	}
}

// takeLag drains and clears the subscriber's lag counter, returning
// a nonzero value the caller should log as "lagged by N" before handling
// the just-received buffer.
func (s *broadcastSubscriber) takeLag() uint64 {
	return s.lagged.Swap(0)
}
