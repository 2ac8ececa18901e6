package relay

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
)

// Input is a relay source: it subscribes to a NATS subject and decodes each
// incoming message into measurement points, which Poll drains into the
// pipeline's accumulator. Decoding happens off the pipeline's polling
// goroutine (in the NATS client's own dispatch goroutine) and is buffered
// on decoded chan, so a slow poller does not stall message delivery up to
// the channel's capacity.
type Input struct {
	registry *metrics.Registry
	logger   logrus.FieldLogger
	client   *client // nil when constructed via newInputWithSubscriber for tests
	decoded  chan *metrics.MeasurementBuffer
}

const inputChannelCapacity = 64

// NewInput connects to cfg.Address and subscribes to cfg.Subject.
func NewInput(cfg Config, registry *metrics.Registry, logger logrus.FieldLogger) (*Input, error) {
	c, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	in := &Input{registry: registry, logger: logger, client: c, decoded: make(chan *metrics.MeasurementBuffer, inputChannelCapacity)}
	if _, err := c.Subscribe(cfg.Subject.String, in.onMessage); err != nil {
		c.Close()
		return nil, err
	}
	return in, nil
}

func newInputWithSubscriber(sub subscriber, subject string, registry *metrics.Registry, logger logrus.FieldLogger) (*Input, error) {
	in := &Input{registry: registry, logger: logger, decoded: make(chan *metrics.MeasurementBuffer, inputChannelCapacity)}
	if _, err := sub.Subscribe(subject, in.onMessage); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Input) onMessage(msg *nats.Msg) {
	buf, messageID, err := decode(msg.Data, in.registry)
	if err != nil {
		in.logger.Warnf("relay input: dropping malformed message %s: %v", messageID, err)
		return
	}
	in.logger.WithField("message_id", messageID).Debugf("received %d points", buf.Len())
	select {
	case in.decoded <- buf:
	default:
		in.logger.WithField("message_id", messageID).Warn("relay input: decoded-message channel full, dropping oldest")
		select {
		case <-in.decoded:
		default:
		}
		in.decoded <- buf
	}
}

// Poll drains every buffer decoded since the last call into acc, stamping
// none of the points with timestamp itself since each point already carries
// the sender's original timestamp.
func (in *Input) Poll(acc *metrics.MeasurementAccumulator, timestamp time.Time) error {
	for {
		select {
		case buf := <-in.decoded:
			buf.ForEach(acc.Push)
		default:
			return nil
		}
	}
}

// Close disconnects the underlying NATS connection, if one was created by
// NewInput.
func (in *Input) Close() error {
	if in.client != nil {
		in.client.Close()
	}
	return nil
}
