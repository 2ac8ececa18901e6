package relay

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alumet-dev/alumet/metrics"
	"github.com/alumet-dev/alumet/output"
)

// Output is a blocking output.Blocking sink that publishes each flushed
// buffer, JSON-encoded, to a NATS subject.
type Output struct {
	pub     publisher
	subject string
	logger  logrus.FieldLogger
	client  *client // nil when constructed via newOutputWithPublisher for tests
}

// NewOutput connects to cfg.Address and returns an output that publishes to
// cfg.Subject.
func NewOutput(cfg Config, logger logrus.FieldLogger) (*Output, error) {
	c, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Output{pub: c, subject: cfg.Subject.String, logger: logger, client: c}, nil
}

func newOutputWithPublisher(pub publisher, subject string, logger logrus.FieldLogger) *Output {
	return &Output{pub: pub, subject: subject, logger: logger}
}

var _ output.Blocking = (*Output)(nil)

func (o *Output) Write(buf *metrics.MeasurementBuffer, ctx *output.Context) error {
	if buf.Len() == 0 {
		return nil
	}
	data, messageID, err := encode(buf, ctx.Registry)
	if err != nil {
		return fmt.Errorf("relay output: %w", err)
	}
	if err := o.pub.Publish(o.subject, data); err != nil {
		return fmt.Errorf("relay output: publish %s: %w", messageID, err)
	}
	o.logger.WithField("message_id", messageID).Debugf("published %d points to %s", buf.Len(), o.subject)
	return nil
}

// Close disconnects the underlying NATS connection, if one was created by
// NewOutput.
func (o *Output) Close() error {
	if o.client != nil {
		o.client.Close()
	}
	return nil
}
