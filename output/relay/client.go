package relay

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// publisher is the subset of *nats.Conn a relay Output depends on.
type publisher interface {
	Publish(subject string, data []byte) error
}

// subscriber is the subset of *nats.Conn a relay Input depends on.
type subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// client wraps a NATS connection, tracking subscriptions so Close can
// unsubscribe and disconnect cleanly, mirroring the connection-management
// idiom of a singleton NATS client wrapper.
type client struct {
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	mu            sync.Mutex
	logger        logrus.FieldLogger
}

func connect(cfg Config, logger logrus.FieldLogger) (*client, error) {
	if !cfg.Address.Valid || cfg.Address.String == "" {
		return nil, fmt.Errorf("relay: address is required")
	}

	var opts []nats.Option
	if cfg.Username.Valid && cfg.Password.Valid {
		opts = append(opts, nats.UserInfo(cfg.Username.String, cfg.Password.String))
	}
	if cfg.CredsFilePath.Valid && cfg.CredsFilePath.String != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath.String))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			logger.Warnf("relay: disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		logger.Infof("relay: reconnected to %s", nc.ConnectedUrl())
	}))

	nc, err := nats.Connect(cfg.Address.String, opts...)
	if err != nil {
		return nil, fmt.Errorf("relay: connect: %w", err)
	}

	return &client{conn: nc, logger: logger}, nil
}

func (c *client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

func (c *client) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.conn.Subscribe(subject, cb)
	if err != nil {
		return nil, fmt.Errorf("relay: subscribe to %q: %w", subject, err)
	}
	c.subscriptions = append(c.subscriptions, sub)
	return sub, nil
}

func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warnf("relay: unsubscribe failed: %v", err)
		}
	}
	c.subscriptions = nil
	if c.conn != nil {
		c.conn.Close()
	}
}
