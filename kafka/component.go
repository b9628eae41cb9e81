package kafka

import (
	"context"
	"fmt"

	"github.com/kbukum/chunkscribe/component"
	"github.com/kbukum/chunkscribe/logger"
)

// Component owns the producer used for transcript events.
type Component struct {
	cfg      Config
	log      *logger.Logger
	producer *Producer
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Kafka component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	return &Component{cfg: cfg, log: log}
}

// Producer returns the producer, or nil before Start.
func (c *Component) Producer() *Producer { return c.producer }

func (c *Component) Name() string { return "kafka" }

func (c *Component) Start(context.Context) error {
	p, err := NewProducer(c.cfg, c.log)
	if err != nil {
		return err
	}
	c.producer = p
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.producer == nil {
		return nil
	}
	return c.producer.Close()
}

// Health dials the first broker. The writer connects lazily, so this is
// the only way to learn the cluster is unreachable before a publish.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.producer == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	if len(c.cfg.Brokers) == 0 {
		return component.Check(c.Name(), fmt.Errorf("no brokers configured"))
	}
	dialer, err := NewDialer(&c.cfg)
	if err != nil {
		return component.Check(c.Name(), err)
	}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return component.Check(c.Name(), err)
	}
	_ = conn.Close()
	return component.Check(c.Name(), nil)
}
