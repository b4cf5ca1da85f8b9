// Package broker moves real-time prices over RabbitMQ fanout exchanges:
// Publisher puts them on the wire and Consumer batches them into a Sink.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketgraph/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer subscribes to the bars and ticks exchanges and forwards
// messages to the sink via buffered batch writers.
type Consumer struct {
	cfg    config.RabbitMQConfig
	logger *logrus.Logger

	conn     *amqp.Connection
	channels []*amqp.Channel
	wg       sync.WaitGroup
	batcher  *BatchWriter
}

// NewConsumer prepares a consumer for the given configuration.
func NewConsumer(cfg config.RabbitMQConfig, sink Sink, logger *logrus.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	batchCfg := BatchConfig{
		Size:    cfg.BatchSize,
		Timeout: cfg.BatchTimeout,
	}
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		batcher: NewBatchWriter(batchCfg, sink, logger),
	}, nil
}

// Start establishes the AMQP connection and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn
	c.batcher.Run(ctx)

	if err := c.startStream(ctx, streamBars, c.cfg.BarsExchange); err != nil {
		c.Close(ctx)
		return err
	}
	if err := c.startStream(ctx, streamTicks, c.cfg.TicksExchange); err != nil {
		c.Close(ctx)
		return err
	}

	c.logger.Infof("rabbitmq consumer started: exchanges=%s,%s", c.cfg.BarsExchange, c.cfg.TicksExchange)
	return nil
}

// Close stops consumption, flushes pending batches, and releases resources.
func (c *Consumer) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, ch := range c.channels {
		_ = ch.Close()
	}
	c.channels = nil
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
	if c.batcher == nil {
		return nil
	}
	return c.batcher.Stop(ctx)
}

func (c *Consumer) startStream(ctx context.Context, stream streamType, exchange string) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel for %s: %w", stream, err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue for %s: %w", stream, err)
	}
	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos for %s: %w", stream, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("start consume for %s: %w", stream, err)
	}
	c.channels = append(c.channels, ch)
	c.wg.Add(1)
	go c.consumeLoop(ctx, stream, deliveries)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, stream streamType, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.WithField("stream", string(stream))
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.handleDelivery(stream, delivery.Body); err != nil {
				log.WithError(err).Warn("failed to process message")
				// Malformed payloads are dropped; anything else is retried.
				_ = delivery.Nack(false, !errors.Is(err, errMalformed))
				continue
			}
			if err := delivery.Ack(false); err != nil {
				log.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

var errMalformed = errors.New("malformed price message")

func (c *Consumer) handleDelivery(stream streamType, body []byte) error {
	msg, err := decodeMessage(stream, body)
	if err != nil {
		return err
	}
	return c.batcher.Add(msg)
}

func decodeMessage(stream streamType, body []byte) (*PriceMessage, error) {
	var msg PriceMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", errMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	switch stream {
	case streamBars:
		if len(msg.Bars) == 0 {
			return nil, fmt.Errorf("%w: bars stream message without bars", errMalformed)
		}
	case streamTicks:
		if len(msg.Ticks) == 0 {
			return nil, fmt.Errorf("%w: ticks stream message without ticks", errMalformed)
		}
	default:
		return nil, fmt.Errorf("unsupported stream: %s", stream)
	}
	return &msg, nil
}

type streamType string

func (s streamType) String() string {
	return string(s)
}

const (
	streamBars  streamType = "bars"
	streamTicks streamType = "ticks"
)

// Publisher writes price messages to the bars and ticks exchanges.
type Publisher struct {
	channel *amqp.Channel
	cfg     config.RabbitMQConfig
	logger  *logrus.Logger
	mu      sync.Mutex
}

func NewPublisher(conn *amqp.Connection, cfg config.RabbitMQConfig, logger *logrus.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	declared := map[string]struct{}{}
	for _, name := range []string{cfg.BarsExchange, cfg.TicksExchange} {
		if name == "" {
			ch.Close()
			return nil, errors.New("exchange name cannot be empty")
		}
		if _, ok := declared[name]; ok {
			continue
		}
		if err := ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", name, err)
		}
		declared[name] = struct{}{}
	}

	return &Publisher{
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Errorf("close rabbitmq channel: %v", err)
	}
}

// Publish routes the message by content: bars to the bars exchange,
// ticks to the ticks exchange.
func (p *Publisher) Publish(ctx context.Context, msg *PriceMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	exchange := p.cfg.BarsExchange
	if len(msg.Ticks) > 0 {
		exchange = p.cfg.TicksExchange
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
