package mqttbus

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Handler processes one inbound message. Returning an error only logs it;
// the subscription stays up.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is the subscription side of the bus.
type IConsumer interface {
	Consume(ctx context.Context)
	SetHandler(h Handler)
}

// qosFor upgrades command-style topics to QoS 1. Sensor readings stay at
// QoS 0; a lost sample is replaced by the next one, a lost command is not.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "/dosing/") ||
		strings.HasPrefix(t, "/alerts/deficiency") ||
		strings.Contains(t, "/pump/command") ||
		strings.Contains(t, "/reservoir/changed") {
		return 1
	}
	return 0
}

// Consumer subscribes to a single topic filter on a shared client.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
	log     zerolog.Logger
}

func NewConsumer(client mqtt.Client, topic string, h Handler, log zerolog.Logger) *Consumer {
	return &Consumer{client: client, topic: topic, handler: h, log: log}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// Consume subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			c.log.Warn().Str("topic", c.topic).Msg("no handler set")
			return
		}
		if err := c.handler(msg.Topic(), msg); err != nil {
			c.log.Error().Err(err).Str("topic", msg.Topic()).Msg("message handler error")
		}
	})
	if token.Wait() && token.Error() != nil {
		c.log.Error().Err(token.Error()).Str("topic", c.topic).Msg("subscribe failed")
		return
	}
	c.log.Info().Str("topic", c.topic).Msg("subscribed")

	<-ctx.Done()
	c.client.Unsubscribe(c.topic).Wait()
}

// MultiConsumer subscribes to several topic filters with one handler.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	log     zerolog.Logger
}

func NewMultiConsumer(client mqtt.Client, topics []string, h Handler, log zerolog.Logger) *MultiConsumer {
	return &MultiConsumer{client: client, topics: topics, handler: h, log: log}
}

func (m *MultiConsumer) SetHandler(h Handler) { m.handler = h }

func (m *MultiConsumer) Consume(ctx context.Context) {
	for _, topic := range m.topics {
		topic := topic
		token := m.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if m.handler == nil {
				m.log.Warn().Str("topic", topic).Msg("no handler set")
				return
			}
			if err := m.handler(msg.Topic(), msg); err != nil {
				m.log.Error().Err(err).Str("topic", msg.Topic()).Msg("message handler error")
			}
		})
		token.Wait()
		if token.Error() != nil {
			m.log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
		} else {
			m.log.Info().Str("topic", topic).Msg("subscribed")
		}
	}

	<-ctx.Done()
	for _, topic := range m.topics {
		m.client.Unsubscribe(topic)
	}
}
