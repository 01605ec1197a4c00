package mqttbus

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the publish side of the bus.
type IPublisher interface {
	Publish(topic string, payload []byte) error
	PublishQoS(topic string, qos byte, retained bool, payload []byte) error
	Close()
}

// Publisher publishes on a shared MQTT client.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends at QoS 0.
func (p *Publisher) Publish(topic string, payload []byte) error {
	return p.PublishQoS(topic, 0, false, payload)
}

func (p *Publisher) PublishQoS(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects the underlying client if still connected.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
