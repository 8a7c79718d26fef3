package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig broker settings
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // prefix, delivery id is appended
}

// mqttSender is the part of the broker client the publisher needs.
type mqttSender interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// MQTTClient wraps a paho client.
type MQTTClient struct {
	client mqtt.Client
}

// NewMQTTClient connects to the broker.
func NewMQTTClient(cfg MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTClient{client: client}, nil
}

func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

// MQTTPublisher publishes JSON events to <topic>/<delivery id> at QoS 1.
type MQTTPublisher struct {
	sender mqttSender
	topic  string
}

func NewMQTTPublisher(sender mqttSender, topic string) *MQTTPublisher {
	if topic == "" {
		topic = "dispatch/deliveries"
	}
	return &MQTTPublisher{sender: sender, topic: topic}
}

func (p *MQTTPublisher) Publish(_ context.Context, ev LifecycleEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.sender.Publish(p.topic+"/"+strconv.FormatInt(ev.DeliveryID, 10), 1, false, payload)
}

func (p *MQTTPublisher) Close() error {
	p.sender.Disconnect()
	return nil
}
