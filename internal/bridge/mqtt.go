package bridge

import (
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/version"
)

// ClientOptions configures the broker connection
type ClientOptions struct {
	Broker      string // e.g., "tcp://localhost:1883"
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	TopicPrefix string
}

// Client connects a Bridge to an MQTT broker
type Client struct {
	client MQTT.Client
	opts   ClientOptions

	mu      sync.Mutex
	topic   string
	handler MQTT.MessageHandler
}

// NewClient creates an MQTT client. The bridge status topic carries a
// retained "online" while connected and the broker publishes "offline" as
// the last will.
func NewClient(opts ClientOptions) *Client {
	c := &Client{opts: opts}

	mopts := MQTT.NewClientOptions().AddBroker(opts.Broker)
	mopts.SetClientID(opts.ClientID)
	mopts.SetAutoReconnect(true)
	mopts.SetMaxReconnectInterval(30 * time.Second)
	// Handlers publish error results; ordering is kept per device by the bridge queues
	mopts.SetOrderMatters(false)
	mopts.SetWill(StatusTopic(opts.TopicPrefix), "offline", opts.QoS, true)

	if opts.Username != "" {
		mopts.SetUsername(opts.Username)
		mopts.SetPassword(opts.Password)
	}

	mopts.SetOnConnectHandler(c.onConnect)
	mopts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		logging.Warn("MQTT connection lost", zap.Error(err))
	})

	c.client = MQTT.NewClient(mopts)
	return c
}

// onConnect subscribes and announces the bridge; it runs after the first
// connect and after every reconnect.
func (c *Client) onConnect(client MQTT.Client) {
	logging.Info("Connected to MQTT broker", zap.String("broker", c.opts.Broker))

	c.mu.Lock()
	topic, handler := c.topic, c.handler
	c.mu.Unlock()

	if topic != "" {
		token := client.Subscribe(topic, c.opts.QoS, handler)
		if token.Wait() && token.Error() != nil {
			logging.Error("MQTT subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
			return
		}
		logging.Info("Subscribed to command topic", zap.String("topic", topic))
	}

	status := "online " + version.Version
	token := client.Publish(StatusTopic(c.opts.TopicPrefix), c.opts.QoS, true, status)
	if token.Wait() && token.Error() != nil {
		logging.Warn("Failed to publish status", zap.Error(token.Error()))
	}
}

// Connect connects to the broker and routes messages on topic to handler.
func (c *Client) Connect(topic string, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.topic = topic
	c.handler = func(_ MQTT.Client, msg MQTT.Message) {
		logging.Debug("MQTT message received",
			zap.String("topic", msg.Topic()),
			zap.ByteString("payload", msg.Payload()))
		handler(msg.Topic(), msg.Payload())
	}
	c.mu.Unlock()

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connection failed: %w", token.Error())
	}
	return nil
}

// Publish publishes a non-retained message
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.opts.QoS, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish failed: %w", token.Error())
	}
	return nil
}

// Close marks the bridge offline and disconnects
func (c *Client) Close() {
	if c.client.IsConnected() {
		token := c.client.Publish(StatusTopic(c.opts.TopicPrefix), c.opts.QoS, true, "offline")
		token.WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
	logging.Info("Disconnected from MQTT broker")
}

// IsConnected reports the connection state
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
