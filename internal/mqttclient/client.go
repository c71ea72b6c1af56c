package mqttclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Event names published under the topic prefix.
const (
	EventGenerationCompleted = "generations/completed"
	EventGenerationFailed    = "generations/failed"
	EventFeedbackCreated     = "feedback/created"
	EventModifierChanged     = "modifiers/changed"
)

var ErrNotConnected = errors.New("mqtt not connected")

const publishTimeout = 5 * time.Second

// Client publishes JSON events to an MQTT broker.
type Client struct {
	conn      mqtt.Client
	prefix    string
	connected atomic.Bool
	published atomic.Int64
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Log         zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("prefix", c.prefix).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Publish sends v as JSON to {prefix}/{event} with QoS 1.
func (c *Client) Publish(event string, v any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	topic := Topic(c.prefix, event)
	token := c.conn.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.published.Add(1)
	c.log.Debug().Str("topic", topic).Int("payload_size", len(payload)).Msg("mqtt event published")
	return nil
}

// Published returns the number of events delivered to the broker.
func (c *Client) Published() int64 { return c.published.Load() }

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

// Topic joins the prefix and event name.
func Topic(prefix, event string) string {
	prefix = strings.Trim(prefix, "/")
	event = strings.Trim(event, "/")
	if prefix == "" {
		return event
	}
	return prefix + "/" + event
}
