// Package mqtt publishes cycle outcomes to a broker so fleet tooling can
// watch a device flip between client and AP mode. Disabled by default.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/config"
	"github.com/hwaldner/autowifi/pkg/logx"
)

const connectTimeout = 10 * time.Second

// Client implements decision.Publisher over an MQTT broker.
type Client struct {
	client MQTT.Client
	cfg    *config.MQTTConfig
	logger *logx.Logger
}

// NewClient creates a publisher from the MQTT section of the config.
func NewClient(cfg *config.MQTTConfig, logger *logx.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Connect establishes the broker connection. A disabled config is a no-op.
func (c *Client) Connect() error {
	if !c.cfg.Enabled {
		c.logger.Debug("MQTT publisher disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port))
	opts.SetClientID(c.cfg.ClientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	c.client = MQTT.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s:%d", c.cfg.Broker, c.cfg.Port)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	c.logger.Info("Connected to MQTT broker", "broker", c.cfg.Broker, "port", c.cfg.Port)
	return nil
}

// PublishCycle sends the cycle record as JSON to <prefix>/cycle.
func (c *Client) PublishCycle(rec *pkg.CycleRecord) error {
	if c.client == nil || !c.client.IsConnected() {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode cycle record: %w", err)
	}
	topic := c.cfg.TopicPrefix + "/cycle"
	token := c.client.Publish(topic, byte(c.cfg.QoS), c.cfg.Retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	return token.Error()
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
