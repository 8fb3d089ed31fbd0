package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/pkg/config"
)

// Timetable event names, appended to the configured topic prefix.
const (
	EventPublished = "published"
	EventDiscarded = "discarded"
	EventReverted  = "reverted"
	EventGenerated = "generated"
)

const (
	publishQoS       = 1
	disconnectQuiesc = 250
)

// Publisher sends timetable lifecycle events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
	Close()
}

type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes JSON events onto "<prefix>/<event>".
type MQTTPublisher struct {
	client  tokenPublisher
	closer  func()
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewMQTTPublisher connects to the broker. A disabled config yields a no-op publisher.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return NopPublisher{}, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		logger.Sugar().Infow("mqtt connected", "broker", cfg.BrokerURL)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Sugar().Warnw("mqtt connection lost", "broker", cfg.BrokerURL, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect mqtt broker %s: timeout", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", cfg.BrokerURL, err)
	}

	return newMQTTPublisher(client, func() { client.Disconnect(disconnectQuiesc) }, cfg.TopicPrefix, cfg.ConnectTimeout, logger), nil
}

func newMQTTPublisher(client tokenPublisher, closer func(), prefix string, timeout time.Duration, logger *zap.Logger) *MQTTPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTPublisher{
		client:  client,
		closer:  closer,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Topic resolves the full topic for an event.
func (p *MQTTPublisher) Topic(event string) string {
	if p.prefix == "" {
		return event
	}
	return p.prefix + "/" + event
}

// Publish marshals payload and waits for the broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	token := p.client.Publish(p.Topic(event), publishQoS, false, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	case <-time.After(p.timeout):
		return fmt.Errorf("publish %s event: timeout", event)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}

	p.logger.Sugar().Debugw("mqtt event published", "topic", p.Topic(event), "bytes", len(body))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

func (NopPublisher) Close() {}
