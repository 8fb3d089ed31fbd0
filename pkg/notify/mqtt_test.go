package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/pkg/config"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.qos = qos
	c.payload, _ = payload.([]byte)
	return newFakeToken(c.err)
}

func TestMQTTPublisherPublish(t *testing.T) {
	client := &fakeClient{}
	p := newMQTTPublisher(client, nil, "timetable/", time.Second, nil)

	err := p.Publish(context.Background(), EventPublished, map[string]interface{}{"draft_version": "v-1"})
	require.NoError(t, err)

	assert.Equal(t, "timetable/published", client.topic)
	assert.Equal(t, byte(1), client.qos)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(client.payload, &body))
	assert.Equal(t, "v-1", body["draft_version"])
}

func TestMQTTPublisherPropagatesBrokerError(t *testing.T) {
	client := &fakeClient{err: errors.New("not authorized")}
	p := newMQTTPublisher(client, nil, "timetable", time.Second, nil)

	err := p.Publish(context.Background(), EventDiscarded, struct{}{})
	assert.ErrorContains(t, err, "not authorized")
}

func TestNewMQTTPublisherDisabled(t *testing.T) {
	p, err := NewMQTTPublisher(config.MQTTConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), EventPublished, nil))
}
