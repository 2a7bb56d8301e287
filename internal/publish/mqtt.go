package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const defaultPublishTimeout = 10 * time.Second

// MQTTTransport adapts a paho client to the Transport contract.
type MQTTTransport struct {
	client  mqtt.Client
	timeout time.Duration
}

var _ Transport = (*MQTTTransport)(nil)

// NewMQTTTransport connects to the broker. Reconnection after a drop is left
// to the paho client.
func NewMQTTTransport(brokerURL, clientID string) (*MQTTTransport, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultPublishTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultPublishTimeout) {
		return nil, fmt.Errorf("connect %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", brokerURL, err)
	}
	return &MQTTTransport{client: client, timeout: defaultPublishTimeout}, nil
}

func (m *MQTTTransport) Publish(ctx context.Context, topic string, payload []byte, retain bool, qos byte) error {
	token := m.client.Publish(topic, qos, retain, payload)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return fmt.Errorf("publish %s: timeout", topic)
	case <-done:
		return token.Error()
	}
}

func (m *MQTTTransport) Close() {
	m.client.Disconnect(250)
}
