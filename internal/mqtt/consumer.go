package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/events"
)

// StatusConsumer forwards status notifications to the broker as JSON.
// It implements events.StatusConsumer.
type StatusConsumer struct {
	client  Client
	topic   string
	timeout time.Duration
}

// NewStatusConsumer publishes every status event to topic
func NewStatusConsumer(c Client, topic string, timeout time.Duration) *StatusConsumer {
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	return &StatusConsumer{client: c, topic: topic, timeout: timeout}
}

func (s *StatusConsumer) Name() string { return "mqtt" }

// ProcessStatus publishes event under topic/<operation>
func (s *StatusConsumer) ProcessStatus(event events.StatusEvent) error {
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected, dropping %s status", event.Operation)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Publish(ctx, s.topicFor(event), payload)
}

func (s *StatusConsumer) topicFor(event events.StatusEvent) string {
	if event.Operation == "" {
		return s.topic
	}
	return s.topic + "/" + event.Operation
}
