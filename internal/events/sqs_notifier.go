package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
)

// SQSNotifier publishes events as JSON messages to an SQS queue.
type SQSNotifier struct {
	publisher *aws.Publisher
}

// NewSQSNotifier returns a notifier backed by publisher.
func NewSQSNotifier(publisher *aws.Publisher) *SQSNotifier {
	return &SQSNotifier{publisher: publisher}
}

// Notify implements Notifier.
func (n *SQSNotifier) Notify(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"event_type": event.Type,
		"order_id":   event.OrderID,
		"event_id":   event.EventID,
	}
	return n.publisher.Send(ctx, string(body), attrs)
}
