package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
	orderevents "github.com/imrishuroy/go-order-lifecycle/internal/events"
)

// Metric names published per order event.
const (
	MetricOrdersCreated      = "OrdersCreated"
	MetricOrdersDeleted      = "OrdersDeleted"
	MetricStatusTransitions  = "StatusTransitions"
	MetricRefundRequests     = "RefundRequests"
	MetricRefundsRejected    = "RefundRequestsRejected"
	MetricRefundsProcessed   = "RefundsProcessed"
	MetricStockUnitsDeducted = "StockUnitsDeducted"
	MetricStockUnitsRestored = "StockUnitsRestored"
)

// MetricsSink receives the datapoints derived from an event.
type MetricsSink interface {
	Record(ctx context.Context, metrics ...aws.Metric) error
}

// Processor turns order events from SQS into CloudWatch metrics.
type Processor struct {
	metrics MetricsSink
	logger  *zap.Logger
}

// NewProcessor creates a new worker processor.
func NewProcessor(metrics MetricsSink, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{metrics: metrics, logger: logger}
}

// Handle processes an SQS batch. Messages whose metrics could not be
// published are reported back for redelivery; malformed bodies are logged
// and dropped since a retry cannot fix them.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("order event not processed",
				zap.String("message_id", rec.MessageId),
				zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev orderevents.OrderEvent
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil || ev.Type == "" {
		p.logger.Warn("dropping malformed order event",
			zap.String("message_id", rec.MessageId),
			zap.String("body", rec.Body),
			zap.Error(err))
		return nil
	}

	metrics := metricsFor(ev)
	if len(metrics) == 0 {
		p.logger.Warn("ignoring unknown order event type",
			zap.String("event_type", ev.Type),
			zap.String("order_id", ev.OrderID))
		return nil
	}
	if err := p.metrics.Record(ctx, metrics...); err != nil {
		return fmt.Errorf("record metrics for %s: %w", ev.EventID, err)
	}

	p.logger.Debug("order event processed",
		zap.String("event_id", ev.EventID),
		zap.String("event_type", ev.Type),
		zap.String("order_id", ev.OrderID))
	return nil
}

// metricsFor derives the datapoints for one event. Stock movements are
// reported in units so dashboards can reconcile them against inventory.
func metricsFor(ev orderevents.OrderEvent) []aws.Metric {
	dims := map[string]string{"EventType": ev.Type}

	var out []aws.Metric
	switch ev.Type {
	case orderevents.TypeOrderCreated:
		out = append(out, aws.Metric{Name: MetricOrdersCreated, Value: 1, Dimensions: dims})
	case orderevents.TypeStatusChanged:
		out = append(out, aws.Metric{
			Name:       MetricStatusTransitions,
			Value:      1,
			Dimensions: map[string]string{"EventType": ev.Type, "Status": ev.Status},
		})
	case orderevents.TypeOrderDeleted:
		out = append(out, aws.Metric{Name: MetricOrdersDeleted, Value: 1, Dimensions: dims})
	case orderevents.TypeRefundRequested:
		out = append(out, aws.Metric{Name: MetricRefundRequests, Value: 1, Dimensions: dims})
	case orderevents.TypeRefundRejected:
		out = append(out, aws.Metric{Name: MetricRefundsRejected, Value: 1, Dimensions: dims})
	case orderevents.TypeRefundProcessed:
		out = append(out, aws.Metric{Name: MetricRefundsProcessed, Value: 1, Dimensions: dims})
	default:
		return nil
	}

	if ev.StockUnits > 0 {
		switch ev.StockAction {
		case orderevents.StockDeduct:
			out = append(out, aws.Metric{Name: MetricStockUnitsDeducted, Value: float64(ev.StockUnits), Dimensions: dims})
		case orderevents.StockRestore:
			out = append(out, aws.Metric{Name: MetricStockUnitsRestored, Value: float64(ev.StockUnits), Dimensions: dims})
		}
	}
	return out
}
