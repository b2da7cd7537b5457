package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric is a single count datapoint.
type Metric struct {
	Name       string
	Value      float64
	Dimensions map[string]string
}

// MetricsRecorder publishes count metrics to a CloudWatch namespace.
type MetricsRecorder struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricsRecorder returns a recorder writing into namespace.
func NewMetricsRecorder(client CloudWatchAPI, namespace string) *MetricsRecorder {
	return &MetricsRecorder{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Record sends metrics in a single PutMetricData call. CloudWatch accepts at
// most 1000 datapoints per request, far above what one event produces.
func (r *MetricsRecorder) Record(ctx context.Context, metrics ...Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	now := r.nowFunc()
	data := make([]cwtypes.MetricDatum, 0, len(metrics))
	for _, m := range metrics {
		datum := cwtypes.MetricDatum{
			MetricName: awsString(m.Name),
			Value:      &m.Value,
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  &now,
		}
		for k, v := range m.Dimensions {
			datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
				Name:  awsString(k),
				Value: awsString(v),
			})
		}
		data = append(data, datum)
	}

	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &r.namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
