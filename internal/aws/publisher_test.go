package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (r *recordingSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return nil, r.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type recordingCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (r *recordingCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	r.inputs = append(r.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestPublisherSend(t *testing.T) {
	client := &recordingSQS{}
	p := NewPublisher(client, "https://sqs.local/queue")

	err := p.Send(context.Background(), `{"order_id":"o1"}`, map[string]string{
		"order_id":   "o1",
		"event_type": "order.created",
		"empty":      "",
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", *in.QueueUrl)
	assert.Equal(t, `{"order_id":"o1"}`, *in.MessageBody)
	assert.Len(t, in.MessageAttributes, 2)
	assert.Equal(t, "o1", *in.MessageAttributes["order_id"].StringValue)
}

func TestPublisherSendErrors(t *testing.T) {
	p := NewPublisher(&recordingSQS{}, "")
	require.Error(t, p.Send(context.Background(), "{}", nil))

	p = NewPublisher(&recordingSQS{err: errors.New("boom")}, "q")
	err := p.Send(context.Background(), "{}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMetricsRecorderRecord(t *testing.T) {
	client := &recordingCloudWatch{}
	r := NewMetricsRecorder(client, "OrderLifecycle")

	require.NoError(t, r.Record(context.Background()))
	assert.Empty(t, client.inputs)

	err := r.Record(context.Background(),
		Metric{Name: "StockUnitsRestored", Value: 3, Dimensions: map[string]string{"EventType": "order.status_changed"}},
		Metric{Name: "StatusTransitions", Value: 1},
	)
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "OrderLifecycle", *client.inputs[0].Namespace)
	require.Len(t, client.inputs[0].MetricData, 2)
	assert.Equal(t, "StockUnitsRestored", *client.inputs[0].MetricData[0].MetricName)
	assert.Equal(t, 3.0, *client.inputs[0].MetricData[0].Value)
	assert.Len(t, client.inputs[0].MetricData[0].Dimensions, 1)
}
