package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSQS struct {
	messages   []types.Message
	receiveErr error
	deleted    []string
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, sdkaws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestPollOnce_DeletesOnlyHandledMessages(t *testing.T) {
	fake := &fakeSQS{messages: []types.Message{
		{Body: sdkaws.String("ok"), ReceiptHandle: sdkaws.String("rh-1")},
		{Body: sdkaws.String("retry"), ReceiptHandle: sdkaws.String("rh-2")},
		{Body: nil, ReceiptHandle: sdkaws.String("rh-3")},
	}}
	c := &SQSConsumer{client: fake, queueURL: "q", logger: zap.NewNop()}

	var seen []string
	err := c.pollOnce(context.Background(), func(_ context.Context, body string) error {
		seen = append(seen, body)
		if body == "retry" {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"ok", "retry"}, seen)
	assert.Equal(t, []string{"rh-1"}, fake.deleted)
}

func TestPollOnce_ReceiveError(t *testing.T) {
	fake := &fakeSQS{receiveErr: errors.New("throttled")}
	c := &SQSConsumer{client: fake, queueURL: "q", logger: zap.NewNop()}

	err := c.pollOnce(context.Background(), func(context.Context, string) error { return nil })
	assert.Error(t, err)
}

func TestMetricsClient_NilIsDisabled(t *testing.T) {
	var m *MetricsClient
	assert.False(t, m.IsEnabled())
	assert.NoError(t, m.RecordCount(context.Background(), MetricRefundsApproved, nil))
}
