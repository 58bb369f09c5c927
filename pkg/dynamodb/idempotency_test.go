package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

type fakeDynamo struct {
	claimed map[string]bool
	putErr  error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	id := in.Item["event_id"].(*types.AttributeValueMemberS).Value
	if f.claimed[id] {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("conditional request failed")}
	}
	f.claimed[id] = true
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	id := in.Key["event_id"].(*types.AttributeValueMemberS).Value
	delete(f.claimed, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func strPtr(s string) *string { return &s }

func newStore(f *fakeDynamo) *IdempotencyStore {
	return &IdempotencyStore{client: f, table: "notification-events", ttl: 24 * time.Hour, now: time.Now}
}

func TestClaim_SecondClaimIsRejected(t *testing.T) {
	store := newStore(&fakeDynamo{claimed: map[string]bool{}})

	ok, err := store.Claim(context.Background(), "evt-1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(context.Background(), "evt-1")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRelease_AllowsReclaim(t *testing.T) {
	store := newStore(&fakeDynamo{claimed: map[string]bool{}})

	_, _ = store.Claim(context.Background(), "evt-2")
	assert.NoError(t, store.Release(context.Background(), "evt-2"))

	ok, err := store.Claim(context.Background(), "evt-2")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestClaim_PropagatesOtherErrors(t *testing.T) {
	store := newStore(&fakeDynamo{claimed: map[string]bool{}, putErr: errors.New("throttled")})

	ok, err := store.Claim(context.Background(), "evt-3")
	assert.Error(t, err)
	assert.False(t, ok)
}
