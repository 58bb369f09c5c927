package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewClientFromConfig accepts an AWS SDK config and returns a DynamoDB client.
func NewClientFromConfig(cfg sdkaws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

type putItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// IdempotencyStore records processed event ids so at-least-once deliveries
// are applied once. The table is keyed on "event_id" and expires rows through
// the "expires_at" TTL attribute.
type IdempotencyStore struct {
	client putItemAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
}

func NewIdempotencyStore(client *dynamodb.Client, table string, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, table: table, ttl: ttl, now: time.Now}
}

type idempotencyItem struct {
	EventID   string `dynamodbav:"event_id"`
	ClaimedAt string `dynamodbav:"claimed_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// Claim records eventID. It returns false when the id was already claimed.
func (s *IdempotencyStore) Claim(ctx context.Context, eventID string) (bool, error) {
	now := s.now().UTC()
	item, err := attributevalue.MarshalMap(idempotencyItem{
		EventID:   eventID,
		ClaimedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal idempotency item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           sdkaws.String(s.table),
		Item:                item,
		ConditionExpression: sdkaws.String("attribute_not_exists(event_id) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return true, nil
}

// Release forgets eventID so a failed delivery can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, eventID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{"event_id": eventID})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: sdkaws.String(s.table),
		Key:       key,
	}); err != nil {
		return fmt.Errorf("release %s: %w", eventID, err)
	}
	return nil
}
