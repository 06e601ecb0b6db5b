package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/valid-names/internal/domain"
)

// ErrContention is returned when a bucket keeps changing under Acquire.
var ErrContention = errors.New("rate limit bucket contended")

// rateLimitBucket holds every retained attempt for one (purpose, email).
// PK: bucket_key. version guards the read-modify-write in Acquire and
// expires_at lets DynamoDB TTL drop idle buckets.
type rateLimitBucket struct {
	BucketKey string                   `dynamodbav:"bucket_key"`
	Email     string                   `dynamodbav:"email"`
	Purpose   domain.RateLimitPurpose  `dynamodbav:"type"`
	Attempts  []domain.RateLimitRecord `dynamodbav:"attempts"`
	Version   int64                    `dynamodbav:"version"`
	ExpiresAt int64                    `dynamodbav:"expires_at"`
}

// RateLimitRepo is the DynamoDB attempt store.
type RateLimitRepo struct {
	client    API
	tableName string
}

func NewRateLimitRepo(client API, tableName string) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName}
}

func bucketKey(purpose domain.RateLimitPurpose, email string) string {
	return string(purpose) + "#" + email
}

// Acquire reads the bucket, counts attempts at or after WindowStart and, when
// below MaxAttempts, writes the bucket back with the new record under a
// version condition. A lost race re-reads and recounts.
func (r *RateLimitRepo) Acquire(ctx context.Context, a domain.RateLimitAttempt) (int, bool, error) {
	key := bucketKey(a.Record.Purpose, a.Record.Email)
	for attempt := 0; attempt < maxRetries; attempt++ {
		b, err := r.get(ctx, key)
		if err != nil {
			return 0, false, err
		}
		if b == nil {
			b = &rateLimitBucket{BucketKey: key, Email: a.Record.Email, Purpose: a.Record.Purpose}
		}

		count := 0
		for _, rec := range b.Attempts {
			if !rec.CreatedAt.Before(a.WindowStart) {
				count++
			}
		}
		if count >= a.MaxAttempts {
			return count, false, nil
		}

		prev := b.Version
		if a.Retention > 0 {
			b.Attempts = retained(b.Attempts, a.Record.CreatedAt.Add(-a.Retention))
		}
		b.Attempts = append(b.Attempts, a.Record)
		b.Version = prev + 1
		b.ExpiresAt = a.Record.CreatedAt.Add(a.Retention).Unix()

		err = r.putVersioned(ctx, b, prev)
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		return count, true, nil
	}
	return 0, false, fmt.Errorf("acquire %s: %w", key, ErrContention)
}

// DeleteBefore trims records created before cutoff from every bucket and
// removes buckets left empty. Buckets modified concurrently are skipped and
// picked up by the next run.
func (r *RateLimitRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	items, err := scanAll(ctx, r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, item := range items {
		var b rateLimitBucket
		if err := attributevalue.UnmarshalMap(item, &b); err != nil {
			return deleted, fmt.Errorf("unmarshal rate limit bucket: %w", err)
		}
		kept := retained(b.Attempts, cutoff)
		removed := len(b.Attempts) - len(kept)
		if removed == 0 {
			continue
		}
		if len(kept) == 0 {
			err = r.deleteVersioned(ctx, b.BucketKey, b.Version)
		} else {
			prev := b.Version
			b.Attempts = kept
			b.Version++
			err = r.putVersioned(ctx, &b, prev)
		}
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted += removed
	}
	return deleted, nil
}

func (r *RateLimitRepo) get(ctx context.Context, key string) (*rateLimitBucket, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("bucket_key", key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var b rateLimitBucket
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, fmt.Errorf("unmarshal rate limit bucket: %w", err)
	}
	return &b, nil
}

func (r *RateLimitRepo) putVersioned(ctx context.Context, b *rateLimitBucket, prev int64) error {
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("marshal rate limit bucket: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(bucket_key) OR #ver = :v"),
		ExpressionAttributeNames: map[string]string{"#ver": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: fmt.Sprint(prev)},
		},
	})
	return err
}

func (r *RateLimitRepo) deleteVersioned(ctx context.Context, key string, version int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("bucket_key", key),
		ConditionExpression:      aws.String("#ver = :v"),
		ExpressionAttributeNames: map[string]string{"#ver": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: fmt.Sprint(version)},
		},
	})
	return err
}

// retained returns the records created at or after cutoff.
func retained(recs []domain.RateLimitRecord, cutoff time.Time) []domain.RateLimitRecord {
	kept := make([]domain.RateLimitRecord, 0, len(recs))
	for _, rec := range recs {
		if !rec.CreatedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	return kept
}
