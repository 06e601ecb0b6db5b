package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/valid-names/internal/domain"
)

// CheckRepo stores the latest availability result per domain and TLD.
// PK: domain_id, SK: tld
type CheckRepo struct {
	client    API
	tableName string
}

func NewCheckRepo(client API, tableName string) *CheckRepo {
	return &CheckRepo{client: client, tableName: tableName}
}

// Put replaces the current check for (domain, tld).
func (r *CheckRepo) Put(ctx context.Context, c *domain.Check) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal check: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *CheckRepo) Get(ctx context.Context, domainID, tld string) (*domain.Check, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("domain_id", domainID, "tld", tld),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("check not found: %w", domain.ErrNotFound)
	}
	var c domain.Check
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepo) ListByDomain(ctx context.Context, domainID string) ([]domain.Check, error) {
	return r.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("domain_id = :did"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":did": strVal(domainID),
		},
	})
}

func (r *CheckRepo) ListByApplication(ctx context.Context, applicationID string) ([]domain.Check, error) {
	return r.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("application_id-index"),
		KeyConditionExpression: aws.String("application_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": strVal(applicationID),
		},
	})
}

// ListStale returns up to limit checks last run before the given time.
func (r *CheckRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Check, error) {
	cutoff, err := attributevalue.Marshal(before.UTC())
	if err != nil {
		return nil, err
	}
	in := &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("checked_at < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":cutoff": cutoff},
	}
	checks := []domain.Check{}
	for len(checks) < limit {
		out, err := r.client.Scan(ctx, in)
		if err != nil {
			return nil, err
		}
		var page []domain.Check
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		checks = append(checks, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if len(checks) > limit {
		checks = checks[:limit]
	}
	return checks, nil
}

func (r *CheckRepo) DeleteByDomain(ctx context.Context, domainID string) error {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("domain_id = :did"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":did": strVal(domainID),
		},
		ProjectionExpression: aws.String("domain_id, tld"),
	})
	if err != nil {
		return err
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, "domain_id", "tld"))
}

func (r *CheckRepo) query(ctx context.Context, in *dynamodb.QueryInput) ([]domain.Check, error) {
	items, err := queryAll(ctx, r.client, in)
	if err != nil {
		return nil, err
	}
	checks := []domain.Check{}
	if err := attributevalue.UnmarshalListOfMaps(items, &checks); err != nil {
		return nil, err
	}
	return checks, nil
}
