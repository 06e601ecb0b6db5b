package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/valid-names/internal/domain"
)

// DomainRepo provides typed DynamoDB operations for the domains table.
type DomainRepo struct {
	client    API
	tableName string
}

func NewDomainRepo(client API, tableName string) *DomainRepo {
	return &DomainRepo{client: client, tableName: tableName}
}

// Put inserts a new domain. The same label may appear in other categories.
func (r *DomainRepo) Put(ctx context.Context, d *domain.Domain) error {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("marshal domain: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(domain_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("domain already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *DomainRepo) Get(ctx context.Context, domainID string) (*domain.Domain, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("domain_id", domainID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("domain not found: %w", domain.ErrNotFound)
	}
	var d domain.Domain
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DomainRepo) ListByCategory(ctx context.Context, categoryID string) ([]domain.Domain, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("category_id-index"),
		KeyConditionExpression: aws.String("category_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": strVal(categoryID),
		},
	})
	if err != nil {
		return nil, err
	}
	domains := []domain.Domain{}
	if err := attributevalue.UnmarshalListOfMaps(items, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

func (r *DomainRepo) Delete(ctx context.Context, domainID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("domain_id", domainID),
	})
	return err
}
