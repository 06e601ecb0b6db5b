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

// ApplicationRepo provides typed DynamoDB operations for the applications table.
type ApplicationRepo struct {
	client    API
	tableName string
}

func NewApplicationRepo(client API, tableName string) *ApplicationRepo {
	return &ApplicationRepo{client: client, tableName: tableName}
}

func (r *ApplicationRepo) Put(ctx context.Context, a *domain.Application) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ApplicationRepo) Get(ctx context.Context, applicationID string) (*domain.Application, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("application_id", applicationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("application not found: %w", domain.ErrNotFound)
	}
	var a domain.Application
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApplicationRepo) ListByUser(ctx context.Context, userID string) ([]domain.Application, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": strVal(userID),
		},
	})
	if err != nil {
		return nil, err
	}
	apps := []domain.Application{}
	if err := attributevalue.UnmarshalListOfMaps(items, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *ApplicationRepo) Update(ctx context.Context, applicationID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("application_id", applicationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(application_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("application not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *ApplicationRepo) Delete(ctx context.Context, applicationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("application_id", applicationID),
	})
	return err
}
