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

// TLDRepo provides typed DynamoDB operations for the TLD catalogue.
type TLDRepo struct {
	client    API
	tableName string
}

func NewTLDRepo(client API, tableName string) *TLDRepo {
	return &TLDRepo{client: client, tableName: tableName}
}

func (r *TLDRepo) Put(ctx context.Context, t *domain.TLD) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal tld: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TLDRepo) Get(ctx context.Context, tldID string) (*domain.TLD, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("tld_id", tldID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("tld not found: %w", domain.ErrNotFound)
	}
	var t domain.TLD
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TLDRepo) Scan(ctx context.Context) ([]domain.TLD, error) {
	return r.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
}

func (r *TLDRepo) ListEnabled(ctx context.Context) ([]domain.TLD, error) {
	return r.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("#e = :t"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEnable},
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": &types.AttributeValueMemberBOOL{Value: true}},
	})
}

func (r *TLDRepo) Update(ctx context.Context, tldID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("tld_id", tldID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(tld_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("tld not found: %w", domain.ErrNotFound)
	}
	return err
}

// HardDelete permanently removes a TLD. Existing checks keep their tld value.
func (r *TLDRepo) HardDelete(ctx context.Context, tldID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("tld_id", tldID),
	})
	return err
}

func (r *TLDRepo) scan(ctx context.Context, in *dynamodb.ScanInput) ([]domain.TLD, error) {
	items, err := scanAll(ctx, r.client, in)
	if err != nil {
		return nil, err
	}
	tlds := []domain.TLD{}
	if err := attributevalue.UnmarshalListOfMaps(items, &tlds); err != nil {
		return nil, err
	}
	return tlds, nil
}
