package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/valid-names/internal/domain"
)

// activePrefix marks the pointer items that name a user's current token of a
// kind. Real keys are hex digests so the two never collide.
const activePrefix = "active#"

// activeToken points at the outstanding token for one (user, kind).
type activeToken struct {
	TokenHash string `dynamodbav:"token_hash"`
	Current   string `dynamodbav:"current"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// TokenRepo stores email tokens keyed by token digest.
// PK: token_hash. expires_at doubles as the table's TTL attribute.
type TokenRepo struct {
	client    API
	tableName string
}

func NewTokenRepo(client API, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

func activeKey(userID string, kind domain.TokenKind) string {
	return activePrefix + string(kind) + "#" + userID
}

// Issue writes t, swings the user's active pointer to it and deletes the
// token it replaces, all in one transaction. A concurrent issuer for the
// same user and kind makes the pointer condition fail and the loop retries.
func (r *TokenRepo) Issue(ctx context.Context, t *domain.EmailToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal email token: %w", err)
	}
	ptrKey := activeKey(t.UserID, t.Kind)
	ptr, err := attributevalue.MarshalMap(activeToken{
		TokenHash: ptrKey,
		Current:   t.TokenHash,
		ExpiresAt: t.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal active token: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		prev, err := r.active(ctx, ptrKey)
		if err != nil {
			return err
		}

		ptrPut := &types.Put{TableName: aws.String(r.tableName), Item: ptr}
		if prev == nil {
			ptrPut.ConditionExpression = aws.String("attribute_not_exists(token_hash)")
		} else {
			ptrPut.ConditionExpression = aws.String("#c = :prev")
			ptrPut.ExpressionAttributeNames = map[string]string{"#c": "current"}
			ptrPut.ExpressionAttributeValues = map[string]types.AttributeValue{":prev": strVal(prev.Current)}
		}
		items := []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(token_hash)"),
			}},
			{Put: ptrPut},
		}
		if prev != nil && prev.Current != t.TokenHash {
			items = append(items, types.TransactWriteItem{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey("token_hash", prev.Current),
			}})
		}

		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if isTransactionConflict(err) {
			continue
		}
		return err
	}
	return fmt.Errorf("issue %s token: %w", t.Kind, ErrContention)
}

func (r *TokenRepo) Get(ctx context.Context, tokenHash string) (*domain.EmailToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("token_hash", tokenHash),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("email token not found: %w", domain.ErrNotFound)
	}
	var t domain.EmailToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Consume deletes the token only if it has the given kind and is unexpired at
// now. Exactly one of several concurrent callers gets the item back.
func (r *TokenRepo) Consume(ctx context.Context, kind domain.TokenKind, tokenHash string, now time.Time) (*domain.EmailToken, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("token_hash", tokenHash),
		ConditionExpression:      aws.String("attribute_exists(token_hash) AND #k = :k AND expires_at >= :now"),
		ExpressionAttributeNames: map[string]string{"#k": "kind"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k":   strVal(string(kind)),
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(unixCeil(now), 10)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	var t domain.EmailToken
	if err := attributevalue.UnmarshalMap(out.Attributes, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteExpired removes tokens and pointers whose expires_at is before now.
// Only tokens are counted. TTL would remove them eventually; this makes the
// cleanup deterministic.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	items, err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("expires_at < :now"),
		ProjectionExpression:     aws.String("token_hash, #k"),
		ExpressionAttributeNames: map[string]string{"#k": "kind"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(unixCeil(now), 10)},
		},
	})
	if err != nil {
		return 0, err
	}
	tokens := 0
	for _, item := range items {
		if _, ok := item["kind"]; ok {
			tokens++
		}
	}
	if err := batchDelete(ctx, r.client, r.tableName, keysOf(items, "token_hash")); err != nil {
		return 0, err
	}
	return tokens, nil
}

func (r *TokenRepo) active(ctx context.Context, key string) (*activeToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("token_hash", key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var a activeToken
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal active token: %w", err)
	}
	return &a, nil
}

// unixCeil rounds now up to the whole second. expires_at is stored in whole
// seconds, so comparing against the ceiling keeps the same boundary as
// EmailToken.Expired.
func unixCeil(now time.Time) int64 {
	sec := now.Unix()
	if now.Nanosecond() > 0 {
		sec++
	}
	return sec
}
