package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/domain"
)

func TestUserRepo_GetMissingWrapsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewUserRepo(api, "users").Get(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_GetByEmailMissingWrapsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := NewUserRepo(api, "users").GetByEmail(context.Background(), "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_UpdateMissingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	err := NewUserRepo(api, "users").Update(context.Background(), "u1", map[string]interface{}{"first_name": "A"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_QueryPage_Cursor(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		k, _ := in.ExclusiveStartKey["user_id"].(*types.AttributeValueMemberS)
		return *in.IndexName == "enable-index" && k != nil && k.Value == "u1"
	})).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{{"user_id": strVal("u2"), "enable": &types.AttributeValueMemberN{Value: "1"}}},
		LastEvaluatedKey: map[string]types.AttributeValue{"user_id": strVal("u2")},
	}, nil)

	users, next, err := NewUserRepo(api, "users").QueryPage(context.Background(), 1, encodeCursor("u1"))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].UserID)
	assert.Equal(t, encodeCursor("u2"), next)
}

func TestUserRepo_QueryPage_BadCursor(t *testing.T) {
	_, _, err := NewUserRepo(&mockAPI{}, "users").QueryPage(context.Background(), 1, "!!")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
