package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/user"
	apperrors "mindlink-backend/pkg/errors"
)

// UserRepository persists accounts in DynamoDB. Emails are indexed through
// a GSI so login can look up by address.
type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewUserRepository creates a DynamoDB-backed UserRepository.
func NewUserRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		breaker:   newBreaker("dynamodb-users", logger),
		logger:    logger,
	}
}

var _ ports.UserRepository = (*UserRepository)(nil)

type userItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	EntityType   string `dynamodbav:"EntityType"`
	UserID       string `dynamodbav:"UserID"`
	Username     string `dynamodbav:"Username"`
	Email        string `dynamodbav:"Email"`
	PasswordHash string `dynamodbav:"PasswordHash"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
}

func fromUserItem(item userItem) *user.User {
	created, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	return &user.User{
		ID:           item.UserID,
		Username:     item.Username,
		Email:        item.Email,
		PasswordHash: item.PasswordHash,
		CreatedAt:    created,
	}
}

// Create persists a new user. The conditional put rejects duplicate ids;
// email uniqueness is checked by the caller via FindByEmail.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	item := userItem{
		PK:           "USER#" + u.ID,
		SK:           skProfile,
		GSI1PK:       "EMAIL#" + u.Email,
		GSI1SK:       "USER#" + u.ID,
		EntityType:   entityTypeUser,
		UserID:       u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperrors.NewDatabaseError("marshal user item", err)
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(r.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		})
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return apperrors.NewValidationError("Username or Email already exists.")
		}
		return apperrors.NewDatabaseError("put user item", err)
	}
	return nil
}

// FindByID looks up a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: "USER#" + id},
				"SK": &types.AttributeValueMemberS{Value: skProfile},
			},
		})
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user item", err)
	}
	result := out.(*dynamodb.GetItemOutput)
	if len(result.Item) == 0 {
		return nil, apperrors.NewNotFoundError("User")
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, apperrors.NewDatabaseError("unmarshal user item", err)
	}
	return fromUserItem(item), nil
}

// FindByEmail looks up a user by normalized email via the email GSI.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(r.indexName),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: "EMAIL#" + user.NormalizeEmail(email)},
			},
			Limit: aws.Int32(1),
		})
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("query user by email", err)
	}
	result := out.(*dynamodb.QueryOutput)
	if len(result.Items) == 0 {
		return nil, apperrors.NewNotFoundError("User")
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, apperrors.NewDatabaseError("unmarshal user item", err)
	}
	return fromUserItem(item), nil
}
