// Package dynamodb implements the persistence ports on a single DynamoDB
// table. Documents are stored as one item and overwritten whole on save;
// there is deliberately no conditional write or version attribute, so
// concurrent operation cycles on the same document resolve last-writer-wins.
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/mindmap"
	apperrors "mindlink-backend/pkg/errors"
)

const (
	entityTypeMap  = "MAP"
	entityTypeUser = "USER"
	skMetadata     = "METADATA"
	skProfile      = "PROFILE"
)

// newBreaker builds the circuit breaker shared by the repositories. It
// trips after a sustained failure rate so a struggling table degrades to
// fast errors instead of piling up in-flight writes.
func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// MapRepository persists mind map documents in DynamoDB.
type MapRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewMapRepository creates a DynamoDB-backed MapRepository. indexName is
// the GSI keyed by owner for list-mine queries.
func NewMapRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *MapRepository {
	return &MapRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		breaker:   newBreaker("dynamodb-maps", logger),
		logger:    logger,
	}
}

var _ ports.MapRepository = (*MapRepository)(nil)

// mapItem is the DynamoDB item layout for one document.
type mapItem struct {
	PK            string         `dynamodbav:"PK"`
	SK            string         `dynamodbav:"SK"`
	GSI1PK        string         `dynamodbav:"GSI1PK"`
	GSI1SK        string         `dynamodbav:"GSI1SK"`
	EntityType    string         `dynamodbav:"EntityType"`
	MapID         string         `dynamodbav:"MapID"`
	Title         string         `dynamodbav:"Title"`
	Owner         string         `dynamodbav:"Owner"`
	Collaborators []string       `dynamodbav:"Collaborators"`
	Nodes         []mindmap.Node `dynamodbav:"Nodes"`
	Edges         []mindmap.Edge `dynamodbav:"Edges"`
	CreatedAt     string         `dynamodbav:"CreatedAt"`
	UpdatedAt     string         `dynamodbav:"UpdatedAt"`
}

func mapKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "MAP#" + id},
		"SK": &types.AttributeValueMemberS{Value: skMetadata},
	}
}

func toMapItem(m *mindmap.Map) mapItem {
	collaborators := m.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return mapItem{
		PK:            "MAP#" + m.ID,
		SK:            skMetadata,
		GSI1PK:        "USER#" + m.Owner,
		GSI1SK:        "MAP#" + m.ID,
		EntityType:    entityTypeMap,
		MapID:         m.ID,
		Title:         m.Title,
		Owner:         m.Owner,
		Collaborators: collaborators,
		Nodes:         m.Nodes,
		Edges:         m.Edges,
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     m.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromMapItem(item mapItem) *mindmap.Map {
	created, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	m := &mindmap.Map{
		ID:            item.MapID,
		Title:         item.Title,
		Owner:         item.Owner,
		Collaborators: item.Collaborators,
		Nodes:         item.Nodes,
		Edges:         item.Edges,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}
	if m.Nodes == nil {
		m.Nodes = []mindmap.Node{}
	}
	if m.Edges == nil {
		m.Edges = []mindmap.Edge{}
	}
	return m
}

// Create persists a new map.
func (r *MapRepository) Create(ctx context.Context, m *mindmap.Map) error {
	return r.put(ctx, m)
}

// Save overwrites the whole document.
func (r *MapRepository) Save(ctx context.Context, m *mindmap.Map) error {
	m.UpdatedAt = time.Now().UTC()
	return r.put(ctx, m)
}

func (r *MapRepository) put(ctx context.Context, m *mindmap.Map) error {
	av, err := attributevalue.MarshalMap(toMapItem(m))
	if err != nil {
		return apperrors.NewDatabaseError("marshal map item", err)
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      av,
		})
	})
	if err != nil {
		return apperrors.NewDatabaseError("put map item", err)
	}
	return nil
}

// FindByID loads the full document.
func (r *MapRepository) FindByID(ctx context.Context, id string) (*mindmap.Map, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.tableName),
			Key:       mapKey(id),
		})
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("get map item", err)
	}
	result := out.(*dynamodb.GetItemOutput)
	if result.Item == nil || len(result.Item) == 0 {
		return nil, apperrors.NewNotFoundError("Map")
	}

	var item mapItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, apperrors.NewDatabaseError("unmarshal map item", err)
	}
	return fromMapItem(item), nil
}

// FindByUser returns maps owned by the user plus maps where the user is a
// collaborator. Ownership uses the owner GSI; collaboration falls back to
// a filtered scan, which is acceptable at mind-map scale.
func (r *MapRepository) FindByUser(ctx context.Context, userID string) ([]*mindmap.Map, error) {
	seen := make(map[string]bool)
	var maps []*mindmap.Map

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(r.indexName),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: "USER#" + userID},
			},
		})
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("query maps by owner", err)
	}
	for _, raw := range out.(*dynamodb.QueryOutput).Items {
		var item mapItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("skipping undecodable map item", zap.Error(err))
			continue
		}
		if item.EntityType != entityTypeMap || seen[item.MapID] {
			continue
		}
		seen[item.MapID] = true
		maps = append(maps, fromMapItem(item))
	}

	out, err = r.breaker.Execute(func() (interface{}, error) {
		return r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("EntityType = :t AND contains(Collaborators, :uid)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t":   &types.AttributeValueMemberS{Value: entityTypeMap},
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
		})
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("scan maps by collaborator", err)
	}
	for _, raw := range out.(*dynamodb.ScanOutput).Items {
		var item mapItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("skipping undecodable map item", zap.Error(err))
			continue
		}
		if seen[item.MapID] {
			continue
		}
		seen[item.MapID] = true
		maps = append(maps, fromMapItem(item))
	}

	return maps, nil
}

// Delete removes the document.
func (r *MapRepository) Delete(ctx context.Context, id string) error {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(r.tableName),
			Key:          mapKey(id),
			ReturnValues: types.ReturnValueAllOld,
		})
	})
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Sprintf("delete map %s", id), err)
	}
	if len(out.(*dynamodb.DeleteItemOutput).Attributes) == 0 {
		return apperrors.NewNotFoundError("Map")
	}
	return nil
}
