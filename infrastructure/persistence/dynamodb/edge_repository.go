package dynamodb

import (
	"context"
	"fmt"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// EdgeRepository implements ports.EdgeRepository using DynamoDB
type EdgeRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewEdgeRepository creates a new EdgeRepository
func NewEdgeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.EdgeRepository {
	return &EdgeRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// edgeItem represents the DynamoDB item structure for an edge
type edgeItem struct {
	PK            string            `dynamodbav:"PK"`
	SK            string            `dynamodbav:"SK"`
	EntityType    string            `dynamodbav:"EntityType"`
	EdgeID        string            `dynamodbav:"EdgeID"`
	WorkspaceID   string            `dynamodbav:"WorkspaceID"`
	SourcePortID  string            `dynamodbav:"SourcePortID"`
	TargetPortID  string            `dynamodbav:"TargetPortID"`
	Relationship  string            `dynamodbav:"Relationship"`
	Direction     string            `dynamodbav:"Direction"`
	AutoGenerated bool              `dynamodbav:"AutoGenerated"`
	Metadata      map[string]string `dynamodbav:"Metadata"`
	CreatedAt     string            `dynamodbav:"CreatedAt"`
}

// Save persists an edge to DynamoDB
func (r *EdgeRepository) Save(ctx context.Context, edge *entities.Edge) error {
	item := edgeItem{
		PK:            workspacePK(edge.WorkspaceID()),
		SK:            fmt.Sprintf("EDGE#%s", edge.ID()),
		EntityType:    "EDGE",
		EdgeID:        edge.ID(),
		WorkspaceID:   edge.WorkspaceID(),
		SourcePortID:  edge.SourcePortID(),
		TargetPortID:  edge.TargetPortID(),
		Relationship:  string(edge.RelationshipType()),
		Direction:     string(edge.Direction()),
		AutoGenerated: edge.AutoGenerated(),
		Metadata:      edge.Metadata(),
		CreatedAt:     edge.CreatedAt().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal edge", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save edge to DynamoDB",
			zap.Error(err),
			zap.String("edgeID", edge.ID()),
		)
		return pkgerrors.NewDatabaseError("save edge", err)
	}

	return nil
}

// GetByID retrieves an edge by its ID
func (r *EdgeRepository) GetByID(ctx context.Context, workspaceID string, id string) (*entities.Edge, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("EDGE#%s", id)},
		},
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get edge", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("edge %s not found", id))
	}

	var item edgeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal edge", err)
	}

	return r.reconstruct(item), nil
}

// GetByWorkspaceID retrieves all edges in a workspace
func (r *EdgeRepository) GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Edge, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk": &types.AttributeValueMemberS{Value: "EDGE#"},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query edges", err)
	}

	return r.reconstructAll(result.Items), nil
}

// GetByPortID retrieves the edges touching a port on either end
func (r *EdgeRepository) GetByPortID(ctx context.Context, workspaceID string, portID string) ([]*entities.Edge, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(workspacePK(workspaceID))).
		And(expression.Key("SK").BeginsWith("EDGE#"))
	filter := expression.Name("SourcePortID").Equal(expression.Value(portID)).
		Or(expression.Name("TargetPortID").Equal(expression.Value(portID)))

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithFilter(filter).
		Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build edge query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query edges by port", err)
	}

	return r.reconstructAll(result.Items), nil
}

// Delete removes an edge
func (r *EdgeRepository) Delete(ctx context.Context, workspaceID string, id string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("EDGE#%s", id)},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("delete edge", err)
	}

	return nil
}

func (r *EdgeRepository) reconstructAll(items []map[string]types.AttributeValue) []*entities.Edge {
	edges := make([]*entities.Edge, 0, len(items))
	for _, raw := range items {
		var item edgeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal edge item", zap.Error(err))
			continue
		}
		edges = append(edges, r.reconstruct(item))
	}
	return edges
}

func (r *EdgeRepository) reconstruct(item edgeItem) *entities.Edge {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return entities.ReconstructEdge(
		item.EdgeID,
		item.WorkspaceID,
		item.SourcePortID,
		item.TargetPortID,
		entities.RelationshipType(item.Relationship),
		entities.EdgeDirection(item.Direction),
		item.AutoGenerated,
		item.Metadata,
		createdAt,
	)
}
