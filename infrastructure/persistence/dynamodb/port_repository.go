package dynamodb

import (
	"context"
	"fmt"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// PortRepository implements ports.PortRepository using DynamoDB
type PortRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewPortRepository creates a new PortRepository
func NewPortRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.PortRepository {
	return &PortRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// portItem represents the DynamoDB item structure for a port
type portItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	PortID      string `dynamodbav:"PortID"`
	WorkspaceID string `dynamodbav:"WorkspaceID"`
	ContainerID string `dynamodbav:"ContainerID"`
	Name        string `dynamodbav:"Name"`
	Kind        string `dynamodbav:"Kind"`
}

// Save persists a port to DynamoDB
func (r *PortRepository) Save(ctx context.Context, workspaceID string, port *entities.Port) error {
	item := portItem{
		PK:          workspacePK(workspaceID),
		SK:          fmt.Sprintf("PORT#%s", port.ID()),
		EntityType:  "PORT",
		PortID:      port.ID(),
		WorkspaceID: workspaceID,
		ContainerID: port.ContainerID().String(),
		Name:        port.Name(),
		Kind:        string(port.Kind()),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal port", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save port to DynamoDB",
			zap.Error(err),
			zap.String("portID", port.ID()),
		)
		return pkgerrors.NewDatabaseError("save port", err)
	}

	return nil
}

// GetByID retrieves a port by its ID
func (r *PortRepository) GetByID(ctx context.Context, workspaceID string, id string) (*entities.Port, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("PORT#%s", id)},
		},
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get port", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("port %s not found", id))
	}

	var item portItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal port", err)
	}

	return r.reconstruct(item)
}

// GetByContainerID retrieves a container's ports
func (r *PortRepository) GetByContainerID(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID) ([]*entities.Port, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("ContainerID = :container"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":        &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk":        &types.AttributeValueMemberS{Value: "PORT#"},
			":container": &types.AttributeValueMemberS{Value: containerID.String()},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query ports", err)
	}

	portList := make([]*entities.Port, 0, len(result.Items))
	for _, raw := range result.Items {
		var item portItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal port item", zap.Error(err))
			continue
		}
		port, err := r.reconstruct(item)
		if err != nil {
			continue
		}
		portList = append(portList, port)
	}

	return portList, nil
}

// Delete removes a port
func (r *PortRepository) Delete(ctx context.Context, workspaceID string, id string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("PORT#%s", id)},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("delete port", err)
	}

	return nil
}

func (r *PortRepository) reconstruct(item portItem) (*entities.Port, error) {
	containerID, err := valueobjects.NewContainerIDFromString(item.ContainerID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructPort(item.PortID, containerID, item.Name, entities.PortKind(item.Kind)), nil
}
