// Package dynamodb implements the persistence ports on a single
// DynamoDB table. Keys follow a WORKSPACE partition with typed sort-key
// prefixes; GSI1 indexes authoritative entity keys for reference
// lookups.
package dynamodb

import (
	"context"
	"fmt"
	"time"

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

// ContainerRepository implements ports.ContainerRepository using DynamoDB
type ContainerRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewContainerRepository creates a new ContainerRepository
func NewContainerRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.ContainerRepository {
	return &ContainerRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// containerItem represents the DynamoDB item structure for a container
type containerItem struct {
	PK          string                 `dynamodbav:"PK"`
	SK          string                 `dynamodbav:"SK"`
	EntityType  string                 `dynamodbav:"EntityType"`
	ContainerID string                 `dynamodbav:"ContainerID"`
	WorkspaceID string                 `dynamodbav:"WorkspaceID"`
	Title       string                 `dynamodbav:"Title"`
	Body        string                 `dynamodbav:"Body"`
	PositionX   float64                `dynamodbav:"PositionX"`
	PositionY   float64                `dynamodbav:"PositionY"`
	Width       float64                `dynamodbav:"Width"`
	Height      float64                `dynamodbav:"Height"`
	ParentID    string                 `dynamodbav:"ParentID,omitempty"`
	IsGhost     bool                   `dynamodbav:"IsGhost"`
	RefType     string                 `dynamodbav:"RefType,omitempty"`
	RefID       string                 `dynamodbav:"RefID,omitempty"`
	Metadata    map[string]interface{} `dynamodbav:"Metadata"`
	CreatedAt   string                 `dynamodbav:"CreatedAt"`
	UpdatedAt   string                 `dynamodbav:"UpdatedAt"`
	Version     int                    `dynamodbav:"Version"`
}

func workspacePK(workspaceID string) string {
	return fmt.Sprintf("WORKSPACE#%s", workspaceID)
}

// Save persists a container to DynamoDB
func (r *ContainerRepository) Save(ctx context.Context, container *entities.Container) error {
	item := containerItem{
		PK:          workspacePK(container.WorkspaceID()),
		SK:          fmt.Sprintf("CONTAINER#%s", container.ID().String()),
		EntityType:  "CONTAINER",
		ContainerID: container.ID().String(),
		WorkspaceID: container.WorkspaceID(),
		Title:       container.Content().Title(),
		Body:        container.Content().Body(),
		PositionX:   container.Position().X(),
		PositionY:   container.Position().Y(),
		Width:       container.Size().Width(),
		Height:      container.Size().Height(),
		IsGhost:     container.IsGhost(),
		Metadata:    container.Metadata(),
		CreatedAt:   container.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt:   container.UpdatedAt().Format(time.RFC3339Nano),
		Version:     container.Version(),
	}
	if !container.ParentID().IsZero() {
		item.ParentID = container.ParentID().String()
	}
	if container.IsIntegrated() {
		item.RefType = string(container.EntityRef().EntityType())
		item.RefID = container.EntityRef().EntityID()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal container", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save container to DynamoDB",
			zap.Error(err),
			zap.String("containerID", container.ID().String()),
		)
		return pkgerrors.NewDatabaseError("save container", err)
	}

	r.logger.Debug("Container saved",
		zap.String("containerID", container.ID().String()),
		zap.String("workspaceID", container.WorkspaceID()),
		zap.Bool("isGhost", container.IsGhost()),
	)

	return nil
}

// GetByID retrieves a container by its ID
func (r *ContainerRepository) GetByID(ctx context.Context, workspaceID string, id valueobjects.ContainerID) (*entities.Container, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CONTAINER#%s", id.String())},
		},
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get container", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("container %s not found", id))
	}

	var item containerItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal container", err)
	}

	return r.reconstruct(item)
}

// GetByWorkspaceID retrieves all containers in a workspace
func (r *ContainerRepository) GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Container, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk": &types.AttributeValueMemberS{Value: "CONTAINER#"},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query containers", err)
	}

	containers := make([]*entities.Container, 0, len(result.Items))
	for _, raw := range result.Items {
		var item containerItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal container item", zap.Error(err))
			continue
		}
		container, err := r.reconstruct(item)
		if err != nil {
			r.logger.Warn("Failed to reconstruct container",
				zap.String("containerID", item.ContainerID),
				zap.Error(err),
			)
			continue
		}
		containers = append(containers, container)
	}

	return containers, nil
}

// GetChildren retrieves the containers nested directly under a parent
func (r *ContainerRepository) GetChildren(ctx context.Context, workspaceID string, parentID valueobjects.ContainerID) ([]*entities.Container, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("ParentID = :parent"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk":     &types.AttributeValueMemberS{Value: "CONTAINER#"},
			":parent": &types.AttributeValueMemberS{Value: parentID.String()},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query children", err)
	}

	children := make([]*entities.Container, 0, len(result.Items))
	for _, raw := range result.Items {
		var item containerItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal container item", zap.Error(err))
			continue
		}
		container, err := r.reconstruct(item)
		if err != nil {
			continue
		}
		children = append(children, container)
	}

	return children, nil
}

// Delete removes a container
func (r *ContainerRepository) Delete(ctx context.Context, workspaceID string, id valueobjects.ContainerID) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CONTAINER#%s", id.String())},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("delete container", err)
	}

	r.logger.Debug("Container deleted",
		zap.String("containerID", id.String()),
		zap.String("workspaceID", workspaceID),
	)

	return nil
}

func (r *ContainerRepository) reconstruct(item containerItem) (*entities.Container, error) {
	id, err := valueobjects.NewContainerIDFromString(item.ContainerID)
	if err != nil {
		return nil, err
	}
	content, err := valueobjects.NewContainerContent(item.Title, item.Body)
	if err != nil {
		return nil, err
	}
	position, err := valueobjects.NewPosition(item.PositionX, item.PositionY)
	if err != nil {
		return nil, err
	}
	size, err := valueobjects.NewSize(item.Width, item.Height)
	if err != nil {
		return nil, err
	}

	var parentID valueobjects.ContainerID
	if item.ParentID != "" {
		parentID, err = valueobjects.NewContainerIDFromString(item.ParentID)
		if err != nil {
			return nil, err
		}
	}

	var ref valueobjects.EntityRef
	if item.RefID != "" {
		ref, err = valueobjects.NewEntityRef(valueobjects.EntityType(item.RefType), item.RefID)
		if err != nil {
			return nil, err
		}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("parse container timestamp", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("parse container timestamp", err)
	}

	return entities.ReconstructContainer(
		id,
		item.WorkspaceID,
		content,
		position,
		size,
		parentID,
		item.IsGhost,
		ref,
		item.Metadata,
		createdAt,
		updatedAt,
		item.Version,
	)
}
