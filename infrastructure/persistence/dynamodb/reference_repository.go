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

// ReferenceRepository implements ports.ReferenceRepository using DynamoDB.
// GSI1 keys references by authoritative entity so duplicate detection is
// a single query instead of a workspace scan.
type ReferenceRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewReferenceRepository creates a new ReferenceRepository
func NewReferenceRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) ports.ReferenceRepository {
	return &ReferenceRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// referenceItem represents the DynamoDB item structure for a reference
type referenceItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK"` // ENTITY#<workspace>#<type>:<id>
	GSI1SK      string `dynamodbav:"GSI1SK"` // REF#<id>
	EntityType  string `dynamodbav:"EntityType"`
	ReferenceID string `dynamodbav:"ReferenceID"`
	WorkspaceID string `dynamodbav:"WorkspaceID"`
	ContainerID string `dynamodbav:"ContainerID"`
	RefType     string `dynamodbav:"RefType"`
	RefID       string `dynamodbav:"RefID"`
	IsPrimary   bool   `dynamodbav:"IsPrimary"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

func entityGSI1PK(workspaceID string, ref valueobjects.EntityRef) string {
	return fmt.Sprintf("ENTITY#%s#%s", workspaceID, ref.Key())
}

// Save persists a reference to DynamoDB
func (r *ReferenceRepository) Save(ctx context.Context, ref *entities.Reference) error {
	item := referenceItem{
		PK:          workspacePK(ref.WorkspaceID()),
		SK:          fmt.Sprintf("REF#%s", ref.ID()),
		GSI1PK:      entityGSI1PK(ref.WorkspaceID(), ref.EntityRef()),
		GSI1SK:      fmt.Sprintf("REF#%s", ref.ID()),
		EntityType:  "REFERENCE",
		ReferenceID: ref.ID(),
		WorkspaceID: ref.WorkspaceID(),
		ContainerID: ref.ContainerID().String(),
		RefType:     string(ref.EntityRef().EntityType()),
		RefID:       ref.EntityRef().EntityID(),
		IsPrimary:   ref.IsPrimary(),
		CreatedAt:   ref.CreatedAt().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal reference", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save reference to DynamoDB",
			zap.Error(err),
			zap.String("referenceID", ref.ID()),
		)
		return pkgerrors.NewDatabaseError("save reference", err)
	}

	return nil
}

// GetByID retrieves a reference by its ID
func (r *ReferenceRepository) GetByID(ctx context.Context, workspaceID string, id string) (*entities.Reference, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("REF#%s", id)},
		},
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get reference", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("reference %s not found", id))
	}

	var item referenceItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal reference", err)
	}

	return r.reconstruct(item)
}

// GetByWorkspaceID retrieves all references in a workspace
func (r *ReferenceRepository) GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Reference, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk": &types.AttributeValueMemberS{Value: "REF#"},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query references", err)
	}

	return r.reconstructAll(result.Items), nil
}

// GetByEntity retrieves the references pointing at an authoritative entity
func (r *ReferenceRepository) GetByEntity(ctx context.Context, workspaceID string, ref valueobjects.EntityRef) ([]*entities.Reference, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.indexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: entityGSI1PK(workspaceID, ref)},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query references by entity", err)
	}

	return r.reconstructAll(result.Items), nil
}

// GetByContainerID retrieves the references carried by a container
func (r *ReferenceRepository) GetByContainerID(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID) ([]*entities.Reference, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("ContainerID = :container"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":        &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk":        &types.AttributeValueMemberS{Value: "REF#"},
			":container": &types.AttributeValueMemberS{Value: containerID.String()},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query references by container", err)
	}

	return r.reconstructAll(result.Items), nil
}

// Delete removes a reference
func (r *ReferenceRepository) Delete(ctx context.Context, workspaceID string, id string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("REF#%s", id)},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("delete reference", err)
	}

	return nil
}

func (r *ReferenceRepository) reconstructAll(items []map[string]types.AttributeValue) []*entities.Reference {
	refs := make([]*entities.Reference, 0, len(items))
	for _, raw := range items {
		var item referenceItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal reference item", zap.Error(err))
			continue
		}
		ref, err := r.reconstruct(item)
		if err != nil {
			r.logger.Warn("Failed to reconstruct reference",
				zap.String("referenceID", item.ReferenceID),
				zap.Error(err),
			)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (r *ReferenceRepository) reconstruct(item referenceItem) (*entities.Reference, error) {
	containerID, err := valueobjects.NewContainerIDFromString(item.ContainerID)
	if err != nil {
		return nil, err
	}
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityType(item.RefType), item.RefID)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("parse reference timestamp", err)
	}

	return entities.ReconstructReference(item.ReferenceID, item.WorkspaceID, containerID, ref, item.IsPrimary, createdAt), nil
}
