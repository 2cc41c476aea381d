package dynamodb

import (
	"context"
	"fmt"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// VisibilityRepository implements ports.VisibilityRepository using
// DynamoDB. Hidden flags are per user; hiding never removes canvas
// data, so an unhide is just a delete of the preference item.
type VisibilityRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewVisibilityRepository creates a new VisibilityRepository
func NewVisibilityRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.VisibilityRepository {
	return &VisibilityRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func visibilitySK(userID string, containerID valueobjects.ContainerID) string {
	return fmt.Sprintf("VIS#%s#%s", userID, containerID.String())
}

// SetHidden stores a user's visibility preference for a container
func (r *VisibilityRepository) SetHidden(ctx context.Context, workspaceID string, userID string, containerID valueobjects.ContainerID, hidden bool) error {
	if !hidden {
		input := &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
				"SK": &types.AttributeValueMemberS{Value: visibilitySK(userID, containerID)},
			},
		}
		if _, err := r.client.DeleteItem(ctx, input); err != nil {
			return pkgerrors.NewDatabaseError("clear visibility preference", err)
		}
		return nil
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK":          &types.AttributeValueMemberS{Value: visibilitySK(userID, containerID)},
			"EntityType":  &types.AttributeValueMemberS{Value: "VISIBILITY"},
			"WorkspaceID": &types.AttributeValueMemberS{Value: workspaceID},
			"UserID":      &types.AttributeValueMemberS{Value: userID},
			"ContainerID": &types.AttributeValueMemberS{Value: containerID.String()},
		},
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("save visibility preference", err)
	}

	return nil
}

// GetHidden retrieves the set of container IDs a user has hidden
func (r *VisibilityRepository) GetHidden(ctx context.Context, workspaceID string, userID string) (map[string]bool, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			":sk": &types.AttributeValueMemberS{Value: fmt.Sprintf("VIS#%s#", userID)},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query visibility preferences", err)
	}

	hidden := make(map[string]bool, len(result.Items))
	for _, raw := range result.Items {
		id, ok := raw["ContainerID"].(*types.AttributeValueMemberS)
		if !ok {
			r.logger.Warn("Visibility item missing ContainerID")
			continue
		}
		hidden[id.Value] = true
	}

	return hidden, nil
}

var _ ports.VisibilityRepository = (*VisibilityRepository)(nil)
