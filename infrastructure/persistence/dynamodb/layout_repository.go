package dynamodb

import (
	"context"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// LayoutRepository implements ports.LayoutRepository using DynamoDB
type LayoutRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewLayoutRepository creates a new LayoutRepository
func NewLayoutRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.LayoutRepository {
	return &LayoutRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// layoutItem represents the DynamoDB item structure for layout settings
type layoutItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	WorkspaceID string `dynamodbav:"WorkspaceID"`
	Broken      bool   `dynamodbav:"Broken"`
	LastResetAt string `dynamodbav:"LastResetAt"`
}

// Save persists the workspace layout settings
func (r *LayoutRepository) Save(ctx context.Context, settings *entities.LayoutSettings) error {
	item := layoutItem{
		PK:          workspacePK(settings.WorkspaceID()),
		SK:          "LAYOUT",
		EntityType:  "LAYOUT",
		WorkspaceID: settings.WorkspaceID(),
		Broken:      settings.IsBroken(),
		LastResetAt: settings.LastResetAt().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal layout settings", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("save layout settings", err)
	}

	return nil
}

// Get retrieves the workspace layout settings, creating defaults when
// no record exists yet
func (r *LayoutRepository) Get(ctx context.Context, workspaceID string) (*entities.LayoutSettings, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: "LAYOUT"},
		},
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get layout settings", err)
	}

	if result.Item == nil {
		settings, err := entities.NewLayoutSettings(workspaceID)
		if err != nil {
			return nil, err
		}
		return settings, nil
	}

	var item layoutItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal layout settings", err)
	}

	lastResetAt, err := time.Parse(time.RFC3339Nano, item.LastResetAt)
	if err != nil {
		lastResetAt = time.Time{}
	}

	return entities.ReconstructLayoutSettings(item.WorkspaceID, item.Broken, lastResetAt), nil
}
