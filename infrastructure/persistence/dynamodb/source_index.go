package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// SourceIndex is a read-mostly replica of authoritative entity keys.
// The sync listener maintains it from change events; planners use it
// for existence checks without calling the authoritative service.
// CreateTask and CreateTrack are the only writes that originate here,
// and each one records the new key so a follow-up materialization sees
// it immediately.
type SourceIndex struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewSourceIndex creates a new SourceIndex
func NewSourceIndex(client *dynamodb.Client, tableName string, logger *zap.Logger) *SourceIndex {
	return &SourceIndex{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func sourcePK(ref valueobjects.EntityRef) string {
	return fmt.Sprintf("SOURCE#%s", ref.Key())
}

// EntityExists reports whether an authoritative entity is known
func (s *SourceIndex) EntityExists(ctx context.Context, ref valueobjects.EntityRef) (bool, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sourcePK(ref)},
			"SK": &types.AttributeValueMemberS{Value: "ENTITY"},
		},
	}

	result, err := s.client.GetItem(ctx, input)
	if err != nil {
		return false, pkgerrors.NewDatabaseError("get source entity", err)
	}

	return result.Item != nil, nil
}

// RecordEntity stores an authoritative entity key. The sync listener
// calls this on entity_created and sub_entity_created events.
func (s *SourceIndex) RecordEntity(ctx context.Context, ref valueobjects.EntityRef, name, parentID string) error {
	return s.put(ctx, ref, name, parentID)
}

// RemoveEntity drops an authoritative entity key on entity_deleted
func (s *SourceIndex) RemoveEntity(ctx context.Context, ref valueobjects.EntityRef) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sourcePK(ref)},
			"SK": &types.AttributeValueMemberS{Value: "ENTITY"},
		},
	}

	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("remove source entity", err)
	}

	return nil
}

// CreateTask creates an authoritative task record
func (s *SourceIndex) CreateTask(ctx context.Context, entityID, name, trackID string) error {
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, entityID)
	if err != nil {
		return err
	}
	return s.create(ctx, ref, name, trackID)
}

// CreateTrack creates an authoritative track record
func (s *SourceIndex) CreateTrack(ctx context.Context, entityID, name, projectID string) error {
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTrack, entityID)
	if err != nil {
		return err
	}
	return s.create(ctx, ref, name, projectID)
}

func (s *SourceIndex) create(ctx context.Context, ref valueobjects.EntityRef, name, parentID string) error {
	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                s.item(ref, name, parentID),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return pkgerrors.NewConflictError(fmt.Sprintf("source entity %s already exists", ref.Key()))
		}
		return pkgerrors.NewDatabaseError("create source entity", err)
	}

	s.logger.Info("Source entity created",
		zap.String("entityKey", ref.Key()),
		zap.String("parentID", parentID),
	)

	return nil
}

func (s *SourceIndex) put(ctx context.Context, ref valueobjects.EntityRef, name, parentID string) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      s.item(ref, name, parentID),
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		return pkgerrors.NewDatabaseError("record source entity", err)
	}

	return nil
}

func (s *SourceIndex) item(ref valueobjects.EntityRef, name, parentID string) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: sourcePK(ref)},
		"SK":         &types.AttributeValueMemberS{Value: "ENTITY"},
		"EntityType": &types.AttributeValueMemberS{Value: "SOURCE_ENTITY"},
		"RefType":    &types.AttributeValueMemberS{Value: string(ref.EntityType())},
		"RefID":      &types.AttributeValueMemberS{Value: ref.EntityID()},
		"RecordedAt": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
	}
	if name != "" {
		item["Name"] = &types.AttributeValueMemberS{Value: name}
	}
	if parentID != "" {
		item["ParentID"] = &types.AttributeValueMemberS{Value: parentID}
	}
	return item
}

var (
	_ ports.SourceReader = (*SourceIndex)(nil)
	_ ports.SourceWriter = (*SourceIndex)(nil)
)
