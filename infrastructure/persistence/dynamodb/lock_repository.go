package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// LockRepository implements ports.LockRepository using DynamoDB
// conditional writes. Acquisition succeeds only when no lock item
// exists, the existing lock has expired, or the caller already holds
// it. There is no retry loop; contention surfaces as a conflict.
type LockRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewLockRepository creates a new LockRepository
func NewLockRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.LockRepository {
	return &LockRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// lockItem represents the DynamoDB item structure for a canvas lock
type lockItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	WorkspaceID string `dynamodbav:"WorkspaceID"`
	HolderID    string `dynamodbav:"HolderID"`
	AcquiredAt  string `dynamodbav:"AcquiredAt"`
	ExpiresAt   string `dynamodbav:"ExpiresAt"`
	TTL         int64  `dynamodbav:"TTL"` // Unix timestamp for DynamoDB TTL
}

// Acquire claims the workspace lock via a conditional put
func (r *LockRepository) Acquire(ctx context.Context, lock *entities.CanvasLock) error {
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: workspacePK(lock.WorkspaceID())},
		"SK":          &types.AttributeValueMemberS{Value: "LOCK"},
		"EntityType":  &types.AttributeValueMemberS{Value: "LOCK"},
		"WorkspaceID": &types.AttributeValueMemberS{Value: lock.WorkspaceID()},
		"HolderID":    &types.AttributeValueMemberS{Value: lock.HolderID()},
		"AcquiredAt":  &types.AttributeValueMemberS{Value: lock.AcquiredAt().Format(time.RFC3339Nano)},
		"ExpiresAt":   &types.AttributeValueMemberS{Value: lock.ExpiresAt().Format(time.RFC3339Nano)},
		"TTL":         &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", lock.ExpiresAt().Unix())},
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now OR HolderID = :holder"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":    &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
			":holder": &types.AttributeValueMemberS{Value: lock.HolderID()},
		},
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.logger.Debug("Failed to acquire canvas lock, already held",
				zap.String("workspaceID", lock.WorkspaceID()),
				zap.String("holderID", lock.HolderID()),
			)
			return pkgerrors.NewConflictError(fmt.Sprintf("canvas lock already held for workspace %s", lock.WorkspaceID()))
		}
		return pkgerrors.NewDatabaseError("acquire lock", err)
	}

	r.logger.Debug("Canvas lock acquired",
		zap.String("workspaceID", lock.WorkspaceID()),
		zap.String("holderID", lock.HolderID()),
		zap.Time("expiresAt", lock.ExpiresAt()),
	)

	return nil
}

// Get retrieves the current lock, nil when none is held
func (r *LockRepository) Get(ctx context.Context, workspaceID string) (*entities.CanvasLock, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConsistentRead: aws.Bool(true),
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get lock", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	holder, ok := result.Item["HolderID"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, pkgerrors.NewDatabaseError("unmarshal lock", fmt.Errorf("missing HolderID"))
	}
	acquiredRaw, ok := result.Item["AcquiredAt"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, pkgerrors.NewDatabaseError("unmarshal lock", fmt.Errorf("missing AcquiredAt"))
	}
	expiresRaw, ok := result.Item["ExpiresAt"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, pkgerrors.NewDatabaseError("unmarshal lock", fmt.Errorf("missing ExpiresAt"))
	}

	acquiredAt, err := time.Parse(time.RFC3339Nano, acquiredRaw.Value)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("parse lock timestamp", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, expiresRaw.Value)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("parse lock timestamp", err)
	}

	return entities.ReconstructCanvasLock(workspaceID, holder.Value, acquiredAt, expiresAt), nil
}

// Renew extends the holder's lock; the condition rejects renewal of a
// lock held by someone else
func (r *LockRepository) Renew(ctx context.Context, lock *entities.CanvasLock) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(lock.WorkspaceID())},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		UpdateExpression:    aws.String("SET ExpiresAt = :expires, #ttl = :ttl"),
		ConditionExpression: aws.String("HolderID = :holder"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expires": &types.AttributeValueMemberS{Value: lock.ExpiresAt().Format(time.RFC3339Nano)},
			":ttl":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", lock.ExpiresAt().Unix())},
			":holder":  &types.AttributeValueMemberS{Value: lock.HolderID()},
		},
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return pkgerrors.NewConflictError("canvas lock is held by another user")
		}
		return pkgerrors.NewDatabaseError("renew lock", err)
	}

	return nil
}

// Release removes the lock if held by holderID. Releasing a lock that
// is already gone is not an error.
func (r *LockRepository) Release(ctx context.Context, workspaceID string, holderID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("HolderID = :holder"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":holder": &types.AttributeValueMemberS{Value: holderID},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.logger.Warn("Canvas lock already released or held by someone else",
				zap.String("workspaceID", workspaceID),
				zap.String("holderID", holderID),
			)
			return nil
		}
		return pkgerrors.NewDatabaseError("release lock", err)
	}

	r.logger.Debug("Canvas lock released",
		zap.String("workspaceID", workspaceID),
		zap.String("holderID", holderID),
	)

	return nil
}
