package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"canvasmirror/application/planner"
	"canvasmirror/infrastructure/config"
	"canvasmirror/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var container *di.Container

// init runs during cold start
func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// eventDetail is the EventBridge detail payload. The workspace ID
// travels alongside the tagged-union event fields.
type eventDetail struct {
	WorkspaceID string `json:"workspace_id"`
}

// Handler applies one authoritative change event delivered over
// EventBridge. It keeps the entity index current first, so the
// staleness check during planning sees the post-event state.
func Handler(ctx context.Context, event events.CloudWatchEvent) error {
	logger := container.Logger

	var detail eventDetail
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		return fmt.Errorf("malformed event detail: %w", err)
	}
	if detail.WorkspaceID == "" {
		return fmt.Errorf("event %s missing workspace_id", event.ID)
	}

	sourceEvent, err := planner.DecodeSourceEvent(event.Detail)
	if err != nil {
		return fmt.Errorf("event %s: %w", event.ID, err)
	}

	if err := updateIndex(ctx, sourceEvent); err != nil {
		logger.Error("Failed to update entity index",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return err
	}

	outcome := container.Orchestrator.HandleSourceEvent(ctx, detail.WorkspaceID, sourceEvent)
	if !outcome.Success {
		logger.Error("Source event rejected",
			zap.String("event_id", event.ID),
			zap.String("workspace_id", detail.WorkspaceID),
			zap.String("category", string(outcome.Category)),
			zap.Strings("errors", outcome.Errors),
		)
		// Returning the error makes EventBridge retry; lock conflicts
		// with an active user session resolve on a later attempt.
		return fmt.Errorf("source event failed: %s", outcome.Category)
	}

	if len(outcome.Warnings) > 0 {
		logger.Warn("Source event applied with warnings",
			zap.String("event_id", event.ID),
			zap.String("workspace_id", detail.WorkspaceID),
			zap.Strings("warnings", outcome.Warnings),
		)
	}
	return nil
}

// updateIndex mirrors the authoritative entity key set into the
// source index before planning runs against it.
func updateIndex(ctx context.Context, sourceEvent planner.SourceEvent) error {
	index := container.SourceIndex

	switch e := sourceEvent.(type) {
	case *planner.EntityCreatedEvent:
		ref, err := e.Entity()
		if err != nil {
			return err
		}
		return index.RecordEntity(ctx, ref, e.Title, "")
	case *planner.SubEntityCreatedEvent:
		ref, err := e.Entity()
		if err != nil {
			return err
		}
		return index.RecordEntity(ctx, ref, e.Title, e.ParentID)
	case *planner.EntityDeletedEvent:
		ref, err := e.Entity()
		if err != nil {
			return err
		}
		return index.RemoveEntity(ctx, ref)
	default:
		// Updates do not change the key set
		return nil
	}
}

func main() {
	lambda.Start(Handler)
}
