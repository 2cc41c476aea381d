package executor

import (
	"context"
	"fmt"

	"canvasmirror/domain/plan"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// RollbackResult reports a best-effort rollback. Warnings itemize every
// part of the plan that could not be reversed; a rollback is never
// silently declared complete.
type RollbackResult struct {
	PlanID   string
	Reversed int
	Complete bool
	Warnings []string
	Category plan.FailureCategory
	Err      error
}

// RollbackLastPlan pops the most recent committed plan for the
// workspace and applies its inverse mutations, newest first. Creations
// reverse into deletions; updates and deletions have no inverse and
// surface as warnings. Rollback emits no domain events and no
// telemetry.
func (e *Engine) RollbackLastPlan(ctx context.Context, workspaceID, userID string) RollbackResult {
	result := RollbackResult{}

	if err := e.checkLock(ctx, workspaceID, userID); err != nil {
		result.Category = plan.FailureLockViolation
		result.Err = err
		return result
	}

	record, err := e.history.Pop(ctx, workspaceID)
	if err != nil {
		result.Category = plan.FailureRollback
		result.Err = pkgerrors.Wrap(err, "failed to read execution history")
		return result
	}
	if record == nil {
		result.Category = plan.FailureRollback
		result.Err = pkgerrors.NewNotFoundError("no plan to roll back")
		return result
	}
	result.PlanID = record.PlanID

	for i := len(record.Applied) - 1; i >= 0; i-- {
		applied := record.Applied[i]
		if !applied.Reversible || applied.Inverse == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("cannot reverse %s: %s", applied.Kind, applied.Reason))
			continue
		}
		if err := e.applyInverse(ctx, workspaceID, applied.Inverse); err != nil {
			// Keep going; partial rollback is still better than none,
			// and every miss is reported.
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to reverse %s: %v", applied.Kind, err))
			continue
		}
		result.Reversed++
	}

	result.Complete = len(result.Warnings) == 0
	e.logger.Info("rollback finished",
		zap.String("workspace_id", workspaceID),
		zap.String("plan_id", record.PlanID),
		zap.Int("reversed", result.Reversed),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result
}
