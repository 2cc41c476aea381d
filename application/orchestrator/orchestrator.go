// Package orchestrator wires planners to the execution engine. It
// holds no domain logic; it translates planner output into engine
// calls and merges the two result shapes for the interfaces layer.
package orchestrator

import (
	"context"
	"time"

	"canvasmirror/application/executor"
	"canvasmirror/application/planner"
	"canvasmirror/domain/plan"

	"go.uber.org/zap"
)

// SyncActorID is the lock holder used while applying authoritative
// events. Inbound sync competes for the same canvas lock as users, so
// a held user lock defers event application instead of racing it.
const SyncActorID = "system:sync"

// Outcome is the unified result for one intent or source event
type Outcome struct {
	Success  bool
	PlanID   string
	Applied  int
	Category plan.FailureCategory
	Errors   []string
	Warnings []string
}

// Orchestrator composes planning and execution
type Orchestrator struct {
	intents *planner.IntentPlanner
	events  *planner.SourceEventPlanner
	engine  *executor.Engine
	lockTTL time.Duration
	logger  *zap.Logger
}

// New creates an orchestrator
func New(intents *planner.IntentPlanner, events *planner.SourceEventPlanner, engine *executor.Engine, lockTTL time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		intents: intents,
		events:  events,
		engine:  engine,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// HandleIntent plans and executes a single user intent
func (o *Orchestrator) HandleIntent(ctx context.Context, workspaceID, userID string, intent planner.Intent) Outcome {
	result := o.intents.Plan(ctx, workspaceID, userID, intent)
	return o.execute(ctx, result, userID)
}

// HandleSourceEvent plans and executes one authoritative change event.
// The sync actor takes the canvas lock for the duration of the plan, so
// event application fails loudly while a user holds the lock instead of
// interleaving with their edits.
func (o *Orchestrator) HandleSourceEvent(ctx context.Context, workspaceID string, event planner.SourceEvent) Outcome {
	result := o.events.Plan(ctx, workspaceID, event)
	if !result.Success || result.Plan == nil {
		return fromPlanResult(result)
	}

	acquire, err := plan.NewPlan(workspaceID, plan.OriginSourceEvent, SyncActorID, []plan.Mutation{
		plan.AcquireLock{HolderID: SyncActorID, TTL: o.lockTTL},
	})
	if err != nil {
		return Outcome{Errors: []string{err.Error()}}
	}
	if lockResult := o.engine.Execute(ctx, acquire, SyncActorID); !lockResult.Committed() {
		return Outcome{
			Category: lockResult.Category,
			Errors:   []string{lockResult.Err.Error()},
		}
	}
	defer o.releaseSyncLock(ctx, workspaceID)

	return o.execute(ctx, result, SyncActorID)
}

func (o *Orchestrator) releaseSyncLock(ctx context.Context, workspaceID string) {
	release, err := plan.NewPlan(workspaceID, plan.OriginSourceEvent, SyncActorID, []plan.Mutation{
		plan.ReleaseLock{HolderID: SyncActorID},
	})
	if err != nil {
		return
	}
	if result := o.engine.Execute(ctx, release, SyncActorID); !result.Committed() {
		o.logger.Warn("failed to release sync lock",
			zap.String("workspace_id", workspaceID),
			zap.Error(result.Err),
		)
	}
}

// RollbackLastPlan reverses the most recent committed plan
func (o *Orchestrator) RollbackLastPlan(ctx context.Context, workspaceID, userID string) executor.RollbackResult {
	return o.engine.RollbackLastPlan(ctx, workspaceID, userID)
}

func (o *Orchestrator) execute(ctx context.Context, result planner.Result, actorID string) Outcome {
	if !result.Success || result.Plan == nil {
		return fromPlanResult(result)
	}

	execution := o.engine.Execute(ctx, result.Plan, actorID)
	outcome := Outcome{
		Success:  execution.Committed(),
		PlanID:   execution.PlanID,
		Applied:  execution.Applied,
		Category: execution.Category,
		Warnings: append(result.Warnings, execution.Warnings...),
	}
	if execution.Err != nil {
		outcome.Errors = append(outcome.Errors, execution.Err.Error())
	}
	return outcome
}

func fromPlanResult(result planner.Result) Outcome {
	return Outcome{
		Success:  result.Success,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}
}
