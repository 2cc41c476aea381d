// Package executor is the only component permitted to write the
// derivative store. It runs each plan through a small state machine:
// lock gate, authority-boundary check, precondition re-check, ordered
// mutation application with stop-on-first-failure, then post-commit
// event emission and history recording.
package executor

import (
	"context"
	"fmt"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/config"
	"canvasmirror/domain/events"
	"canvasmirror/domain/plan"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// State names a phase of plan execution
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateMutating   State = "mutating"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// Result reports how a plan execution ended
type Result struct {
	State    State
	PlanID   string
	Category plan.FailureCategory
	Err      error
	Warnings []string
	Applied  int
}

// Committed reports whether every mutation applied
func (r Result) Committed() bool { return r.State == StateCommitted }

// Engine applies plans against the derivative store
type Engine struct {
	containers   ports.ContainerRepository
	references   ports.ReferenceRepository
	portRepo     ports.PortRepository
	edges        ports.EdgeRepository
	locks        ports.LockRepository
	layouts      ports.LayoutRepository
	visibility   ports.VisibilityRepository
	sourceWriter ports.SourceWriter
	telemetry    ports.EventPublisher
	history      ports.ExecutionHistory
	cfg          *config.DomainConfig
	logger       *zap.Logger
}

// NewEngine creates an execution engine
func NewEngine(
	containers ports.ContainerRepository,
	references ports.ReferenceRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	locks ports.LockRepository,
	layouts ports.LayoutRepository,
	visibility ports.VisibilityRepository,
	sourceWriter ports.SourceWriter,
	telemetry ports.EventPublisher,
	history ports.ExecutionHistory,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		containers:   containers,
		references:   references,
		portRepo:     portRepo,
		edges:        edges,
		locks:        locks,
		layouts:      layouts,
		visibility:   visibility,
		sourceWriter: sourceWriter,
		telemetry:    telemetry,
		history:      history,
		cfg:          cfg,
		logger:       logger,
	}
}

// Execute runs a plan to completion or first failure. actorID is the
// user (or the sync system actor) the lock gate checks against.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan, actorID string) Result {
	result := Result{State: StateValidating, PlanID: p.ID()}

	if p.IsEmpty() {
		result.State = StateFailed
		result.Category = plan.FailureValidation
		result.Err = pkgerrors.NewValidationError("plan carries no mutations")
		return result
	}

	// 1. Lock gate. Lock-management plans are exempt; acquisition is how
	// the lock comes to exist in the first place.
	if !p.TouchesLockOnly() {
		if err := e.checkLock(ctx, p.WorkspaceID(), actorID); err != nil {
			result.State = StateFailed
			result.Category = plan.FailureLockViolation
			result.Err = err
			return result
		}
	}

	// 2. Authority boundary, repair whitelist, per-mutation validation
	for _, m := range p.Mutations() {
		if category, err := e.validateMutation(p, m); err != nil {
			result.State = StateFailed
			result.Category = category
			result.Err = err
			return result
		}
	}

	// 3. Precondition re-check: plans were generated against a snapshot;
	// referenced rows must still exist before anything is written
	if err := e.checkPreconditions(ctx, p); err != nil {
		result.State = StateFailed
		result.Category = plan.FailurePrecondition
		result.Err = err
		return result
	}

	// 4. Ordered application, stop on first failure
	result.State = StateMutating
	var applied []ports.AppliedMutation
	var emitted []events.DomainEvent

	for _, m := range p.Mutations() {
		record, evs, err := e.apply(ctx, p, m, actorID)
		if err != nil {
			e.logger.Error("mutation failed, aborting plan",
				zap.String("plan_id", p.ID()),
				zap.String("workspace_id", p.WorkspaceID()),
				zap.String("kind", string(m.Kind())),
				zap.Int("applied_before_failure", len(applied)),
				zap.Error(err),
			)
			result.Warnings = append(result.Warnings, e.compensate(ctx, p.WorkspaceID(), applied)...)
			result.State = StateFailed
			result.Category = categorize(m, err)
			result.Err = err
			return result
		}
		applied = append(applied, record)
		emitted = append(emitted, evs...)
	}

	// 5. Post-commit: events, telemetry, history. None of these can fail
	// the already-committed plan.
	emitted = append(emitted, p.Events()...)
	if len(emitted) > 0 {
		if err := e.telemetry.PublishBatch(ctx, emitted); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("telemetry forwarding failed: %v", err))
			e.logger.Warn("telemetry forwarding failed",
				zap.String("plan_id", p.ID()),
				zap.Error(err),
			)
		}
	}

	if !p.TouchesLockOnly() && p.Origin() != plan.OriginRollback {
		record := ports.ExecutionRecord{
			PlanID:      p.ID(),
			WorkspaceID: p.WorkspaceID(),
			ActorID:     actorID,
			Origin:      p.Origin(),
			Applied:     applied,
			CommittedAt: time.Now(),
		}
		if err := e.history.Push(ctx, record); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("execution history not recorded: %v", err))
		}
	}

	result.State = StateCommitted
	result.Applied = len(applied)
	return result
}

// checkLock verifies the acting user holds an unexpired workspace lock
func (e *Engine) checkLock(ctx context.Context, workspaceID, actorID string) error {
	if actorID == "" {
		return pkgerrors.NewForbiddenError("no acting user for lock check")
	}
	lock, err := e.locks.Get(ctx, workspaceID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read canvas lock")
	}
	if lock == nil {
		return pkgerrors.NewForbiddenError("no canvas lock held for this workspace")
	}
	if lock.IsExpired() {
		return pkgerrors.NewForbiddenError("canvas lock has expired")
	}
	if !lock.IsHeldBy(actorID) {
		return pkgerrors.NewForbiddenError(fmt.Sprintf("canvas lock is held by %s", lock.HolderID()))
	}
	return nil
}

// validateMutation enforces the authority boundary and the repair
// whitelist for a single mutation
func (e *Engine) validateMutation(p *plan.Plan, m plan.Mutation) (plan.FailureCategory, error) {
	if err := m.Validate(); err != nil {
		return plan.FailureValidation, err
	}

	switch plan.Classify(m.Target()) {
	case plan.ClassAllowed:
		// derivative collection, nothing more to check
	case plan.ClassControlled:
		if !plan.IsControlledException(m) {
			return plan.FailureForbiddenOperation,
				pkgerrors.NewForbiddenError(fmt.Sprintf("mutation %s targets controlled collection %s", m.Kind(), m.Target()))
		}
		if !p.HasIntegrationPair() {
			return plan.FailureForbiddenOperation,
				pkgerrors.NewForbiddenError(fmt.Sprintf("%s requires the paired integrated-object creation in the same plan", m.Kind()))
		}
	case plan.ClassDenied:
		return plan.FailureForbiddenOperation,
			pkgerrors.NewForbiddenError(fmt.Sprintf("mutation %s targets denied collection %s", m.Kind(), m.Target()))
	}

	if repair := m.RequestedRepair(); repair != plan.RepairNone && repair != plan.AllowedRepair(m.Kind()) {
		return plan.FailureForbiddenRepair,
			pkgerrors.NewForbiddenError(fmt.Sprintf("repair %q is not whitelisted for %s", repair, m.Kind()))
	}
	return plan.FailureUnknown, nil
}

// checkPreconditions re-verifies that rows the plan updates or deletes
// still exist
func (e *Engine) checkPreconditions(ctx context.Context, p *plan.Plan) error {
	for _, m := range p.Mutations() {
		var err error
		switch mut := m.(type) {
		case plan.MoveContainer:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.ResizeContainer:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.NestContainer:
			if _, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID); err == nil {
				_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ParentID)
			}
		case plan.UnnestContainer:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.ActivateContainer:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.UpdateContainerContent:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.UpdateContainerMetadata:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.DeleteContainer:
			_, err = e.containers.GetByID(ctx, p.WorkspaceID(), mut.ContainerID)
		case plan.DeleteReference:
			_, err = e.references.GetByID(ctx, p.WorkspaceID(), mut.ReferenceID)
		case plan.DeletePort:
			_, err = e.portRepo.GetByID(ctx, p.WorkspaceID(), mut.PortID)
		case plan.DeleteEdge:
			_, err = e.edges.GetByID(ctx, p.WorkspaceID(), mut.EdgeID)
		}
		if err != nil {
			return pkgerrors.Wrapf(err, "precondition failed for %s", m.Kind())
		}
	}
	return nil
}

// categorize maps an application error to the failure taxonomy
func categorize(m plan.Mutation, err error) plan.FailureCategory {
	if plan.IsLockManagement(m) {
		return plan.FailureLockViolation
	}
	if plan.IsControlledException(m) {
		return plan.FailureSync
	}
	if pkgerrors.IsValidation(err) {
		return plan.FailureValidation
	}
	if pkgerrors.IsAppError(err) {
		return plan.FailureMutation
	}
	return plan.FailureUnknown
}

// compensate undoes the reversible part of an aborted plan, newest
// first. It is best effort; anything it cannot undo becomes a warning.
func (e *Engine) compensate(ctx context.Context, workspaceID string, applied []ports.AppliedMutation) []string {
	var warnings []string
	for i := len(applied) - 1; i >= 0; i-- {
		record := applied[i]
		if !record.Reversible || record.Inverse == nil {
			warnings = append(warnings, fmt.Sprintf("cannot undo %s: %s", record.Kind, record.Reason))
			continue
		}
		if err := e.applyInverse(ctx, workspaceID, record.Inverse); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to undo %s: %v", record.Kind, err))
		}
	}
	if len(warnings) > 0 {
		e.logger.Warn("plan compensation incomplete",
			zap.String("workspace_id", workspaceID),
			zap.Strings("warnings", warnings),
		)
	}
	return warnings
}
