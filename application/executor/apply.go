package executor

import (
	"context"
	"fmt"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/events"
	"canvasmirror/domain/plan"
	pkgerrors "canvasmirror/pkg/errors"
)

const (
	reasonNoPriorValue  = "prior value was not captured"
	reasonDataGone      = "deleted data cannot be restored"
	reasonAuthoritative = "authoritative entity persists outside this engine"
	reasonLockState     = "lock state is not replayed"
)

// apply executes one mutation. The type switch is exhaustive over the
// sealed union; a new mutation kind fails to compile here until it is
// handled. Returned events are buffered and only published after the
// whole plan commits.
func (e *Engine) apply(ctx context.Context, p *plan.Plan, m plan.Mutation, actorID string) (ports.AppliedMutation, []events.DomainEvent, error) {
	workspaceID := p.WorkspaceID()
	record := ports.AppliedMutation{Kind: m.Kind(), Target: m.Target()}
	now := time.Now()

	switch mut := m.(type) {
	case plan.CreateContainer:
		if err := e.containers.Save(ctx, mut.Container); err != nil {
			return record, nil, err
		}
		record.Reversible = true
		record.Inverse = plan.DeleteContainer{ContainerID: mut.Container.ID()}
		return record, drainContainerEvents(mut.Container), nil

	case plan.CreateIntegratedContainer:
		if err := e.containers.Save(ctx, mut.Container); err != nil {
			return record, nil, err
		}
		record.Reversible = true
		record.Inverse = plan.DeleteContainer{ContainerID: mut.Container.ID()}
		return record, drainContainerEvents(mut.Container), nil

	case plan.MoveContainer:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		if err := container.MoveTo(mut.Position); err != nil {
			return record, nil, err
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.ResizeContainer:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		if err := container.Resize(mut.Size); err != nil {
			return record, nil, err
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.NestContainer:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		if err := container.NestUnder(mut.ParentID); err != nil {
			return record, nil, err
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.UnnestContainer:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		if err := container.Unnest(); err != nil {
			return record, nil, err
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.ActivateContainer:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		if err := container.Activate(); err != nil {
			return record, nil, err
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.UpdateContainerContent:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		if mut.Authoritative {
			err = container.ApplyAuthoritativeUpdate(mut.Content)
		} else {
			err = container.UpdateContent(mut.Content)
		}
		if err != nil {
			return record, nil, err
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.UpdateContainerMetadata:
		container, err := e.containers.GetByID(ctx, workspaceID, mut.ContainerID)
		if err != nil {
			return record, nil, err
		}
		entries := mut.Entries
		if mut.Repair == plan.RepairNormalizeNil {
			entries = normalizeNil(entries)
		}
		for key, value := range entries {
			if err := container.SetMetadataWithConfig(key, value, e.cfg); err != nil {
				return record, nil, err
			}
		}
		if err := e.containers.Save(ctx, container); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, drainContainerEvents(container), nil

	case plan.DeleteContainer:
		if err := e.containers.Delete(ctx, workspaceID, mut.ContainerID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonDataGone
		return record, []events.DomainEvent{events.NewContainerDeleted(mut.ContainerID, workspaceID, now)}, nil

	case plan.AttachReference:
		if err := e.references.Save(ctx, mut.Reference); err != nil {
			return record, nil, err
		}
		record.Reversible = true
		record.Inverse = plan.DeleteReference{ReferenceID: mut.Reference.ID()}
		ev := events.NewReferenceAttached(mut.Reference.ContainerID(), workspaceID, mut.Reference.EntityRef(), now)
		return record, []events.DomainEvent{ev}, nil

	case plan.DeleteReference:
		if err := e.references.Delete(ctx, workspaceID, mut.ReferenceID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonDataGone
		return record, nil, nil

	case plan.CreatePort:
		if err := e.portRepo.Save(ctx, workspaceID, mut.Port); err != nil {
			return record, nil, err
		}
		record.Reversible = true
		record.Inverse = plan.DeletePort{PortID: mut.Port.ID()}
		return record, nil, nil

	case plan.DeletePort:
		if err := e.portRepo.Delete(ctx, workspaceID, mut.PortID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonDataGone
		return record, nil, nil

	case plan.CreateEdge:
		if err := e.edges.Save(ctx, mut.Edge); err != nil {
			return record, nil, err
		}
		record.Reversible = true
		record.Inverse = plan.DeleteEdge{EdgeID: mut.Edge.ID()}
		ev := events.NewEdgeCreated(mut.Edge.ID(), workspaceID, mut.Edge.SourcePortID(), mut.Edge.TargetPortID(), string(mut.Edge.RelationshipType()), mut.Edge.AutoGenerated(), now)
		return record, []events.DomainEvent{ev}, nil

	case plan.DeleteEdge:
		if err := e.edges.Delete(ctx, workspaceID, mut.EdgeID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonDataGone
		return record, []events.DomainEvent{events.NewEdgeDeleted(mut.EdgeID, workspaceID, now)}, nil

	case plan.MarkLayoutBroken:
		settings, err := e.layouts.Get(ctx, mut.WorkspaceID)
		if err != nil {
			return record, nil, err
		}
		settings.MarkBroken()
		if err := e.layouts.Save(ctx, settings); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, nil, nil

	case plan.ResetLayout:
		settings, err := e.layouts.Get(ctx, mut.WorkspaceID)
		if err != nil {
			return record, nil, err
		}
		settings.Reset(mut.At)
		if err := e.layouts.Save(ctx, settings); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, []events.DomainEvent{events.NewLayoutReset(mut.WorkspaceID, now)}, nil

	case plan.SetContainerHidden:
		if err := e.visibility.SetHidden(ctx, workspaceID, mut.UserID, mut.ContainerID, mut.Hidden); err != nil {
			return record, nil, err
		}
		record.Reason = reasonNoPriorValue
		return record, nil, nil

	case plan.AcquireLock:
		lock, err := entities.NewCanvasLock(workspaceID, mut.HolderID, mut.TTL)
		if err != nil {
			return record, nil, err
		}
		if err := e.locks.Acquire(ctx, lock); err != nil {
			return record, nil, err
		}
		record.Reason = reasonLockState
		return record, []events.DomainEvent{events.NewLockAcquired(workspaceID, mut.HolderID, now)}, nil

	case plan.ReleaseLock:
		if err := e.locks.Release(ctx, workspaceID, mut.HolderID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonLockState
		return record, []events.DomainEvent{events.NewLockReleased(workspaceID, mut.HolderID, now)}, nil

	case plan.RenewLock:
		lock, err := e.locks.Get(ctx, workspaceID)
		if err != nil {
			return record, nil, err
		}
		if lock == nil {
			return record, nil, pkgerrors.NewConflictError("no canvas lock to renew")
		}
		if err := lock.Renew(mut.HolderID, mut.TTL); err != nil {
			return record, nil, err
		}
		if err := e.locks.Renew(ctx, lock); err != nil {
			return record, nil, err
		}
		record.Reason = reasonLockState
		return record, nil, nil

	case plan.CreateSourceTask:
		if err := e.sourceWriter.CreateTask(ctx, mut.EntityID, mut.Name, mut.TrackID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonAuthoritative
		return record, nil, nil

	case plan.CreateSourceTrack:
		if err := e.sourceWriter.CreateTrack(ctx, mut.EntityID, mut.Name, mut.ProjectID); err != nil {
			return record, nil, err
		}
		record.Reason = reasonAuthoritative
		return record, nil, nil

	default:
		return record, nil, pkgerrors.NewInternalError(fmt.Sprintf("unhandled mutation kind %s", m.Kind()))
	}
}

// applyInverse executes a single inverse mutation. Inverses are always
// deletions of rows the aborted or rolled-back plan created, so no
// events and no repairs are involved.
func (e *Engine) applyInverse(ctx context.Context, workspaceID string, inverse plan.Mutation) error {
	switch mut := inverse.(type) {
	case plan.DeleteContainer:
		return e.containers.Delete(ctx, workspaceID, mut.ContainerID)
	case plan.DeleteReference:
		return e.references.Delete(ctx, workspaceID, mut.ReferenceID)
	case plan.DeletePort:
		return e.portRepo.Delete(ctx, workspaceID, mut.PortID)
	case plan.DeleteEdge:
		return e.edges.Delete(ctx, workspaceID, mut.EdgeID)
	default:
		return pkgerrors.NewInternalError(fmt.Sprintf("unsupported inverse mutation %s", inverse.Kind()))
	}
}

// drainContainerEvents collects and clears the entity's uncommitted
// events so they are published exactly once
func drainContainerEvents(c *entities.Container) []events.DomainEvent {
	out := c.GetUncommittedEvents()
	c.MarkEventsAsCommitted()
	return out
}

// normalizeNil drops nil-valued entries, the one whitelisted metadata
// repair
func normalizeNil(entries map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(entries))
	for k, v := range entries {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
