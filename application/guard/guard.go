// Package guard gates cross-domain synchronization. Outbound checks
// resolve a container's authoritative linkage before anything is
// pushed toward the source system; inbound checks confirm an
// authoritative entity is actually mirrored before an update is
// applied. Denials are expected steady state and surface as
// reasons, never as errors.
package guard

import (
	"context"
	"fmt"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// Verdict is the result of a guard check. Allowed=false is a no-op
// signal for the caller, not a failure.
type Verdict struct {
	Allowed bool
	Reason  string
	Entity  valueobjects.EntityRef
}

// SyncGuard performs the inbound and outbound checks
type SyncGuard struct {
	containers ports.ContainerRepository
	references ports.ReferenceRepository
	logger     *zap.Logger
}

// NewSyncGuard creates a sync guard
func NewSyncGuard(containers ports.ContainerRepository, references ports.ReferenceRepository, logger *zap.Logger) *SyncGuard {
	return &SyncGuard{
		containers: containers,
		references: references,
		logger:     logger,
	}
}

// IsIntegrated reports whether a container carries an authoritative
// backing
func IsIntegrated(container *entities.Container) bool {
	return container != nil && container.IsIntegrated()
}

// GuardOutbound resolves a container's authoritative linkage. A
// local-only container yields a denial with the reason attached; an
// integrated container yields the resolved entity reference.
func (g *SyncGuard) GuardOutbound(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID, operation string) (Verdict, error) {
	container, err := g.containers.GetByID(ctx, workspaceID, containerID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return Verdict{Reason: fmt.Sprintf("container %s does not exist", containerID)}, nil
		}
		return Verdict{}, pkgerrors.Wrap(err, "outbound guard failed to load container")
	}

	if !container.IsIntegrated() {
		g.logger.Debug("outbound sync denied for local-only container",
			zap.String("workspace_id", workspaceID),
			zap.String("container_id", containerID.String()),
			zap.String("operation", operation),
		)
		return Verdict{Reason: fmt.Sprintf("container %s is local-only, nothing to sync", containerID)}, nil
	}

	ref := container.EntityRef()
	if ref.IsZero() {
		return Verdict{Reason: fmt.Sprintf("container %s is marked integrated but carries no entity linkage", containerID)}, nil
	}

	return Verdict{Allowed: true, Entity: ref}, nil
}

// GuardInbound reports whether an authoritative entity is mirrored on
// the workspace canvas. Unmirrored entities are denied; they only
// enter the canvas through the materializer.
func (g *SyncGuard) GuardInbound(ctx context.Context, workspaceID string, entity valueobjects.EntityRef, operation string) (Verdict, error) {
	refs, err := g.references.GetByEntity(ctx, workspaceID, entity)
	if err != nil {
		return Verdict{}, pkgerrors.Wrap(err, "inbound guard failed to load references")
	}

	if len(refs) == 0 {
		g.logger.Debug("inbound sync denied, entity not mirrored",
			zap.String("workspace_id", workspaceID),
			zap.String("entity", entity.Key()),
			zap.String("operation", operation),
		)
		return Verdict{Reason: fmt.Sprintf("entity %s is not mirrored on this canvas", entity.Key())}, nil
	}

	return Verdict{Allowed: true, Entity: entity}, nil
}
