package entities

import (
	"time"

	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"
)

// Reference links one container to one authoritative entity. The
// system-wide invariant is that at most one Reference exists per
// (entityType, entityID) pair; the reconciliation map detects
// violations. A container can hold several references, exactly one of
// which is primary.
type Reference struct {
	id          string
	workspaceID string
	containerID valueobjects.ContainerID
	entityRef   valueobjects.EntityRef
	primary     bool
	createdAt   time.Time
}

// NewReference creates a validated reference
func NewReference(workspaceID string, containerID valueobjects.ContainerID, ref valueobjects.EntityRef, primary bool) (*Reference, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	if containerID.IsZero() {
		return nil, pkgerrors.NewValidationError("reference requires a container")
	}
	if ref.IsZero() {
		return nil, pkgerrors.NewValidationError("reference requires an authoritative entity")
	}

	return &Reference{
		id:          valueobjects.NewID(),
		workspaceID: workspaceID,
		containerID: containerID,
		entityRef:   ref,
		primary:     primary,
		createdAt:   time.Now(),
	}, nil
}

// ReconstructReference rebuilds a reference from repository data
func ReconstructReference(id, workspaceID string, containerID valueobjects.ContainerID, ref valueobjects.EntityRef, primary bool, createdAt time.Time) *Reference {
	return &Reference{
		id:          id,
		workspaceID: workspaceID,
		containerID: containerID,
		entityRef:   ref,
		primary:     primary,
		createdAt:   createdAt,
	}
}

func (r *Reference) ID() string                            { return r.id }
func (r *Reference) WorkspaceID() string                   { return r.workspaceID }
func (r *Reference) ContainerID() valueobjects.ContainerID { return r.containerID }
func (r *Reference) EntityRef() valueobjects.EntityRef     { return r.entityRef }
func (r *Reference) IsPrimary() bool                       { return r.primary }
func (r *Reference) CreatedAt() time.Time                  { return r.createdAt }
