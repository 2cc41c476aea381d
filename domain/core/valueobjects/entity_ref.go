package valueobjects

import (
	"fmt"

	pkgerrors "canvasmirror/pkg/errors"
)

// EntityType identifies a kind of authoritative-domain entity.
// The set is closed; the source system owns these records and this
// service only ever mirrors them.
type EntityType string

const (
	EntityTypeProject EntityType = "project"
	EntityTypeTrack   EntityType = "track"
	EntityTypeTask    EntityType = "task"
	EntityTypeEvent   EntityType = "event"
)

// IsValidEntityType reports whether t names a known authoritative entity type
func IsValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeProject, EntityTypeTrack, EntityTypeTask, EntityTypeEvent:
		return true
	default:
		return false
	}
}

// EntityRef is the authoritative linkage of a container: the type and id
// of the source-system entity it mirrors. A zero EntityRef means the
// container is local-only.
type EntityRef struct {
	entityType EntityType
	entityID   string
}

// NewEntityRef creates a validated EntityRef
func NewEntityRef(entityType EntityType, entityID string) (EntityRef, error) {
	if !IsValidEntityType(entityType) {
		return EntityRef{}, pkgerrors.NewValidationError(fmt.Sprintf("unknown entity type: %s", entityType))
	}
	if entityID == "" {
		return EntityRef{}, pkgerrors.NewValidationError("entity ID cannot be empty")
	}
	return EntityRef{entityType: entityType, entityID: entityID}, nil
}

// EntityType returns the authoritative entity type
func (r EntityRef) EntityType() EntityType {
	return r.entityType
}

// EntityID returns the authoritative entity id
func (r EntityRef) EntityID() string {
	return r.entityID
}

// IsZero checks whether the ref carries no linkage
func (r EntityRef) IsZero() bool {
	return r.entityType == "" && r.entityID == ""
}

// Key returns the canonical "type:id" reconciliation key
func (r EntityRef) Key() string {
	return fmt.Sprintf("%s:%s", r.entityType, r.entityID)
}

// Equals checks if two refs point at the same authoritative entity
func (r EntityRef) Equals(other EntityRef) bool {
	return r.entityType == other.entityType && r.entityID == other.entityID
}
