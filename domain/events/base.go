package events

import (
	"time"

	"canvasmirror/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events.
// Events represent something that has happened in the past. Payloads
// carry identifiers and structural facts only; title and body text must
// never appear in an event, since events are forwarded to the telemetry
// collaborator.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetWorkspaceID() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	WorkspaceID string    `json:"workspace_id"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetWorkspaceID() string  { return e.WorkspaceID }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType, workspaceID string, ts time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		WorkspaceID: workspaceID,
		Timestamp:   ts,
		Version:     1,
	}
}

// Container events

// ContainerCreated is raised when a new container is created
type ContainerCreated struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
	IsGhost     bool                     `json:"is_ghost"`
	EntityType  string                   `json:"entity_type,omitempty"`
	EntityID    string                   `json:"entity_id,omitempty"`
}

// NewContainerCreated creates a ContainerCreated event
func NewContainerCreated(id valueobjects.ContainerID, workspaceID string, isGhost bool, ref valueobjects.EntityRef, ts time.Time) ContainerCreated {
	return ContainerCreated{
		BaseEvent:   newBase(id.String(), "container.created", workspaceID, ts),
		ContainerID: id,
		IsGhost:     isGhost,
		EntityType:  string(ref.EntityType()),
		EntityID:    ref.EntityID(),
	}
}

// ContainerUpdated is raised when container fields change. Only the names
// of the changed fields are carried, never their values.
type ContainerUpdated struct {
	BaseEvent
	ContainerID   valueobjects.ContainerID `json:"container_id"`
	ChangedFields []string                 `json:"changed_fields"`
}

// NewContainerUpdated creates a ContainerUpdated event
func NewContainerUpdated(id valueobjects.ContainerID, workspaceID string, changedFields []string, ts time.Time) ContainerUpdated {
	return ContainerUpdated{
		BaseEvent:     newBase(id.String(), "container.updated", workspaceID, ts),
		ContainerID:   id,
		ChangedFields: changedFields,
	}
}

// ContainerMoved is raised when a container is moved to a new position
type ContainerMoved struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
	X           float64                  `json:"x"`
	Y           float64                  `json:"y"`
}

// NewContainerMoved creates a ContainerMoved event
func NewContainerMoved(id valueobjects.ContainerID, workspaceID string, pos valueobjects.Position, ts time.Time) ContainerMoved {
	return ContainerMoved{
		BaseEvent:   newBase(id.String(), "container.moved", workspaceID, ts),
		ContainerID: id,
		X:           pos.X(),
		Y:           pos.Y(),
	}
}

// ContainerResized is raised when a container is resized
type ContainerResized struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
	Width       float64                  `json:"width"`
	Height      float64                  `json:"height"`
}

// NewContainerResized creates a ContainerResized event
func NewContainerResized(id valueobjects.ContainerID, workspaceID string, size valueobjects.Size, ts time.Time) ContainerResized {
	return ContainerResized{
		BaseEvent:   newBase(id.String(), "container.resized", workspaceID, ts),
		ContainerID: id,
		Width:       size.Width(),
		Height:      size.Height(),
	}
}

// ContainerNested is raised when a container is nested under a parent
type ContainerNested struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
	ParentID    valueobjects.ContainerID `json:"parent_id"`
}

// NewContainerNested creates a ContainerNested event
func NewContainerNested(id, parentID valueobjects.ContainerID, workspaceID string, ts time.Time) ContainerNested {
	return ContainerNested{
		BaseEvent:   newBase(id.String(), "container.nested", workspaceID, ts),
		ContainerID: id,
		ParentID:    parentID,
	}
}

// ContainerUnnested is raised when a container is detached from its parent
type ContainerUnnested struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
}

// NewContainerUnnested creates a ContainerUnnested event
func NewContainerUnnested(id valueobjects.ContainerID, workspaceID string, ts time.Time) ContainerUnnested {
	return ContainerUnnested{
		BaseEvent:   newBase(id.String(), "container.unnested", workspaceID, ts),
		ContainerID: id,
	}
}

// ContainerActivated is raised when a ghost mirror becomes user-editable
type ContainerActivated struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
}

// NewContainerActivated creates a ContainerActivated event
func NewContainerActivated(id valueobjects.ContainerID, workspaceID string, ts time.Time) ContainerActivated {
	return ContainerActivated{
		BaseEvent:   newBase(id.String(), "container.activated", workspaceID, ts),
		ContainerID: id,
	}
}

// ContainerDeleted is raised when a container is deleted
type ContainerDeleted struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
}

// NewContainerDeleted creates a ContainerDeleted event
func NewContainerDeleted(id valueobjects.ContainerID, workspaceID string, ts time.Time) ContainerDeleted {
	return ContainerDeleted{
		BaseEvent:   newBase(id.String(), "container.deleted", workspaceID, ts),
		ContainerID: id,
	}
}

// Edge events

// EdgeCreated is raised when a relationship edge is created
type EdgeCreated struct {
	BaseEvent
	EdgeID           string `json:"edge_id"`
	SourcePortID     string `json:"source_port_id"`
	TargetPortID     string `json:"target_port_id"`
	RelationshipType string `json:"relationship_type"`
	AutoGenerated    bool   `json:"auto_generated"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(edgeID, workspaceID, sourcePortID, targetPortID, relationshipType string, autoGenerated bool, ts time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent:        newBase(edgeID, "edge.created", workspaceID, ts),
		EdgeID:           edgeID,
		SourcePortID:     sourcePortID,
		TargetPortID:     targetPortID,
		RelationshipType: relationshipType,
		AutoGenerated:    autoGenerated,
	}
}

// EdgeDeleted is raised when a relationship edge is deleted
type EdgeDeleted struct {
	BaseEvent
	EdgeID string `json:"edge_id"`
}

// NewEdgeDeleted creates an EdgeDeleted event
func NewEdgeDeleted(edgeID, workspaceID string, ts time.Time) EdgeDeleted {
	return EdgeDeleted{
		BaseEvent: newBase(edgeID, "edge.deleted", workspaceID, ts),
		EdgeID:    edgeID,
	}
}

// Reference events

// ReferenceAttached is raised when a container is linked to an authoritative entity
type ReferenceAttached struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
	EntityType  string                   `json:"entity_type"`
	EntityID    string                   `json:"entity_id"`
}

// NewReferenceAttached creates a ReferenceAttached event
func NewReferenceAttached(containerID valueobjects.ContainerID, workspaceID string, ref valueobjects.EntityRef, ts time.Time) ReferenceAttached {
	return ReferenceAttached{
		BaseEvent:   newBase(containerID.String(), "reference.attached", workspaceID, ts),
		ContainerID: containerID,
		EntityType:  string(ref.EntityType()),
		EntityID:    ref.EntityID(),
	}
}

// EntityMaterialized is raised when an authoritative entity gains a mirror container
type EntityMaterialized struct {
	BaseEvent
	ContainerID valueobjects.ContainerID `json:"container_id"`
	EntityType  string                   `json:"entity_type"`
	EntityID    string                   `json:"entity_id"`
}

// NewEntityMaterialized creates an EntityMaterialized event
func NewEntityMaterialized(containerID valueobjects.ContainerID, workspaceID string, ref valueobjects.EntityRef, ts time.Time) EntityMaterialized {
	return EntityMaterialized{
		BaseEvent:   newBase(ref.Key(), "entity.materialized", workspaceID, ts),
		ContainerID: containerID,
		EntityType:  string(ref.EntityType()),
		EntityID:    ref.EntityID(),
	}
}

// Layout events

// LayoutReset is raised when the workspace default layout is reset
type LayoutReset struct {
	BaseEvent
}

// NewLayoutReset creates a LayoutReset event
func NewLayoutReset(workspaceID string, ts time.Time) LayoutReset {
	return LayoutReset{
		BaseEvent: newBase(workspaceID, "layout.reset", workspaceID, ts),
	}
}

// Lock events

// LockAcquired is raised when a user acquires the canvas lock
type LockAcquired struct {
	BaseEvent
	HolderID string `json:"holder_id"`
}

// NewLockAcquired creates a LockAcquired event
func NewLockAcquired(workspaceID, holderID string, ts time.Time) LockAcquired {
	return LockAcquired{
		BaseEvent: newBase(workspaceID, "lock.acquired", workspaceID, ts),
		HolderID:  holderID,
	}
}

// LockReleased is raised when a user releases the canvas lock
type LockReleased struct {
	BaseEvent
	HolderID string `json:"holder_id"`
}

// NewLockReleased creates a LockReleased event
func NewLockReleased(workspaceID, holderID string, ts time.Time) LockReleased {
	return LockReleased{
		BaseEvent: newBase(workspaceID, "lock.released", workspaceID, ts),
		HolderID:  holderID,
	}
}
