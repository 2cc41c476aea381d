package ports

import (
	"context"
	"time"

	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/events"
	"canvasmirror/domain/plan"
)

// ContainerRepository defines the interface for container persistence
// This is a port in hexagonal architecture - the application doesn't know about the implementation
type ContainerRepository interface {
	// Save persists a container (create or update)
	Save(ctx context.Context, container *entities.Container) error

	// GetByID retrieves a container by its ID
	GetByID(ctx context.Context, workspaceID string, id valueobjects.ContainerID) (*entities.Container, error)

	// GetByWorkspaceID retrieves all containers in a workspace
	GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Container, error)

	// GetChildren retrieves the containers nested directly under a parent
	GetChildren(ctx context.Context, workspaceID string, parentID valueobjects.ContainerID) ([]*entities.Container, error)

	// Delete removes a container
	Delete(ctx context.Context, workspaceID string, id valueobjects.ContainerID) error
}

// ReferenceRepository defines the interface for entity-linkage persistence
type ReferenceRepository interface {
	// Save persists a reference
	Save(ctx context.Context, ref *entities.Reference) error

	// GetByID retrieves a reference by its ID
	GetByID(ctx context.Context, workspaceID string, id string) (*entities.Reference, error)

	// GetByWorkspaceID retrieves all references in a workspace
	GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Reference, error)

	// GetByEntity retrieves the references pointing at an authoritative entity
	GetByEntity(ctx context.Context, workspaceID string, ref valueobjects.EntityRef) ([]*entities.Reference, error)

	// GetByContainerID retrieves the references carried by a container
	GetByContainerID(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID) ([]*entities.Reference, error)

	// Delete removes a reference
	Delete(ctx context.Context, workspaceID string, id string) error
}

// PortRepository defines the interface for connection-point persistence
type PortRepository interface {
	// Save persists a port
	Save(ctx context.Context, workspaceID string, port *entities.Port) error

	// GetByID retrieves a port by its ID
	GetByID(ctx context.Context, workspaceID string, id string) (*entities.Port, error)

	// GetByContainerID retrieves a container's ports
	GetByContainerID(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID) ([]*entities.Port, error)

	// Delete removes a port
	Delete(ctx context.Context, workspaceID string, id string) error
}

// EdgeRepository defines the interface for edge persistence
type EdgeRepository interface {
	// Save persists an edge
	Save(ctx context.Context, edge *entities.Edge) error

	// GetByID retrieves an edge by its ID
	GetByID(ctx context.Context, workspaceID string, id string) (*entities.Edge, error)

	// GetByWorkspaceID retrieves all edges in a workspace
	GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Edge, error)

	// GetByPortID retrieves the edges touching a port
	GetByPortID(ctx context.Context, workspaceID string, portID string) ([]*entities.Edge, error)

	// Delete removes an edge
	Delete(ctx context.Context, workspaceID string, id string) error
}

// LockRepository defines the interface for canvas-lock persistence.
// Acquire must fail with a conflict when another unexpired holder exists;
// implementations use a conditional write, never a retry loop.
type LockRepository interface {
	// Acquire claims the workspace lock for holderID
	Acquire(ctx context.Context, lock *entities.CanvasLock) error

	// Get retrieves the current lock, nil when none is held
	Get(ctx context.Context, workspaceID string) (*entities.CanvasLock, error)

	// Renew extends the holder's lock
	Renew(ctx context.Context, lock *entities.CanvasLock) error

	// Release removes the lock if held by holderID
	Release(ctx context.Context, workspaceID string, holderID string) error
}

// LayoutRepository defines the interface for per-workspace layout settings
type LayoutRepository interface {
	// Save persists the workspace layout settings
	Save(ctx context.Context, settings *entities.LayoutSettings) error

	// Get retrieves the workspace layout settings, creating defaults when absent
	Get(ctx context.Context, workspaceID string) (*entities.LayoutSettings, error)
}

// VisibilityRepository defines the interface for per-user hide/show preferences
type VisibilityRepository interface {
	// SetHidden stores a user's visibility preference for a container
	SetHidden(ctx context.Context, workspaceID string, userID string, containerID valueobjects.ContainerID, hidden bool) error

	// GetHidden retrieves the set of container IDs a user has hidden
	GetHidden(ctx context.Context, workspaceID string, userID string) (map[string]bool, error)
}

// SourceReader reads the authoritative project-management domain.
// The orchestration core never writes through this port.
type SourceReader interface {
	// EntityExists reports whether an authoritative entity exists
	EntityExists(ctx context.Context, ref valueobjects.EntityRef) (bool, error)
}

// SourceWriter performs the two controlled-exception writes into the
// authoritative domain. Nothing else goes through this port.
type SourceWriter interface {
	// CreateTask creates an authoritative task
	CreateTask(ctx context.Context, entityID, name, trackID string) error

	// CreateTrack creates an authoritative track
	CreateTrack(ctx context.Context, entityID, name, projectID string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// ExecutionRecord captures one committed plan for later rollback
type ExecutionRecord struct {
	PlanID      string
	WorkspaceID string
	ActorID     string
	Origin      plan.Origin
	Applied     []AppliedMutation
	CommittedAt time.Time
}

// AppliedMutation pairs a committed mutation with its inverse, when one
// exists. Creations are reversible; updates and deletions are not, and
// carry a nil inverse.
type AppliedMutation struct {
	Kind       plan.Kind
	Target     plan.TargetCollection
	Inverse    plan.Mutation
	Reversible bool
	// Reason explains why the mutation cannot be reversed; empty when
	// Reversible is true
	Reason string
}

// ExecutionHistory is the bounded per-workspace record of committed
// plans that the rollback manager consumes. Depth is fixed at
// construction; pushing beyond it evicts the oldest record.
type ExecutionHistory interface {
	// Push records a committed plan
	Push(ctx context.Context, record ExecutionRecord) error

	// Pop removes and returns the most recent record, nil when empty
	Pop(ctx context.Context, workspaceID string) (*ExecutionRecord, error)

	// Peek returns the most recent record without removing it
	Peek(ctx context.Context, workspaceID string) (*ExecutionRecord, error)

	// Depth returns the number of records held for a workspace
	Depth(ctx context.Context, workspaceID string) (int, error)
}
