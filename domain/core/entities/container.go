package entities

import (
	"fmt"
	"time"

	"canvasmirror/domain/config"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/events"
	pkgerrors "canvasmirror/pkg/errors"
)

// Container is the main entity of the visualization domain: a box the
// user arranges on the canvas. It is either local-only (a free
// annotation) or integrated (mirrors exactly one authoritative entity
// through a Reference). Integrated containers start life as ghosts:
// read-only mirrors whose content follows the source system until the
// user activates them.
type Container struct {
	id          valueobjects.ContainerID
	workspaceID string
	content     valueobjects.ContainerContent
	position    valueobjects.Position
	size        valueobjects.Size
	parentID    valueobjects.ContainerID
	isGhost     bool
	entityRef   valueobjects.EntityRef
	metadata    map[string]interface{}
	createdAt   time.Time
	updatedAt   time.Time
	version     int

	// Domain events that occurred during this aggregate's lifetime
	events []events.DomainEvent
}

// NewContainer creates a new local-only container with full validation
func NewContainer(workspaceID string, content valueobjects.ContainerContent, position valueobjects.Position, size valueobjects.Size) (*Container, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}

	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}

	now := time.Now()
	container := &Container{
		id:          valueobjects.NewContainerID(),
		workspaceID: workspaceID,
		content:     content,
		position:    position,
		size:        size,
		isGhost:     false,
		metadata:    make(map[string]interface{}),
		createdAt:   now,
		updatedAt:   now,
		version:     1,
		events:      []events.DomainEvent{},
	}

	container.addEvent(events.NewContainerCreated(container.id, workspaceID, false, valueobjects.EntityRef{}, now))

	return container, nil
}

// NewGhostContainer creates an integrated read-only mirror of an
// authoritative entity. Ghosts carry content too: the materializer
// synthesizes it from the source entity, so the content invariant holds
// for them as well.
func NewGhostContainer(workspaceID string, ref valueobjects.EntityRef, content valueobjects.ContainerContent, position valueobjects.Position, size valueobjects.Size) (*Container, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}

	if ref.IsZero() {
		return nil, pkgerrors.NewValidationError("ghost container requires an authoritative entity reference")
	}

	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}

	now := time.Now()
	container := &Container{
		id:          valueobjects.NewContainerID(),
		workspaceID: workspaceID,
		content:     content,
		position:    position,
		size:        size,
		isGhost:     true,
		entityRef:   ref,
		metadata:    make(map[string]interface{}),
		createdAt:   now,
		updatedAt:   now,
		version:     1,
		events:      []events.DomainEvent{},
	}

	container.addEvent(events.NewContainerCreated(container.id, workspaceID, true, ref, now))

	return container, nil
}

// ReconstructContainer reconstructs a container from repository data with preserved timestamps
func ReconstructContainer(
	id valueobjects.ContainerID,
	workspaceID string,
	content valueobjects.ContainerContent,
	position valueobjects.Position,
	size valueobjects.Size,
	parentID valueobjects.ContainerID,
	isGhost bool,
	ref valueobjects.EntityRef,
	metadata map[string]interface{},
	createdAt, updatedAt time.Time,
	version int,
) (*Container, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}

	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Container{
		id:          id,
		workspaceID: workspaceID,
		content:     content,
		position:    position,
		size:        size,
		parentID:    parentID,
		isGhost:     isGhost,
		entityRef:   ref,
		metadata:    metadata,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		version:     version,
		events:      []events.DomainEvent{},
	}, nil
}

// ID returns the container's unique identifier
func (c *Container) ID() valueobjects.ContainerID {
	return c.id
}

// WorkspaceID returns the owning workspace
func (c *Container) WorkspaceID() string {
	return c.workspaceID
}

// Content returns the container's content
func (c *Container) Content() valueobjects.ContainerContent {
	return c.content
}

// Position returns the container's position
func (c *Container) Position() valueobjects.Position {
	return c.position
}

// Size returns the container's size
func (c *Container) Size() valueobjects.Size {
	return c.size
}

// ParentID returns the parent container id, zero when the container is a root
func (c *Container) ParentID() valueobjects.ContainerID {
	return c.parentID
}

// IsGhost reports whether the container is a read-only mirror
func (c *Container) IsGhost() bool {
	return c.isGhost
}

// EntityRef returns the authoritative linkage, zero for local-only containers
func (c *Container) EntityRef() valueobjects.EntityRef {
	return c.entityRef
}

// IsIntegrated reports whether the container has an authoritative backing
func (c *Container) IsIntegrated() bool {
	return !c.entityRef.IsZero()
}

// Version returns the container's version
func (c *Container) Version() int {
	return c.version
}

// CreatedAt returns when the container was created
func (c *Container) CreatedAt() time.Time {
	return c.createdAt
}

// UpdatedAt returns when the container was last updated
func (c *Container) UpdatedAt() time.Time {
	return c.updatedAt
}

// Metadata returns a copy of the free-form metadata map
func (c *Container) Metadata() map[string]interface{} {
	md := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	return md
}

// MoveTo moves the container to a new position. Moving is a spatial
// operation of the visualization layer and is allowed for ghosts too.
func (c *Container) MoveTo(position valueobjects.Position) error {
	if position.Equals(c.position) {
		return nil // no movement needed
	}

	c.position = position
	c.touch()

	c.addEvent(events.NewContainerMoved(c.id, c.workspaceID, position, c.updatedAt))

	return nil
}

// Resize changes the container's dimensions
func (c *Container) Resize(size valueobjects.Size) error {
	if size.Equals(c.size) {
		return nil
	}

	c.size = size
	c.touch()

	c.addEvent(events.NewContainerResized(c.id, c.workspaceID, size, c.updatedAt))

	return nil
}

// NestUnder places the container under a parent. Cycle detection needs
// the whole tree and is the planner's job; the entity only rejects
// self-nesting.
func (c *Container) NestUnder(parentID valueobjects.ContainerID) error {
	if parentID.IsZero() {
		return pkgerrors.NewValidationError("parent container ID cannot be empty")
	}

	if parentID.Equals(c.id) {
		return pkgerrors.NewValidationError("container cannot be nested under itself")
	}

	if parentID.Equals(c.parentID) {
		return nil
	}

	c.parentID = parentID
	c.touch()

	c.addEvent(events.NewContainerNested(c.id, parentID, c.workspaceID, c.updatedAt))

	return nil
}

// Unnest detaches the container from its parent
func (c *Container) Unnest() error {
	if c.parentID.IsZero() {
		return pkgerrors.NewNotFoundError("parent")
	}

	c.parentID = valueobjects.ContainerID{}
	c.touch()

	c.addEvent(events.NewContainerUnnested(c.id, c.workspaceID, c.updatedAt))

	return nil
}

// Activate turns a ghost mirror into a user-editable container. The
// authoritative linkage is kept; only the read-only flag drops.
func (c *Container) Activate() error {
	if !c.isGhost {
		return nil // already active
	}

	c.isGhost = false
	c.touch()

	c.addEvent(events.NewContainerActivated(c.id, c.workspaceID, c.updatedAt))

	return nil
}

// UpdateContent updates the container's content on behalf of the user.
// Ghosts are read-only mirrors and reject user edits.
func (c *Container) UpdateContent(content valueobjects.ContainerContent) error {
	if c.isGhost {
		return pkgerrors.NewForbiddenError("ghost containers are read-only; activate the container first")
	}

	if content.IsEmpty() {
		return pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}

	if content.Equals(c.content) {
		return nil
	}

	c.content = content
	c.touch()

	c.addEvent(events.NewContainerUpdated(c.id, c.workspaceID, []string{"content"}, c.updatedAt))

	return nil
}

// ApplyAuthoritativeUpdate updates content from an inbound source-system
// change. This path bypasses the ghost guard: the source system may
// always rewrite its own mirror.
func (c *Container) ApplyAuthoritativeUpdate(content valueobjects.ContainerContent) error {
	if !c.IsIntegrated() {
		return pkgerrors.NewForbiddenError("local-only container cannot receive authoritative updates")
	}

	if content.IsEmpty() {
		return pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}

	if content.Equals(c.content) {
		return nil
	}

	c.content = content
	c.touch()

	c.addEvent(events.NewContainerUpdated(c.id, c.workspaceID, []string{"content"}, c.updatedAt))

	return nil
}

// SetMetadata sets a single metadata entry
func (c *Container) SetMetadata(key string, value interface{}) error {
	return c.SetMetadataWithConfig(key, value, config.DefaultDomainConfig())
}

// SetMetadataWithConfig sets a single metadata entry with configuration
func (c *Container) SetMetadataWithConfig(key string, value interface{}, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if c.isGhost {
		return pkgerrors.NewForbiddenError("ghost containers are read-only; activate the container first")
	}

	if key == "" {
		return pkgerrors.NewValidationError("metadata key cannot be empty")
	}

	if _, exists := c.metadata[key]; !exists && len(c.metadata) >= cfg.MaxMetadataKeys {
		return fmt.Errorf("maximum metadata keys reached: %d", cfg.MaxMetadataKeys)
	}

	c.metadata[key] = value
	c.touch()

	c.addEvent(events.NewContainerUpdated(c.id, c.workspaceID, []string{"metadata"}, c.updatedAt))

	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (c *Container) GetUncommittedEvents() []events.DomainEvent {
	return c.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (c *Container) MarkEventsAsCommitted() {
	c.events = []events.DomainEvent{}
}

func (c *Container) addEvent(event events.DomainEvent) {
	c.events = append(c.events, event)
}

func (c *Container) touch() {
	c.updatedAt = time.Now()
	c.version++
}
