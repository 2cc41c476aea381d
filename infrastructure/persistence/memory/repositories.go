// Package memory provides in-process implementations of the
// persistence ports. They back local development and the test suites;
// production wiring uses the DynamoDB implementations.
package memory

import (
	"context"
	"fmt"
	"sync"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"
)

// ContainerRepository is an in-memory ports.ContainerRepository
type ContainerRepository struct {
	mu    sync.RWMutex
	items map[string]*entities.Container
}

func NewContainerRepository() *ContainerRepository {
	return &ContainerRepository{items: make(map[string]*entities.Container)}
}

func containerKey(workspaceID string, id valueobjects.ContainerID) string {
	return workspaceID + "#" + id.String()
}

func (r *ContainerRepository) Save(ctx context.Context, container *entities.Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[containerKey(container.WorkspaceID(), container.ID())] = container
	return nil
}

func (r *ContainerRepository) GetByID(ctx context.Context, workspaceID string, id valueobjects.ContainerID) (*entities.Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[containerKey(workspaceID, id)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("container %s not found", id))
	}
	return c, nil
}

func (r *ContainerRepository) GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Container
	for _, c := range r.items {
		if c.WorkspaceID() == workspaceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ContainerRepository) GetChildren(ctx context.Context, workspaceID string, parentID valueobjects.ContainerID) ([]*entities.Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Container
	for _, c := range r.items {
		if c.WorkspaceID() == workspaceID && c.ParentID().Equals(parentID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ContainerRepository) Delete(ctx context.Context, workspaceID string, id valueobjects.ContainerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := containerKey(workspaceID, id)
	if _, ok := r.items[key]; !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("container %s not found", id))
	}
	delete(r.items, key)
	return nil
}

// ReferenceRepository is an in-memory ports.ReferenceRepository
type ReferenceRepository struct {
	mu    sync.RWMutex
	items map[string]*entities.Reference
}

func NewReferenceRepository() *ReferenceRepository {
	return &ReferenceRepository{items: make(map[string]*entities.Reference)}
}

func (r *ReferenceRepository) Save(ctx context.Context, ref *entities.Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ref.WorkspaceID()+"#"+ref.ID()] = ref
	return nil
}

func (r *ReferenceRepository) GetByID(ctx context.Context, workspaceID string, id string) (*entities.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.items[workspaceID+"#"+id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("reference %s not found", id))
	}
	return ref, nil
}

func (r *ReferenceRepository) GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Reference
	for _, ref := range r.items {
		if ref.WorkspaceID() == workspaceID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *ReferenceRepository) GetByEntity(ctx context.Context, workspaceID string, entityRef valueobjects.EntityRef) ([]*entities.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Reference
	for _, ref := range r.items {
		if ref.WorkspaceID() == workspaceID && ref.EntityRef().Equals(entityRef) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *ReferenceRepository) GetByContainerID(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID) ([]*entities.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Reference
	for _, ref := range r.items {
		if ref.WorkspaceID() == workspaceID && ref.ContainerID().Equals(containerID) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *ReferenceRepository) Delete(ctx context.Context, workspaceID string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := workspaceID + "#" + id
	if _, ok := r.items[key]; !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("reference %s not found", id))
	}
	delete(r.items, key)
	return nil
}

// PortRepository is an in-memory ports.PortRepository
type PortRepository struct {
	mu    sync.RWMutex
	items map[string]*entities.Port
	owner map[string]string
}

func NewPortRepository() *PortRepository {
	return &PortRepository{
		items: make(map[string]*entities.Port),
		owner: make(map[string]string),
	}
}

func (r *PortRepository) Save(ctx context.Context, workspaceID string, port *entities.Port) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[workspaceID+"#"+port.ID()] = port
	r.owner[workspaceID+"#"+port.ID()] = workspaceID
	return nil
}

func (r *PortRepository) GetByID(ctx context.Context, workspaceID string, id string) (*entities.Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[workspaceID+"#"+id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("port %s not found", id))
	}
	return p, nil
}

func (r *PortRepository) GetByContainerID(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID) ([]*entities.Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Port
	for key, p := range r.items {
		if r.owner[key] == workspaceID && p.ContainerID().Equals(containerID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PortRepository) Delete(ctx context.Context, workspaceID string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := workspaceID + "#" + id
	if _, ok := r.items[key]; !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("port %s not found", id))
	}
	delete(r.items, key)
	delete(r.owner, key)
	return nil
}

// EdgeRepository is an in-memory ports.EdgeRepository
type EdgeRepository struct {
	mu    sync.RWMutex
	items map[string]*entities.Edge
}

func NewEdgeRepository() *EdgeRepository {
	return &EdgeRepository{items: make(map[string]*entities.Edge)}
}

func (r *EdgeRepository) Save(ctx context.Context, edge *entities.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[edge.WorkspaceID()+"#"+edge.ID()] = edge
	return nil
}

func (r *EdgeRepository) GetByID(ctx context.Context, workspaceID string, id string) (*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[workspaceID+"#"+id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("edge %s not found", id))
	}
	return e, nil
}

func (r *EdgeRepository) GetByWorkspaceID(ctx context.Context, workspaceID string) ([]*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Edge
	for _, e := range r.items {
		if e.WorkspaceID() == workspaceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *EdgeRepository) GetByPortID(ctx context.Context, workspaceID string, portID string) ([]*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Edge
	for _, e := range r.items {
		if e.WorkspaceID() == workspaceID && e.TouchesPort(portID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *EdgeRepository) Delete(ctx context.Context, workspaceID string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := workspaceID + "#" + id
	if _, ok := r.items[key]; !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("edge %s not found", id))
	}
	delete(r.items, key)
	return nil
}

// LockRepository is an in-memory ports.LockRepository with the same
// conditional-acquire semantics as the DynamoDB implementation
type LockRepository struct {
	mu    sync.Mutex
	locks map[string]*entities.CanvasLock
}

func NewLockRepository() *LockRepository {
	return &LockRepository{locks: make(map[string]*entities.CanvasLock)}
}

func (r *LockRepository) Acquire(ctx context.Context, lock *entities.CanvasLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[lock.WorkspaceID()]
	if ok && !existing.IsExpired() && !existing.IsHeldBy(lock.HolderID()) {
		return pkgerrors.NewConflictError(fmt.Sprintf("canvas lock held by %s", existing.HolderID()))
	}
	r.locks[lock.WorkspaceID()] = lock
	return nil
}

func (r *LockRepository) Get(ctx context.Context, workspaceID string) (*entities.CanvasLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[workspaceID]
	if !ok {
		return nil, nil
	}
	return lock, nil
}

func (r *LockRepository) Renew(ctx context.Context, lock *entities.CanvasLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[lock.WorkspaceID()]
	if !ok || !existing.IsHeldBy(lock.HolderID()) {
		return pkgerrors.NewConflictError("canvas lock not held by renewer")
	}
	r.locks[lock.WorkspaceID()] = lock
	return nil
}

func (r *LockRepository) Release(ctx context.Context, workspaceID string, holderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locks[workspaceID]
	if !ok {
		return nil
	}
	if !existing.IsHeldBy(holderID) {
		return pkgerrors.NewConflictError("canvas lock held by another user")
	}
	delete(r.locks, workspaceID)
	return nil
}

// LayoutRepository is an in-memory ports.LayoutRepository
type LayoutRepository struct {
	mu    sync.Mutex
	items map[string]*entities.LayoutSettings
}

func NewLayoutRepository() *LayoutRepository {
	return &LayoutRepository{items: make(map[string]*entities.LayoutSettings)}
}

func (r *LayoutRepository) Save(ctx context.Context, settings *entities.LayoutSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[settings.WorkspaceID()] = settings
	return nil
}

func (r *LayoutRepository) Get(ctx context.Context, workspaceID string) (*entities.LayoutSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings, ok := r.items[workspaceID]
	if !ok {
		created, err := entities.NewLayoutSettings(workspaceID)
		if err != nil {
			return nil, err
		}
		settings = created
		r.items[workspaceID] = settings
	}
	return settings, nil
}

// VisibilityRepository is an in-memory ports.VisibilityRepository
type VisibilityRepository struct {
	mu     sync.Mutex
	hidden map[string]map[string]bool
}

func NewVisibilityRepository() *VisibilityRepository {
	return &VisibilityRepository{hidden: make(map[string]map[string]bool)}
}

func (r *VisibilityRepository) SetHidden(ctx context.Context, workspaceID string, userID string, containerID valueobjects.ContainerID, hidden bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := workspaceID + "#" + userID
	prefs, ok := r.hidden[key]
	if !ok {
		prefs = make(map[string]bool)
		r.hidden[key] = prefs
	}
	if hidden {
		prefs[containerID.String()] = true
	} else {
		delete(prefs, containerID.String())
	}
	return nil
}

func (r *VisibilityRepository) GetHidden(ctx context.Context, workspaceID string, userID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefs := r.hidden[workspaceID+"#"+userID]
	out := make(map[string]bool, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out, nil
}

// SourceStore is an in-memory authoritative domain used by local
// development and tests. It implements both SourceReader and
// SourceWriter.
type SourceStore struct {
	mu       sync.Mutex
	entities map[string]bool
}

func NewSourceStore() *SourceStore {
	return &SourceStore{entities: make(map[string]bool)}
}

// AddEntity seeds an authoritative entity
func (s *SourceStore) AddEntity(ref valueobjects.EntityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[ref.Key()] = true
}

// RemoveEntity drops an authoritative entity
func (s *SourceStore) RemoveEntity(ref valueobjects.EntityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, ref.Key())
}

func (s *SourceStore) EntityExists(ctx context.Context, ref valueobjects.EntityRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[ref.Key()], nil
}

func (s *SourceStore) CreateTask(ctx context.Context, entityID, name, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[string(valueobjects.EntityTypeTask)+":"+entityID] = true
	return nil
}

func (s *SourceStore) CreateTrack(ctx context.Context, entityID, name, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[string(valueobjects.EntityTypeTrack)+":"+entityID] = true
	return nil
}

var (
	_ ports.ContainerRepository  = (*ContainerRepository)(nil)
	_ ports.ReferenceRepository  = (*ReferenceRepository)(nil)
	_ ports.PortRepository       = (*PortRepository)(nil)
	_ ports.EdgeRepository       = (*EdgeRepository)(nil)
	_ ports.LockRepository       = (*LockRepository)(nil)
	_ ports.LayoutRepository     = (*LayoutRepository)(nil)
	_ ports.VisibilityRepository = (*VisibilityRepository)(nil)
	_ ports.SourceReader         = (*SourceStore)(nil)
	_ ports.SourceWriter         = (*SourceStore)(nil)
)
