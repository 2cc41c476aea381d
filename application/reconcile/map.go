// Package reconcile builds the in-memory view of which authoritative
// entities are mirrored on a workspace canvas, and detects duplicate
// linkages before any materialization runs.
package reconcile

import (
	"context"
	"sort"

	"canvasmirror/application/ports"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// Entry records the containers mirroring a single authoritative entity
type Entry struct {
	Entity     valueobjects.EntityRef
	Containers []valueobjects.ContainerID
}

// IsDuplicated reports whether more than one container mirrors the entity
func (e Entry) IsDuplicated() bool { return len(e.Containers) > 1 }

// Map is a point-in-time index from entity key to mirroring containers.
// It is rebuilt from the reference store on demand and never cached
// across requests.
type Map struct {
	workspaceID string
	entries     map[string]*Entry
}

// WorkspaceID returns the workspace the map was built for
func (m *Map) WorkspaceID() string { return m.workspaceID }

// CheckEntity returns the containers currently mirroring an entity.
// An empty slice means the entity is not mirrored.
func (m *Map) CheckEntity(ref valueobjects.EntityRef) []valueobjects.ContainerID {
	entry, ok := m.entries[ref.Key()]
	if !ok {
		return nil
	}
	out := make([]valueobjects.ContainerID, len(entry.Containers))
	copy(out, entry.Containers)
	return out
}

// IsMirrored reports whether at least one container mirrors the entity
func (m *Map) IsMirrored(ref valueobjects.EntityRef) bool {
	return len(m.entries[ref.Key()].containersOrNil()) > 0
}

func (e *Entry) containersOrNil() []valueobjects.ContainerID {
	if e == nil {
		return nil
	}
	return e.Containers
}

// Duplicates returns the entries mirrored by more than one container,
// ordered by entity key so diagnostics are stable
func (m *Map) Duplicates() []Entry {
	var out []Entry
	for _, entry := range m.entries {
		if entry.IsDuplicated() {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entity.Key() < out[j].Entity.Key()
	})
	return out
}

// HasDuplicates reports whether any entity is mirrored more than once.
// Materialization is gated on this workspace-wide: a single duplicate
// anywhere blocks all inbound materialization until resolved.
func (m *Map) HasDuplicates() bool {
	for _, entry := range m.entries {
		if entry.IsDuplicated() {
			return true
		}
	}
	return false
}

// Builder constructs reconciliation maps from the reference store
type Builder struct {
	references ports.ReferenceRepository
	logger     *zap.Logger
}

// NewBuilder creates a reconciliation map builder
func NewBuilder(references ports.ReferenceRepository, logger *zap.Logger) *Builder {
	return &Builder{references: references, logger: logger}
}

// Build reads every reference in the workspace and indexes it by
// entity key
func (b *Builder) Build(ctx context.Context, workspaceID string) (*Map, error) {
	refs, err := b.references.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load references for reconciliation")
	}

	m := &Map{
		workspaceID: workspaceID,
		entries:     make(map[string]*Entry),
	}
	for _, ref := range refs {
		key := ref.EntityRef().Key()
		entry, ok := m.entries[key]
		if !ok {
			entry = &Entry{Entity: ref.EntityRef()}
			m.entries[key] = entry
		}
		entry.Containers = append(entry.Containers, ref.ContainerID())
	}

	if dups := m.Duplicates(); len(dups) > 0 {
		keys := make([]string, len(dups))
		for i, d := range dups {
			keys[i] = d.Entity.Key()
		}
		b.logger.Warn("duplicate entity linkages detected",
			zap.String("workspace_id", workspaceID),
			zap.Strings("entities", keys),
		)
	}

	return m, nil
}
