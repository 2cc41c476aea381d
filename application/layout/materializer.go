// Package layout computes default canvas placement for newly mirrored
// entities and owns the one-way auto-layout switch: the first manual
// reposition or renest permanently disables automatic layout until an
// explicit reset.
package layout

import (
	"context"
	"sort"
	"time"

	"canvasmirror/application/ports"
	"canvasmirror/domain/config"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/plan"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// Column order for typed placement. Unknown types share the last column.
var columnByType = map[valueobjects.EntityType]int{
	valueobjects.EntityTypeProject: 0,
	valueobjects.EntityTypeTrack:   1,
	valueobjects.EntityTypeTask:    2,
	valueobjects.EntityTypeEvent:   3,
}

// Materializer computes spatial placement and hierarchy-edge
// regeneration. It never writes; its outputs are positions and
// mutations for the planners to include.
type Materializer struct {
	containers ports.ContainerRepository
	portRepo   ports.PortRepository
	edges      ports.EdgeRepository
	layout     ports.LayoutRepository
	cfg        *config.DomainConfig
	logger     *zap.Logger
}

// NewMaterializer creates a layout materializer
func NewMaterializer(
	containers ports.ContainerRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	layout ports.LayoutRepository,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *Materializer {
	return &Materializer{
		containers: containers,
		portRepo:   portRepo,
		edges:      edges,
		layout:     layout,
		cfg:        cfg,
		logger:     logger,
	}
}

// PlaceNew computes the default position and size for a new mirror of
// the given entity type. Placement is a typed column layout: one column
// per entity type, rows filled top to bottom in mirror order, so the
// same workspace state always yields the same position.
func (m *Materializer) PlaceNew(ctx context.Context, workspaceID string, entityType valueobjects.EntityType) (valueobjects.Position, valueobjects.Size, error) {
	existing, err := m.containers.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return valueobjects.Position{}, valueobjects.Size{}, pkgerrors.Wrap(err, "failed to load containers for placement")
	}

	row := 0
	for _, c := range existing {
		if c.IsIntegrated() && c.EntityRef().EntityType() == entityType {
			row++
		}
	}

	col, ok := columnByType[entityType]
	if !ok {
		col = len(columnByType)
	}

	x := float64(col) * float64(m.cfg.LayoutColumnWidth+m.cfg.LayoutColumnSpacing)
	y := float64(row) * float64(m.cfg.LayoutRowHeight)

	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return valueobjects.Position{}, valueobjects.Size{}, err
	}
	size, err := valueobjects.NewSize(float64(m.cfg.DefaultGhostWidth), float64(m.cfg.DefaultGhostHeight))
	if err != nil {
		return valueobjects.Position{}, valueobjects.Size{}, err
	}
	return pos, size, nil
}

// ShouldBreakLayout reports whether a manual reposition or renest
// should mark the workspace layout broken. Once broken it stays broken,
// so the planner only appends the break mutation the first time.
func (m *Materializer) ShouldBreakLayout(ctx context.Context, workspaceID string) (bool, error) {
	settings, err := m.layout.Get(ctx, workspaceID)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to load layout settings")
	}
	return !settings.IsBroken(), nil
}

// ResetMutations builds the mutation list for a layout reset: clear the
// broken flag, drop every auto-generated hierarchy edge, and regenerate
// them from the current parent/child tree. Manual edges are never
// touched.
func (m *Materializer) ResetMutations(ctx context.Context, workspaceID string, at time.Time) ([]plan.Mutation, error) {
	mutations := []plan.Mutation{
		plan.ResetLayout{WorkspaceID: workspaceID, At: at},
	}

	existing, err := m.edges.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load edges for layout reset")
	}
	for _, e := range existing {
		if e.AutoGenerated() {
			mutations = append(mutations, plan.DeleteEdge{EdgeID: e.ID()})
		}
	}

	regenerated, err := m.hierarchyEdges(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	mutations = append(mutations, regenerated...)
	return mutations, nil
}

// HierarchyEdge builds the auto-generated containment edge between a
// parent mirror's output port and a child mirror's input port. Either
// side missing its port yields nil without error; structural edges are
// best-effort decoration.
func (m *Materializer) HierarchyEdge(ctx context.Context, workspaceID string, parentID, childID valueobjects.ContainerID) (*entities.Edge, error) {
	source, err := m.findPort(ctx, workspaceID, parentID, entities.PortKindOutput)
	if err != nil || source == nil {
		return nil, err
	}
	target, err := m.findPort(ctx, workspaceID, childID, entities.PortKindInput)
	if err != nil || target == nil {
		return nil, err
	}

	edge, err := entities.NewEdge(workspaceID, source.ID(), target.ID(), entities.RelationshipContains, entities.DirectionForward, true)
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func (m *Materializer) hierarchyEdges(ctx context.Context, workspaceID string) ([]plan.Mutation, error) {
	containers, err := m.containers.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load containers for layout reset")
	}
	// Stable ordering keeps regenerated plans deterministic
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].ID().String() < containers[j].ID().String()
	})

	var out []plan.Mutation
	for _, c := range containers {
		if c.ParentID().IsZero() {
			continue
		}
		edge, err := m.HierarchyEdge(ctx, workspaceID, c.ParentID(), c.ID())
		if err != nil {
			return nil, err
		}
		if edge == nil {
			m.logger.Debug("skipping hierarchy edge, port missing",
				zap.String("workspace_id", workspaceID),
				zap.String("container_id", c.ID().String()),
			)
			continue
		}
		out = append(out, plan.CreateEdge{Edge: edge, Repair: plan.RepairStampTimestamps})
	}
	return out, nil
}

func (m *Materializer) findPort(ctx context.Context, workspaceID string, containerID valueobjects.ContainerID, kind entities.PortKind) (*entities.Port, error) {
	portList, err := m.portRepo.GetByContainerID(ctx, workspaceID, containerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load ports")
	}
	for _, p := range portList {
		if p.Kind() == kind {
			return p, nil
		}
	}
	return nil, nil
}
