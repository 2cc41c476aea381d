package layout

import (
	"context"
	"testing"
	"time"

	"canvasmirror/domain/config"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/plan"
	"canvasmirror/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type layoutFixture struct {
	materializer *Materializer
	containers   *memory.ContainerRepository
	ports        *memory.PortRepository
	edges        *memory.EdgeRepository
	layouts      *memory.LayoutRepository
	cfg          *config.DomainConfig
}

func newLayoutFixture(t *testing.T) *layoutFixture {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	f := &layoutFixture{
		containers: memory.NewContainerRepository(),
		ports:      memory.NewPortRepository(),
		edges:      memory.NewEdgeRepository(),
		layouts:    memory.NewLayoutRepository(),
		cfg:        cfg,
	}
	f.materializer = NewMaterializer(f.containers, f.ports, f.edges, f.layouts, cfg, zap.NewNop())
	return f
}

func (f *layoutFixture) addGhost(t *testing.T, workspaceID string, entityType valueobjects.EntityType, entityID string) *entities.Container {
	t.Helper()
	ctx := context.Background()
	ref, err := valueobjects.NewEntityRef(entityType, entityID)
	require.NoError(t, err)
	content, err := valueobjects.NewContainerContent(entityID, "")
	require.NoError(t, err)
	pos, size, err := f.materializer.PlaceNew(ctx, workspaceID, entityType)
	require.NoError(t, err)
	c, err := entities.NewGhostContainer(workspaceID, ref, content, pos, size)
	require.NoError(t, err)
	require.NoError(t, f.containers.Save(ctx, c))

	in, err := entities.NewPort(c.ID(), "in", entities.PortKindInput)
	require.NoError(t, err)
	out, err := entities.NewPort(c.ID(), "out", entities.PortKindOutput)
	require.NoError(t, err)
	require.NoError(t, f.ports.Save(ctx, workspaceID, in))
	require.NoError(t, f.ports.Save(ctx, workspaceID, out))
	return c
}

func TestPlaceNewUsesTypedColumns(t *testing.T) {
	f := newLayoutFixture(t)
	ctx := context.Background()

	trackPos, _, err := f.materializer.PlaceNew(ctx, "ws-1", valueobjects.EntityTypeTrack)
	require.NoError(t, err)
	taskPos, _, err := f.materializer.PlaceNew(ctx, "ws-1", valueobjects.EntityTypeTask)
	require.NoError(t, err)

	columnStride := f.cfg.LayoutColumnWidth + f.cfg.LayoutColumnSpacing
	assert.Equal(t, 1*columnStride, trackPos.X())
	assert.Equal(t, 2*columnStride, taskPos.X())
	assert.Equal(t, float64(0), trackPos.Y())
}

func TestPlaceNewFillsRowsPerType(t *testing.T) {
	f := newLayoutFixture(t)
	ctx := context.Background()

	f.addGhost(t, "ws-1", valueobjects.EntityTypeTask, "task-1")
	f.addGhost(t, "ws-1", valueobjects.EntityTypeTask, "task-2")

	pos, _, err := f.materializer.PlaceNew(ctx, "ws-1", valueobjects.EntityTypeTask)
	require.NoError(t, err)
	assert.Equal(t, 2*f.cfg.LayoutRowHeight, pos.Y())

	// A different type still starts at the top of its own column
	trackPos, _, err := f.materializer.PlaceNew(ctx, "ws-1", valueobjects.EntityTypeTrack)
	require.NoError(t, err)
	assert.Equal(t, float64(0), trackPos.Y())
}

func TestShouldBreakLayoutOnlyOnce(t *testing.T) {
	f := newLayoutFixture(t)
	ctx := context.Background()

	first, err := f.materializer.ShouldBreakLayout(ctx, "ws-1")
	require.NoError(t, err)
	assert.True(t, first)

	settings, err := f.layouts.Get(ctx, "ws-1")
	require.NoError(t, err)
	settings.MarkBroken()
	require.NoError(t, f.layouts.Save(ctx, settings))

	second, err := f.materializer.ShouldBreakLayout(ctx, "ws-1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestResetMutationsRegeneratesOnlyAutoEdges(t *testing.T) {
	f := newLayoutFixture(t)
	ctx := context.Background()

	parent := f.addGhost(t, "ws-1", valueobjects.EntityTypeTrack, "T1")
	child := f.addGhost(t, "ws-1", valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, child.NestUnder(parent.ID()))
	require.NoError(t, f.containers.Save(ctx, child))

	// One stale auto edge and one manual edge
	parentPorts, err := f.ports.GetByContainerID(ctx, "ws-1", parent.ID())
	require.NoError(t, err)
	childPorts, err := f.ports.GetByContainerID(ctx, "ws-1", child.ID())
	require.NoError(t, err)
	require.Len(t, parentPorts, 2)
	require.Len(t, childPorts, 2)

	stale, err := entities.NewEdge("ws-1", parentPorts[0].ID(), childPorts[0].ID(), entities.RelationshipContains, entities.DirectionForward, true)
	require.NoError(t, err)
	manual, err := entities.NewEdge("ws-1", parentPorts[0].ID(), childPorts[0].ID(), entities.RelationshipDependsOn, entities.DirectionForward, false)
	require.NoError(t, err)
	require.NoError(t, f.edges.Save(ctx, stale))
	require.NoError(t, f.edges.Save(ctx, manual))

	mutations, err := f.materializer.ResetMutations(ctx, "ws-1", time.Now())
	require.NoError(t, err)

	var deletes []string
	var creates int
	var hasReset bool
	for _, m := range mutations {
		switch mut := m.(type) {
		case plan.ResetLayout:
			hasReset = true
		case plan.DeleteEdge:
			deletes = append(deletes, mut.EdgeID)
		case plan.CreateEdge:
			creates++
			assert.True(t, mut.Edge.AutoGenerated())
		}
	}
	assert.True(t, hasReset)
	assert.Equal(t, []string{stale.ID()}, deletes, "manual edges are never deleted")
	assert.Equal(t, 1, creates)
}
