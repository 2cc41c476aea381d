package guard

import (
	"context"
	"testing"

	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFixture(t *testing.T) (*SyncGuard, *memory.ContainerRepository, *memory.ReferenceRepository) {
	t.Helper()
	containers := memory.NewContainerRepository()
	references := memory.NewReferenceRepository()
	return NewSyncGuard(containers, references, zap.NewNop()), containers, references
}

func makeLocal(t *testing.T, workspaceID string) *entities.Container {
	t.Helper()
	content, err := valueobjects.NewContainerContent("Note", "")
	require.NoError(t, err)
	pos, err := valueobjects.NewPosition(0, 0)
	require.NoError(t, err)
	size, err := valueobjects.NewSize(240, 120)
	require.NoError(t, err)
	c, err := entities.NewContainer(workspaceID, content, pos, size)
	require.NoError(t, err)
	return c
}

func makeGhost(t *testing.T, workspaceID string, entityType valueobjects.EntityType, entityID string) *entities.Container {
	t.Helper()
	ref, err := valueobjects.NewEntityRef(entityType, entityID)
	require.NoError(t, err)
	content, err := valueobjects.NewContainerContent("Roadmap", "")
	require.NoError(t, err)
	pos, err := valueobjects.NewPosition(0, 0)
	require.NoError(t, err)
	size, err := valueobjects.NewSize(240, 120)
	require.NoError(t, err)
	c, err := entities.NewGhostContainer(workspaceID, ref, content, pos, size)
	require.NoError(t, err)
	return c
}

func TestIsIntegrated(t *testing.T) {
	assert.False(t, IsIntegrated(nil))
	assert.False(t, IsIntegrated(makeLocal(t, "ws-1")))
	assert.True(t, IsIntegrated(makeGhost(t, "ws-1", valueobjects.EntityTypeTrack, "track-1")))
}

func TestGuardOutboundLocalOnlyIsDenied(t *testing.T) {
	g, containers, _ := newFixture(t)
	local := makeLocal(t, "ws-1")
	require.NoError(t, containers.Save(context.Background(), local))

	verdict, err := g.GuardOutbound(context.Background(), "ws-1", local.ID(), "update")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "local-only")
}

func TestGuardOutboundIntegratedResolvesEntity(t *testing.T) {
	g, containers, _ := newFixture(t)
	ghost := makeGhost(t, "ws-1", valueobjects.EntityTypeTask, "task-9")
	require.NoError(t, containers.Save(context.Background(), ghost))

	verdict, err := g.GuardOutbound(context.Background(), "ws-1", ghost.ID(), "update")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, "task:task-9", verdict.Entity.Key())
}

func TestGuardOutboundMissingContainerIsDeniedNotError(t *testing.T) {
	g, _, _ := newFixture(t)

	verdict, err := g.GuardOutbound(context.Background(), "ws-1", valueobjects.NewContainerID(), "update")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "does not exist")
}

func TestGuardInbound(t *testing.T) {
	g, containers, references := newFixture(t)
	ghost := makeGhost(t, "ws-1", valueobjects.EntityTypeTrack, "track-1")
	require.NoError(t, containers.Save(context.Background(), ghost))
	ref, err := entities.NewReference("ws-1", ghost.ID(), ghost.EntityRef(), true)
	require.NoError(t, err)
	require.NoError(t, references.Save(context.Background(), ref))

	t.Run("mirrored entity is allowed", func(t *testing.T) {
		verdict, err := g.GuardInbound(context.Background(), "ws-1", ghost.EntityRef(), "update")
		require.NoError(t, err)
		assert.True(t, verdict.Allowed)
	})

	t.Run("unmirrored entity is a quiet no-op", func(t *testing.T) {
		other, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-404")
		require.NoError(t, err)
		verdict, err := g.GuardInbound(context.Background(), "ws-1", other, "update")
		require.NoError(t, err)
		assert.False(t, verdict.Allowed)
		assert.Contains(t, verdict.Reason, "not mirrored")
	})
}
