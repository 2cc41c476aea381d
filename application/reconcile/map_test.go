package reconcile

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

func seedReference(t *testing.T, repo *memory.ReferenceRepository, workspaceID string, entityType valueobjects.EntityType, entityID string) valueobjects.ContainerID {
	t.Helper()
	containerID := valueobjects.NewContainerID()
	ref, err := valueobjects.NewEntityRef(entityType, entityID)
	require.NoError(t, err)
	reference, err := entities.NewReference(workspaceID, containerID, ref, true)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), reference))
	return containerID
}

func TestBuildIndexesByEntityKey(t *testing.T) {
	repo := memory.NewReferenceRepository()
	containerID := seedReference(t, repo, "ws-1", valueobjects.EntityTypeTask, "task-1")
	seedReference(t, repo, "ws-1", valueobjects.EntityTypeTrack, "track-1")

	builder := NewBuilder(repo, zap.NewNop())
	m, err := builder.Build(context.Background(), "ws-1")
	require.NoError(t, err)

	taskRef, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, err)
	containers := m.CheckEntity(taskRef)
	require.Len(t, containers, 1)
	assert.True(t, containers[0].Equals(containerID))
	assert.True(t, m.IsMirrored(taskRef))
	assert.False(t, m.HasDuplicates())
}

func TestBuildIgnoresOtherWorkspaces(t *testing.T) {
	repo := memory.NewReferenceRepository()
	seedReference(t, repo, "ws-other", valueobjects.EntityTypeTask, "task-1")

	builder := NewBuilder(repo, zap.NewNop())
	m, err := builder.Build(context.Background(), "ws-1")
	require.NoError(t, err)

	taskRef, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, err)
	assert.False(t, m.IsMirrored(taskRef))
	assert.Empty(t, m.CheckEntity(taskRef))
}

func TestDuplicateDetection(t *testing.T) {
	repo := memory.NewReferenceRepository()
	seedReference(t, repo, "ws-1", valueobjects.EntityTypeTask, "task-1")
	seedReference(t, repo, "ws-1", valueobjects.EntityTypeTask, "task-1")
	seedReference(t, repo, "ws-1", valueobjects.EntityTypeTask, "task-2")

	builder := NewBuilder(repo, zap.NewNop())
	m, err := builder.Build(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.True(t, m.HasDuplicates())
	dups := m.Duplicates()
	require.Len(t, dups, 1)
	assert.Equal(t, "task:task-1", dups[0].Entity.Key())
	assert.Len(t, dups[0].Containers, 2)
	assert.True(t, dups[0].IsDuplicated())
}

func TestCheckEntityCopiesResult(t *testing.T) {
	repo := memory.NewReferenceRepository()
	seedReference(t, repo, "ws-1", valueobjects.EntityTypeTask, "task-1")

	builder := NewBuilder(repo, zap.NewNop())
	m, err := builder.Build(context.Background(), "ws-1")
	require.NoError(t, err)

	taskRef, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, err)
	first := m.CheckEntity(taskRef)
	first[0] = valueobjects.NewContainerID()
	second := m.CheckEntity(taskRef)
	assert.False(t, second[0].Equals(first[0]))
}
