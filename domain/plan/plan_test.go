package plan

import (
	"testing"
	"time"

	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		collection TargetCollection
		want       Classification
	}{
		{"containers are allowed", CollectionContainers, ClassAllowed},
		{"references are allowed", CollectionReferences, ClassAllowed},
		{"ports are allowed", CollectionPorts, ClassAllowed},
		{"edges are allowed", CollectionEdges, ClassAllowed},
		{"layout settings are allowed", CollectionLayoutSettings, ClassAllowed},
		{"visibility settings are allowed", CollectionVisibilitySettings, ClassAllowed},
		{"canvas locks are allowed", CollectionCanvasLocks, ClassAllowed},
		{"telemetry events are allowed", CollectionTelemetryEvents, ClassAllowed},
		{"source tracks are controlled", CollectionSourceTracks, ClassControlled},
		{"source tasks are controlled", CollectionSourceTasks, ClassControlled},
		{"source projects are denied", CollectionSourceProjects, ClassDenied},
		{"source events are denied", CollectionSourceEvents, ClassDenied},
		{"unknown collections are denied", TargetCollection("something_else"), ClassDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.collection))
		})
	}
}

func TestAllowedRepair(t *testing.T) {
	assert.Equal(t, RepairStampTimestamps, AllowedRepair(KindCreateContainer))
	assert.Equal(t, RepairStampTimestamps, AllowedRepair(KindCreateIntegratedContainer))
	assert.Equal(t, RepairStampTimestamps, AllowedRepair(KindCreateEdge))
	assert.Equal(t, RepairNormalizeNil, AllowedRepair(KindUpdateContainerMetadata))
	assert.Equal(t, RepairNone, AllowedRepair(KindMoveContainer))
	assert.Equal(t, RepairNone, AllowedRepair(KindDeleteContainer))
	assert.Equal(t, RepairNone, AllowedRepair(KindAcquireLock))
}

func TestMutationValidation(t *testing.T) {
	t.Run("move requires a container ID", func(t *testing.T) {
		m := MoveContainer{Position: mustPosition(t, 10, 20)}
		assert.Error(t, m.Validate())
	})

	t.Run("nest rejects self-nesting", func(t *testing.T) {
		id := valueobjects.NewContainerID()
		m := NestContainer{ContainerID: id, ParentID: id}
		assert.Error(t, m.Validate())
	})

	t.Run("create integrated requires a linkage", func(t *testing.T) {
		container := mustLocalContainer(t)
		m := CreateIntegratedContainer{Container: container}
		assert.Error(t, m.Validate())
	})

	t.Run("create rejects an integrated container", func(t *testing.T) {
		m := CreateContainer{Container: mustGhostContainer(t)}
		assert.Error(t, m.Validate())
	})

	t.Run("acquire lock requires holder and TTL", func(t *testing.T) {
		assert.Error(t, AcquireLock{TTL: time.Minute}.Validate())
		assert.Error(t, AcquireLock{HolderID: "user-1"}.Validate())
		assert.NoError(t, AcquireLock{HolderID: "user-1", TTL: time.Minute}.Validate())
	})

	t.Run("empty content update is rejected", func(t *testing.T) {
		m := UpdateContainerContent{ContainerID: valueobjects.NewContainerID()}
		assert.Error(t, m.Validate())
	})
}

func TestNewPlanValidatesEagerly(t *testing.T) {
	_, err := NewPlan("ws-1", OriginIntent, "user-1", []Mutation{
		MoveContainer{},
	})
	assert.Error(t, err)

	p, err := NewPlan("ws-1", OriginIntent, "user-1", []Mutation{
		MoveContainer{ContainerID: valueobjects.NewContainerID(), Position: mustPosition(t, 0, 0)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, "ws-1", p.WorkspaceID())
	assert.Equal(t, OriginIntent, p.Origin())
	assert.Len(t, p.Mutations(), 1)
}

func TestNewPlanRequiresWorkspace(t *testing.T) {
	_, err := NewPlan("", OriginIntent, "user-1", nil)
	assert.Error(t, err)
}

func TestHasIntegrationPair(t *testing.T) {
	ghost := mustGhostContainer(t)
	ref, err := entities.NewReference("ws-1", ghost.ID(), ghost.EntityRef(), true)
	require.NoError(t, err)

	t.Run("both halves present", func(t *testing.T) {
		p, err := NewPlan("ws-1", OriginIntent, "user-1", []Mutation{
			CreateIntegratedContainer{Container: ghost},
			AttachReference{Reference: ref},
			CreateSourceTask{EntityID: "task-1", Name: "Ship it", TrackID: "track-1"},
		})
		require.NoError(t, err)
		assert.True(t, p.HasIntegrationPair())
	})

	t.Run("missing reference attachment", func(t *testing.T) {
		p, err := NewPlan("ws-1", OriginIntent, "user-1", []Mutation{
			CreateIntegratedContainer{Container: ghost},
		})
		require.NoError(t, err)
		assert.False(t, p.HasIntegrationPair())
	})
}

func TestTouchesLockOnly(t *testing.T) {
	lockPlan, err := NewPlan("ws-1", OriginIntent, "user-1", []Mutation{
		AcquireLock{HolderID: "user-1", TTL: time.Minute},
	})
	require.NoError(t, err)
	assert.True(t, lockPlan.TouchesLockOnly())

	mixed, err := NewPlan("ws-1", OriginIntent, "user-1", []Mutation{
		AcquireLock{HolderID: "user-1", TTL: time.Minute},
		MoveContainer{ContainerID: valueobjects.NewContainerID(), Position: mustPosition(t, 1, 1)},
	})
	require.NoError(t, err)
	assert.False(t, mixed.TouchesLockOnly())
}

func TestControlledExceptionDetection(t *testing.T) {
	assert.True(t, IsControlledException(CreateSourceTask{}))
	assert.True(t, IsControlledException(CreateSourceTrack{}))
	assert.False(t, IsControlledException(CreateContainer{}))
	assert.False(t, IsControlledException(AcquireLock{}))
}

func mustPosition(t *testing.T, x, y float64) valueobjects.Position {
	t.Helper()
	p, err := valueobjects.NewPosition(x, y)
	require.NoError(t, err)
	return p
}

func mustLocalContainer(t *testing.T) *entities.Container {
	t.Helper()
	content, err := valueobjects.NewContainerContent("A note", "")
	require.NoError(t, err)
	c, err := entities.NewContainer("ws-1", content, mustPosition(t, 0, 0), mustSize(t, 240, 120))
	require.NoError(t, err)
	return c
}

func mustGhostContainer(t *testing.T) *entities.Container {
	t.Helper()
	content, err := valueobjects.NewContainerContent("Ship it", "")
	require.NoError(t, err)
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, err)
	c, err := entities.NewGhostContainer("ws-1", ref, content, mustPosition(t, 0, 0), mustSize(t, 240, 120))
	require.NoError(t, err)
	return c
}

func mustSize(t *testing.T, w, h float64) valueobjects.Size {
	t.Helper()
	s, err := valueobjects.NewSize(w, h)
	require.NoError(t, err)
	return s
}
