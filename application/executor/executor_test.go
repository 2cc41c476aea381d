package executor

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

type engineFixture struct {
	engine     *Engine
	containers *memory.ContainerRepository
	references *memory.ReferenceRepository
	ports      *memory.PortRepository
	edges      *memory.EdgeRepository
	locks      *memory.LockRepository
	source     *memory.SourceStore
	telemetry  *memory.EventPublisher
	history    *memory.ExecutionHistory
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	f := &engineFixture{
		containers: memory.NewContainerRepository(),
		references: memory.NewReferenceRepository(),
		ports:      memory.NewPortRepository(),
		edges:      memory.NewEdgeRepository(),
		locks:      memory.NewLockRepository(),
		source:     memory.NewSourceStore(),
		telemetry:  memory.NewEventPublisher(),
		history:    memory.NewExecutionHistory(cfg.RollbackHistoryDepth),
	}
	f.engine = NewEngine(
		f.containers,
		f.references,
		f.ports,
		f.edges,
		f.locks,
		memory.NewLayoutRepository(),
		memory.NewVisibilityRepository(),
		f.source,
		f.telemetry,
		f.history,
		cfg,
		zap.NewNop(),
	)
	return f
}

func (f *engineFixture) holdLock(t *testing.T, workspaceID, userID string) {
	t.Helper()
	lock, err := entities.NewCanvasLock(workspaceID, userID, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.locks.Acquire(context.Background(), lock))
}

func mustPlan(t *testing.T, workspaceID string, origin plan.Origin, actorID string, mutations ...plan.Mutation) *plan.Plan {
	t.Helper()
	p, err := plan.NewPlan(workspaceID, origin, actorID, mutations)
	require.NoError(t, err)
	return p
}

func newLocalContainer(t *testing.T, workspaceID, title string) *entities.Container {
	t.Helper()
	content, err := valueobjects.NewContainerContent(title, "")
	require.NoError(t, err)
	pos, err := valueobjects.NewPosition(0, 0)
	require.NoError(t, err)
	size, err := valueobjects.NewSize(240, 120)
	require.NoError(t, err)
	c, err := entities.NewContainer(workspaceID, content, pos, size)
	require.NoError(t, err)
	return c
}

func newGhostContainer(t *testing.T, workspaceID string, entityType valueobjects.EntityType, entityID string) *entities.Container {
	t.Helper()
	ref, err := valueobjects.NewEntityRef(entityType, entityID)
	require.NoError(t, err)
	content, err := valueobjects.NewContainerContent("Mirror", "")
	require.NoError(t, err)
	pos, err := valueobjects.NewPosition(0, 0)
	require.NoError(t, err)
	size, err := valueobjects.NewSize(240, 120)
	require.NoError(t, err)
	c, err := entities.NewGhostContainer(workspaceID, ref, content, pos, size)
	require.NoError(t, err)
	return c
}

func mustMove(t *testing.T, id valueobjects.ContainerID, x, y float64) plan.MoveContainer {
	t.Helper()
	pos, err := valueobjects.NewPosition(x, y)
	require.NoError(t, err)
	return plan.MoveContainer{ContainerID: id, Position: pos}
}

func TestLockGate(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*engineFixture, *entities.Container) {
		f := newEngineFixture(t)
		c := newLocalContainer(t, "ws-1", "Note")
		require.NoError(t, f.containers.Save(ctx, c))
		return f, c
	}

	t.Run("no lock held", func(t *testing.T) {
		f, c := setup(t)
		result := f.engine.Execute(ctx, mustPlan(t, "ws-1", plan.OriginIntent, "user-1", mustMove(t, c.ID(), 50, 50)), "user-1")
		assert.Equal(t, StateFailed, result.State)
		assert.Equal(t, plan.FailureLockViolation, result.Category)
	})

	t.Run("expired lock", func(t *testing.T) {
		f, c := setup(t)
		expired := entities.ReconstructCanvasLock("ws-1", "user-1", time.Now().Add(-time.Hour), time.Now().Add(-30*time.Minute))
		require.NoError(t, f.locks.Acquire(ctx, expired))

		result := f.engine.Execute(ctx, mustPlan(t, "ws-1", plan.OriginIntent, "user-1", mustMove(t, c.ID(), 50, 50)), "user-1")
		assert.Equal(t, StateFailed, result.State)
		assert.Equal(t, plan.FailureLockViolation, result.Category)
	})

	t.Run("lock held by another user", func(t *testing.T) {
		f, c := setup(t)
		f.holdLock(t, "ws-1", "user-2")

		result := f.engine.Execute(ctx, mustPlan(t, "ws-1", plan.OriginIntent, "user-1", mustMove(t, c.ID(), 50, 50)), "user-1")
		assert.Equal(t, StateFailed, result.State)
		assert.Equal(t, plan.FailureLockViolation, result.Category)

		// Nothing was written
		reloaded, err := f.containers.GetByID(ctx, "ws-1", c.ID())
		require.NoError(t, err)
		assert.Equal(t, float64(0), reloaded.Position().X())
		assert.Empty(t, f.telemetry.Published())
	})
}

func TestLockManagementPlansBypassTheGate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	acquire := mustPlan(t, "ws-1", plan.OriginIntent, "user-1", plan.AcquireLock{HolderID: "user-1", TTL: time.Minute})
	result := f.engine.Execute(ctx, acquire, "user-1")
	require.True(t, result.Committed())

	lock, err := f.locks.Get(ctx, "ws-1")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.True(t, lock.IsHeldBy("user-1"))

	// Acquiring against a held lock fails, never retries
	steal := mustPlan(t, "ws-1", plan.OriginIntent, "user-2", plan.AcquireLock{HolderID: "user-2", TTL: time.Minute})
	stolen := f.engine.Execute(ctx, steal, "user-2")
	assert.Equal(t, StateFailed, stolen.State)
	assert.Equal(t, plan.FailureLockViolation, stolen.Category)

	// Renewal is idempotent for the holder
	renew := mustPlan(t, "ws-1", plan.OriginIntent, "user-1", plan.RenewLock{HolderID: "user-1", TTL: time.Minute})
	require.True(t, f.engine.Execute(ctx, renew, "user-1").Committed())
	require.True(t, f.engine.Execute(ctx, renew, "user-1").Committed())

	release := mustPlan(t, "ws-1", plan.OriginIntent, "user-1", plan.ReleaseLock{HolderID: "user-1"})
	require.True(t, f.engine.Execute(ctx, release, "user-1").Committed())
}

func TestAuthorityBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("controlled mutation without its pair is forbidden", func(t *testing.T) {
		f := newEngineFixture(t)
		f.holdLock(t, "ws-1", "user-1")

		p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
			plan.CreateSourceTask{EntityID: "task-1", Name: "Sneaky", TrackID: "T1"},
		)
		result := f.engine.Execute(ctx, p, "user-1")
		assert.Equal(t, StateFailed, result.State)
		assert.Equal(t, plan.FailureForbiddenOperation, result.Category)

		// All-or-nothing: the authoritative store saw nothing
		ref, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-1")
		require.NoError(t, err)
		exists, err := f.source.EntityExists(ctx, ref)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("paired controlled mutation commits", func(t *testing.T) {
		f := newEngineFixture(t)
		f.holdLock(t, "ws-1", "user-1")

		ghost := newGhostContainer(t, "ws-1", valueobjects.EntityTypeTask, "task-1")
		reference, err := entities.NewReference("ws-1", ghost.ID(), ghost.EntityRef(), true)
		require.NoError(t, err)

		p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
			plan.CreateSourceTask{EntityID: "task-1", Name: "Real", TrackID: "T1"},
			plan.CreateIntegratedContainer{Container: ghost, Repair: plan.RepairStampTimestamps},
			plan.AttachReference{Reference: reference, Repair: plan.RepairStampTimestamps},
		)
		result := f.engine.Execute(ctx, p, "user-1")
		require.True(t, result.Committed())

		exists, err := f.source.EntityExists(ctx, ghost.EntityRef())
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestForbiddenRepair(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	c := newLocalContainer(t, "ws-1", "Note")
	require.NoError(t, f.containers.Save(ctx, c))

	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
		plan.UpdateContainerMetadata{
			ContainerID: c.ID(),
			Entries:     map[string]interface{}{"color": "red"},
			Repair:      plan.RepairStampTimestamps,
		},
	)
	result := f.engine.Execute(ctx, p, "user-1")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, plan.FailureForbiddenRepair, result.Category)
}

func TestPreconditionRecheck(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	// The edge this plan deletes vanished between planning and execution
	created := newLocalContainer(t, "ws-1", "A")
	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
		plan.CreateContainer{Container: created, Repair: plan.RepairStampTimestamps},
		plan.DeleteEdge{EdgeID: "edge-gone"},
	)
	result := f.engine.Execute(ctx, p, "user-1")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, plan.FailurePrecondition, result.Category)

	// The failing precondition stopped the whole plan before any write
	_, err := f.containers.GetByID(ctx, "ws-1", created.ID())
	assert.Error(t, err)
}

func TestStopOnFirstFailureCompensatesCreations(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	ghost := newGhostContainer(t, "ws-1", valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, f.containers.Save(ctx, ghost))

	created := newLocalContainer(t, "ws-1", "A")
	badContent, err := valueobjects.NewContainerContent("User edit", "")
	require.NoError(t, err)

	// The ghost rejects a non-authoritative content edit at apply time
	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
		plan.CreateContainer{Container: created, Repair: plan.RepairStampTimestamps},
		plan.UpdateContainerContent{ContainerID: ghost.ID(), Content: badContent},
	)
	result := f.engine.Execute(ctx, p, "user-1")
	require.Equal(t, StateFailed, result.State)

	// The already-applied creation was compensated away
	_, err = f.containers.GetByID(ctx, "ws-1", created.ID())
	assert.Error(t, err)
	// No events for a partially applied plan
	assert.Empty(t, f.telemetry.Published())
	// Nothing entered the rollback history
	depth, err := f.history.Depth(ctx, "ws-1")
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestPostCommitEffects(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	c := newLocalContainer(t, "ws-1", "Note")
	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
		plan.CreateContainer{Container: c, Repair: plan.RepairStampTimestamps},
	)
	result := f.engine.Execute(ctx, p, "user-1")
	require.True(t, result.Committed())
	assert.Equal(t, 1, result.Applied)

	published := f.telemetry.Published()
	require.NotEmpty(t, published)
	assert.Equal(t, "container.created", published[0].GetEventType())

	depth, err := f.history.Depth(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestRollbackReversibilityAccounting(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	b := newLocalContainer(t, "ws-1", "Original title")
	require.NoError(t, f.containers.Save(ctx, b))

	a := newLocalContainer(t, "ws-1", "A")
	newTitle, err := valueobjects.NewContainerContent("Edited title", "")
	require.NoError(t, err)

	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
		plan.CreateContainer{Container: a, Repair: plan.RepairStampTimestamps},
		plan.UpdateContainerContent{ContainerID: b.ID(), Content: newTitle},
	)
	require.True(t, f.engine.Execute(ctx, p, "user-1").Committed())

	rollback := f.engine.RollbackLastPlan(ctx, "ws-1", "user-1")
	require.NoError(t, rollback.Err)
	assert.Equal(t, 1, rollback.Reversed)
	assert.False(t, rollback.Complete)
	require.Len(t, rollback.Warnings, 1)
	assert.Contains(t, rollback.Warnings[0], "cannot reverse update_container_content")

	// A removed, B keeps its edited title
	_, err = f.containers.GetByID(ctx, "ws-1", a.ID())
	assert.Error(t, err)
	reloaded, err := f.containers.GetByID(ctx, "ws-1", b.ID())
	require.NoError(t, err)
	assert.Equal(t, "Edited title", reloaded.Content().Title())

	// Rollback consumed the record
	depth, err := f.history.Depth(ctx, "ws-1")
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestRollbackOfDeletionIsNotReversible(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	c := newLocalContainer(t, "ws-1", "Doomed")
	require.NoError(t, f.containers.Save(ctx, c))

	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1", plan.DeleteContainer{ContainerID: c.ID()})
	require.True(t, f.engine.Execute(ctx, p, "user-1").Committed())

	rollback := f.engine.RollbackLastPlan(ctx, "ws-1", "user-1")
	require.NoError(t, rollback.Err)
	assert.Zero(t, rollback.Reversed)
	assert.False(t, rollback.Complete)
	require.NotEmpty(t, rollback.Warnings)

	_, err := f.containers.GetByID(ctx, "ws-1", c.ID())
	assert.Error(t, err, "deleted container must stay deleted")
}

func TestRollbackRequiresLock(t *testing.T) {
	f := newEngineFixture(t)

	result := f.engine.RollbackLastPlan(context.Background(), "ws-1", "user-1")
	assert.Equal(t, plan.FailureLockViolation, result.Category)
	assert.Error(t, result.Err)
}

func TestRollbackEmitsNoTelemetry(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	a := newLocalContainer(t, "ws-1", "A")
	p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
		plan.CreateContainer{Container: a, Repair: plan.RepairStampTimestamps},
	)
	require.True(t, f.engine.Execute(ctx, p, "user-1").Committed())
	before := len(f.telemetry.Published())

	rollback := f.engine.RollbackLastPlan(ctx, "ws-1", "user-1")
	require.NoError(t, rollback.Err)
	assert.True(t, rollback.Complete)
	assert.Len(t, f.telemetry.Published(), before)
}

func TestHistoryKeepsLastThreePlans(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.holdLock(t, "ws-1", "user-1")

	for i := 0; i < 5; i++ {
		c := newLocalContainer(t, "ws-1", "Note")
		p := mustPlan(t, "ws-1", plan.OriginIntent, "user-1",
			plan.CreateContainer{Container: c, Repair: plan.RepairStampTimestamps},
		)
		require.True(t, f.engine.Execute(ctx, p, "user-1").Committed())
	}

	depth, err := f.history.Depth(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}
