package orchestrator

import (
	"context"
	"testing"
	"time"

	"canvasmirror/application/executor"
	"canvasmirror/application/guard"
	"canvasmirror/application/layout"
	"canvasmirror/application/planner"
	"canvasmirror/application/reconcile"
	"canvasmirror/domain/config"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/plan"
	"canvasmirror/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	containers   *memory.ContainerRepository
	references   *memory.ReferenceRepository
	locks        *memory.LockRepository
	source       *memory.SourceStore
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultDomainConfig()

	containers := memory.NewContainerRepository()
	references := memory.NewReferenceRepository()
	portRepo := memory.NewPortRepository()
	edges := memory.NewEdgeRepository()
	locks := memory.NewLockRepository()
	layouts := memory.NewLayoutRepository()
	source := memory.NewSourceStore()

	reconciler := reconcile.NewBuilder(references, logger)
	syncGuard := guard.NewSyncGuard(containers, references, logger)
	materializer := layout.NewMaterializer(containers, portRepo, edges, layouts, cfg, logger)
	intents := planner.NewIntentPlanner(containers, portRepo, edges, reconciler, materializer, cfg, logger)
	events := planner.NewSourceEventPlanner(containers, references, portRepo, edges, source, reconciler, syncGuard, materializer, cfg, logger)
	engine := executor.NewEngine(
		containers, references, portRepo, edges, locks, layouts,
		memory.NewVisibilityRepository(), source, memory.NewEventPublisher(),
		memory.NewExecutionHistory(cfg.RollbackHistoryDepth), cfg, logger,
	)

	return &orchestratorFixture{
		orchestrator: New(intents, events, engine, cfg.LockTTL, logger),
		containers:   containers,
		references:   references,
		locks:        locks,
		source:       source,
	}
}

func (f *orchestratorFixture) seedEntity(t *testing.T, entityType, entityID string) {
	t.Helper()
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityType(entityType), entityID)
	require.NoError(t, err)
	f.source.AddEntity(ref)
}

func TestHandleIntentEndToEnd(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	acquired := f.orchestrator.HandleIntent(ctx, "ws-1", "user-1", &planner.AcquireLockIntent{})
	require.True(t, acquired.Success)

	created := f.orchestrator.HandleIntent(ctx, "ws-1", "user-1", &planner.CreateContainerIntent{
		Title: "Note", X: 10, Y: 20, Width: 240, Height: 120,
	})
	require.True(t, created.Success)
	assert.NotEmpty(t, created.PlanID)

	all, err := f.containers.GetByWorkspaceID(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHandleIntentPlanningFailurePassesThrough(t *testing.T) {
	f := newOrchestratorFixture(t)

	result := f.orchestrator.HandleIntent(context.Background(), "ws-1", "user-1", &planner.DeleteEdgeIntent{EdgeID: "edge-404"})
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
}

func TestHandleSourceEventMaterializes(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	f.seedEntity(t, "track", "T1")

	result := f.orchestrator.HandleSourceEvent(ctx, "ws-1", &planner.EntityCreatedEvent{
		EntityType: "track", EntityID: "T1", Title: "Roadmap",
	})
	require.True(t, result.Success)

	refs, err := f.references.GetByWorkspaceID(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	// The sync lock was released afterwards
	lock, err := f.locks.Get(ctx, "ws-1")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestHandleSourceEventDefersToUserLock(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.seedEntity(t, "track", "T1")

	userLock, err := entities.NewCanvasLock("ws-1", "user-1", 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.locks.Acquire(ctx, userLock))

	result := f.orchestrator.HandleSourceEvent(ctx, "ws-1", &planner.EntityCreatedEvent{
		EntityType: "track", EntityID: "T1", Title: "Roadmap",
	})
	assert.False(t, result.Success)
	assert.Equal(t, plan.FailureLockViolation, result.Category)

	refs, err := f.references.GetByWorkspaceID(ctx, "ws-1")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestHandleSourceEventIdempotentNoOpSkipsLock(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.seedEntity(t, "track", "T1")

	event := &planner.EntityCreatedEvent{EntityType: "track", EntityID: "T1", Title: "Roadmap"}
	require.True(t, f.orchestrator.HandleSourceEvent(ctx, "ws-1", event).Success)

	second := f.orchestrator.HandleSourceEvent(ctx, "ws-1", event)
	require.True(t, second.Success)
	assert.Empty(t, second.PlanID)
	require.NotEmpty(t, second.Warnings)
	assert.Contains(t, second.Warnings[0], "already exists")
}
