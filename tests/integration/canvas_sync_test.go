package integration

import (
	"context"
	"testing"

	"canvasmirror/application/executor"
	"canvasmirror/application/guard"
	"canvasmirror/application/layout"
	"canvasmirror/application/orchestrator"
	"canvasmirror/application/planner"
	"canvasmirror/application/reconcile"
	"canvasmirror/domain/config"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stack struct {
	orchestrator *orchestrator.Orchestrator
	containers   *memory.ContainerRepository
	references   *memory.ReferenceRepository
	ports        *memory.PortRepository
	edges        *memory.EdgeRepository
	locks        *memory.LockRepository
	source       *memory.SourceStore
	publisher    *memory.EventPublisher
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultDomainConfig()

	containers := memory.NewContainerRepository()
	references := memory.NewReferenceRepository()
	portRepo := memory.NewPortRepository()
	edges := memory.NewEdgeRepository()
	locks := memory.NewLockRepository()
	layouts := memory.NewLayoutRepository()
	visibility := memory.NewVisibilityRepository()
	source := memory.NewSourceStore()
	publisher := memory.NewEventPublisher()
	history := memory.NewExecutionHistory(cfg.RollbackHistoryDepth)

	reconciler := reconcile.NewBuilder(references, logger)
	syncGuard := guard.NewSyncGuard(containers, references, logger)
	materializer := layout.NewMaterializer(containers, portRepo, edges, layouts, cfg, logger)
	intents := planner.NewIntentPlanner(containers, portRepo, edges, reconciler, materializer, cfg, logger)
	events := planner.NewSourceEventPlanner(containers, references, portRepo, edges, source, reconciler, syncGuard, materializer, cfg, logger)
	engine := executor.NewEngine(
		containers, references, portRepo, edges, locks, layouts,
		visibility, source, publisher, history, cfg, logger,
	)

	return &stack{
		orchestrator: orchestrator.New(intents, events, engine, cfg.LockTTL, logger),
		containers:   containers,
		references:   references,
		ports:        portRepo,
		edges:        edges,
		locks:        locks,
		source:       source,
		publisher:    publisher,
	}
}

func (s *stack) seedEntity(t *testing.T, entityType, entityID string) {
	t.Helper()
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityType(entityType), entityID)
	require.NoError(t, err)
	s.source.AddEntity(ref)
}

// TestTrackMirrorLifecycle walks a track through materialization,
// duplicate delivery, cascading deletion, and an attempted rollback of
// that deletion.
func TestTrackMirrorLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	const workspaceID = "ws-1"

	s.seedEntity(t, "track", "T1")
	created := &planner.EntityCreatedEvent{EntityType: "track", EntityID: "T1", Title: "Roadmap"}

	// Materialization produces one ghost container carrying the linkage
	first := s.orchestrator.HandleSourceEvent(ctx, workspaceID, created)
	require.True(t, first.Success)
	require.NotEmpty(t, first.PlanID)

	containers, err := s.containers.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	mirror := containers[0]
	assert.True(t, mirror.IsGhost())
	assert.Equal(t, "Roadmap", mirror.Content().Title())
	assert.Equal(t, "track:T1", mirror.EntityRef().Key())

	references, err := s.references.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, references, 1)
	assert.True(t, references[0].IsPrimary())
	assert.True(t, references[0].ContainerID().Equals(mirror.ID()))

	mirrorPorts, err := s.ports.GetByContainerID(ctx, workspaceID, mirror.ID())
	require.NoError(t, err)
	assert.Len(t, mirrorPorts, 2)

	published := s.publisher.Published()
	require.NotEmpty(t, published)
	assert.Equal(t, workspaceID, published[0].GetWorkspaceID())

	// Redelivering the same creation is a warned no-op
	second := s.orchestrator.HandleSourceEvent(ctx, workspaceID, created)
	require.True(t, second.Success)
	assert.Empty(t, second.PlanID)
	require.NotEmpty(t, second.Warnings)
	assert.Contains(t, second.Warnings[0], "already exists")

	containers, err = s.containers.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	assert.Len(t, containers, 1)

	// Deletion upstream cascades through the mirror
	s.source.RemoveEntity(mustEntityRef(t, "track", "T1"))
	deleted := s.orchestrator.HandleSourceEvent(ctx, workspaceID, &planner.EntityDeletedEvent{
		EntityType: "track", EntityID: "T1",
	})
	require.True(t, deleted.Success)

	containers, err = s.containers.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	assert.Empty(t, containers)

	references, err = s.references.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	assert.Empty(t, references)

	mirrorPorts, err = s.ports.GetByContainerID(ctx, workspaceID, mirror.ID())
	require.NoError(t, err)
	assert.Empty(t, mirrorPorts)

	// Deletions have no inverse, so rollback reports what it cannot undo
	rollback := s.orchestrator.RollbackLastPlan(ctx, workspaceID, "user-1")
	require.NoError(t, rollback.Err)
	assert.False(t, rollback.Complete)
	assert.NotEmpty(t, rollback.Warnings)

	containers, err = s.containers.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	assert.Empty(t, containers, "deleted mirror must not reappear")
}

// TestNestedTaskMaterializesWithContainsEdge covers the child-entity
// path: a task created under a mirrored track nests beneath it and
// gains an auto-generated containment edge.
func TestNestedTaskMaterializesWithContainsEdge(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	const workspaceID = "ws-1"

	s.seedEntity(t, "track", "T1")
	s.seedEntity(t, "task", "task-1")

	require.True(t, s.orchestrator.HandleSourceEvent(ctx, workspaceID, &planner.EntityCreatedEvent{
		EntityType: "track", EntityID: "T1", Title: "Roadmap",
	}).Success)

	result := s.orchestrator.HandleSourceEvent(ctx, workspaceID, &planner.SubEntityCreatedEvent{
		EntityType: "task", EntityID: "task-1",
		ParentType: "track", ParentID: "T1",
		Title: "Ship it",
	})
	require.True(t, result.Success)

	containers, err := s.containers.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, containers, 2)

	var trackID, taskParent valueobjects.ContainerID
	for _, c := range containers {
		switch c.EntityRef().Key() {
		case "track:T1":
			trackID = c.ID()
		case "task:task-1":
			taskParent = c.ParentID()
		}
	}
	assert.True(t, taskParent.Equals(trackID), "task mirror must nest under its track mirror")

	edges, err := s.edges.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].AutoGenerated())
}

// TestUserLockDefersSync exercises the writer contention path through
// the full stack: sync fails loudly against a held user lock and
// succeeds once the lock is released.
func TestUserLockDefersSync(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	const workspaceID = "ws-1"

	s.seedEntity(t, "track", "T1")

	acquired := s.orchestrator.HandleIntent(ctx, workspaceID, "user-1", &planner.AcquireLockIntent{})
	require.True(t, acquired.Success)

	blocked := s.orchestrator.HandleSourceEvent(ctx, workspaceID, &planner.EntityCreatedEvent{
		EntityType: "track", EntityID: "T1", Title: "Roadmap",
	})
	assert.False(t, blocked.Success)

	released := s.orchestrator.HandleIntent(ctx, workspaceID, "user-1", &planner.ReleaseLockIntent{})
	require.True(t, released.Success)

	applied := s.orchestrator.HandleSourceEvent(ctx, workspaceID, &planner.EntityCreatedEvent{
		EntityType: "track", EntityID: "T1", Title: "Roadmap",
	})
	require.True(t, applied.Success)

	containers, err := s.containers.GetByWorkspaceID(ctx, workspaceID)
	require.NoError(t, err)
	assert.Len(t, containers, 1)
}

func mustEntityRef(t *testing.T, entityType, entityID string) valueobjects.EntityRef {
	t.Helper()
	ref, err := valueobjects.NewEntityRef(valueobjects.EntityType(entityType), entityID)
	require.NoError(t, err)
	return ref
}
