package planner

import (
	"context"
	"testing"

	"canvasmirror/application/guard"
	"canvasmirror/application/layout"
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

type fixture struct {
	containers *memory.ContainerRepository
	references *memory.ReferenceRepository
	ports      *memory.PortRepository
	edges      *memory.EdgeRepository
	layouts    *memory.LayoutRepository
	source     *memory.SourceStore
	intents    *IntentPlanner
	events     *SourceEventPlanner
}

func newPlannerFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultDomainConfig()

	f := &fixture{
		containers: memory.NewContainerRepository(),
		references: memory.NewReferenceRepository(),
		ports:      memory.NewPortRepository(),
		edges:      memory.NewEdgeRepository(),
		layouts:    memory.NewLayoutRepository(),
		source:     memory.NewSourceStore(),
	}
	reconciler := reconcile.NewBuilder(f.references, logger)
	syncGuard := guard.NewSyncGuard(f.containers, f.references, logger)
	materializer := layout.NewMaterializer(f.containers, f.ports, f.edges, f.layouts, cfg, logger)

	f.intents = NewIntentPlanner(f.containers, f.ports, f.edges, reconciler, materializer, cfg, logger)
	f.events = NewSourceEventPlanner(f.containers, f.references, f.ports, f.edges, f.source, reconciler, syncGuard, materializer, cfg, logger)
	return f
}

// seedEntity records an authoritative entity so materialization events
// for it pass the upstream existence check
func (f *fixture) seedEntity(t *testing.T, entityType valueobjects.EntityType, entityID string) {
	t.Helper()
	ref, err := valueobjects.NewEntityRef(entityType, entityID)
	require.NoError(t, err)
	f.source.AddEntity(ref)
}

// applyMaterialization persists the state a committed materialization
// plan would produce, so follow-up planning sees it
func (f *fixture) applyMaterialization(t *testing.T, result Result) *entities.Container {
	t.Helper()
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)
	ctx := context.Background()

	var created *entities.Container
	for _, m := range result.Plan.Mutations() {
		switch mut := m.(type) {
		case plan.CreateIntegratedContainer:
			require.NoError(t, f.containers.Save(ctx, mut.Container))
			created = mut.Container
		case plan.AttachReference:
			require.NoError(t, f.references.Save(ctx, mut.Reference))
		case plan.CreatePort:
			require.NoError(t, f.ports.Save(ctx, result.Plan.WorkspaceID(), mut.Port))
		case plan.CreateEdge:
			require.NoError(t, f.edges.Save(ctx, mut.Edge))
		case plan.NestContainer:
			require.NotNil(t, created)
			require.NoError(t, created.NestUnder(mut.ParentID))
		}
	}
	require.NotNil(t, created)
	return created
}

func TestDecodeIntentRejectsUnknownKind(t *testing.T) {
	_, err := DecodeIntent([]byte(`{"kind":"teleport_container","container_id":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown intent kind")
}

func TestDecodeIntentValidatesFields(t *testing.T) {
	_, err := DecodeIntent([]byte(`{"kind":"move_container"}`))
	assert.Error(t, err)

	intent, err := DecodeIntent([]byte(`{"kind":"move_container","container_id":"7b62f0e9-54c7-4a6e-9d6a-2f4ab22ea37a","x":10,"y":20}`))
	require.NoError(t, err)
	assert.Equal(t, IntentMoveContainer, intent.Kind())
}

func TestMaterializationIsIdempotent(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTrack, "T1")
	event := &EntityCreatedEvent{EntityType: "track", EntityID: "T1", Title: "Roadmap"}

	first := f.events.Plan(ctx, "ws-1", event)
	require.True(t, first.Success)
	require.NotNil(t, first.Plan)
	f.applyMaterialization(t, first)

	second := f.events.Plan(ctx, "ws-1", event)
	require.True(t, second.Success)
	assert.Nil(t, second.Plan)
	require.NotEmpty(t, second.Warnings)
	assert.Contains(t, second.Warnings[0], "already exists")

	refs, err := f.references.GetByWorkspaceID(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestDuplicateLinkageBlocksAllMaterialization(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	entity, err := valueobjects.NewEntityRef(valueobjects.EntityTypeTask, "task-1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		ref, err := entities.NewReference("ws-1", valueobjects.NewContainerID(), entity, true)
		require.NoError(t, err)
		require.NoError(t, f.references.Save(ctx, ref))
	}

	// A different, unrelated entity is blocked too
	result := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "track", EntityID: "T9", Title: "Other"})
	require.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "duplicate")
}

func TestMaterializationSkipsVanishedEntity(t *testing.T) {
	f := newPlannerFixture(t)

	// No seed: the entity was deleted upstream before the event landed
	result := f.events.Plan(context.Background(), "ws-1", &EntityCreatedEvent{EntityType: "task", EntityID: "task-1", Title: "Ship it"})
	require.True(t, result.Success)
	assert.Nil(t, result.Plan)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "no longer exists upstream")
}

func TestMaterializationSynthesizesTitleWhenContentEmpty(t *testing.T) {
	f := newPlannerFixture(t)
	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")

	result := f.events.Plan(context.Background(), "ws-1", &EntityCreatedEvent{EntityType: "task", EntityID: "task-1"})
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "key used as title")

	var ghost *entities.Container
	for _, m := range result.Plan.Mutations() {
		if mut, ok := m.(plan.CreateIntegratedContainer); ok {
			ghost = mut.Container
		}
	}
	require.NotNil(t, ghost)
	assert.Equal(t, "task:task-1", ghost.Content().Title())
}

func TestSubEntityNestsUnderMirroredParent(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTrack, "T1")
	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	parent := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "track", EntityID: "T1", Title: "Roadmap"})
	parentContainer := f.applyMaterialization(t, parent)

	child := f.events.Plan(ctx, "ws-1", &SubEntityCreatedEvent{
		EntityType: "task", EntityID: "task-1",
		ParentType: "track", ParentID: "T1",
		Title: "Ship it",
	})
	require.True(t, child.Success)
	require.NotNil(t, child.Plan)

	var nested *plan.NestContainer
	var edgeCount int
	for _, m := range child.Plan.Mutations() {
		switch mut := m.(type) {
		case plan.NestContainer:
			nested = &mut
		case plan.CreateEdge:
			edgeCount++
			assert.True(t, mut.Edge.AutoGenerated())
		}
	}
	require.NotNil(t, nested)
	assert.True(t, nested.ParentID.Equals(parentContainer.ID()))
	assert.Equal(t, 1, edgeCount)
}

func TestSubEntityWithUnmirroredParentLandsAtRoot(t *testing.T) {
	f := newPlannerFixture(t)
	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")

	result := f.events.Plan(context.Background(), "ws-1", &SubEntityCreatedEvent{
		EntityType: "task", EntityID: "task-1",
		ParentType: "track", ParentID: "T404",
		Title: "Orphan",
	})
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "not mirrored")
	for _, m := range result.Plan.Mutations() {
		_, isNest := m.(plan.NestContainer)
		assert.False(t, isNest)
	}
}

func TestUpdateForUnmirroredEntityIsQuietNoOp(t *testing.T) {
	f := newPlannerFixture(t)

	result := f.events.Plan(context.Background(), "ws-1", &EntityUpdatedEvent{
		EntityType: "task", EntityID: "task-404",
		Fields: map[string]interface{}{"title": "New"},
	})
	require.True(t, result.Success)
	assert.Nil(t, result.Plan)
	require.NotEmpty(t, result.Warnings)
}

func TestUpdateWarnsOnUnmappedFields(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	created := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "task", EntityID: "task-1", Title: "Ship it"})
	container := f.applyMaterialization(t, created)

	result := f.events.Plan(ctx, "ws-1", &EntityUpdatedEvent{
		EntityType: "task", EntityID: "task-1",
		Fields: map[string]interface{}{
			"title":    "Ship it soon",
			"track_id": "T2",
		},
	})
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "track_id")

	mutations := result.Plan.Mutations()
	require.Len(t, mutations, 1)
	update, ok := mutations[0].(plan.UpdateContainerContent)
	require.True(t, ok)
	assert.True(t, update.Authoritative)
	assert.True(t, update.ContainerID.Equals(container.ID()))
	assert.Equal(t, "Ship it soon", update.Content.Title())
}

func TestUpdateWithOnlyUnmappedFieldsIsNoOp(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	created := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "task", EntityID: "task-1", Title: "Ship it"})
	f.applyMaterialization(t, created)

	result := f.events.Plan(ctx, "ws-1", &EntityUpdatedEvent{
		EntityType: "task", EntityID: "task-1",
		Fields: map[string]interface{}{"track_id": "T2"},
	})
	require.True(t, result.Success)
	assert.Nil(t, result.Plan)
	require.NotEmpty(t, result.Warnings)
}

func TestDeleteCascadesEdgesPortsAndReference(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTrack, "T1")
	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	parent := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "track", EntityID: "T1", Title: "Roadmap"})
	f.applyMaterialization(t, parent)
	child := f.events.Plan(ctx, "ws-1", &SubEntityCreatedEvent{
		EntityType: "task", EntityID: "task-1",
		ParentType: "track", ParentID: "T1",
		Title: "Ship it",
	})
	f.applyMaterialization(t, child)

	result := f.events.Plan(ctx, "ws-1", &EntityDeletedEvent{EntityType: "task", EntityID: "task-1"})
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)

	var edgeDeletes, portDeletes, refDeletes, containerDeletes int
	for _, m := range result.Plan.Mutations() {
		switch m.(type) {
		case plan.DeleteEdge:
			edgeDeletes++
		case plan.DeletePort:
			portDeletes++
		case plan.DeleteReference:
			refDeletes++
		case plan.DeleteContainer:
			containerDeletes++
		}
	}
	assert.Equal(t, 1, edgeDeletes)
	assert.Equal(t, 2, portDeletes)
	assert.Equal(t, 1, refDeletes)
	assert.Equal(t, 1, containerDeletes)

	// Edges before ports before reference before container
	mutations := result.Plan.Mutations()
	_, firstIsEdge := mutations[0].(plan.DeleteEdge)
	_, lastIsContainer := mutations[len(mutations)-1].(plan.DeleteContainer)
	assert.True(t, firstIsEdge)
	assert.True(t, lastIsContainer)
}

func TestDeleteUnmirroredEntityIsNoOp(t *testing.T) {
	f := newPlannerFixture(t)

	result := f.events.Plan(context.Background(), "ws-1", &EntityDeletedEvent{EntityType: "task", EntityID: "task-404"})
	require.True(t, result.Success)
	assert.Nil(t, result.Plan)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "nothing to delete")
}

func TestMoveBreaksLayoutOnce(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	created := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "task", EntityID: "task-1", Title: "Ship it"})
	container := f.applyMaterialization(t, created)

	move := &MoveIntent{ContainerID: container.ID().String(), X: 500, Y: 300}
	first := f.intents.Plan(ctx, "ws-1", "user-1", move)
	require.True(t, first.Success)
	require.NotNil(t, first.Plan)

	var breaks int
	for _, m := range first.Plan.Mutations() {
		if _, ok := m.(plan.MarkLayoutBroken); ok {
			breaks++
		}
	}
	assert.Equal(t, 1, breaks)

	// Once the flag is persisted, later moves stop appending the break
	settings, err := f.layouts.Get(ctx, "ws-1")
	require.NoError(t, err)
	settings.MarkBroken()
	require.NoError(t, f.layouts.Save(ctx, settings))

	second := f.intents.Plan(ctx, "ws-1", "user-1", move)
	require.True(t, second.Success)
	for _, m := range second.Plan.Mutations() {
		_, isBreak := m.(plan.MarkLayoutBroken)
		assert.False(t, isBreak)
	}
}

func TestUpdateContainerRejectsGhost(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	created := f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "task", EntityID: "task-1", Title: "Ship it"})
	ghost := f.applyMaterialization(t, created)

	result := f.intents.Plan(ctx, "ws-1", "user-1", &UpdateContainerIntent{
		ContainerID: ghost.ID().String(),
		Title:       "My edit",
	})
	require.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "read-only mirror")
}

func TestUpdateContainerRejectsEmptyContent(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	content, err := valueobjects.NewContainerContent("Note", "")
	require.NoError(t, err)
	pos, err := valueobjects.NewPosition(0, 0)
	require.NoError(t, err)
	size, err := valueobjects.NewSize(240, 120)
	require.NoError(t, err)
	local, err := entities.NewContainer("ws-1", content, pos, size)
	require.NoError(t, err)
	require.NoError(t, f.containers.Save(ctx, local))

	result := f.intents.Plan(ctx, "ws-1", "user-1", &UpdateContainerIntent{
		ContainerID: local.ID().String(),
	})
	require.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
}

func TestCreateIntegratedIntentPairsControlledException(t *testing.T) {
	f := newPlannerFixture(t)

	result := f.intents.Plan(context.Background(), "ws-1", "user-1", &CreateIntegratedContainerIntent{
		EntityType:     "task",
		Name:           "Follow up",
		ParentEntityID: "T1",
		X:              10, Y: 10, Width: 240, Height: 120,
	})
	require.True(t, result.Success)
	require.NotNil(t, result.Plan)
	assert.True(t, result.Plan.HasIntegrationPair())

	var hasSourceTask bool
	for _, m := range result.Plan.Mutations() {
		if _, ok := m.(plan.CreateSourceTask); ok {
			hasSourceTask = true
		}
	}
	assert.True(t, hasSourceTask)
}

func TestNestRejectsCycle(t *testing.T) {
	f := newPlannerFixture(t)
	ctx := context.Background()

	f.seedEntity(t, valueobjects.EntityTypeTrack, "T1")
	f.seedEntity(t, valueobjects.EntityTypeTask, "task-1")
	a := f.applyMaterialization(t, f.events.Plan(ctx, "ws-1", &EntityCreatedEvent{EntityType: "track", EntityID: "T1", Title: "A"}))
	b := f.applyMaterialization(t, f.events.Plan(ctx, "ws-1", &SubEntityCreatedEvent{
		EntityType: "task", EntityID: "task-1",
		ParentType: "track", ParentID: "T1",
		Title: "B",
	}))

	// B is nested under A; nesting A under B would loop
	result := f.intents.Plan(ctx, "ws-1", "user-1", &NestIntent{
		ContainerID: a.ID().String(),
		ParentID:    b.ID().String(),
	})
	require.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "cycle")
}
