package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"canvasmirror/application/guard"
	"canvasmirror/application/layout"
	"canvasmirror/application/ports"
	"canvasmirror/application/reconcile"
	"canvasmirror/domain/config"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/events"
	"canvasmirror/domain/plan"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// SourceEventPlanner turns authoritative-domain change events into
// plans for the derivative store. Materialization is idempotent: the
// same creation event planned twice yields a no-op the second time.
type SourceEventPlanner struct {
	containers   ports.ContainerRepository
	references   ports.ReferenceRepository
	portRepo     ports.PortRepository
	edges        ports.EdgeRepository
	source       ports.SourceReader
	reconciler   *reconcile.Builder
	syncGuard    *guard.SyncGuard
	materializer *layout.Materializer
	cfg          *config.DomainConfig
	logger       *zap.Logger
}

// NewSourceEventPlanner creates a source-event planner
func NewSourceEventPlanner(
	containers ports.ContainerRepository,
	references ports.ReferenceRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	source ports.SourceReader,
	reconciler *reconcile.Builder,
	syncGuard *guard.SyncGuard,
	materializer *layout.Materializer,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *SourceEventPlanner {
	return &SourceEventPlanner{
		containers:   containers,
		references:   references,
		portRepo:     portRepo,
		edges:        edges,
		source:       source,
		reconciler:   reconciler,
		syncGuard:    syncGuard,
		materializer: materializer,
		cfg:          cfg,
		logger:       logger,
	}
}

// Plan maps one authoritative event to a plan
func (p *SourceEventPlanner) Plan(ctx context.Context, workspaceID string, event SourceEvent) Result {
	if err := event.Validate(); err != nil {
		return failure(err.Error())
	}
	entity, err := event.Entity()
	if err != nil {
		return failure(err.Error())
	}

	switch ev := event.(type) {
	case *EntityCreatedEvent:
		return p.planMaterialize(ctx, workspaceID, entity, ev.Title, ev.Body, ev.ParentType, ev.ParentID)
	case *SubEntityCreatedEvent:
		return p.planMaterialize(ctx, workspaceID, entity, ev.Title, ev.Body, ev.ParentType, ev.ParentID)
	case *EntityUpdatedEvent:
		return p.planUpdate(ctx, workspaceID, entity, ev.Fields)
	case *EntityDeletedEvent:
		return p.planDelete(ctx, workspaceID, entity)
	default:
		return failure(fmt.Sprintf("unknown source event kind %q", event.Kind()))
	}
}

// planMaterialize creates the ghost mirror for a new authoritative
// entity. The workspace-wide duplicate gate runs first and blocks all
// materialization while any duplicate linkage exists.
func (p *SourceEventPlanner) planMaterialize(ctx context.Context, workspaceID string, entity valueobjects.EntityRef, title, body, parentType, parentID string) Result {
	rmap, err := p.reconciler.Build(ctx, workspaceID)
	if err != nil {
		return failure(err.Error())
	}
	if rmap.HasDuplicates() {
		dups := rmap.Duplicates()
		keys := make([]string, len(dups))
		for i, d := range dups {
			keys[i] = d.Entity.Key()
		}
		return failure(fmt.Sprintf("duplicate entity linkages %v block materialization for this workspace", keys))
	}

	if existing := rmap.CheckEntity(entity); len(existing) > 0 {
		return noOp(fmt.Sprintf("entity %s already exists as container %s", entity.Key(), existing[0]))
	}

	// Creation events can arrive after the entity is already gone
	// upstream; a mirror of a deleted entity would never reconcile.
	exists, err := p.source.EntityExists(ctx, entity)
	if err != nil {
		return failure(err.Error())
	}
	if !exists {
		return noOp(fmt.Sprintf("entity %s no longer exists upstream; materialization skipped", entity.Key()))
	}

	var warnings []string
	pos, size, err := p.materializer.PlaceNew(ctx, workspaceID, entity.EntityType())
	if err != nil {
		return failure(err.Error())
	}

	if title == "" && body == "" {
		// Mirrors always satisfy the content invariant
		title = entity.Key()
		warnings = append(warnings, fmt.Sprintf("entity %s arrived without title or body; key used as title", entity.Key()))
	}
	content, err := valueobjects.NewContainerContentWithConfig(title, body, p.cfg)
	if err != nil {
		return failure(err.Error())
	}

	container, err := entities.NewGhostContainer(workspaceID, entity, content, pos, size)
	if err != nil {
		return failure(err.Error())
	}
	reference, err := entities.NewReference(workspaceID, container.ID(), entity, true)
	if err != nil {
		return failure(err.Error())
	}

	childIn, err := entities.NewPort(container.ID(), "in", entities.PortKindInput)
	if err != nil {
		return failure(err.Error())
	}
	childOut, err := entities.NewPort(container.ID(), "out", entities.PortKindOutput)
	if err != nil {
		return failure(err.Error())
	}

	mutations := []plan.Mutation{
		plan.CreateIntegratedContainer{Container: container, Repair: plan.RepairStampTimestamps},
		plan.AttachReference{Reference: reference, Repair: plan.RepairStampTimestamps},
		plan.CreatePort{Port: childIn},
		plan.CreatePort{Port: childOut},
	}

	// Nest under the parent's mirror when one exists; otherwise the
	// child lands at root and the event still succeeds.
	if parentType != "" && parentID != "" {
		parentEntity, err := valueobjects.NewEntityRef(valueobjects.EntityType(parentType), parentID)
		if err != nil {
			return failure(err.Error())
		}
		if mirrors := rmap.CheckEntity(parentEntity); len(mirrors) > 0 {
			parentContainerID := mirrors[0]
			mutations = append(mutations, plan.NestContainer{ContainerID: container.ID(), ParentID: parentContainerID})
			if edge := p.containmentEdge(ctx, workspaceID, parentContainerID, childIn); edge != nil {
				mutations = append(mutations, plan.CreateEdge{Edge: edge, Repair: plan.RepairStampTimestamps})
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("parent %s:%s is not mirrored; %s placed at root", parentType, parentID, entity.Key()))
		}
	}

	built, err := plan.NewPlan(workspaceID, plan.OriginSourceEvent, "", mutations)
	if err != nil {
		return failure(err.Error())
	}
	built.AddEvent(events.NewEntityMaterialized(container.ID(), workspaceID, entity, time.Now()))
	return planned(built, warnings...)
}

// containmentEdge links the parent mirror's output port to the new
// child's input port. The child port is not persisted yet, so only the
// parent side is looked up.
func (p *SourceEventPlanner) containmentEdge(ctx context.Context, workspaceID string, parentContainerID valueobjects.ContainerID, childIn *entities.Port) *entities.Edge {
	parentPorts, err := p.portRepo.GetByContainerID(ctx, workspaceID, parentContainerID)
	if err != nil {
		p.logger.Debug("skipping containment edge, parent ports unavailable",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		return nil
	}
	for _, port := range parentPorts {
		if port.Kind() == entities.PortKindOutput {
			edge, err := entities.NewEdge(workspaceID, port.ID(), childIn.ID(), entities.RelationshipContains, entities.DirectionForward, true)
			if err != nil {
				return nil
			}
			return edge
		}
	}
	return nil
}

// mappedUpdateFields are the authoritative fields the planner knows how
// to project onto a container. Anything else is warned, never guessed.
var mappedUpdateFields = map[string]bool{
	"title": true,
	"name":  true,
	"body":  true,
}

func (p *SourceEventPlanner) planUpdate(ctx context.Context, workspaceID string, entity valueobjects.EntityRef, fields map[string]interface{}) Result {
	verdict, err := p.syncGuard.GuardInbound(ctx, workspaceID, entity, "update")
	if err != nil {
		return failure(err.Error())
	}
	if !verdict.Allowed {
		return noOp(verdict.Reason)
	}

	refs, err := p.references.GetByEntity(ctx, workspaceID, entity)
	if err != nil {
		return failure(err.Error())
	}
	container, err := p.containers.GetByID(ctx, workspaceID, refs[0].ContainerID())
	if err != nil {
		return failure(err.Error())
	}

	var warnings []string
	title := container.Content().Title()
	body := container.Content().Body()
	touched := false

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !mappedUpdateFields[name] {
			warnings = append(warnings, fmt.Sprintf("field %q is not yet mapped to a container update", name))
			continue
		}
		value, ok := fields[name].(string)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("field %q carries a non-string value and was skipped", name))
			continue
		}
		switch name {
		case "title", "name":
			title = value
		case "body":
			body = value
		}
		touched = true
	}

	if !touched {
		return noOp(warnings...)
	}

	content, err := valueobjects.NewContainerContentWithConfig(title, body, p.cfg)
	if err != nil {
		return failure(err.Error())
	}

	built, err := plan.NewPlan(workspaceID, plan.OriginSourceEvent, "", []plan.Mutation{
		plan.UpdateContainerContent{ContainerID: container.ID(), Content: content, Authoritative: true},
	})
	if err != nil {
		return failure(err.Error())
	}
	return planned(built, warnings...)
}

// planDelete removes the mirror of a deleted authoritative entity and
// cascades: edges touching its ports first, then ports, then the
// reference, then the container itself.
func (p *SourceEventPlanner) planDelete(ctx context.Context, workspaceID string, entity valueobjects.EntityRef) Result {
	refs, err := p.references.GetByEntity(ctx, workspaceID, entity)
	if err != nil {
		return failure(err.Error())
	}
	if len(refs) == 0 {
		return noOp(fmt.Sprintf("entity %s is not mirrored; nothing to delete", entity.Key()))
	}

	var mutations []plan.Mutation
	for _, ref := range refs {
		containerID := ref.ContainerID()
		containerPorts, err := p.portRepo.GetByContainerID(ctx, workspaceID, containerID)
		if err != nil && !pkgerrors.IsNotFound(err) {
			return failure(err.Error())
		}

		seenEdges := make(map[string]bool)
		for _, port := range containerPorts {
			touching, err := p.edges.GetByPortID(ctx, workspaceID, port.ID())
			if err != nil {
				return failure(err.Error())
			}
			for _, edge := range touching {
				if !seenEdges[edge.ID()] {
					seenEdges[edge.ID()] = true
					mutations = append(mutations, plan.DeleteEdge{EdgeID: edge.ID()})
				}
			}
		}
		for _, port := range containerPorts {
			mutations = append(mutations, plan.DeletePort{PortID: port.ID()})
		}
		mutations = append(mutations,
			plan.DeleteReference{ReferenceID: ref.ID()},
			plan.DeleteContainer{ContainerID: containerID},
		)
	}

	built, err := plan.NewPlan(workspaceID, plan.OriginSourceEvent, "", mutations)
	if err != nil {
		return failure(err.Error())
	}
	return planned(built)
}
