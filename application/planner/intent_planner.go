package planner

import (
	"context"
	"fmt"
	"time"

	"canvasmirror/application/layout"
	"canvasmirror/application/ports"
	"canvasmirror/application/reconcile"
	"canvasmirror/domain/config"
	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/domain/plan"
	pkgerrors "canvasmirror/pkg/errors"

	"go.uber.org/zap"
)

// IntentPlanner turns user intents into plans. It reads current state
// to validate preconditions but never writes; all writes go through the
// execution engine.
type IntentPlanner struct {
	containers   ports.ContainerRepository
	portRepo     ports.PortRepository
	edges        ports.EdgeRepository
	reconciler   *reconcile.Builder
	materializer *layout.Materializer
	cfg          *config.DomainConfig
	logger       *zap.Logger
}

// NewIntentPlanner creates an intent planner
func NewIntentPlanner(
	containers ports.ContainerRepository,
	portRepo ports.PortRepository,
	edges ports.EdgeRepository,
	reconciler *reconcile.Builder,
	materializer *layout.Materializer,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *IntentPlanner {
	return &IntentPlanner{
		containers:   containers,
		portRepo:     portRepo,
		edges:        edges,
		reconciler:   reconciler,
		materializer: materializer,
		cfg:          cfg,
		logger:       logger,
	}
}

// Plan maps one intent to an ordered mutation list. The switch is
// exhaustive over the sealed union; DecodeIntent already rejected
// unknown kinds, so the default arm only fires for a programming error.
func (p *IntentPlanner) Plan(ctx context.Context, workspaceID, actorID string, intent Intent) Result {
	if err := intent.Validate(); err != nil {
		return failure(err.Error())
	}

	switch it := intent.(type) {
	case *MoveIntent:
		return p.planMove(ctx, workspaceID, actorID, it)
	case *ResizeIntent:
		return p.planResize(ctx, workspaceID, actorID, it)
	case *NestIntent:
		return p.planNest(ctx, workspaceID, actorID, it)
	case *UnnestIntent:
		return p.planUnnest(ctx, workspaceID, actorID, it)
	case *ActivateGhostIntent:
		return p.planActivate(ctx, workspaceID, actorID, it)
	case *CreateManualEdgeIntent:
		return p.planCreateEdge(ctx, workspaceID, actorID, it)
	case *DeleteEdgeIntent:
		return p.planDeleteEdge(ctx, workspaceID, actorID, it)
	case *ResetLayoutIntent:
		return p.planResetLayout(ctx, workspaceID, actorID)
	case *AcquireLockIntent:
		return p.lockPlan(workspaceID, actorID, plan.AcquireLock{HolderID: actorID, TTL: p.cfg.LockTTL})
	case *ReleaseLockIntent:
		return p.lockPlan(workspaceID, actorID, plan.ReleaseLock{HolderID: actorID})
	case *RenewLockIntent:
		return p.lockPlan(workspaceID, actorID, plan.RenewLock{HolderID: actorID, TTL: p.cfg.LockTTL})
	case *CreateContainerIntent:
		return p.planCreateContainer(ctx, workspaceID, actorID, it)
	case *CreateIntegratedContainerIntent:
		return p.planCreateIntegrated(ctx, workspaceID, actorID, it)
	case *UpdateContainerIntent:
		return p.planUpdateContainer(ctx, workspaceID, actorID, it)
	case *UpdateMetadataIntent:
		return p.planUpdateMetadata(ctx, workspaceID, actorID, it)
	case *SetContainerHiddenIntent:
		return p.planSetHidden(workspaceID, actorID, it)
	default:
		return failure(fmt.Sprintf("unknown intent kind %q", intent.Kind()))
	}
}

func (p *IntentPlanner) planMove(ctx context.Context, workspaceID, actorID string, it *MoveIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	pos, err := valueobjects.NewPosition(it.X, it.Y)
	if err != nil {
		return failure(err.Error())
	}
	if _, err := p.containers.GetByID(ctx, workspaceID, containerID); err != nil {
		return p.loadFailure(err, "container")
	}

	mutations := []plan.Mutation{plan.MoveContainer{ContainerID: containerID, Position: pos}}
	mutations, warning := p.appendLayoutBreak(ctx, workspaceID, mutations)
	return p.buildPlan(workspaceID, actorID, mutations, warning)
}

func (p *IntentPlanner) planResize(ctx context.Context, workspaceID, actorID string, it *ResizeIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	size, err := valueobjects.NewSize(it.Width, it.Height)
	if err != nil {
		return failure(err.Error())
	}
	if _, err := p.containers.GetByID(ctx, workspaceID, containerID); err != nil {
		return p.loadFailure(err, "container")
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.ResizeContainer{ContainerID: containerID, Size: size},
	}, "")
}

func (p *IntentPlanner) planNest(ctx context.Context, workspaceID, actorID string, it *NestIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	parentID, err := valueobjects.NewContainerIDFromString(it.ParentID)
	if err != nil {
		return failure(err.Error())
	}
	if containerID.Equals(parentID) {
		return failure("container cannot be nested under itself")
	}

	if _, err := p.containers.GetByID(ctx, workspaceID, containerID); err != nil {
		return p.loadFailure(err, "container")
	}
	if err := p.checkNoCycle(ctx, workspaceID, containerID, parentID); err != nil {
		return failure(err.Error())
	}

	mutations := []plan.Mutation{plan.NestContainer{ContainerID: containerID, ParentID: parentID}}
	mutations, warning := p.appendLayoutBreak(ctx, workspaceID, mutations)
	return p.buildPlan(workspaceID, actorID, mutations, warning)
}

// checkNoCycle walks the ancestor chain from the candidate parent and
// rejects the nesting when the moving container appears on it or the
// chain exceeds the depth cap
func (p *IntentPlanner) checkNoCycle(ctx context.Context, workspaceID string, containerID, parentID valueobjects.ContainerID) error {
	current := parentID
	for depth := 0; depth < p.cfg.MaxNestingDepth; depth++ {
		parent, err := p.containers.GetByID(ctx, workspaceID, current)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				return pkgerrors.NewValidationError(fmt.Sprintf("parent container %s does not exist", current))
			}
			return err
		}
		if parent.ID().Equals(containerID) {
			return pkgerrors.NewValidationError("nesting would create a cycle")
		}
		if parent.ParentID().IsZero() {
			return nil
		}
		current = parent.ParentID()
	}
	return pkgerrors.NewValidationError(fmt.Sprintf("nesting depth exceeds %d", p.cfg.MaxNestingDepth))
}

func (p *IntentPlanner) planUnnest(ctx context.Context, workspaceID, actorID string, it *UnnestIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	if _, err := p.containers.GetByID(ctx, workspaceID, containerID); err != nil {
		return p.loadFailure(err, "container")
	}

	mutations := []plan.Mutation{plan.UnnestContainer{ContainerID: containerID}}
	mutations, warning := p.appendLayoutBreak(ctx, workspaceID, mutations)
	return p.buildPlan(workspaceID, actorID, mutations, warning)
}

func (p *IntentPlanner) planActivate(ctx context.Context, workspaceID, actorID string, it *ActivateGhostIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	container, err := p.containers.GetByID(ctx, workspaceID, containerID)
	if err != nil {
		return p.loadFailure(err, "container")
	}
	if !container.IsGhost() {
		return noOp(fmt.Sprintf("container %s is already activated", containerID))
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.ActivateContainer{ContainerID: containerID},
	}, "")
}

func (p *IntentPlanner) planCreateEdge(ctx context.Context, workspaceID, actorID string, it *CreateManualEdgeIntent) Result {
	source, err := p.portRepo.GetByID(ctx, workspaceID, it.SourcePortID)
	if err != nil {
		return p.loadFailure(err, "source port")
	}
	target, err := p.portRepo.GetByID(ctx, workspaceID, it.TargetPortID)
	if err != nil {
		return p.loadFailure(err, "target port")
	}
	if !p.cfg.AllowSelfEdges && source.ContainerID().Equals(target.ContainerID()) {
		return failure("edge cannot connect a container to itself")
	}

	edge, err := entities.NewEdge(
		workspaceID,
		source.ID(),
		target.ID(),
		entities.RelationshipType(it.RelationshipType),
		entities.EdgeDirection(it.Direction),
		false,
	)
	if err != nil {
		return failure(err.Error())
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.CreateEdge{Edge: edge, Repair: plan.RepairStampTimestamps},
	}, "")
}

func (p *IntentPlanner) planDeleteEdge(ctx context.Context, workspaceID, actorID string, it *DeleteEdgeIntent) Result {
	if _, err := p.edges.GetByID(ctx, workspaceID, it.EdgeID); err != nil {
		return p.loadFailure(err, "edge")
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.DeleteEdge{EdgeID: it.EdgeID},
	}, "")
}

func (p *IntentPlanner) planResetLayout(ctx context.Context, workspaceID, actorID string) Result {
	mutations, err := p.materializer.ResetMutations(ctx, workspaceID, time.Now())
	if err != nil {
		return failure(err.Error())
	}
	return p.buildPlan(workspaceID, actorID, mutations, "")
}

func (p *IntentPlanner) planCreateContainer(ctx context.Context, workspaceID, actorID string, it *CreateContainerIntent) Result {
	content, err := valueobjects.NewContainerContentWithConfig(it.Title, it.Body, p.cfg)
	if err != nil {
		return failure(err.Error())
	}
	pos, err := valueobjects.NewPosition(it.X, it.Y)
	if err != nil {
		return failure(err.Error())
	}
	size, err := valueobjects.NewSize(it.Width, it.Height)
	if err != nil {
		return failure(err.Error())
	}
	container, err := entities.NewContainer(workspaceID, content, pos, size)
	if err != nil {
		return failure(err.Error())
	}

	mutations := []plan.Mutation{
		plan.CreateContainer{Container: container, Repair: plan.RepairStampTimestamps},
	}
	mutations = append(mutations, defaultPortMutations(container.ID())...)

	if it.ParentID != "" {
		parentID, err := valueobjects.NewContainerIDFromString(it.ParentID)
		if err != nil {
			return failure(err.Error())
		}
		if _, err := p.containers.GetByID(ctx, workspaceID, parentID); err != nil {
			return p.loadFailure(err, "parent container")
		}
		mutations = append(mutations, plan.NestContainer{ContainerID: container.ID(), ParentID: parentID})
	}
	return p.buildPlan(workspaceID, actorID, mutations, "")
}

func (p *IntentPlanner) planCreateIntegrated(ctx context.Context, workspaceID, actorID string, it *CreateIntegratedContainerIntent) Result {
	entityType := valueobjects.EntityType(it.EntityType)
	entityID := valueobjects.NewID()
	entityRef, err := valueobjects.NewEntityRef(entityType, entityID)
	if err != nil {
		return failure(err.Error())
	}

	// The workspace-wide duplicate gate applies to every materialization
	rmap, err := p.reconciler.Build(ctx, workspaceID)
	if err != nil {
		return failure(err.Error())
	}
	if rmap.HasDuplicates() {
		return failure("duplicate entity linkages exist in this workspace; materialization is blocked until they are resolved")
	}

	content, err := valueobjects.NewContainerContentWithConfig(it.Name, "", p.cfg)
	if err != nil {
		return failure(err.Error())
	}
	pos, err := valueobjects.NewPosition(it.X, it.Y)
	if err != nil {
		return failure(err.Error())
	}
	size, err := valueobjects.NewSize(it.Width, it.Height)
	if err != nil {
		return failure(err.Error())
	}

	container, err := entities.NewGhostContainer(workspaceID, entityRef, content, pos, size)
	if err != nil {
		return failure(err.Error())
	}
	// A user-promoted container is editable from the start
	if err := container.Activate(); err != nil {
		return failure(err.Error())
	}

	reference, err := entities.NewReference(workspaceID, container.ID(), entityRef, true)
	if err != nil {
		return failure(err.Error())
	}

	var sourceMutation plan.Mutation
	switch entityType {
	case valueobjects.EntityTypeTask:
		sourceMutation = plan.CreateSourceTask{EntityID: entityID, Name: it.Name, TrackID: it.ParentEntityID}
	case valueobjects.EntityTypeTrack:
		sourceMutation = plan.CreateSourceTrack{EntityID: entityID, Name: it.Name, ProjectID: it.ParentEntityID}
	default:
		return failure(fmt.Sprintf("entity type %q cannot be promoted", it.EntityType))
	}

	mutations := []plan.Mutation{
		sourceMutation,
		plan.CreateIntegratedContainer{Container: container, Repair: plan.RepairStampTimestamps},
		plan.AttachReference{Reference: reference, Repair: plan.RepairStampTimestamps},
	}
	mutations = append(mutations, defaultPortMutations(container.ID())...)
	return p.buildPlan(workspaceID, actorID, mutations, "")
}

func (p *IntentPlanner) planUpdateContainer(ctx context.Context, workspaceID, actorID string, it *UpdateContainerIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	container, err := p.containers.GetByID(ctx, workspaceID, containerID)
	if err != nil {
		return p.loadFailure(err, "container")
	}
	if container.IsGhost() {
		return failure(fmt.Sprintf("container %s is a read-only mirror; activate it before editing", containerID))
	}
	content, err := valueobjects.NewContainerContentWithConfig(it.Title, it.Body, p.cfg)
	if err != nil {
		return failure(err.Error())
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.UpdateContainerContent{ContainerID: containerID, Content: content},
	}, "")
}

func (p *IntentPlanner) planUpdateMetadata(ctx context.Context, workspaceID, actorID string, it *UpdateMetadataIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	container, err := p.containers.GetByID(ctx, workspaceID, containerID)
	if err != nil {
		return p.loadFailure(err, "container")
	}
	if container.IsGhost() {
		return failure(fmt.Sprintf("container %s is a read-only mirror; activate it before editing", containerID))
	}

	repair := plan.RepairNone
	for _, v := range it.Entries {
		if v == nil {
			repair = plan.RepairNormalizeNil
			break
		}
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.UpdateContainerMetadata{ContainerID: containerID, Entries: it.Entries, Repair: repair},
	}, "")
}

func (p *IntentPlanner) planSetHidden(workspaceID, actorID string, it *SetContainerHiddenIntent) Result {
	containerID, err := valueobjects.NewContainerIDFromString(it.ContainerID)
	if err != nil {
		return failure(err.Error())
	}
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{
		plan.SetContainerHidden{UserID: actorID, ContainerID: containerID, Hidden: it.Hidden},
	}, "")
}

func (p *IntentPlanner) lockPlan(workspaceID, actorID string, m plan.Mutation) Result {
	return p.buildPlan(workspaceID, actorID, []plan.Mutation{m}, "")
}

// appendLayoutBreak adds the one-time layout-break mutation when the
// workspace layout is still automatic
func (p *IntentPlanner) appendLayoutBreak(ctx context.Context, workspaceID string, mutations []plan.Mutation) ([]plan.Mutation, string) {
	shouldBreak, err := p.materializer.ShouldBreakLayout(ctx, workspaceID)
	if err != nil {
		p.logger.Warn("failed to read layout settings, skipping break check",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		return mutations, "layout state unavailable; auto-layout flag unchanged"
	}
	if shouldBreak {
		mutations = append(mutations, plan.MarkLayoutBroken{WorkspaceID: workspaceID})
	}
	return mutations, ""
}

func (p *IntentPlanner) buildPlan(workspaceID, actorID string, mutations []plan.Mutation, warning string) Result {
	built, err := plan.NewPlan(workspaceID, plan.OriginIntent, actorID, mutations)
	if err != nil {
		return failure(err.Error())
	}
	if warning != "" {
		built.AddWarning(warning)
	}
	return planned(built)
}

func (p *IntentPlanner) loadFailure(err error, what string) Result {
	if pkgerrors.IsNotFound(err) {
		return failure(fmt.Sprintf("%s not found", what))
	}
	return failure(err.Error())
}

// defaultPortMutations gives every new container one input and one
// output port so hierarchy and manual edges have endpoints
func defaultPortMutations(containerID valueobjects.ContainerID) []plan.Mutation {
	in, errIn := entities.NewPort(containerID, "in", entities.PortKindInput)
	out, errOut := entities.NewPort(containerID, "out", entities.PortKindOutput)
	if errIn != nil || errOut != nil {
		return nil
	}
	return []plan.Mutation{
		plan.CreatePort{Port: in},
		plan.CreatePort{Port: out},
	}
}
