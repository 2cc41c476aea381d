package plan

import (
	"fmt"
	"time"

	"canvasmirror/domain/core/entities"
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"
)

// Kind names a mutation type
type Kind string

const (
	KindCreateContainer           Kind = "create_container"
	KindCreateIntegratedContainer Kind = "create_integrated_object"
	KindMoveContainer             Kind = "move_container"
	KindResizeContainer           Kind = "resize_container"
	KindNestContainer             Kind = "nest_container"
	KindUnnestContainer           Kind = "unnest_container"
	KindActivateContainer         Kind = "activate_container"
	KindUpdateContainerContent    Kind = "update_container_content"
	KindUpdateContainerMetadata   Kind = "update_container_metadata"
	KindDeleteContainer           Kind = "delete_container"
	KindAttachReference           Kind = "attach_reference"
	KindDeleteReference           Kind = "delete_reference"
	KindCreatePort                Kind = "create_port"
	KindDeletePort                Kind = "delete_port"
	KindCreateEdge                Kind = "create_edge"
	KindDeleteEdge                Kind = "delete_edge"
	KindMarkLayoutBroken          Kind = "mark_layout_broken"
	KindResetLayout               Kind = "reset_layout"
	KindSetContainerHidden        Kind = "set_container_hidden"
	KindAcquireLock               Kind = "acquire_lock"
	KindReleaseLock               Kind = "release_lock"
	KindRenewLock                 Kind = "renew_lock"

	// Controlled exceptions: the only two kinds permitted to write the
	// authoritative domain, and only alongside the paired
	// create_integrated_object/attach_reference mutations.
	KindCreateSourceTask  Kind = "create_source_task"
	KindCreateSourceTrack Kind = "create_source_track"
)

// Repair names a whitelisted normalization a mutation may apply while
// executing. Anything beyond these two is a forbidden_repair.
type Repair string

const (
	RepairNone            Repair = ""
	RepairStampTimestamps Repair = "stamp_timestamps"
	RepairNormalizeNil    Repair = "normalize_nil"
)

// AllowedRepair returns the single repair a mutation kind may carry
func AllowedRepair(k Kind) Repair {
	switch k {
	case KindCreateContainer, KindCreateIntegratedContainer, KindCreateEdge, KindAttachReference:
		return RepairStampTimestamps
	case KindUpdateContainerMetadata, KindSetContainerHidden:
		return RepairNormalizeNil
	default:
		return RepairNone
	}
}

// Mutation is a single typed write against one collection. The union is
// sealed: only types in this package implement it, and the execution
// engine switches exhaustively over the concrete types.
type Mutation interface {
	isMutation()
	Kind() Kind
	Target() TargetCollection
	Validate() error
	RequestedRepair() Repair
}

// --- Container mutations ---

// CreateContainer creates a local-only container
type CreateContainer struct {
	Repair    Repair
	Container *entities.Container
}

func (m CreateContainer) RequestedRepair() Repair { return m.Repair }
func (CreateContainer) isMutation()               {}
func (CreateContainer) Kind() Kind                { return KindCreateContainer }
func (CreateContainer) Target() TargetCollection  { return CollectionContainers }
func (m CreateContainer) Validate() error {
	if m.Container == nil {
		return pkgerrors.NewValidationError("create_container requires a container")
	}
	if m.Container.IsIntegrated() {
		return pkgerrors.NewValidationError("create_container cannot carry an authoritative linkage; use create_integrated_object")
	}
	return nil
}

// CreateIntegratedContainer creates a ghost mirror of an authoritative
// entity. It must travel with the AttachReference that records the
// linkage.
type CreateIntegratedContainer struct {
	Repair    Repair
	Container *entities.Container
}

func (m CreateIntegratedContainer) RequestedRepair() Repair { return m.Repair }
func (CreateIntegratedContainer) isMutation()               {}
func (CreateIntegratedContainer) Kind() Kind                { return KindCreateIntegratedContainer }
func (CreateIntegratedContainer) Target() TargetCollection  { return CollectionContainers }
func (m CreateIntegratedContainer) Validate() error {
	if m.Container == nil {
		return pkgerrors.NewValidationError("create_integrated_object requires a container")
	}
	if !m.Container.IsIntegrated() {
		return pkgerrors.NewValidationError("create_integrated_object requires an authoritative linkage")
	}
	return nil
}

// MoveContainer repositions a container
type MoveContainer struct {
	ContainerID valueobjects.ContainerID
	Position    valueobjects.Position
}

func (MoveContainer) RequestedRepair() Repair  { return RepairNone }
func (MoveContainer) isMutation()              {}
func (MoveContainer) Kind() Kind               { return KindMoveContainer }
func (MoveContainer) Target() TargetCollection { return CollectionContainers }
func (m MoveContainer) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("move_container requires a container ID")
	}
	return nil
}

// ResizeContainer changes a container's dimensions
type ResizeContainer struct {
	ContainerID valueobjects.ContainerID
	Size        valueobjects.Size
}

func (ResizeContainer) RequestedRepair() Repair  { return RepairNone }
func (ResizeContainer) isMutation()              {}
func (ResizeContainer) Kind() Kind               { return KindResizeContainer }
func (ResizeContainer) Target() TargetCollection { return CollectionContainers }
func (m ResizeContainer) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("resize_container requires a container ID")
	}
	return nil
}

// NestContainer places a container under a parent
type NestContainer struct {
	ContainerID valueobjects.ContainerID
	ParentID    valueobjects.ContainerID
}

func (NestContainer) RequestedRepair() Repair  { return RepairNone }
func (NestContainer) isMutation()              {}
func (NestContainer) Kind() Kind               { return KindNestContainer }
func (NestContainer) Target() TargetCollection { return CollectionContainers }
func (m NestContainer) Validate() error {
	if m.ContainerID.IsZero() || m.ParentID.IsZero() {
		return pkgerrors.NewValidationError("nest_container requires container and parent IDs")
	}
	if m.ContainerID.Equals(m.ParentID) {
		return pkgerrors.NewValidationError("container cannot be nested under itself")
	}
	return nil
}

// UnnestContainer detaches a container from its parent
type UnnestContainer struct {
	ContainerID valueobjects.ContainerID
}

func (UnnestContainer) RequestedRepair() Repair  { return RepairNone }
func (UnnestContainer) isMutation()              {}
func (UnnestContainer) Kind() Kind               { return KindUnnestContainer }
func (UnnestContainer) Target() TargetCollection { return CollectionContainers }
func (m UnnestContainer) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("unnest_container requires a container ID")
	}
	return nil
}

// ActivateContainer turns a ghost mirror into a user-editable container
type ActivateContainer struct {
	ContainerID valueobjects.ContainerID
}

func (ActivateContainer) RequestedRepair() Repair  { return RepairNone }
func (ActivateContainer) isMutation()              {}
func (ActivateContainer) Kind() Kind               { return KindActivateContainer }
func (ActivateContainer) Target() TargetCollection { return CollectionContainers }
func (m ActivateContainer) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("activate_container requires a container ID")
	}
	return nil
}

// UpdateContainerContent rewrites a container's title/body. Authoritative
// is true when the change comes from an inbound source-system event and
// may therefore touch ghosts.
type UpdateContainerContent struct {
	ContainerID   valueobjects.ContainerID
	Content       valueobjects.ContainerContent
	Authoritative bool
}

func (UpdateContainerContent) RequestedRepair() Repair  { return RepairNone }
func (UpdateContainerContent) isMutation()              {}
func (UpdateContainerContent) Kind() Kind               { return KindUpdateContainerContent }
func (UpdateContainerContent) Target() TargetCollection { return CollectionContainers }
func (m UpdateContainerContent) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("update_container_content requires a container ID")
	}
	if m.Content.IsEmpty() {
		return pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}
	return nil
}

// UpdateContainerMetadata merges entries into a container's metadata map
type UpdateContainerMetadata struct {
	Repair      Repair
	ContainerID valueobjects.ContainerID
	Entries     map[string]interface{}
}

func (m UpdateContainerMetadata) RequestedRepair() Repair { return m.Repair }
func (UpdateContainerMetadata) isMutation()               {}
func (UpdateContainerMetadata) Kind() Kind                { return KindUpdateContainerMetadata }
func (UpdateContainerMetadata) Target() TargetCollection  { return CollectionContainers }
func (m UpdateContainerMetadata) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("update_container_metadata requires a container ID")
	}
	if len(m.Entries) == 0 && m.Repair != RepairNormalizeNil {
		return pkgerrors.NewValidationError("update_container_metadata requires at least one entry")
	}
	return nil
}

// DeleteContainer removes a container. Cascades (ports, edges,
// references) are separate mutations so ordering stays explicit.
type DeleteContainer struct {
	ContainerID valueobjects.ContainerID
}

func (DeleteContainer) RequestedRepair() Repair  { return RepairNone }
func (DeleteContainer) isMutation()              {}
func (DeleteContainer) Kind() Kind               { return KindDeleteContainer }
func (DeleteContainer) Target() TargetCollection { return CollectionContainers }
func (m DeleteContainer) Validate() error {
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("delete_container requires a container ID")
	}
	return nil
}

// --- Reference mutations ---

// AttachReference records the linkage between a container and an
// authoritative entity
type AttachReference struct {
	Repair    Repair
	Reference *entities.Reference
}

func (m AttachReference) RequestedRepair() Repair { return m.Repair }
func (AttachReference) isMutation()               {}
func (AttachReference) Kind() Kind                { return KindAttachReference }
func (AttachReference) Target() TargetCollection  { return CollectionReferences }
func (m AttachReference) Validate() error {
	if m.Reference == nil {
		return pkgerrors.NewValidationError("attach_reference requires a reference")
	}
	return nil
}

// DeleteReference removes a linkage record
type DeleteReference struct {
	ReferenceID string
}

func (DeleteReference) RequestedRepair() Repair  { return RepairNone }
func (DeleteReference) isMutation()              {}
func (DeleteReference) Kind() Kind               { return KindDeleteReference }
func (DeleteReference) Target() TargetCollection { return CollectionReferences }
func (m DeleteReference) Validate() error {
	if m.ReferenceID == "" {
		return pkgerrors.NewValidationError("delete_reference requires a reference ID")
	}
	return nil
}

// --- Port mutations ---

// CreatePort adds a connection point to a container
type CreatePort struct {
	Port *entities.Port
}

func (CreatePort) RequestedRepair() Repair  { return RepairNone }
func (CreatePort) isMutation()              {}
func (CreatePort) Kind() Kind               { return KindCreatePort }
func (CreatePort) Target() TargetCollection { return CollectionPorts }
func (m CreatePort) Validate() error {
	if m.Port == nil {
		return pkgerrors.NewValidationError("create_port requires a port")
	}
	return nil
}

// DeletePort removes a connection point (cascade from container deletion)
type DeletePort struct {
	PortID string
}

func (DeletePort) RequestedRepair() Repair  { return RepairNone }
func (DeletePort) isMutation()              {}
func (DeletePort) Kind() Kind               { return KindDeletePort }
func (DeletePort) Target() TargetCollection { return CollectionPorts }
func (m DeletePort) Validate() error {
	if m.PortID == "" {
		return pkgerrors.NewValidationError("delete_port requires a port ID")
	}
	return nil
}

// --- Edge mutations ---

// CreateEdge connects two ports
type CreateEdge struct {
	Repair Repair
	Edge   *entities.Edge
}

func (m CreateEdge) RequestedRepair() Repair { return m.Repair }
func (CreateEdge) isMutation()               {}
func (CreateEdge) Kind() Kind                { return KindCreateEdge }
func (CreateEdge) Target() TargetCollection  { return CollectionEdges }
func (m CreateEdge) Validate() error {
	if m.Edge == nil {
		return pkgerrors.NewValidationError("create_edge requires an edge")
	}
	return nil
}

// DeleteEdge removes a relationship edge
type DeleteEdge struct {
	EdgeID string
}

func (DeleteEdge) RequestedRepair() Repair  { return RepairNone }
func (DeleteEdge) isMutation()              {}
func (DeleteEdge) Kind() Kind               { return KindDeleteEdge }
func (DeleteEdge) Target() TargetCollection { return CollectionEdges }
func (m DeleteEdge) Validate() error {
	if m.EdgeID == "" {
		return pkgerrors.NewValidationError("delete_edge requires an edge ID")
	}
	return nil
}

// --- Layout mutations ---

// MarkLayoutBroken permanently disables auto-layout for a workspace
type MarkLayoutBroken struct {
	WorkspaceID string
}

func (MarkLayoutBroken) RequestedRepair() Repair  { return RepairNone }
func (MarkLayoutBroken) isMutation()              {}
func (MarkLayoutBroken) Kind() Kind               { return KindMarkLayoutBroken }
func (MarkLayoutBroken) Target() TargetCollection { return CollectionLayoutSettings }
func (m MarkLayoutBroken) Validate() error {
	if m.WorkspaceID == "" {
		return pkgerrors.NewValidationError("mark_layout_broken requires a workspace ID")
	}
	return nil
}

// ResetLayout re-enables auto-layout and stamps the reset time
type ResetLayout struct {
	WorkspaceID string
	At          time.Time
}

func (ResetLayout) RequestedRepair() Repair  { return RepairNone }
func (ResetLayout) isMutation()              {}
func (ResetLayout) Kind() Kind               { return KindResetLayout }
func (ResetLayout) Target() TargetCollection { return CollectionLayoutSettings }
func (m ResetLayout) Validate() error {
	if m.WorkspaceID == "" {
		return pkgerrors.NewValidationError("reset_layout requires a workspace ID")
	}
	return nil
}

// --- Visibility mutations ---

// SetContainerHidden stores a per-user hide/show preference
type SetContainerHidden struct {
	Repair      Repair
	UserID      string
	ContainerID valueobjects.ContainerID
	Hidden      bool
}

func (m SetContainerHidden) RequestedRepair() Repair { return m.Repair }
func (SetContainerHidden) isMutation()               {}
func (SetContainerHidden) Kind() Kind                { return KindSetContainerHidden }
func (SetContainerHidden) Target() TargetCollection  { return CollectionVisibilitySettings }
func (m SetContainerHidden) Validate() error {
	if m.UserID == "" {
		return pkgerrors.NewValidationError("set_container_hidden requires a user ID")
	}
	if m.ContainerID.IsZero() {
		return pkgerrors.NewValidationError("set_container_hidden requires a container ID")
	}
	return nil
}

// --- Lock mutations ---

// AcquireLock claims the workspace canvas lock. Acquisition is exempt
// from the engine's lock gate; it is how the lock comes to exist.
type AcquireLock struct {
	HolderID string
	TTL      time.Duration
}

func (AcquireLock) RequestedRepair() Repair  { return RepairNone }
func (AcquireLock) isMutation()              {}
func (AcquireLock) Kind() Kind               { return KindAcquireLock }
func (AcquireLock) Target() TargetCollection { return CollectionCanvasLocks }
func (m AcquireLock) Validate() error {
	if m.HolderID == "" {
		return pkgerrors.NewValidationError("acquire_lock requires a holder")
	}
	if m.TTL <= 0 {
		return pkgerrors.NewValidationError("acquire_lock requires a positive TTL")
	}
	return nil
}

// ReleaseLock releases the canvas lock held by HolderID
type ReleaseLock struct {
	HolderID string
}

func (ReleaseLock) RequestedRepair() Repair  { return RepairNone }
func (ReleaseLock) isMutation()              {}
func (ReleaseLock) Kind() Kind               { return KindReleaseLock }
func (ReleaseLock) Target() TargetCollection { return CollectionCanvasLocks }
func (m ReleaseLock) Validate() error {
	if m.HolderID == "" {
		return pkgerrors.NewValidationError("release_lock requires a holder")
	}
	return nil
}

// RenewLock extends the current holder's lock
type RenewLock struct {
	HolderID string
	TTL      time.Duration
}

func (RenewLock) RequestedRepair() Repair  { return RepairNone }
func (RenewLock) isMutation()              {}
func (RenewLock) Kind() Kind               { return KindRenewLock }
func (RenewLock) Target() TargetCollection { return CollectionCanvasLocks }
func (m RenewLock) Validate() error {
	if m.HolderID == "" {
		return pkgerrors.NewValidationError("renew_lock requires a holder")
	}
	if m.TTL <= 0 {
		return pkgerrors.NewValidationError("renew_lock requires a positive TTL")
	}
	return nil
}

// --- Controlled exceptions ---

// CreateSourceTask creates a task in the authoritative domain as part of
// promoting a local annotation into a real work item. Valid only when
// the plan carries the paired create_integrated_object/attach_reference.
type CreateSourceTask struct {
	EntityID string
	Name     string
	TrackID  string
}

func (CreateSourceTask) RequestedRepair() Repair  { return RepairNone }
func (CreateSourceTask) isMutation()              {}
func (CreateSourceTask) Kind() Kind               { return KindCreateSourceTask }
func (CreateSourceTask) Target() TargetCollection { return CollectionSourceTasks }
func (m CreateSourceTask) Validate() error {
	if m.EntityID == "" || m.Name == "" {
		return pkgerrors.NewValidationError("create_source_task requires an entity ID and a name")
	}
	return nil
}

// CreateSourceTrack creates a track in the authoritative domain as part
// of promoting a local annotation. Same pairing rule as CreateSourceTask.
type CreateSourceTrack struct {
	EntityID  string
	Name      string
	ProjectID string
}

func (CreateSourceTrack) RequestedRepair() Repair  { return RepairNone }
func (CreateSourceTrack) isMutation()              {}
func (CreateSourceTrack) Kind() Kind               { return KindCreateSourceTrack }
func (CreateSourceTrack) Target() TargetCollection { return CollectionSourceTracks }
func (m CreateSourceTrack) Validate() error {
	if m.EntityID == "" || m.Name == "" {
		return pkgerrors.NewValidationError("create_source_track requires an entity ID and a name")
	}
	return nil
}

// IsControlledException reports whether the mutation is one of the two
// kinds permitted to write the authoritative domain
func IsControlledException(m Mutation) bool {
	switch m.(type) {
	case CreateSourceTask, CreateSourceTrack:
		return true
	default:
		return false
	}
}

// IsLockManagement reports whether the mutation manages the canvas lock
// itself and is therefore exempt from the engine's lock gate
func IsLockManagement(m Mutation) bool {
	switch m.(type) {
	case AcquireLock, ReleaseLock, RenewLock:
		return true
	default:
		return false
	}
}

// DescribeKind formats a kind for diagnostics
func DescribeKind(m Mutation) string {
	return fmt.Sprintf("%s on %s", m.Kind(), m.Target())
}
