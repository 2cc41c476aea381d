package planner

import (
	"encoding/json"
	"fmt"

	"canvasmirror/pkg/utils"
)

// IntentKind discriminates the closed intent union
type IntentKind string

const (
	IntentMoveContainer             IntentKind = "move_container"
	IntentResizeContainer           IntentKind = "resize_container"
	IntentNestContainer             IntentKind = "nest_container"
	IntentUnnestContainer           IntentKind = "unnest_container"
	IntentActivateGhost             IntentKind = "activate_ghost"
	IntentCreateManualEdge          IntentKind = "create_manual_edge"
	IntentDeleteEdge                IntentKind = "delete_edge"
	IntentResetLayout               IntentKind = "reset_layout"
	IntentAcquireLock               IntentKind = "acquire_lock"
	IntentReleaseLock               IntentKind = "release_lock"
	IntentRenewLock                 IntentKind = "renew_lock"
	IntentCreateContainer           IntentKind = "create_container"
	IntentCreateIntegratedContainer IntentKind = "create_integrated_container"
	IntentUpdateContainer           IntentKind = "update_container"
	IntentUpdateMetadata            IntentKind = "update_metadata"
	IntentSetContainerHidden        IntentKind = "set_container_hidden"
)

// Intent is a single user action from the canvas UI. The union is
// closed: each kind carries exactly the fields its mutations need, and
// an unknown kind fails at decode time.
type Intent interface {
	isIntent()
	Kind() IntentKind
	Validate() error
}

// MoveIntent repositions a container
type MoveIntent struct {
	ContainerID string  `json:"container_id" validate:"required,uuid"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

func (MoveIntent) isIntent()         {}
func (MoveIntent) Kind() IntentKind  { return IntentMoveContainer }
func (i MoveIntent) Validate() error { return utils.ValidateStruct(i) }

// ResizeIntent changes a container's dimensions
type ResizeIntent struct {
	ContainerID string  `json:"container_id" validate:"required,uuid"`
	Width       float64 `json:"width" validate:"required,gt=0"`
	Height      float64 `json:"height" validate:"required,gt=0"`
}

func (ResizeIntent) isIntent()         {}
func (ResizeIntent) Kind() IntentKind  { return IntentResizeContainer }
func (i ResizeIntent) Validate() error { return utils.ValidateStruct(i) }

// NestIntent places a container under a parent
type NestIntent struct {
	ContainerID string `json:"container_id" validate:"required,uuid"`
	ParentID    string `json:"parent_id" validate:"required,uuid"`
}

func (NestIntent) isIntent()         {}
func (NestIntent) Kind() IntentKind  { return IntentNestContainer }
func (i NestIntent) Validate() error { return utils.ValidateStruct(i) }

// UnnestIntent detaches a container from its parent
type UnnestIntent struct {
	ContainerID string `json:"container_id" validate:"required,uuid"`
}

func (UnnestIntent) isIntent()         {}
func (UnnestIntent) Kind() IntentKind  { return IntentUnnestContainer }
func (i UnnestIntent) Validate() error { return utils.ValidateStruct(i) }

// ActivateGhostIntent turns a ghost mirror into an editable container
type ActivateGhostIntent struct {
	ContainerID string `json:"container_id" validate:"required,uuid"`
}

func (ActivateGhostIntent) isIntent()         {}
func (ActivateGhostIntent) Kind() IntentKind  { return IntentActivateGhost }
func (i ActivateGhostIntent) Validate() error { return utils.ValidateStruct(i) }

// CreateManualEdgeIntent draws a user edge between two ports
type CreateManualEdgeIntent struct {
	SourcePortID     string `json:"source_port_id" validate:"required"`
	TargetPortID     string `json:"target_port_id" validate:"required"`
	RelationshipType string `json:"relationship_type" validate:"required,oneof=depends_on blocks relates_to contains followed_by"`
	Direction        string `json:"direction" validate:"required,oneof=forward reverse none"`
}

func (CreateManualEdgeIntent) isIntent()         {}
func (CreateManualEdgeIntent) Kind() IntentKind  { return IntentCreateManualEdge }
func (i CreateManualEdgeIntent) Validate() error { return utils.ValidateStruct(i) }

// DeleteEdgeIntent removes an edge
type DeleteEdgeIntent struct {
	EdgeID string `json:"edge_id" validate:"required"`
}

func (DeleteEdgeIntent) isIntent()         {}
func (DeleteEdgeIntent) Kind() IntentKind  { return IntentDeleteEdge }
func (i DeleteEdgeIntent) Validate() error { return utils.ValidateStruct(i) }

// ResetLayoutIntent re-enables auto-layout and regenerates hierarchy
// edges
type ResetLayoutIntent struct{}

func (ResetLayoutIntent) isIntent()        {}
func (ResetLayoutIntent) Kind() IntentKind { return IntentResetLayout }
func (ResetLayoutIntent) Validate() error  { return nil }

// AcquireLockIntent claims the workspace canvas lock for the acting user
type AcquireLockIntent struct{}

func (AcquireLockIntent) isIntent()        {}
func (AcquireLockIntent) Kind() IntentKind { return IntentAcquireLock }
func (AcquireLockIntent) Validate() error  { return nil }

// ReleaseLockIntent releases the acting user's canvas lock
type ReleaseLockIntent struct{}

func (ReleaseLockIntent) isIntent()        {}
func (ReleaseLockIntent) Kind() IntentKind { return IntentReleaseLock }
func (ReleaseLockIntent) Validate() error  { return nil }

// RenewLockIntent extends the acting user's canvas lock
type RenewLockIntent struct{}

func (RenewLockIntent) isIntent()        {}
func (RenewLockIntent) Kind() IntentKind { return IntentRenewLock }
func (RenewLockIntent) Validate() error  { return nil }

// CreateContainerIntent creates a local-only annotation container
type CreateContainerIntent struct {
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width" validate:"required,gt=0"`
	Height   float64 `json:"height" validate:"required,gt=0"`
	ParentID string  `json:"parent_id,omitempty" validate:"omitempty,uuid"`
}

func (CreateContainerIntent) isIntent()         {}
func (CreateContainerIntent) Kind() IntentKind  { return IntentCreateContainer }
func (i CreateContainerIntent) Validate() error { return utils.ValidateStruct(i) }

// CreateIntegratedContainerIntent promotes a canvas annotation into a
// real authoritative entity: it creates the source task or track and
// the mirrored container in one plan. This is the user-facing face of
// the controlled exception.
type CreateIntegratedContainerIntent struct {
	EntityType     string  `json:"entity_type" validate:"required,oneof=task track"`
	Name           string  `json:"name" validate:"required,max=200"`
	ParentEntityID string  `json:"parent_entity_id" validate:"required"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width" validate:"required,gt=0"`
	Height         float64 `json:"height" validate:"required,gt=0"`
}

func (CreateIntegratedContainerIntent) isIntent()         {}
func (CreateIntegratedContainerIntent) Kind() IntentKind  { return IntentCreateIntegratedContainer }
func (i CreateIntegratedContainerIntent) Validate() error { return utils.ValidateStruct(i) }

// UpdateContainerIntent rewrites a container's title and body
type UpdateContainerIntent struct {
	ContainerID string `json:"container_id" validate:"required,uuid"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

func (UpdateContainerIntent) isIntent()         {}
func (UpdateContainerIntent) Kind() IntentKind  { return IntentUpdateContainer }
func (i UpdateContainerIntent) Validate() error { return utils.ValidateStruct(i) }

// UpdateMetadataIntent merges entries into a container's metadata map
type UpdateMetadataIntent struct {
	ContainerID string                 `json:"container_id" validate:"required,uuid"`
	Entries     map[string]interface{} `json:"entries" validate:"required,min=1"`
}

func (UpdateMetadataIntent) isIntent()         {}
func (UpdateMetadataIntent) Kind() IntentKind  { return IntentUpdateMetadata }
func (i UpdateMetadataIntent) Validate() error { return utils.ValidateStruct(i) }

// SetContainerHiddenIntent stores the acting user's hide/show
// preference for a container
type SetContainerHiddenIntent struct {
	ContainerID string `json:"container_id" validate:"required,uuid"`
	Hidden      bool   `json:"hidden"`
}

func (SetContainerHiddenIntent) isIntent()         {}
func (SetContainerHiddenIntent) Kind() IntentKind  { return IntentSetContainerHidden }
func (i SetContainerHiddenIntent) Validate() error { return utils.ValidateStruct(i) }

// DecodeIntent parses a tagged-union intent body. The envelope carries
// the kind; the remaining fields are decoded into the matching concrete
// type and validated.
func DecodeIntent(data []byte) (Intent, error) {
	var envelope struct {
		Kind IntentKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed intent body: %w", err)
	}

	var intent Intent
	switch envelope.Kind {
	case IntentMoveContainer:
		intent = &MoveIntent{}
	case IntentResizeContainer:
		intent = &ResizeIntent{}
	case IntentNestContainer:
		intent = &NestIntent{}
	case IntentUnnestContainer:
		intent = &UnnestIntent{}
	case IntentActivateGhost:
		intent = &ActivateGhostIntent{}
	case IntentCreateManualEdge:
		intent = &CreateManualEdgeIntent{}
	case IntentDeleteEdge:
		intent = &DeleteEdgeIntent{}
	case IntentResetLayout:
		intent = &ResetLayoutIntent{}
	case IntentAcquireLock:
		intent = &AcquireLockIntent{}
	case IntentReleaseLock:
		intent = &ReleaseLockIntent{}
	case IntentRenewLock:
		intent = &RenewLockIntent{}
	case IntentCreateContainer:
		intent = &CreateContainerIntent{}
	case IntentCreateIntegratedContainer:
		intent = &CreateIntegratedContainerIntent{}
	case IntentUpdateContainer:
		intent = &UpdateContainerIntent{}
	case IntentUpdateMetadata:
		intent = &UpdateMetadataIntent{}
	case IntentSetContainerHidden:
		intent = &SetContainerHiddenIntent{}
	default:
		return nil, fmt.Errorf("unknown intent kind %q", envelope.Kind)
	}

	if err := json.Unmarshal(data, intent); err != nil {
		return nil, fmt.Errorf("malformed %s intent: %w", envelope.Kind, err)
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	return intent, nil
}
