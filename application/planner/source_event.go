package planner

import (
	"encoding/json"
	"fmt"

	"canvasmirror/domain/core/valueobjects"
	"canvasmirror/pkg/utils"
)

// SourceEventKind discriminates the closed authoritative-event union
type SourceEventKind string

const (
	SourceEntityCreated    SourceEventKind = "entity_created"
	SourceEntityUpdated    SourceEventKind = "entity_updated"
	SourceEntityDeleted    SourceEventKind = "entity_deleted"
	SourceSubEntityCreated SourceEventKind = "sub_entity_created"
)

// SourceEvent is a change notification from the authoritative domain.
// Events carry ids and the changed fields only; the planner decides
// what, if anything, they mean for the canvas.
type SourceEvent interface {
	isSourceEvent()
	Kind() SourceEventKind
	Entity() (valueobjects.EntityRef, error)
	Validate() error
}

// EntityCreatedEvent announces a new authoritative entity
type EntityCreatedEvent struct {
	EntityType string `json:"entity_type" validate:"required,oneof=project track task event"`
	EntityID   string `json:"entity_id" validate:"required"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ParentType string `json:"parent_type,omitempty" validate:"omitempty,oneof=project track task event"`
	ParentID   string `json:"parent_id,omitempty"`
}

func (EntityCreatedEvent) isSourceEvent()        {}
func (EntityCreatedEvent) Kind() SourceEventKind { return SourceEntityCreated }
func (e EntityCreatedEvent) Validate() error     { return utils.ValidateStruct(e) }
func (e EntityCreatedEvent) Entity() (valueobjects.EntityRef, error) {
	return valueobjects.NewEntityRef(valueobjects.EntityType(e.EntityType), e.EntityID)
}

// EntityUpdatedEvent carries only the fields that changed
type EntityUpdatedEvent struct {
	EntityType string                 `json:"entity_type" validate:"required,oneof=project track task event"`
	EntityID   string                 `json:"entity_id" validate:"required"`
	Fields     map[string]interface{} `json:"fields" validate:"required,min=1"`
}

func (EntityUpdatedEvent) isSourceEvent()        {}
func (EntityUpdatedEvent) Kind() SourceEventKind { return SourceEntityUpdated }
func (e EntityUpdatedEvent) Validate() error     { return utils.ValidateStruct(e) }
func (e EntityUpdatedEvent) Entity() (valueobjects.EntityRef, error) {
	return valueobjects.NewEntityRef(valueobjects.EntityType(e.EntityType), e.EntityID)
}

// EntityDeletedEvent announces an authoritative entity was removed
type EntityDeletedEvent struct {
	EntityType string `json:"entity_type" validate:"required,oneof=project track task event"`
	EntityID   string `json:"entity_id" validate:"required"`
}

func (EntityDeletedEvent) isSourceEvent()        {}
func (EntityDeletedEvent) Kind() SourceEventKind { return SourceEntityDeleted }
func (e EntityDeletedEvent) Validate() error     { return utils.ValidateStruct(e) }
func (e EntityDeletedEvent) Entity() (valueobjects.EntityRef, error) {
	return valueobjects.NewEntityRef(valueobjects.EntityType(e.EntityType), e.EntityID)
}

// SubEntityCreatedEvent announces a child entity created under a parent
// (a task under a track, a track under a project)
type SubEntityCreatedEvent struct {
	EntityType string `json:"entity_type" validate:"required,oneof=track task event"`
	EntityID   string `json:"entity_id" validate:"required"`
	ParentType string `json:"parent_type" validate:"required,oneof=project track task"`
	ParentID   string `json:"parent_id" validate:"required"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

func (SubEntityCreatedEvent) isSourceEvent()        {}
func (SubEntityCreatedEvent) Kind() SourceEventKind { return SourceSubEntityCreated }
func (e SubEntityCreatedEvent) Validate() error     { return utils.ValidateStruct(e) }
func (e SubEntityCreatedEvent) Entity() (valueobjects.EntityRef, error) {
	return valueobjects.NewEntityRef(valueobjects.EntityType(e.EntityType), e.EntityID)
}

// DecodeSourceEvent parses a tagged-union authoritative event body
func DecodeSourceEvent(data []byte) (SourceEvent, error) {
	var envelope struct {
		Kind SourceEventKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed source event body: %w", err)
	}

	var event SourceEvent
	switch envelope.Kind {
	case SourceEntityCreated:
		event = &EntityCreatedEvent{}
	case SourceEntityUpdated:
		event = &EntityUpdatedEvent{}
	case SourceEntityDeleted:
		event = &EntityDeletedEvent{}
	case SourceSubEntityCreated:
		event = &SubEntityCreatedEvent{}
	default:
		return nil, fmt.Errorf("unknown source event kind %q", envelope.Kind)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("malformed %s event: %w", envelope.Kind, err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}
