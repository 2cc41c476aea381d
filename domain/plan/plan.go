package plan

import (
	"time"

	"canvasmirror/domain/events"
	pkgerrors "canvasmirror/pkg/errors"

	"github.com/google/uuid"
)

// Origin records what produced a plan
type Origin string

const (
	OriginIntent      Origin = "intent"
	OriginSourceEvent Origin = "source_event"
	OriginRollback    Origin = "rollback"
)

// Plan is an ordered, immutable batch of mutations produced by a
// generator and handed to the execution engine. Mutations apply in
// order; the engine stops at the first failure.
type Plan struct {
	id          string
	workspaceID string
	origin      Origin
	actorID     string
	mutations   []Mutation
	events      []events.DomainEvent
	warnings    []string
	createdAt   time.Time
}

// NewPlan builds a plan, validating each mutation eagerly so a
// malformed batch never reaches the engine
func NewPlan(workspaceID string, origin Origin, actorID string, mutations []Mutation) (*Plan, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("plan requires a workspace ID")
	}
	for _, m := range mutations {
		if err := m.Validate(); err != nil {
			return nil, pkgerrors.Wrapf(err, "invalid %s mutation", m.Kind())
		}
	}
	return &Plan{
		id:          uuid.New().String(),
		workspaceID: workspaceID,
		origin:      origin,
		actorID:     actorID,
		mutations:   mutations,
		createdAt:   time.Now(),
	}, nil
}

func (p *Plan) ID() string          { return p.id }
func (p *Plan) WorkspaceID() string { return p.workspaceID }
func (p *Plan) Origin() Origin      { return p.origin }
func (p *Plan) ActorID() string     { return p.actorID }
func (p *Plan) CreatedAt() time.Time {
	return p.createdAt
}

// Mutations returns the plan's mutations in application order
func (p *Plan) Mutations() []Mutation {
	out := make([]Mutation, len(p.mutations))
	copy(out, p.mutations)
	return out
}

// IsEmpty reports whether the plan carries no mutations
func (p *Plan) IsEmpty() bool { return len(p.mutations) == 0 }

// AddEvent queues a domain event for publication after the plan commits
func (p *Plan) AddEvent(event events.DomainEvent) {
	p.events = append(p.events, event)
}

// Events returns the queued post-commit events
func (p *Plan) Events() []events.DomainEvent {
	out := make([]events.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

// AddWarning attaches a non-fatal diagnostic surfaced to the caller
func (p *Plan) AddWarning(msg string) {
	p.warnings = append(p.warnings, msg)
}

// Warnings returns the plan's accumulated warnings
func (p *Plan) Warnings() []string {
	out := make([]string, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// HasIntegrationPair reports whether the plan carries both the
// integrated-object creation and the reference attachment. Controlled
// exceptions are valid only in such a plan.
func (p *Plan) HasIntegrationPair() bool {
	var hasCreate, hasAttach bool
	for _, m := range p.mutations {
		switch m.(type) {
		case CreateIntegratedContainer:
			hasCreate = true
		case AttachReference:
			hasAttach = true
		}
	}
	return hasCreate && hasAttach
}

// TouchesLockOnly reports whether every mutation in the plan manages
// the canvas lock
func (p *Plan) TouchesLockOnly() bool {
	if len(p.mutations) == 0 {
		return false
	}
	for _, m := range p.mutations {
		if !IsLockManagement(m) {
			return false
		}
	}
	return true
}
