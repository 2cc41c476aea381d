package memory

import (
	"context"
	"sync"

	"canvasmirror/application/ports"
	"canvasmirror/domain/events"
)

// EventPublisher collects published events in memory. Local development
// and the test suites use it in place of the EventBridge forwarder.
type EventPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

func (p *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *EventPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, batch...)
	return nil
}

// Published returns the events published so far
func (p *EventPublisher) Published() []events.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

var _ ports.EventPublisher = (*EventPublisher)(nil)
