package memory

import (
	"context"
	"sync"

	"canvasmirror/application/ports"
)

// ExecutionHistory is a bounded per-workspace ring of committed plan
// records. Pushing past the configured depth evicts the oldest record,
// so rollback can only ever walk back the most recent few plans.
type ExecutionHistory struct {
	mu      sync.Mutex
	depth   int
	records map[string][]ports.ExecutionRecord
}

// NewExecutionHistory creates a history ring with the given depth.
// Depth must be positive; a zero or negative value falls back to 1.
func NewExecutionHistory(depth int) *ExecutionHistory {
	if depth < 1 {
		depth = 1
	}
	return &ExecutionHistory{
		depth:   depth,
		records: make(map[string][]ports.ExecutionRecord),
	}
}

func (h *ExecutionHistory) Push(ctx context.Context, record ports.ExecutionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring := append(h.records[record.WorkspaceID], record)
	if len(ring) > h.depth {
		ring = ring[len(ring)-h.depth:]
	}
	h.records[record.WorkspaceID] = ring
	return nil
}

func (h *ExecutionHistory) Pop(ctx context.Context, workspaceID string) (*ports.ExecutionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring := h.records[workspaceID]
	if len(ring) == 0 {
		return nil, nil
	}
	record := ring[len(ring)-1]
	h.records[workspaceID] = ring[:len(ring)-1]
	return &record, nil
}

func (h *ExecutionHistory) Peek(ctx context.Context, workspaceID string) (*ports.ExecutionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring := h.records[workspaceID]
	if len(ring) == 0 {
		return nil, nil
	}
	record := ring[len(ring)-1]
	return &record, nil
}

func (h *ExecutionHistory) Depth(ctx context.Context, workspaceID string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records[workspaceID]), nil
}

var _ ports.ExecutionHistory = (*ExecutionHistory)(nil)
