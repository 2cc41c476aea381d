package entities

import (
	"time"

	pkgerrors "canvasmirror/pkg/errors"
)

// CanvasLock is the single concurrency primitive of the system: at most
// one active lock per workspace. Expiry is wall-clock based; there is no
// heartbeat or liveness probing of the holder.
type CanvasLock struct {
	workspaceID string
	holderID    string
	acquiredAt  time.Time
	expiresAt   time.Time
}

// NewCanvasLock creates a lock for a workspace held by holderID
func NewCanvasLock(workspaceID, holderID string, ttl time.Duration) (*CanvasLock, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	if holderID == "" {
		return nil, pkgerrors.NewValidationError("lock holder cannot be empty")
	}
	if ttl <= 0 {
		return nil, pkgerrors.NewValidationError("lock TTL must be positive")
	}

	now := time.Now()
	return &CanvasLock{
		workspaceID: workspaceID,
		holderID:    holderID,
		acquiredAt:  now,
		expiresAt:   now.Add(ttl),
	}, nil
}

// ReconstructCanvasLock rebuilds a lock from repository data
func ReconstructCanvasLock(workspaceID, holderID string, acquiredAt, expiresAt time.Time) *CanvasLock {
	return &CanvasLock{
		workspaceID: workspaceID,
		holderID:    holderID,
		acquiredAt:  acquiredAt,
		expiresAt:   expiresAt,
	}
}

func (l *CanvasLock) WorkspaceID() string   { return l.workspaceID }
func (l *CanvasLock) HolderID() string      { return l.holderID }
func (l *CanvasLock) AcquiredAt() time.Time { return l.acquiredAt }
func (l *CanvasLock) ExpiresAt() time.Time  { return l.expiresAt }

// IsExpired checks the lock against the wall clock
func (l *CanvasLock) IsExpired() bool {
	return time.Now().After(l.expiresAt)
}

// IsHeldBy reports whether userID currently holds a live lock
func (l *CanvasLock) IsHeldBy(userID string) bool {
	return l.holderID == userID && !l.IsExpired()
}

// Renew extends the lock for the current holder. Renewal is idempotent
// for the holder and rejected for anyone else.
func (l *CanvasLock) Renew(userID string, ttl time.Duration) error {
	if l.holderID != userID {
		return pkgerrors.NewForbiddenError("lock is held by another user")
	}
	if l.IsExpired() {
		return pkgerrors.NewConflictError("lock has expired; reacquire it")
	}
	l.expiresAt = time.Now().Add(ttl)
	return nil
}
