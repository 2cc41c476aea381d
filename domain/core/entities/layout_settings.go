package entities

import (
	"time"

	pkgerrors "canvasmirror/pkg/errors"
)

// LayoutSettings is the entire persisted configuration surface the core
// cares about: one boolean per workspace saying whether the default
// auto-layout is broken, plus the last reset timestamp. Everything else
// (viewport, chrome) belongs to the rendering collaborator.
type LayoutSettings struct {
	workspaceID         string
	defaultLayoutBroken bool
	lastResetAt         time.Time
}

// NewLayoutSettings creates pristine settings for a workspace
func NewLayoutSettings(workspaceID string) (*LayoutSettings, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	return &LayoutSettings{workspaceID: workspaceID}, nil
}

// ReconstructLayoutSettings rebuilds settings from repository data
func ReconstructLayoutSettings(workspaceID string, broken bool, lastResetAt time.Time) *LayoutSettings {
	return &LayoutSettings{
		workspaceID:         workspaceID,
		defaultLayoutBroken: broken,
		lastResetAt:         lastResetAt,
	}
}

func (s *LayoutSettings) WorkspaceID() string    { return s.workspaceID }
func (s *LayoutSettings) IsBroken() bool         { return s.defaultLayoutBroken }
func (s *LayoutSettings) LastResetAt() time.Time { return s.lastResetAt }

// MarkBroken permanently disables auto-layout for the workspace. The
// first manual reposition or renest trips this; only an explicit reset
// clears it.
func (s *LayoutSettings) MarkBroken() {
	s.defaultLayoutBroken = true
}

// Reset re-enables auto-layout and stamps the reset time
func (s *LayoutSettings) Reset(at time.Time) {
	s.defaultLayoutBroken = false
	s.lastResetAt = at
}
