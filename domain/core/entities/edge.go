package entities

import (
	"fmt"
	"strings"
	"time"

	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"
)

// RelationshipType tags the meaning of an edge between two ports
type RelationshipType string

const (
	RelationshipDependsOn  RelationshipType = "depends_on"
	RelationshipBlocks     RelationshipType = "blocks"
	RelationshipRelatesTo  RelationshipType = "relates_to"
	RelationshipContains   RelationshipType = "contains"
	RelationshipFollowedBy RelationshipType = "followed_by"
)

// EdgeDirection describes which way the relationship points
type EdgeDirection string

const (
	DirectionForward EdgeDirection = "forward"
	DirectionReverse EdgeDirection = "reverse"
	DirectionNone    EdgeDirection = "none"
)

// contentKeys are metadata keys that would smuggle semantic content onto
// an edge. Edges are pure structure; anything content-shaped is rejected.
var contentKeys = []string{"title", "body", "text", "content", "description", "note", "label"}

// Edge connects exactly two ports with a typed, directed relationship.
// Auto-generated edges mirror the authoritative hierarchy and may be
// regenerated at any time; manual edges belong to the user and are never
// deleted by layout logic.
type Edge struct {
	id               string
	workspaceID      string
	sourcePortID     string
	targetPortID     string
	relationshipType RelationshipType
	direction        EdgeDirection
	autoGenerated    bool
	metadata         map[string]string
	createdAt        time.Time
}

// NewEdge creates a validated edge between two ports
func NewEdge(workspaceID, sourcePortID, targetPortID string, relType RelationshipType, direction EdgeDirection, autoGenerated bool) (*Edge, error) {
	if workspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	if sourcePortID == "" || targetPortID == "" {
		return nil, pkgerrors.NewValidationError("edge requires both a source and a target port")
	}
	if sourcePortID == targetPortID {
		return nil, pkgerrors.NewValidationError("edge cannot connect a port to itself")
	}
	if !isValidRelationshipType(relType) {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown relationship type: %s", relType))
	}
	switch direction {
	case DirectionForward, DirectionReverse, DirectionNone:
	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown edge direction: %s", direction))
	}

	return &Edge{
		id:               valueobjects.NewID(),
		workspaceID:      workspaceID,
		sourcePortID:     sourcePortID,
		targetPortID:     targetPortID,
		relationshipType: relType,
		direction:        direction,
		autoGenerated:    autoGenerated,
		metadata:         make(map[string]string),
		createdAt:        time.Now(),
	}, nil
}

// ReconstructEdge rebuilds an edge from repository data
func ReconstructEdge(id, workspaceID, sourcePortID, targetPortID string, relType RelationshipType, direction EdgeDirection, autoGenerated bool, metadata map[string]string, createdAt time.Time) *Edge {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Edge{
		id:               id,
		workspaceID:      workspaceID,
		sourcePortID:     sourcePortID,
		targetPortID:     targetPortID,
		relationshipType: relType,
		direction:        direction,
		autoGenerated:    autoGenerated,
		metadata:         metadata,
		createdAt:        createdAt,
	}
}

func (e *Edge) ID() string                         { return e.id }
func (e *Edge) WorkspaceID() string                { return e.workspaceID }
func (e *Edge) SourcePortID() string               { return e.sourcePortID }
func (e *Edge) TargetPortID() string               { return e.targetPortID }
func (e *Edge) RelationshipType() RelationshipType { return e.relationshipType }
func (e *Edge) Direction() EdgeDirection           { return e.direction }
func (e *Edge) AutoGenerated() bool                { return e.autoGenerated }
func (e *Edge) CreatedAt() time.Time               { return e.createdAt }

// Metadata returns a copy of the edge metadata
func (e *Edge) Metadata() map[string]string {
	md := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		md[k] = v
	}
	return md
}

// SetMetadata adds a structural annotation to the edge. Keys that look
// like content fields are rejected to keep edges semantically empty.
func (e *Edge) SetMetadata(key, value string) error {
	if key == "" {
		return pkgerrors.NewValidationError("metadata key cannot be empty")
	}

	lower := strings.ToLower(key)
	for _, forbidden := range contentKeys {
		if lower == forbidden || strings.Contains(lower, forbidden) {
			return pkgerrors.NewValidationError(fmt.Sprintf("edge metadata key %q looks like a content field; edges carry no semantic content", key))
		}
	}

	e.metadata[key] = value
	return nil
}

// TouchesPort reports whether the edge connects to the given port
func (e *Edge) TouchesPort(portID string) bool {
	return e.sourcePortID == portID || e.targetPortID == portID
}

func isValidRelationshipType(t RelationshipType) bool {
	switch t {
	case RelationshipDependsOn, RelationshipBlocks, RelationshipRelatesTo, RelationshipContains, RelationshipFollowedBy:
		return true
	default:
		return false
	}
}
