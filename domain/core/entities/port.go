package entities

import (
	"canvasmirror/domain/core/valueobjects"
	pkgerrors "canvasmirror/pkg/errors"
)

// PortKind defines the direction of a connection point
type PortKind string

const (
	PortKindInput  PortKind = "input"
	PortKindOutput PortKind = "output"
	PortKindFree   PortKind = "free"
)

// Port is a named connection point owned by exactly one container.
// Ports are purely structural: they carry no content and are only ever
// removed by cascade when their owning container is deleted.
type Port struct {
	id          string
	containerID valueobjects.ContainerID
	name        string
	kind        PortKind
}

// NewPort creates a new port for a container
func NewPort(containerID valueobjects.ContainerID, name string, kind PortKind) (*Port, error) {
	if containerID.IsZero() {
		return nil, pkgerrors.NewValidationError("port requires an owning container")
	}
	if name == "" {
		return nil, pkgerrors.NewValidationError("port name cannot be empty")
	}
	switch kind {
	case PortKindInput, PortKindOutput, PortKindFree:
	default:
		return nil, pkgerrors.NewValidationError("port kind must be input, output or free")
	}

	return &Port{
		id:          valueobjects.NewID(),
		containerID: containerID,
		name:        name,
		kind:        kind,
	}, nil
}

// ReconstructPort rebuilds a port from repository data
func ReconstructPort(id string, containerID valueobjects.ContainerID, name string, kind PortKind) *Port {
	return &Port{id: id, containerID: containerID, name: name, kind: kind}
}

func (p *Port) ID() string                            { return p.id }
func (p *Port) ContainerID() valueobjects.ContainerID { return p.containerID }
func (p *Port) Name() string                          { return p.name }
func (p *Port) Kind() PortKind                        { return p.kind }
