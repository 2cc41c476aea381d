package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// ContainerID is a value object representing a unique container identifier
// Value objects are immutable and have no identity beyond their value
type ContainerID struct {
	value string
}

// NewContainerID creates a new random ContainerID
func NewContainerID() ContainerID {
	return ContainerID{value: uuid.New().String()}
}

// NewContainerIDFromString creates a ContainerID from an existing string
func NewContainerIDFromString(id string) (ContainerID, error) {
	if id == "" {
		return ContainerID{}, errors.New("container ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return ContainerID{}, errors.New("container ID must be a valid UUID")
	}
	return ContainerID{value: id}, nil
}

// String returns the string representation of the ContainerID
func (id ContainerID) String() string {
	return id.value
}

// Equals checks if two ContainerIDs are equal
func (id ContainerID) Equals(other ContainerID) bool {
	return id.value == other.value
}

// IsZero checks if the ContainerID is the zero value
func (id ContainerID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id ContainerID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ContainerID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ContainerID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// NewID generates a random UUID string for ports, edges and references
func NewID() string {
	return uuid.New().String()
}
