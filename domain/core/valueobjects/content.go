package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"canvasmirror/domain/config"
	pkgerrors "canvasmirror/pkg/errors"
)

// ContainerContent is a value object for container title and body.
// The invariant is that at least one of the two is non-empty; it holds
// for every container, ghost mirrors included, on create and on every
// update.
type ContainerContent struct {
	title string
	body  string
}

// NewContainerContent creates content with validation using default configuration
func NewContainerContent(title, body string) (ContainerContent, error) {
	return NewContainerContentWithConfig(title, body, config.DefaultDomainConfig())
}

// NewContainerContentWithConfig creates content with validation and configuration
func NewContainerContentWithConfig(title, body string, cfg *config.DomainConfig) (ContainerContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)

	if title == "" && body == "" {
		return ContainerContent{}, pkgerrors.NewValidationError("at least one of title or body must be non-empty")
	}

	if utf8.RuneCountInString(title) > cfg.MaxTitleLength {
		return ContainerContent{}, fmt.Errorf("title exceeds maximum length of %d characters", cfg.MaxTitleLength)
	}

	if utf8.RuneCountInString(body) > cfg.MaxBodyLength {
		return ContainerContent{}, fmt.Errorf("body exceeds maximum length of %d characters", cfg.MaxBodyLength)
	}

	return ContainerContent{title: title, body: body}, nil
}

// Title returns the content title
func (c ContainerContent) Title() string {
	return c.title
}

// Body returns the content body
func (c ContainerContent) Body() string {
	return c.body
}

// IsEmpty checks if content is empty
func (c ContainerContent) IsEmpty() bool {
	return c.title == "" && c.body == ""
}

// Equals checks if two contents are equal
func (c ContainerContent) Equals(other ContainerContent) bool {
	return c.title == other.title && c.body == other.body
}
