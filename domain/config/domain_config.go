package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Workspace constraints
	MaxContainersPerWorkspace int
	MaxEdgesPerWorkspace      int
	MaxPortsPerContainer      int
	MaxNestingDepth           int

	// Container constraints
	MaxTitleLength   int
	MaxBodyLength    int
	MaxMetadataKeys  int
	MaxMetadataValue int

	// Lock constraints
	LockTTL        time.Duration
	MaxLockRenewal time.Duration

	// Rollback constraints
	RollbackHistoryDepth int

	// Layout defaults
	LayoutColumnWidth   float64
	LayoutRowHeight     float64
	LayoutColumnSpacing float64
	DefaultGhostWidth   float64
	DefaultGhostHeight  float64

	// Validation settings
	AllowSelfEdges      bool
	AllowDuplicateEdges bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxContainersPerWorkspace: 5000,
		MaxEdgesPerWorkspace:      20000,
		MaxPortsPerContainer:      32,
		MaxNestingDepth:           16,

		MaxTitleLength:   200,
		MaxBodyLength:    20000,
		MaxMetadataKeys:  50,
		MaxMetadataValue: 4000,

		LockTTL:        5 * time.Minute,
		MaxLockRenewal: 1 * time.Hour,

		RollbackHistoryDepth: 3,

		LayoutColumnWidth:   280,
		LayoutRowHeight:     140,
		LayoutColumnSpacing: 40,
		DefaultGhostWidth:   240,
		DefaultGhostHeight:  120,

		AllowSelfEdges:      false,
		AllowDuplicateEdges: false,
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()

	cfg.MaxContainersPerWorkspace = 100000
	cfg.MaxEdgesPerWorkspace = 500000
	cfg.AllowSelfEdges = true
	cfg.AllowDuplicateEdges = true

	return cfg
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
