package plan

// TargetCollection identifies a persisted collection a mutation may
// write. The set is closed and every member carries an explicit
// authority classification, so a new mutation kind cannot be added
// without deciding which side of the domain boundary it writes.
type TargetCollection string

const (
	// Derivative (visualization) domain, writable
	CollectionContainers         TargetCollection = "containers"
	CollectionReferences         TargetCollection = "references"
	CollectionPorts              TargetCollection = "ports"
	CollectionEdges              TargetCollection = "edges"
	CollectionLayoutSettings     TargetCollection = "layout_settings"
	CollectionVisibilitySettings TargetCollection = "visibility_settings"
	CollectionCanvasLocks        TargetCollection = "canvas_locks"
	CollectionTelemetryEvents    TargetCollection = "telemetry_events"

	// Authoritative domain, never written except through the two
	// controlled-exception mutation kinds
	CollectionSourceProjects TargetCollection = "source_projects"
	CollectionSourceTracks   TargetCollection = "source_tracks"
	CollectionSourceTasks    TargetCollection = "source_tasks"
	CollectionSourceEvents   TargetCollection = "source_events"
)

// Classification is the authority verdict for a collection
type Classification int

const (
	// ClassAllowed collections belong to the derivative domain and any
	// mutation may target them.
	ClassAllowed Classification = iota
	// ClassDenied collections belong to the authoritative domain and no
	// mutation may ever target them.
	ClassDenied
	// ClassControlled collections are authoritative but reachable through
	// the controlled-exception mutation kinds, and only when the plan
	// carries the paired integrated-object creation.
	ClassControlled
)

// Classify returns the authority classification of a collection. The
// switch is exhaustive over the closed set; an unknown collection is
// denied.
func Classify(c TargetCollection) Classification {
	switch c {
	case CollectionContainers,
		CollectionReferences,
		CollectionPorts,
		CollectionEdges,
		CollectionLayoutSettings,
		CollectionVisibilitySettings,
		CollectionCanvasLocks,
		CollectionTelemetryEvents:
		return ClassAllowed
	case CollectionSourceTracks, CollectionSourceTasks:
		return ClassControlled
	case CollectionSourceProjects, CollectionSourceEvents:
		return ClassDenied
	default:
		return ClassDenied
	}
}
