package handlers

import (
	"io"
	"net/http"
	"time"

	"canvasmirror/application/orchestrator"
	"canvasmirror/application/planner"
	"canvasmirror/application/ports"
	"canvasmirror/domain/plan"
	"canvasmirror/pkg/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes bounds intent and event payloads. Container bodies are
// capped at the domain limit, so anything near this size is garbage.
const maxBodyBytes = 1 << 20

// CanvasHandler handles canvas mutation and read requests
type CanvasHandler struct {
	orchestrator *orchestrator.Orchestrator
	containers   ports.ContainerRepository
	edges        ports.EdgeRepository
	locks        ports.LockRepository
	logger       *zap.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(
	orch *orchestrator.Orchestrator,
	containers ports.ContainerRepository,
	edges ports.EdgeRepository,
	locks ports.LockRepository,
	logger *zap.Logger,
) *CanvasHandler {
	return &CanvasHandler{
		orchestrator: orch,
		containers:   containers,
		edges:        edges,
		locks:        locks,
		logger:       logger,
	}
}

// OutcomeResponse is the wire shape for an applied (or rejected) plan
type OutcomeResponse struct {
	PlanID   string   `json:"plan_id,omitempty"`
	Applied  int      `json:"applied"`
	Category string   `json:"category,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// SubmitIntent handles POST /workspaces/{workspaceID}/intents
func (h *CanvasHandler) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user context")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
		return
	}

	intent, err := planner.DecodeIntent(body)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_INTENT", err.Error())
		return
	}

	outcome := h.orchestrator.HandleIntent(r.Context(), workspaceID, userID, intent)
	h.respondOutcome(w, r, outcome)
}

// SubmitSourceEvent handles POST /workspaces/{workspaceID}/source-events.
// This is the webhook delivery path; EventBridge deliveries take the
// sync-listener instead.
func (h *CanvasHandler) SubmitSourceEvent(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
		return
	}

	event, err := planner.DecodeSourceEvent(body)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	outcome := h.orchestrator.HandleSourceEvent(r.Context(), workspaceID, event)
	h.respondOutcome(w, r, outcome)
}

// RollbackResponse is the wire shape for a rollback attempt
type RollbackResponse struct {
	PlanID   string   `json:"plan_id,omitempty"`
	Reversed int      `json:"reversed"`
	Complete bool     `json:"complete"`
	Warnings []string `json:"warnings,omitempty"`
}

// Rollback handles POST /workspaces/{workspaceID}/rollback
func (h *CanvasHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user context")
		return
	}

	result := h.orchestrator.RollbackLastPlan(r.Context(), workspaceID, userID)
	if result.Err != nil {
		status := statusForCategory(result.Category)
		common.RespondError(w, status, string(result.Category), result.Err.Error())
		return
	}

	common.RespondJSONWithWarnings(w, http.StatusOK, RollbackResponse{
		PlanID:   result.PlanID,
		Reversed: result.Reversed,
		Complete: result.Complete,
	}, result.Warnings)
}

// ContainerResponse is the wire shape for a canvas container
type ContainerResponse struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body,omitempty"`
	X         float64                `json:"x"`
	Y         float64                `json:"y"`
	Width     float64                `json:"width"`
	Height    float64                `json:"height"`
	ParentID  string                 `json:"parent_id,omitempty"`
	IsGhost   bool                   `json:"is_ghost"`
	EntityRef string                 `json:"entity_ref,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Version   int                    `json:"version"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ListContainers handles GET /workspaces/{workspaceID}/containers
func (h *CanvasHandler) ListContainers(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")

	containers, err := h.containers.GetByWorkspaceID(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to list containers",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list containers")
		return
	}

	response := make([]ContainerResponse, 0, len(containers))
	for _, c := range containers {
		item := ContainerResponse{
			ID:        c.ID().String(),
			Title:     c.Content().Title(),
			Body:      c.Content().Body(),
			X:         c.Position().X(),
			Y:         c.Position().Y(),
			Width:     c.Size().Width(),
			Height:    c.Size().Height(),
			IsGhost:   c.IsGhost(),
			Metadata:  c.Metadata(),
			Version:   c.Version(),
			UpdatedAt: c.UpdatedAt(),
		}
		if !c.ParentID().IsZero() {
			item.ParentID = c.ParentID().String()
		}
		if c.IsIntegrated() {
			item.EntityRef = c.EntityRef().Key()
		}
		response = append(response, item)
	}

	common.RespondJSON(w, http.StatusOK, response)
}

// EdgeResponse is the wire shape for a canvas edge
type EdgeResponse struct {
	ID            string            `json:"id"`
	SourcePortID  string            `json:"source_port_id"`
	TargetPortID  string            `json:"target_port_id"`
	Relationship  string            `json:"relationship"`
	Direction     string            `json:"direction"`
	AutoGenerated bool              `json:"auto_generated"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ListEdges handles GET /workspaces/{workspaceID}/edges
func (h *CanvasHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")

	edges, err := h.edges.GetByWorkspaceID(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to list edges",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list edges")
		return
	}

	response := make([]EdgeResponse, 0, len(edges))
	for _, e := range edges {
		response = append(response, EdgeResponse{
			ID:            e.ID(),
			SourcePortID:  e.SourcePortID(),
			TargetPortID:  e.TargetPortID(),
			Relationship:  string(e.RelationshipType()),
			Direction:     string(e.Direction()),
			AutoGenerated: e.AutoGenerated(),
			Metadata:      e.Metadata(),
		})
	}

	common.RespondJSON(w, http.StatusOK, response)
}

// LockResponse is the wire shape for the canvas lock
type LockResponse struct {
	Held       bool      `json:"held"`
	HolderID   string    `json:"holder_id,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// GetLock handles GET /workspaces/{workspaceID}/lock
func (h *CanvasHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")

	lock, err := h.locks.Get(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to read lock",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to read lock")
		return
	}

	if lock == nil || lock.IsExpired() {
		common.RespondJSON(w, http.StatusOK, LockResponse{Held: false})
		return
	}

	common.RespondJSON(w, http.StatusOK, LockResponse{
		Held:       true,
		HolderID:   lock.HolderID(),
		AcquiredAt: lock.AcquiredAt(),
		ExpiresAt:  lock.ExpiresAt(),
	})
}

func (h *CanvasHandler) respondOutcome(w http.ResponseWriter, r *http.Request, outcome orchestrator.Outcome) {
	response := OutcomeResponse{
		PlanID:  outcome.PlanID,
		Applied: outcome.Applied,
		Errors:  outcome.Errors,
	}

	if outcome.Success {
		common.RespondJSONWithWarnings(w, http.StatusOK, response, outcome.Warnings)
		return
	}

	response.Category = string(outcome.Category)
	status := statusForCategory(outcome.Category)

	h.logger.Info("Request rejected",
		zap.String("path", r.URL.Path),
		zap.String("category", string(outcome.Category)),
		zap.Strings("errors", outcome.Errors),
	)

	common.RespondErrorWithDetails(w, status, string(outcome.Category), firstOrDefault(outcome.Errors), map[string]interface{}{
		"errors":   outcome.Errors,
		"warnings": outcome.Warnings,
	})
}

func statusForCategory(category plan.FailureCategory) int {
	switch category {
	case plan.FailureValidation:
		return http.StatusBadRequest
	case plan.FailureLockViolation, plan.FailurePrecondition:
		return http.StatusConflict
	case plan.FailureForbiddenOperation, plan.FailureForbiddenRepair:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func firstOrDefault(errs []string) string {
	if len(errs) == 0 {
		return "request failed"
	}
	return errs[0]
}
