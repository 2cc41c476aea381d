package rest

import (
	"net/http"

	"canvasmirror/application/orchestrator"
	"canvasmirror/application/ports"
	"canvasmirror/interfaces/http/rest/handlers"
	"canvasmirror/interfaces/http/rest/middleware"
	"canvasmirror/pkg/auth"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	orchestrator *orchestrator.Orchestrator
	containers   ports.ContainerRepository
	edges        ports.EdgeRepository
	locks        ports.LockRepository
	validator    *auth.JWTValidator
	enableCORS   bool
	logger       *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	orch *orchestrator.Orchestrator,
	containers ports.ContainerRepository,
	edges ports.EdgeRepository,
	locks ports.LockRepository,
	validator *auth.JWTValidator,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		orchestrator: orch,
		containers:   containers,
		edges:        edges,
		locks:        locks,
		validator:    validator,
		enableCORS:   enableCORS,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			canvasHandler := handlers.NewCanvasHandler(
				rt.orchestrator, rt.containers, rt.edges, rt.locks, rt.logger,
			)
			r.Post("/intents", canvasHandler.SubmitIntent)
			r.Post("/source-events", canvasHandler.SubmitSourceEvent)
			r.Post("/rollback", canvasHandler.Rollback)
			r.Get("/containers", canvasHandler.ListContainers)
			r.Get("/edges", canvasHandler.ListEdges)
			r.Get("/lock", canvasHandler.GetLock)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
