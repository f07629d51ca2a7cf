package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/database"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/http/handler"
	"github.com/stroyteh/kanban-service/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/stroyteh/kanban-service/docs" // Register swagger docs
)

// DefaultBasePath is the URL prefix of every route
const DefaultBasePath = "/kanban-api"

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth            *handler.AuthHandler
	Board           *handler.BoardHandler
	Card            *handler.CardHandler
	Attachment      *handler.AttachmentHandler
	Rule            *handler.RuleHandler
	Supply          *handler.SupplyHandler
	Warehouse       *handler.WarehouseHandler
	ObjectTask      *handler.ObjectTaskHandler
	SupplyCases     *handler.OverlayHandler[domain.SupplyCase, *domain.SupplyCase, domain.CreateSupplyCaseRequest, domain.UpdateSupplyCaseRequest]
	CommercialCases *handler.OverlayHandler[domain.CommercialCase, *domain.CommercialCase, domain.CreateCommercialCaseRequest, domain.UpdateCommercialCaseRequest]
	ObjectTasks     *handler.OverlayHandler[domain.ObjectTask, *domain.ObjectTask, domain.CreateObjectTaskRequest, domain.UpdateObjectTaskRequest]
	WarehouseLines  *handler.OverlayHandler[domain.WarehouseLine, *domain.WarehouseLine, domain.CreateWarehouseLineRequest, domain.UpdateWarehouseLineRequest]
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	h              Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		h:              handlers,
	}
}

func (rt *Router) basePath() string {
	base := strings.TrimRight(rt.cfg.Kanban.BasePath, "/")
	if base == "" {
		return DefaultBasePath
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	base := rt.basePath()

	// Global middleware
	r.Use(middleware.Logging(rt.logger, base+"/health/", base+"/health/ready/"))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.AllowedHosts(rt.cfg.Kanban.AllowedHosts, rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security, base+"/swagger/"))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	r.Route(base, func(r chi.Router) {
		// Liveness probe
		r.Get("/health/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/health/ready/", rt.ready)

		if rt.cfg.Server.EnableSwagger {
			r.Get("/swagger/*", httpSwagger.Handler(
				httpSwagger.URL(base+"/swagger/doc.json"),
			))
		}

		r.Route("/v1", rt.v1)
	})

	return r
}

// ready reports database health with pool statistics
func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"checks": map[string]interface{}{
				"database": map[string]interface{}{"status": "unhealthy", "error": err.Error()},
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"checks": map[string]interface{}{
			"database": map[string]interface{}{
				"status":           "healthy",
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
				"wait_duration_ms": stats.WaitDuration.Milliseconds(),
			},
		},
	})
}

func (rt *Router) v1(r chi.Router) {
	am := rt.authMiddleware
	h := rt.h

	r.Use(am.Authenticate)
	r.Use(rt.rateLimiter.Limit)

	// Write guards; reads need authentication only.
	kanbanAdmin := auth.WriteMethods(am.RequireAnyRole(domain.RoleKanbanAdmin))
	ruleWriters := auth.WriteMethods(am.RequireAnyRole(domain.RoleKanbanAdmin, domain.RoleDirector))
	supply := auth.WriteMethods(am.RequireAnyRole(domain.RoleSupplyOperator))
	warehouse := auth.WriteMethods(am.RequireAnyRole(domain.RoleWarehouse))
	objectTasks := auth.WriteMethods(am.RequireAnyRole(domain.RoleObjectTasks))

	// Auth
	r.Route("/auth", func(r chi.Router) {
		r.With(am.RequireService).Post("/token/", h.Auth.IssueToken)
		r.Get("/me/", h.Auth.Me)
	})

	// Boards and columns
	r.Route("/boards", func(r chi.Router) {
		r.Use(kanbanAdmin)
		r.Get("/", h.Board.ListBoards)
		r.Post("/", h.Board.CreateBoard)
		r.Get("/{id}/", h.Board.GetBoard)
		r.Patch("/{id}/", h.Board.UpdateBoard)
		r.Delete("/{id}/", h.Board.DeleteBoard)
	})
	r.Route("/columns", func(r chi.Router) {
		r.Use(kanbanAdmin)
		r.Get("/", h.Board.ListColumns)
		r.Post("/", h.Board.CreateColumn)
		r.Post("/reorder/", h.Board.ReorderColumns)
		r.Get("/{id}/", h.Board.GetColumn)
		r.Patch("/{id}/", h.Board.UpdateColumn)
		r.Delete("/{id}/", h.Board.DeleteColumn)
	})

	// Cards
	r.Route("/cards", func(r chi.Router) {
		r.Get("/", h.Card.List)
		r.Post("/", h.Card.Create)
		r.Get("/{id}/", h.Card.Get)
		r.Patch("/{id}/", h.Card.Update)
		r.Post("/{id}/move/", h.Card.Move)
		r.Post("/{id}/archive/", h.Card.Archive)
		r.Get("/{id}/events/", h.Card.Events)
		r.Post("/{id}/refresh-labels/", h.Card.RefreshLabels)
	})
	r.Get("/events/", h.Card.BoardTimeline)

	// Attachments
	r.Route("/attachments", func(r chi.Router) {
		r.Get("/", h.Attachment.List)
		r.Post("/", h.Attachment.Upload)
		r.Get("/{id}/", h.Attachment.Get)
		r.Get("/{id}/download/", h.Attachment.Download)
		r.Delete("/{id}/", h.Attachment.Delete)
	})

	// Rules
	r.Route("/rules", func(r chi.Router) {
		r.Use(ruleWriters)
		r.Get("/", h.Rule.List)
		r.Post("/", h.Rule.Create)
		r.Get("/{id}/", h.Rule.Get)
		r.Patch("/{id}/", h.Rule.Update)
		r.Delete("/{id}/", h.Rule.Delete)
		r.Get("/{id}/executions/", h.Rule.Executions)
	})

	// Supply
	r.Route("/supply", func(r chi.Router) {
		r.Use(supply)
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.SupplyCases.List)
			r.Post("/", h.SupplyCases.Create)
			r.Get("/{id}/", h.SupplyCases.Get)
			r.Patch("/{id}/", h.SupplyCases.Update)
			r.Delete("/{id}/", h.SupplyCases.Delete)
		})
		r.Route("/invoice_refs", func(r chi.Router) {
			r.Get("/", h.Supply.ListInvoiceRefs)
			r.Post("/", h.Supply.CreateInvoiceRef)
			r.Get("/{id}/", h.Supply.GetInvoiceRef)
			r.Patch("/{id}/", h.Supply.UpdateInvoiceRef)
			r.Delete("/{id}/", h.Supply.DeleteInvoiceRef)
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", h.Supply.ListDeliveries)
			r.Post("/", h.Supply.CreateDelivery)
			r.Get("/{id}/", h.Supply.GetDelivery)
			r.Patch("/{id}/", h.Supply.UpdateDelivery)
			r.Delete("/{id}/", h.Supply.DeleteDelivery)
		})
	})

	// Commercial
	r.Route("/commercial/cases", func(r chi.Router) {
		r.Use(auth.WriteMethods(am.RequireAnyRole(domain.RoleSupplyOperator, domain.RoleDirector)))
		r.Get("/", h.CommercialCases.List)
		r.Post("/", h.CommercialCases.Create)
		r.Get("/{id}/", h.CommercialCases.Get)
		r.Patch("/{id}/", h.CommercialCases.Update)
		r.Delete("/{id}/", h.CommercialCases.Delete)
	})

	// Object tasks
	r.Route("/object-tasks", func(r chi.Router) {
		r.Use(objectTasks)
		r.Get("/", h.ObjectTasks.List)
		r.Post("/", h.ObjectTasks.Create)
		r.Post("/overdue-scan/", h.ObjectTask.OverdueScan)
		r.Get("/{id}/", h.ObjectTasks.Get)
		r.Patch("/{id}/", h.ObjectTasks.Update)
		r.Delete("/{id}/", h.ObjectTasks.Delete)
	})

	// Warehouse
	r.Route("/warehouse", func(r chi.Router) {
		r.Use(warehouse)
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.Warehouse.ListLocations)
			r.Post("/", h.Warehouse.CreateLocation)
			r.Get("/{id}/", h.Warehouse.GetLocation)
			r.Patch("/{id}/", h.Warehouse.UpdateLocation)
			r.Delete("/{id}/", h.Warehouse.DeleteLocation)
		})
		r.Route("/moves", func(r chi.Router) {
			r.Get("/", h.Warehouse.ListMoves)
			r.Post("/", h.Warehouse.CreateMove)
			r.Get("/balances/", h.Warehouse.Balances)
			r.Get("/{id}/", h.Warehouse.GetMove)
		})
		r.Route("/lines", func(r chi.Router) {
			r.Get("/", h.WarehouseLines.List)
			r.Post("/", h.WarehouseLines.Create)
			r.Get("/{id}/", h.WarehouseLines.Get)
			r.Patch("/{id}/", h.WarehouseLines.Update)
			r.Delete("/{id}/", h.WarehouseLines.Delete)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
