package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// WarehouseHandler handles stock locations, moves and balances
type WarehouseHandler struct {
	warehouseService *service.WarehouseService
	logger           *zap.Logger
}

func NewWarehouseHandler(warehouseService *service.WarehouseService, logger *zap.Logger) *WarehouseHandler {
	return &WarehouseHandler{warehouseService: warehouseService, logger: logger}
}

// ListLocations godoc
// @Summary List stock locations
// @Tags Warehouse
// @Produce json
// @Param kind query string false "Location kind" Enums(warehouse, object, virtual)
// @Success 200 {array} domain.StockLocation
// @Security BearerAuth
// @Router /v1/warehouse/locations/ [get]
func (h *WarehouseHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	var kind *domain.LocationKind
	if k := r.URL.Query().Get("kind"); k != "" {
		lk := domain.LocationKind(k)
		switch lk {
		case domain.LocationWarehouse, domain.LocationObject, domain.LocationVirtual:
		default:
			respondValidationError(w, domain.NewValidationError("kind", domain.GetValidationMessage("oneof")))
			return
		}
		kind = &lk
	}
	locations, err := h.warehouseService.ListLocations(r.Context(), kind)
	if err != nil {
		respondError(w, r, h.logger, err, "list locations")
		return
	}
	respondJSON(w, http.StatusOK, locations)
}

func (h *WarehouseHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	location, err := h.warehouseService.CreateLocation(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "create location")
		return
	}
	respondJSON(w, http.StatusCreated, location)
}

func (h *WarehouseHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	location, err := h.warehouseService.GetLocation(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get location")
		return
	}
	respondJSON(w, http.StatusOK, location)
}

func (h *WarehouseHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	location, err := h.warehouseService.UpdateLocation(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, h.logger, err, "update location")
		return
	}
	respondJSON(w, http.StatusOK, location)
}

// DeleteLocation godoc
// @Summary Delete stock location
// @Description Refused while the location holds stock or appears in any move
// @Tags Warehouse
// @Param id path int true "Location ID"
// @Success 204
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/warehouse/locations/{id}/ [delete]
func (h *WarehouseHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.warehouseService.DeleteLocation(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMoves godoc
// @Summary List stock moves
// @Tags Warehouse
// @Produce json
// @Param location_id query int false "Either endpoint of the move"
// @Param move_type query string false "Move type" Enums(IN, OUT, TRANSFER)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/warehouse/moves/ [get]
func (h *WarehouseHandler) ListMoves(w http.ResponseWriter, r *http.Request) {
	locationID, ok := queryID(w, r, "location_id")
	if !ok {
		return
	}
	filters := domain.MoveFilters{LocationID: locationID}
	if mt := r.URL.Query().Get("move_type"); mt != "" {
		t := domain.MoveType(mt)
		switch t {
		case domain.MoveIn, domain.MoveOut, domain.MoveTransfer:
		default:
			respondValidationError(w, domain.NewValidationError("move_type", domain.GetValidationMessage("oneof")))
			return
		}
		filters.MoveType = &t
	}
	result, err := h.warehouseService.ListMoves(r.Context(), filters, pageFromQuery(r))
	if err != nil {
		respondError(w, r, h.logger, err, "list moves")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateMove godoc
// @Summary Create stock move
// @Description IN needs to_location only, OUT from_location only, TRANSFER both and distinct
// @Tags Warehouse
// @Accept json
// @Produce json
// @Param request body domain.CreateMoveRequest true "Move with lines"
// @Success 201 {object} domain.StockMove
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/warehouse/moves/ [post]
func (h *WarehouseHandler) CreateMove(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	move, err := h.warehouseService.CreateMove(r.Context(), &req, auth.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err, "create move")
		return
	}
	respondJSON(w, http.StatusCreated, move)
}

func (h *WarehouseHandler) GetMove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	move, err := h.warehouseService.GetMove(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get move")
		return
	}
	respondJSON(w, http.StatusOK, move)
}

// Balances godoc
// @Summary Stock balances of a location
// @Description Signed sum per product; ahhtung is true for negative balances
// @Tags Warehouse
// @Produce json
// @Param location_id query int true "Location ID"
// @Success 200 {array} domain.BalanceRow
// @Security BearerAuth
// @Router /v1/warehouse/moves/balances/ [get]
func (h *WarehouseHandler) Balances(w http.ResponseWriter, r *http.Request) {
	locationID, ok := queryID(w, r, "location_id")
	if !ok {
		return
	}
	if locationID == nil {
		respondValidationError(w, domain.NewValidationError("location_id", domain.GetValidationMessage("required")))
		return
	}
	rows, err := h.warehouseService.Balances(r.Context(), *locationID)
	if err != nil {
		respondError(w, r, h.logger, err, "compute balances")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
