package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// SupplyHandler handles invoice references and deliveries of supply cases
type SupplyHandler struct {
	supplyService *service.SupplyService
	logger        *zap.Logger
}

func NewSupplyHandler(supplyService *service.SupplyService, logger *zap.Logger) *SupplyHandler {
	return &SupplyHandler{supplyService: supplyService, logger: logger}
}

// ListInvoiceRefs godoc
// @Summary List invoice references
// @Tags Supply
// @Produce json
// @Param supply_case_id query int false "Supply case ID"
// @Success 200 {array} domain.SupplyInvoiceRef
// @Security BearerAuth
// @Router /v1/supply/invoice_refs/ [get]
func (h *SupplyHandler) ListInvoiceRefs(w http.ResponseWriter, r *http.Request) {
	caseID, ok := queryID(w, r, "supply_case_id")
	if !ok {
		return
	}
	refs, err := h.supplyService.ListInvoiceRefs(r.Context(), caseID)
	if err != nil {
		respondError(w, r, h.logger, err, "list invoice refs")
		return
	}
	respondJSON(w, http.StatusOK, refs)
}

func (h *SupplyHandler) CreateInvoiceRef(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateInvoiceRefRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ref, err := h.supplyService.CreateInvoiceRef(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "create invoice ref")
		return
	}
	respondJSON(w, http.StatusCreated, ref)
}

func (h *SupplyHandler) GetInvoiceRef(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ref, err := h.supplyService.GetInvoiceRef(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get invoice ref")
		return
	}
	respondJSON(w, http.StatusOK, ref)
}

func (h *SupplyHandler) UpdateInvoiceRef(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateInvoiceRefRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ref, err := h.supplyService.UpdateInvoiceRef(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, h.logger, err, "update invoice ref")
		return
	}
	respondJSON(w, http.StatusOK, ref)
}

func (h *SupplyHandler) DeleteInvoiceRef(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.supplyService.DeleteInvoiceRef(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete invoice ref")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeliveries godoc
// @Summary List deliveries
// @Tags Supply
// @Produce json
// @Param supply_case_id query int false "Supply case ID"
// @Success 200 {array} domain.SupplyDelivery
// @Security BearerAuth
// @Router /v1/supply/deliveries/ [get]
func (h *SupplyHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	caseID, ok := queryID(w, r, "supply_case_id")
	if !ok {
		return
	}
	deliveries, err := h.supplyService.ListDeliveries(r.Context(), caseID)
	if err != nil {
		respondError(w, r, h.logger, err, "list deliveries")
		return
	}
	respondJSON(w, http.StatusOK, deliveries)
}

func (h *SupplyHandler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	delivery, err := h.supplyService.CreateDelivery(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "create delivery")
		return
	}
	respondJSON(w, http.StatusCreated, delivery)
}

func (h *SupplyHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	delivery, err := h.supplyService.GetDelivery(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get delivery")
		return
	}
	respondJSON(w, http.StatusOK, delivery)
}

func (h *SupplyHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateDeliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	delivery, err := h.supplyService.UpdateDelivery(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, h.logger, err, "update delivery")
		return
	}
	respondJSON(w, http.StatusOK, delivery)
}

func (h *SupplyHandler) DeleteDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.supplyService.DeleteDelivery(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete delivery")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
