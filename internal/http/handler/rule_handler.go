package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// RuleHandler handles rule CRUD and the execution log
type RuleHandler struct {
	ruleService *service.RuleService
	logger      *zap.Logger
}

func NewRuleHandler(ruleService *service.RuleService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{ruleService: ruleService, logger: logger}
}

// List godoc
// @Summary List rules
// @Tags Rules
// @Produce json
// @Param board_id query int false "Board ID"
// @Success 200 {array} domain.Rule
// @Security BearerAuth
// @Router /v1/rules/ [get]
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	boardID, ok := queryID(w, r, "board_id")
	if !ok {
		return
	}
	rules, err := h.ruleService.List(r.Context(), boardID)
	if err != nil {
		respondError(w, r, h.logger, err, "list rules")
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

// Create godoc
// @Summary Create rule
// @Description Conditions and actions are validated against the closed schema
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body domain.CreateRuleRequest true "Rule definition"
// @Success 201 {object} domain.Rule
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/rules/ [post]
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := h.ruleService.Create(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "create rule")
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.ruleService.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get rule")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Update godoc
// @Summary Update rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path int true "Rule ID"
// @Param request body domain.UpdateRuleRequest true "Changed fields"
// @Success 200 {object} domain.Rule
// @Security BearerAuth
// @Router /v1/rules/{id}/ [patch]
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := h.ruleService.Update(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, h.logger, err, "update rule")
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.ruleService.Delete(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Executions godoc
// @Summary Rule execution log
// @Tags Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/rules/{id}/executions/ [get]
func (h *RuleHandler) Executions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.ruleService.ListExecutions(r.Context(), id, pageFromQuery(r))
	if err != nil {
		respondError(w, r, h.logger, err, "list rule executions")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
