package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// CardHandler handles HTTP requests for cards and their event log
type CardHandler struct {
	cardService  *service.CardService
	labelService *service.LabelService
	logger       *zap.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(cardService *service.CardService, labelService *service.LabelService, logger *zap.Logger) *CardHandler {
	return &CardHandler{cardService: cardService, labelService: labelService, logger: logger}
}

// List godoc
// @Summary List cards
// @Description Paginated list of cards. Archived cards are hidden unless include_archived=true.
// @Tags Cards
// @Produce json
// @Param board_id query int false "Board ID"
// @Param column_key query string false "Column key"
// @Param type query string false "Card type" Enums(supply_case, commercial_case, object_task, warehouse_line, generic)
// @Param include_archived query bool false "Include archived cards"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(50)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/cards/ [get]
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	boardID, ok := queryID(w, r, "board_id")
	if !ok {
		return
	}
	filters := domain.CardFilters{
		BoardID:         boardID,
		ColumnKey:       r.URL.Query().Get("column_key"),
		IncludeArchived: queryBool(r, "include_archived"),
	}
	if t := r.URL.Query().Get("type"); t != "" {
		ct := domain.CardType(t)
		if !ct.IsValid() {
			respondValidationError(w, domain.NewValidationError("type", domain.GetValidationMessage("oneof")))
			return
		}
		filters.Type = &ct
	}

	result, err := h.cardService.List(r.Context(), filters, pageFromQuery(r))
	if err != nil {
		respondError(w, r, h.logger, err, "list cards")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create card
// @Description Creates a card in the given column and emits card_created
// @Tags Cards
// @Accept json
// @Produce json
// @Param request body domain.CreateCardRequest true "Card data"
// @Success 201 {object} domain.CardDTO
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/cards/ [post]
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cardType := req.Type
	if cardType == "" {
		cardType = domain.CardTypeGeneric
	}
	if err := authorizeCardType(r.Context(), cardType); err != nil {
		respondError(w, r, h.logger, err, "create card")
		return
	}
	card, err := h.cardService.Create(r.Context(), &req, auth.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err, "create card")
		return
	}
	respondJSON(w, http.StatusCreated, card)
}

// Get godoc
// @Summary Get card
// @Tags Cards
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} domain.CardDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/cards/{id}/ [get]
func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	card, err := h.cardService.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get card")
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// Update godoc
// @Summary Update card
// @Description Partial update; emits card_updated with the changed fields when anything changed
// @Tags Cards
// @Accept json
// @Produce json
// @Param id path int true "Card ID"
// @Param request body domain.UpdateCardRequest true "Changed fields"
// @Success 200 {object} domain.CardDTO
// @Failure 409 {object} domain.ErrorResponse "Card is archived"
// @Security BearerAuth
// @Router /v1/cards/{id}/ [patch]
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authorizeCard(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "update card")
		return
	}
	card, err := h.cardService.Update(r.Context(), id, &req, auth.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err, "update card")
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// Move godoc
// @Summary Move card to another column
// @Description Moving to the current column returns the card unchanged and emits nothing
// @Tags Cards
// @Accept json
// @Produce json
// @Param id path int true "Card ID"
// @Param request body domain.MoveCardRequest true "Target column"
// @Success 200 {object} domain.CardDTO
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} domain.ErrorResponse "Card is archived"
// @Security BearerAuth
// @Router /v1/cards/{id}/move/ [post]
func (h *CardHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.MoveCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authorizeCard(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "move card")
		return
	}
	card, _, err := h.cardService.Move(r.Context(), id, req.ToColumnKey, auth.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err, "move card")
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// Archive godoc
// @Summary Archive card
// @Tags Cards
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} domain.CardDTO
// @Security BearerAuth
// @Router /v1/cards/{id}/archive/ [post]
func (h *CardHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.authorizeCard(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "archive card")
		return
	}
	card, err := h.cardService.Archive(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err, "archive card")
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// Events godoc
// @Summary Card event log
// @Description Events of a card ordered by creation
// @Tags Cards
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/cards/{id}/events/ [get]
func (h *CardHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.cardService.ListEvents(r.Context(), id, pageFromQuery(r))
	if err != nil {
		respondError(w, r, h.logger, err, "list card events")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RefreshLabels godoc
// @Summary Refresh cached ERP labels of the card overlay
// @Tags Cards
// @Produce json
// @Param id path int true "Card ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} domain.ErrorResponse "ERP directory not configured"
// @Security BearerAuth
// @Router /v1/cards/{id}/refresh-labels/ [post]
func (h *CardHandler) RefreshLabels(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.authorizeCard(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "refresh labels")
		return
	}
	overlay, err := h.labelService.RefreshLabels(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "refresh labels")
		return
	}
	respondJSON(w, http.StatusOK, overlay)
}

// BoardTimeline godoc
// @Summary Board activity timeline
// @Description Newest events first
// @Tags Events
// @Produce json
// @Param board_id query int true "Board ID"
// @Param event_type query string false "Event type"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /v1/events/ [get]
func (h *CardHandler) BoardTimeline(w http.ResponseWriter, r *http.Request) {
	boardID, ok := queryID(w, r, "board_id")
	if !ok {
		return
	}
	if boardID == nil {
		respondValidationError(w, domain.NewValidationError("board_id", domain.GetValidationMessage("required")))
		return
	}
	var eventType *domain.EventType
	if et := r.URL.Query().Get("event_type"); et != "" {
		t := domain.EventType(et)
		if !t.IsValid() {
			respondValidationError(w, domain.NewValidationError("event_type", domain.GetValidationMessage("oneof")))
			return
		}
		eventType = &t
	}
	result, err := h.cardService.ListBoardEvents(r.Context(), *boardID, eventType, pageFromQuery(r))
	if err != nil {
		respondError(w, r, h.logger, err, "list board events")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// authorizeCard checks the caller against the write roles of a stored card's type
func (h *CardHandler) authorizeCard(ctx context.Context, id int64) error {
	card, err := h.cardService.Get(ctx, id)
	if err != nil {
		return err
	}
	return authorizeCardType(ctx, card.Type)
}

func authorizeCardType(ctx context.Context, cardType domain.CardType) error {
	roles := domain.CardWriteRoles(cardType)
	if len(roles) == 0 {
		return nil
	}
	if user, ok := auth.FromContext(ctx); ok && user.HasAnyRole(roles...) {
		return nil
	}
	return fmt.Errorf("%w: %s cards need one of %v", service.ErrForbidden, cardType, roles)
}
