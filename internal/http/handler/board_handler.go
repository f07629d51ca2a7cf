package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// BoardHandler handles HTTP requests for boards and columns
type BoardHandler struct {
	boardService *service.BoardService
	logger       *zap.Logger
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(boardService *service.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{boardService: boardService, logger: logger}
}

// ListBoards godoc
// @Summary List boards
// @Tags Boards
// @Produce json
// @Success 200 {array} domain.Board
// @Security BearerAuth
// @Router /v1/boards/ [get]
func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boardService.ListBoards(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err, "list boards")
		return
	}
	respondJSON(w, http.StatusOK, boards)
}

// CreateBoard godoc
// @Summary Create board
// @Tags Boards
// @Accept json
// @Produce json
// @Param request body domain.CreateBoardRequest true "Board data"
// @Success 201 {object} domain.Board
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/boards/ [post]
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBoardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	board, err := h.boardService.CreateBoard(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "create board")
		return
	}
	respondJSON(w, http.StatusCreated, board)
}

// GetBoard godoc
// @Summary Get board
// @Tags Boards
// @Produce json
// @Param id path int true "Board ID"
// @Success 200 {object} domain.Board
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/boards/{id}/ [get]
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	board, err := h.boardService.GetBoard(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get board")
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// UpdateBoard godoc
// @Summary Update board title
// @Tags Boards
// @Accept json
// @Produce json
// @Param id path int true "Board ID"
// @Param request body domain.UpdateBoardRequest true "Board data"
// @Success 200 {object} domain.Board
// @Security BearerAuth
// @Router /v1/boards/{id}/ [patch]
func (h *BoardHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateBoardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	board, err := h.boardService.UpdateBoard(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, h.logger, err, "update board")
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// DeleteBoard godoc
// @Summary Delete board without cards
// @Tags Boards
// @Param id path int true "Board ID"
// @Success 204
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/boards/{id}/ [delete]
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.boardService.DeleteBoard(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete board")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListColumns godoc
// @Summary List columns of a board
// @Tags Columns
// @Produce json
// @Param board_id query int true "Board ID"
// @Success 200 {array} domain.Column
// @Security BearerAuth
// @Router /v1/columns/ [get]
func (h *BoardHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	boardID, ok := queryID(w, r, "board_id")
	if !ok {
		return
	}
	if boardID == nil {
		respondValidationError(w, domain.NewValidationError("board_id", domain.GetValidationMessage("required")))
		return
	}
	columns, err := h.boardService.ListColumns(r.Context(), *boardID)
	if err != nil {
		respondError(w, r, h.logger, err, "list columns")
		return
	}
	respondJSON(w, http.StatusOK, columns)
}

// CreateColumn godoc
// @Summary Create column
// @Tags Columns
// @Accept json
// @Produce json
// @Param request body domain.CreateColumnRequest true "Column data"
// @Success 201 {object} domain.Column
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/columns/ [post]
func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateColumnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	column, err := h.boardService.CreateColumn(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "create column")
		return
	}
	respondJSON(w, http.StatusCreated, column)
}

func (h *BoardHandler) GetColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	column, err := h.boardService.GetColumn(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get column")
		return
	}
	respondJSON(w, http.StatusOK, column)
}

func (h *BoardHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateColumnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	column, err := h.boardService.UpdateColumn(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, h.logger, err, "update column")
		return
	}
	respondJSON(w, http.StatusOK, column)
}

// ReorderColumns godoc
// @Summary Reorder the columns of a board in one transaction
// @Tags Columns
// @Accept json
// @Produce json
// @Param request body domain.ReorderColumnsRequest true "New order"
// @Success 200 {array} domain.Column
// @Security BearerAuth
// @Router /v1/columns/reorder/ [post]
func (h *BoardHandler) ReorderColumns(w http.ResponseWriter, r *http.Request) {
	var req domain.ReorderColumnsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	columns, err := h.boardService.ReorderColumns(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err, "reorder columns")
		return
	}
	respondJSON(w, http.StatusOK, columns)
}

// DeleteColumn godoc
// @Summary Delete column without cards
// @Tags Columns
// @Param id path int true "Column ID"
// @Success 204
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/columns/{id}/ [delete]
func (h *BoardHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.boardService.DeleteColumn(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete column")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
