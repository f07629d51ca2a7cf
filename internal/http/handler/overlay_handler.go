package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// overlayCreator builds a new overlay row from a create request
type overlayCreator[PT any] interface {
	ToModel() PT
}

// overlayUpdater applies a partial update request to an overlay row
type overlayUpdater[PT any] interface {
	ApplyTo(PT)
}

// OverlayHandler serves CRUD for one overlay type. C and U are the create
// and update request bodies.
type OverlayHandler[T any, PT service.OverlayModel[T], C overlayCreator[PT], U overlayUpdater[PT]] struct {
	svc    *service.OverlayService[T, PT]
	name   string
	logger *zap.Logger
}

// NewOverlayHandler creates a handler; name is used in log messages
func NewOverlayHandler[T any, PT service.OverlayModel[T], C overlayCreator[PT], U overlayUpdater[PT]](
	svc *service.OverlayService[T, PT],
	name string,
	logger *zap.Logger,
) *OverlayHandler[T, PT, C, U] {
	return &OverlayHandler[T, PT, C, U]{svc: svc, name: name, logger: logger}
}

func (h *OverlayHandler[T, PT, C, U]) List(w http.ResponseWriter, r *http.Request) {
	boardID, ok := queryID(w, r, "board_id")
	if !ok {
		return
	}
	result, err := h.svc.List(r.Context(), boardID, pageFromQuery(r))
	if err != nil {
		respondError(w, r, h.logger, err, "list "+h.name+"s")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *OverlayHandler[T, PT, C, U]) Create(w http.ResponseWriter, r *http.Request) {
	var req C
	if !decodeJSON(w, r, &req) {
		return
	}
	overlay, err := h.svc.Create(r.Context(), req.ToModel())
	if err != nil {
		respondError(w, r, h.logger, err, "create "+h.name)
		return
	}
	respondJSON(w, http.StatusCreated, overlay)
}

func (h *OverlayHandler[T, PT, C, U]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	overlay, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get "+h.name)
		return
	}
	respondJSON(w, http.StatusOK, overlay)
}

func (h *OverlayHandler[T, PT, C, U]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req U
	if !decodeJSON(w, r, &req) {
		return
	}
	overlay, err := h.svc.Update(r.Context(), id, req.ApplyTo)
	if err != nil {
		respondError(w, r, h.logger, err, "update "+h.name)
		return
	}
	respondJSON(w, http.StatusOK, overlay)
}

func (h *OverlayHandler[T, PT, C, U]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete "+h.name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
