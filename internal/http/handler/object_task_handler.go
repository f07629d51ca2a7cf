package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// ObjectTaskHandler exposes the on-demand overdue scan
type ObjectTaskHandler struct {
	overdueService *service.OverdueService
	logger         *zap.Logger
}

func NewObjectTaskHandler(overdueService *service.OverdueService, logger *zap.Logger) *ObjectTaskHandler {
	return &ObjectTaskHandler{overdueService: overdueService, logger: logger}
}

// OverdueScan godoc
// @Summary Run the overdue scan now
// @Description Emits task_overdue at most once per card per day. date defaults to today.
// @Tags Object tasks
// @Produce json
// @Param date query string false "Scan day, YYYY-MM-DD"
// @Success 200 {object} domain.OverdueScanResult
// @Security BearerAuth
// @Router /v1/object-tasks/overdue-scan/ [post]
func (h *ObjectTaskHandler) OverdueScan(w http.ResponseWriter, r *http.Request) {
	today := h.overdueService.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := domain.ParseDate("date", raw)
		if err != nil {
			respondError(w, r, h.logger, err, "parse scan date")
			return
		}
		today = day
	}
	result, err := h.overdueService.Scan(r.Context(), today)
	if err != nil {
		respondError(w, r, h.logger, err, "run overdue scan")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
