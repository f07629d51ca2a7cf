package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// AttachmentHandler handles card attachment uploads and downloads
type AttachmentHandler struct {
	attachmentService *service.AttachmentService
	maxUploadMB       int64
	logger            *zap.Logger
}

func NewAttachmentHandler(attachmentService *service.AttachmentService, maxUploadMB int64, logger *zap.Logger) *AttachmentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &AttachmentHandler{
		attachmentService: attachmentService,
		maxUploadMB:       maxUploadMB,
		logger:            logger,
	}
}

// @Summary Upload attachment
// @Description Stores a file for a card and emits attachment_added
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param card_id formData int true "Card ID"
// @Success 201 {object} domain.Attachment
// @Failure 413 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/attachments/ [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Limit request size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(h.maxUploadMB * 1024 * 1024); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	cardID, err := strconv.ParseInt(r.FormValue("card_id"), 10, 64)
	if err != nil || cardID <= 0 {
		respondValidationError(w, domain.NewValidationError("card_id", domain.GetValidationMessage("required")))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondValidationError(w, domain.NewValidationError("file", domain.GetValidationMessage("required")))
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.Upload(r.Context(), cardID, header.Filename,
		header.Header.Get("Content-Type"), file, auth.ActorFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err, "upload attachment")
		return
	}
	respondJSON(w, http.StatusCreated, attachment)
}

// @Summary List attachments of a card
// @Tags Attachments
// @Produce json
// @Param card_id query int true "Card ID"
// @Success 200 {array} domain.Attachment
// @Security BearerAuth
// @Router /v1/attachments/ [get]
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	cardID, ok := queryID(w, r, "card_id")
	if !ok {
		return
	}
	if cardID == nil {
		respondValidationError(w, domain.NewValidationError("card_id", domain.GetValidationMessage("required")))
		return
	}
	attachments, err := h.attachmentService.ListByCard(r.Context(), *cardID)
	if err != nil {
		respondError(w, r, h.logger, err, "list attachments")
		return
	}
	respondJSON(w, http.StatusOK, attachments)
}

func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attachment, err := h.attachmentService.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "get attachment")
		return
	}
	respondJSON(w, http.StatusOK, attachment)
}

// @Summary Download attachment
// @Tags Attachments
// @Produce application/octet-stream
// @Param id path int true "Attachment ID"
// @Success 200
// @Security BearerAuth
// @Router /v1/attachments/{id}/download/ [get]
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attachment, reader, err := h.attachmentService.Download(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "download attachment")
		return
	}
	defer reader.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.FileName}))
	w.Header().Set("Content-Type", contentType)
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("attachment download interrupted", zap.Int64("attachment_id", id), zap.Error(err))
	}
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.attachmentService.Delete(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "delete attachment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
