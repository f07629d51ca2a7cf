package handler

import (
	"net/http"

	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/domain"
	"go.uber.org/zap"
)

type AuthHandler struct {
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewAuthHandler(tokens *auth.TokenManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger}
}

// IssueToken godoc
// @Summary Issue an access token for an ERP user
// @Description Service token callers only. Roles are derived from the ERP permissions.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.IssueTokenRequest true "ERP user"
// @Success 200 {object} domain.TokenResponse
// @Failure 403 {object} domain.ErrorResponse
// @Security ServiceToken
// @Router /v1/auth/token/ [post]
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, roles, err := h.tokens.Issue(&req)
	if err != nil {
		respondError(w, r, h.logger, err, "issue token")
		return
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	h.logger.Info("access token issued",
		zap.Int64("user_id", req.UserID),
		zap.Strings("roles", names),
	)
	respondJSON(w, http.StatusOK, domain.TokenResponse{
		Access:    token,
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
		Roles:     names,
	})
}

// Me godoc
// @Summary Get current caller
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.MeResponse
// @Failure 401 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /v1/auth/me/ [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	respondJSON(w, http.StatusOK, domain.MeResponse{
		UserID:    userCtx.UserID,
		Username:  userCtx.Username,
		Roles:     userCtx.RolesAsStrings(),
		IsService: userCtx.IsService,
	})
}
