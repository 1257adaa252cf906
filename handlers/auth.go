package handlers

import (
	"net/http"
	"time"

	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
)

type AuthHandler struct {
	Members   *service.MemberService
	JWTSecret string
	TokenTTL  time.Duration
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	Member  *models.Member `json:"member"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	member, err := h.Members.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	token, err := middleware.IssueToken(h.JWTSecret, member, h.TokenTTL)
	if err != nil {
		common.RespondWithAppError(w, r, common.Internal(err))
		return
	}
	common.RespondWithJSON(w, http.StatusOK, LoginResponse{Message: "Login successful", Token: token, Member: member})
}

// Me returns the member the bearer token belongs to.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	member, err := h.Members.Get(r.Context(), id.Hex())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, member)
}
