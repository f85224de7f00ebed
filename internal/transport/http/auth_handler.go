package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Aklilu27/audiorooms/internal/domain"
	"github.com/Aklilu27/audiorooms/internal/service"
	"github.com/Aklilu27/audiorooms/pkg/auth"
)

type AuthHandler struct {
	userSvc *service.UserService
	tokens  *auth.JWT
}

func NewAuthHandler(userSvc *service.UserService, tokens *auth.JWT) *AuthHandler {
	return &AuthHandler{userSvc: userSvc, tokens: tokens}
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	u, err := h.userSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrUsernameTaken):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "username already taken"})
		default:
			slog.Error("handler.Register:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	h.respondWithToken(w, http.StatusCreated, u.ID, u.Username)
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	u, err := h.userSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		slog.Error("handler.Login:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	h.respondWithToken(w, http.StatusOK, u.ID, u.Username)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, userID, username string) {
	token, err := h.tokens.Sign(userID, username)
	if err != nil {
		slog.Error("handler.respondWithToken:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, UserID: userID, Username: username})
}
