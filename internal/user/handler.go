package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/PrathmeshKudale/krishi-mitra/internal/session"
	"github.com/PrathmeshKudale/krishi-mitra/internal/user/entity"
)

// Handler exposes HTTP endpoints for user operations (register / login).
type Handler struct {
	svc      *UserService
	sessions *session.Service
	logger   *zap.SugaredLogger
}

func NewHandler(svc *UserService, sessions *session.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RegisterRequest request body for register endpoint.
type RegisterRequest struct {
	Identifier  string `json:"identifier"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
}

// RegisterResponse response body containing new user id.
type RegisterResponse struct {
	ID string `json:"id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	id, err := h.svc.Register(r.Context(), req.Identifier, req.Password, req.DisplayName, req.Location)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrDuplicateIdentifier):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "mobile number or email already registered"})
		case errors.Is(err, ErrStorageUnavailable):
			h.logger.Warnw("register failed", "err", err)
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable, try again later"})
		default:
			h.logger.Warnw("register failed", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		}
		return
	}
	h.logger.Infow("farmer registered", "id", id)
	h.writeJSON(w, http.StatusCreated, RegisterResponse{ID: id})
}

// LoginRequest login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the session token and the farmer profile.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *entity.Profile `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	profile, err := h.svc.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		case errors.Is(err, ErrStorageUnavailable):
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable, try again later"})
		default:
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		}
		return
	}
	token, exp, err := h.sessions.Issue(profile)
	if err != nil {
		h.logger.Errorw("issue token", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: profile})
}

// Me returns the identity carried by the session token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	h.writeJSON(w, http.StatusOK, id)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
