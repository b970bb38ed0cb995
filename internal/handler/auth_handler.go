package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	"github.com/dolaglobo/mmf-ledger/internal/models"
	"github.com/dolaglobo/mmf-ledger/internal/service"
	u "github.com/dolaglobo/mmf-ledger/internal/utils"
)

type AuthHandler struct {
	authService service.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router, authMW *AuthMiddleware) {
	router.HandleFunc("/auth/signup", h.Signup).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/auth/admin/register", h.RegisterAdmin).Methods(http.MethodPost)
	router.HandleFunc("/auth/admin/login", h.LoginAdmin).Methods(http.MethodPost)
	router.Handle("/user/profile", authMW.Require(http.HandlerFunc(h.Profile))).Methods(http.MethodGet)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	token, err := h.authService.Signup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "signup")
		return
	}
	u.WriteJSON(w, http.StatusCreated, token)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	token, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	u.WriteJSON(w, http.StatusOK, token)
}

func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.AdminRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	token, err := h.authService.RegisterAdmin(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "register admin")
		return
	}
	u.WriteJSON(w, http.StatusCreated, token)
}

func (h *AuthHandler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	token, err := h.authService.LoginAdmin(r.Context(), &req)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	u.WriteJSON(w, http.StatusOK, token)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	user, err := h.authService.GetProfile(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get profile")
		return
	}
	u.WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	if errors.IsUnauthorized(err) || errors.IsNotFound(err) {
		u.WriteError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	writeServiceError(w, h.logger, err, "login")
}
