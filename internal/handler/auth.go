package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/auth"
	"github.com/saharat-dev/coffee-shop-backend/internal/user"
)

type AuthHandler struct {
	svc      user.Service
	validate *validator.Validate
}

func NewAuthHandler(svc user.Service) *AuthHandler {
	return &AuthHandler{svc: svc, validate: validator.New()}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	session, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		code, message := mapUserError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Msg("handler: registration failed")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusCreated, session)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		code, message := mapUserError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Msg("handler: login failed")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}

	profile, err := h.svc.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		code, message := mapUserError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Int64("user_id", identity.UserID).Msg("handler: failed to fetch profile")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"user": profile})
}
