package identity

import (
	"encoding/json"
	"net/http"

	"github.com/cliniflow/platform/pkg/auth"
	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/cliniflow/platform/pkg/gateway/middleware"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
	tokens  *auth.JWTManager
}

func NewHandler(service *Service, tokens *auth.JWTManager) *Handler {
	return &Handler{service: service, tokens: tokens}
}

// RegisterAuth mounts the credential endpoints. Login and bootstrap are
// public; /me requires a valid token.
func (h *Handler) RegisterAuth(r *mux.Router) {
	r.HandleFunc("/bootstrap", h.handleBootstrap).Methods(http.MethodPost)
	r.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokens))
	protected.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
}

// RegisterAdmin mounts doctor management on an admin-gated router.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/doctor", h.handleCreateDoctor).Methods(http.MethodPost)
	r.HandleFunc("/doctors", h.handleListDoctors).Methods(http.MethodGet)
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req models.BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	user, err := h.service.Bootstrap(r.Context(), req)
	if err != nil {
		h.fail(w, err, "bootstrap failed")
		return
	}

	token, err := h.tokens.IssueToken(user)
	if err != nil {
		h.fail(w, err, "issue token failed during bootstrap")
		return
	}

	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: user})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err, "authentication failed")
		return
	}

	token, err := h.tokens.IssueToken(user)
	if err != nil {
		h.fail(w, err, "failed issuing token")
		return
	}

	writeJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: user})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		apperrors.Respond(w, apperrors.E(apperrors.Auth, "unauthorized"))
		return
	}

	user, err := h.service.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, err, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleCreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	doctor, err := h.service.CreateDoctor(r.Context(), req)
	if err != nil {
		h.fail(w, err, "failed to create doctor")
		return
	}

	writeJSON(w, http.StatusCreated, doctor)
}

func (h *Handler) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.service.ListDoctors(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list doctors")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": doctors})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	if apperrors.KindOf(err) == apperrors.Internal {
		logger.Log.WithError(err).Error(msg)
	} else {
		logger.Log.WithError(err).Debug(msg)
	}
	apperrors.Respond(w, err)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
