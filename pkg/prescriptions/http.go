package prescriptions

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/cliniflow/platform/pkg/gateway/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DoctorResolver maps the authenticated subject to the acting doctor; the
// identity service provides it.
type DoctorResolver interface {
	ResolveDoctor(ctx context.Context, userID uuid.UUID) (models.Doctor, error)
}

type Handler struct {
	service  *Service
	resolver DoctorResolver
}

func NewHandler(service *Service, resolver DoctorResolver) *Handler {
	return &Handler{service: service, resolver: resolver}
}

// RegisterDoctor mounts the ledger endpoints on a doctor-gated router.
func (h *Handler) RegisterDoctor(r *mux.Router) {
	r.HandleFunc("/prescription", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/prescriptions", h.handleList).Methods(http.MethodGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	doctor, ok := h.actingDoctor(w, r)
	if !ok {
		return
	}

	prescription, err := h.service.Create(r.Context(), req, doctor.ID)
	if err != nil {
		h.fail(w, err, "failed to create prescription")
		return
	}

	writeJSON(w, http.StatusCreated, prescription)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.actingDoctor(w, r)
	if !ok {
		return
	}

	prescriptions, err := h.service.ListForDoctor(r.Context(), doctor.ID)
	if err != nil {
		h.fail(w, err, "failed to list prescriptions")
		return
	}

	writeJSON(w, http.StatusOK, prescriptions)
}

func (h *Handler) actingDoctor(w http.ResponseWriter, r *http.Request) (models.Doctor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		apperrors.Respond(w, apperrors.E(apperrors.Auth, "unauthorized"))
		return models.Doctor{}, false
	}

	doctor, err := h.resolver.ResolveDoctor(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, err, "failed to resolve acting doctor")
		return models.Doctor{}, false
	}
	return doctor, true
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
