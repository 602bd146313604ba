package patients

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
// identity service provides it. Doctor-scoped handlers never take a doctor
// id from the request.
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

// RegisterAdmin mounts patient registration and the clinic-wide listing on
// an admin-gated router.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/patient", h.handleRegisterPatient).Methods(http.MethodPost)
	r.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
}

// RegisterDoctor mounts the doctor-scoped reads on a doctor-gated router.
func (h *Handler) RegisterDoctor(r *mux.Router) {
	r.HandleFunc("/patients/today", h.handleTodaysPatients).Methods(http.MethodGet)
	r.HandleFunc("/patients/{patientId}", h.handleGetPatient).Methods(http.MethodGet)
}

func (h *Handler) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	patient, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, err, "failed to register patient")
		return
	}

	writeJSON(w, http.StatusCreated, patient)
}

func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.ListAll(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list patients")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": patients})
}

func (h *Handler) handleTodaysPatients(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.actingDoctor(w, r)
	if !ok {
		return
	}

	resp, err := h.service.TodaysPatients(r.Context(), doctor.ID)
	if err != nil {
		h.fail(w, err, "failed to list today's patients")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientId"])
	if err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid patient id"))
		return
	}

	doctor, ok := h.actingDoctor(w, r)
	if !ok {
		return
	}

	patient, err := h.service.GetByID(r.Context(), patientID, doctor.ID)
	if err != nil {
		h.fail(w, err, "failed to get patient")
		return
	}

	writeJSON(w, http.StatusOK, patient)
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
