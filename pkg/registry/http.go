package registry

import (
	"encoding/json"
	"net/http"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterAdmin mounts hospital management on an admin-gated router.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/hospital", h.handleCreateHospital).Methods(http.MethodPost)
	r.HandleFunc("/hospitals", h.handleListHospitals).Methods(http.MethodGet)
}

// RegisterMedicine mounts the medicine endpoints: creation is admin-only,
// the listing is shared with doctors, so the two land on differently gated
// routers.
func (h *Handler) RegisterMedicine(adminOnly, shared *mux.Router) {
	adminOnly.HandleFunc("", h.handleCreateMedicine).Methods(http.MethodPost)
	shared.HandleFunc("", h.handleListMedicines).Methods(http.MethodGet)
}

func (h *Handler) handleCreateHospital(w http.ResponseWriter, r *http.Request) {
	var req models.CreateHospitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	hospital, err := h.service.CreateHospital(r.Context(), req)
	if err != nil {
		h.fail(w, err, "failed to create hospital")
		return
	}

	writeJSON(w, http.StatusCreated, hospital)
}

func (h *Handler) handleListHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.service.ListHospitals(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list hospitals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(hospitals),
		"data":  hospitals,
	})
}

func (h *Handler) handleCreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMedicineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Respond(w, apperrors.E(apperrors.Validation, "invalid request"))
		return
	}

	medicine, err := h.service.CreateMedicine(r.Context(), req)
	if err != nil {
		h.fail(w, err, "failed to create medicine")
		return
	}

	writeJSON(w, http.StatusCreated, medicine)
}

func (h *Handler) handleListMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.service.ListMedicines(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list medicines")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(medicines),
		"data":  medicines,
	})
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
