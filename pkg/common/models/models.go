package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles. Authorization decisions dispatch
// on this type only; raw strings from a request body never reach it.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDoctor
}

// MedicineTypes is the enumerated set of dispensable forms.
var MedicineTypes = []string{"Tablet", "Syrup", "Injection", "Capsule", "Cream", "Drops"}

func ValidMedicineType(t string) bool {
	for _, known := range MedicineTypes {
		if t == known {
			return true
		}
	}
	return false
}

// User is a login identity with exactly one role. Doctors additionally carry
// a Doctor profile linked 1:1 to their account.
type User struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email"`
	Role      Role                   `json:"role"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type Doctor struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Specialization string    `json:"specialization,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	HospitalID     uuid.UUID `json:"hospital_id"`
	CreatedAt      time.Time `json:"created_at"`

	User     *User     `json:"user,omitempty"`
	Hospital *Hospital `json:"hospital,omitempty"`
}

type Hospital struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Medicine struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	GenericName string    `json:"genericName,omitempty"`
	Strength    string    `json:"strength,omitempty"`
	Type        string    `json:"type"`
	Company     string    `json:"company,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Patient struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	Gender     string     `json:"gender"`
	Phone      string     `json:"phone,omitempty"`
	Address    string     `json:"address,omitempty"`
	Complaint  string     `json:"complaint,omitempty"`
	DoctorID   uuid.UUID  `json:"doctor_id"`
	HospitalID *uuid.UUID `json:"hospital_id,omitempty"`

	// RegistrationDay is CreatedAt truncated to start-of-day in the clinic
	// timezone. The today-window filter reads CreatedAt, not this field.
	RegistrationDay time.Time `json:"registration_day"`
	CreatedAt       time.Time `json:"created_at"`

	// Prescribed is derived at read time from the prescription ledger,
	// never stored on the patient row.
	Prescribed bool `json:"prescribed"`

	Doctor   *Doctor   `json:"doctor,omitempty"`
	Hospital *Hospital `json:"hospital,omitempty"`
}

// PatientSummary is the slice of patient fields attached to prescriptions.
type PatientSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Age    int       `json:"age"`
	Gender string    `json:"gender"`
}

type PrescriptionItem struct {
	MedicineID uuid.UUID `json:"medicine"`
	Dosage     string    `json:"dosage,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	Notes      string    `json:"notes,omitempty"`

	Medicine *Medicine `json:"medicineDetail,omitempty"`
}

type Prescription struct {
	ID        uuid.UUID          `json:"id"`
	PatientID uuid.UUID          `json:"patient_id"`
	DoctorID  uuid.UUID          `json:"doctor_id"`
	Medicines []PrescriptionItem `json:"medicines"`
	IssuedAt  time.Time          `json:"date"`
	CreatedAt time.Time          `json:"created_at"`

	Patient *PatientSummary `json:"patient,omitempty"`
}

// Auth requests/responses

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type BootstrapRequest struct {
	AdminName     string `json:"name"`
	AdminEmail    string `json:"email"`
	AdminPassword string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Admin requests

type CreateDoctorRequest struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Password       string    `json:"password"`
	Specialization string    `json:"specialization"`
	Phone          string    `json:"phone"`
	Hospital       uuid.UUID `json:"hospital"`
}

type CreateHospitalRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type CreateMedicineRequest struct {
	Name        string `json:"name"`
	GenericName string `json:"genericName"`
	Strength    string `json:"strength"`
	Type        string `json:"type"`
	Company     string `json:"company"`
}

type RegisterPatientRequest struct {
	Name      string     `json:"name"`
	Age       int        `json:"age"`
	Gender    string     `json:"gender"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Complaint string     `json:"complaint"`
	Doctor    uuid.UUID  `json:"doctor"`
	Hospital  *uuid.UUID `json:"hospital,omitempty"`
}

// Doctor requests

type PrescriptionItemRequest struct {
	Medicine uuid.UUID `json:"medicine"`
	Dosage   string    `json:"dosage"`
	Duration string    `json:"duration"`
	Notes    string    `json:"notes"`
}

type CreatePrescriptionRequest struct {
	Patient   uuid.UUID                 `json:"patient"`
	Medicines []PrescriptionItemRequest `json:"medicines"`
	Date      *time.Time                `json:"date,omitempty"`

	// Doctor is accepted for wire compatibility with older clients and is
	// always ignored; the acting doctor is resolved server-side.
	Doctor *uuid.UUID `json:"doctor,omitempty"`
}

type TodaysPatientsResponse struct {
	Count    int       `json:"count"`
	Patients []Patient `json:"patients"`
}

// Event is the envelope published to the domain event stream.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // doctor.created, patient.registered, prescription.issued
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
