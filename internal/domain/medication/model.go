package medication

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

// Person is the joined name and email of a prescription's patient or doctor.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Prescription struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Frequency      string     `db:"frequency" json:"frequency"`
	Duration       string     `db:"duration" json:"duration"`
	Instructions   *string    `db:"instructions" json:"instructions,omitempty"`
	StartDate      string     `db:"start_date" json:"start_date"`
	EndDate        *string    `db:"end_date" json:"end_date,omitempty"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	Refills        int        `db:"refills" json:"refills"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	Patient *Person `db:"-" json:"patient,omitempty"`
	Doctor  *Person `db:"-" json:"doctor,omitempty"`
}

func (rx *Prescription) Refs() auth.Refs {
	patientID, doctorID := rx.PatientID, rx.DoctorID
	return auth.Refs{PatientID: &patientID, DoctorID: &doctorID}
}

// Filter narrows a prescription listing. Zero fields do not filter.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	IsActive  *bool
}
