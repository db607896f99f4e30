package records

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

const (
	TypeDiagnosis    = "diagnosis"
	TypeTreatment    = "treatment"
	TypeSurgery      = "surgery"
	TypeAllergy      = "allergy"
	TypeImmunization = "immunization"
	TypeVitalSigns   = "vital_signs"
	TypeProgressNote = "progress_note"
)

var validRecordTypes = map[string]bool{
	TypeDiagnosis: true, TypeTreatment: true, TypeSurgery: true, TypeAllergy: true,
	TypeImmunization: true, TypeVitalSigns: true, TypeProgressNote: true,
}

// Person is the joined name of a record's patient or doctor.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type MedicalRecord struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID       *uuid.UUID      `db:"doctor_id" json:"doctor_id,omitempty"`
	RecordDate     time.Time       `db:"record_date" json:"record_date"`
	RecordType     string          `db:"record_type" json:"record_type"`
	Title          string          `db:"title" json:"title"`
	Description    *string         `db:"description" json:"description,omitempty"`
	Diagnosis      *string         `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment      *string         `db:"treatment" json:"treatment,omitempty"`
	Medications    *string         `db:"medications" json:"medications,omitempty"`
	VitalSigns     json.RawMessage `db:"vital_signs" json:"vital_signs,omitempty"`
	Attachments    json.RawMessage `db:"attachments" json:"attachments"`
	IsConfidential bool            `db:"is_confidential" json:"is_confidential"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Patient *Person `db:"-" json:"patient,omitempty"`
	Doctor  *Person `db:"-" json:"doctor,omitempty"`
}

func (r *MedicalRecord) Refs() auth.Refs {
	patientID := r.PatientID
	return auth.Refs{PatientID: &patientID, DoctorID: r.DoctorID, Confidential: r.IsConfidential}
}

// Filter narrows a record listing. Zero fields do not filter.
type Filter struct {
	PatientID           *uuid.UUID
	DoctorID            *uuid.UUID
	RecordType          string
	ExcludeConfidential bool
}
