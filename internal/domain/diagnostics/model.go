package diagnostics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusAbnormal  = "abnormal"
	StatusCritical  = "critical"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusCompleted: true, StatusAbnormal: true, StatusCritical: true,
}

// Person is the joined name and email of a lab result's patient or doctor.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type LabResult struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID       *uuid.UUID      `db:"doctor_id" json:"doctor_id,omitempty"`
	AppointmentID  *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	TestName       string          `db:"test_name" json:"test_name"`
	TestType       string          `db:"test_type" json:"test_type"`
	TestDate       time.Time       `db:"test_date" json:"test_date"`
	ResultDate     *time.Time      `db:"result_date" json:"result_date,omitempty"`
	Results        json.RawMessage `db:"results" json:"results,omitempty"`
	NormalRange    json.RawMessage `db:"normal_range" json:"normal_range,omitempty"`
	Interpretation *string         `db:"interpretation" json:"interpretation,omitempty"`
	LabNotes       *string         `db:"lab_notes" json:"lab_notes,omitempty"`
	FilePath       *string         `db:"file_path" json:"file_path,omitempty"`
	Status         string          `db:"status" json:"status"`
	IsUrgent       bool            `db:"is_urgent" json:"is_urgent"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Patient *Person `db:"-" json:"patient,omitempty"`
	Doctor  *Person `db:"-" json:"doctor,omitempty"`
}

func (l *LabResult) Refs() auth.Refs {
	patientID := l.PatientID
	return auth.Refs{PatientID: &patientID, DoctorID: l.DoctorID}
}

// Filter narrows a lab result listing. Zero fields do not filter.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	TestType  string
}
