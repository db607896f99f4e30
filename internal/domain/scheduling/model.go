package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no-show"
)

const (
	TypeInPerson = "in-person"
	TypeVideo    = "video"
	TypePhone    = "phone"
)

const DefaultDuration = 30

// Party is the joined name and contact of an appointment's patient or doctor.
type Party struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone,omitempty"`
	Specialization string  `json:"specialization,omitempty"`
}

type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	CreatedBy       *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	AppointmentDate string     `db:"appointment_date" json:"appointment_date"`
	AppointmentTime string     `db:"appointment_time" json:"appointment_time"`
	Duration        int        `db:"duration" json:"duration"`
	Type            string     `db:"type" json:"type"`
	Status          string     `db:"status" json:"status"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	VideoLink       *string    `db:"video_link" json:"video_link,omitempty"`
	MeetingID       *string    `db:"meeting_id" json:"meeting_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Patient *Party `db:"-" json:"patient,omitempty"`
	Doctor  *Party `db:"-" json:"doctor,omitempty"`
}

// Active reports whether the appointment holds its doctor's slot.
func (a *Appointment) Active() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// Refs are the ownership references checked by the access evaluator.
func (a *Appointment) Refs() auth.Refs {
	patientID, doctorID := a.PatientID, a.DoctorID
	return auth.Refs{PatientID: &patientID, DoctorID: &doctorID}
}

// Filter narrows an appointment listing. Zero fields do not filter.
type Filter struct {
	Status    string
	Date      string
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	// Ascending orders by date and time ascending; the default is most
	// recent first.
	Ascending bool
}

// Stats are the appointment counters of the admin dashboard.
type Stats struct {
	Total   int `json:"total_appointments"`
	Today   int `json:"today_appointments"`
	Pending int `json:"pending_appointments"`
}
