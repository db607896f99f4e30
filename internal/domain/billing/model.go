package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/money"
)

const (
	StatusPending   = "pending"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// LineItem is one billed service.
type LineItem struct {
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
}

// Payer is the joined name and email of the billed patient.
type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Bill struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	PatientID        uuid.UUID    `db:"patient_id" json:"patient_id"`
	AppointmentID    *uuid.UUID   `db:"appointment_id" json:"appointment_id,omitempty"`
	BillDate         string       `db:"bill_date" json:"bill_date"`
	DueDate          *string      `db:"due_date" json:"due_date,omitempty"`
	TotalAmount      money.Amount `db:"total_amount" json:"total_amount"`
	PaidAmount       money.Amount `db:"paid_amount" json:"paid_amount"`
	InsuranceCovered money.Amount `db:"insurance_covered" json:"insurance_covered"`
	Balance          money.Amount `db:"balance" json:"balance"`
	Services         []LineItem   `db:"services" json:"services"`
	Status           string       `db:"status" json:"status"`
	PaymentMethod    *string      `db:"payment_method" json:"payment_method,omitempty"`
	PaymentDate      *time.Time   `db:"payment_date" json:"payment_date,omitempty"`
	Notes            *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`

	Patient *Payer `db:"-" json:"patient,omitempty"`
}

func (b *Bill) Refs() auth.Refs {
	patientID := b.PatientID
	return auth.Refs{PatientID: &patientID}
}

// Filter narrows bill listings and summaries. Zero fields do not filter.
type Filter struct {
	PatientID     *uuid.UUID
	AppointmentID *uuid.UUID
	Status        string
	// From and To bound bill_date, both inclusive.
	From string
	To   string
}
