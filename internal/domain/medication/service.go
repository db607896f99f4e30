package medication

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/db"
	"github.com/mediconnect/mediconnect/internal/platform/validation"
	"github.com/mediconnect/mediconnect/pkg/pagination"
)

type Service struct {
	tx       db.TxRunner
	rx       PrescriptionRepository
	patients PatientLookup
	doctors  DoctorLookup
	appts    AppointmentLookup
	access   *auth.Evaluator
	now      func() time.Time
}

func NewService(tx db.TxRunner, rx PrescriptionRepository, patients PatientLookup, doctors DoctorLookup, appts AppointmentLookup, access *auth.Evaluator) *Service {
	return &Service{tx: tx, rx: rx, patients: patients, doctors: doctors, appts: appts, access: access, now: time.Now}
}

// -- Inputs --

type CreateInput struct {
	PatientID      *uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	MedicationName string     `json:"medication_name" validate:"required"`
	Dosage         string     `json:"dosage" validate:"required"`
	Frequency      string     `json:"frequency" validate:"required"`
	Duration       string     `json:"duration" validate:"required"`
	Instructions   *string    `json:"instructions,omitempty"`
	StartDate      string     `json:"start_date,omitempty" validate:"omitempty,date"`
	EndDate        *string    `json:"end_date,omitempty" validate:"omitempty,date"`
	Refills        *int       `json:"refills,omitempty" validate:"omitempty,gte=0"`
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	Dosage       *string `json:"dosage,omitempty" validate:"omitempty,min=1"`
	Frequency    *string `json:"frequency,omitempty" validate:"omitempty,min=1"`
	Duration     *string `json:"duration,omitempty" validate:"omitempty,min=1"`
	Instructions *string `json:"instructions,omitempty"`
	EndDate      *string `json:"end_date,omitempty" validate:"omitempty,date"`
	IsActive     *bool   `json:"is_active,omitempty"`
	Refills      *int    `json:"refills,omitempty" validate:"omitempty,gte=0"`
}

func checkDates(start string, end *string) error {
	if end != nil && *end < start {
		return apperr.InvalidInput("end_date must not be before start_date")
	}
	return nil
}

// -- Create --

// CreatePrescription records a prescription written by the calling doctor.
// Admins must name the prescribing doctor.
func (s *Service) CreatePrescription(ctx context.Context, p auth.Principal, in CreateInput) (*Prescription, error) {
	if err := s.access.CheckRole(p, auth.ActionCreate, auth.KindPrescription); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	doctorID := in.DoctorID
	if doctorID == nil {
		doctorID = p.DoctorID
	}
	if doctorID == nil {
		return nil, apperr.InvalidInput("doctor_id is required")
	}

	rx := &Prescription{
		PatientID:      *in.PatientID,
		DoctorID:       *doctorID,
		AppointmentID:  in.AppointmentID,
		MedicationName: strings.TrimSpace(in.MedicationName),
		Dosage:         strings.TrimSpace(in.Dosage),
		Frequency:      strings.TrimSpace(in.Frequency),
		Duration:       strings.TrimSpace(in.Duration),
		Instructions:   in.Instructions,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		IsActive:       true,
	}
	if in.Refills != nil {
		rx.Refills = *in.Refills
	}
	if rx.StartDate == "" {
		rx.StartDate = s.now().Format(validation.DateLayout)
	}
	if err := checkDates(rx.StartDate, rx.EndDate); err != nil {
		return nil, err
	}

	if err := s.access.Authorize(p, auth.ActionCreate, auth.KindPrescription, auth.Proposed(rx.Refs())).Err(); err != nil {
		return nil, err
	}

	var out *Prescription
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, rx.PatientID); err != nil {
			return err
		}
		if _, err := s.doctors.GetByID(ctx, rx.DoctorID); err != nil {
			return err
		}
		if rx.AppointmentID != nil {
			appt, err := s.appts.GetByID(ctx, *rx.AppointmentID)
			if err != nil {
				return err
			}
			if appt.DoctorID != rx.DoctorID {
				return apperr.NotFound("appointment not found")
			}
			if appt.PatientID != rx.PatientID {
				return apperr.InvalidInput("appointment belongs to another patient")
			}
		}
		if err := s.rx.Create(ctx, rx); err != nil {
			return err
		}
		created, err := s.rx.GetByID(ctx, rx.ID)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// -- Read --

func (s *Service) load(ctx context.Context, p auth.Principal, id uuid.UUID, action auth.Action) (*Prescription, error) {
	rx, err := s.rx.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, s.access.Authorize(p, action, auth.KindPrescription, auth.Missing()).Err()
		}
		return nil, err
	}
	if err := s.access.Authorize(p, action, auth.KindPrescription, auth.Row(rx.Refs())).Err(); err != nil {
		return nil, err
	}
	return rx, nil
}

func (s *Service) GetPrescription(ctx context.Context, p auth.Principal, id uuid.UUID) (*Prescription, error) {
	return s.load(ctx, p, id, auth.ActionRead)
}

// narrow intersects a requested id filter with the caller's scope. It
// reports false when the two cannot both hold.
func narrow(requested **uuid.UUID, scope *uuid.UUID) bool {
	if scope == nil {
		return true
	}
	if *requested != nil && **requested != *scope {
		return false
	}
	id := *scope
	*requested = &id
	return true
}

// ListPrescriptions returns the prescriptions visible to p, newest first.
func (s *Service) ListPrescriptions(ctx context.Context, p auth.Principal, f Filter, pg pagination.Params) (*pagination.Page[*Prescription], error) {
	d := s.access.Authorize(p, auth.ActionRead, auth.KindPrescription, auth.Collection())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if !narrow(&f.PatientID, d.Scope.PatientID) || !narrow(&f.DoctorID, d.Scope.DoctorID) {
		return pagination.NewPage([]*Prescription{}, 0, pg), nil
	}
	items, total, err := s.rx.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// ListPatientPrescriptions is the calling patient's medication history.
func (s *Service) ListPatientPrescriptions(ctx context.Context, p auth.Principal, pg pagination.Params) (*pagination.Page[*Prescription], error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	return s.ListPrescriptions(ctx, p, Filter{PatientID: p.PatientID}, pg)
}

// -- Update --

// UpdatePrescription merges in. Invalid input is rejected before the row is
// read, so a rejected update never changes anything.
func (s *Service) UpdatePrescription(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*Prescription, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var out *Prescription
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rx, err := s.load(ctx, p, id, auth.ActionUpdate)
		if err != nil {
			return err
		}
		if in.Dosage != nil {
			rx.Dosage = strings.TrimSpace(*in.Dosage)
		}
		if in.Frequency != nil {
			rx.Frequency = strings.TrimSpace(*in.Frequency)
		}
		if in.Duration != nil {
			rx.Duration = strings.TrimSpace(*in.Duration)
		}
		if in.Instructions != nil {
			rx.Instructions = in.Instructions
		}
		if in.EndDate != nil {
			rx.EndDate = in.EndDate
		}
		if in.IsActive != nil {
			rx.IsActive = *in.IsActive
		}
		if in.Refills != nil {
			rx.Refills = *in.Refills
		}
		if err := checkDates(rx.StartDate, rx.EndDate); err != nil {
			return err
		}
		if err := s.rx.Update(ctx, rx); err != nil {
			return err
		}
		out = rx
		return nil
	})
	return out, err
}
