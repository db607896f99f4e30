package diagnostics

import (
	"context"
	"encoding/json"
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
	labs     LabResultRepository
	patients PatientLookup
	appts    AppointmentLookup
	access   *auth.Evaluator
	now      func() time.Time
}

func NewService(tx db.TxRunner, labs LabResultRepository, patients PatientLookup, appts AppointmentLookup, access *auth.Evaluator) *Service {
	return &Service{tx: tx, labs: labs, patients: patients, appts: appts, access: access, now: time.Now}
}

// -- Inputs --

type CreateInput struct {
	PatientID      *uuid.UUID      `json:"patient_id" validate:"required"`
	DoctorID       *uuid.UUID      `json:"doctor_id,omitempty"`
	AppointmentID  *uuid.UUID      `json:"appointment_id,omitempty"`
	TestName       string          `json:"test_name" validate:"required"`
	TestType       string          `json:"test_type" validate:"required"`
	TestDate       *time.Time      `json:"test_date,omitempty"`
	ResultDate     *time.Time      `json:"result_date,omitempty"`
	Results        json.RawMessage `json:"results,omitempty"`
	NormalRange    json.RawMessage `json:"normal_range,omitempty"`
	Interpretation *string         `json:"interpretation,omitempty"`
	LabNotes       *string         `json:"lab_notes,omitempty"`
	FilePath       *string         `json:"file_path,omitempty"`
	Status         string          `json:"status,omitempty" validate:"omitempty,oneof=pending completed abnormal critical"`
	IsUrgent       *bool           `json:"is_urgent,omitempty"`
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	ResultDate     *time.Time      `json:"result_date,omitempty"`
	Results        json.RawMessage `json:"results,omitempty"`
	NormalRange    json.RawMessage `json:"normal_range,omitempty"`
	Interpretation *string         `json:"interpretation,omitempty"`
	LabNotes       *string         `json:"lab_notes,omitempty"`
	FilePath       *string         `json:"file_path,omitempty"`
	Status         *string         `json:"status,omitempty" validate:"omitempty,oneof=pending completed abnormal critical"`
	IsUrgent       *bool           `json:"is_urgent,omitempty"`
}

// present reports whether a JSON document was supplied. An explicit null
// counts as absent.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// -- Create --

// CreateLabResult records a test result. A doctor's result is attributed to
// them; a nurse's result is recorded without a doctor. Unless given, the
// result is completed, taken and reported now, and not urgent. Pending or
// future tests get no result date.
func (s *Service) CreateLabResult(ctx context.Context, p auth.Principal, in CreateInput) (*LabResult, error) {
	if err := s.access.CheckRole(p, auth.ActionCreate, auth.KindLabResult); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	now := s.now()
	l := &LabResult{
		PatientID:      *in.PatientID,
		DoctorID:       in.DoctorID,
		AppointmentID:  in.AppointmentID,
		TestName:       strings.TrimSpace(in.TestName),
		TestType:       strings.TrimSpace(in.TestType),
		TestDate:       now,
		ResultDate:     &now,
		Interpretation: in.Interpretation,
		LabNotes:       in.LabNotes,
		FilePath:       in.FilePath,
		Status:         StatusCompleted,
	}
	switch p.Role {
	case auth.RoleDoctor:
		l.DoctorID = p.DoctorID
	case auth.RoleNurse:
		l.DoctorID = nil
	}
	if in.TestDate != nil {
		l.TestDate = *in.TestDate
	}
	if in.Status != "" {
		l.Status = in.Status
	}
	switch {
	case in.ResultDate != nil:
		l.ResultDate = in.ResultDate
	case l.Status == StatusPending || l.TestDate.After(now):
		l.ResultDate = nil
	}
	if l.ResultDate != nil && l.ResultDate.Before(l.TestDate) {
		return nil, apperr.InvalidInput("result_date must not be before test_date")
	}
	if present(in.Results) {
		l.Results = in.Results
	}
	if present(in.NormalRange) {
		l.NormalRange = in.NormalRange
	}
	if in.IsUrgent != nil {
		l.IsUrgent = *in.IsUrgent
	}

	if err := s.access.Authorize(p, auth.ActionCreate, auth.KindLabResult, auth.Proposed(l.Refs())).Err(); err != nil {
		return nil, err
	}

	var out *LabResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, l.PatientID); err != nil {
			return err
		}
		if l.AppointmentID != nil {
			appt, err := s.appts.GetByID(ctx, *l.AppointmentID)
			if err != nil {
				return err
			}
			if appt.PatientID != l.PatientID {
				return apperr.InvalidInput("appointment belongs to another patient")
			}
		}
		if err := s.labs.Create(ctx, l); err != nil {
			return err
		}
		created, err := s.labs.GetByID(ctx, l.ID)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// -- Read --

func (s *Service) load(ctx context.Context, p auth.Principal, id uuid.UUID, action auth.Action) (*LabResult, error) {
	l, err := s.labs.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, s.access.Authorize(p, action, auth.KindLabResult, auth.Missing()).Err()
		}
		return nil, err
	}
	if err := s.access.Authorize(p, action, auth.KindLabResult, auth.Row(l.Refs())).Err(); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) GetLabResult(ctx context.Context, p auth.Principal, id uuid.UUID) (*LabResult, error) {
	return s.load(ctx, p, id, auth.ActionRead)
}

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

// ListLabResults returns the results visible to p, most recent test first.
func (s *Service) ListLabResults(ctx context.Context, p auth.Principal, f Filter, pg pagination.Params) (*pagination.Page[*LabResult], error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, apperr.InvalidInput("invalid status: %s", f.Status)
	}
	d := s.access.Authorize(p, auth.ActionRead, auth.KindLabResult, auth.Collection())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if !narrow(&f.PatientID, d.Scope.PatientID) || !narrow(&f.DoctorID, d.Scope.DoctorID) {
		return pagination.NewPage([]*LabResult{}, 0, pg), nil
	}
	items, total, err := s.labs.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// ListPatientLabResults is the calling patient's results.
func (s *Service) ListPatientLabResults(ctx context.Context, p auth.Principal, pg pagination.Params) (*pagination.Page[*LabResult], error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	return s.ListLabResults(ctx, p, Filter{PatientID: p.PatientID}, pg)
}

// -- Update --

func (s *Service) UpdateLabResult(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*LabResult, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var out *LabResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, p, id, auth.ActionUpdate)
		if err != nil {
			return err
		}
		if in.ResultDate != nil {
			if in.ResultDate.Before(l.TestDate) {
				return apperr.InvalidInput("result_date must not be before test_date")
			}
			l.ResultDate = in.ResultDate
		}
		if present(in.Results) {
			l.Results = in.Results
		}
		if present(in.NormalRange) {
			l.NormalRange = in.NormalRange
		}
		if in.Interpretation != nil {
			l.Interpretation = in.Interpretation
		}
		if in.LabNotes != nil {
			l.LabNotes = in.LabNotes
		}
		if in.FilePath != nil {
			l.FilePath = in.FilePath
		}
		if in.Status != nil {
			l.Status = *in.Status
		}
		if in.IsUrgent != nil {
			l.IsUrgent = *in.IsUrgent
		}
		if err := s.labs.Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}
