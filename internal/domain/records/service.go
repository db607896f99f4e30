package records

import (
	"bytes"
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

const recordTypes = "diagnosis treatment surgery allergy immunization vital_signs progress_note"

type Service struct {
	tx       db.TxRunner
	records  RecordRepository
	patients PatientLookup
	doctors  DoctorLookup
	access   *auth.Evaluator
	now      func() time.Time
}

func NewService(tx db.TxRunner, records RecordRepository, patients PatientLookup, doctors DoctorLookup, access *auth.Evaluator) *Service {
	return &Service{tx: tx, records: records, patients: patients, doctors: doctors, access: access, now: time.Now}
}

// -- Inputs --

type CreateInput struct {
	PatientID      *uuid.UUID      `json:"patient_id" validate:"required"`
	DoctorID       *uuid.UUID      `json:"doctor_id,omitempty"`
	RecordDate     *time.Time      `json:"record_date,omitempty"`
	RecordType     string          `json:"record_type" validate:"required,oneof=diagnosis treatment surgery allergy immunization vital_signs progress_note"`
	Title          string          `json:"title" validate:"required"`
	Description    *string         `json:"description,omitempty"`
	Diagnosis      *string         `json:"diagnosis,omitempty"`
	Treatment      *string         `json:"treatment,omitempty"`
	Medications    *string         `json:"medications,omitempty"`
	VitalSigns     json.RawMessage `json:"vital_signs,omitempty"`
	Attachments    json.RawMessage `json:"attachments,omitempty"`
	IsConfidential bool            `json:"is_confidential"`
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	RecordDate     *time.Time      `json:"record_date,omitempty"`
	RecordType     *string         `json:"record_type,omitempty" validate:"omitempty,oneof=diagnosis treatment surgery allergy immunization vital_signs progress_note"`
	Title          *string         `json:"title,omitempty" validate:"omitempty,min=1"`
	Description    *string         `json:"description,omitempty"`
	Diagnosis      *string         `json:"diagnosis,omitempty"`
	Treatment      *string         `json:"treatment,omitempty"`
	Medications    *string         `json:"medications,omitempty"`
	VitalSigns     json.RawMessage `json:"vital_signs,omitempty"`
	Attachments    json.RawMessage `json:"attachments,omitempty"`
	IsConfidential *bool           `json:"is_confidential,omitempty"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// attachmentList checks that raw is a JSON array.
func attachmentList(raw json.RawMessage) (json.RawMessage, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, apperr.InvalidInput("attachments must be a list")
	}
	return raw, nil
}

// -- Create --

// CreateRecord adds an entry to a patient's chart. A doctor's entry is
// attributed to them; admins may name a doctor or leave it empty.
func (s *Service) CreateRecord(ctx context.Context, p auth.Principal, in CreateInput) (*MedicalRecord, error) {
	if err := s.access.CheckRole(p, auth.ActionCreate, auth.KindMedicalRecord); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	m := &MedicalRecord{
		PatientID:      *in.PatientID,
		DoctorID:       in.DoctorID,
		RecordDate:     s.now(),
		RecordType:     in.RecordType,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Diagnosis:      in.Diagnosis,
		Treatment:      in.Treatment,
		Medications:    in.Medications,
		Attachments:    json.RawMessage(`[]`),
		IsConfidential: in.IsConfidential,
	}
	if p.Role == auth.RoleDoctor {
		m.DoctorID = p.DoctorID
	}
	if in.RecordDate != nil {
		m.RecordDate = *in.RecordDate
	}
	if present(in.VitalSigns) {
		m.VitalSigns = in.VitalSigns
	}
	if present(in.Attachments) {
		list, err := attachmentList(in.Attachments)
		if err != nil {
			return nil, err
		}
		m.Attachments = list
	}

	if err := s.access.Authorize(p, auth.ActionCreate, auth.KindMedicalRecord, auth.Proposed(m.Refs())).Err(); err != nil {
		return nil, err
	}

	var out *MedicalRecord
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, m.PatientID); err != nil {
			return err
		}
		if m.DoctorID != nil {
			if _, err := s.doctors.GetByID(ctx, *m.DoctorID); err != nil {
				return err
			}
		}
		if err := s.records.Create(ctx, m); err != nil {
			return err
		}
		created, err := s.records.GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// -- Read --

func (s *Service) load(ctx context.Context, p auth.Principal, id uuid.UUID, action auth.Action) (*MedicalRecord, error) {
	m, err := s.records.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, s.access.Authorize(p, action, auth.KindMedicalRecord, auth.Missing()).Err()
		}
		return nil, err
	}
	if err := s.access.Authorize(p, action, auth.KindMedicalRecord, auth.Row(m.Refs())).Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetRecord(ctx context.Context, p auth.Principal, id uuid.UUID) (*MedicalRecord, error) {
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

// ListRecords returns the records visible to p, most recent first.
// Confidential records are hidden from nurses.
func (s *Service) ListRecords(ctx context.Context, p auth.Principal, f Filter, pg pagination.Params) (*pagination.Page[*MedicalRecord], error) {
	if f.RecordType != "" && !validRecordTypes[f.RecordType] {
		return nil, apperr.InvalidInput("record_type must be one of [%s]", recordTypes)
	}
	d := s.access.Authorize(p, auth.ActionRead, auth.KindMedicalRecord, auth.Collection())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if !narrow(&f.PatientID, d.Scope.PatientID) || !narrow(&f.DoctorID, d.Scope.DoctorID) {
		return pagination.NewPage([]*MedicalRecord{}, 0, pg), nil
	}
	f.ExcludeConfidential = f.ExcludeConfidential || d.Scope.ExcludeConfidential
	items, total, err := s.records.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// ListPatientRecords is the calling patient's chart.
func (s *Service) ListPatientRecords(ctx context.Context, p auth.Principal, pg pagination.Params) (*pagination.Page[*MedicalRecord], error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	return s.ListRecords(ctx, p, Filter{PatientID: p.PatientID}, pg)
}

// -- Update --

func (s *Service) UpdateRecord(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*MedicalRecord, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	var attachments json.RawMessage
	if present(in.Attachments) {
		list, err := attachmentList(in.Attachments)
		if err != nil {
			return nil, err
		}
		attachments = list
	}

	var out *MedicalRecord
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.load(ctx, p, id, auth.ActionUpdate)
		if err != nil {
			return err
		}
		if in.RecordDate != nil {
			m.RecordDate = *in.RecordDate
		}
		if in.RecordType != nil {
			m.RecordType = *in.RecordType
		}
		if in.Title != nil {
			m.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			m.Description = in.Description
		}
		if in.Diagnosis != nil {
			m.Diagnosis = in.Diagnosis
		}
		if in.Treatment != nil {
			m.Treatment = in.Treatment
		}
		if in.Medications != nil {
			m.Medications = in.Medications
		}
		if present(in.VitalSigns) {
			m.VitalSigns = in.VitalSigns
		}
		if attachments != nil {
			m.Attachments = attachments
		}
		if in.IsConfidential != nil {
			m.IsConfidential = *in.IsConfidential
		}
		if err := s.records.Update(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}
