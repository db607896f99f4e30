package scheduling

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

var validAppointmentStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// terminalStatuses end an appointment's lifecycle.
var terminalStatuses = map[string]bool{
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// ConflictObserver is told about every request rejected for a taken slot.
type ConflictObserver interface {
	IncConflict()
}

type Service struct {
	tx       db.TxRunner
	appts    AppointmentRepository
	patients PatientLookup
	checker  *ConflictChecker
	access   *auth.Evaluator
	observer ConflictObserver
	now      func() time.Time
}

func NewService(tx db.TxRunner, appts AppointmentRepository, patients PatientLookup, doctors DoctorLookup, access *auth.Evaluator) *Service {
	return &Service{
		tx:       tx,
		appts:    appts,
		patients: patients,
		checker:  NewConflictChecker(doctors, appts),
		access:   access,
		now:      time.Now,
	}
}

func (s *Service) SetConflictObserver(o ConflictObserver) {
	s.observer = o
}

// Checker exposes the slot checker to other packages.
func (s *Service) Checker() *ConflictChecker {
	return s.checker
}

func (s *Service) observe(err error) {
	if s.observer != nil && apperr.KindOf(err) == apperr.KindConflict {
		s.observer.IncConflict()
	}
}

// -- Inputs --

type CreateInput struct {
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	AppointmentDate string     `json:"appointment_date" validate:"required,date"`
	AppointmentTime string     `json:"appointment_time" validate:"required,clock"`
	Duration        *int       `json:"duration,omitempty" validate:"omitempty,gt=0"`
	Type            string     `json:"type,omitempty" validate:"omitempty,oneof=in-person video phone"`
	Reason          *string    `json:"reason,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	VideoLink       *string    `json:"video_link,omitempty"`
	MeetingID       *string    `json:"meeting_id,omitempty"`
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	AppointmentDate *string `json:"appointment_date,omitempty" validate:"omitempty,date"`
	AppointmentTime *string `json:"appointment_time,omitempty" validate:"omitempty,clock"`
	Duration        *int    `json:"duration,omitempty" validate:"omitempty,gt=0"`
	Type            *string `json:"type,omitempty" validate:"omitempty,oneof=in-person video phone"`
	Reason          *string `json:"reason,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	VideoLink       *string `json:"video_link,omitempty"`
	MeetingID       *string `json:"meeting_id,omitempty"`
}

type StatusInput struct {
	Status string  `json:"status" validate:"required,oneof=scheduled confirmed in-progress completed cancelled no-show"`
	Notes  *string `json:"notes,omitempty"`
}

// apply merges in into a and returns the names of the fields it set.
func (in UpdateInput) apply(a *Appointment) ([]string, error) {
	var fields []string
	if in.AppointmentDate != nil {
		a.AppointmentDate = *in.AppointmentDate
		fields = append(fields, "appointment_date")
	}
	if in.AppointmentTime != nil {
		clock, err := validation.NormalizeClock(*in.AppointmentTime)
		if err != nil {
			return nil, err
		}
		a.AppointmentTime = clock
		fields = append(fields, "appointment_time")
	}
	if in.Duration != nil {
		a.Duration = *in.Duration
		fields = append(fields, "duration")
	}
	if in.Type != nil {
		a.Type = *in.Type
		fields = append(fields, "type")
	}
	if in.Reason != nil {
		a.Reason = in.Reason
		fields = append(fields, "reason")
	}
	if in.Notes != nil {
		a.Notes = in.Notes
		fields = append(fields, "notes")
	}
	if in.VideoLink != nil {
		a.VideoLink = in.VideoLink
		fields = append(fields, "video_link")
	}
	if in.MeetingID != nil {
		a.MeetingID = in.MeetingID
		fields = append(fields, "meeting_id")
	}
	return fields, nil
}

// -- Create --

// CreateAppointment books a slot. Patients book for themselves and doctors
// for their own calendar when the ids are omitted.
func (s *Service) CreateAppointment(ctx context.Context, p auth.Principal, in CreateInput) (*Appointment, error) {
	if err := s.access.CheckRole(p, auth.ActionCreate, auth.KindAppointment); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if in.PatientID == nil {
		in.PatientID = p.PatientID
	}
	if in.DoctorID == nil {
		in.DoctorID = p.DoctorID
	}
	if in.PatientID == nil {
		return nil, apperr.InvalidInput("patient_id is required")
	}
	if in.DoctorID == nil {
		return nil, apperr.InvalidInput("doctor_id is required")
	}
	clock, err := validation.NormalizeClock(in.AppointmentTime)
	if err != nil {
		return nil, err
	}

	createdBy := p.UserID
	a := &Appointment{
		PatientID:       *in.PatientID,
		DoctorID:        *in.DoctorID,
		CreatedBy:       &createdBy,
		AppointmentDate: in.AppointmentDate,
		AppointmentTime: clock,
		Duration:        DefaultDuration,
		Type:            TypeInPerson,
		Status:          StatusScheduled,
		Reason:          in.Reason,
		Notes:           in.Notes,
		VideoLink:       in.VideoLink,
		MeetingID:       in.MeetingID,
	}
	if in.Duration != nil {
		a.Duration = *in.Duration
	}
	if in.Type != "" {
		a.Type = in.Type
	}
	if err := s.access.Authorize(p, auth.ActionCreate, auth.KindAppointment, auth.Proposed(a.Refs())).Err(); err != nil {
		return nil, err
	}

	var out *Appointment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, a.PatientID); err != nil {
			return err
		}
		if err := s.checker.CheckSlot(ctx, a.DoctorID, a.AppointmentDate, a.AppointmentTime, nil); err != nil {
			return err
		}
		if err := s.appts.Create(ctx, a); err != nil {
			return err
		}
		created, err := s.appts.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		s.observe(err)
		return nil, err
	}
	return out, nil
}

// -- Read --

// load fetches an appointment and authorizes action on it. A missing row is
// reported as not-found before any permission check.
func (s *Service) load(ctx context.Context, p auth.Principal, id uuid.UUID, action auth.Action) (*Appointment, auth.Decision, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, auth.Decision{}, s.access.Authorize(p, action, auth.KindAppointment, auth.Missing()).Err()
		}
		return nil, auth.Decision{}, err
	}
	d := s.access.Authorize(p, action, auth.KindAppointment, auth.Row(a.Refs()))
	if err := d.Err(); err != nil {
		return nil, d, err
	}
	return a, d, nil
}

func (s *Service) GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, _, err := s.load(ctx, p, id, auth.ActionRead)
	return a, err
}

// ListAppointments returns the appointments visible to p, most recent first
// unless f asks otherwise.
func (s *Service) ListAppointments(ctx context.Context, p auth.Principal, f Filter, pg pagination.Params) (*pagination.Page[*Appointment], error) {
	if f.Status != "" && !validAppointmentStatuses[f.Status] {
		return nil, apperr.InvalidInput("invalid status: %s", f.Status)
	}
	if f.Date != "" && !validation.IsDate(f.Date) {
		return nil, apperr.InvalidInput("date must be YYYY-MM-DD")
	}
	d := s.access.Authorize(p, auth.ActionRead, auth.KindAppointment, auth.Collection())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if !narrow(&f.PatientID, d.Scope.PatientID) || !narrow(&f.DoctorID, d.Scope.DoctorID) {
		return pagination.NewPage([]*Appointment{}, 0, pg), nil
	}
	items, total, err := s.appts.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
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

// ListDoctorAppointments is the calling doctor's calendar, soonest first.
func (s *Service) ListDoctorAppointments(ctx context.Context, p auth.Principal, status, date string, pg pagination.Params) (*pagination.Page[*Appointment], error) {
	if p.DoctorID == nil {
		return nil, apperr.NotFound("doctor profile not found")
	}
	return s.ListAppointments(ctx, p, Filter{Status: status, Date: date, DoctorID: p.DoctorID, Ascending: true}, pg)
}

// ListPatientAppointments is the calling patient's history, most recent first.
func (s *Service) ListPatientAppointments(ctx context.Context, p auth.Principal, pg pagination.Params) (*pagination.Page[*Appointment], error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	return s.ListAppointments(ctx, p, Filter{PatientID: p.PatientID}, pg)
}

// -- Update --

// UpdateAppointment merges in. Moving the appointment re-checks the slot,
// excluding the appointment itself.
func (s *Service) UpdateAppointment(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, d, err := s.load(ctx, p, id, auth.ActionUpdate)
		if err != nil {
			return err
		}
		prevDate, prevTime := a.AppointmentDate, a.AppointmentTime
		fields, err := in.apply(a)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			out = a
			return nil
		}
		if err := d.CheckFields(fields); err != nil {
			return err
		}
		if a.AppointmentDate != prevDate || a.AppointmentTime != prevTime {
			if !a.Active() {
				return apperr.InvalidState("cannot reschedule a %s appointment", a.Status)
			}
			if err := s.checker.CheckSlot(ctx, a.DoctorID, a.AppointmentDate, a.AppointmentTime, &a.ID); err != nil {
				return err
			}
		}
		if err := s.appts.Update(ctx, a); err != nil {
			return err
		}
		updated, err := s.appts.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		s.observe(err)
		return nil, err
	}
	return out, nil
}

// CancelAppointment frees the slot. A non-empty reason replaces the notes
// with "Cancelled: <reason>".
func (s *Service) CancelAppointment(ctx context.Context, p auth.Principal, id uuid.UUID, reason string) (*Appointment, error) {
	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, d, err := s.load(ctx, p, id, auth.ActionTransition)
		if err != nil {
			return err
		}
		if !d.CanTransitionTo(StatusCancelled) {
			return apperr.Forbidden("not permitted to cancel this appointment")
		}
		if terminalStatuses[a.Status] {
			return apperr.InvalidState("appointment is already %s", a.Status)
		}
		a.Status = StatusCancelled
		if reason = strings.TrimSpace(reason); reason != "" {
			notes := "Cancelled: " + reason
			a.Notes = &notes
		}
		if err := s.appts.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// UpdateStatus moves an appointment through its lifecycle. Completed,
// cancelled and no-show appointments are final.
func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, in StatusInput) (*Appointment, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, d, err := s.load(ctx, p, id, auth.ActionTransition)
		if err != nil {
			return err
		}
		if !d.CanTransitionTo(in.Status) {
			return apperr.Forbidden("not permitted to set status %s", in.Status)
		}
		if a.Status == in.Status && in.Notes == nil {
			out = a
			return nil
		}
		if terminalStatuses[a.Status] && a.Status != in.Status {
			return apperr.InvalidState("cannot change status of a %s appointment", a.Status)
		}
		reactivating := !a.Active() && (in.Status == StatusScheduled || in.Status == StatusConfirmed)
		if reactivating {
			if err := s.checker.CheckSlot(ctx, a.DoctorID, a.AppointmentDate, a.AppointmentTime, &a.ID); err != nil {
				return err
			}
		}
		a.Status = in.Status
		if in.Notes != nil {
			a.Notes = in.Notes
		}
		if err := s.appts.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		s.observe(err)
		return nil, err
	}
	return out, nil
}

// -- Dashboard --

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.appts.Stats(ctx, s.now().Format(validation.DateLayout))
}

func (s *Service) Recent(ctx context.Context, n int) ([]*Appointment, error) {
	return s.appts.Recent(ctx, n)
}
