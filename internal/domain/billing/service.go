package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/db"
	"github.com/mediconnect/mediconnect/internal/platform/money"
	"github.com/mediconnect/mediconnect/internal/platform/validation"
	"github.com/mediconnect/mediconnect/pkg/pagination"
)

var validBillStatuses = map[string]bool{
	StatusPending: true, StatusPartial: true, StatusPaid: true, StatusOverdue: true, StatusCancelled: true,
}

type Service struct {
	tx       db.TxRunner
	bills    BillRepository
	appts    AppointmentLookup
	patients PatientLookup
	access   *auth.Evaluator
	now      func() time.Time
}

func NewService(tx db.TxRunner, bills BillRepository, appts AppointmentLookup, patients PatientLookup, access *auth.Evaluator) *Service {
	return &Service{tx: tx, bills: bills, appts: appts, patients: patients, access: access, now: time.Now}
}

// -- Inputs --

type LineItemInput struct {
	Description string        `json:"description" validate:"required"`
	Amount      *money.Amount `json:"amount" validate:"required"`
}

type CreateInput struct {
	PatientID        *uuid.UUID      `json:"patient_id" validate:"required"`
	AppointmentID    *uuid.UUID      `json:"appointment_id,omitempty"`
	BillDate         string          `json:"bill_date,omitempty" validate:"omitempty,date"`
	DueDate          *string         `json:"due_date,omitempty" validate:"omitempty,date"`
	TotalAmount      *money.Amount   `json:"total_amount,omitempty"`
	InsuranceCovered *money.Amount   `json:"insurance_covered,omitempty"`
	Services         []LineItemInput `json:"services,omitempty" validate:"dive"`
	Notes            *string         `json:"notes,omitempty"`
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	DueDate          *string         `json:"due_date,omitempty" validate:"omitempty,date"`
	TotalAmount      *money.Amount   `json:"total_amount,omitempty"`
	PaidAmount       *money.Amount   `json:"paid_amount,omitempty"`
	InsuranceCovered *money.Amount   `json:"insurance_covered,omitempty"`
	Services         []LineItemInput `json:"services,omitempty" validate:"dive"`
	Status           *string         `json:"status,omitempty" validate:"omitempty,oneof=pending partial paid overdue cancelled"`
	PaymentMethod    *string         `json:"payment_method,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
}

type PaymentInput struct {
	Amount        *money.Amount `json:"amount" validate:"required"`
	PaymentMethod string        `json:"payment_method" validate:"required"`
}

func lineItems(in []LineItemInput) ([]LineItem, money.Amount, error) {
	items := make([]LineItem, 0, len(in))
	sum := money.Zero()
	for _, li := range in {
		if li.Amount.IsNegative() {
			return nil, sum, apperr.InvalidInput("service amounts must not be negative")
		}
		items = append(items, LineItem{Description: strings.TrimSpace(li.Description), Amount: *li.Amount})
		sum = sum.Add(*li.Amount)
	}
	return items, sum, nil
}

type namedAmount struct {
	name   string
	amount *money.Amount
}

func nonNegative(amounts ...namedAmount) error {
	for _, a := range amounts {
		if a.amount != nil && a.amount.IsNegative() {
			return apperr.InvalidInput("%s must not be negative", a.name)
		}
	}
	return nil
}

// -- Create --

// CreateBill issues a bill. The total defaults to the sum of the services.
func (s *Service) CreateBill(ctx context.Context, p auth.Principal, in CreateInput) (*Bill, error) {
	if err := s.access.CheckRole(p, auth.ActionCreate, auth.KindBill); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := nonNegative(
		namedAmount{"total_amount", in.TotalAmount},
		namedAmount{"insurance_covered", in.InsuranceCovered},
	); err != nil {
		return nil, err
	}
	items, sum, err := lineItems(in.Services)
	if err != nil {
		return nil, err
	}
	if in.TotalAmount == nil && len(items) == 0 {
		return nil, apperr.InvalidInput("total_amount or services is required")
	}

	b := &Bill{
		PatientID:        *in.PatientID,
		AppointmentID:    in.AppointmentID,
		BillDate:         in.BillDate,
		DueDate:          in.DueDate,
		TotalAmount:      sum,
		PaidAmount:       money.Zero(),
		InsuranceCovered: money.Zero(),
		Services:         items,
		Status:           StatusPending,
		Notes:            in.Notes,
	}
	if b.BillDate == "" {
		b.BillDate = s.now().Format(validation.DateLayout)
	}
	if b.DueDate != nil && *b.DueDate < b.BillDate {
		return nil, apperr.InvalidInput("due_date must not be before bill_date")
	}
	if in.TotalAmount != nil {
		b.TotalAmount = *in.TotalAmount
	}
	if in.InsuranceCovered != nil {
		b.InsuranceCovered = *in.InsuranceCovered
	}
	Recompute(b)

	if err := s.access.Authorize(p, auth.ActionCreate, auth.KindBill, auth.Proposed(b.Refs())).Err(); err != nil {
		return nil, err
	}

	var out *Bill
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, b.PatientID); err != nil {
			return err
		}
		if b.AppointmentID != nil {
			appt, err := s.appts.GetByID(ctx, *b.AppointmentID)
			if err != nil {
				return err
			}
			if appt.PatientID != b.PatientID {
				return apperr.InvalidInput("appointment does not belong to the billed patient")
			}
		}
		if err := s.bills.Create(ctx, b); err != nil {
			return err
		}
		created, err := s.bills.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// -- Read --

func (s *Service) load(ctx context.Context, p auth.Principal, id uuid.UUID, action auth.Action) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, s.access.Authorize(p, action, auth.KindBill, auth.Missing()).Err()
		}
		return nil, err
	}
	if err := s.access.Authorize(p, action, auth.KindBill, auth.Row(b.Refs())).Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) GetBill(ctx context.Context, p auth.Principal, id uuid.UUID) (*Bill, error) {
	return s.load(ctx, p, id, auth.ActionRead)
}

func (s *Service) checkFilter(f Filter) error {
	if f.Status != "" && !validBillStatuses[f.Status] {
		return apperr.InvalidInput("invalid status: %s", f.Status)
	}
	if f.From != "" && !validation.IsDate(f.From) {
		return apperr.InvalidInput("start_date must be YYYY-MM-DD")
	}
	if f.To != "" && !validation.IsDate(f.To) {
		return apperr.InvalidInput("end_date must be YYYY-MM-DD")
	}
	return nil
}

// ListBills returns the bills visible to p, most recent first.
func (s *Service) ListBills(ctx context.Context, p auth.Principal, f Filter, pg pagination.Params) (*pagination.Page[*Bill], error) {
	if err := s.checkFilter(f); err != nil {
		return nil, err
	}
	d := s.access.Authorize(p, auth.ActionRead, auth.KindBill, auth.Collection())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if sc := d.Scope.PatientID; sc != nil {
		if f.PatientID != nil && *f.PatientID != *sc {
			return pagination.NewPage([]*Bill{}, 0, pg), nil
		}
		f.PatientID = sc
	}
	items, total, err := s.bills.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// Statement is a page of bills with the summary of every matching bill.
type Statement struct {
	Bills   *pagination.Page[*Bill] `json:"bills"`
	Summary Summary                 `json:"summary"`
}

// PatientStatement lists the calling patient's bills with their totals.
func (s *Service) PatientStatement(ctx context.Context, p auth.Principal, pg pagination.Params) (*Statement, error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	f := Filter{PatientID: p.PatientID}
	page, err := s.ListBills(ctx, p, f, pg)
	if err != nil {
		return nil, err
	}
	sum, err := s.bills.Summarize(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Statement{Bills: page, Summary: sum}, nil
}

// FinancialReport lists bills by date range and status with their totals.
func (s *Service) FinancialReport(ctx context.Context, p auth.Principal, f Filter, pg pagination.Params) (*Statement, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can view financial reports")
	}
	if err := s.checkFilter(f); err != nil {
		return nil, err
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return nil, apperr.InvalidInput("start_date must not be after end_date")
	}
	items, total, err := s.bills.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	sum, err := s.bills.Summarize(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Statement{Bills: pagination.NewPage(items, total, pg), Summary: sum}, nil
}

// Revenue is the clinic-wide summary shown on the admin dashboard.
func (s *Service) Revenue(ctx context.Context) (Summary, error) {
	return s.bills.Summarize(ctx, Filter{})
}

// -- Update --

// UpdateBill merges in and recomputes the balance. An explicit status must
// agree with the amounts unless it is cancelled or overdue.
func (s *Service) UpdateBill(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*Bill, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := nonNegative(
		namedAmount{"total_amount", in.TotalAmount},
		namedAmount{"paid_amount", in.PaidAmount},
		namedAmount{"insurance_covered", in.InsuranceCovered},
	); err != nil {
		return nil, err
	}

	var out *Bill
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.load(ctx, p, id, auth.ActionUpdate)
		if err != nil {
			return err
		}
		amountsChanged := in.TotalAmount != nil || in.PaidAmount != nil || in.InsuranceCovered != nil || in.Services != nil
		if b.Status == StatusCancelled && (amountsChanged || in.Status != nil && *in.Status != StatusCancelled) {
			return apperr.InvalidState("cancelled bills cannot be changed")
		}

		if in.Services != nil {
			items, sum, err := lineItems(in.Services)
			if err != nil {
				return err
			}
			b.Services = items
			if in.TotalAmount == nil {
				b.TotalAmount = sum
			}
		}
		if in.DueDate != nil {
			b.DueDate = in.DueDate
		}
		if in.TotalAmount != nil {
			b.TotalAmount = *in.TotalAmount
		}
		if in.PaidAmount != nil {
			b.PaidAmount = *in.PaidAmount
		}
		if in.InsuranceCovered != nil {
			b.InsuranceCovered = *in.InsuranceCovered
		}
		if in.PaymentMethod != nil {
			b.PaymentMethod = in.PaymentMethod
		}
		if in.Notes != nil {
			b.Notes = in.Notes
		}

		if in.Status != nil && (*in.Status == StatusCancelled || *in.Status == StatusOverdue) {
			b.Status = *in.Status
		} else if b.Status == StatusOverdue && in.Status != nil {
			b.Status = *in.Status
		}
		Recompute(b)
		if in.Status != nil && b.Status != *in.Status {
			return apperr.InvalidState("status %s does not match a balance of %s", *in.Status, b.Balance)
		}

		if err := s.bills.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// RecordPayment adds a payment to the bill and recomputes its balance.
func (s *Service) RecordPayment(ctx context.Context, p auth.Principal, id uuid.UUID, in PaymentInput) (*Bill, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	var out *Bill
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.load(ctx, p, id, auth.ActionUpdate)
		if err != nil {
			return err
		}
		if err := ApplyPayment(b, *in.Amount, in.PaymentMethod, s.now()); err != nil {
			return err
		}
		if err := s.bills.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}
