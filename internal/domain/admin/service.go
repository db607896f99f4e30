package admin

import (
	"context"
	"fmt"

	"github.com/mediconnect/mediconnect/internal/domain/billing"
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

// UserCounter is satisfied by *identity.Service.
type UserCounter interface {
	CountByRole(ctx context.Context) (map[auth.Role]int, error)
}

// AppointmentSource is satisfied by *scheduling.Service.
type AppointmentSource interface {
	Stats(ctx context.Context) (scheduling.Stats, error)
	Recent(ctx context.Context, n int) ([]*scheduling.Appointment, error)
}

// RevenueSource is satisfied by *billing.Service.
type RevenueSource interface {
	Revenue(ctx context.Context) (billing.Summary, error)
}

type Service struct {
	users   UserCounter
	appts   AppointmentSource
	revenue RevenueSource
}

func NewService(users UserCounter, appts AppointmentSource, revenue RevenueSource) *Service {
	return &Service{users: users, appts: appts, revenue: revenue}
}

// Dashboard gathers the admin overview.
func (s *Service) Dashboard(ctx context.Context, p auth.Principal) (*Dashboard, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can view the dashboard")
	}

	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	appts, err := s.appts.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment stats: %w", err)
	}
	rev, err := s.revenue.Revenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("revenue summary: %w", err)
	}
	recent, err := s.appts.Recent(ctx, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	if recent == nil {
		recent = []*scheduling.Appointment{}
	}

	return &Dashboard{
		Stats: Stats{
			TotalPatients:       counts[auth.RolePatient],
			TotalDoctors:        counts[auth.RoleDoctor],
			TotalNurses:         counts[auth.RoleNurse],
			TotalAppointments:   appts.Total,
			TodayAppointments:   appts.Today,
			PendingAppointments: appts.Pending,
			TotalBills:          rev.BillCount,
			TotalRevenue:        rev.TotalAmount,
			TotalPaid:           rev.PaidAmount,
			InsuranceCovered:    rev.InsuranceCovered,
			OutstandingBalance:  rev.Outstanding,
		},
		RecentAppointments: recent,
	}, nil
}
