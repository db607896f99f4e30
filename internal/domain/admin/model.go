package admin

import (
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
	"github.com/mediconnect/mediconnect/internal/platform/money"
)

// RecentLimit is how many of the newest appointments the dashboard lists.
const RecentLimit = 10

// Stats are the clinic-wide counters. Outstanding balance is revenue minus
// payments; insurance coverage is reported separately.
type Stats struct {
	TotalPatients       int          `json:"total_patients"`
	TotalDoctors        int          `json:"total_doctors"`
	TotalNurses         int          `json:"total_nurses"`
	TotalAppointments   int          `json:"total_appointments"`
	TodayAppointments   int          `json:"today_appointments"`
	PendingAppointments int          `json:"pending_appointments"`
	TotalBills          int          `json:"total_bills"`
	TotalRevenue        money.Amount `json:"total_revenue"`
	TotalPaid           money.Amount `json:"total_paid"`
	InsuranceCovered    money.Amount `json:"insurance_covered"`
	OutstandingBalance  money.Amount `json:"outstanding_balance"`
}

type Dashboard struct {
	Stats              Stats                     `json:"stats"`
	RecentAppointments []*scheduling.Appointment `json:"recent_appointments"`
}
