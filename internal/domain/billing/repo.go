package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/domain/identity"
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
)

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	Update(ctx context.Context, b *Bill) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error)
	// Summarize aggregates every bill matching f in the store.
	Summarize(ctx context.Context, f Filter) (Summary, error)
}

// AppointmentLookup is satisfied by scheduling.AppointmentRepository.
type AppointmentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// PatientLookup is satisfied by identity.PatientRepository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}
