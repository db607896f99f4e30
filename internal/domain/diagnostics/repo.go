package diagnostics

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/domain/identity"
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
)

type LabResultRepository interface {
	Create(ctx context.Context, l *LabResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabResult, error)
	Update(ctx context.Context, l *LabResult) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*LabResult, int, error)
}

// PatientLookup is satisfied by identity.PatientRepository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// AppointmentLookup is satisfied by scheduling.AppointmentRepository.
type AppointmentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}
