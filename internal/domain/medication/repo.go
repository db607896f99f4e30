package medication

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/domain/identity"
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, rx *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, rx *Prescription) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error)
}

// PatientLookup is satisfied by identity.PatientRepository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// DoctorLookup is satisfied by identity.DoctorRepository.
type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
}

// AppointmentLookup is satisfied by scheduling.AppointmentRepository.
type AppointmentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}
