package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/domain/identity"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	// HasActiveAt reports whether the doctor has a scheduled or confirmed
	// appointment at exactly date and clock, ignoring exclude.
	HasActiveAt(ctx context.Context, doctorID uuid.UUID, date, clock string, exclude *uuid.UUID) (bool, error)
	Stats(ctx context.Context, today string) (Stats, error)
	Recent(ctx context.Context, n int) ([]*Appointment, error)
}

// DoctorLookup is satisfied by identity.DoctorRepository.
type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
}

// PatientLookup is satisfied by identity.PatientRepository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}
