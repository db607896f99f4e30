package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/domain/identity"
)

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, r *MedicalRecord) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*MedicalRecord, int, error)
}

// PatientLookup is satisfied by identity.PatientRepository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// DoctorLookup is satisfied by identity.DoctorRepository.
type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
}
