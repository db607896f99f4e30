package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error)
	CountByRole(ctx context.Context) (map[auth.Role]int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// ListByDoctor returns the distinct patients with at least one
	// appointment with the doctor.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
}

type NurseRepository interface {
	Create(ctx context.Context, n *Nurse) error
	GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Nurse, error)
	Update(ctx context.Context, n *Nurse) error
}
