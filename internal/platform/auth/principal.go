package auth

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin"
)

var validRoles = map[Role]bool{
	RolePatient: true,
	RoleDoctor:  true,
	RoleNurse:   true,
	RoleAdmin:   true,
}

func (r Role) Valid() bool { return validRoles[r] }

// Principal is the authenticated caller with the profile ids bound to their
// user. Ownership checks compare profile ids, never the user id.
type Principal struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      Role       `json:"role"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	NurseID   *uuid.UUID `json:"nurse_id,omitempty"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by JWTMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserIDFromContext returns the caller's user id as a string, or "".
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID.String()
	}
	return ""
}
