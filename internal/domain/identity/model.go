package identity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/money"
)

// User maps to the users table.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth  *string    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	Role         auth.Role  `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Contact is the owning user's name and contact details, joined into
// profile reads.
type Contact struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
}

// Patient maps to the patients table.
type Patient struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	EmergencyContact   *string   `db:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyPhone     *string   `db:"emergency_phone" json:"emergency_phone,omitempty"`
	BloodType          *string   `db:"blood_type" json:"blood_type,omitempty"`
	Allergies          *string   `db:"allergies" json:"allergies,omitempty"`
	CurrentMedications *string   `db:"current_medications" json:"current_medications,omitempty"`
	MedicalConditions  *string   `db:"medical_conditions" json:"medical_conditions,omitempty"`
	InsuranceProvider  *string   `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsuranceNumber    *string   `db:"insurance_number" json:"insurance_number,omitempty"`
	User               *Contact  `db:"-" json:"user,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Interval is a daily availability window in HH:MM.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Doctor maps to the doctors table. AvailableHours is keyed by lower-case
// weekday name.
type Doctor struct {
	ID                uuid.UUID           `db:"id" json:"id"`
	UserID            uuid.UUID           `db:"user_id" json:"user_id"`
	Specialization    string              `db:"specialization" json:"specialization"`
	LicenseNumber     string              `db:"license_number" json:"license_number"`
	YearsOfExperience *int                `db:"years_of_experience" json:"years_of_experience,omitempty"`
	Education         *string             `db:"education" json:"education,omitempty"`
	Bio               *string             `db:"bio" json:"bio,omitempty"`
	ConsultationFee   money.Amount        `db:"consultation_fee" json:"consultation_fee"`
	AvailableHours    map[string]Interval `db:"available_hours" json:"available_hours"`
	IsAvailable       bool                `db:"is_available" json:"is_available"`
	User              *Contact            `db:"-" json:"user,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}

// Nurse maps to the nurses table.
type Nurse struct {
	ID                uuid.UUID `db:"id" json:"id"`
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	LicenseNumber     string    `db:"license_number" json:"license_number"`
	Department        *string   `db:"department" json:"department,omitempty"`
	YearsOfExperience *int      `db:"years_of_experience" json:"years_of_experience,omitempty"`
	Shift             *string   `db:"shift" json:"shift,omitempty"`
	User              *Contact  `db:"-" json:"user,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Profile is the role-specific record of a user. Exactly one of Patient,
// Doctor and Nurse is set, matching Role; admins have none.
type Profile struct {
	Role    auth.Role
	Patient *Patient
	Doctor  *Doctor
	Nurse   *Nurse
}

// NewProfile builds a profile and rejects a record that does not match role.
func NewProfile(role auth.Role, record interface{}) (Profile, error) {
	p := Profile{Role: role}
	switch r := record.(type) {
	case nil:
		if role != auth.RoleAdmin {
			return Profile{}, apperr.InvalidState("%s user has no %s profile", role, role)
		}
		return p, nil
	case *Patient:
		p.Patient = r
	case *Doctor:
		p.Doctor = r
	case *Nurse:
		p.Nurse = r
	default:
		return Profile{}, apperr.InvalidState("unsupported profile type %T", record)
	}
	if p.kind() != role {
		return Profile{}, apperr.InvalidState("profile type %s does not match role %s", p.kind(), role)
	}
	return p, nil
}

func (p Profile) kind() auth.Role {
	switch {
	case p.Patient != nil:
		return auth.RolePatient
	case p.Doctor != nil:
		return auth.RoleDoctor
	case p.Nurse != nil:
		return auth.RoleNurse
	}
	return auth.RoleAdmin
}

// IDs returns the profile ids carried on a principal.
func (p Profile) IDs() (patientID, doctorID, nurseID *uuid.UUID) {
	switch {
	case p.Patient != nil:
		id := p.Patient.ID
		patientID = &id
	case p.Doctor != nil:
		id := p.Doctor.ID
		doctorID = &id
	case p.Nurse != nil:
		id := p.Nurse.ID
		nurseID = &id
	}
	return
}

// MarshalJSON renders the inner record, or null for admins.
func (p Profile) MarshalJSON() ([]byte, error) {
	switch {
	case p.Patient != nil:
		return json.Marshal(p.Patient)
	case p.Doctor != nil:
		return json.Marshal(p.Doctor)
	case p.Nurse != nil:
		return json.Marshal(p.Nurse)
	}
	return []byte("null"), nil
}

// Account is a user with its profile.
type Account struct {
	User    *User   `json:"user"`
	Profile Profile `json:"profile"`
}

// Principal derives the authenticated identity of the account.
func (a *Account) Principal() auth.Principal {
	p := auth.Principal{UserID: a.User.ID, Role: a.User.Role}
	p.PatientID, p.DoctorID, p.NurseID = a.Profile.IDs()
	return p
}

// UserFilter narrows an admin user listing.
type UserFilter struct {
	Role     *auth.Role
	IsActive *bool
}

// DoctorFilter narrows the doctor directory.
type DoctorFilter struct {
	Specialization string
	AvailableOnly  bool
}
