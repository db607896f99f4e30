package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/db"
	"github.com/mediconnect/mediconnect/internal/platform/money"
	"github.com/mediconnect/mediconnect/internal/platform/validation"
	"github.com/mediconnect/mediconnect/pkg/pagination"
)

// ProfileInput carries the role-specific fields of a registration or a
// profile update. Nil fields are left unchanged.
type ProfileInput struct {
	EmergencyContact   *string `json:"emergency_contact,omitempty"`
	EmergencyPhone     *string `json:"emergency_phone,omitempty"`
	BloodType          *string `json:"blood_type,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies          *string `json:"allergies,omitempty"`
	CurrentMedications *string `json:"current_medications,omitempty"`
	MedicalConditions  *string `json:"medical_conditions,omitempty"`
	InsuranceProvider  *string `json:"insurance_provider,omitempty"`
	InsuranceNumber    *string `json:"insurance_number,omitempty"`

	Specialization    *string             `json:"specialization,omitempty"`
	LicenseNumber     *string             `json:"license_number,omitempty"`
	YearsOfExperience *int                `json:"years_of_experience,omitempty" validate:"omitempty,gte=0"`
	Education         *string             `json:"education,omitempty"`
	Bio               *string             `json:"bio,omitempty"`
	ConsultationFee   *money.Amount       `json:"consultation_fee,omitempty"`
	AvailableHours    map[string]Interval `json:"available_hours,omitempty"`
	IsAvailable       *bool               `json:"is_available,omitempty"`

	Department *string `json:"department,omitempty"`
	Shift      *string `json:"shift,omitempty" validate:"omitempty,oneof=morning evening night"`
}

type RegisterInput struct {
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password" validate:"required,min=6"`
	Name        string    `json:"name" validate:"required"`
	Phone       *string   `json:"phone,omitempty"`
	DateOfBirth *string   `json:"date_of_birth,omitempty" validate:"omitempty,date"`
	Address     *string   `json:"address,omitempty"`
	Role        auth.Role `json:"role" validate:"required,oneof=patient doctor nurse"`
	ProfileInput
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccountUpdate merges into the caller's user row and profile.
type AccountUpdate struct {
	Name        *string `json:"name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty" validate:"omitempty,date"`
	Address     *string `json:"address,omitempty"`
	ProfileInput
}

// Session is the result of a successful register or login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	*Account
}

type Service struct {
	tx       db.TxRunner
	users    UserRepository
	patients PatientRepository
	doctors  DoctorRepository
	nurses   NurseRepository
	access   *auth.Evaluator
	tokens   *auth.TokenIssuer
	hasher   *auth.PasswordHasher
	now      func() time.Time
}

func NewService(tx db.TxRunner, users UserRepository, patients PatientRepository, doctors DoctorRepository,
	nurses NurseRepository, access *auth.Evaluator, tokens *auth.TokenIssuer, hasher *auth.PasswordHasher) *Service {
	return &Service{
		tx:       tx,
		users:    users,
		patients: patients,
		doctors:  doctors,
		nurses:   nurses,
		access:   access,
		tokens:   tokens,
		hasher:   hasher,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// -- Registration and login --

// Register creates the user and its role profile in one transaction and
// issues a token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := requireProfileFields(in.Role, in.ProfileInput); err != nil {
		return nil, err
	}
	hours, err := normalizeHours(in.AvailableHours)
	if err != nil {
		return nil, err
	}
	in.AvailableHours = hours

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, err.Error())
	}

	var acct *Account
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		now := s.now()
		u := &User{
			Email:        in.Email,
			PasswordHash: hash,
			Name:         in.Name,
			Phone:        in.Phone,
			DateOfBirth:  in.DateOfBirth,
			Address:      in.Address,
			Role:         in.Role,
			IsActive:     true,
			LastLogin:    &now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
			return err
		}
		record, err := s.createProfile(ctx, u, in.ProfileInput)
		if err != nil {
			return err
		}
		profile, err := NewProfile(u.Role, record)
		if err != nil {
			return err
		}
		acct = &Account{User: u, Profile: profile}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.issue(acct)
}

func requireProfileFields(role auth.Role, in ProfileInput) error {
	var missing []string
	switch role {
	case auth.RoleDoctor:
		if blank(in.Specialization) {
			missing = append(missing, "specialization")
		}
		if blank(in.LicenseNumber) {
			missing = append(missing, "license_number")
		}
	case auth.RoleNurse:
		if blank(in.LicenseNumber) {
			missing = append(missing, "license_number")
		}
	}
	if len(missing) > 0 {
		return apperr.InvalidInput("%s registration requires %s", role, strings.Join(missing, ", "))
	}
	if in.ConsultationFee != nil && in.ConsultationFee.IsNegative() {
		return apperr.InvalidInput("consultation_fee must not be negative")
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func (s *Service) createProfile(ctx context.Context, u *User, in ProfileInput) (interface{}, error) {
	switch u.Role {
	case auth.RolePatient:
		p := &Patient{UserID: u.ID}
		in.applyPatient(p)
		if err := s.patients.Create(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	case auth.RoleDoctor:
		d := &Doctor{UserID: u.ID, ConsultationFee: money.Zero(), AvailableHours: map[string]Interval{}, IsAvailable: true}
		in.applyDoctor(d)
		if err := s.doctors.Create(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	case auth.RoleNurse:
		n := &Nurse{UserID: u.ID}
		in.applyNurse(n)
		if err := s.nurses.Create(ctx, n); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, nil
}

// Login verifies the credentials of an active user, records the login and
// issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, err
	}
	if !s.hasher.Check(u.PasswordHash, in.Password) {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated("account is deactivated")
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now

	profile, err := s.loadProfile(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.issue(&Account{User: u, Profile: profile})
}

func (s *Service) issue(acct *Account) (*Session, error) {
	token, exp, err := s.tokens.Issue(acct.User.ID, acct.User.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Account: acct}, nil
}

func (s *Service) loadProfile(ctx context.Context, u *User) (Profile, error) {
	var (
		record interface{}
		err    error
	)
	switch u.Role {
	case auth.RolePatient:
		var p *Patient
		if p, err = s.patients.GetByUserID(ctx, u.ID); err == nil {
			record = p
		}
	case auth.RoleDoctor:
		var d *Doctor
		if d, err = s.doctors.GetByUserID(ctx, u.ID); err == nil {
			record = d
		}
	case auth.RoleNurse:
		var n *Nurse
		if n, err = s.nurses.GetByUserID(ctx, u.ID); err == nil {
			record = n
		}
	}
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return Profile{}, err
	}
	return NewProfile(u.Role, record)
}

// ResolvePrincipal loads the user behind a token with its profile ids.
func (s *Service) ResolvePrincipal(ctx context.Context, userID uuid.UUID) (auth.Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return auth.Principal{}, err
	}
	if !u.IsActive {
		return auth.Principal{}, auth.ErrInactiveUser
	}
	profile, err := s.loadProfile(ctx, u)
	if err != nil {
		return auth.Principal{}, err
	}
	acct := Account{User: u, Profile: profile}
	return acct.Principal(), nil
}

// -- Own account --

func (s *Service) GetAccount(ctx context.Context, p auth.Principal) (*Account, error) {
	if err := s.access.Authorize(p, auth.ActionRead, auth.KindUser, auth.Row(auth.Refs{UserID: &p.UserID})).Err(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Account{User: u, Profile: profile}, nil
}

// UpdateAccount merges the caller's user fields and role profile fields.
func (s *Service) UpdateAccount(ctx context.Context, p auth.Principal, in AccountUpdate) (*Account, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.InvalidInput("name must not be empty")
	}
	if err := s.access.Authorize(p, auth.ActionUpdate, auth.KindUser, auth.Row(auth.Refs{UserID: &p.UserID})).Err(); err != nil {
		return nil, err
	}

	var acct *Account
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			u.Name = strings.TrimSpace(*in.Name)
		}
		if in.Phone != nil {
			u.Phone = in.Phone
		}
		if in.DateOfBirth != nil {
			u.DateOfBirth = in.DateOfBirth
		}
		if in.Address != nil {
			u.Address = in.Address
		}
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}

		profile, err := s.loadProfile(ctx, u)
		if err != nil {
			return err
		}
		if err := s.updateProfile(ctx, p, profile, in.ProfileInput); err != nil {
			return err
		}
		acct = &Account{User: u, Profile: profile}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// updateProfile applies the fields relevant to the profile's role. Fields
// of other roles are ignored.
func (s *Service) updateProfile(ctx context.Context, p auth.Principal, profile Profile, in ProfileInput) error {
	switch {
	case profile.Patient != nil:
		pt := *profile.Patient
		fields := in.applyPatient(&pt)
		if len(fields) == 0 {
			return nil
		}
		d := s.access.Authorize(p, auth.ActionUpdate, auth.KindPatient, auth.Row(auth.Refs{PatientID: &pt.ID}))
		if err := d.CheckFields(fields); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, &pt); err != nil {
			return err
		}
		*profile.Patient = pt
	case profile.Doctor != nil:
		doc := *profile.Doctor
		if err := s.mergeDoctor(p, &doc, in); err != nil {
			return err
		}
		if err := s.doctors.Update(ctx, &doc); err != nil {
			return err
		}
		*profile.Doctor = doc
	case profile.Nurse != nil:
		n := *profile.Nurse
		if len(in.applyNurse(&n)) == 0 {
			return nil
		}
		if blank(&n.LicenseNumber) {
			return apperr.InvalidInput("license_number must not be empty")
		}
		d := s.access.Authorize(p, auth.ActionUpdate, auth.KindNurse, auth.Row(auth.Refs{NurseID: &n.ID}))
		if err := d.Err(); err != nil {
			return err
		}
		if err := s.nurses.Update(ctx, &n); err != nil {
			return err
		}
		*profile.Nurse = n
	}
	return nil
}

func (s *Service) mergeDoctor(p auth.Principal, doc *Doctor, in ProfileInput) error {
	if in.ConsultationFee != nil && in.ConsultationFee.IsNegative() {
		return apperr.InvalidInput("consultation_fee must not be negative")
	}
	hours, err := normalizeHours(in.AvailableHours)
	if err != nil {
		return err
	}
	in.AvailableHours = hours
	in.applyDoctor(doc)
	if blank(&doc.Specialization) || blank(&doc.LicenseNumber) {
		return apperr.InvalidInput("specialization and license_number must not be empty")
	}
	return s.access.Authorize(p, auth.ActionUpdate, auth.KindDoctor, auth.Row(auth.Refs{DoctorID: &doc.ID})).Err()
}

// -- Patient --

// GetPatientProfile returns the caller's own patient profile.
func (s *Service) GetPatientProfile(ctx context.Context, p auth.Principal) (*Patient, error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	if err := s.access.Authorize(p, auth.ActionRead, auth.KindPatient, auth.Row(auth.Refs{PatientID: p.PatientID})).Err(); err != nil {
		return nil, err
	}
	return s.patients.GetByID(ctx, *p.PatientID)
}

// MedicalHistoryInput is the patient-editable part of the patient profile.
type MedicalHistoryInput struct {
	Allergies          *string `json:"allergies,omitempty"`
	CurrentMedications *string `json:"current_medications,omitempty"`
	MedicalConditions  *string `json:"medical_conditions,omitempty"`
}

func (s *Service) UpdateMedicalHistory(ctx context.Context, p auth.Principal, in MedicalHistoryInput) (*Patient, error) {
	if p.PatientID == nil {
		return nil, apperr.NotFound("patient profile not found")
	}
	var out *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		pt, err := s.patients.GetByID(ctx, *p.PatientID)
		if err != nil {
			return err
		}
		profile := Profile{Role: auth.RolePatient, Patient: pt}
		update := ProfileInput{
			Allergies:          in.Allergies,
			CurrentMedications: in.CurrentMedications,
			MedicalConditions:  in.MedicalConditions,
		}
		if err := s.updateProfile(ctx, p, profile, update); err != nil {
			return err
		}
		out = pt
		return nil
	})
	return out, err
}

// -- Doctor --

func (s *Service) GetDoctorProfile(ctx context.Context, p auth.Principal) (*Doctor, error) {
	if p.DoctorID == nil {
		return nil, apperr.NotFound("doctor profile not found")
	}
	return s.doctors.GetByID(ctx, *p.DoctorID)
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, p auth.Principal, in ProfileInput) (*Doctor, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if p.DoctorID == nil {
		return nil, apperr.NotFound("doctor profile not found")
	}
	var out *Doctor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		doc, err := s.doctors.GetByID(ctx, *p.DoctorID)
		if err != nil {
			return err
		}
		if err := s.mergeDoctor(p, doc, in); err != nil {
			return err
		}
		if err := s.doctors.Update(ctx, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	return out, err
}

// GetDoctor returns one doctor of the directory.
func (s *Service) GetDoctor(ctx context.Context, p auth.Principal, id uuid.UUID) (*Doctor, error) {
	doc, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(p, auth.ActionRead, auth.KindDoctor, auth.Row(auth.Refs{DoctorID: &doc.ID})).Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDoctors is the doctor directory.
func (s *Service) ListDoctors(ctx context.Context, p auth.Principal, f DoctorFilter, pg pagination.Params) (*pagination.Page[*Doctor], error) {
	if err := s.access.Authorize(p, auth.ActionRead, auth.KindDoctor, auth.Collection()).Err(); err != nil {
		return nil, err
	}
	items, total, err := s.doctors.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// ListDoctorPatients returns the patients the calling doctor has seen.
func (s *Service) ListDoctorPatients(ctx context.Context, p auth.Principal, pg pagination.Params) (*pagination.Page[*Patient], error) {
	d := s.access.Authorize(p, auth.ActionRead, auth.KindPatient, auth.Collection())
	if err := d.Err(); err != nil {
		return nil, err
	}
	doctorID := d.Scope.DoctorID
	if doctorID == nil {
		doctorID = p.DoctorID
	}
	if doctorID == nil {
		return nil, apperr.NotFound("doctor profile not found")
	}
	items, total, err := s.patients.ListByDoctor(ctx, *doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// -- Administration --

func (s *Service) ListUsers(ctx context.Context, p auth.Principal, f UserFilter, pg pagination.Params) (*pagination.Page[*User], error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can list users")
	}
	if f.Role != nil && !f.Role.Valid() {
		return nil, apperr.InvalidInput("invalid role: %s", *f.Role)
	}
	items, total, err := s.users.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, pg), nil
}

// SetUserActive activates or deactivates a user. Users are never deleted.
func (s *Service) SetUserActive(ctx context.Context, p auth.Principal, id uuid.UUID, active bool) (*User, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can change user status")
	}
	if id == p.UserID && !active {
		return nil, apperr.InvalidState("administrators cannot deactivate their own account")
	}
	var out *User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetActive(ctx, id, active); err != nil {
			return err
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// CountByRole feeds the admin dashboard.
func (s *Service) CountByRole(ctx context.Context) (map[auth.Role]int, error) {
	return s.users.CountByRole(ctx)
}

// CreateAdmin provisions an administrator. Admins cannot self-register.
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (*User, error) {
	in := struct {
		Email    string `json:"email" validate:"required,email"`
		Name     string `json:"name" validate:"required"`
		Password string `json:"password" validate:"required,min=6"`
	}{normalizeEmail(email), strings.TrimSpace(name), password}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, err.Error())
	}
	u := &User{Email: in.Email, PasswordHash: hash, Name: in.Name, Role: auth.RoleAdmin, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeactivateByEmail is the command-line counterpart of SetUserActive.
func (s *Service) DeactivateByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, u.ID, false); err != nil {
		return nil, err
	}
	u.IsActive = false
	return u, nil
}

// -- Field merging --

func (in ProfileInput) applyPatient(p *Patient) []string {
	var fields []string
	set := func(dst **string, src *string, name string) {
		if src != nil {
			*dst = src
			fields = append(fields, name)
		}
	}
	set(&p.EmergencyContact, in.EmergencyContact, "emergency_contact")
	set(&p.EmergencyPhone, in.EmergencyPhone, "emergency_phone")
	set(&p.BloodType, in.BloodType, "blood_type")
	set(&p.Allergies, in.Allergies, "allergies")
	set(&p.CurrentMedications, in.CurrentMedications, "current_medications")
	set(&p.MedicalConditions, in.MedicalConditions, "medical_conditions")
	set(&p.InsuranceProvider, in.InsuranceProvider, "insurance_provider")
	set(&p.InsuranceNumber, in.InsuranceNumber, "insurance_number")
	return fields
}

func (in ProfileInput) applyDoctor(d *Doctor) {
	if in.Specialization != nil {
		d.Specialization = strings.TrimSpace(*in.Specialization)
	}
	if in.LicenseNumber != nil {
		d.LicenseNumber = strings.TrimSpace(*in.LicenseNumber)
	}
	if in.YearsOfExperience != nil {
		d.YearsOfExperience = in.YearsOfExperience
	}
	if in.Education != nil {
		d.Education = in.Education
	}
	if in.Bio != nil {
		d.Bio = in.Bio
	}
	if in.ConsultationFee != nil {
		d.ConsultationFee = *in.ConsultationFee
	}
	if in.AvailableHours != nil {
		d.AvailableHours = in.AvailableHours
	}
	if in.IsAvailable != nil {
		d.IsAvailable = *in.IsAvailable
	}
}

func (in ProfileInput) applyNurse(n *Nurse) []string {
	var fields []string
	if in.LicenseNumber != nil {
		n.LicenseNumber = strings.TrimSpace(*in.LicenseNumber)
		fields = append(fields, "license_number")
	}
	if in.Department != nil {
		n.Department = in.Department
		fields = append(fields, "department")
	}
	if in.YearsOfExperience != nil {
		n.YearsOfExperience = in.YearsOfExperience
		fields = append(fields, "years_of_experience")
	}
	if in.Shift != nil {
		n.Shift = in.Shift
		fields = append(fields, "shift")
	}
	return fields
}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// normalizeHours lower-cases weekday keys and checks each window.
func normalizeHours(hours map[string]Interval) (map[string]Interval, error) {
	if hours == nil {
		return nil, nil
	}
	out := make(map[string]Interval, len(hours))
	for day, iv := range hours {
		key := strings.ToLower(strings.TrimSpace(day))
		if !weekdays[key] {
			return nil, apperr.InvalidInput("available_hours: unknown weekday %q", day)
		}
		start, err := validation.NormalizeClock(iv.Start)
		if err != nil {
			return nil, apperr.InvalidInput("available_hours.%s.start must be HH:MM", key)
		}
		end, err := validation.NormalizeClock(iv.End)
		if err != nil {
			return nil, apperr.InvalidInput("available_hours.%s.end must be HH:MM", key)
		}
		if start >= end {
			return nil, apperr.InvalidInput("available_hours.%s: start must be before end", key)
		}
		out[key] = Interval{Start: start, End: end}
	}
	return out, nil
}
