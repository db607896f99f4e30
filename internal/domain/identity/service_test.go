package identity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/money"
	"github.com/mediconnect/mediconnect/pkg/pagination"
)

// -- In-memory store --

// memStore backs every mock repository. InTx snapshots the maps and
// restores them when fn fails, like a rolled back transaction.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]User
	patients map[uuid.UUID]Patient
	doctors  map[uuid.UUID]Doctor
	nurses   map[uuid.UUID]Nurse
	// appointments links patient ids to the doctors they have seen.
	appointments map[uuid.UUID][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uuid.UUID]User),
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
		nurses:       make(map[uuid.UUID]Nurse),
		appointments: make(map[uuid.UUID][]uuid.UUID),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	users, patients, doctors, nurses := copyMap(s.users), copyMap(s.patients), copyMap(s.doctors), copyMap(s.nurses)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.patients, s.doctors, s.nurses = users, patients, doctors, nurses
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) contact(userID uuid.UUID) *Contact {
	u := s.users[userID]
	return &Contact{Name: u.Name, Email: u.Email, Phone: u.Phone, DateOfBirth: u.DateOfBirth}
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, u *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return apperr.Duplicate("user with this email already exists")
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	r.s.users[u.ID] = *u
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &u, nil
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (r memUserRepo) Update(_ context.Context, u *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return apperr.NotFound("user not found")
	}
	u.UpdatedAt = time.Now()
	r.s.users[u.ID] = *u
	return nil
}

func (r memUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.IsActive = active
	r.s.users[id] = u
	return nil
}

func (r memUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.users[id]
	u.LastLogin = &at
	r.s.users[id] = u
	return nil
}

func (r memUserRepo) List(_ context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*User
	for _, u := range r.s.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		u := u
		out = append(out, &u)
	}
	return out, len(out), nil
}

func (r memUserRepo) CountByRole(_ context.Context) (map[auth.Role]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[auth.Role]int)
	for _, u := range r.s.users {
		counts[u.Role]++
	}
	return counts, nil
}

type memPatientRepo struct{ s *memStore }

func (r memPatientRepo) Create(_ context.Context, p *Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.patients[p.ID] = *p
	return nil
}

func (r memPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	p.User = r.s.contact(p.UserID)
	return &p, nil
}

func (r memPatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if p.UserID == userID {
			p.User = r.s.contact(p.UserID)
			return &p, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (r memPatientRepo) Update(_ context.Context, p *Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.patients[p.ID] = *p
	return nil
}

func (r memPatientRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Patient
	for patientID, doctors := range r.s.appointments {
		for _, d := range doctors {
			if d == doctorID {
				p := r.s.patients[patientID]
				out = append(out, &p)
				break
			}
		}
	}
	return out, len(out), nil
}

type memDoctorRepo struct{ s *memStore }

func (r memDoctorRepo) Create(_ context.Context, d *Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.doctors {
		if existing.LicenseNumber == d.LicenseNumber {
			return apperr.Duplicate("doctor license number already registered")
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.s.doctors[d.ID] = *d
	return nil
}

func (r memDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	return &d, nil
}

func (r memDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.doctors {
		if d.UserID == userID {
			return &d, nil
		}
	}
	return nil, apperr.NotFound("doctor not found")
}

func (r memDoctorRepo) Update(_ context.Context, d *Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.doctors[d.ID] = *d
	return nil
}

func (r memDoctorRepo) List(_ context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Doctor
	for _, d := range r.s.doctors {
		if f.AvailableOnly && !d.IsAvailable {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicenseNumber < out[j].LicenseNumber })
	return out, len(out), nil
}

type memNurseRepo struct{ s *memStore }

func (r memNurseRepo) Create(_ context.Context, n *Nurse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.nurses {
		if existing.LicenseNumber == n.LicenseNumber {
			return apperr.Duplicate("nurse license number already registered")
		}
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.s.nurses[n.ID] = *n
	return nil
}

func (r memNurseRepo) GetByID(_ context.Context, id uuid.UUID) (*Nurse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.nurses[id]
	if !ok {
		return nil, apperr.NotFound("nurse not found")
	}
	return &n, nil
}

func (r memNurseRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Nurse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.nurses {
		if n.UserID == userID {
			return &n, nil
		}
	}
	return nil, apperr.NotFound("nurse not found")
}

func (r memNurseRepo) Update(_ context.Context, n *Nurse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nurses[n.ID] = *n
	return nil
}

// -- Fixtures --

const testSecret = "identity-test-secret-0123456789abcdef"

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	access, err := auth.NewEvaluator()
	require.NoError(t, err)
	svc := NewService(store,
		memUserRepo{store}, memPatientRepo{store}, memDoctorRepo{store}, memNurseRepo{store},
		access,
		auth.NewTokenIssuer(testSecret, "mediconnect", time.Hour),
		auth.NewPasswordHasher(4),
	)
	return svc, store
}

func strPtr(s string) *string { return &s }

func registerPatient(t *testing.T, svc *Service, email string) *Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), RegisterInput{
		Email: email, Password: "secret1", Name: "Pat Patient", Role: auth.RolePatient,
		ProfileInput: ProfileInput{BloodType: strPtr("O+")},
	})
	require.NoError(t, err)
	return sess
}

func registerDoctor(t *testing.T, svc *Service, email, license string) *Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), RegisterInput{
		Email: email, Password: "secret1", Name: "Dr Who", Role: auth.RoleDoctor,
		ProfileInput: ProfileInput{Specialization: strPtr("Cardiology"), LicenseNumber: strPtr(license)},
	})
	require.NoError(t, err)
	return sess
}

// -- Registration --

func TestRegister_Patient(t *testing.T) {
	svc, store := newTestService(t)

	sess := registerPatient(t, svc, "  Pat@Example.COM ")

	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "pat@example.com", sess.User.Email)
	require.NotNil(t, sess.Profile.Patient)
	assert.Equal(t, sess.User.ID, sess.Profile.Patient.UserID)
	assert.Len(t, store.users, 1)
	assert.Len(t, store.patients, 1)
	assert.NotNil(t, store.users[sess.User.ID].LastLogin)

	userID, claims, err := svc.tokens.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, userID)
	assert.Equal(t, auth.RolePatient, claims.Role)
}

func TestRegister_DoctorMissingFields(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "doc@example.com", Password: "secret1", Name: "Dr No", Role: auth.RoleDoctor,
		ProfileInput: ProfileInput{Specialization: strPtr("Oncology")},
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "license_number")
	assert.Empty(t, store.users, "no user row may exist without its doctor row")
	assert.Empty(t, store.doctors)
}

func TestRegister_ProfileFailureRollsBackUser(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "n1@example.com", Password: "secret1", Name: "Nurse One", Role: auth.RoleNurse,
		ProfileInput: ProfileInput{LicenseNumber: strPtr("RN-1")},
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "n2@example.com", Password: "secret1", Name: "Nurse Two", Role: auth.RoleNurse,
		ProfileInput: ProfileInput{LicenseNumber: strPtr("RN-1")},
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))
	assert.Len(t, store.users, 1)
	assert.Len(t, store.nurses, 1)
}

func TestRegister_Rejections(t *testing.T) {
	svc, _ := newTestService(t)
	registerPatient(t, svc, "taken@example.com")

	tests := []struct {
		name string
		in   RegisterInput
		kind apperr.Kind
	}{
		{"admin role", RegisterInput{Email: "a@example.com", Password: "secret1", Name: "A", Role: auth.RoleAdmin}, apperr.KindInvalidInput},
		{"short password", RegisterInput{Email: "b@example.com", Password: "123", Name: "B", Role: auth.RolePatient}, apperr.KindInvalidInput},
		{"bad email", RegisterInput{Email: "nope", Password: "secret1", Name: "C", Role: auth.RolePatient}, apperr.KindInvalidInput},
		{"bad blood type", RegisterInput{Email: "d@example.com", Password: "secret1", Name: "D", Role: auth.RolePatient,
			ProfileInput: ProfileInput{BloodType: strPtr("Z+")}}, apperr.KindInvalidInput},
		{"duplicate email", RegisterInput{Email: "TAKEN@example.com", Password: "secret1", Name: "E", Role: auth.RolePatient}, apperr.KindDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

// -- Login and principal resolution --

func TestLogin(t *testing.T) {
	svc, store := newTestService(t)
	sess := registerDoctor(t, svc, "doc@example.com", "LIC-1")
	before := *store.users[sess.User.ID].LastLogin
	svc.now = func() time.Time { return before.Add(time.Hour) }

	got, err := svc.Login(context.Background(), LoginInput{Email: "DOC@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, got.Profile.Doctor)
	assert.True(t, store.users[sess.User.ID].LastLogin.After(before))

	_, err = svc.Login(context.Background(), LoginInput{Email: "doc@example.com", Password: "wrong-pass"})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	_, err = svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "secret1"})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestLogin_Inactive(t *testing.T) {
	svc, store := newTestService(t)
	sess := registerPatient(t, svc, "p@example.com")
	require.NoError(t, memUserRepo{store}.SetActive(context.Background(), sess.User.ID, false))

	_, err := svc.Login(context.Background(), LoginInput{Email: "p@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "deactivated")
}

func TestResolvePrincipal(t *testing.T) {
	svc, store := newTestService(t)
	sess := registerPatient(t, svc, "p@example.com")

	p, err := svc.ResolvePrincipal(context.Background(), sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RolePatient, p.Role)
	require.NotNil(t, p.PatientID)
	assert.Equal(t, sess.Profile.Patient.ID, *p.PatientID)
	assert.Nil(t, p.DoctorID)

	require.NoError(t, memUserRepo{store}.SetActive(context.Background(), sess.User.ID, false))
	_, err = svc.ResolvePrincipal(context.Background(), sess.User.ID)
	assert.True(t, errors.Is(err, auth.ErrInactiveUser))
}

func TestNewProfile_Mismatch(t *testing.T) {
	_, err := NewProfile(auth.RoleDoctor, &Patient{ID: uuid.New()})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = NewProfile(auth.RoleNurse, nil)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	p, err := NewProfile(auth.RoleAdmin, nil)
	require.NoError(t, err)
	pid, did, nid := p.IDs()
	assert.Nil(t, pid)
	assert.Nil(t, did)
	assert.Nil(t, nid)
}

// -- Profile updates --

func TestUpdateAccount_PatientMedicalHistoryOnly(t *testing.T) {
	svc, store := newTestService(t)
	sess := registerPatient(t, svc, "p@example.com")
	p, err := svc.ResolvePrincipal(context.Background(), sess.User.ID)
	require.NoError(t, err)

	acct, err := svc.UpdateAccount(context.Background(), p, AccountUpdate{
		Name:         strPtr("Pat Renamed"),
		ProfileInput: ProfileInput{Allergies: strPtr("penicillin")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pat Renamed", acct.User.Name)
	assert.Equal(t, "penicillin", *acct.Profile.Patient.Allergies)

	_, err = svc.UpdateAccount(context.Background(), p, AccountUpdate{
		Name:         strPtr("Should Not Stick"),
		ProfileInput: ProfileInput{InsuranceNumber: strPtr("INS-9")},
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Pat Renamed", store.users[sess.User.ID].Name, "rejected update must roll back")
	assert.Nil(t, store.patients[*p.PatientID].InsuranceNumber)
}

func TestUpdateMedicalHistory(t *testing.T) {
	svc, _ := newTestService(t)
	sess := registerPatient(t, svc, "p@example.com")
	p, err := svc.ResolvePrincipal(context.Background(), sess.User.ID)
	require.NoError(t, err)

	pt, err := svc.UpdateMedicalHistory(context.Background(), p, MedicalHistoryInput{MedicalConditions: strPtr("asthma")})
	require.NoError(t, err)
	assert.Equal(t, "asthma", *pt.MedicalConditions)
	assert.Equal(t, "O+", *pt.BloodType, "fields not supplied keep their value")
}

func TestUpdateDoctorProfile(t *testing.T) {
	svc, _ := newTestService(t)
	sess := registerDoctor(t, svc, "doc@example.com", "LIC-1")
	p, err := svc.ResolvePrincipal(context.Background(), sess.User.ID)
	require.NoError(t, err)

	fee := money.MustParse("75.5")
	doc, err := svc.UpdateDoctorProfile(context.Background(), p, ProfileInput{
		ConsultationFee: &fee,
		AvailableHours:  map[string]Interval{"Monday": {Start: "09:00:00", End: "17:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "75.50", doc.ConsultationFee.String())
	assert.Equal(t, Interval{Start: "09:00", End: "17:00"}, doc.AvailableHours["monday"])
	assert.Equal(t, "Cardiology", doc.Specialization)

	neg := money.MustParse("-1")
	_, err = svc.UpdateDoctorProfile(context.Background(), p, ProfileInput{ConsultationFee: &neg})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = svc.UpdateDoctorProfile(context.Background(), p, ProfileInput{
		AvailableHours: map[string]Interval{"funday": {Start: "09:00", End: "10:00"}},
	})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = svc.UpdateDoctorProfile(context.Background(), p, ProfileInput{
		AvailableHours: map[string]Interval{"friday": {Start: "12:00", End: "09:00"}},
	})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

// -- Directory and doctor patients --

func TestListDoctorPatients_ScopedToDoctor(t *testing.T) {
	svc, store := newTestService(t)
	docSess := registerDoctor(t, svc, "doc@example.com", "LIC-1")
	otherSess := registerDoctor(t, svc, "doc2@example.com", "LIC-2")
	seen := registerPatient(t, svc, "seen@example.com")
	registerPatient(t, svc, "unseen@example.com")
	store.appointments[seen.Profile.Patient.ID] = []uuid.UUID{docSess.Profile.Doctor.ID}

	p, err := svc.ResolvePrincipal(context.Background(), docSess.User.ID)
	require.NoError(t, err)
	page, err := svc.ListDoctorPatients(context.Background(), p, pagination.Params{Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, seen.Profile.Patient.ID, page.Items[0].ID)

	other, err := svc.ResolvePrincipal(context.Background(), otherSess.User.ID)
	require.NoError(t, err)
	page, err = svc.ListDoctorPatients(context.Background(), other, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	patient, err := svc.ResolvePrincipal(context.Background(), seen.User.ID)
	require.NoError(t, err)
	_, err = svc.ListDoctorPatients(context.Background(), patient, pagination.Params{Limit: 20})
	assert.Error(t, err)
}

func TestListDoctors(t *testing.T) {
	svc, _ := newTestService(t)
	registerDoctor(t, svc, "doc@example.com", "LIC-1")
	sess := registerPatient(t, svc, "p@example.com")
	p, err := svc.ResolvePrincipal(context.Background(), sess.User.ID)
	require.NoError(t, err)

	page, err := svc.ListDoctors(context.Background(), p, DoctorFilter{AvailableOnly: true}, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.True(t, page.Items[0].IsAvailable)
}

// -- Administration --

func TestSetUserActive(t *testing.T) {
	svc, store := newTestService(t)
	admin, err := svc.CreateAdmin(context.Background(), "Root@Example.com", "Root", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", admin.Email)
	sess := registerPatient(t, svc, "p@example.com")

	adminP := auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}
	u, err := svc.SetUserActive(context.Background(), adminP, sess.User.ID, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.False(t, store.users[sess.User.ID].IsActive)

	_, err = svc.SetUserActive(context.Background(), adminP, admin.ID, false)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	patientP := auth.Principal{UserID: sess.User.ID, Role: auth.RolePatient}
	_, err = svc.SetUserActive(context.Background(), patientP, sess.User.ID, true)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.SetUserActive(context.Background(), adminP, uuid.New(), true)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListUsers(t *testing.T) {
	svc, _ := newTestService(t)
	registerPatient(t, svc, "p@example.com")
	registerDoctor(t, svc, "doc@example.com", "LIC-1")

	role := auth.RoleDoctor
	page, err := svc.ListUsers(context.Background(), auth.Principal{Role: auth.RoleAdmin}, UserFilter{Role: &role}, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	bad := auth.Role("janitor")
	_, err = svc.ListUsers(context.Background(), auth.Principal{Role: auth.RoleAdmin}, UserFilter{Role: &bad}, pagination.Params{Limit: 20})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	counts, err := svc.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[auth.RolePatient])
	assert.Equal(t, 1, counts[auth.RoleDoctor])
}
