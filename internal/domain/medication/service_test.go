package medication

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediconnect/mediconnect/internal/domain/identity"
	"github.com/mediconnect/mediconnect/internal/domain/scheduling"
	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/pkg/pagination"
)

// -- Mocks --

type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type mockPrescriptionRepo struct {
	rows    map[uuid.UUID]Prescription
	seq     int
	updates int
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{rows: make(map[uuid.UUID]Prescription)}
}

func (r *mockPrescriptionRepo) Create(_ context.Context, rx *Prescription) error {
	if rx.ID == uuid.Nil {
		rx.ID = uuid.New()
	}
	r.seq++
	rx.CreatedAt = time.Unix(int64(r.seq), 0)
	rx.UpdatedAt = rx.CreatedAt
	r.rows[rx.ID] = *rx
	return nil
}

func (r *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	rx, ok := r.rows[id]
	if !ok {
		return nil, apperr.NotFound("prescription not found")
	}
	return &rx, nil
}

func (r *mockPrescriptionRepo) Update(_ context.Context, rx *Prescription) error {
	if _, ok := r.rows[rx.ID]; !ok {
		return apperr.NotFound("prescription not found")
	}
	r.updates++
	r.rows[rx.ID] = *rx
	return nil
}

func (r *mockPrescriptionRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, rx := range r.rows {
		if f.PatientID != nil && rx.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && rx.DoctorID != *f.DoctorID {
			continue
		}
		if f.IsActive != nil && rx.IsActive != *f.IsActive {
			continue
		}
		rx := rx
		out = append(out, &rx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

type mockPatients map[uuid.UUID]*identity.Patient

func (m mockPatients) GetByID(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

type mockDoctors map[uuid.UUID]*identity.Doctor

func (m mockDoctors) GetByID(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	d, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	return d, nil
}

type mockAppointments map[uuid.UUID]*scheduling.Appointment

func (m mockAppointments) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, nil
}

// -- Fixtures --

type fixture struct {
	svc   *Service
	repo  *mockPrescriptionRepo
	appts mockAppointments

	doctor, otherDoctor   auth.Principal
	patient, otherPatient auth.Principal
	nurse, admin          auth.Principal
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func intPtr(n int) *int { return &n }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	access, err := auth.NewEvaluator()
	require.NoError(t, err)

	f := &fixture{
		repo:         newMockPrescriptionRepo(),
		appts:        mockAppointments{},
		doctor:       auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: idPtr(uuid.New())},
		otherDoctor:  auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: idPtr(uuid.New())},
		patient:      auth.Principal{UserID: uuid.New(), Role: auth.RolePatient, PatientID: idPtr(uuid.New())},
		otherPatient: auth.Principal{UserID: uuid.New(), Role: auth.RolePatient, PatientID: idPtr(uuid.New())},
		nurse:        auth.Principal{UserID: uuid.New(), Role: auth.RoleNurse, NurseID: idPtr(uuid.New())},
		admin:        auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin},
	}
	doctors := mockDoctors{}
	for _, d := range []auth.Principal{f.doctor, f.otherDoctor} {
		doctors[*d.DoctorID] = &identity.Doctor{ID: *d.DoctorID, UserID: d.UserID}
	}
	patients := mockPatients{}
	for _, p := range []auth.Principal{f.patient, f.otherPatient} {
		patients[*p.PatientID] = &identity.Patient{ID: *p.PatientID, UserID: p.UserID}
	}
	f.svc = NewService(passTx{}, f.repo, patients, doctors, f.appts, access)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) prescribe(t *testing.T, doctor, patient auth.Principal) *Prescription {
	t.Helper()
	rx, err := f.svc.CreatePrescription(context.Background(), doctor, CreateInput{
		PatientID:      patient.PatientID,
		MedicationName: "Amoxicillin",
		Dosage:         "500mg",
		Frequency:      "3x daily",
		Duration:       "7 days",
		Refills:        intPtr(1),
	})
	require.NoError(t, err)
	return rx
}

// -- Create --

func TestCreatePrescription_Defaults(t *testing.T) {
	f := newFixture(t)
	rx, err := f.svc.CreatePrescription(context.Background(), f.doctor, CreateInput{
		PatientID:      f.patient.PatientID,
		MedicationName: " Ibuprofen ",
		Dosage:         "200mg",
		Frequency:      "as needed",
		Duration:       "5 days",
	})
	require.NoError(t, err)

	assert.Equal(t, *f.doctor.DoctorID, rx.DoctorID)
	assert.Equal(t, "Ibuprofen", rx.MedicationName)
	assert.Equal(t, "2026-03-02", rx.StartDate)
	assert.True(t, rx.IsActive)
	assert.Equal(t, 0, rx.Refills)
}

func TestCreatePrescription_Appointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := &scheduling.Appointment{ID: uuid.New(), DoctorID: *f.doctor.DoctorID, PatientID: *f.patient.PatientID}
	foreign := &scheduling.Appointment{ID: uuid.New(), DoctorID: *f.otherDoctor.DoctorID, PatientID: *f.patient.PatientID}
	f.appts[own.ID] = own
	f.appts[foreign.ID] = foreign

	in := CreateInput{
		PatientID: f.patient.PatientID, MedicationName: "Amoxicillin",
		Dosage: "500mg", Frequency: "3x daily", Duration: "7 days",
	}

	in.AppointmentID = &own.ID
	rx, err := f.svc.CreatePrescription(ctx, f.doctor, in)
	require.NoError(t, err)
	assert.Equal(t, own.ID, *rx.AppointmentID)

	in.AppointmentID = &foreign.ID
	_, err = f.svc.CreatePrescription(ctx, f.doctor, in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	in.AppointmentID = idPtr(uuid.New())
	_, err = f.svc.CreatePrescription(ctx, f.doctor, in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	in.AppointmentID = &own.ID
	in.PatientID = f.otherPatient.PatientID
	_, err = f.svc.CreatePrescription(ctx, f.doctor, in)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	assert.Len(t, f.repo.rows, 1)
}

func TestCreatePrescription_Rejections(t *testing.T) {
	f := newFixture(t)
	end := "2026-03-01"
	valid := func() CreateInput {
		return CreateInput{
			PatientID: f.patient.PatientID, MedicationName: "Amoxicillin",
			Dosage: "500mg", Frequency: "3x daily", Duration: "7 days",
		}
	}

	tests := []struct {
		name   string
		p      auth.Principal
		mutate func(*CreateInput)
		want   apperr.Kind
	}{
		{"patient", f.patient, func(*CreateInput) {}, apperr.KindForbidden},
		{"patient with empty body", f.patient, func(in *CreateInput) { *in = CreateInput{} }, apperr.KindForbidden},
		{"nurse", f.nurse, func(in *CreateInput) { in.DoctorID = f.doctor.DoctorID }, apperr.KindForbidden},
		{"for another doctor", f.doctor, func(in *CreateInput) { in.DoctorID = f.otherDoctor.DoctorID }, apperr.KindForbidden},
		{"admin without doctor", f.admin, func(*CreateInput) {}, apperr.KindInvalidInput},
		{"negative refills", f.doctor, func(in *CreateInput) { in.Refills = intPtr(-1) }, apperr.KindInvalidInput},
		{"missing dosage", f.doctor, func(in *CreateInput) { in.Dosage = "" }, apperr.KindInvalidInput},
		{"end before start", f.doctor, func(in *CreateInput) { in.StartDate = "2026-03-02"; in.EndDate = &end }, apperr.KindInvalidInput},
		{"unknown patient", f.doctor, func(in *CreateInput) { in.PatientID = idPtr(uuid.New()) }, apperr.KindNotFound},
		{"unknown doctor", f.admin, func(in *CreateInput) { in.DoctorID = idPtr(uuid.New()) }, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := f.svc.CreatePrescription(context.Background(), tt.p, in)
			assert.Equal(t, tt.want, apperr.KindOf(err), "err: %v", err)
		})
	}
	assert.Empty(t, f.repo.rows)
}

func TestCreatePrescription_Admin(t *testing.T) {
	f := newFixture(t)
	rx, err := f.svc.CreatePrescription(context.Background(), f.admin, CreateInput{
		PatientID: f.patient.PatientID, DoctorID: f.doctor.DoctorID, MedicationName: "Metformin",
		Dosage: "850mg", Frequency: "2x daily", Duration: "90 days",
	})
	require.NoError(t, err)
	assert.Equal(t, *f.doctor.DoctorID, rx.DoctorID)
}

// -- Read --

func TestGetPrescription_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rx := f.prescribe(t, f.doctor, f.patient)

	for _, p := range []auth.Principal{f.doctor, f.patient, f.nurse, f.admin} {
		got, err := f.svc.GetPrescription(ctx, p, rx.ID)
		require.NoError(t, err, "role %s", p.Role)
		assert.Equal(t, rx.ID, got.ID)
	}
	for _, p := range []auth.Principal{f.otherDoctor, f.otherPatient} {
		_, err := f.svc.GetPrescription(ctx, p, rx.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "role %s", p.Role)
	}
	_, err := f.svc.GetPrescription(ctx, f.patient, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListPrescriptions_Scoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pg := pagination.Params{Limit: 20}
	f.prescribe(t, f.doctor, f.patient)
	f.prescribe(t, f.doctor, f.otherPatient)
	f.prescribe(t, f.otherDoctor, f.patient)

	tests := []struct {
		name string
		p    auth.Principal
		f    Filter
		want int
	}{
		{"doctor", f.doctor, Filter{}, 2},
		{"doctor by patient", f.doctor, Filter{PatientID: f.patient.PatientID}, 1},
		{"patient", f.patient, Filter{}, 2},
		{"patient asking for another", f.patient, Filter{PatientID: f.otherPatient.PatientID}, 0},
		{"nurse", f.nurse, Filter{}, 3},
		{"admin", f.admin, Filter{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.ListPrescriptions(ctx, tt.p, tt.f, pg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Total)
		})
	}

	page, err := f.svc.ListPatientPrescriptions(ctx, f.otherPatient, pg)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestListPrescriptions_ActiveFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rx := f.prescribe(t, f.doctor, f.patient)
	f.prescribe(t, f.doctor, f.patient)

	inactive := false
	_, err := f.svc.UpdatePrescription(ctx, f.doctor, rx.ID, UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	active := true
	page, err := f.svc.ListPrescriptions(ctx, f.patient, Filter{IsActive: &active}, pagination.Params{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

// -- Update --

func TestUpdatePrescription_Merge(t *testing.T) {
	f := newFixture(t)
	rx := f.prescribe(t, f.doctor, f.patient)
	dosage, end := "250mg", "2026-03-20"

	got, err := f.svc.UpdatePrescription(context.Background(), f.doctor, rx.ID, UpdateInput{
		Dosage: &dosage, EndDate: &end, Refills: intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "250mg", got.Dosage)
	assert.Equal(t, "3x daily", got.Frequency)
	assert.Equal(t, "2026-03-20", *got.EndDate)
	assert.Equal(t, 0, got.Refills)
	assert.Equal(t, 0, f.repo.rows[rx.ID].Refills)
}

func TestUpdatePrescription_NegativeRefillsNoMutation(t *testing.T) {
	f := newFixture(t)
	rx := f.prescribe(t, f.doctor, f.patient)
	before := f.repo.rows[rx.ID]
	dosage := "1g"

	_, err := f.svc.UpdatePrescription(context.Background(), f.doctor, rx.ID, UpdateInput{
		Dosage: &dosage, Refills: intPtr(-1),
	})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, before, f.repo.rows[rx.ID])
	assert.Equal(t, 0, f.repo.updates)
}

func TestUpdatePrescription_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rx := f.prescribe(t, f.doctor, f.patient)
	early := "2026-01-01"

	_, err := f.svc.UpdatePrescription(ctx, f.otherDoctor, rx.ID, UpdateInput{Refills: intPtr(3)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.UpdatePrescription(ctx, f.patient, rx.ID, UpdateInput{Refills: intPtr(3)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.UpdatePrescription(ctx, f.nurse, rx.ID, UpdateInput{Refills: intPtr(3)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.UpdatePrescription(ctx, f.doctor, rx.ID, UpdateInput{EndDate: &early})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	_, err = f.svc.UpdatePrescription(ctx, f.doctor, uuid.New(), UpdateInput{Refills: intPtr(3)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 0, f.repo.updates)
}
