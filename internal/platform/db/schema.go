package db

// ForeignKey is one edge of the relationship graph.
type ForeignKey struct {
	Constraint string
	Table      string
	Column     string
	References string // referenced entity, used in error messages
	Optional   bool
}

// Relations is the static foreign-key graph of the core schema. It must
// match the constraint names in migrations/001_core.sql.
var Relations = []ForeignKey{
	{"patients_user_id_fkey", "patients", "user_id", "user", false},
	{"doctors_user_id_fkey", "doctors", "user_id", "user", false},
	{"nurses_user_id_fkey", "nurses", "user_id", "user", false},
	{"appointments_patient_id_fkey", "appointments", "patient_id", "patient", false},
	{"appointments_doctor_id_fkey", "appointments", "doctor_id", "doctor", false},
	{"appointments_created_by_fkey", "appointments", "created_by", "user", true},
	{"prescriptions_patient_id_fkey", "prescriptions", "patient_id", "patient", false},
	{"prescriptions_doctor_id_fkey", "prescriptions", "doctor_id", "doctor", false},
	{"prescriptions_appointment_id_fkey", "prescriptions", "appointment_id", "appointment", true},
	{"lab_results_patient_id_fkey", "lab_results", "patient_id", "patient", false},
	{"lab_results_doctor_id_fkey", "lab_results", "doctor_id", "doctor", true},
	{"lab_results_appointment_id_fkey", "lab_results", "appointment_id", "appointment", true},
	{"bills_patient_id_fkey", "bills", "patient_id", "patient", false},
	{"bills_appointment_id_fkey", "bills", "appointment_id", "appointment", true},
	{"medical_records_patient_id_fkey", "medical_records", "patient_id", "patient", false},
	{"medical_records_doctor_id_fkey", "medical_records", "doctor_id", "doctor", true},
}

var relationsByConstraint = func() map[string]ForeignKey {
	m := make(map[string]ForeignKey, len(Relations))
	for _, fk := range Relations {
		m[fk.Constraint] = fk
	}
	return m
}()

// RelationByConstraint looks up a foreign key by constraint name.
func RelationByConstraint(name string) (ForeignKey, bool) {
	fk, ok := relationsByConstraint[name]
	return fk, ok
}

// Unique constraint names referenced by the repositories.
const (
	UniqueUserEmail     = "users_email_key"
	UniqueDoctorLicense = "doctors_license_number_key"
	UniqueNurseLicense  = "nurses_license_number_key"
	UniquePatientUser   = "patients_user_id_key"
	UniqueDoctorUser    = "doctors_user_id_key"
	UniqueNurseUser     = "nurses_user_id_key"
	SlotIndex           = "appointments_active_slot_uq"
)
