package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/db"
)

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, email, password_hash, name, phone, to_char(date_of_birth, 'YYYY-MM-DD'),
	address, role, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.DateOfBirth,
		&u.Address, &u.Role, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, date_of_birth, address, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.DateOfBirth, u.Address, u.Role, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return db.Translate(err, "user")
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, db.Translate(err, "user")
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	return u, db.Translate(err, "user")
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE users SET name = $2, phone = $3, date_of_birth = $4::date, address = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Name, u.Phone, u.DateOfBirth, u.Address,
	).Scan(&u.UpdatedAt)
	return db.Translate(err, "user")
}

func (r *userRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return db.Translate(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "user")
	}
	return nil
}

func (r *userRepoPG) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return db.Translate(err, "user")
}

func (r *userRepoPG) List(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	var where db.Filter
	if f.Role != nil {
		where.Add("role = $%d", *f.Role)
	}
	if f.IsActive != nil {
		where.Add("is_active = $%d", *f.IsActive)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "user")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+userCols+` FROM users`+where.Where()+` ORDER BY created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "user")
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "user")
		}
		items = append(items, u)
	}
	return items, total, db.Translate(rows.Err(), "user")
}

func (r *userRepoPG) CountByRole(ctx context.Context) (map[auth.Role]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, db.Translate(err, "user")
	}
	defer rows.Close()
	counts := make(map[auth.Role]int)
	for rows.Next() {
		var role auth.Role
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, db.Translate(err, "user")
		}
		counts[role] = n
	}
	return counts, db.Translate(rows.Err(), "user")
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `p.id, p.user_id, p.emergency_contact, p.emergency_phone, p.blood_type,
	p.allergies, p.current_medications, p.medical_conditions,
	p.insurance_provider, p.insurance_number, p.created_at, p.updated_at,
	u.name, u.email, u.phone, to_char(u.date_of_birth, 'YYYY-MM-DD')`

const patientFrom = ` FROM patients p JOIN users u ON u.id = p.user_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var c Contact
	err := row.Scan(&p.ID, &p.UserID, &p.EmergencyContact, &p.EmergencyPhone, &p.BloodType,
		&p.Allergies, &p.CurrentMedications, &p.MedicalConditions,
		&p.InsuranceProvider, &p.InsuranceNumber, &p.CreatedAt, &p.UpdatedAt,
		&c.Name, &c.Email, &c.Phone, &c.DateOfBirth)
	if err != nil {
		return nil, err
	}
	p.User = &c
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, emergency_contact, emergency_phone, blood_type,
			allergies, current_medications, medical_conditions, insurance_provider, insurance_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.EmergencyContact, p.EmergencyPhone, p.BloodType,
		p.Allergies, p.CurrentMedications, p.MedicalConditions, p.InsuranceProvider, p.InsuranceNumber,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Translate(err, "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.id = $1`, id))
	return p, db.Translate(err, "patient")
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.user_id = $1`, userID))
	return p, db.Translate(err, "patient")
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET emergency_contact = $2, emergency_phone = $3, blood_type = $4,
			allergies = $5, current_medications = $6, medical_conditions = $7,
			insurance_provider = $8, insurance_number = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.EmergencyContact, p.EmergencyPhone, p.BloodType,
		p.Allergies, p.CurrentMedications, p.MedicalConditions,
		p.InsuranceProvider, p.InsuranceNumber,
	).Scan(&p.UpdatedAt)
	return db.Translate(err, "patient")
}

func (r *patientRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	conn := db.Conn(ctx, r.pool)
	const seen = ` WHERE EXISTS (SELECT 1 FROM appointments a WHERE a.patient_id = p.id AND a.doctor_id = $1)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*)`+patientFrom+seen, doctorID).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "patient")
	}
	rows, err := conn.Query(ctx, `SELECT `+patientCols+patientFrom+seen+` ORDER BY u.name LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, db.Translate(err, "patient")
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "patient")
		}
		items = append(items, p)
	}
	return items, total, db.Translate(rows.Err(), "patient")
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `d.id, d.user_id, d.specialization, d.license_number, d.years_of_experience,
	d.education, d.bio, d.consultation_fee, d.available_hours, d.is_available,
	d.created_at, d.updated_at,
	u.name, u.email, u.phone, to_char(u.date_of_birth, 'YYYY-MM-DD')`

const doctorFrom = ` FROM doctors d JOIN users u ON u.id = d.user_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var c Contact
	err := row.Scan(&d.ID, &d.UserID, &d.Specialization, &d.LicenseNumber, &d.YearsOfExperience,
		&d.Education, &d.Bio, &d.ConsultationFee, &d.AvailableHours, &d.IsAvailable,
		&d.CreatedAt, &d.UpdatedAt,
		&c.Name, &c.Email, &c.Phone, &c.DateOfBirth)
	if err != nil {
		return nil, err
	}
	d.User = &c
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.AvailableHours == nil {
		d.AvailableHours = map[string]Interval{}
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, specialization, license_number, years_of_experience,
			education, bio, consultation_fee, available_hours, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.Specialization, d.LicenseNumber, d.YearsOfExperience,
		d.Education, d.Bio, d.ConsultationFee, d.AvailableHours, d.IsAvailable,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Translate(err, "doctor")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
	return d, db.Translate(err, "doctor")
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.user_id = $1`, userID))
	return d, db.Translate(err, "doctor")
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET specialization = $2, license_number = $3, years_of_experience = $4,
			education = $5, bio = $6, consultation_fee = $7, available_hours = $8,
			is_available = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Specialization, d.LicenseNumber, d.YearsOfExperience,
		d.Education, d.Bio, d.ConsultationFee, d.AvailableHours, d.IsAvailable,
	).Scan(&d.UpdatedAt)
	return db.Translate(err, "doctor")
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	var where db.Filter
	where.AddRaw("u.is_active")
	if f.AvailableOnly {
		where.AddRaw("d.is_available")
	}
	if f.Specialization != "" {
		where.Add("d.specialization ILIKE $%d", "%"+f.Specialization+"%")
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*)`+doctorFrom+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "doctor")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+doctorCols+doctorFrom+where.Where()+` ORDER BY u.name`+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "doctor")
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "doctor")
		}
		items = append(items, d)
	}
	return items, total, db.Translate(rows.Err(), "doctor")
}

// =========== Nurse Repository ===========

type nurseRepoPG struct{ pool *pgxpool.Pool }

func NewNurseRepoPG(pool *pgxpool.Pool) NurseRepository {
	return &nurseRepoPG{pool: pool}
}

const nurseCols = `n.id, n.user_id, n.license_number, n.department, n.years_of_experience, n.shift,
	n.created_at, n.updated_at,
	u.name, u.email, u.phone, to_char(u.date_of_birth, 'YYYY-MM-DD')`

const nurseFrom = ` FROM nurses n JOIN users u ON u.id = n.user_id`

func scanNurse(row pgx.Row) (*Nurse, error) {
	var n Nurse
	var c Contact
	err := row.Scan(&n.ID, &n.UserID, &n.LicenseNumber, &n.Department, &n.YearsOfExperience, &n.Shift,
		&n.CreatedAt, &n.UpdatedAt,
		&c.Name, &c.Email, &c.Phone, &c.DateOfBirth)
	if err != nil {
		return nil, err
	}
	n.User = &c
	return &n, nil
}

func (r *nurseRepoPG) Create(ctx context.Context, n *Nurse) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO nurses (id, user_id, license_number, department, years_of_experience, shift)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		n.ID, n.UserID, n.LicenseNumber, n.Department, n.YearsOfExperience, n.Shift,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	return db.Translate(err, "nurse")
}

func (r *nurseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	n, err := scanNurse(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+nurseCols+nurseFrom+` WHERE n.id = $1`, id))
	return n, db.Translate(err, "nurse")
}

func (r *nurseRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Nurse, error) {
	n, err := scanNurse(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+nurseCols+nurseFrom+` WHERE n.user_id = $1`, userID))
	return n, db.Translate(err, "nurse")
}

func (r *nurseRepoPG) Update(ctx context.Context, n *Nurse) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE nurses SET license_number = $2, department = $3, years_of_experience = $4,
			shift = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		n.ID, n.LicenseNumber, n.Department, n.YearsOfExperience, n.Shift,
	).Scan(&n.UpdatedAt)
	return db.Translate(err, "nurse")
}
