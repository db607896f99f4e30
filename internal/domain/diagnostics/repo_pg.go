package diagnostics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/mediconnect/internal/platform/db"
)

// =========== Lab Result Repository ===========

type labResultRepoPG struct{ pool *pgxpool.Pool }

func NewLabResultRepoPG(pool *pgxpool.Pool) LabResultRepository {
	return &labResultRepoPG{pool: pool}
}

const labCols = `l.id, l.patient_id, l.doctor_id, l.appointment_id, l.test_name, l.test_type,
	l.test_date, l.result_date, l.results, l.normal_range, l.interpretation, l.lab_notes, l.file_path,
	l.status, l.is_urgent, l.created_at, l.updated_at,
	pu.name, pu.email, du.name`

// The doctor is optional, so it is left-joined.
const labFrom = ` FROM lab_results l
	JOIN patients p ON p.id = l.patient_id
	JOIN users pu ON pu.id = p.user_id
	LEFT JOIN doctors d ON d.id = l.doctor_id
	LEFT JOIN users du ON du.id = d.user_id`

func scanLabResult(row pgx.Row) (*LabResult, error) {
	var l LabResult
	var pt Person
	var doctorName *string
	err := row.Scan(&l.ID, &l.PatientID, &l.DoctorID, &l.AppointmentID, &l.TestName, &l.TestType,
		&l.TestDate, &l.ResultDate, &l.Results, &l.NormalRange, &l.Interpretation, &l.LabNotes, &l.FilePath,
		&l.Status, &l.IsUrgent, &l.CreatedAt, &l.UpdatedAt,
		&pt.Name, &pt.Email, &doctorName)
	if err != nil {
		return nil, err
	}
	l.Patient = &pt
	if doctorName != nil {
		l.Doctor = &Person{Name: *doctorName}
	}
	return &l, nil
}

func (r *labResultRepoPG) Create(ctx context.Context, l *LabResult) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_results (id, patient_id, doctor_id, appointment_id, test_name, test_type,
			test_date, result_date, results, normal_range, interpretation, lab_notes, file_path,
			status, is_urgent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		l.ID, l.PatientID, l.DoctorID, l.AppointmentID, l.TestName, l.TestType,
		l.TestDate, l.ResultDate, l.Results, l.NormalRange, l.Interpretation, l.LabNotes, l.FilePath,
		l.Status, l.IsUrgent,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return db.Translate(err, "lab result")
}

func (r *labResultRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabResult, error) {
	l, err := scanLabResult(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+labCols+labFrom+` WHERE l.id = $1`, id))
	return l, db.Translate(err, "lab result")
}

func (r *labResultRepoPG) Update(ctx context.Context, l *LabResult) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE lab_results SET result_date = $2, results = $3, normal_range = $4, interpretation = $5,
			lab_notes = $6, file_path = $7, status = $8, is_urgent = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		l.ID, l.ResultDate, l.Results, l.NormalRange, l.Interpretation,
		l.LabNotes, l.FilePath, l.Status, l.IsUrgent,
	).Scan(&l.UpdatedAt)
	return db.Translate(err, "lab result")
}

func (r *labResultRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*LabResult, int, error) {
	var where db.Filter
	if f.PatientID != nil {
		where.Add("l.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		where.Add("l.doctor_id = $%d", *f.DoctorID)
	}
	if f.Status != "" {
		where.Add("l.status = $%d", f.Status)
	}
	if f.TestType != "" {
		where.Add("l.test_type = $%d", f.TestType)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM lab_results l`+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "lab result")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+labCols+labFrom+where.Where()+
		` ORDER BY l.test_date DESC, l.created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "lab result")
	}
	defer rows.Close()
	var items []*LabResult
	for rows.Next() {
		l, err := scanLabResult(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "lab result")
		}
		items = append(items, l)
	}
	return items, total, db.Translate(rows.Err(), "lab result")
}
