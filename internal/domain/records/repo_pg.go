package records

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/mediconnect/internal/platform/db"
)

// =========== Medical Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `m.id, m.patient_id, m.doctor_id, m.record_date, m.record_type, m.title,
	m.description, m.diagnosis, m.treatment, m.medications, m.vital_signs, m.attachments,
	m.is_confidential, m.created_at, m.updated_at,
	pu.name, pu.email, du.name`

const recordFrom = ` FROM medical_records m
	JOIN patients p ON p.id = m.patient_id
	JOIN users pu ON pu.id = p.user_id
	LEFT JOIN doctors d ON d.id = m.doctor_id
	LEFT JOIN users du ON du.id = d.user_id`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	var pt Person
	var doctorName *string
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.RecordDate, &m.RecordType, &m.Title,
		&m.Description, &m.Diagnosis, &m.Treatment, &m.Medications, &m.VitalSigns, &m.Attachments,
		&m.IsConfidential, &m.CreatedAt, &m.UpdatedAt,
		&pt.Name, &pt.Email, &doctorName)
	if err != nil {
		return nil, err
	}
	m.Patient = &pt
	if doctorName != nil {
		m.Doctor = &Person{Name: *doctorName}
	}
	return &m, nil
}

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, record_date, record_type, title,
			description, diagnosis, treatment, medications, vital_signs, attachments, is_confidential)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.DoctorID, m.RecordDate, m.RecordType, m.Title,
		m.Description, m.Diagnosis, m.Treatment, m.Medications, m.VitalSigns, m.Attachments, m.IsConfidential,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return db.Translate(err, "medical record")
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	m, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recordCols+recordFrom+` WHERE m.id = $1`, id))
	return m, db.Translate(err, "medical record")
}

func (r *recordRepoPG) Update(ctx context.Context, m *MedicalRecord) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medical_records SET record_date = $2, record_type = $3, title = $4, description = $5,
			diagnosis = $6, treatment = $7, medications = $8, vital_signs = $9, attachments = $10,
			is_confidential = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.RecordDate, m.RecordType, m.Title, m.Description,
		m.Diagnosis, m.Treatment, m.Medications, m.VitalSigns, m.Attachments, m.IsConfidential,
	).Scan(&m.UpdatedAt)
	return db.Translate(err, "medical record")
}

func (r *recordRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*MedicalRecord, int, error) {
	var where db.Filter
	if f.PatientID != nil {
		where.Add("m.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		where.Add("m.doctor_id = $%d", *f.DoctorID)
	}
	if f.RecordType != "" {
		where.Add("m.record_type = $%d", f.RecordType)
	}
	if f.ExcludeConfidential {
		where.AddRaw("NOT m.is_confidential")
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM medical_records m`+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "medical record")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+recordCols+recordFrom+where.Where()+
		` ORDER BY m.record_date DESC, m.created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "medical record")
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "medical record")
		}
		items = append(items, m)
	}
	return items, total, db.Translate(rows.Err(), "medical record")
}
