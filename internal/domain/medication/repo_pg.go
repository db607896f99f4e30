package medication

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/mediconnect/internal/platform/db"
)

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const rxCols = `rx.id, rx.patient_id, rx.doctor_id, rx.appointment_id, rx.medication_name, rx.dosage,
	rx.frequency, rx.duration, rx.instructions, to_char(rx.start_date, 'YYYY-MM-DD'),
	to_char(rx.end_date, 'YYYY-MM-DD'), rx.is_active, rx.refills, rx.created_at, rx.updated_at,
	pu.name, pu.email, du.name`

const rxFrom = ` FROM prescriptions rx
	JOIN patients p ON p.id = rx.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = rx.doctor_id
	JOIN users du ON du.id = d.user_id`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var rx Prescription
	var pt, doc Person
	err := row.Scan(&rx.ID, &rx.PatientID, &rx.DoctorID, &rx.AppointmentID, &rx.MedicationName, &rx.Dosage,
		&rx.Frequency, &rx.Duration, &rx.Instructions, &rx.StartDate,
		&rx.EndDate, &rx.IsActive, &rx.Refills, &rx.CreatedAt, &rx.UpdatedAt,
		&pt.Name, &pt.Email, &doc.Name)
	if err != nil {
		return nil, err
	}
	rx.Patient, rx.Doctor = &pt, &doc
	return &rx, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, rx *Prescription) error {
	if rx.ID == uuid.Nil {
		rx.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, appointment_id, medication_name, dosage,
			frequency, duration, instructions, start_date, end_date, is_active, refills)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::date, $11::date, $12, $13)
		RETURNING created_at, updated_at`,
		rx.ID, rx.PatientID, rx.DoctorID, rx.AppointmentID, rx.MedicationName, rx.Dosage,
		rx.Frequency, rx.Duration, rx.Instructions, rx.StartDate, rx.EndDate, rx.IsActive, rx.Refills,
	).Scan(&rx.CreatedAt, &rx.UpdatedAt)
	return db.Translate(err, "prescription")
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	rx, err := scanPrescription(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+rxCols+rxFrom+` WHERE rx.id = $1`, id))
	return rx, db.Translate(err, "prescription")
}

func (r *prescriptionRepoPG) Update(ctx context.Context, rx *Prescription) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE prescriptions SET dosage = $2, frequency = $3, duration = $4, instructions = $5,
			end_date = $6::date, is_active = $7, refills = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rx.ID, rx.Dosage, rx.Frequency, rx.Duration, rx.Instructions, rx.EndDate, rx.IsActive, rx.Refills,
	).Scan(&rx.UpdatedAt)
	return db.Translate(err, "prescription")
}

func (r *prescriptionRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	var where db.Filter
	if f.PatientID != nil {
		where.Add("rx.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		where.Add("rx.doctor_id = $%d", *f.DoctorID)
	}
	if f.IsActive != nil {
		where.Add("rx.is_active = $%d", *f.IsActive)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions rx`+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "prescription")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+rxCols+rxFrom+where.Where()+` ORDER BY rx.created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "prescription")
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		rx, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "prescription")
		}
		items = append(items, rx)
	}
	return items, total, db.Translate(rows.Err(), "prescription")
}
