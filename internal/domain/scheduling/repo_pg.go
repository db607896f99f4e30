package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/mediconnect/internal/platform/db"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.created_by,
	to_char(a.appointment_date, 'YYYY-MM-DD'), to_char(a.appointment_time, 'HH24:MI'),
	a.duration, a.type, a.status, a.reason, a.notes, a.video_link, a.meeting_id,
	a.created_at, a.updated_at,
	pu.name, pu.email, pu.phone,
	du.name, du.email, du.phone, d.specialization`

const apptFrom = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var pt, doc Party
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.CreatedBy,
		&a.AppointmentDate, &a.AppointmentTime,
		&a.Duration, &a.Type, &a.Status, &a.Reason, &a.Notes, &a.VideoLink, &a.MeetingID,
		&a.CreatedAt, &a.UpdatedAt,
		&pt.Name, &pt.Email, &pt.Phone,
		&doc.Name, &doc.Email, &doc.Phone, &doc.Specialization)
	if err != nil {
		return nil, err
	}
	a.Patient, a.Doctor = &pt, &doc
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, created_by, appointment_date, appointment_time,
			duration, type, status, reason, notes, video_link, meeting_id)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.CreatedBy, a.AppointmentDate, a.AppointmentTime,
		a.Duration, a.Type, a.Status, a.Reason, a.Notes, a.VideoLink, a.MeetingID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Translate(err, "appointment")
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
	return a, db.Translate(err, "appointment")
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET appointment_date = $2::date, appointment_time = $3::time, duration = $4,
			type = $5, status = $6, reason = $7, notes = $8, video_link = $9, meeting_id = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.AppointmentDate, a.AppointmentTime, a.Duration,
		a.Type, a.Status, a.Reason, a.Notes, a.VideoLink, a.MeetingID,
	).Scan(&a.UpdatedAt)
	return db.Translate(err, "appointment")
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var where db.Filter
	if f.Status != "" {
		where.Add("a.status = $%d", f.Status)
	}
	if f.Date != "" {
		where.Add("a.appointment_date = $%d::date", f.Date)
	}
	if f.PatientID != nil {
		where.Add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		where.Add("a.doctor_id = $%d", *f.DoctorID)
	}
	order := ` ORDER BY a.appointment_date DESC, a.appointment_time DESC`
	if f.Ascending {
		order = ` ORDER BY a.appointment_date ASC, a.appointment_time ASC`
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "appointment")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+apptCols+apptFrom+where.Where()+order+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "appointment")
	}
	items, err := collectAppointments(rows)
	return items, total, err
}

func (r *appointmentRepoPG) HasActiveAt(ctx context.Context, doctorID uuid.UUID, date, clock string, exclude *uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2::date AND appointment_time = $3::time
				AND status IN ('scheduled', 'confirmed')
				AND ($4::uuid IS NULL OR id <> $4::uuid)
		)`, doctorID, date, clock, exclude).Scan(&exists)
	return exists, db.Translate(err, "appointment")
}

func (r *appointmentRepoPG) Stats(ctx context.Context, today string) (Stats, error) {
	var s Stats
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE appointment_date = $1::date),
			COUNT(*) FILTER (WHERE status = 'scheduled')
		FROM appointments`, today).Scan(&s.Total, &s.Today, &s.Pending)
	return s, db.Translate(err, "appointment")
}

func (r *appointmentRepoPG) Recent(ctx context.Context, n int) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+apptCols+apptFrom+` ORDER BY a.created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, db.Translate(err, "appointment")
	}
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, db.Translate(err, "appointment")
		}
		items = append(items, a)
	}
	return items, db.Translate(rows.Err(), "appointment")
}
