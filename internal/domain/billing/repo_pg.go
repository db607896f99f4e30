package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/mediconnect/internal/platform/db"
)

// =========== Bill Repository ===========

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository {
	return &billRepoPG{pool: pool}
}

const billCols = `b.id, b.patient_id, b.appointment_id, to_char(b.bill_date, 'YYYY-MM-DD'),
	to_char(b.due_date, 'YYYY-MM-DD'), b.total_amount, b.paid_amount, b.insurance_covered, b.balance,
	b.services, b.status, b.payment_method, b.payment_date, b.notes, b.created_at, b.updated_at,
	u.name, u.email`

const billFrom = ` FROM bills b
	JOIN patients p ON p.id = b.patient_id
	JOIN users u ON u.id = p.user_id`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	var payer Payer
	err := row.Scan(&b.ID, &b.PatientID, &b.AppointmentID, &b.BillDate,
		&b.DueDate, &b.TotalAmount, &b.PaidAmount, &b.InsuranceCovered, &b.Balance,
		&b.Services, &b.Status, &b.PaymentMethod, &b.PaymentDate, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
		&payer.Name, &payer.Email)
	if err != nil {
		return nil, err
	}
	b.Patient = &payer
	return &b, nil
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Services == nil {
		b.Services = []LineItem{}
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO bills (id, patient_id, appointment_id, bill_date, due_date, total_amount, paid_amount,
			insurance_covered, balance, services, status, payment_method, payment_date, notes)
		VALUES ($1, $2, $3, $4::date, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		b.ID, b.PatientID, b.AppointmentID, b.BillDate, b.DueDate, b.TotalAmount, b.PaidAmount,
		b.InsuranceCovered, b.Balance, b.Services, b.Status, b.PaymentMethod, b.PaymentDate, b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return db.Translate(err, "bill")
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+billCols+billFrom+` WHERE b.id = $1`, id))
	return b, db.Translate(err, "bill")
}

func (r *billRepoPG) Update(ctx context.Context, b *Bill) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE bills SET due_date = $2::date, total_amount = $3, paid_amount = $4, insurance_covered = $5,
			balance = $6, services = $7, status = $8, payment_method = $9, payment_date = $10, notes = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.DueDate, b.TotalAmount, b.PaidAmount, b.InsuranceCovered,
		b.Balance, b.Services, b.Status, b.PaymentMethod, b.PaymentDate, b.Notes,
	).Scan(&b.UpdatedAt)
	return db.Translate(err, "bill")
}

func billWhere(f Filter) *db.Filter {
	var where db.Filter
	if f.PatientID != nil {
		where.Add("b.patient_id = $%d", *f.PatientID)
	}
	if f.AppointmentID != nil {
		where.Add("b.appointment_id = $%d", *f.AppointmentID)
	}
	if f.Status != "" {
		where.Add("b.status = $%d", f.Status)
	}
	if f.From != "" {
		where.Add("b.bill_date >= $%d::date", f.From)
	}
	if f.To != "" {
		where.Add("b.bill_date <= $%d::date", f.To)
	}
	return &where
}

func (r *billRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error) {
	where := billWhere(f)
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM bills b`+where.Where(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, db.Translate(err, "bill")
	}

	page, args := where.Page(limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+billCols+billFrom+where.Where()+
		` ORDER BY b.bill_date DESC, b.created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, db.Translate(err, "bill")
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, db.Translate(err, "bill")
		}
		items = append(items, b)
	}
	return items, total, db.Translate(rows.Err(), "bill")
}

func (r *billRepoPG) Summarize(ctx context.Context, f Filter) (Summary, error) {
	where := billWhere(f)
	var s Summary
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(b.total_amount), 0), COALESCE(SUM(b.paid_amount), 0),
			COALESCE(SUM(b.insurance_covered), 0), COUNT(*)
		FROM bills b`+where.Where(), where.Args()...,
	).Scan(&s.TotalAmount, &s.PaidAmount, &s.InsuranceCovered, &s.BillCount)
	if err != nil {
		return Summary{}, db.Translate(err, "bill")
	}
	s.Outstanding = s.TotalAmount.Sub(s.PaidAmount)
	return s, nil
}
