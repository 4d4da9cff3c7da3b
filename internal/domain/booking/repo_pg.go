package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const schedCols = `id, doctor_id, date, time_slot, max_capacity, current_count, approval_state, created_at, updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.Slot, &s.MaxCapacity,
		&s.CurrentCount, &s.Approval, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule (doctor_id, date, time_slot, max_capacity, current_count, approval_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		s.DoctorID, s.Date, s.Slot, s.MaxCapacity, s.CurrentCount, s.Approval).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id int64) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM schedule WHERE id = $1`, id))
}

func (r *scheduleRepoPG) GetByIDForUpdate(ctx context.Context, id int64) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM schedule WHERE id = $1 FOR UPDATE`, id))
}

func (r *scheduleRepoPG) FindAnySlot(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM schedule WHERE doctor_id = $1 AND date = $2 AND time_slot = $3`,
		doctorID, date, slot))
}

func (r *scheduleRepoPG) FindSlotForUpdate(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM schedule WHERE doctor_id = $1 AND date = $2 AND time_slot = $3 FOR UPDATE`,
		doctorID, date, slot))
}

func (r *scheduleRepoPG) FindApprovedSlotForUpdate(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `
		SELECT `+schedCols+` FROM schedule
		WHERE doctor_id = $1 AND date = $2 AND time_slot = $3 AND approval_state = $4
		FOR UPDATE`,
		doctorID, date, slot, ApprovalApproved))
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *Schedule) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE schedule SET date=$2, time_slot=$3, max_capacity=$4, approval_state=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Date, s.Slot, s.MaxCapacity, s.Approval)
	return err
}

func (r *scheduleRepoPG) SetApproval(ctx context.Context, id int64, state ApprovalState) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE schedule SET approval_state = $2, updated_at = NOW() WHERE id = $1`, id, state)
	return err
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule WHERE id = $1`, id)
	return err
}

func (r *scheduleRepoPG) IncrementOccupancy(ctx context.Context, id int64) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedule SET current_count = current_count + 1, updated_at = NOW()
		WHERE id = $1 AND current_count < max_capacity
		RETURNING `+schedCols, id))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, newError(CodeCapacityFull, "schedule %d is at capacity", id)
	}
	return s, nil
}

func (r *scheduleRepoPG) DecrementOccupancy(ctx context.Context, id int64) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedule SET current_count = GREATEST(current_count - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING `+schedCols, id))
}

func (r *scheduleRepoPG) ListByDoctor(ctx context.Context, doctorID int64, from, to time.Time, approvedOnly bool) ([]*Schedule, error) {
	query := `SELECT ` + schedCols + ` FROM schedule WHERE doctor_id = $1 AND date >= $2 AND date <= $3`
	args := []interface{}{doctorID, from, to}
	if approvedOnly {
		query += ` AND approval_state = $4`
		args = append(args, ApprovalApproved)
	}
	query += ` ORDER BY date, time_slot`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

func (r *bookingRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bookingCols = `id, token, doctor_id, patient_id, date, time_slot, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.Token, &b.DoctorID, &b.PatientID, &b.Date,
		&b.Slot, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO booking (token, doctor_id, patient_id, date, time_slot, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		b.Token, b.DoctorID, b.PatientID, b.Date, b.Slot, b.Status).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id int64) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
}

func (r *bookingRepoPG) GetByIDForUpdate(ctx context.Context, id int64) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM booking WHERE id = $1 FOR UPDATE`, id))
}

func (r *bookingRepoPG) FindActiveByPatientDoctorSlot(ctx context.Context, patientID, doctorID int64, date time.Time, slot TimeSlot) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE patient_id = $1 AND doctor_id = $2 AND date = $3 AND time_slot = $4 AND status <> $5
		LIMIT 1`,
		patientID, doctorID, date, slot, StatusCancelled))
}

func (r *bookingRepoPG) FindActiveByPatientSlot(ctx context.Context, patientID int64, date time.Time, slot TimeSlot) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE patient_id = $1 AND date = $2 AND time_slot = $3 AND status <> $4
		LIMIT 1`,
		patientID, date, slot, StatusCancelled))
}

func (r *bookingRepoPG) UpdateStatus(ctx context.Context, id int64, status Status) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx, `
		UPDATE booking SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+bookingCols, id, status))
}

func (r *bookingRepoPG) CountActiveBySlot(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM booking
		WHERE doctor_id = $1 AND date = $2 AND time_slot = $3 AND status <> $4`,
		doctorID, date, slot, StatusCancelled).Scan(&count)
	return count, err
}

func (r *bookingRepoPG) list(ctx context.Context, column string, id int64, limit, offset int) ([]*Booking, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM booking WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM booking WHERE `+column+` = $1
		ORDER BY date DESC, time_slot, id DESC LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *bookingRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Booking, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *bookingRepoPG) ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]*Booking, int, error) {
	return r.list(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *bookingRepoPG) PurgeCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM booking WHERE status = $1 AND updated_at < $2`, StatusCancelled, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
