package booking

import (
	"context"
	"time"
)

// ScheduleRepository is the schedule store. Lookup methods return nil when
// no row matches; ForUpdate variants lock the row for the duration of the
// surrounding transaction.
type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id int64) (*Schedule, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Schedule, error)
	FindAnySlot(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (*Schedule, error)
	FindSlotForUpdate(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (*Schedule, error)
	FindApprovedSlotForUpdate(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	SetApproval(ctx context.Context, id int64, state ApprovalState) error
	Delete(ctx context.Context, id int64) error
	// IncrementOccupancy adds one seat, failing with CodeCapacityFull when
	// the counter already equals max_capacity. The guard lives in the SQL.
	IncrementOccupancy(ctx context.Context, id int64) (*Schedule, error)
	// DecrementOccupancy releases one seat, flooring at zero.
	DecrementOccupancy(ctx context.Context, id int64) (*Schedule, error)
	ListByDoctor(ctx context.Context, doctorID int64, from, to time.Time, approvedOnly bool) ([]*Schedule, error)
}

// BookingRepository is the booking store. "Active" queries exclude
// cancelled rows.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int64) (*Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Booking, error)
	FindActiveByPatientDoctorSlot(ctx context.Context, patientID, doctorID int64, date time.Time, slot TimeSlot) (*Booking, error)
	FindActiveByPatientSlot(ctx context.Context, patientID int64, date time.Time, slot TimeSlot) (*Booking, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Booking, error)
	CountActiveBySlot(ctx context.Context, doctorID int64, date time.Time, slot TimeSlot) (int, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Booking, int, error)
	ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]*Booking, int, error)
	// PurgeCancelledBefore deletes cancelled rows last touched before the
	// cutoff and returns how many went.
	PurgeCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
