package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/domain/identity"
	"github.com/clinicbook/clinicbook/internal/platform/db"
)

// DefaultListWindow is how far ahead the public schedule listing looks when
// no date is given.
const DefaultListWindow = 3 * 24 * time.Hour

// Service is the booking engine. Every mutating operation runs inside a
// single transaction spanning the schedule and booking stores; the first
// failing precondition aborts the whole operation with one typed error.
type Service struct {
	tx        db.TxRunner
	schedules ScheduleRepository
	bookings  BookingRepository
	users     identity.UserRepository
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(tx db.TxRunner, schedules ScheduleRepository, bookings BookingRepository, users identity.UserRepository, log zerolog.Logger) *Service {
	return &Service{
		tx:        tx,
		schedules: schedules,
		bookings:  bookings,
		users:     users,
		log:       log,
		now:       time.Now,
	}
}

// wrap passes typed domain errors through and hides everything else behind
// CodeInternal.
func wrap(err error, message string) error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return internalError(err, message)
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// -- Bookings --

type CreateBookingInput struct {
	DoctorID int64  `json:"doctor_id"`
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

// CreateBooking reserves a seat for the acting patient on an approved
// schedule. The schedule row is locked before the capacity check, so
// concurrent requests for the last seat serialize and exactly one wins.
func (s *Service) CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*Booking, error) {
	date, err := ParseVisitDate(in.Date)
	if err != nil {
		return nil, err
	}
	slot, err := ParseTimeSlot(in.TimeSlot)
	if err != nil {
		return nil, err
	}
	if in.DoctorID <= 0 {
		return nil, newError(CodeValidation, "doctor_id is required")
	}
	if date.Before(s.today()) {
		return nil, newError(CodeValidation, "date must not be in the past")
	}

	var created *Booking
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		doctor, err := s.users.FindDoctor(ctx, in.DoctorID)
		if err != nil {
			return wrap(err, "failed to resolve doctor")
		}
		if doctor == nil {
			return newError(CodeNotFound, "doctor %d not found", in.DoctorID)
		}

		sched, err := s.schedules.FindApprovedSlotForUpdate(ctx, in.DoctorID, date, slot)
		if err != nil {
			return wrap(err, "failed to load schedule")
		}
		if sched == nil {
			return newError(CodeNotFound, "no approved schedule for this slot")
		}
		if sched.CurrentCount >= sched.MaxCapacity {
			return newError(CodeCapacityFull, "schedule is fully booked")
		}

		dup, err := s.bookings.FindActiveByPatientDoctorSlot(ctx, actor.ID, in.DoctorID, date, slot)
		if err != nil {
			return wrap(err, "failed to check existing bookings")
		}
		if dup != nil {
			return newError(CodeDuplicateBooking, "an active booking for this slot already exists")
		}

		conflict, err := s.bookings.FindActiveByPatientSlot(ctx, actor.ID, date, slot)
		if err != nil {
			return wrap(err, "failed to check time conflicts")
		}
		if conflict != nil {
			return newError(CodePatientTimeConflict, "patient already has a booking at this time")
		}

		b := &Booking{
			Token:     uuid.New(),
			DoctorID:  in.DoctorID,
			PatientID: actor.ID,
			Date:      date,
			Slot:      slot,
			Status:    StatusPending,
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return wrap(err, "failed to create booking")
		}

		if _, err := s.schedules.IncrementOccupancy(ctx, sched.ID); err != nil {
			return wrap(err, "failed to update occupancy")
		}

		created = b
		return nil
	})
	if err != nil {
		return nil, wrap(err, "booking transaction failed")
	}

	s.log.Info().
		Int64("booking_id", created.ID).
		Int64("patient_id", actor.ID).
		Int64("doctor_id", in.DoctorID).
		Str("date", in.Date).
		Str("time_slot", string(slot)).
		Msg("booking created")

	return created, nil
}

// GetBooking loads a booking for its patient, its doctor, or an admin.
func (s *Service) GetBooking(ctx context.Context, actor Actor, id int64) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "failed to load booking")
	}
	if b == nil {
		return nil, newError(CodeNotFound, "booking %d not found", id)
	}
	if !s.canTouchBooking(actor, b) {
		return nil, newError(CodeForbidden, "not allowed to view this booking")
	}
	return b, nil
}

// canTouchBooking: the owning patient, the assigned doctor, or an admin.
func (s *Service) canTouchBooking(actor Actor, b *Booking) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.ID == b.PatientID {
		return true
	}
	return actor.IsDoctor() && actor.ID == b.DoctorID
}

// CancelBooking releases the booking's seat. Authorization is checked
// before any state guard, so an outsider always sees Forbidden regardless
// of booking state. Cancelling twice yields AlreadyCancelled and leaves
// the counter alone.
func (s *Service) CancelBooking(ctx context.Context, actor Actor, id int64) (*Booking, error) {
	var cancelled *Booking
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return wrap(err, "failed to load booking")
		}
		if b == nil {
			return newError(CodeNotFound, "booking %d not found", id)
		}
		if !s.canTouchBooking(actor, b) {
			return newError(CodeForbidden, "not allowed to cancel this booking")
		}
		if b.Status == StatusCancelled {
			return newError(CodeAlreadyCancelled, "booking is already cancelled")
		}
		if b.Status == StatusCompleted {
			return newError(CodeInvalidTransition, "completed bookings cannot be cancelled")
		}

		updated, err := s.bookings.UpdateStatus(ctx, id, StatusCancelled)
		if err != nil {
			return wrap(err, "failed to update booking status")
		}

		if err := s.releaseSeat(ctx, b); err != nil {
			return err
		}

		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, wrap(err, "cancel transaction failed")
	}

	s.log.Info().Int64("booking_id", id).Int64("actor_id", actor.ID).Msg("booking cancelled")
	return cancelled, nil
}

// releaseSeat locks the matching schedule and decrements its counter,
// flooring at zero. Drift (no schedule, or a counter already at zero) is
// logged, not surfaced: the cancellation itself must still go through.
func (s *Service) releaseSeat(ctx context.Context, b *Booking) error {
	sched, err := s.schedules.FindSlotForUpdate(ctx, b.DoctorID, b.Date, b.Slot)
	if err != nil {
		return wrap(err, "failed to load schedule")
	}
	if sched == nil {
		s.log.Warn().
			Int64("booking_id", b.ID).
			Int64("doctor_id", b.DoctorID).
			Str("time_slot", string(b.Slot)).
			Msg("no schedule found for cancelled booking")
		return nil
	}
	if sched.CurrentCount == 0 {
		s.log.Warn().
			Int64("schedule_id", sched.ID).
			Int64("booking_id", b.ID).
			Msg("occupancy already at zero on release")
	}
	if _, err := s.schedules.DecrementOccupancy(ctx, sched.ID); err != nil {
		return wrap(err, "failed to update occupancy")
	}
	return nil
}

// takeSeat locks the matching schedule and re-increments its counter, for
// admin reactivation of a cancelled booking. Fails with CapacityFull when
// the slot has since filled up.
func (s *Service) takeSeat(ctx context.Context, b *Booking) error {
	sched, err := s.schedules.FindSlotForUpdate(ctx, b.DoctorID, b.Date, b.Slot)
	if err != nil {
		return wrap(err, "failed to load schedule")
	}
	if sched == nil {
		return newError(CodeNotFound, "no schedule for this booking's slot")
	}
	if _, err := s.schedules.IncrementOccupancy(ctx, sched.ID); err != nil {
		return wrap(err, "failed to update occupancy")
	}
	return nil
}

// UpdateBookingStatus moves a booking along pending -> confirmed ->
// completed. Only the assigned doctor or an admin may drive it; moving
// backwards is rejected, completed is terminal, and only an admin may pull
// a booking out of cancelled. Transitions touching cancelled mirror the
// seat counter.
func (s *Service) UpdateBookingStatus(ctx context.Context, actor Actor, id int64, rawStatus string) (*Booking, error) {
	target, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var updated *Booking
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return wrap(err, "failed to load booking")
		}
		if b == nil {
			return newError(CodeNotFound, "booking %d not found", id)
		}
		if !actor.IsAdmin() && !(actor.IsDoctor() && actor.ID == b.DoctorID) {
			return newError(CodeForbidden, "not allowed to update this booking")
		}

		if b.Status == target {
			updated = b
			return nil
		}

		switch b.Status {
		case StatusCompleted:
			return newError(CodeInvalidTransition, "completed bookings cannot change status")
		case StatusCancelled:
			if !actor.IsAdmin() {
				return newError(CodeInvalidTransition, "cancelled bookings can only be changed by an admin")
			}
		default:
			if target != StatusCancelled && statusRank[target] <= statusRank[b.Status] {
				return newError(CodeInvalidTransition, "cannot move booking from %s back to %s", b.Status, target)
			}
		}

		if target == StatusCancelled {
			if err := s.releaseSeat(ctx, b); err != nil {
				return err
			}
		}
		if b.Status == StatusCancelled && target.Active() {
			if err := s.takeSeat(ctx, b); err != nil {
				return err
			}
		}

		updated, err = s.bookings.UpdateStatus(ctx, id, target)
		if err != nil {
			return wrap(err, "failed to update booking status")
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "status transaction failed")
	}

	s.log.Info().
		Int64("booking_id", id).
		Str("status", string(updated.Status)).
		Int64("actor_id", actor.ID).
		Msg("booking status updated")

	return updated, nil
}

// ListBookingsByPatient shows a patient their own bookings; admins see
// anyone's.
func (s *Service) ListBookingsByPatient(ctx context.Context, actor Actor, patientID int64, limit, offset int) ([]*Booking, int, error) {
	if !actor.IsAdmin() && actor.ID != patientID {
		return nil, 0, newError(CodeForbidden, "not allowed to view these bookings")
	}
	items, total, err := s.bookings.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, wrap(err, "failed to list bookings")
	}
	return items, total, nil
}

// ListBookingsByDoctor shows a doctor their own bookings; admins see anyone's.
func (s *Service) ListBookingsByDoctor(ctx context.Context, actor Actor, doctorID int64, limit, offset int) ([]*Booking, int, error) {
	if !actor.IsAdmin() && !(actor.IsDoctor() && actor.ID == doctorID) {
		return nil, 0, newError(CodeForbidden, "not allowed to view these bookings")
	}
	items, total, err := s.bookings.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, wrap(err, "failed to list bookings")
	}
	return items, total, nil
}

// PurgeStaleCancelled deletes cancelled bookings last touched before
// now-olderThan. One batch delete; it never runs inside booking
// transactions.
func (s *Service) PurgeStaleCancelled(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, newError(CodeValidation, "retention window must be positive")
	}
	cutoff := s.now().Add(-olderThan)
	count, err := s.bookings.PurgeCancelledBefore(ctx, cutoff)
	if err != nil {
		return 0, wrap(err, "failed to purge cancelled bookings")
	}
	s.log.Info().Int64("deleted", count).Time("cutoff", cutoff).Msg("purged stale cancelled bookings")
	return count, nil
}

// -- Schedules --

type CreateScheduleInput struct {
	DoctorID    int64  `json:"doctor_id"`
	Date        string `json:"date"`
	TimeSlot    string `json:"time_slot"`
	MaxCapacity int    `json:"max_capacity"`
}

// CreateSchedule publishes a slot offering. Doctor-created schedules await
// admin approval; admin-created ones are approved immediately.
func (s *Service) CreateSchedule(ctx context.Context, actor Actor, in CreateScheduleInput) (*Schedule, error) {
	if !actor.IsAdmin() && !actor.IsDoctor() {
		return nil, newError(CodeForbidden, "only doctors and admins create schedules")
	}
	if actor.IsDoctor() && in.DoctorID != actor.ID {
		return nil, newError(CodeForbidden, "doctors can only create their own schedules")
	}

	date, err := ParseVisitDate(in.Date)
	if err != nil {
		return nil, err
	}
	slot, err := ParseTimeSlot(in.TimeSlot)
	if err != nil {
		return nil, err
	}
	if in.MaxCapacity < 1 {
		return nil, newError(CodeValidation, "max_capacity must be at least 1")
	}
	if date.Before(s.today()) {
		return nil, newError(CodeValidation, "date must not be in the past")
	}

	approval := ApprovalPending
	if actor.IsAdmin() {
		approval = ApprovalApproved
	}

	var created *Schedule
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		doctor, err := s.users.FindDoctor(ctx, in.DoctorID)
		if err != nil {
			return wrap(err, "failed to resolve doctor")
		}
		if doctor == nil {
			return newError(CodeNotFound, "doctor %d not found", in.DoctorID)
		}

		existing, err := s.schedules.FindAnySlot(ctx, in.DoctorID, date, slot)
		if err != nil {
			return wrap(err, "failed to check existing schedules")
		}
		if existing != nil {
			return newError(CodeValidation, "a schedule for this slot already exists")
		}

		sched := &Schedule{
			DoctorID:    in.DoctorID,
			Date:        date,
			Slot:        slot,
			MaxCapacity: in.MaxCapacity,
			Approval:    approval,
		}
		if err := s.schedules.Create(ctx, sched); err != nil {
			return wrap(err, "failed to create schedule")
		}
		created = sched
		return nil
	})
	if err != nil {
		return nil, wrap(err, "schedule transaction failed")
	}

	s.log.Info().
		Int64("schedule_id", created.ID).
		Int64("doctor_id", in.DoctorID).
		Str("approval_state", string(created.Approval)).
		Msg("schedule created")

	return created, nil
}

// GetSchedule hides non-approved schedules from everyone but their doctor
// and admins.
func (s *Service) GetSchedule(ctx context.Context, actor Actor, id int64) (*Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "failed to load schedule")
	}
	if sched == nil {
		return nil, newError(CodeNotFound, "schedule %d not found", id)
	}
	if sched.Approval != ApprovalApproved && !s.ownsSchedule(actor, sched) {
		return nil, newError(CodeNotFound, "schedule %d not found", id)
	}
	return sched, nil
}

func (s *Service) ownsSchedule(actor Actor, sched *Schedule) bool {
	return actor.IsAdmin() || (actor.IsDoctor() && actor.ID == sched.DoctorID)
}

type UpdateScheduleInput struct {
	Date        *string `json:"date"`
	TimeSlot    *string `json:"time_slot"`
	MaxCapacity *int    `json:"max_capacity"`
}

// UpdateSchedule edits a slot offering. Once approved, only an admin may
// touch it. Capacity can never shrink below seats already taken.
func (s *Service) UpdateSchedule(ctx context.Context, actor Actor, id int64, in UpdateScheduleInput) (*Schedule, error) {
	var updated *Schedule
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.GetByIDForUpdate(ctx, id)
		if err != nil {
			return wrap(err, "failed to load schedule")
		}
		if sched == nil {
			return newError(CodeNotFound, "schedule %d not found", id)
		}
		if !s.ownsSchedule(actor, sched) {
			return newError(CodeForbidden, "not allowed to edit this schedule")
		}
		if sched.Approval == ApprovalApproved && !actor.IsAdmin() {
			return newError(CodeForbidden, "approved schedules can only be edited by an admin")
		}

		if in.Date != nil {
			date, err := ParseVisitDate(*in.Date)
			if err != nil {
				return err
			}
			if date.Before(s.today()) {
				return newError(CodeValidation, "date must not be in the past")
			}
			sched.Date = date
		}
		if in.TimeSlot != nil {
			slot, err := ParseTimeSlot(*in.TimeSlot)
			if err != nil {
				return err
			}
			sched.Slot = slot
		}
		if in.MaxCapacity != nil {
			if *in.MaxCapacity < 1 {
				return newError(CodeValidation, "max_capacity must be at least 1")
			}
			if *in.MaxCapacity < sched.CurrentCount {
				return newError(CodeValidation, "max_capacity cannot drop below current occupancy")
			}
			sched.MaxCapacity = *in.MaxCapacity
		}

		if in.Date != nil || in.TimeSlot != nil {
			existing, err := s.schedules.FindAnySlot(ctx, sched.DoctorID, sched.Date, sched.Slot)
			if err != nil {
				return wrap(err, "failed to check existing schedules")
			}
			if existing != nil && existing.ID != sched.ID {
				return newError(CodeValidation, "a schedule for this slot already exists")
			}
		}

		if err := s.schedules.Update(ctx, sched); err != nil {
			return wrap(err, "failed to update schedule")
		}
		updated = sched
		return nil
	})
	if err != nil {
		return nil, wrap(err, "schedule transaction failed")
	}
	return updated, nil
}

// DeleteSchedule removes an offering, but never out from under active
// bookings. The check runs inside the delete transaction so a racing
// CreateBooking cannot slip in between.
func (s *Service) DeleteSchedule(ctx context.Context, actor Actor, id int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.GetByIDForUpdate(ctx, id)
		if err != nil {
			return wrap(err, "failed to load schedule")
		}
		if sched == nil {
			return newError(CodeNotFound, "schedule %d not found", id)
		}
		if !s.ownsSchedule(actor, sched) {
			return newError(CodeForbidden, "not allowed to delete this schedule")
		}

		active, err := s.bookings.CountActiveBySlot(ctx, sched.DoctorID, sched.Date, sched.Slot)
		if err != nil {
			return wrap(err, "failed to count active bookings")
		}
		if active > 0 {
			return newError(CodeHasActiveBookings, "schedule has %d active bookings", active)
		}

		if err := s.schedules.Delete(ctx, id); err != nil {
			return wrap(err, "failed to delete schedule")
		}
		return nil
	})
	if err != nil {
		return wrap(err, "schedule transaction failed")
	}

	s.log.Info().Int64("schedule_id", id).Int64("actor_id", actor.ID).Msg("schedule deleted")
	return nil
}

// ApproveSchedule marks a doctor-submitted schedule bookable. Admin only.
func (s *Service) ApproveSchedule(ctx context.Context, actor Actor, id int64) (*Schedule, error) {
	return s.setApproval(ctx, actor, id, ApprovalApproved)
}

// RejectSchedule declines a doctor-submitted schedule. Admin only.
func (s *Service) RejectSchedule(ctx context.Context, actor Actor, id int64) (*Schedule, error) {
	return s.setApproval(ctx, actor, id, ApprovalRejected)
}

func (s *Service) setApproval(ctx context.Context, actor Actor, id int64, state ApprovalState) (*Schedule, error) {
	if !actor.IsAdmin() {
		return nil, newError(CodeForbidden, "only admins review schedules")
	}

	var reviewed *Schedule
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sched, err := s.schedules.GetByIDForUpdate(ctx, id)
		if err != nil {
			return wrap(err, "failed to load schedule")
		}
		if sched == nil {
			return newError(CodeNotFound, "schedule %d not found", id)
		}
		if err := s.schedules.SetApproval(ctx, id, state); err != nil {
			return wrap(err, "failed to set approval state")
		}
		sched.Approval = state
		reviewed = sched
		return nil
	})
	if err != nil {
		return nil, wrap(err, "schedule transaction failed")
	}

	s.log.Info().
		Int64("schedule_id", id).
		Str("approval_state", string(state)).
		Msg("schedule reviewed")

	return reviewed, nil
}

// ListDoctorSchedules returns a doctor's offerings. With no date the
// window runs from today through the next three days. Patients only ever
// see approved rows; the doctor themself or an admin can ask for all.
func (s *Service) ListDoctorSchedules(ctx context.Context, actor Actor, doctorID int64, dateStr string, includeAll bool) ([]*Schedule, error) {
	var from, to time.Time
	if dateStr != "" {
		d, err := ParseVisitDate(dateStr)
		if err != nil {
			return nil, err
		}
		from, to = d, d
	} else {
		from = s.today()
		to = from.Add(DefaultListWindow)
	}

	owner := actor.IsAdmin() || (actor.IsDoctor() && actor.ID == doctorID)
	approvedOnly := !(owner && includeAll)

	items, err := s.schedules.ListByDoctor(ctx, doctorID, from, to, approvedOnly)
	if err != nil {
		return nil, wrap(err, "failed to list schedules")
	}
	return items, nil
}
