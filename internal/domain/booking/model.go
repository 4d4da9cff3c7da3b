package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/domain/identity"
)

// DateLayout is the wire format for visit dates.
const DateLayout = "2006-01-02"

// TimeSlot is a closed hourly clinic slot. The wire form is the code table
// key (T1..T8).
type TimeSlot string

const (
	SlotT1 TimeSlot = "T1"
	SlotT2 TimeSlot = "T2"
	SlotT3 TimeSlot = "T3"
	SlotT4 TimeSlot = "T4"
	SlotT5 TimeSlot = "T5"
	SlotT6 TimeSlot = "T6"
	SlotT7 TimeSlot = "T7"
	SlotT8 TimeSlot = "T8"
)

var validSlots = map[TimeSlot]bool{
	SlotT1: true, SlotT2: true, SlotT3: true, SlotT4: true,
	SlotT5: true, SlotT6: true, SlotT7: true, SlotT8: true,
}

func ParseTimeSlot(s string) (TimeSlot, error) {
	slot := TimeSlot(s)
	if !validSlots[slot] {
		return "", newError(CodeValidation, "unknown time slot %q", s)
	}
	return slot, nil
}

func (t TimeSlot) Valid() bool { return validSlots[t] }

// Status is the booking lifecycle state. Wire codes S1..S4.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var statusCodes = map[Status]string{
	StatusPending:   "S1",
	StatusConfirmed: "S2",
	StatusCancelled: "S3",
	StatusCompleted: "S4",
}

// ParseStatus accepts either a wire code (S1..S4) or a status name.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "S1", string(StatusPending):
		return StatusPending, nil
	case "S2", string(StatusConfirmed):
		return StatusConfirmed, nil
	case "S3", string(StatusCancelled):
		return StatusCancelled, nil
	case "S4", string(StatusCompleted):
		return StatusCompleted, nil
	}
	return "", newError(CodeValidation, "unknown status %q", s)
}

// Code returns the wire code for the status.
func (s Status) Code() string { return statusCodes[s] }

func (s Status) Valid() bool { return statusCodes[s] != "" }

// Active reports whether a booking in this status holds a slot seat.
// Everything except cancelled does.
func (s Status) Active() bool { return s != StatusCancelled }

// rank orders the forward-only progression. Cancelled sits outside it.
var statusRank = map[Status]int{
	StatusPending:   1,
	StatusConfirmed: 2,
	StatusCompleted: 3,
}

// CanTransition reports whether a non-admin move from s to target is
// allowed: forward along pending -> confirmed -> completed (skipping is
// fine), same-status no-ops, or out to cancelled from a non-terminal state.
func (s Status) CanTransition(target Status) bool {
	if s == target {
		return true
	}
	switch s {
	case StatusCompleted, StatusCancelled:
		return false
	}
	if target == StatusCancelled {
		return true
	}
	return statusRank[target] > statusRank[s]
}

// ApprovalState is the admin review state of a schedule.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

var validApprovals = map[ApprovalState]bool{
	ApprovalPending: true, ApprovalApproved: true, ApprovalRejected: true,
}

func (a ApprovalState) Valid() bool { return validApprovals[a] }

// ParseVisitDate validates the wire date format and returns the calendar
// day at UTC midnight.
func ParseVisitDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, newError(CodeValidation, "date must be YYYY-MM-DD")
	}
	return d, nil
}

// Schedule maps to the schedule table: one capacity-bounded slot offering
// per (doctor, date, time slot).
type Schedule struct {
	ID           int64         `db:"id" json:"id"`
	DoctorID     int64         `db:"doctor_id" json:"doctor_id"`
	Date         time.Time     `db:"date" json:"date"`
	Slot         TimeSlot      `db:"time_slot" json:"time_slot"`
	MaxCapacity  int           `db:"max_capacity" json:"max_capacity"`
	CurrentCount int           `db:"current_count" json:"current_count"`
	Approval     ApprovalState `db:"approval_state" json:"approval_state"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Remaining returns the seats still available.
func (s *Schedule) Remaining() int { return s.MaxCapacity - s.CurrentCount }

// Booking maps to the booking table. Token is the opaque confirmation
// reference handed to the patient, independent of the row id.
type Booking struct {
	ID        int64     `db:"id" json:"id"`
	Token     uuid.UUID `db:"token" json:"token"`
	DoctorID  int64     `db:"doctor_id" json:"doctor_id"`
	PatientID int64     `db:"patient_id" json:"patient_id"`
	Date      time.Time `db:"date" json:"date"`
	Slot      TimeSlot  `db:"time_slot" json:"time_slot"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Actor is the authenticated caller performing an engine operation.
type Actor struct {
	ID   int64
	Role identity.Role
}

func (a Actor) IsAdmin() bool  { return a.Role == identity.RoleAdmin }
func (a Actor) IsDoctor() bool { return a.Role == identity.RoleDoctor }
