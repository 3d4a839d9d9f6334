package entity

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a Booking.
type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusScheduled: {BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow},
}

// ParseBookingStatus returns the status for s and whether it is known.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingStatusScheduled, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return BookingStatus(s), true
	}
	return "", false
}

// CanTransitionTo reports whether a booking in s may move to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a scheduled session paid for by a Purchase.
type Booking struct {
	ID                uuid.UUID
	PurchaseID        uuid.UUID
	ExternalBookingID *string
	ScheduledDate     *time.Time
	Status            BookingStatus
	Notes             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TriggerBookingCreated is the only booking source trigger that is persisted.
const TriggerBookingCreated = "BOOKING_CREATED"

// BookingEvent is a normalized booking webhook.
type BookingEvent struct {
	Trigger           string
	AttendeeEmail     string
	AttendeeName      string
	ScheduledDate     *time.Time
	ExternalBookingID *string
	Title             string
}
