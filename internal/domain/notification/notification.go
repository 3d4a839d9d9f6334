// Package notification defines the transactional email port.
package notification

import "context"

// Kind selects a template.
type Kind string

const (
	PaymentConfirmed Kind = "payment_confirmed"
	BookingConfirmed Kind = "booking_confirmed"
)

type Recipient struct {
	Email string
	Name  string
}

// TemplateData fills the templates. Zero values are omitted from the email.
type TemplateData struct {
	PlanName      string
	Amount        string
	Currency      string
	OrderID       string
	ScheduledDate string
	BookingURL    string
}

// Notifier sends a transactional email. It never fails the caller;
// the result only says whether the message was handed to the relay.
type Notifier interface {
	Send(ctx context.Context, kind Kind, to Recipient, data TemplateData) bool
}
