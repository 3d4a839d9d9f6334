package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Customer is a payer identified by email.
type Customer struct {
	ID        uuid.UUID
	Email     string
	Name      *string
	Phone     *string
	CreatedAt time.Time
}

// FirstName returns the first word of the name, or "".
func (c *Customer) FirstName() string {
	if c == nil || c.Name == nil {
		return ""
	}
	return FirstName(*c.Name)
}

// FirstName returns the first word of a display name.
func FirstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
