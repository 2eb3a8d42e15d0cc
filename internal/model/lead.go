// internal/model/lead.go
package model

import (
	"strings"
	"time"
)

type Lead struct {
	ID        int64      `db:"id" json:"id"`
	BatchID   int64      `db:"batch_id" json:"batch_id"`
	Email     string     `db:"email" json:"email"`
	Name      string     `db:"name" json:"name"`
	Phone     string     `db:"phone" json:"phone"`
	Address   string     `db:"address" json:"address"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// NormalizeEmail is the form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FirstName and LastName split Name on the first space.
func (l Lead) FirstName() string {
	first, _, _ := strings.Cut(strings.TrimSpace(l.Name), " ")
	return first
}

func (l Lead) LastName() string {
	_, last, _ := strings.Cut(strings.TrimSpace(l.Name), " ")
	return strings.TrimSpace(last)
}

// Placeholders are the per-recipient values a draft can reference.
func (l Lead) Placeholders() map[string]string {
	values := map[string]string{
		"email": l.Email,
	}
	if l.Name != "" {
		values["name"] = l.Name
		values["first_name"] = l.FirstName()
		if last := l.LastName(); last != "" {
			values["last_name"] = last
		}
	}
	if l.Phone != "" {
		values["phone"] = l.Phone
	}
	if l.Address != "" {
		values["address"] = l.Address
	}
	return values
}
