package signature

import "time"

// Status is the lifecycle state of a signature request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSigned    Status = "SIGNED"
	StatusDeclined  Status = "DECLINED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is out of the reminder-eligible window.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Request mirrors the signature_requests table columns touched by the
// reminder engine. The broader platform owns the rest of the row.
type Request struct {
	ID            string
	TenantID      string
	SignerName    string
	SignerEmail   string
	SignerPhone   string // optional; required for SMS and WhatsApp delivery
	DocumentTitle string
	Status        Status
	ExpiresAt     *time.Time

	RemindByEmail    bool
	RemindBySMS      bool
	RemindByWhatsApp bool

	LastReminderSentAt *time.Time
	ReminderCount      int

	CreatedAt time.Time
	UpdatedAt time.Time
}
