package reminder

import "time"

// Channel is a communication medium with its own enablement, template, and
// transport.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// AllChannels lists every channel the engine can dispatch on.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp}

// EntryStatus is the lifecycle state of a queue entry.
//
// PENDING entries are due work. IN_PROGRESS marks an entry claimed by a sweep
// so overlapping sweeps never double-dispatch. SENT, FAILED and CANCELLED are
// terminal, except for the single FAILED -> PENDING edge used by retry.
type EntryStatus string

const (
	StatusPending    EntryStatus = "PENDING"
	StatusInProgress EntryStatus = "IN_PROGRESS"
	StatusSent       EntryStatus = "SENT"
	StatusFailed     EntryStatus = "FAILED"
	StatusCancelled  EntryStatus = "CANCELLED"
)

// Entry is one scheduled, channel-specific reminder attempt tied to a
// signature request. Created by the scheduler, mutated only by the sweep
// processor and the cancellation routine.
type Entry struct {
	ID           string
	TenantID     string
	RequestID    string
	Channel      Channel
	ScheduledAt  time.Time
	Status       EntryStatus
	SentAt       *time.Time
	ErrorMessage string
	ClaimedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Statistics summarises a tenant's queue by entry status.
type Statistics struct {
	Pending    int64
	InProgress int64
	Sent       int64
	Failed     int64
	Cancelled  int64
}
