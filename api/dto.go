package api

import (
	"time"

	"lexflow/reminder"
)

// EntryDTO is the wire representation of a queue entry.
type EntryDTO struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id"`
	Channel     string     `json:"channel"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      string     `json:"status"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func toEntryDTOs(entries []reminder.Entry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{
			ID:          e.ID,
			RequestID:   e.RequestID,
			Channel:     string(e.Channel),
			ScheduledAt: e.ScheduledAt,
			Status:      string(e.Status),
			SentAt:      e.SentAt,
			Error:       e.ErrorMessage,
		})
	}
	return dtos
}
