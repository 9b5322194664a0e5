// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  Each event type gets its own durable queue; routing key
// equals queue name on the default exchange.
const (
	ReservationShortenedQueue = "reservation.shortened"
	ReservationCancelledQueue = "reservation.cancelled"
	ToolAccessDeniedQueue     = "tool.access_denied"
)

// ReservationShortenedEvent is published when an early tool logoff
// releases the unused tail of a reservation.  It carries enough for
// downstream consumers to notify the holder and update calendars
// without querying the primary database.
type ReservationShortenedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	DescendantID  uint64 `json:"descendant_id"`
	ToolID        uint64 `json:"tool_id"`
	UserID        uint64 `json:"user_id"`
	OldEnd        string `json:"old_end"`
	NewEnd        string `json:"new_end"`
	ShortenedAt   string `json:"shortened_at"`
}

// ReservationCancelledEvent is published when a reservation is
// cancelled, whether on explicit request or because an enable walked
// over it.
type ReservationCancelledEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	ToolID        uint64 `json:"tool_id"`
	UserID        uint64 `json:"user_id"`
	CancelledByID uint64 `json:"cancelled_by_id"`
	CancelledAt   string `json:"cancelled_at"`
}

// ToolAccessDeniedEvent is published when a policy check refuses an
// enable attempt on an interlocked tool, so staff can follow up on
// repeated circumvention attempts.
type ToolAccessDeniedEvent struct {
	ToolID     uint64 `json:"tool_id"`
	ToolName   string `json:"tool_name"`
	OperatorID uint64 `json:"operator_id"`
	Operator   string `json:"operator"`
	DeniedAt   string `json:"denied_at"`
}
