package schedule

import "context"

// =============================================================================
// NOTIFICATIONS - Fire-and-forget collaborator
// =============================================================================

type NotificationType string

const (
	NotifyBlockApproved     NotificationType = "block_approved"
	NotifyBlockTransfer     NotificationType = "block_transfer"
	NotifyQueuePlacement    NotificationType = "queue_placement"
	NotifyNoResponse        NotificationType = "no_response"
	NotifyReservationMade   NotificationType = "reservation_made"
	NotifyBlocksRegenerated NotificationType = "blocks_regenerated"
)

type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

type Notification struct {
	Type       NotificationType
	Title      string
	Body       string
	Recipients []EmployeeID
	AreaID     *AreaID
	GroupID    *GroupID
	Priority   NotificationPriority
	Metadata   map[string]string
}

// Notifier delivers notifications. The engine never blocks on or retries
// delivery; a failed Notify is logged by the caller and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// Recorder keeps notifications in memory. Used by tests and as a dev
// default when no delivery channel is configured.
type Recorder struct {
	Sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.Sent = append(r.Sent, n)
	return nil
}

// OfType returns the recorded notifications matching t.
func (r *Recorder) OfType(t NotificationType) []Notification {
	var out []Notification
	for _, n := range r.Sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}
