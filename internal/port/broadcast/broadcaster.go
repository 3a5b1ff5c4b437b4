// Package broadcast defines the port for pushing real-time events to
// connected clients.
package broadcast

import "context"

// Event types pushed to clients.
const (
	EventScheduleComputed = "schedule.computed"
	EventSnapshotDeleted  = "snapshot.deleted"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
