package messagequeue

import "time"

// ScheduleComputedPayload is the schema for schedules.computed messages.
// SnapshotID is empty when the schedule was not persisted.
type ScheduleComputedPayload struct {
	SnapshotID    string    `json:"snapshot_id,omitempty"`
	Name          string    `json:"name,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	TasksCount    int       `json:"tasks_count"`
	ProjectStart  int       `json:"project_start"`
	ProjectFinish int       `json:"project_finish"`
	CriticalPath  []string  `json:"critical_path"`
	ComputedAt    time.Time `json:"computed_at"`
}

// SnapshotDeletedPayload is the schema for snapshots.deleted messages.
type SnapshotDeletedPayload struct {
	SnapshotID string `json:"snapshot_id"`
	RequestID  string `json:"request_id,omitempty"`
}
