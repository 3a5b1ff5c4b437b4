package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need to be
// valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectScheduleComputed:
		var p ScheduleComputedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TasksCount < 0 || p.ProjectFinish < p.ProjectStart-1 {
			return fmt.Errorf("schema validation failed for %s: inconsistent project dates", subject)
		}
	case SubjectSnapshotDeleted:
		var p SnapshotDeletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.SnapshotID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("snapshot_id is required"))
		}
	}
	return nil
}
