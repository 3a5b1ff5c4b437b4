package messagequeue

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		wantErr string
	}{
		{
			name:    "schedule computed",
			subject: SubjectScheduleComputed,
			data:    `{"snapshot_id":"s1","tasks_count":4,"project_start":1,"project_finish":8,"critical_path":["A","C","D"]}`,
		},
		{
			name:    "empty schedule",
			subject: SubjectScheduleComputed,
			data:    `{"tasks_count":0,"project_start":1,"project_finish":1,"critical_path":[]}`,
		},
		{
			name:    "wrong field type",
			subject: SubjectScheduleComputed,
			data:    `{"tasks_count":"four"}`,
			wantErr: "schema validation failed",
		},
		{
			name:    "finish before start",
			subject: SubjectScheduleComputed,
			data:    `{"tasks_count":1,"project_start":10,"project_finish":2}`,
			wantErr: "inconsistent project dates",
		},
		{
			name:    "snapshot deleted",
			subject: SubjectSnapshotDeleted,
			data:    `{"snapshot_id":"s1"}`,
		},
		{
			name:    "snapshot deleted without id",
			subject: SubjectSnapshotDeleted,
			data:    `{}`,
			wantErr: "snapshot_id is required",
		},
		{
			name:    "invalid json",
			subject: SubjectSnapshotDeleted,
			data:    `{not json`,
			wantErr: "invalid JSON",
		},
		{
			name:    "unknown subject",
			subject: "other.subject",
			data:    `{"anything":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.subject, []byte(tt.data))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
