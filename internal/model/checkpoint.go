package model

import "time"

// CheckpointState is the persisted processing state for one identity key.
type CheckpointState string

const (
	CheckpointNotStarted CheckpointState = "not_started"
	CheckpointInProgress CheckpointState = "in_progress"
	CheckpointDone       CheckpointState = "done"
	CheckpointError      CheckpointState = "error"
)

// CheckpointEntry is the durable record of a lead's last processing state.
// Render results are kept so a resumed row can be re-scored without rendering.
type CheckpointEntry struct {
	IdentityKey  string          `json:"identity_key"`
	State        CheckpointState `json:"state"`
	RowHash      string          `json:"row_hash"`
	UpdatedAt    time.Time       `json:"updated_at"`
	RenderStatus RenderStatus    `json:"render_status,omitempty"`
	FailureKind  FailureKind     `json:"failure_kind,omitempty"`
	ContentRef   string          `json:"content_ref,omitempty"`
	Signals      SignalBundle    `json:"signals"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error,omitempty"`
	RunID        string          `json:"run_id,omitempty"`
}

// Resumable reports whether the entry lets a row with rowHash skip rendering.
func (e *CheckpointEntry) Resumable(rowHash string) bool {
	return e != nil && e.State == CheckpointDone && e.RowHash == rowHash && e.RenderStatus.IsTerminal()
}
