package alignment

import (
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is one alignment run over a reference/target file pair.
type Job struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	RefCount         int       `json:"ref_count"`
	TargetCount      int       `json:"target_count"`
	MatchedCount     int       `json:"matched_count"`
	OrphanCount      int       `json:"orphan_count"`
	FailedEmbedCount int       `json:"failed_embed_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Counts summarizes a completed run.
type Counts struct {
	Matched     int
	Orphans     int
	FailedEmbed int
}

// TaskPayload is the NSQ message that triggers an alignment run.
type TaskPayload struct {
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ResultPayload is published when a run finishes, either way.
type ResultPayload struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Matched       int    `json:"matched"`
	Orphans       int    `json:"orphans"`
	FailedEmbeds  int    `json:"failed_embeds"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
