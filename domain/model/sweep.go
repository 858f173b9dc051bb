package model

import "time"

type SweepStatus string

const (
	SweepStatusSuccess SweepStatus = "success"
	SweepStatusError   SweepStatus = "error"
)

type SweepSource string

const (
	SweepSourceCron SweepSource = "cron"
	SweepSourcePoll SweepSource = "poll"
)

// SweepResult is the per-post outcome of one sweep. It is never persisted.
type SweepResult struct {
	PostID         string      `json:"postId"`
	Status         SweepStatus `json:"status"`
	LinkedInPostID string      `json:"linkedinPostId,omitempty"`
	Message        string      `json:"message,omitempty"`
	Error          string      `json:"error,omitempty"`
}

type SweepSummary struct {
	RunID          string        `json:"runId"`
	Source         SweepSource   `json:"source"`
	StartedAt      time.Time     `json:"startedAt"`
	ProcessedCount int           `json:"processedCount"`
	Results        []SweepResult `json:"results"`
	Skipped        []string      `json:"-"`
}

func (s *SweepSummary) Count(status SweepStatus) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

const (
	PostEventPublished = "post_published"
	PostEventFailed    = "post_failed"
)

// PostEvent is emitted to downstream consumers whenever the sweep or the share
// path settles a post.
type PostEvent struct {
	Type           string    `json:"type"`
	RunID          string    `json:"runId,omitempty"`
	PostID         string    `json:"postId"`
	UserID         string    `json:"userId"`
	LinkedInPostID string    `json:"linkedinPostId,omitempty"`
	Status         string    `json:"status,omitempty"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}
