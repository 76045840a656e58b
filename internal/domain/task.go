package domain

import "time"

// TaskKind identifies the work a ScrapingTask requests.
type TaskKind string

const (
	TaskScraping         TaskKind = "scraping"
	TaskUpdate           TaskKind = "update"
	TaskEnrichment       TaskKind = "enrichment"
	TaskPopularityUpdate TaskKind = "popularity_update"
)

// MaxTaskRetries is the delivery retry budget. A task whose retry count
// exceeds this is terminal: it goes to the permanent-failure store and is
// never requeued.
const MaxTaskRetries = 3

// Priority tiers. Lower is more urgent.
const (
	PriorityUrgent  = 1
	PriorityHigh    = 2
	PriorityNormal  = 3
	PriorityLow     = 4
	MinPriority     = PriorityUrgent
	MaxPriorityTier = PriorityLow
)

// ScrapingTask is the queue message driving all pipeline work.
type ScrapingTask struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Source     string    `json:"source"`
	Priority   int       `json:"priority"`
	Languages  []string  `json:"languages,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       TaskKind  `json:"type"`
	RetryCount int       `json:"retry_count"`
}

// ClampPriority normalizes an out-of-range priority into a valid tier.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriorityTier {
		return MaxPriorityTier
	}
	return p
}

// Run statuses recorded on a ScrapingLog.
const (
	RunStatusCompleted   = "completed"
	RunStatusQuotaNotMet = "quota_not_met"
	RunStatusFailed      = "failed"
)

// ScrapingLog records one crawl run. It is opened when the task starts and
// finalized when the task ends; a completed run always carries both termini.
type ScrapingLog struct {
	ID             string     `db:"id"              json:"id"`
	Source         string     `db:"source"          json:"source"`
	TargetCategory string     `db:"target_category" json:"target_category"`
	StartedAt      time.Time  `db:"started_at"      json:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	Success        bool       `db:"success"         json:"success"`
	Status         string     `db:"status"          json:"status"`
	ItemsCount     int        `db:"items_count"     json:"items_count"`
	ErrorsCount    int        `db:"errors_count"    json:"errors_count"`
	ErrorMessage   string     `db:"error_message"   json:"error_message,omitempty"`
	DurationSecs   float64    `db:"duration_seconds" json:"duration_seconds"`
}

// PermanentFailure is the append-only record of a task that exhausted its
// retry budget.
type PermanentFailure struct {
	ID         string       `db:"id"          json:"id"`
	Task       ScrapingTask `db:"-"           json:"task"`
	RetryCount int          `db:"retry_count" json:"retry_count"`
	FailedAt   time.Time    `db:"failed_at"   json:"failed_at"`
}
