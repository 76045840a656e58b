package metrics

import (
	"context"
	"time"

	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

// LogStore is the run-log slice the verifier reads.
type LogStore interface {
	SourceCounts(ctx context.Context, since time.Time) ([]store.SourceCount, error)
}

// FailureStore is the permanent-failure slice the verifier reads.
type FailureStore interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// Verifier checks recent crawl output against the per-source item quota.
// The quota is advisory: shortfalls are reported, never enforced.
type Verifier struct {
	logs     LogStore
	failures FailureStore
	minItems int
	logger   logger.Logger
}

// NewVerifier creates a quota verifier.
func NewVerifier(logs LogStore, failures FailureStore, minItems int, log logger.Logger) *Verifier {
	return &Verifier{logs: logs, failures: failures, minItems: minItems, logger: log}
}

// SourceReport is one source/category line of a verification report.
type SourceReport struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	Items    int    `json:"items"`
	Runs     int    `json:"runs"`
	Quota    int    `json:"quota"`
	QuotaMet bool   `json:"quota_met"`
}

// Report summarizes pipeline output over one verification window.
type Report struct {
	Window            time.Duration  `json:"window"`
	Sources           []SourceReport `json:"sources"`
	TotalItems        int            `json:"total_items"`
	QuotaShortfalls   int            `json:"quota_shortfalls"`
	PermanentFailures int64          `json:"permanent_failures"`
}

// Verify aggregates run logs over the window and flags sources whose
// scraped item count fell below the quota.
func (v *Verifier) Verify(ctx context.Context, window time.Duration) (*Report, error) {
	since := time.Now().UTC().Add(-window)

	counts, err := v.logs.SourceCounts(ctx, since)
	if err != nil {
		return nil, err
	}
	failed, err := v.failures.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}

	report := &Report{Window: window, PermanentFailures: failed}
	for _, c := range counts {
		met := c.Items >= v.minItems
		if !met {
			report.QuotaShortfalls++
			v.logger.Warn("source below item quota",
				logger.String("source", c.Source),
				logger.String("category", c.Category),
				logger.Int("items", c.Items),
				logger.Int("quota", v.minItems))
		}
		report.TotalItems += c.Items
		report.Sources = append(report.Sources, SourceReport{
			Source:   c.Source,
			Category: c.Category,
			Items:    c.Items,
			Runs:     c.Runs,
			Quota:    v.minItems,
			QuotaMet: met,
		})
	}
	return report, nil
}
