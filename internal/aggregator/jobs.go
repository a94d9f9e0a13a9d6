package aggregator

import (
	"log/slog"
	"sort"

	"github.com/lakewatch/lakewatch/internal/models"
)

// jobAccumulator collects per-group state before statistics are computed.
type jobAccumulator struct {
	name       string
	durations  []float64
	successful int
	failed     int
}

// AggregateJobRuns groups validated runs by (workspace_id, job_id) and
// computes runtime and failure statistics per group. Groups only exist when
// at least one valid run was observed, so every emitted JobMetrics has
// total_runs >= 1 and a well-defined duration distribution.
//
// Job name resolution: the last non-empty name seen in input order wins.
// Jobs are occasionally renamed; last-write-wins is the documented,
// deterministic policy. Groups that never carried a name fall back to
// "job_<job_id>".
func AggregateJobRuns(records []models.JobRunRecord) map[models.JobKey]*models.JobMetrics {
	groups := make(map[models.JobKey]*jobAccumulator)

	for _, record := range records {
		key := record.Key()
		acc, exists := groups[key]
		if !exists {
			acc = &jobAccumulator{}
			groups[key] = acc
		}

		acc.durations = append(acc.durations, record.DurationSeconds)
		if record.JobName != "" {
			acc.name = record.JobName
		}
		switch record.Status {
		case models.StatusSucceeded:
			acc.successful++
		case models.StatusFailed:
			acc.failed++
		}
	}

	metrics := make(map[models.JobKey]*models.JobMetrics, len(groups))
	for key, acc := range groups {
		metrics[key] = acc.finalize(key)
	}

	slog.Debug("aggregated job runs",
		slog.Int("records", len(records)),
		slog.Int("jobs", len(metrics)),
	)

	return metrics
}

// finalize turns accumulated state into JobMetrics. The duration list is
// sorted once; min, max and all percentiles come off the same sorted list so
// the min <= median <= p90 <= p95 <= max ordering holds by construction.
func (acc *jobAccumulator) finalize(key models.JobKey) *models.JobMetrics {
	sorted := make([]float64, len(acc.durations))
	copy(sorted, acc.durations)
	sort.Float64s(sorted)

	total := len(sorted)
	sum := 0.0
	for _, d := range sorted {
		sum += d
	}

	name := acc.name
	if name == "" {
		name = "job_" + key.JobID
	}

	return &models.JobMetrics{
		WorkspaceID:           key.WorkspaceID,
		JobID:                 key.JobID,
		JobName:               name,
		TotalRuns:             total,
		SuccessfulRuns:        acc.successful,
		FailedRuns:            acc.failed,
		FailureRate:           float64(acc.failed) / float64(total),
		AvgDurationSeconds:    sum / float64(total),
		MinDurationSeconds:    sorted[0],
		MaxDurationSeconds:    sorted[total-1],
		MedianDurationSeconds: percentile(sorted, 50),
		P90DurationSeconds:    percentile(sorted, 90),
		P95DurationSeconds:    percentile(sorted, 95),
	}
}
