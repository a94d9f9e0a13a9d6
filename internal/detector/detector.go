package detector

import (
	"log/slog"
	"sort"
	"time"

	"github.com/lakewatch/lakewatch/internal/models"
	"github.com/lakewatch/lakewatch/pkg/config"
)

// Detector applies static threshold rules to aggregated job metrics. It is a
// pure function of its inputs: same metrics and thresholds, same findings.
type Detector struct {
	thresholds config.Thresholds
}

// Findings holds the two ordered anomaly lists.
type Findings struct {
	LongRunning     []models.AnomalyFinding
	HighFailureRate []models.AnomalyFinding
}

// Count returns the total number of findings.
func (f Findings) Count() int {
	return len(f.LongRunning) + len(f.HighFailureRate)
}

// New validates thresholds before any detection work. Invalid thresholds are
// a caller bug and fail immediately.
func New(thresholds config.Thresholds) (*Detector, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Detector{thresholds: thresholds}, nil
}

// Detect classifies jobs as long-running or high-failure-rate, ranks each
// category descending by its metric and truncates to the configured top-N.
func (d *Detector) Detect(jobs map[models.JobKey]*models.JobMetrics) Findings {
	now := time.Now()

	findings := Findings{
		LongRunning:     d.detectLongRunning(jobs, now),
		HighFailureRate: d.detectHighFailureRate(jobs, now),
	}

	slog.Debug("detected anomalies",
		slog.Int("long_running", len(findings.LongRunning)),
		slog.Int("high_failure_rate", len(findings.HighFailureRate)),
	)

	return findings
}

// detectLongRunning selects jobs whose average duration in minutes strictly
// exceeds the threshold.
func (d *Detector) detectLongRunning(jobs map[models.JobKey]*models.JobMetrics, now time.Time) []models.AnomalyFinding {
	var candidates []*models.JobMetrics
	for _, job := range jobs {
		if job.AvgDurationMinutes() > d.thresholds.LongRunningMinutes {
			candidates = append(candidates, job)
		}
	}

	sortCandidates(candidates, func(job *models.JobMetrics) float64 {
		return job.AvgDurationMinutes()
	})

	return buildFindings(candidates, models.CategoryLongRunning, d.thresholds.TopNLongRunning, now,
		func(job *models.JobMetrics) float64 {
			return job.AvgDurationMinutes()
		})
}

// detectHighFailureRate selects jobs whose failure rate strictly exceeds the
// threshold. A 100% failure rate always qualifies regardless of threshold:
// a job that never succeeds is categorically notable.
func (d *Detector) detectHighFailureRate(jobs map[models.JobKey]*models.JobMetrics, now time.Time) []models.AnomalyFinding {
	var candidates []*models.JobMetrics
	for _, job := range jobs {
		if job.FailureRate > d.thresholds.FailureRate || job.FailureRate == 1.0 {
			candidates = append(candidates, job)
		}
	}

	sortCandidates(candidates, func(job *models.JobMetrics) float64 {
		return job.FailureRate
	})

	return buildFindings(candidates, models.CategoryHighFailureRate, d.thresholds.TopNHighFailure, now,
		func(job *models.JobMetrics) float64 {
			return job.FailureRate
		})
}

// sortCandidates orders descending by metric, then descending by total runs
// (100% failure over 50 runs outranks 100% over 1 run), then by identity so
// the output is fully deterministic regardless of map iteration order.
func sortCandidates(candidates []*models.JobMetrics, metric func(*models.JobMetrics) float64) {
	sort.Slice(candidates, func(i, j int) bool {
		mi, mj := metric(candidates[i]), metric(candidates[j])
		if mi != mj {
			return mi > mj
		}
		if candidates[i].TotalRuns != candidates[j].TotalRuns {
			return candidates[i].TotalRuns > candidates[j].TotalRuns
		}
		return candidates[i].Key().String() < candidates[j].Key().String()
	})
}

func buildFindings(
	candidates []*models.JobMetrics,
	category models.AnomalyCategory,
	topN int,
	now time.Time,
	metric func(*models.JobMetrics) float64,
) []models.AnomalyFinding {
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	findings := make([]models.AnomalyFinding, 0, len(candidates))
	for i, job := range candidates {
		findings = append(findings, models.AnomalyFinding{
			Category:    category,
			WorkspaceID: job.WorkspaceID,
			JobID:       job.JobID,
			JobName:     job.JobName,
			MetricValue: metric(job),
			TotalRuns:   job.TotalRuns,
			Rank:        i + 1,
			DetectedAt:  now,
		})
	}

	return findings
}
