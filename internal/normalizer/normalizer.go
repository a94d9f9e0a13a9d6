package normalizer

import (
	"log/slog"
	"math"
	"strings"

	"github.com/lakewatch/lakewatch/internal/models"
)

// JobRunResult carries validated job runs plus the count of rows dropped
// during normalization. Skips are observability metadata, never an error.
type JobRunResult struct {
	Records []models.JobRunRecord
	Skipped int
}

// ClusterSampleResult carries validated cluster samples plus the skip count.
type ClusterSampleResult struct {
	Samples []models.ClusterSample
	Skipped int
}

// NormalizeJobRuns validates raw job run rows. Rows missing an identity field
// or carrying an unusable duration are dropped and counted; the pipeline
// never fails on partial bad data.
func NormalizeJobRuns(rows []models.RawJobRun) JobRunResult {
	result := JobRunResult{
		Records: make([]models.JobRunRecord, 0, len(rows)),
	}

	for _, row := range rows {
		workspaceID := strings.TrimSpace(row.WorkspaceID)
		jobID := strings.TrimSpace(row.JobID)
		if workspaceID == "" || jobID == "" {
			result.Skipped++
			continue
		}
		if row.DurationSeconds == nil || !validMetric(row.DurationSeconds) {
			result.Skipped++
			continue
		}

		result.Records = append(result.Records, models.JobRunRecord{
			WorkspaceID:     workspaceID,
			JobID:           jobID,
			JobName:         strings.TrimSpace(row.JobName),
			DurationSeconds: *row.DurationSeconds,
			Status:          statusFromResultState(row.ResultState),
			StartTime:       row.StartTime,
		})
	}

	if result.Skipped > 0 {
		slog.Debug("skipped malformed job run rows",
			slog.Int("skipped", result.Skipped),
			slog.Int("total", len(rows)),
		)
	}

	return result
}

// NormalizeClusterSamples validates raw node samples. A row missing its
// cluster_id or holding a negative/non-finite metric value is dropped and
// counted. Nil metrics are carried through: exclusion from a statistic
// happens before accumulation, never after.
func NormalizeClusterSamples(rows []models.RawClusterSample) ClusterSampleResult {
	result := ClusterSampleResult{
		Samples: make([]models.ClusterSample, 0, len(rows)),
	}

	for _, row := range rows {
		clusterID := strings.TrimSpace(row.ClusterID)
		if clusterID == "" {
			result.Skipped++
			continue
		}
		if !validMetric(row.CPUUtilizationPct) ||
			!validMetric(row.CPUWaitPct) ||
			!validMetric(row.MemoryUtilizationPct) ||
			!validMetric(row.NetworkReceivedMB) ||
			!validMetric(row.NetworkSentMB) {
			result.Skipped++
			continue
		}

		result.Samples = append(result.Samples, models.ClusterSample{
			ClusterID:            clusterID,
			IsDriver:             row.IsDriver,
			CPUUtilizationPct:    row.CPUUtilizationPct,
			CPUWaitPct:           row.CPUWaitPct,
			MemoryUtilizationPct: row.MemoryUtilizationPct,
			NetworkReceivedMB:    row.NetworkReceivedMB,
			NetworkSentMB:        row.NetworkSentMB,
			SampleTime:           row.SampleTime,
		})
	}

	if result.Skipped > 0 {
		slog.Debug("skipped malformed cluster sample rows",
			slog.Int("skipped", result.Skipped),
			slog.Int("total", len(rows)),
		)
	}

	return result
}

// validMetric accepts absent values and present finite non-negative values.
func validMetric(value *float64) bool {
	if value == nil {
		return true
	}
	if math.IsNaN(*value) || math.IsInf(*value, 0) {
		return false
	}
	return *value >= 0
}

// statusFromResultState maps job_run_timeline result states onto the
// canonical run status. TIMEDOUT/CANCELED spellings appear in older rows.
func statusFromResultState(state string) models.RunStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "SUCCESS", "SUCCEEDED":
		return models.StatusSucceeded
	case "FAILED", "ERROR", "TIMEOUT", "TIMEDOUT", "CANCELLED", "CANCELED":
		return models.StatusFailed
	default:
		return models.StatusOther
	}
}
