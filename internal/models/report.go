package models

import "time"

// Report is the complete output structure
type Report struct {
	Tool            string           `json:"tool"`
	Version         string           `json:"version"`
	Timestamp       string           `json:"timestamp"`
	Metadata        Metadata         `json:"metadata"`
	Jobs            []JobMetrics     `json:"jobs"`
	Clusters        []ClusterMetrics `json:"clusters"`
	LongRunning     []AnomalyFinding `json:"long_running"`
	HighFailureRate []AnomalyFinding `json:"high_failure_rate"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt            time.Time `json:"generated_at"`
	LookbackDays           int       `json:"lookback_days"`
	WarehouseHost          string    `json:"warehouse_host"`
	JobRunsAnalyzed        int       `json:"job_runs_analyzed"`
	ClusterSamplesAnalyzed int       `json:"cluster_samples_analyzed"`
	SkippedJobRuns         int       `json:"skipped_job_runs"`
	SkippedClusterSamples  int       `json:"skipped_cluster_samples"`
	AnalysisDuration       string    `json:"analysis_duration"`
	Version                string    `json:"version"`
}

// FindingCount returns the number of anomaly findings in the report.
func (r *Report) FindingCount() int {
	if r == nil {
		return 0
	}
	return len(r.LongRunning) + len(r.HighFailureRate)
}
