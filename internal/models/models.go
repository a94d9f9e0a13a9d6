package models

import (
	"fmt"
	"time"
)

// RunStatus classifies the terminal state of a job run.
type RunStatus string

const (
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusOther     RunStatus = "other"
)

// RawJobRun is a job run row as scanned from system.lakeflow.job_run_timeline,
// before validation. Fields may be empty or absent.
type RawJobRun struct {
	WorkspaceID     string
	JobID           string
	RunID           string
	JobName         string
	DurationSeconds *float64
	ResultState     string
	StartTime       time.Time
}

// JobRunRecord is a validated job run. Produced by the normalizer; identity
// fields are guaranteed non-empty and the duration non-negative.
type JobRunRecord struct {
	WorkspaceID     string
	JobID           string
	JobName         string
	DurationSeconds float64
	Status          RunStatus
	StartTime       time.Time
}

// Key returns the job identity this run belongs to.
func (r *JobRunRecord) Key() JobKey {
	return JobKey{WorkspaceID: r.WorkspaceID, JobID: r.JobID}
}

// RawClusterSample is a per-minute node sample as scanned from
// system.compute.node_timeline, before validation.
type RawClusterSample struct {
	ClusterID            string
	IsDriver             bool
	CPUUtilizationPct    *float64
	CPUWaitPct           *float64
	MemoryUtilizationPct *float64
	NetworkReceivedMB    *float64
	NetworkSentMB        *float64
	SampleTime           time.Time
}

// ClusterSample is a validated per-minute sample. ClusterID is non-empty and
// every present metric is non-negative. Nil metrics stay nil: a missing value
// is excluded from the running statistic, never treated as zero.
type ClusterSample struct {
	ClusterID            string
	IsDriver             bool
	CPUUtilizationPct    *float64
	CPUWaitPct           *float64
	MemoryUtilizationPct *float64
	NetworkReceivedMB    *float64
	NetworkSentMB        *float64
	SampleTime           time.Time
}

// JobKey identifies a job across workspaces.
type JobKey struct {
	WorkspaceID string
	JobID       string
}

func (k JobKey) String() string {
	return k.WorkspaceID + "/" + k.JobID
}

// JobMetrics holds aggregated runtime statistics for one job over the
// analysis window. Computed fresh per window, never mutated in place.
type JobMetrics struct {
	WorkspaceID           string  `json:"workspace_id"`
	JobID                 string  `json:"job_id"`
	JobName               string  `json:"job_name"`
	TotalRuns             int     `json:"total_runs"`
	SuccessfulRuns        int     `json:"successful_runs"`
	FailedRuns            int     `json:"failed_runs"`
	FailureRate           float64 `json:"failure_rate"`
	AvgDurationSeconds    float64 `json:"avg_duration_seconds"`
	MinDurationSeconds    float64 `json:"min_duration_seconds"`
	MaxDurationSeconds    float64 `json:"max_duration_seconds"`
	MedianDurationSeconds float64 `json:"median_duration_seconds"`
	P90DurationSeconds    float64 `json:"p90_duration_seconds"`
	P95DurationSeconds    float64 `json:"p95_duration_seconds"`
}

// Key returns the job identity.
func (m *JobMetrics) Key() JobKey {
	return JobKey{WorkspaceID: m.WorkspaceID, JobID: m.JobID}
}

// AvgDurationMinutes converts the average duration to minutes.
func (m *JobMetrics) AvgDurationMinutes() float64 {
	return m.AvgDurationSeconds / 60
}

// ClusterMetrics holds aggregated utilization statistics for one cluster.
// Score and EfficiencyCategory are filled in by the scorer.
type ClusterMetrics struct {
	ClusterID            string  `json:"cluster_id"`
	IsDriver             bool    `json:"is_driver"`
	DataPoints           int     `json:"data_points"`
	AvgCPUUtilization    float64 `json:"avg_cpu_utilization"`
	PeakCPUUtilization   float64 `json:"peak_cpu_utilization"`
	AvgCPUWait           float64 `json:"avg_cpu_wait"`
	MaxCPUWait           float64 `json:"max_cpu_wait"`
	AvgMemoryUtilization float64 `json:"avg_memory_utilization"`
	MaxMemoryUtilization float64 `json:"max_memory_utilization"`
	AvgNetworkReceivedMB float64 `json:"avg_network_mb_received"`
	AvgNetworkSentMB     float64 `json:"avg_network_mb_sent"`
	Score                float64 `json:"score"`
	EfficiencyCategory   string  `json:"efficiency_category,omitempty"`
}

// AnomalyCategory names a detection rule.
type AnomalyCategory string

const (
	CategoryLongRunning     AnomalyCategory = "long_running"
	CategoryHighFailureRate AnomalyCategory = "high_failure_rate"
)

// AnomalyFinding is a job flagged by a threshold rule. Owned by the detector;
// read-only to downstream consumers.
type AnomalyFinding struct {
	Category    AnomalyCategory `json:"category"`
	WorkspaceID string          `json:"workspace_id"`
	JobID       string          `json:"job_id"`
	JobName     string          `json:"job_name"`
	MetricValue float64         `json:"metric_value"`
	TotalRuns   int             `json:"total_runs"`
	Rank        int             `json:"rank"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// Fingerprint returns a stable identifier used for baseline suppression.
func (f *AnomalyFinding) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%s", f.Category, f.WorkspaceID, f.JobID)
}
