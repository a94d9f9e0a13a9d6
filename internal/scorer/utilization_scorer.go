package scorer

import (
	"github.com/lakewatch/lakewatch/internal/models"
)

// Efficiency category boundaries, in utilization percent.
const (
	underutilizedCPU    = 20.0
	underutilizedMemory = 30.0
	overutilizedCPU     = 80.0
	overutilizedMemory  = 85.0
)

// UtilizationScorer scores clusters by how well their provisioned capacity
// is used. Higher means busier.
type UtilizationScorer struct{}

// Score calculates a utilization score for a cluster (0.0 - 1.0)
func (s *UtilizationScorer) Score(cluster *models.ClusterMetrics) float64 {
	// Average CPU carries the most weight; memory and peak CPU fill in the
	// picture for bursty workloads.
	score := 0.5*cluster.AvgCPUUtilization/100 +
		0.3*cluster.AvgMemoryUtilization/100 +
		0.2*cluster.PeakCPUUtilization/100

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Categorize buckets a cluster as underutilized, overutilized or normal.
func (s *UtilizationScorer) Categorize(cluster *models.ClusterMetrics) string {
	if cluster.AvgCPUUtilization < underutilizedCPU && cluster.AvgMemoryUtilization < underutilizedMemory {
		return "underutilized"
	}
	if cluster.AvgCPUUtilization > overutilizedCPU || cluster.AvgMemoryUtilization > overutilizedMemory {
		return "overutilized"
	}
	return "normal"
}
