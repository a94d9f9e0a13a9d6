package scorer

import (
	"github.com/lakewatch/lakewatch/internal/models"
)

// Scorer interface for cluster efficiency scoring algorithms
type Scorer interface {
	Score(cluster *models.ClusterMetrics) float64
	Categorize(cluster *models.ClusterMetrics) string
}

// NewScorer creates a scorer based on the algorithm name
func NewScorer(algorithm string) Scorer {
	switch algorithm {
	case "utilization":
		return &UtilizationScorer{}
	default:
		return &UtilizationScorer{}
	}
}

// Apply annotates every cluster with its score and efficiency category.
func Apply(s Scorer, clusters map[string]*models.ClusterMetrics) {
	for _, cluster := range clusters {
		cluster.Score = s.Score(cluster)
		cluster.EfficiencyCategory = s.Categorize(cluster)
	}
}
