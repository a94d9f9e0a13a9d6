package scorer

import (
	"math"
	"testing"

	"github.com/lakewatch/lakewatch/internal/models"
)

func TestUtilizationScorerScore(t *testing.T) {
	cases := []struct {
		name    string
		cluster models.ClusterMetrics
		want    float64
	}{
		{
			name:    "idle_cluster",
			cluster: models.ClusterMetrics{},
			want:    0,
		},
		{
			name: "fully_utilized",
			cluster: models.ClusterMetrics{
				AvgCPUUtilization:    100,
				AvgMemoryUtilization: 100,
				PeakCPUUtilization:   100,
			},
			want: 1,
		},
		{
			name: "weighted_mix",
			cluster: models.ClusterMetrics{
				AvgCPUUtilization:    50,
				AvgMemoryUtilization: 40,
				PeakCPUUtilization:   80,
			},
			// 0.5*0.5 + 0.3*0.4 + 0.2*0.8
			want: 0.53,
		},
	}

	s := &UtilizationScorer{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Score(&tc.cluster)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected score %v, got %v", tc.want, got)
			}
		})
	}
}

func TestUtilizationScorerScoreClamped(t *testing.T) {
	s := &UtilizationScorer{}
	cluster := &models.ClusterMetrics{
		AvgCPUUtilization:    150,
		AvgMemoryUtilization: 150,
		PeakCPUUtilization:   150,
	}
	if got := s.Score(cluster); got != 1 {
		t.Fatalf("expected score clamped to 1, got %v", got)
	}
}

func TestUtilizationScorerCategorize(t *testing.T) {
	cases := []struct {
		name    string
		cluster models.ClusterMetrics
		want    string
	}{
		{
			name:    "underutilized",
			cluster: models.ClusterMetrics{AvgCPUUtilization: 10, AvgMemoryUtilization: 20},
			want:    "underutilized",
		},
		{
			name:    "low_cpu_but_busy_memory_is_normal",
			cluster: models.ClusterMetrics{AvgCPUUtilization: 10, AvgMemoryUtilization: 50},
			want:    "normal",
		},
		{
			name:    "overutilized_cpu",
			cluster: models.ClusterMetrics{AvgCPUUtilization: 85, AvgMemoryUtilization: 50},
			want:    "overutilized",
		},
		{
			name:    "overutilized_memory",
			cluster: models.ClusterMetrics{AvgCPUUtilization: 40, AvgMemoryUtilization: 90},
			want:    "overutilized",
		},
		{
			name:    "normal",
			cluster: models.ClusterMetrics{AvgCPUUtilization: 50, AvgMemoryUtilization: 50},
			want:    "normal",
		},
		{
			name:    "boundary_is_normal",
			cluster: models.ClusterMetrics{AvgCPUUtilization: 80, AvgMemoryUtilization: 85},
			want:    "normal",
		},
	}

	s := &UtilizationScorer{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Categorize(&tc.cluster); got != tc.want {
				t.Fatalf("expected category %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNewScorerDefaultsToUtilization(t *testing.T) {
	for _, algorithm := range []string{"utilization", "unknown", ""} {
		if _, ok := NewScorer(algorithm).(*UtilizationScorer); !ok {
			t.Fatalf("expected UtilizationScorer for %q", algorithm)
		}
	}
}

func TestApplyAnnotatesClusters(t *testing.T) {
	clusters := map[string]*models.ClusterMetrics{
		"idle": {ClusterID: "idle", AvgCPUUtilization: 5, AvgMemoryUtilization: 10},
		"busy": {ClusterID: "busy", AvgCPUUtilization: 90, AvgMemoryUtilization: 70, PeakCPUUtilization: 99},
	}

	Apply(NewScorer("utilization"), clusters)

	if clusters["idle"].EfficiencyCategory != "underutilized" {
		t.Fatalf("expected idle cluster underutilized, got %q", clusters["idle"].EfficiencyCategory)
	}
	if clusters["busy"].EfficiencyCategory != "overutilized" {
		t.Fatalf("expected busy cluster overutilized, got %q", clusters["busy"].EfficiencyCategory)
	}
	if clusters["busy"].Score <= clusters["idle"].Score {
		t.Fatalf("expected busy score above idle score, got %v vs %v",
			clusters["busy"].Score, clusters["idle"].Score)
	}
}
