package aggregator

import (
	"log/slog"

	"github.com/lakewatch/lakewatch/internal/models"
)

// runningStat accumulates mean/max for one metric. Absent values never enter
// the statistic; the count tracks only contributing samples.
type runningStat struct {
	count int
	sum   float64
	max   float64
}

func (s *runningStat) add(value *float64) {
	if value == nil {
		return
	}
	s.count++
	s.sum += *value
	if s.count == 1 || *value > s.max {
		s.max = *value
	}
}

func (s *runningStat) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// clusterAccumulator collects per-cluster state before metrics are computed.
type clusterAccumulator struct {
	samples       int
	driverSamples int
	cpu           runningStat
	cpuWait       runningStat
	memory        runningStat
	netReceived   runningStat
	netSent       runningStat
}

// AggregateClusterSamples groups validated node samples by cluster_id and
// computes utilization statistics per cluster. Driver and worker samples for
// the same cluster aggregate as one entity; the emitted is_driver flag
// reflects the majority role, ties going to driver.
func AggregateClusterSamples(samples []models.ClusterSample) map[string]*models.ClusterMetrics {
	groups := make(map[string]*clusterAccumulator)

	for _, sample := range samples {
		acc, exists := groups[sample.ClusterID]
		if !exists {
			acc = &clusterAccumulator{}
			groups[sample.ClusterID] = acc
		}

		acc.samples++
		if sample.IsDriver {
			acc.driverSamples++
		}
		acc.cpu.add(sample.CPUUtilizationPct)
		acc.cpuWait.add(sample.CPUWaitPct)
		acc.memory.add(sample.MemoryUtilizationPct)
		acc.netReceived.add(sample.NetworkReceivedMB)
		acc.netSent.add(sample.NetworkSentMB)
	}

	metrics := make(map[string]*models.ClusterMetrics, len(groups))
	for clusterID, acc := range groups {
		metrics[clusterID] = &models.ClusterMetrics{
			ClusterID:            clusterID,
			IsDriver:             acc.driverSamples*2 >= acc.samples,
			DataPoints:           acc.samples,
			AvgCPUUtilization:    acc.cpu.mean(),
			PeakCPUUtilization:   acc.cpu.max,
			AvgCPUWait:           acc.cpuWait.mean(),
			MaxCPUWait:           acc.cpuWait.max,
			AvgMemoryUtilization: acc.memory.mean(),
			MaxMemoryUtilization: acc.memory.max,
			AvgNetworkReceivedMB: acc.netReceived.mean(),
			AvgNetworkSentMB:     acc.netSent.mean(),
		}
	}

	slog.Debug("aggregated cluster samples",
		slog.Int("samples", len(samples)),
		slog.Int("clusters", len(metrics)),
	)

	return metrics
}
