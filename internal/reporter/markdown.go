package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/lakewatch/lakewatch/internal/models"
	"github.com/lakewatch/lakewatch/pkg/config"
)

// WriteMarkdown writes a human-readable Markdown report to report.md.
func WriteMarkdown(report *models.Report, cfg *config.Config) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderMarkdownReport(report)
	outputPath := filepath.Join(cfg.OutputDir, "report.md")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.md: %w", err)
	}

	return nil
}

func renderMarkdownReport(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Lakewatch Monitoring Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", report.Timestamp)
	fmt.Fprintf(&b, "Period: last %d days\n\n", report.Metadata.LookbackDays)

	writeSummarySection(&b, report)
	writeAnomalySection(&b, report)

	if len(report.Jobs) > 0 {
		b.WriteString("\n## Job Runtime Details\n\n")
		writeJobTable(&b, report.Jobs)
	}

	if len(report.Clusters) > 0 {
		b.WriteString("\n## Cluster Utilization\n\n")
		writeClusterTable(&b, report.Clusters)
	}

	return b.String()
}

func writeSummarySection(b *strings.Builder, report *models.Report) {
	b.WriteString("## Summary Statistics\n\n")
	fmt.Fprintf(b, "- Jobs monitored: %d\n", len(report.Jobs))
	fmt.Fprintf(b, "- Job runs analyzed: %d (%d skipped)\n",
		report.Metadata.JobRunsAnalyzed, report.Metadata.SkippedJobRuns)

	if len(report.Jobs) > 0 {
		totalAvg := 0.0
		totalFailures := 0
		for i := range report.Jobs {
			totalAvg += report.Jobs[i].AvgDurationSeconds
			totalFailures += report.Jobs[i].FailedRuns
		}
		fmt.Fprintf(b, "- Average job runtime: %s minutes\n",
			formatFloat(totalAvg/float64(len(report.Jobs))/60))
		fmt.Fprintf(b, "- Total failed runs: %d\n", totalFailures)
	}

	fmt.Fprintf(b, "- Clusters monitored: %d\n", len(report.Clusters))
	fmt.Fprintf(b, "- Cluster samples analyzed: %d (%d skipped)\n",
		report.Metadata.ClusterSamplesAnalyzed, report.Metadata.SkippedClusterSamples)
}

func writeAnomalySection(b *strings.Builder, report *models.Report) {
	b.WriteString("\n## Detected Anomalies\n")

	if len(report.LongRunning) == 0 && len(report.HighFailureRate) == 0 {
		b.WriteString("\nNo anomalies detected.\n")
		return
	}

	if len(report.LongRunning) > 0 {
		fmt.Fprintf(b, "\n### Long-Running Jobs (%d detected)\n\n", len(report.LongRunning))
		table := newMarkdownTable(b, []string{"Rank", "Job", "Workspace", "Avg Duration (min)", "Runs"})
		for i := range report.LongRunning {
			f := &report.LongRunning[i]
			table.Append([]string{
				strconv.Itoa(f.Rank),
				f.JobName,
				f.WorkspaceID,
				formatFloat(f.MetricValue),
				strconv.Itoa(f.TotalRuns),
			})
		}
		table.Render()
	}

	if len(report.HighFailureRate) > 0 {
		fmt.Fprintf(b, "\n### High Failure Rate Jobs (%d detected)\n\n", len(report.HighFailureRate))
		table := newMarkdownTable(b, []string{"Rank", "Job", "Workspace", "Failure Rate", "Runs"})
		for i := range report.HighFailureRate {
			f := &report.HighFailureRate[i]
			table.Append([]string{
				strconv.Itoa(f.Rank),
				f.JobName,
				f.WorkspaceID,
				formatFloat(f.MetricValue),
				strconv.Itoa(f.TotalRuns),
			})
		}
		table.Render()
	}
}

func writeJobTable(b *strings.Builder, jobs []models.JobMetrics) {
	table := newMarkdownTable(b, []string{
		"Job", "Workspace", "Runs", "Failure Rate",
		"Avg (s)", "Min (s)", "Median (s)", "P90 (s)", "P95 (s)", "Max (s)",
	})
	for i := range jobs {
		job := &jobs[i]
		table.Append([]string{
			job.JobName,
			job.WorkspaceID,
			strconv.Itoa(job.TotalRuns),
			formatFloat(job.FailureRate),
			formatFloat(job.AvgDurationSeconds),
			formatFloat(job.MinDurationSeconds),
			formatFloat(job.MedianDurationSeconds),
			formatFloat(job.P90DurationSeconds),
			formatFloat(job.P95DurationSeconds),
			formatFloat(job.MaxDurationSeconds),
		})
	}
	table.Render()
}

func writeClusterTable(b *strings.Builder, clusters []models.ClusterMetrics) {
	table := newMarkdownTable(b, []string{
		"Cluster", "Role", "Samples", "Avg CPU %", "Peak CPU %", "Avg Wait %",
		"Avg Mem %", "Max Mem %", "Net In (MB)", "Net Out (MB)", "Efficiency",
	})
	for i := range clusters {
		cluster := &clusters[i]
		role := "worker"
		if cluster.IsDriver {
			role = "driver"
		}
		table.Append([]string{
			cluster.ClusterID,
			role,
			strconv.Itoa(cluster.DataPoints),
			formatFloat(cluster.AvgCPUUtilization),
			formatFloat(cluster.PeakCPUUtilization),
			formatFloat(cluster.AvgCPUWait),
			formatFloat(cluster.AvgMemoryUtilization),
			formatFloat(cluster.MaxMemoryUtilization),
			formatFloat(cluster.AvgNetworkReceivedMB),
			formatFloat(cluster.AvgNetworkSentMB),
			cluster.EfficiencyCategory,
		})
	}
	table.Render()
}

// newMarkdownTable configures tablewriter for GitHub-flavored Markdown output.
func newMarkdownTable(b *strings.Builder, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(b)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	return table
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
