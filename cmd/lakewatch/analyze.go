package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lakewatch/lakewatch/internal/aggregator"
	"github.com/lakewatch/lakewatch/internal/baseline"
	"github.com/lakewatch/lakewatch/internal/collector"
	"github.com/lakewatch/lakewatch/internal/detector"
	"github.com/lakewatch/lakewatch/internal/logging"
	"github.com/lakewatch/lakewatch/internal/models"
	"github.com/lakewatch/lakewatch/internal/normalizer"
	"github.com/lakewatch/lakewatch/internal/reporter"
	"github.com/lakewatch/lakewatch/internal/scorer"
	"github.com/lakewatch/lakewatch/pkg/config"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	// String variables for custom duration parsing
	var configPath string
	var lookbackStr string
	var queryTimeoutStr string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze job and cluster telemetry and generate report",
		Long: `Analyze job-run and cluster-utilization telemetry from the warehouse
system tables, compute per-job and per-cluster statistics, detect anomalies
and write the report.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			fileCfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			if fileCfg != nil {
				// Flags take precedence over file values.
				if cmd.Flags().Changed("warehouse-dsn") {
					fileCfg.WarehouseDSN = ""
				}
				if cmd.Flags().Changed("lookback") {
					fileCfg.Lookback = ""
				}
				if cmd.Flags().Changed("query-timeout") {
					fileCfg.QueryTimeout = ""
				}
				if cmd.Flags().Changed("output") {
					fileCfg.OutputDir = ""
				}
				if cmd.Flags().Changed("format") {
					fileCfg.Format = ""
				}
				if cmd.Flags().Changed("baseline") {
					fileCfg.BaselinePath = ""
				}
				// Thresholds merge per field: a single flag must not discard
				// the rest of the file's thresholds block.
				flagThresholds := cfg.Thresholds
				if err := fileCfg.Apply(cfg); err != nil {
					return err
				}
				if cmd.Flags().Changed("long-running-threshold") {
					cfg.Thresholds.LongRunningMinutes = flagThresholds.LongRunningMinutes
				}
				if cmd.Flags().Changed("failure-rate-threshold") {
					cfg.Thresholds.FailureRate = flagThresholds.FailureRate
				}
				if cmd.Flags().Changed("top-n-long-running") {
					cfg.Thresholds.TopNLongRunning = flagThresholds.TopNLongRunning
				}
				if cmd.Flags().Changed("top-n-high-failure") {
					cfg.Thresholds.TopNHighFailure = flagThresholds.TopNHighFailure
				}
			}

			if cmd.Flags().Changed("lookback") {
				cfg.LookbackPeriod, err = config.ParseDuration(lookbackStr)
				if err != nil {
					return fmt.Errorf("invalid --lookback duration: %w", err)
				}
			}
			if cmd.Flags().Changed("query-timeout") {
				cfg.QueryTimeout, err = config.ParseDuration(queryTimeoutStr)
				if err != nil {
					return fmt.Errorf("invalid --query-timeout duration: %w", err)
				}
			}

			if strings.TrimSpace(cfg.WarehouseDSN) == "" {
				return fmt.Errorf("warehouse DSN is required: set --warehouse-dsn or warehouse_dsn in %s", config.DefaultConfigFileYAML)
			}
			if !reporter.ValidFormat(cfg.Format) {
				return fmt.Errorf("invalid --format value: %s (expected json, markdown or all)", cfg.Format)
			}
			if err := cfg.Thresholds.Validate(); err != nil {
				return err
			}

			// The persistent pre-run already initialized logging from the
			// root flag; the analyze-local flag shadows it, so re-init here
			// with both taken into account.
			logging.Init(cfg.Verbose || verbose)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cfg)
		},
	}

	// Warehouse flags
	cmd.Flags().StringVar(&cfg.WarehouseDSN, "warehouse-dsn", "", "Databricks SQL warehouse DSN")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: "+config.DefaultConfigFileYAML+")")
	cmd.Flags().StringVar(&queryTimeoutStr, "query-timeout", "5m", "Query timeout (e.g., 5m, 10m, 1h)")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 50000, "Row batch size per query page")
	cmd.Flags().IntVar(&cfg.MaxRows, "max-rows", 1000000, "Max rows to fetch per system table")
	cmd.Flags().IntVar(&cfg.QueryRateLimit, "rate-limit", 5, "Warehouse queries per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max concurrent warehouse connections")
	cmd.Flags().StringVar(&lookbackStr, "lookback", "7d", "Lookback period (e.g., 1d, 7d, 30d, 168h)")

	// Output flags
	cmd.Flags().StringVar(&cfg.OutputDir, "output", "./report", "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", "json", "Output format (json, markdown, all)")

	// Analysis flags
	cmd.Flags().Float64Var(&cfg.Thresholds.LongRunningMinutes, "long-running-threshold", cfg.Thresholds.LongRunningMinutes,
		"Average duration in minutes above which a job is long-running")
	cmd.Flags().Float64Var(&cfg.Thresholds.FailureRate, "failure-rate-threshold", cfg.Thresholds.FailureRate,
		"Failure rate above which a job is flagged (0.0-1.0)")
	cmd.Flags().IntVar(&cfg.Thresholds.TopNLongRunning, "top-n-long-running", cfg.Thresholds.TopNLongRunning,
		"Max long-running findings to report")
	cmd.Flags().IntVar(&cfg.Thresholds.TopNHighFailure, "top-n-high-failure", cfg.Thresholds.TopNHighFailure,
		"Max high-failure-rate findings to report")

	// Baseline flags
	cmd.Flags().StringVar(&cfg.BaselinePath, "baseline", "", "Baseline file of acknowledged findings")
	cmd.Flags().BoolVar(&cfg.UpdateBaseline, "update-baseline", false, "Record current findings in the baseline file")

	// Operational flags
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't write output)")

	return cmd
}

// runAnalyze executes the analysis workflow
func runAnalyze(cfg *config.Config) error {
	startTime := time.Now()
	ctx := context.Background()

	slog.Debug("starting analysis",
		slog.String("warehouse", maskDSN(cfg.WarehouseDSN)),
		slog.Duration("lookback", cfg.LookbackPeriod),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Int("max_rows", cfg.MaxRows),
	)

	// 1. Connect and collect
	fmt.Println("Connecting to warehouse...")
	col, err := collector.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}
	defer col.Close()

	fmt.Println("Collecting telemetry...")
	snapshot, err := col.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect telemetry: %w", err)
	}
	fmt.Printf("Collected %d job run rows, %d cluster sample rows\n",
		len(snapshot.JobRuns), len(snapshot.ClusterSamples))

	// 2. Normalize
	jobRows := normalizer.NormalizeJobRuns(snapshot.JobRuns)
	clusterRows := normalizer.NormalizeClusterSamples(snapshot.ClusterSamples)
	if jobRows.Skipped > 0 || clusterRows.Skipped > 0 {
		fmt.Printf("Skipped %d malformed job run rows, %d malformed cluster sample rows\n",
			jobRows.Skipped, clusterRows.Skipped)
	}

	// 3. Aggregate
	fmt.Println("Aggregating metrics...")
	jobMetrics := aggregator.AggregateJobRuns(jobRows.Records)
	clusterMetrics := aggregator.AggregateClusterSamples(clusterRows.Samples)
	fmt.Printf("Aggregated %d jobs, %d clusters\n", len(jobMetrics), len(clusterMetrics))

	// 4. Detect anomalies
	det, err := detector.New(cfg.Thresholds)
	if err != nil {
		return err
	}
	findings := det.Detect(jobMetrics)

	// 5. Score cluster efficiency
	scorer.Apply(scorer.NewScorer("utilization"), clusterMetrics)

	// 6. Baseline suppression
	if cfg.BaselinePath != "" || cfg.UpdateBaseline {
		path := cfg.BaselinePath
		if path == "" {
			path = baseline.DefaultPath
		}
		set, err := baseline.Load(path)
		if err != nil {
			return err
		}
		findings.LongRunning = baseline.Filter(findings.LongRunning, set)
		findings.HighFailureRate = baseline.Filter(findings.HighFailureRate, set)
		if cfg.UpdateBaseline {
			baseline.AddFindings(set, findings.LongRunning)
			baseline.AddFindings(set, findings.HighFailureRate)
			if err := baseline.Save(path, set); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Anomalies: %d long-running, %d high-failure-rate\n",
		len(findings.LongRunning), len(findings.HighFailureRate))

	// 7. Build and write report
	report := buildReport(cfg, snapshot, jobRows, clusterRows, jobMetrics, clusterMetrics, findings, startTime)
	if !cfg.DryRun {
		fmt.Println("Writing report...")
		rep := reporter.New(cfg)
		if err := rep.Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Printf("Report written to: %s\n", cfg.OutputDir)
	} else {
		fmt.Println("Dry run mode - skipping output")
	}

	fmt.Printf("Analysis complete in %s\n", time.Since(startTime).Round(time.Second))

	if count := findings.Count(); count > 0 {
		return &FindingsError{Count: count}
	}
	return nil
}

// buildReport constructs the final report
func buildReport(
	cfg *config.Config,
	snapshot *collector.Snapshot,
	jobRows normalizer.JobRunResult,
	clusterRows normalizer.ClusterSampleResult,
	jobMetrics map[models.JobKey]*models.JobMetrics,
	clusterMetrics map[string]*models.ClusterMetrics,
	findings detector.Findings,
	startTime time.Time,
) *models.Report {
	jobs := make([]models.JobMetrics, 0, len(jobMetrics))
	for _, job := range jobMetrics {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].AvgDurationSeconds != jobs[j].AvgDurationSeconds {
			return jobs[i].AvgDurationSeconds > jobs[j].AvgDurationSeconds
		}
		return jobs[i].Key().String() < jobs[j].Key().String()
	})

	clusters := make([]models.ClusterMetrics, 0, len(clusterMetrics))
	for _, cluster := range clusterMetrics {
		clusters = append(clusters, *cluster)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].AvgCPUUtilization != clusters[j].AvgCPUUtilization {
			return clusters[i].AvgCPUUtilization > clusters[j].AvgCPUUtilization
		}
		return clusters[i].ClusterID < clusters[j].ClusterID
	})

	now := time.Now()

	return &models.Report{
		Tool:      "lakewatch",
		Version:   version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Metadata: models.Metadata{
			GeneratedAt:            now,
			LookbackDays:           int(cfg.LookbackPeriod.Hours() / 24),
			WarehouseHost:          extractHost(cfg.WarehouseDSN),
			JobRunsAnalyzed:        len(jobRows.Records),
			ClusterSamplesAnalyzed: len(clusterRows.Samples),
			SkippedJobRuns:         jobRows.Skipped,
			SkippedClusterSamples:  clusterRows.Skipped,
			AnalysisDuration:       time.Since(startTime).Round(time.Second).String(),
			Version:                version,
		},
		Jobs:            jobs,
		Clusters:        clusters,
		LongRunning:     findings.LongRunning,
		HighFailureRate: findings.HighFailureRate,
	}
}

// maskDSN masks credentials in a DSN for logging
func maskDSN(dsn string) string {
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		return "***@" + dsn[i+1:]
	}
	if len(dsn) > 20 {
		return dsn[:20] + "...***"
	}
	return "***"
}

// extractHost extracts the warehouse hostname from a DSN
func extractHost(dsn string) string {
	rest := dsn
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	for _, sep := range []string{":", "/"} {
		if i := strings.Index(rest, sep); i >= 0 {
			rest = rest[:i]
		}
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}
