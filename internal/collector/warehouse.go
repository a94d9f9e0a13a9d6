package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/databricks/databricks-sql-go" // registers the "databricks" driver
	"golang.org/x/time/rate"

	"github.com/lakewatch/lakewatch/internal/models"
	"github.com/lakewatch/lakewatch/pkg/config"
)

// WarehouseClient handles Databricks SQL warehouse connections and queries
type WarehouseClient struct {
	db      *sql.DB
	config  *config.Config
	limiter *rate.Limiter
	retry   retryConfig
}

// NewWarehouseClient creates a new warehouse client
func NewWarehouseClient(cfg *config.Config) (*WarehouseClient, error) {
	db, err := sql.Open("databricks", cfg.WarehouseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}

	configureConnPool(db, cfg)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	limit := cfg.QueryRateLimit
	if limit < 1 {
		limit = 1
	}

	return &WarehouseClient{
		db:      db,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(limit), limit),
		retry:   defaultRetryConfig(),
	}, nil
}

// configureConnPool sizes the connection pool from the configured concurrency.
func configureConnPool(db *sql.DB, cfg *config.Config) {
	maxConns := cfg.Concurrency
	if maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns((maxConns + 1) / 2)
	db.SetConnMaxLifetime(time.Hour)
}

// Per-run durations from the run timeline, joined to the latest job name.
// Integer values are formatted directly; nothing user-controlled reaches the
// query text.
const jobRunsQuery = `
	SELECT
		CAST(t.workspace_id AS STRING) AS workspace_id,
		CAST(t.job_id AS STRING) AS job_id,
		CAST(t.run_id AS STRING) AS run_id,
		j.name AS job_name,
		CAST(
			UNIX_TIMESTAMP(MAX(t.period_end_time)) - UNIX_TIMESTAMP(MIN(t.period_start_time))
			AS DOUBLE
		) AS duration_seconds,
		MAX(t.result_state) AS result_state,
		MIN(t.period_start_time) AS start_time
	FROM system.lakeflow.job_run_timeline t
	LEFT JOIN (
		SELECT workspace_id, job_id, name,
		       ROW_NUMBER() OVER (PARTITION BY workspace_id, job_id ORDER BY change_time DESC) AS rn
		FROM system.lakeflow.jobs
	) j ON t.workspace_id = j.workspace_id AND t.job_id = j.job_id AND j.rn = 1
	WHERE t.period_start_time >= date_sub(current_timestamp(), %d)
	GROUP BY t.workspace_id, t.job_id, t.run_id, j.name
	ORDER BY t.workspace_id, t.job_id, t.run_id
	LIMIT %d OFFSET %d
`

const clusterSamplesQuery = `
	SELECT
		CAST(cluster_id AS STRING) AS cluster_id,
		COALESCE(driver, FALSE) AS driver,
		cpu_user_percent + cpu_system_percent AS cpu_utilization_pct,
		cpu_wait_percent,
		mem_used_percent,
		network_received_bytes / (1024 * 1024) AS network_received_mb,
		network_sent_bytes / (1024 * 1024) AS network_sent_mb,
		start_time
	FROM system.compute.node_timeline
	WHERE start_time >= date_sub(current_timestamp(), %d)
	ORDER BY cluster_id, start_time
	LIMIT %d OFFSET %d
`

// FetchJobRuns retrieves raw job run rows with pagination
func (c *WarehouseClient) FetchJobRuns(ctx context.Context) ([]models.RawJobRun, error) {
	var allRuns []models.RawJobRun

	err := c.paginate(ctx, jobRunsQuery, func(rows *sql.Rows) (int, error) {
		batch, err := c.scanJobRunBatch(rows)
		if err != nil {
			return 0, err
		}
		allRuns = append(allRuns, batch...)
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("collected job run rows", slog.Int("rows", len(allRuns)))
	return allRuns, nil
}

// FetchClusterSamples retrieves raw node timeline rows with pagination
func (c *WarehouseClient) FetchClusterSamples(ctx context.Context) ([]models.RawClusterSample, error) {
	var allSamples []models.RawClusterSample

	err := c.paginate(ctx, clusterSamplesQuery, func(rows *sql.Rows) (int, error) {
		batch, err := c.scanClusterSampleBatch(rows)
		if err != nil {
			return 0, err
		}
		allSamples = append(allSamples, batch...)
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("collected cluster sample rows", slog.Int("rows", len(allSamples)))
	return allSamples, nil
}

// paginate runs queryTemplate page by page until a short page, an empty page
// or the max-rows cap. Each page waits on the shared rate limiter and runs
// under the query timeout with bounded retries.
func (c *WarehouseClient) paginate(ctx context.Context, queryTemplate string, scan func(*sql.Rows) (int, error)) error {
	lookbackDays := int(c.config.LookbackPeriod.Hours() / 24)
	if lookbackDays < 1 {
		lookbackDays = 1
	}

	offset := 0
	totalScanned := 0

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		query := fmt.Sprintf(queryTemplate, lookbackDays, c.config.BatchSize, offset)

		var scanned int
		queryCtx, cancel := withTotalTimeoutContext(ctx, c.config.QueryTimeout)
		err := executeWithRetry(queryCtx, c.retry, func() error {
			rows, err := c.db.QueryContext(queryCtx, query)
			if err != nil {
				return err
			}
			defer rows.Close()

			scanned, err = scan(rows)
			return err
		})
		cancel()

		if err != nil {
			return fmt.Errorf("query failed at offset %d: %w", offset, err)
		}

		if scanned == 0 {
			break
		}
		totalScanned += scanned

		if totalScanned >= c.config.MaxRows {
			slog.Debug("max rows limit reached, stopping collection",
				slog.Int("max_rows", c.config.MaxRows))
			break
		}
		if scanned < c.config.BatchSize {
			break
		}

		offset += c.config.BatchSize
	}

	return nil
}

// scanJobRunBatch scans one page of job run rows. Rows the driver cannot
// scan are logged and dropped; semantic validation belongs to the normalizer.
func (c *WarehouseClient) scanJobRunBatch(rows *sql.Rows) ([]models.RawJobRun, error) {
	var batch []models.RawJobRun
	skipped := 0

	for rows.Next() {
		var (
			workspaceID sql.NullString
			jobID       sql.NullString
			runID       sql.NullString
			jobName     sql.NullString
			duration    sql.NullFloat64
			resultState sql.NullString
			startTime   sql.NullTime
		)

		if err := rows.Scan(&workspaceID, &jobID, &runID, &jobName, &duration, &resultState, &startTime); err != nil {
			skipped++
			if skipped == 1 {
				slog.Warn("failed to scan job run row, check column types", slog.String("error", err.Error()))
			}
			continue
		}

		batch = append(batch, models.RawJobRun{
			WorkspaceID:     workspaceID.String,
			JobID:           jobID.String,
			RunID:           runID.String,
			JobName:         jobName.String,
			DurationSeconds: nullFloat(duration),
			ResultState:     resultState.String,
			StartTime:       startTime.Time,
		})
	}

	if skipped > 0 {
		slog.Warn("skipped unscannable job run rows", slog.Int("skipped", skipped))
	}

	if err := rows.Err(); err != nil {
		if len(batch) > 0 {
			slog.Warn("error during job run row iteration, keeping partial batch",
				slog.Int("rows", len(batch)),
				slog.String("error", err.Error()))
			return batch, nil
		}
		return nil, err
	}

	return batch, nil
}

func (c *WarehouseClient) scanClusterSampleBatch(rows *sql.Rows) ([]models.RawClusterSample, error) {
	var batch []models.RawClusterSample
	skipped := 0

	for rows.Next() {
		var (
			clusterID  sql.NullString
			driver     sql.NullBool
			cpu        sql.NullFloat64
			cpuWait    sql.NullFloat64
			memory     sql.NullFloat64
			netRecv    sql.NullFloat64
			netSent    sql.NullFloat64
			sampleTime sql.NullTime
		)

		if err := rows.Scan(&clusterID, &driver, &cpu, &cpuWait, &memory, &netRecv, &netSent, &sampleTime); err != nil {
			skipped++
			if skipped == 1 {
				slog.Warn("failed to scan cluster sample row, check column types", slog.String("error", err.Error()))
			}
			continue
		}

		batch = append(batch, models.RawClusterSample{
			ClusterID:            clusterID.String,
			IsDriver:             driver.Bool,
			CPUUtilizationPct:    nullFloat(cpu),
			CPUWaitPct:           nullFloat(cpuWait),
			MemoryUtilizationPct: nullFloat(memory),
			NetworkReceivedMB:    nullFloat(netRecv),
			NetworkSentMB:        nullFloat(netSent),
			SampleTime:           sampleTime.Time,
		})
	}

	if skipped > 0 {
		slog.Warn("skipped unscannable cluster sample rows", slog.Int("skipped", skipped))
	}

	if err := rows.Err(); err != nil {
		if len(batch) > 0 {
			slog.Warn("error during cluster sample row iteration, keeping partial batch",
				slog.Int("rows", len(batch)),
				slog.String("error", err.Error()))
			return batch, nil
		}
		return nil, err
	}

	return batch, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}

// Close closes the warehouse connection
func (c *WarehouseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
