package collector

import (
	"context"
	"fmt"

	"github.com/lakewatch/lakewatch/internal/models"
	"github.com/lakewatch/lakewatch/pkg/config"
)

// Snapshot holds the raw telemetry rows for one analysis window.
type Snapshot struct {
	JobRuns        []models.RawJobRun
	ClusterSamples []models.RawClusterSample
}

// Collector interface for fetching telemetry from the warehouse system tables
type Collector interface {
	Collect(ctx context.Context) (*Snapshot, error)
	Close() error
}

// collector implements the Collector interface
type collector struct {
	config *config.Config
	client *WarehouseClient
}

// New creates a new collector instance
func New(cfg *config.Config) (Collector, error) {
	client, err := NewWarehouseClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse client: %w", err)
	}

	return &collector{
		config: cfg,
		client: client,
	}, nil
}

// Collect fetches job run and cluster sample rows. The two system tables are
// independent, so they are pulled concurrently through the worker pool.
func (c *collector) Collect(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}

	pool := NewWorkerPool(2)
	pool.Start(ctx)

	pool.Submit(func(ctx context.Context) error {
		runs, err := c.client.FetchJobRuns(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch job runs: %w", err)
		}
		snapshot.JobRuns = runs
		return nil
	})

	pool.Submit(func(ctx context.Context) error {
		samples, err := c.client.FetchClusterSamples(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch cluster samples: %w", err)
		}
		snapshot.ClusterSamples = samples
		return nil
	})

	if err := pool.Stop(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Close closes the collector and its resources
func (c *collector) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
