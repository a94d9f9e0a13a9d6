package collector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/lakewatch/lakewatch/pkg/config"
)

type queryCall struct {
	query string
}

type mockState struct {
	mu             sync.Mutex
	pages          [][][]driver.Value
	columns        []string
	calls          []queryCall
	queryErrByCall map[int]error
}

type mockDriver struct {
	state *mockState
}

func (d *mockDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{state: d.state}, nil
}

type mockConn struct {
	state *mockState
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *mockConn) Close() error {
	return nil
}

func (c *mockConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	c.state.calls = append(c.state.calls, queryCall{query: query})
	idx := len(c.state.calls) - 1

	if err, ok := c.state.queryErrByCall[idx]; ok {
		return nil, err
	}

	if idx >= len(c.state.pages) {
		return &mockRows{columns: c.state.columns, values: nil}, nil
	}

	return &mockRows{
		columns: c.state.columns,
		values:  c.state.pages[idx],
	}, nil
}

var _ driver.QueryerContext = (*mockConn)(nil)

var driverCounter uint64

func newMockDB(t *testing.T, state *mockState) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("mockdb-%d", atomic.AddUint64(&driverCounter, 1))
	sql.Register(name, &mockDriver{state: state})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string {
	return r.columns
}

func (r *mockRows) Close() error {
	return nil
}

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func newTestClient(db *sql.DB, cfg *config.Config) *WarehouseClient {
	return &WarehouseClient{
		db:      db,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry: retryConfig{
			maxAttempts:    3,
			initialBackoff: time.Millisecond,
			maxBackoff:     time.Millisecond,
			sleep: func(context.Context, time.Duration) error {
				return nil
			},
		},
	}
}

func jobRunColumns() []string {
	return []string{
		"workspace_id",
		"job_id",
		"run_id",
		"job_name",
		"duration_seconds",
		"result_state",
		"start_time",
	}
}

func jobRunRow(runID string) []driver.Value {
	return []driver.Value{
		"1234",
		"42",
		runID,
		"nightly-etl",
		float64(300),
		"SUCCESS",
		time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC),
	}
}

func clusterColumns() []string {
	return []string{
		"cluster_id",
		"driver",
		"cpu_utilization_pct",
		"cpu_wait_percent",
		"mem_used_percent",
		"network_received_mb",
		"network_sent_mb",
		"start_time",
	}
}

func TestFetchJobRunsPagination(t *testing.T) {
	cases := []struct {
		name        string
		pages       [][][]driver.Value
		batchSize   int
		maxRows     int
		wantRows    int
		wantCalls   int
		wantOffsets []int
	}{
		{
			name: "stops_on_short_page",
			pages: [][][]driver.Value{
				{jobRunRow("r1"), jobRunRow("r2")},
				{jobRunRow("r3")},
			},
			batchSize:   2,
			maxRows:     100,
			wantRows:    3,
			wantCalls:   2,
			wantOffsets: []int{0, 2},
		},
		{
			name: "stops_on_max_rows",
			pages: [][][]driver.Value{
				{jobRunRow("r1"), jobRunRow("r2")},
				{jobRunRow("r3"), jobRunRow("r4")},
				{jobRunRow("r5")},
			},
			batchSize:   2,
			maxRows:     3,
			wantRows:    4,
			wantCalls:   2,
			wantOffsets: []int{0, 2},
		},
		{
			name: "stops_on_empty_page",
			pages: [][][]driver.Value{
				{jobRunRow("r1"), jobRunRow("r2")},
				{},
			},
			batchSize:   2,
			maxRows:     100,
			wantRows:    2,
			wantCalls:   2,
			wantOffsets: []int{0, 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := &mockState{pages: tc.pages, columns: jobRunColumns()}
			db := newMockDB(t, state)

			cfg := &config.Config{
				LookbackPeriod: 7 * 24 * time.Hour,
				BatchSize:      tc.batchSize,
				MaxRows:        tc.maxRows,
				QueryTimeout:   5 * time.Second,
			}

			client := newTestClient(db, cfg)
			runs, err := client.FetchJobRuns(context.Background())
			if err != nil {
				t.Fatalf("FetchJobRuns failed: %v", err)
			}

			if len(runs) != tc.wantRows {
				t.Fatalf("expected %d rows, got %d", tc.wantRows, len(runs))
			}

			state.mu.Lock()
			calls := append([]queryCall(nil), state.calls...)
			state.mu.Unlock()

			if len(calls) != tc.wantCalls {
				t.Fatalf("expected %d query calls, got %d", tc.wantCalls, len(calls))
			}

			for i, call := range calls {
				if !strings.Contains(call.query, "system.lakeflow.job_run_timeline") {
					t.Fatalf("expected query to target system.lakeflow.job_run_timeline, got %s", call.query)
				}
				wantOffset := fmt.Sprintf("OFFSET %d", tc.wantOffsets[i])
				if !strings.Contains(call.query, wantOffset) {
					t.Fatalf("expected call %d to contain %q, got %s", i, wantOffset, call.query)
				}
			}
		})
	}
}

func TestFetchJobRunsRetriesTransientErrors(t *testing.T) {
	state := &mockState{
		columns: jobRunColumns(),
		pages: [][][]driver.Value{
			nil, // first call fails before rows are returned
			{jobRunRow("r1")},
		},
		queryErrByCall: map[int]error{
			0: errors.New("i/o timeout"),
		},
	}
	db := newMockDB(t, state)

	cfg := &config.Config{
		LookbackPeriod: 24 * time.Hour,
		BatchSize:      100,
		MaxRows:        1000,
		QueryTimeout:   5 * time.Second,
	}

	client := newTestClient(db, cfg)
	runs, err := client.FetchJobRuns(context.Background())
	if err != nil {
		t.Fatalf("FetchJobRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 row, got %d", len(runs))
	}

	state.mu.Lock()
	callCount := len(state.calls)
	state.mu.Unlock()
	// One failed attempt plus one retry; the short page stops pagination.
	if callCount != 2 {
		t.Fatalf("expected 2 query attempts, got %d", callCount)
	}
}

func TestFetchJobRunsAuthErrorsFailFast(t *testing.T) {
	state := &mockState{
		columns: jobRunColumns(),
		queryErrByCall: map[int]error{
			0: errors.New("databricks: invalid access token"),
		},
	}
	db := newMockDB(t, state)

	cfg := &config.Config{
		LookbackPeriod: 24 * time.Hour,
		BatchSize:      100,
		MaxRows:        1000,
		QueryTimeout:   5 * time.Second,
	}

	client := newTestClient(db, cfg)
	_, err := client.FetchJobRuns(context.Background())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "invalid access token") {
		t.Fatalf("expected auth failure error, got %v", err)
	}

	state.mu.Lock()
	callCount := len(state.calls)
	state.mu.Unlock()
	if callCount != 1 {
		t.Fatalf("expected auth error to fail fast (1 attempt), got %d", callCount)
	}
}

func TestFetchClusterSamplesPreservesNulls(t *testing.T) {
	state := &mockState{
		columns: clusterColumns(),
		pages: [][][]driver.Value{
			{
				{
					"cluster-1",
					true,
					float64(42.5),
					nil, // no wait reading
					float64(61.0),
					nil,
					nil,
					time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC),
				},
			},
		},
	}
	db := newMockDB(t, state)

	cfg := &config.Config{
		LookbackPeriod: 24 * time.Hour,
		BatchSize:      100,
		MaxRows:        1000,
		QueryTimeout:   5 * time.Second,
	}

	client := newTestClient(db, cfg)
	samples, err := client.FetchClusterSamples(context.Background())
	if err != nil {
		t.Fatalf("FetchClusterSamples failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}

	sample := samples[0]
	if sample.ClusterID != "cluster-1" || !sample.IsDriver {
		t.Fatalf("unexpected identity fields: %+v", sample)
	}
	if sample.CPUUtilizationPct == nil || *sample.CPUUtilizationPct != 42.5 {
		t.Fatalf("expected cpu 42.5, got %+v", sample.CPUUtilizationPct)
	}
	if sample.CPUWaitPct != nil {
		t.Fatal("expected NULL cpu_wait to stay nil")
	}
	if sample.NetworkReceivedMB != nil || sample.NetworkSentMB != nil {
		t.Fatal("expected NULL network metrics to stay nil")
	}

	state.mu.Lock()
	query := state.calls[0].query
	state.mu.Unlock()
	if !strings.Contains(query, "system.compute.node_timeline") {
		t.Fatalf("expected query to target system.compute.node_timeline, got %s", query)
	}
}

func TestConfigureConnPoolUsesConcurrency(t *testing.T) {
	cases := []struct {
		name        string
		concurrency int
		wantMax     int
	}{
		{name: "configured", concurrency: 8, wantMax: 8},
		{name: "default", concurrency: config.DefaultConfig().Concurrency, wantMax: 5},
		{name: "zero_clamped_to_one", concurrency: 0, wantMax: 1},
		{name: "negative_clamped_to_one", concurrency: -3, wantMax: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newMockDB(t, &mockState{})
			configureConnPool(db, &config.Config{Concurrency: tc.concurrency})

			if got := db.Stats().MaxOpenConnections; got != tc.wantMax {
				t.Fatalf("expected max open connections %d, got %d", tc.wantMax, got)
			}
		})
	}
}

func TestNullFloat(t *testing.T) {
	if got := nullFloat(sql.NullFloat64{}); got != nil {
		t.Fatalf("expected nil for invalid value, got %v", *got)
	}
	got := nullFloat(sql.NullFloat64{Valid: true, Float64: 1.5})
	if got == nil || *got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
}
