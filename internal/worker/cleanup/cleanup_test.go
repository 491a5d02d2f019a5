package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/wellbeat/internal/model"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	execCalled bool
	query      string
	args       []interface{}
	result     sql.Result
	err        error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.execCalled = true
	m.query = query
	m.args = args
	return m.result, m.err
}

// mockStateRepo はStateRepositoryのモック実装。
type mockStateRepo struct {
	deleteExpiredFn func(ctx context.Context) (int64, error)
	deleteCalled    bool
}

func (m *mockStateRepo) Create(ctx context.Context, entry *model.StateEntry) error { return nil }

func (m *mockStateRepo) Consume(ctx context.Context, token string) (*model.StateEntry, error) {
	return nil, nil
}

func (m *mockStateRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.deleteCalled = true
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

// mockCollector はMetricsCollectorのモック実装。
type mockCollector struct {
	swept int64
}

func (m *mockCollector) RecordProviderFetchSuccess(provider string)             {}
func (m *mockCollector) RecordProviderFetchFailure(provider, reason string)     {}
func (m *mockCollector) RecordProviderLatency(provider string, d time.Duration) {}
func (m *mockCollector) RecordTokenRefresh(provider string)                     {}
func (m *mockCollector) RecordDashboardSync()                                   {}
func (m *mockCollector) RecordStatesSwept(count int64)                          { m.swept += count }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_SetsRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, &mockStateRepo{}, &mockCollector{}, logger)

	if job.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", job.RetentionDays)
	}
}

func TestCleanupJob_Run_SweepsExpiredStates(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	states := &mockStateRepo{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 7, nil
		},
	}
	collector := &mockCollector{}
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, states, collector, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !states.deleteCalled {
		t.Error("DeleteExpired should have been called")
	}
	if collector.swept != 7 {
		t.Errorf("swept = %d, want 7", collector.swept)
	}
}

func TestCleanupJob_Run_DeletesStaleSnapshots(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 3},
	}
	job := NewCleanupJob(mock, &mockStateRepo{}, &mockCollector{}, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !mock.execCalled {
		t.Fatal("ExecContext should have been called")
	}
	if !strings.Contains(mock.query, "DELETE FROM dashboard_snapshots") {
		t.Errorf("query = %q", mock.query)
	}
	if len(mock.args) != 1 || mock.args[0] != "30 days" {
		t.Errorf("args = %v, want [30 days]", mock.args)
	}
}

func TestCleanupJob_Run_CustomRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, &mockStateRepo{}, &mockCollector{}, logger)
	job.RetentionDays = 90

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(mock.args) != 1 || mock.args[0] != "90 days" {
		t.Errorf("args = %v, want [90 days]", mock.args)
	}
}

func TestCleanupJob_Run_StateSweepFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	states := &mockStateRepo{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 0, errors.New("connection refused")
		},
	}
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, states, &mockCollector{}, logger)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("Run() should return error when state sweep fails")
	}
	// stateの掃除に失敗した場合、スナップショット削除には進まない
	if mock.execCalled {
		t.Error("snapshot cleanup should not run after state sweep failure")
	}
}

func TestCleanupJob_Run_LogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	states := &mockStateRepo{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 2, nil
		},
	}
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 5},
	}
	job := NewCleanupJob(mock, states, &mockCollector{}, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["msg"] == "クリーンアップジョブが完了しました" {
			found = true
			if entry["swept_states"] != float64(2) {
				t.Errorf("swept_states = %v, want 2", entry["swept_states"])
			}
			if entry["deleted_snapshots"] != float64(5) {
				t.Errorf("deleted_snapshots = %v, want 5", entry["deleted_snapshots"])
			}
		}
	}
	if !found {
		t.Error("completion log entry not found")
	}
}

func TestCleanupJob_Start_StopsOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, &mockStateRepo{}, &mockCollector{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}
}
