package fetching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trending-service/internal/core/domain"
	"trending-service/internal/fetching/retry"
)

// ============================================================
// Mocks
// ============================================================

type mockCollector struct {
	mu    sync.Mutex
	calls int
	items []*domain.TrendingItem
	err   error
}

func (m *mockCollector) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockCollector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLedger struct {
	mu            sync.Mutex
	pending       []*domain.FetchFailure
	deletedDays   int
	markedSuccess []string
	markedFailed  []string
}

func (m *mockLedger) SaveFailure(ctx context.Context, source, errorMessage string, retryCount int, nextRetryAt *time.Time) error {
	return nil
}

func (m *mockLedger) MarkSuccess(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedSuccess = append(m.markedSuccess, source)
	return nil
}

func (m *mockLedger) MarkFailed(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedFailed = append(m.markedFailed, source)
	return nil
}

func (m *mockLedger) GetPendingFailures(ctx context.Context) ([]*domain.FetchFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, nil
}

func (m *mockLedger) GetReadyToRetry(ctx context.Context, limit int) ([]*domain.FetchFailure, error) {
	return nil, nil
}

func (m *mockLedger) DeleteOldFailures(ctx context.Context, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedDays = days
	return 2, nil
}

type mockItemRepo struct {
	mu          sync.Mutex
	refreshes   map[string]int
	deletedDays int
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{refreshes: make(map[string]int)}
}

func (m *mockItemRepo) RefreshItems(ctx context.Context, source string, items []*domain.TrendingItem, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes[source] = len(items)
	return len(items), nil
}

func (m *mockItemRepo) GetItems(ctx context.Context, source string, day time.Time, limit int) ([]*domain.TrendingItem, error) {
	return nil, nil
}

func (m *mockItemRepo) GetDailyStats(ctx context.Context, day time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]int, len(m.refreshes))
	for source, count := range m.refreshes {
		stats[source] = count
	}
	return stats, nil
}

func (m *mockItemRepo) DeleteOldItems(ctx context.Context, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedDays = days
	return 5, nil
}

type mockReports struct {
	mu    sync.Mutex
	count int
}

func (m *mockReports) Regenerate(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return "reports/trending-2024-03-15.json", nil
}

func (m *mockReports) regenerated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

type mockNotifier struct {
	mu        sync.Mutex
	cycles    []string
	exhausted []string
	pruned    int
}

func (m *mockNotifier) CycleCompleted(ctx context.Context, cycleID string, stats map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, cycleID)
	return nil
}

func (m *mockNotifier) RetriesExhausted(ctx context.Context, source, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted = append(m.exhausted, source)
	return nil
}

func (m *mockNotifier) PruneOld(ctx context.Context, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return 1, nil
}

func fakeItems(source string, n int) []*domain.TrendingItem {
	items := make([]*domain.TrendingItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &domain.TrendingItem{Source: source, Title: "t", URL: "https://example.com"})
	}
	return items
}

func newTestService(ledger *mockLedger, items *mockItemRepo, reports *mockReports, notifier *mockNotifier) (*Service, *retry.Coordinator) {
	coord := retry.NewCoordinator(retry.DefaultBackoff(), ledger, items)

	// Keep nil mocks as nil interfaces.
	var reportsDep ReportGenerator
	if reports != nil {
		reportsDep = reports
	}
	var notifierDep Notifier
	if notifier != nil {
		notifierDep = notifier
	}
	svc := NewService(Config{FetchHour: 8, CleanupHour: 3, RetentionDays: 30}, coord, ledger, items, reportsDep, notifierDep)
	return svc, coord
}

// ============================================================
// Cycle
// ============================================================

func TestService_CycleIsolatesFailingSource(t *testing.T) {
	ledger := &mockLedger{}
	items := newMockItemRepo()
	reports := &mockReports{}
	notifier := &mockNotifier{}
	svc, coord := newTestService(ledger, items, reports, notifier)

	coord.Register("github", &mockCollector{items: fakeItems("github", 3)})
	coord.Register("weibo", &mockCollector{err: errors.New("gateway timeout")})

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := svc.FetchStatus(context.Background())
	if got := statuses["github"]; !got.Success || got.ItemCount != 3 {
		t.Errorf("expected github success with 3 items, got %+v", got)
	}
	if got := statuses["weibo"]; got.Success || got.Status != domain.FetchStatusPending {
		t.Errorf("expected weibo pending failure, got %+v", got)
	}
	if svc.RetryQueueSize() != 1 {
		t.Errorf("expected 1 queued retry, got %d", svc.RetryQueueSize())
	}
	if reports.regenerated() != 1 {
		t.Errorf("expected 1 report regeneration, got %d", reports.regenerated())
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.cycles) != 1 {
		t.Errorf("expected 1 cycle notification, got %d", len(notifier.cycles))
	}
}

func TestService_CycleRunsAllSourcesSequentially(t *testing.T) {
	svc, coord := newTestService(&mockLedger{}, newMockItemRepo(), nil, nil)

	collectors := map[string]*mockCollector{
		"arxiv":  {items: fakeItems("arxiv", 1)},
		"github": {items: fakeItems("github", 1)},
		"zhihu":  {items: fakeItems("zhihu", 1)},
	}
	for name, c := range collectors {
		coord.Register(name, c)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, c := range collectors {
		if c.callCount() != 1 {
			t.Errorf("expected %s fetched once, got %d", name, c.callCount())
		}
	}
}

// ============================================================
// Status surface
// ============================================================

func TestService_FetchStatusFallsBackToLedger(t *testing.T) {
	lastTry := time.Date(2024, 3, 14, 23, 50, 0, 0, time.UTC)
	ledger := &mockLedger{pending: []*domain.FetchFailure{
		{Source: "douyin", ErrorMessage: "blocked", RetryCount: 2, LastTryAt: lastTry, Status: domain.FailureStatusPending},
	}}
	svc, coord := newTestService(ledger, newMockItemRepo(), nil, nil)
	coord.Register("github", &mockCollector{items: fakeItems("github", 2)})

	// github has an in-memory result, douyin only a ledger row.
	if _, err := coord.Fetch(context.Background(), "github"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := svc.FetchStatus(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(statuses))
	}
	if !statuses["github"].Success {
		t.Errorf("expected github success, got %+v", statuses["github"])
	}
	douyin := statuses["douyin"]
	if douyin.Status != domain.FetchStatusPending || douyin.RetryCount != 2 {
		t.Errorf("expected douyin pending from ledger, got %+v", douyin)
	}
	if !douyin.LastUpdate.Equal(lastTry) {
		t.Errorf("expected last update from ledger row, got %v", douyin.LastUpdate)
	}
}

func TestService_FetchStatusPrefersInMemoryResult(t *testing.T) {
	ledger := &mockLedger{pending: []*domain.FetchFailure{
		{Source: "github", ErrorMessage: "stale row", RetryCount: 1, Status: domain.FailureStatusPending},
	}}
	svc, coord := newTestService(ledger, newMockItemRepo(), nil, nil)
	coord.Register("github", &mockCollector{items: fakeItems("github", 2)})

	if _, err := coord.Fetch(context.Background(), "github"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := svc.FetchStatus(context.Background())
	got := statuses["github"]
	if !got.Success || got.ErrorMessage != "" {
		t.Errorf("in-memory result must win over the ledger row, got %+v", got)
	}
}

// ============================================================
// Force retry / refresh
// ============================================================

func TestService_ForceRetrySource(t *testing.T) {
	reports := &mockReports{}
	svc, coord := newTestService(&mockLedger{}, newMockItemRepo(), reports, nil)
	coord.Register("bilibili", &mockCollector{items: fakeItems("bilibili", 7)})

	if ok := svc.ForceRetrySource(context.Background(), "bilibili"); !ok {
		t.Fatal("expected force retry to report success")
	}
	if reports.regenerated() != 1 {
		t.Errorf("expected report regeneration after forced success, got %d", reports.regenerated())
	}
	if ok := svc.ForceRetrySource(context.Background(), "unknown"); ok {
		t.Fatal("expected false for unregistered source")
	}
}

func TestService_ForceRetryEmptyBatchReportsFalse(t *testing.T) {
	svc, coord := newTestService(&mockLedger{}, newMockItemRepo(), &mockReports{}, nil)
	coord.Register("weibo", &mockCollector{items: nil})

	if ok := svc.ForceRetrySource(context.Background(), "weibo"); ok {
		t.Fatal("an attempt with zero items must report false")
	}
}

func TestService_RefreshAllRunsCycleInBackground(t *testing.T) {
	svc, coord := newTestService(&mockLedger{}, newMockItemRepo(), nil, nil)
	collector := &mockCollector{items: fakeItems("github", 1)}
	coord.Register("github", collector)

	svc.RefreshAll()

	deadline := time.Now().Add(2 * time.Second)
	for collector.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background refresh never fetched")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ============================================================
// Retry sweep
// ============================================================

func TestService_SweepNotifiesExhaustion(t *testing.T) {
	// A pending row one failure away from the cap, already due.
	ledger := &mockLedger{pending: []*domain.FetchFailure{
		{Source: "zhihu", ErrorMessage: "blocked", RetryCount: 2, Status: domain.FailureStatusPending},
	}}
	reports := &mockReports{}
	notifier := &mockNotifier{}
	svc, coord := newTestService(ledger, newMockItemRepo(), reports, notifier)
	coord.Register("zhihu", &mockCollector{err: errors.New("still blocked")})

	if err := coord.Requeue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.retrySweep(context.Background())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.exhausted) != 1 || notifier.exhausted[0] != "zhihu" {
		t.Fatalf("expected exhaustion notification for zhihu, got %v", notifier.exhausted)
	}
	if reports.regenerated() != 0 {
		t.Errorf("a failed sweep must not regenerate the report, got %d", reports.regenerated())
	}
}

func TestService_SweepRecoveryRegeneratesReport(t *testing.T) {
	ledger := &mockLedger{pending: []*domain.FetchFailure{
		{Source: "github", ErrorMessage: "503", RetryCount: 1, Status: domain.FailureStatusPending},
	}}
	reports := &mockReports{}
	notifier := &mockNotifier{}
	svc, coord := newTestService(ledger, newMockItemRepo(), reports, notifier)
	coord.Register("github", &mockCollector{items: fakeItems("github", 4)})

	if err := coord.Requeue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.retrySweep(context.Background())

	if reports.regenerated() != 1 {
		t.Fatalf("expected report regeneration after recovery, got %d", reports.regenerated())
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.exhausted) != 0 {
		t.Errorf("no exhaustion expected, got %v", notifier.exhausted)
	}
}

func TestService_SweepWithEmptyQueueIsQuiet(t *testing.T) {
	reports := &mockReports{}
	svc, _ := newTestService(&mockLedger{}, newMockItemRepo(), reports, nil)

	svc.retrySweep(context.Background())
	if reports.regenerated() != 0 {
		t.Errorf("idle sweep must not touch the report, got %d", reports.regenerated())
	}
}

// ============================================================
// Cleanup
// ============================================================

func TestService_CleanupOldData(t *testing.T) {
	ledger := &mockLedger{}
	items := newMockItemRepo()
	notifier := &mockNotifier{}
	svc, _ := newTestService(ledger, items, nil, notifier)

	if err := svc.cleanupOldData(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items.mu.Lock()
	if items.deletedDays != 30 {
		t.Errorf("expected item retention 30 days, got %d", items.deletedDays)
	}
	items.mu.Unlock()

	ledger.mu.Lock()
	if ledger.deletedDays != 30 {
		t.Errorf("expected failure retention 30 days, got %d", ledger.deletedDays)
	}
	ledger.mu.Unlock()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.pruned != 1 {
		t.Errorf("expected notification prune, got %d", notifier.pruned)
	}
}
