package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bizhealth/bizhealth/internal/history"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// memStore is an in-memory ReportStore.
type memStore struct {
	mu      sync.Mutex
	reports map[string]history.Report
	fail    error
}

func newMemStore() *memStore {
	return &memStore{reports: map[string]history.Report{}}
}

func (m *memStore) RecordReport(ctx context.Context, r *history.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	r.WorkspaceID = "ws-" + r.Workspace
	m.reports[r.ID] = *r
	return nil
}

func (m *memStore) GetReport(ctx context.Context, id string) (*history.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	return &r, nil
}

var asOf = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func testSnapshot() *facts.Snapshot {
	return &facts.Snapshot{
		Workspace: "acme",
		AsOf:      facts.NewDate(asOf),
		Profit: facts.ProfitFacts{
			CurrentRate:    95,
			TargetRate:     100,
			CurrentHours:   120,
			MTDTargetHours: 140,
		},
	}
}

func newTestService(t *testing.T, store ReportStore) *Service {
	t.Helper()
	svc := NewService(scoring.NewDefaultEngine(scoring.FixedClock(asOf)), NewLocalStorage(t.TempDir()), store, nil, nil)
	n := 0
	svc.newID = func() string {
		n++
		return []string{"r-1", "r-2", "r-3"}[n-1]
	}
	return svc
}

func TestIngestArchivesAndRecords(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	rep, err := svc.Ingest(ctx, testSnapshot())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.ID != "r-1" || rep.StorageRef != "acme/reports/r-1.json" {
		t.Errorf("unexpected report %+v", rep)
	}

	row, ok := store.reports["r-1"]
	if !ok {
		t.Fatal("report not recorded")
	}
	if row.Total != rep.Result.Total || row.Profit != rep.Result.Scores.Profit || !row.ScoredAt.Equal(asOf) {
		t.Errorf("history row %+v does not match result", row)
	}

	loaded, err := svc.Load(ctx, "r-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Result.Total != rep.Result.Total || len(loaded.Result.Trees) != 4 {
		t.Errorf("loaded result differs: %+v", loaded.Result.Scores)
	}

	snap, err := svc.LoadFacts(ctx, "r-1")
	if err != nil {
		t.Fatalf("LoadFacts: %v", err)
	}
	if snap.Profit.CurrentRate != 95 {
		t.Errorf("archived facts lost data: %+v", snap.Profit)
	}
}

func TestIngestDefaultsWorkspace(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	snap := testSnapshot()
	snap.Workspace = ""

	rep, err := svc.Ingest(context.Background(), snap)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.Workspace != DefaultWorkspace {
		t.Errorf("Workspace = %q, want %q", rep.Workspace, DefaultWorkspace)
	}
}

func TestIngestErrors(t *testing.T) {
	svc := newTestService(t, newMemStore())
	if _, err := svc.Ingest(context.Background(), nil); !errors.Is(err, scoring.ErrNilSnapshot) {
		t.Errorf("expected ErrNilSnapshot, got %v", err)
	}

	store := newMemStore()
	store.fail = errors.New("db down")
	svc = newTestService(t, store)
	if _, err := svc.Ingest(context.Background(), testSnapshot()); err == nil {
		t.Error("expected history failure to surface")
	}
}

func TestLoadNotFound(t *testing.T) {
	svc := newTestService(t, newMemStore())
	if _, err := svc.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	noStore := newTestService(t, nil)
	if _, err := noStore.Load(context.Background(), "r-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound without a store, got %v", err)
	}
}

func TestRescoreCreatesNewReport(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, testSnapshot())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	second, err := svc.Rescore(ctx, first.ID)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if second.ID == first.ID {
		t.Error("rescore should create a new report")
	}
	if second.Result.Total != first.Result.Total {
		t.Errorf("rescore of unchanged facts changed total: %v vs %v", second.Result.Total, first.Result.Total)
	}
	if len(store.reports) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(store.reports))
	}
}
