package telem

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

func testStore(t *testing.T, retentionHours int) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"), retentionHours,
		logx.NewLogger("error", "test"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := testStore(t, 24)

	base := time.Now().Add(-time.Minute)
	for i, decision := range []pkg.Decision{pkg.DecisionActivateAP, pkg.DecisionStayAP, pkg.DecisionSwitchClient} {
		rec := &pkg.CycleRecord{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Decision:  decision,
			Success:   true,
		}
		if err := store.Append(rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first.
	if records[0].Decision != pkg.DecisionSwitchClient {
		t.Errorf("newest = %q, want switch-client", records[0].Decision)
	}
	if records[1].Decision != pkg.DecisionStayAP {
		t.Errorf("second = %q, want stay-ap", records[1].Decision)
	}
}

func TestAppendPrunesOldRecords(t *testing.T) {
	store := testStore(t, 1)

	old := &pkg.CycleRecord{Timestamp: time.Now().Add(-2 * time.Hour), Decision: pkg.DecisionStayAP}
	if err := store.Append(old); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	fresh := &pkg.CycleRecord{Timestamp: time.Now(), Decision: pkg.DecisionStayClient, Success: true}
	if err := store.Append(fresh); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 || records[0].Decision != pkg.DecisionStayClient {
		t.Errorf("records = %+v, want only the fresh one", records)
	}
}

func TestNewStoreRejectsBadRetention(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "history.db"), 0, logx.NewLogger("error", "test"))
	if err == nil {
		t.Fatal("expected error for zero retention")
	}
}
