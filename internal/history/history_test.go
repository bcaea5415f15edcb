package history

import (
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stakeops/stakectl/internal/engine"
	"github.com/stakeops/stakectl/internal/store"
)

func testRecorder(t *testing.T) *Recorder {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "store.db"), filepath.Join(dir, "store.lock"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewRecorder(s, "alice", "westend", 12)
}

func successOutcome(kind engine.ActionKind, ts time.Time) engine.TransactionOutcome {
	return engine.TransactionOutcome{
		Action:      kind,
		Status:      engine.OutcomeSuccess,
		BlockHeight: 100,
		TxHash:      "0xaa",
		RealizedFee: big.NewInt(5_000_000_000),
		Timestamp:   ts,
	}
}

func TestRecordAppendsAndListsNewestFirst(t *testing.T) {
	r := testRecorder(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := successOutcome(engine.ActionBond, base)
	if err := r.Record(first, engine.ActionContext{Amount: big.NewInt(1_500_000_000_000)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	second := successOutcome(engine.ActionNominate, base.Add(time.Hour))
	second.TxHash = "0xbb"
	if err := r.Record(second, engine.ActionContext{Targets: []string{"5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"}}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	items, err := r.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].TxHash != "0xbb" || items[1].TxHash != "0xaa" {
		t.Fatalf("expected newest first, got %+v", items)
	}
	if items[1].Amount != "1.5" {
		t.Fatalf("expected human amount 1.5, got %q", items[1].Amount)
	}
	if items[1].RealizedFee != "0.005" {
		t.Fatalf("expected fee 0.005, got %q", items[1].RealizedFee)
	}
	if items[0].Counterpart == "" {
		t.Fatalf("nominate entry should name its targets")
	}
}

func TestRecordKeepsFailedOutcomes(t *testing.T) {
	r := testRecorder(t)
	out := successOutcome(engine.ActionUnbond, time.Now())
	out.Status = engine.OutcomeFailed
	out.FailureReason = "Staking.NoMoreChunks"
	if err := r.Record(out, engine.ActionContext{Amount: big.NewInt(1)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	items, err := r.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Status != "failed" || items[0].Reason != "Staking.NoMoreChunks" {
		t.Fatalf("failed outcome not recorded faithfully: %+v", items)
	}
}

func TestConcurrentRecordsAllSurvive(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")
	lockPath := filepath.Join(dir, "store.lock")

	const (
		recorders = 8
		perEach   = 5
	)
	var wg sync.WaitGroup
	errs := make(chan error, recorders*perEach)
	for i := 0; i < recorders; i++ {
		s, err := store.Open(dbPath, lockPath)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		r := NewRecorder(s, "alice", "westend", 12)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEach; j++ {
				out := successOutcome(engine.ActionBondExtra, time.Now())
				if err := r.Record(out, engine.ActionContext{Amount: big.NewInt(1)}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Record failed under contention: %v", err)
	}

	check, err := store.Open(dbPath, lockPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = check.Close() })
	items, err := NewRecorder(check, "alice", "westend", 12).List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != recorders*perEach {
		t.Fatalf("lost history entries: expected %d, got %d", recorders*perEach, len(items))
	}
}

func TestListHonorsLimit(t *testing.T) {
	r := testRecorder(t)
	for i := 0; i < 5; i++ {
		out := successOutcome(engine.ActionBondExtra, time.Now())
		if err := r.Record(out, engine.ActionContext{Amount: big.NewInt(int64(i + 1))}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	items, err := r.List(3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
}
