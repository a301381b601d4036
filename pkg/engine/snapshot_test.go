package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/testsupport"
)

func TestRestoreReplaysDependentAnswers(t *testing.T) {
	t.Parallel()

	src := mustNew(t, testsupport.ZooInsurance())
	for key, value := range testsupport.ZooInsuranceAnswers() {
		mustSet(t, src, key, value)
	}
	mustSet(t, src, "numberOfTigers", 2)
	mustSet(t, src, "animalName_0", "Rajah")
	mustSet(t, src, "animalName_1", "Shere Khan")
	mustSet(t, src, "wantsExtended", "Yes")
	mustSet(t, src, "extendedCoverageReason", "Our tigers travel")

	snap := src.Snapshot()
	if snap["animalName_1"] != "Shere Khan" {
		t.Fatalf("snapshot is missing instance answers: %v", snap)
	}

	dst := mustNew(t, testsupport.ZooInsurance())
	skipped, err := dst.Restore(snap)
	if err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("Restore skipped %v", skipped)
	}
	if diff := cmp.Diff(snap, dst.Snapshot()); diff != "" {
		t.Fatalf("restored snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotLeavesOutDerivedFields(t *testing.T) {
	t.Parallel()

	e := mustNew(t, testsupport.Ledger())
	mustSet(t, e, "a", 3)
	mustSet(t, e, "b", 4)

	snap := e.Snapshot()
	if _, ok := snap["total"]; ok {
		t.Fatalf("derived field leaked into snapshot: %v", snap)
	}

	skipped, err := e.Restore(map[string]any{"total": 99, "nope": 1, "a": 10})
	if err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"nope", "total"}, skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	if got := e.Value("total"); got != 14.0 {
		t.Fatalf("total = %v, want 14", got)
	}
}

func TestRestoreOnNilEngine(t *testing.T) {
	var e *Engine
	if _, err := e.Restore(nil); err != ErrNotBuilt {
		t.Fatalf("Restore on nil engine = %v, want ErrNotBuilt", err)
	}
	if e.Snapshot() != nil {
		t.Fatalf("Snapshot on nil engine should be nil")
	}
}
