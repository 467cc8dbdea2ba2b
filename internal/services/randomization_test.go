package services

import (
	"fmt"
	"testing"
)

func TestPermuteIDsDeterministic(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}

	first := PermuteIDs(ids, 42)
	second := PermuteIDs(ids, 42)

	if len(first) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different orders at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestPermuteIDsDoesNotMutateInput(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	original := make([]string, len(ids))
	copy(original, ids)

	PermuteIDs(ids, 7)

	for i := range ids {
		if ids[i] != original[i] {
			t.Fatalf("input mutated at %d: %s became %s", i, original[i], ids[i])
		}
	}
}

func TestPermuteIDsIsPermutation(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("q-%02d", i)
	}

	out := PermuteIDs(ids, 99)

	seen := make(map[string]bool, len(out))
	for _, id := range out {
		if seen[id] {
			t.Fatalf("id %s appears more than once", id)
		}
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("id %s missing from permutation", id)
		}
	}
}

func TestPermuteIDsSeedChangesOrder(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("q-%02d", i)
	}

	a := PermuteIDs(ids, 1)
	b := PermuteIDs(ids, 2)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical orders")
	}
}

func TestOptionSeedVariesPerQuestion(t *testing.T) {
	base := int64(12345)

	if OptionSeed(base, "question-1") == OptionSeed(base, "question-2") {
		t.Fatal("different questions produced the same option seed")
	}
	if OptionSeed(base, "question-1") != OptionSeed(base, "question-1") {
		t.Fatal("option seed is not stable for the same question")
	}
}

func TestReplayOrderDropsMissingIDs(t *testing.T) {
	persisted := []string{"q1", "q2", "q3", "q4"}
	existing := map[string]struct{}{
		"q1": {},
		"q3": {},
		"q4": {},
	}

	out := replayOrder(persisted, existing, testLogger(), "sub-1")

	want := []string{"q1", "q3", "q4"}
	if len(out) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %s at %d, got %s", want[i], i, out[i])
		}
	}
}

func TestReplayOrderEmptyInput(t *testing.T) {
	out := replayOrder(nil, map[string]struct{}{"q1": {}}, testLogger(), "sub-1")
	if len(out) != 0 {
		t.Fatalf("expected empty order, got %d ids", len(out))
	}
}

func BenchmarkPermuteIDs(b *testing.B) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = fmt.Sprintf("q-%03d", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PermuteIDs(ids, int64(i))
	}
}
