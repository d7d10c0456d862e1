package lsdb

import "testing"

func TestApplyAcceptsStrictlyGreaterSequence(t *testing.T) {
	d := New()

	if !d.Apply(LSA{Originator: "B", Sequence: 5, Links: map[string]int{"A": 1}}, 0) {
		t.Fatalf("expected first LSA from B to be accepted")
	}

	if d.Apply(LSA{Originator: "B", Sequence: 3, Links: map[string]int{"A": 1}}, 1) {
		t.Fatalf("stale LSA (seq 3 after seq 5) must be rejected")
	}

	got, ok := d.Get("B")
	if !ok || got.Sequence != 5 {
		t.Fatalf("LSDB entry should be unchanged by the stale LSA, got %+v", got)
	}

	if !d.Apply(LSA{Originator: "B", Sequence: 6, Links: map[string]int{"A": 1}}, 2) {
		t.Fatalf("LSA with strictly greater sequence must be accepted")
	}

	got, _ = d.Get("B")
	if got.Sequence != 6 {
		t.Fatalf("expected sequence 6 after accepting newer LSA, got %d", got.Sequence)
	}
}

func TestApplyRejectsEqualSequence(t *testing.T) {
	d := New()
	d.Apply(LSA{Originator: "B", Sequence: 5}, 0)

	if d.Apply(LSA{Originator: "B", Sequence: 5}, 1) {
		t.Fatalf("duplicate sequence number must not be re-accepted")
	}
}

func TestAgeSweepRemovesStaleOriginators(t *testing.T) {
	d := New()
	d.Apply(LSA{Originator: "A", Sequence: 1}, 0)
	d.Apply(LSA{Originator: "B", Sequence: 1}, 100)

	removed := d.AgeSweep(150, 50)

	if len(removed) != 1 || removed[0] != "A" {
		t.Fatalf("expected only A to age out, got %v", removed)
	}
	if _, ok := d.Get("A"); ok {
		t.Fatalf("A should have been removed from the LSDB")
	}
	if _, ok := d.Get("B"); !ok {
		t.Fatalf("B should still be present")
	}
}

func TestHasSameLinksInvariant(t *testing.T) {
	a := LSA{Originator: "A", Sequence: 1, Links: map[string]int{"B": 1, "C": 2}}
	b := LSA{Originator: "A", Sequence: 1, Links: map[string]int{"C": 2, "B": 1}}
	if !a.HasSameLinks(b) {
		t.Fatalf("LSAs with equal (originator, sequence) must carry identical links")
	}

	c := LSA{Originator: "A", Sequence: 1, Links: map[string]int{"B": 1}}
	if a.HasSameLinks(c) {
		t.Fatalf("expected different link sets to compare unequal")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := LSA{Originator: "A", Links: map[string]int{"B": 1}}
	clone := original.Clone()
	clone.Links["B"] = 99

	if original.Links["B"] != 1 {
		t.Fatalf("mutating the clone must not affect the original")
	}
}
