package nodestate

import (
	"testing"

	"ringkeep/internal/membership"
)

func TestBumpTimestampMonotonic(t *testing.T) {
	s := New("a", t.TempDir(), "AEROLINEA", 100)
	if s.Timestamp() != 0 {
		t.Fatalf("expected initial timestamp 0, got %d", s.Timestamp())
	}
	if s.BumpTimestamp() != 1 || s.BumpTimestamp() != 2 {
		t.Fatal("expected strictly increasing timestamp")
	}
}

func TestObserveDigestEntryJoinsRing(t *testing.T) {
	s := New("a", t.TempDir(), "AEROLINEA", 100)
	if s.RingContains("b") {
		t.Fatal("b should not start on the ring")
	}
	_, joined := s.ObserveDigestEntry("b", membership.Incarnation{Generation: 200, Version: 1}, membership.Normal)
	if !joined {
		t.Fatal("expected first Normal observation to report join")
	}
	if !s.RingContains("b") {
		t.Fatal("expected b to be inserted into the ring")
	}
}

func TestMarkDownRemovesFromRing(t *testing.T) {
	s := New("a", t.TempDir(), "AEROLINEA", 100)
	s.ObserveDigestEntry("b", membership.Incarnation{Generation: 200, Version: 1}, membership.Normal)
	s.MarkDown("b")
	if s.RingContains("b") {
		t.Fatal("expected b removed from ring after MarkDown")
	}
	p, ok := s.Peer("b")
	if !ok || p.Status != membership.Down {
		t.Fatalf("expected b Down, got %+v ok=%v", p, ok)
	}
}

func TestPickGossipTargetsExcludesSelfAndRecent(t *testing.T) {
	s := New("a", t.TempDir(), "AEROLINEA", 100)
	s.ObserveDigestEntry("b", membership.Incarnation{Generation: 1, Version: 1}, membership.Normal)
	s.ObserveDigestEntry("c", membership.Incarnation{Generation: 1, Version: 1}, membership.Normal)
	s.MarkRecentGossip("b")

	targets := s.PickGossipTargets(2, nil)
	for _, target := range targets {
		if target == "a" || target == "b" {
			t.Fatalf("unexpected target in %v", targets)
		}
	}
}

func TestEnsureKeyspaceIdempotent(t *testing.T) {
	s := New("a", t.TempDir(), "AEROLINEA", 100)
	ks1, err := s.Ensure("AEROLINEA", 3)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	ks2, err := s.Ensure("AEROLINEA", 3)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if ks1 != ks2 {
		t.Fatal("expected Ensure to return the same keyspace instance")
	}
}
