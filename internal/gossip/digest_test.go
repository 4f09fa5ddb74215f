package gossip

import (
	"testing"

	"ringkeep/internal/membership"
)

func TestParseTripleHandlesColonInAddress(t *testing.T) {
	tr, ok := parseTriple("10.0.0.1:9044:100.5:3")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if tr.addr != "10.0.0.1:9044" || tr.inc.Generation != 100.5 || tr.inc.Version != 3 {
		t.Fatalf("got %+v", tr)
	}
}

func TestParseFullTupleHandlesColonInAddress(t *testing.T) {
	ft, ok := parseFullTuple("10.0.0.2:9044:1:2:Normal")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if ft.addr != "10.0.0.2:9044" || ft.inc.Version != 2 || ft.status != membership.Normal {
		t.Fatalf("got %+v", ft)
	}
}

func TestParseDigestMultipleEntries(t *testing.T) {
	digest := "10.0.0.1:9044:100:1 10.0.0.2:9044:50:9"
	triples := parseDigest(digest)
	if len(triples) != 2 {
		t.Fatalf("got %v", triples)
	}
	if triples[0].addr != "10.0.0.1:9044" || triples[1].inc.Version != 9 {
		t.Fatalf("got %+v", triples)
	}
}

func TestFormatFullTupleRoundTrips(t *testing.T) {
	s := formatFullTuple("10.0.0.3:9044", membership.Incarnation{Generation: 7, Version: 2}, membership.Down)
	ft, ok := parseFullTuple(s)
	if !ok || ft.addr != "10.0.0.3:9044" || ft.status != membership.Down {
		t.Fatalf("got %q -> %+v", s, ft)
	}
}
