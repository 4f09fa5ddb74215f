package ring

import "testing"

func TestOwnerDeterministic(t *testing.T) {
	r := New()
	r.Add("10.0.0.1:9043")
	r.Add("10.0.0.2:9043")
	r.Add("10.0.0.3:9043")

	hash := Token("some-key")
	o1, ok1 := r.Owner(hash)
	o2, ok2 := r.Owner(hash)
	if !ok1 || !ok2 || o1 != o2 {
		t.Fatalf("owner not deterministic: %v %v", o1, o2)
	}
}

func TestOwnerWrapAround(t *testing.T) {
	r := New()
	r.Add("a")
	hash := Token("a") + 1 // guaranteed to be past the only token
	owner, ok := r.Owner(hash)
	if !ok || owner != "a" {
		t.Fatalf("expected wrap-around owner 'a', got %q", owner)
	}
}

func TestSuccessorsExcludesSelf(t *testing.T) {
	r := New()
	r.Add("a")
	r.Add("b")
	r.Add("c")

	succ := r.Successors("a", 2)
	for _, s := range succ {
		if s == "a" {
			t.Fatalf("successors included self: %v", succ)
		}
	}
	if len(succ) != 2 {
		t.Fatalf("expected 2 successors, got %v", succ)
	}
}

func TestSuccessorsCappedByRingSize(t *testing.T) {
	r := New()
	r.Add("a")
	r.Add("b")

	succ := r.Successors("a", 5)
	if len(succ) != 1 {
		t.Fatalf("expected 1 successor (ring size 2, minus self), got %v", succ)
	}
}

func TestRemoveDropsFromRing(t *testing.T) {
	r := New()
	r.Add("a")
	r.Add("b")
	r.Remove("a")
	if r.Contains("a") {
		t.Fatal("expected a to be removed")
	}
	if r.Len() != 1 {
		t.Fatalf("expected len 1, got %d", r.Len())
	}
}
