package chord

import (
	"context"
	"testing"
)

func TestJoinSoloRing(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 10, 8)

	if err := n.Join(context.Background(), ""); err != nil {
		t.Fatalf("solo join returned error: %v", err)
	}
	if got := n.Successor(); !got.Equal(n.Self()) {
		t.Fatalf("solo join successor = %v, want self", got)
	}
	if got := n.Predecessor(); got != nil {
		t.Fatalf("solo join predecessor = %v, want nil", got)
	}
}

// TestTwoPeerJoin mirrors scenario S2: peer A solo, peer B joins via A.
// Afterward both successor and predecessor pointers should be mutual.
func TestTwoPeerJoin(t *testing.T) {
	ft := newFakeTransport()
	ctx := context.Background()
	bits := uint(8)

	a := mkNode(ft, 10, bits)
	if err := a.Join(ctx, ""); err != nil {
		t.Fatalf("A solo join failed: %v", err)
	}

	b := mkNode(ft, 90, bits)
	if err := b.Join(ctx, a.Addr()); err != nil {
		t.Fatalf("B join via A failed: %v", err)
	}

	if got := a.Successor(); !got.Equal(b.Self()) {
		t.Errorf("A.successor = %v, want B", got)
	}
	if got := b.Successor(); !got.Equal(a.Self()) {
		t.Errorf("B.successor = %v, want A", got)
	}

	// Join already notified A, but B's predecessor is only set once A
	// notifies it; run the stabilize tick on A that would produce that.
	a.Stabilize(ctx)

	if got := a.Predecessor(); got == nil || !got.Equal(b.Self()) {
		t.Errorf("A.predecessor = %v, want B", got)
	}
	if got := b.Predecessor(); got == nil || !got.Equal(a.Self()) {
		t.Errorf("B.predecessor = %v, want A", got)
	}
}

func TestNotifyIdempotent(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 50, 8)

	candidate := NodeRef{ID: 20, IP: "127.0.0.1", Port: 6020}
	ft.register(New(candidate, 8, ft, discardLogger()))

	first := n.Notify(candidate)
	second := n.Notify(candidate)

	if !first {
		t.Fatal("first notify with no existing predecessor should be accepted")
	}
	if second {
		t.Fatal("repeat notify with the current predecessor lies outside the open arc and should be rejected")
	}
	if got := n.Predecessor(); got == nil || !got.Equal(candidate) {
		t.Fatalf("predecessor = %v, want %v", got, candidate)
	}
}

func TestNotifyRejectsOutsideArc(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 50, 8)

	inside := NodeRef{ID: 40, IP: "127.0.0.1", Port: 6040}
	n.Notify(inside)

	outside := NodeRef{ID: 200, IP: "127.0.0.1", Port: 6200}
	accepted := n.Notify(outside)

	if accepted {
		t.Fatal("notify from outside (predecessor, self) should be rejected")
	}
	if got := n.Predecessor(); !got.Equal(inside) {
		t.Fatalf("predecessor changed to %v, want unchanged %v", got, inside)
	}
}

func TestStabilizeAdoptsNewPredecessorOfSuccessor(t *testing.T) {
	ft := newFakeTransport()
	ctx := context.Background()
	bits := uint(8)

	a := mkNode(ft, 10, bits)
	c := mkNode(ft, 200, bits)
	a.SetSuccessor(c.Self())
	c.SetPredecessor(refPtr(a.Self()))

	// B joins between A and C without A knowing yet.
	b := mkNode(ft, 100, bits)
	b.SetSuccessor(c.Self())
	b.SetPredecessor(refPtr(a.Self()))
	c.SetPredecessor(refPtr(b.Self()))

	a.Stabilize(ctx)

	if got := a.Successor(); !got.Equal(b.Self()) {
		t.Fatalf("after stabilize, A.successor = %v, want B", got)
	}
}

func TestDepartHandsOffKeysAndRewiresNeighbours(t *testing.T) {
	ft := newFakeTransport()
	ctx := context.Background()
	bits := uint(8)

	a := mkNode(ft, 10, bits)
	p := mkNode(ft, 100, bits)
	succ := mkNode(ft, 200, bits)

	p.SetSuccessor(succ.Self())
	p.SetPredecessor(refPtr(a.Self()))
	a.SetSuccessor(p.Self())
	succ.SetPredecessor(refPtr(p.Self()))

	p.StoreLocal("k1", "v1")
	p.StoreLocal("k2", "v2")

	if err := p.Depart(ctx); err != nil {
		t.Fatalf("Depart returned error: %v", err)
	}

	if v, ok := succ.GetLocal("k1"); !ok || v != "v1" {
		t.Errorf("successor did not receive k1: got %q, ok=%v", v, ok)
	}
	if v, ok := succ.GetLocal("k2"); !ok || v != "v2" {
		t.Errorf("successor did not receive k2: got %q, ok=%v", v, ok)
	}
	if got := a.Successor(); !got.Equal(succ.Self()) {
		t.Errorf("predecessor's successor = %v, want departed peer's successor %v", got, succ.Self())
	}
	if got := succ.Predecessor(); got == nil || !got.Equal(a.Self()) {
		t.Errorf("successor's predecessor = %v, want departed peer's predecessor %v", got, a.Self())
	}
	if n := p.DataCount(); n != 0 {
		t.Errorf("departed node still holds %d keys, want 0", n)
	}
}
