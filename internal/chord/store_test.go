package chord

import (
	"context"
	"testing"
)

// TestSoloStoreAndLookup mirrors scenario S1: a single peer stores and
// serves its own key without any forwarding.
func TestSoloStoreAndLookup(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 42, 7)
	ctx := context.Background()

	storeResult, err := n.Store(ctx, "hello", "world", false)
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if storeResult.OwnerID != n.ID() {
		t.Errorf("store owner = %d, want self %d", storeResult.OwnerID, n.ID())
	}

	lookupResult, err := n.Lookup(ctx, "hello", false)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !lookupResult.Found || lookupResult.Value != "world" {
		t.Fatalf("Lookup = %+v, want found=true value=world", lookupResult)
	}
	if lookupResult.OwnerID != n.ID() {
		t.Errorf("lookup owner = %d, want self %d", lookupResult.OwnerID, n.ID())
	}
	if len(lookupResult.Path) != 1 || lookupResult.Path[0] != n.ID() {
		t.Errorf("lookup path = %v, want [%d]", lookupResult.Path, n.ID())
	}
}

func TestLookupMissingKey(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 1, 7)

	result, err := n.Lookup(context.Background(), "absent", false)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.Found {
		t.Fatal("Lookup of an absent key reported found=true")
	}
}

func TestIsResponsibleSoloRingOwnsEverything(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 10, 8)

	if !n.IsResponsible(0) || !n.IsResponsible(255) {
		t.Fatal("a predecessor-less node should own every id")
	}
}

func TestIsResponsibleArc(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 10, 8)
	n.SetPredecessor(refPtr(NodeRef{ID: 200, IP: "127.0.0.1", Port: 6200}))

	if !n.IsResponsible(10) {
		t.Error("right endpoint (self) should be owned")
	}
	if n.IsResponsible(200) {
		t.Error("left endpoint (predecessor) should not be owned")
	}
	if !n.IsResponsible(5) {
		t.Error("5 should fall in the wrapping arc (200, 10]")
	}
	if n.IsResponsible(50) {
		t.Error("50 should not fall in the arc (200, 10]")
	}
}

// TestTransferKeysToPredecessorSplitsOwnership mirrors scenario S3: a
// node holding keys at several hashes splits them with a newly joined
// predecessor using the arc (lowerBound, newPredID].
func TestTransferKeysToPredecessorSplitsOwnership(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 10, 8)

	// Seed the store directly with keys chosen so their hashes are known
	// via HashKey, then transfer against a synthetic boundary.
	keys := map[string]uint64{}
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		keys[k] = HashKey(k, 8)
		n.StoreLocal(k, "v-"+k)
	}

	// Pick a predecessor id roughly in the middle of the id space so the
	// exact split is deterministic regardless of hash values: everything
	// in (0, 128] moves, everything else stays.
	moved := n.TransferKeysToPredecessor(128, uint64Ptr(0))

	for k, id := range keys {
		wantMoved := InRightInclusive(id, 0, 128)
		_, isMoved := moved[k]
		if isMoved != wantMoved {
			t.Errorf("key %q (id=%d): moved=%v, want %v", k, id, isMoved, wantMoved)
		}
		_, stillLocal := n.GetLocal(k)
		if isMoved && stillLocal {
			t.Errorf("key %q was reported moved but is still present locally", k)
		}
		if !isMoved && !stillLocal {
			t.Errorf("key %q was not moved but disappeared from the local store", k)
		}
	}
}

func TestReceiveKeysMergesIntoLocalStore(t *testing.T) {
	ft := newFakeTransport()
	n := mkNode(ft, 10, 8)
	n.StoreLocal("existing", "1")

	n.ReceiveKeys(map[string]string{"new": "2"})

	if v, ok := n.GetLocal("existing"); !ok || v != "1" {
		t.Error("ReceiveKeys clobbered a pre-existing key")
	}
	if v, ok := n.GetLocal("new"); !ok || v != "2" {
		t.Error("ReceiveKeys did not merge the new key")
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }
