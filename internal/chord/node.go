package chord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// FingerEntry is one row of the finger table: entry i starts at
// (self.id + 2^i) mod 2^m and points at the first live peer at or after
// that start (§3, GLOSSARY "Finger").
type FingerEntry struct {
	Start     uint64
	Successor NodeRef
}

// Node is one Chord peer: routing state, maintenance cursor, and local
// key store, all guarded so that reads of (successor, predecessor,
// finger[i]) never observe a torn {id, ip, port} triple and mutations of
// each are serialized with respect to one another (§5).
type Node struct {
	self NodeRef
	bits uint

	mu          sync.RWMutex
	successor   NodeRef
	predecessor *NodeRef
	finger      []FingerEntry
	nextFinger  int

	dataMu sync.RWMutex
	data   map[string]string

	transport Transport
	log       *slog.Logger
}

// New creates a freshly booted peer: routing tables point at self, the
// peer is not yet active on any ring (§3 "Lifecycle" — created, not
// joined). Call Join to activate it.
func New(self NodeRef, bits uint, transport Transport, log *slog.Logger) *Node {
	if log == nil {
		log = slog.Default()
	}
	n := &Node{
		self:      self,
		bits:      bits,
		successor: self,
		transport: transport,
		data:      make(map[string]string),
		log:       log,
	}
	n.finger = make([]FingerEntry, bits)
	for i := range n.finger {
		n.finger[i] = FingerEntry{
			Start:     ringAdd(self.ID, uint64(1)<<uint(i), bits),
			Successor: self,
		}
	}
	n.log.Info("node created", "node_id", self.ID, "addr", self.Addr())
	return n
}

func ringAdd(id, delta uint64, bits uint) uint64 {
	mod := uint64(1) << bits
	return (id + delta) % mod
}

func ringSub(id, delta uint64, bits uint) uint64 {
	mod := uint64(1) << bits
	return (id + mod - (delta % mod)) % mod
}

// Self returns the node's own identity.
func (n *Node) Self() NodeRef { return n.self }

// Bits returns the configured identifier width m.
func (n *Node) Bits() uint { return n.bits }

// ID returns the node's own ring id.
func (n *Node) ID() uint64 { return n.self.ID }

// Addr returns the node's own dial address.
func (n *Node) Addr() string { return n.self.Addr() }

// Successor returns a consistent snapshot of the successor pointer.
func (n *Node) Successor() NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.successor
}

// Predecessor returns a consistent snapshot of the predecessor pointer,
// or nil if the node currently has none (§3).
func (n *Node) Predecessor() *NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.predecessor == nil {
		return nil
	}
	p := *n.predecessor
	return &p
}

// SetSuccessor replaces the successor pointer.
func (n *Node) SetSuccessor(s NodeRef) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successor = s
	n.finger[0].Successor = s
	n.log.Debug("successor set", "node_id", n.self.ID, "successor", s.ID)
}

// SetPredecessor replaces the predecessor pointer; nil clears it.
func (n *Node) SetPredecessor(p *NodeRef) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p == nil {
		n.predecessor = nil
		n.log.Debug("predecessor cleared", "node_id", n.self.ID)
		return
	}
	v := *p
	n.predecessor = &v
	n.log.Debug("predecessor set", "node_id", n.self.ID, "predecessor", v.ID)
}

// FingerTable returns a copy of the finger table for diagnostics (§6
// /finger_table, /node_info).
func (n *Node) FingerTable() []FingerEntry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]FingerEntry, len(n.finger))
	copy(out, n.finger)
	return out
}

// DataCount returns the number of locally stored keys.
func (n *Node) DataCount() int {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	return len(n.data)
}

// DataSnapshot returns a copy of the local key/value store (§6 /data_store).
func (n *Node) DataSnapshot() map[string]string {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	out := make(map[string]string, len(n.data))
	for k, v := range n.data {
		out[k] = v
	}
	return out
}

// NetworkState walks the successor chain starting at self, collecting
// every distinct peer it can reach, per §6 "/network_state". The walk
// stops on a cycle back to self, an unreachable peer, or after maxNodes
// hops, whichever comes first (original_source's get_network_state
// guards the same way).
func (n *Node) NetworkState(ctx context.Context, maxNodes int) []NodeRef {
	visited := map[uint64]bool{n.self.ID: true}
	nodes := []NodeRef{n.self}

	current := n.Successor()
	for count := 0; current.ID != n.self.ID && count < maxNodes; count++ {
		if visited[current.ID] {
			break
		}
		nodes = append(nodes, current)
		visited[current.ID] = true

		next, err := n.transport.GetSuccessor(ctx, current.Addr())
		if err != nil {
			n.log.Warn("network_state: get_successor failed", "target", current.ID, "err", err)
			break
		}
		current = next
	}
	return nodes
}

// String renders the node's routing state, matching the teacher's
// diagnostic dump shape.
func (n *Node) String() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := fmt.Sprintf("ID: %d, Addr: %s\n", n.self.ID, n.self.Addr())
	out += fmt.Sprintf("  Successor: %d (%s)\n", n.successor.ID, n.successor.Addr())
	if n.predecessor != nil {
		out += fmt.Sprintf("  Predecessor: %d (%s)\n", n.predecessor.ID, n.predecessor.Addr())
	} else {
		out += "  Predecessor: none\n"
	}
	out += "  Finger table:\n"
	for i, f := range n.finger {
		out += fmt.Sprintf("    [%d] start=%d --> %d (%s)\n", i, f.Start, f.Successor.ID, f.Successor.Addr())
	}
	return out
}
