package chord

import "context"

// Join attaches the node to the ring via bootstrap, or starts a solo
// ring if bootstrap is empty (§4.3).
func (n *Node) Join(ctx context.Context, bootstrap string) error {
	if bootstrap == "" {
		n.mu.Lock()
		n.successor = n.self
		n.predecessor = nil
		n.mu.Unlock()
		n.log.Info("joined as solo ring", "node_id", n.self.ID)
		return nil
	}

	succ, err := n.transport.FindSuccessor(ctx, bootstrap, n.self.ID)
	if err != nil {
		return err
	}
	n.SetSuccessor(succ)

	oldPred, err := n.transport.GetPredecessor(ctx, succ.Addr())
	if err != nil {
		n.log.Warn("join: could not fetch successor's old predecessor", "err", err)
		oldPred = nil
	}

	n.initFingerTable(ctx, bootstrap)
	n.notifySuccessor(ctx)

	var lowerBound *uint64
	if oldPred != nil {
		id := oldPred.ID
		lowerBound = &id
	}
	n.transferKeysFromSuccessor(ctx, lowerBound)

	n.log.Info("joined ring",
		"node_id", n.self.ID, "bootstrap", bootstrap, "successor", succ.ID)
	return nil
}

// initFingerTable initializes the finger table using the bootstrap node,
// per §4.3.1.
func (n *Node) initFingerTable(ctx context.Context, bootstrap string) {
	succ := n.Successor()
	n.mu.Lock()
	n.finger[0].Successor = succ
	n.mu.Unlock()

	pred, err := n.transport.GetPredecessor(ctx, succ.Addr())
	if err != nil {
		n.log.Warn("init_finger_table: could not fetch predecessor of successor", "err", err)
	} else {
		n.SetPredecessor(pred)
	}

	for i := 1; i < int(n.bits); i++ {
		start := ringAdd(n.self.ID, uint64(1)<<uint(i), n.bits)

		n.mu.Lock()
		prevSucc := n.finger[i-1].Successor
		n.finger[i].Start = start
		n.mu.Unlock()

		if InLeftInclusive(start, n.self.ID, prevSucc.ID) {
			n.mu.Lock()
			n.finger[i].Successor = prevSucc
			n.mu.Unlock()
			continue
		}

		s, err := n.transport.FindSuccessor(ctx, bootstrap, start)
		if err != nil {
			n.log.Warn("init_finger_table: find_successor failed", "finger", i, "err", err)
			continue
		}
		n.mu.Lock()
		n.finger[i].Successor = s
		n.mu.Unlock()
	}

	n.updateOthers(ctx)
}

// updateOthers tells every peer whose finger table should point at this
// node to update it, per §4.3.4.
func (n *Node) updateOthers(ctx context.Context) {
	for i := 0; i < int(n.bits); i++ {
		pID := ringSub(n.self.ID, uint64(1)<<uint(i), n.bits)
		p, err := n.FindPredecessor(ctx, pID)
		if err != nil {
			continue
		}
		if p.Equal(n.self) {
			continue
		}
		if _, err := n.transport.UpdateFingerTable(ctx, p.Addr(), n.self, i); err != nil {
			n.log.Warn("update_others: update_finger_table RPC failed",
				"node_id", n.self.ID, "target", p.ID, "finger", i, "err", err)
		}
	}
}

// UpdateFingerTable is the gossip RPC handler for join propagation
// (§4.3.3): if s should become finger[i]'s successor, set it and
// propagate to predecessor. Finger 0 is the successor pointer, so an
// update of entry 0 also replaces the successor.
func (n *Node) UpdateFingerTable(ctx context.Context, s NodeRef, i int) bool {
	if s.Equal(n.self) {
		return false
	}

	n.mu.Lock()
	current := n.finger[i].Successor
	shouldUpdate := current.Equal(n.self) || InLeftInclusive(s.ID, n.self.ID, current.ID)
	if shouldUpdate {
		n.finger[i].Successor = s
		if i == 0 {
			n.successor = s
		}
	}
	pred := n.predecessor
	n.mu.Unlock()

	if !shouldUpdate {
		return false
	}

	n.log.Debug("update_finger_table applied", "node_id", n.self.ID, "finger", i, "s", s.ID)

	if pred != nil && !pred.Equal(s) {
		if _, err := n.transport.UpdateFingerTable(ctx, pred.Addr(), s, i); err != nil {
			n.log.Warn("update_finger_table: propagation to predecessor failed",
				"node_id", n.self.ID, "err", err)
		}
	}
	return true
}

// Notify processes a claim from candidate that it may be our
// predecessor (§4.3.2): accept iff we have none, or candidate is in the
// open arc (predecessor, self).
func (n *Node) Notify(candidate NodeRef) bool {
	n.mu.Lock()
	pred := n.predecessor
	accept := pred == nil || InOpen(candidate.ID, pred.ID, n.self.ID)
	if accept {
		n.predecessor = &candidate
	}
	n.mu.Unlock()

	if accept {
		n.log.Debug("notify accepted", "node_id", n.self.ID, "predecessor", candidate.ID)
	}
	return accept
}

func (n *Node) notifySuccessor(ctx context.Context) {
	succ := n.Successor()
	if succ.Equal(n.self) {
		return
	}
	if _, err := n.transport.Notify(ctx, succ.Addr(), n.self); err != nil {
		n.log.Warn("notify successor failed", "node_id", n.self.ID, "successor", succ.ID, "err", err)
	}
}

// Stabilize is the periodic two-step reconciliation of §4.3.5: fetch the
// successor's predecessor; if it lies strictly between self and
// successor, adopt it; then notify the (possibly new) successor.
func (n *Node) Stabilize(ctx context.Context) {
	succ := n.Successor()

	if succ.Equal(n.self) {
		if pred := n.Predecessor(); pred != nil && !pred.Equal(n.self) {
			if InOpen(pred.ID, n.self.ID, succ.ID) {
				n.SetSuccessor(*pred)
			}
		}
	} else {
		x, err := n.transport.GetPredecessor(ctx, succ.Addr())
		if err != nil {
			n.log.Warn("stabilize: get_predecessor failed", "node_id", n.self.ID, "successor", succ.ID, "err", err)
		} else if x != nil && InOpen(x.ID, n.self.ID, succ.ID) {
			n.SetSuccessor(*x)
		}
	}

	n.notifySuccessor(ctx)
}

// FixFingers advances the rotating cursor and refreshes that entry's
// successor (§4.3.6).
func (n *Node) FixFingers(ctx context.Context) {
	n.mu.Lock()
	n.nextFinger = (n.nextFinger + 1) % int(n.bits)
	idx := n.nextFinger
	start := ringAdd(n.self.ID, uint64(1)<<uint(idx), n.bits)
	n.finger[idx].Start = start
	n.mu.Unlock()

	succ, err := n.FindSuccessor(ctx, start)
	if err != nil {
		n.log.Warn("fix_fingers: find_successor failed", "node_id", n.self.ID, "finger", idx, "err", err)
		return
	}

	n.mu.Lock()
	n.finger[idx].Successor = succ
	n.mu.Unlock()
}

// CheckPredecessor pings the predecessor and clears the pointer if it is
// unreachable (§9 dead-peer-detection redesign flag).
func (n *Node) CheckPredecessor(ctx context.Context) {
	pred := n.Predecessor()
	if pred == nil {
		return
	}
	alive, err := n.transport.CheckAlive(ctx, pred.Addr())
	if err != nil || !alive {
		n.log.Warn("predecessor unreachable, clearing", "node_id", n.self.ID, "predecessor", pred.ID)
		n.SetPredecessor(nil)
	}
}

// Depart gracefully leaves the ring (§4.3.7): push local keys to the
// successor, rewire predecessor<->successor, then reset local state.
// Best-effort: local state is cleared even if an RPC fails.
func (n *Node) Depart(ctx context.Context) error {
	succ := n.Successor()
	pred := n.Predecessor()

	if !succ.Equal(n.self) {
		if err := n.transport.ReceiveKeys(ctx, succ.Addr(), n.DataSnapshot()); err != nil {
			n.log.Warn("depart: receive_keys failed", "node_id", n.self.ID, "err", err)
		}
	}

	if pred != nil {
		if err := n.transport.UpdateSuccessor(ctx, pred.Addr(), succ); err != nil {
			n.log.Warn("depart: update_successor on predecessor failed", "node_id", n.self.ID, "err", err)
		}
	}
	if !succ.Equal(n.self) {
		if err := n.transport.UpdatePredecessor(ctx, succ.Addr(), pred); err != nil {
			n.log.Warn("depart: update_predecessor on successor failed", "node_id", n.self.ID, "err", err)
		}
	}

	n.mu.Lock()
	n.successor = n.self
	n.predecessor = nil
	n.mu.Unlock()

	n.dataMu.Lock()
	n.data = make(map[string]string)
	n.dataMu.Unlock()

	n.log.Info("departed", "node_id", n.self.ID)
	return nil
}
