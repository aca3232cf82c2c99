package chord

import "context"

// ClosestPrecedingFinger scans the finger table from m-1 down to 0 and
// returns the first entry whose successor lies in the open arc
// (self.id, keyID); falls back to self if none qualify (§4.2).
func (n *Node) ClosestPrecedingFinger(keyID uint64) NodeRef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for i := len(n.finger) - 1; i >= 0; i-- {
		candidate := n.finger[i].Successor
		if InOpen(candidate.ID, n.self.ID, keyID) {
			return candidate
		}
	}
	return n.self
}

// FindSuccessor resolves the successor of keyID (§4.2):
//  1. if keyID ∈ (self, successor], return successor.
//  2. otherwise let n' = closest_preceding_finger(keyID); if n' == self,
//     fall back to successor (the ring has fewer peers than fingers).
//  3. otherwise RPC n'.find_successor(keyID); transport failure falls
//     back to successor.
func (n *Node) FindSuccessor(ctx context.Context, keyID uint64) (NodeRef, error) {
	succ := n.Successor()
	if InRightInclusive(keyID, n.self.ID, succ.ID) {
		return succ, nil
	}

	nprime := n.ClosestPrecedingFinger(keyID)
	if nprime.Equal(n.self) {
		return succ, nil
	}

	result, err := n.transport.FindSuccessor(ctx, nprime.Addr(), keyID)
	if err != nil {
		n.log.Warn("find_successor RPC failed, falling back to successor",
			"node_id", n.self.ID, "target", nprime.ID, "err", err)
		return succ, nil
	}
	return result, nil
}

// FindPredecessor iteratively walks the ring toward keyID (§4.2):
// start from self; while keyID is not in (n', n'.successor], advance
// n' <- n'.closest_preceding_finger(keyID), refreshing n'.successor.
// Transport failure terminates the walk and returns the last known n'.
func (n *Node) FindPredecessor(ctx context.Context, keyID uint64) (NodeRef, error) {
	nprime := n.self
	nsucc := n.Successor()

	for !InRightInclusive(keyID, nprime.ID, nsucc.ID) {
		var err error
		if nprime.Equal(n.self) {
			nprime = n.ClosestPrecedingFinger(keyID)
			if nprime.Equal(n.self) {
				return n.self, nil
			}
		} else {
			next, cpfErr := n.transport.ClosestPrecedingFinger(ctx, nprime.Addr(), keyID)
			if cpfErr != nil {
				n.log.Warn("closest_preceding_finger RPC failed, stopping walk",
					"node_id", n.self.ID, "err", cpfErr)
				return nprime, nil
			}
			nprime = next
		}

		nsucc, err = n.transport.GetSuccessor(ctx, nprime.Addr())
		if err != nil {
			n.log.Warn("get_successor RPC failed, stopping walk",
				"node_id", n.self.ID, "target", nprime.ID, "err", err)
			return nprime, nil
		}
	}
	return nprime, nil
}
