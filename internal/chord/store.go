package chord

import "context"

// StoreResult is the outcome of a Store operation: which node ended up
// owning the key, whether the local call forwarded to reach it, and the
// hop path walked to get there (§4.4, §9 "path accumulation").
type StoreResult struct {
	OwnerID   uint64   `json:"node_id"`
	OwnerAddr string   `json:"-"`
	Forwarded bool     `json:"-"`
	Path      []uint64 `json:"path"`
}

// LookupResult is the outcome of a Lookup: the value if found, which
// node served it, and the hop path (§4.4, §9). Found has no wire
// representation of its own; the /lookup endpoint signals it via HTTP
// status (200 vs 404, §6, §7), so LookupRemote sets it from the status
// code rather than from a decoded field.
type LookupResult struct {
	Value     string   `json:"value"`
	Found     bool     `json:"-"`
	OwnerID   uint64   `json:"node_id"`
	OwnerAddr string   `json:"-"`
	Forwarded bool     `json:"-"`
	Path      []uint64 `json:"path"`
}

// IsResponsible reports whether this node owns keyID: keyID falls in
// the half-open arc (predecessor, self] (§4.4). A node with no
// predecessor yet (solo ring) owns everything.
func (n *Node) IsResponsible(keyID uint64) bool {
	pred := n.Predecessor()
	if pred == nil {
		return true
	}
	return InRightInclusive(keyID, pred.ID, n.self.ID)
}

// StoreLocal writes a key/value pair into the local store.
func (n *Node) StoreLocal(key, value string) {
	n.dataMu.Lock()
	n.data[key] = value
	n.dataMu.Unlock()
}

// GetLocal reads a key from the local store.
func (n *Node) GetLocal(key string) (string, bool) {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	v, ok := n.data[key]
	return v, ok
}

// Store routes a client store request (§4.4, §9): if this node owns
// keyID, write locally and return; if the call already forwarded once,
// stop here regardless of ownership (the forwarded flag is a
// single-hop circuit breaker, not a retry budget); otherwise resolve
// the owner and forward once with forwarded=true.
func (n *Node) Store(ctx context.Context, key, value string, forwarded bool) (StoreResult, error) {
	keyID := HashKey(key, n.bits)
	path := []uint64{n.self.ID}

	if n.IsResponsible(keyID) || forwarded {
		n.StoreLocal(key, value)
		return StoreResult{
			OwnerID:   n.self.ID,
			OwnerAddr: n.self.Addr(),
			Forwarded: forwarded,
			Path:      path,
		}, nil
	}

	owner, err := n.FindSuccessor(ctx, keyID)
	if err != nil {
		return StoreResult{}, err
	}
	if owner.Equal(n.self) {
		n.StoreLocal(key, value)
		return StoreResult{OwnerID: n.self.ID, OwnerAddr: n.self.Addr(), Path: path}, nil
	}

	result, err := n.transport.StoreRemote(ctx, owner.Addr(), key, value)
	if err != nil {
		return StoreResult{}, err
	}
	result.Path = append(result.Path, n.self.ID)
	return result, nil
}

// Lookup routes a client lookup request, mirroring Store's forwarding
// rule (§4.4, §9).
func (n *Node) Lookup(ctx context.Context, key string, forwarded bool) (LookupResult, error) {
	keyID := HashKey(key, n.bits)
	path := []uint64{n.self.ID}

	if n.IsResponsible(keyID) || forwarded {
		v, ok := n.GetLocal(key)
		return LookupResult{
			Value:     v,
			Found:     ok,
			OwnerID:   n.self.ID,
			OwnerAddr: n.self.Addr(),
			Forwarded: forwarded,
			Path:      path,
		}, nil
	}

	owner, err := n.FindSuccessor(ctx, keyID)
	if err != nil {
		return LookupResult{}, err
	}
	if owner.Equal(n.self) {
		v, ok := n.GetLocal(key)
		return LookupResult{Value: v, Found: ok, OwnerID: n.self.ID, OwnerAddr: n.self.Addr(), Path: path}, nil
	}

	result, err := n.transport.LookupRemote(ctx, owner.Addr(), key)
	if err != nil {
		return LookupResult{}, err
	}
	result.Path = append(result.Path, n.self.ID)
	return result, nil
}

// TransferKeysToPredecessor yields every locally held key that falls in
// (lowerBound, newPredID], per §4.4. When lowerBound is not given it
// defaults to the current predecessor's id, or self's id if there is
// none. Keys are removed from the local store as they are handed over.
func (n *Node) TransferKeysToPredecessor(newPredID uint64, lowerBound *uint64) map[string]string {
	bound := lowerBound
	if bound == nil {
		if pred := n.Predecessor(); pred != nil {
			id := pred.ID
			bound = &id
		} else {
			id := n.self.ID
			bound = &id
		}
	}

	n.dataMu.Lock()
	defer n.dataMu.Unlock()

	moved := make(map[string]string)
	for k, v := range n.data {
		keyID := HashKey(k, n.bits)
		if InRightInclusive(keyID, *bound, newPredID) {
			moved[k] = v
			delete(n.data, k)
		}
	}
	return moved
}

// ReceiveKeys merges a batch of transferred key/value pairs into the
// local store (join and depart paths, §4.3.7, §4.4).
func (n *Node) ReceiveKeys(data map[string]string) {
	if len(data) == 0 {
		return
	}
	n.dataMu.Lock()
	for k, v := range data {
		n.data[k] = v
	}
	n.dataMu.Unlock()
}

// transferKeysFromSuccessor is the join-side counterpart: ask the new
// successor to give up the keys that now belong to self, using the
// joiner's old predecessor as the lower bound when known (§4.4).
func (n *Node) transferKeysFromSuccessor(ctx context.Context, lowerBound *uint64) {
	succ := n.Successor()
	if succ.Equal(n.self) {
		return
	}
	data, err := n.transport.TransferKeys(ctx, succ.Addr(), n.self.ID, lowerBound)
	if err != nil {
		n.log.Warn("transfer_keys_to_predecessor RPC failed", "node_id", n.self.ID, "err", err)
		return
	}
	n.ReceiveKeys(data)
}
