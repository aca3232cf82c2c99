package chord

import "context"

// Transport is every cross-peer RPC a Node issues (§4, §6). It is the
// seam between ring logic and the wire: chord.Node never dials HTTP
// itself, it calls through this interface, and internal/transport
// supplies the JSON/HTTP implementation.
type Transport interface {
	// CheckAlive probes liveness (used by CheckPredecessor).
	CheckAlive(ctx context.Context, addr string) (bool, error)

	// GetPredecessor returns addr's predecessor, or nil if it has none.
	GetPredecessor(ctx context.Context, addr string) (*NodeRef, error)

	// GetSuccessor returns addr's immediate successor.
	GetSuccessor(ctx context.Context, addr string) (NodeRef, error)

	// Notify tells addr that candidate may be its predecessor (§4.3.2).
	Notify(ctx context.Context, addr string, candidate NodeRef) (bool, error)

	// ClosestPrecedingFinger asks addr for its closest preceding finger
	// to keyID (§4.2, used by the iterative find_predecessor walk).
	ClosestPrecedingFinger(ctx context.Context, addr string, keyID uint64) (NodeRef, error)

	// FindSuccessor asks addr to resolve the successor of keyID,
	// recursing through addr's own routing table (§4.2).
	FindSuccessor(ctx context.Context, addr string, keyID uint64) (NodeRef, error)

	// FindPredecessor asks addr to resolve the predecessor of keyID.
	FindPredecessor(ctx context.Context, addr string, keyID uint64) (NodeRef, error)

	// UpdateFingerTable gossips a join update to addr (§4.3.3/§4.3.4).
	UpdateFingerTable(ctx context.Context, addr string, s NodeRef, i int) (bool, error)

	// TransferKeys asks addr (the joiner's new successor) to yield every
	// key it owns that now belongs to newPredID, per lowerBound if given
	// (§4.4). Returns the transferred key/value pairs.
	TransferKeys(ctx context.Context, addr string, newPredID uint64, lowerBound *uint64) (map[string]string, error)

	// ReceiveKeys pushes a departing peer's key/value pairs into addr's
	// local store (§4.3.7, §4.4).
	ReceiveKeys(ctx context.Context, addr string, data map[string]string) error

	// UpdateSuccessor is the depart-path RPC that sets addr's successor
	// pointer directly (§4.3.7).
	UpdateSuccessor(ctx context.Context, addr string, succ NodeRef) error

	// UpdatePredecessor is the depart-path RPC that sets addr's
	// predecessor pointer directly (§4.3.7). pred == nil clears it.
	UpdatePredecessor(ctx context.Context, addr string, pred *NodeRef) error

	// StoreRemote forwards a store request one hop with forwarded=1 (§4.4, §9).
	StoreRemote(ctx context.Context, addr string, key, value string) (StoreResult, error)

	// LookupRemote forwards a lookup request one hop with forwarded=1 (§4.4, §9).
	LookupRemote(ctx context.Context, addr string, key string) (LookupResult, error)
}
