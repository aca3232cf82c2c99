package chord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// fakeTransport routes RPCs directly between in-process Nodes, keyed by
// address, so ring behaviour can be exercised without real HTTP.
type fakeTransport struct {
	registry map[string]*Node
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{registry: make(map[string]*Node)}
}

func (f *fakeTransport) register(n *Node) {
	f.registry[n.Addr()] = n
}

func (f *fakeTransport) peer(addr string) (*Node, error) {
	n, ok := f.registry[addr]
	if !ok {
		return nil, fmt.Errorf("fake transport: no peer at %s", addr)
	}
	return n, nil
}

func (f *fakeTransport) CheckAlive(ctx context.Context, addr string) (bool, error) {
	_, err := f.peer(addr)
	return err == nil, nil
}

func (f *fakeTransport) GetPredecessor(ctx context.Context, addr string) (*NodeRef, error) {
	n, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	return n.Predecessor(), nil
}

func (f *fakeTransport) GetSuccessor(ctx context.Context, addr string) (NodeRef, error) {
	n, err := f.peer(addr)
	if err != nil {
		return NodeRef{}, err
	}
	return n.Successor(), nil
}

func (f *fakeTransport) Notify(ctx context.Context, addr string, candidate NodeRef) (bool, error) {
	n, err := f.peer(addr)
	if err != nil {
		return false, err
	}
	return n.Notify(candidate), nil
}

func (f *fakeTransport) ClosestPrecedingFinger(ctx context.Context, addr string, keyID uint64) (NodeRef, error) {
	n, err := f.peer(addr)
	if err != nil {
		return NodeRef{}, err
	}
	return n.ClosestPrecedingFinger(keyID), nil
}

func (f *fakeTransport) FindSuccessor(ctx context.Context, addr string, keyID uint64) (NodeRef, error) {
	n, err := f.peer(addr)
	if err != nil {
		return NodeRef{}, err
	}
	return n.FindSuccessor(ctx, keyID)
}

func (f *fakeTransport) FindPredecessor(ctx context.Context, addr string, keyID uint64) (NodeRef, error) {
	n, err := f.peer(addr)
	if err != nil {
		return NodeRef{}, err
	}
	return n.FindPredecessor(ctx, keyID)
}

func (f *fakeTransport) UpdateFingerTable(ctx context.Context, addr string, s NodeRef, i int) (bool, error) {
	n, err := f.peer(addr)
	if err != nil {
		return false, err
	}
	return n.UpdateFingerTable(ctx, s, i), nil
}

func (f *fakeTransport) TransferKeys(ctx context.Context, addr string, newPredID uint64, lowerBound *uint64) (map[string]string, error) {
	n, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	return n.TransferKeysToPredecessor(newPredID, lowerBound), nil
}

func (f *fakeTransport) ReceiveKeys(ctx context.Context, addr string, data map[string]string) error {
	n, err := f.peer(addr)
	if err != nil {
		return err
	}
	n.ReceiveKeys(data)
	return nil
}

func (f *fakeTransport) UpdateSuccessor(ctx context.Context, addr string, succ NodeRef) error {
	n, err := f.peer(addr)
	if err != nil {
		return err
	}
	n.SetSuccessor(succ)
	return nil
}

func (f *fakeTransport) UpdatePredecessor(ctx context.Context, addr string, pred *NodeRef) error {
	n, err := f.peer(addr)
	if err != nil {
		return err
	}
	n.SetPredecessor(pred)
	return nil
}

func (f *fakeTransport) StoreRemote(ctx context.Context, addr string, key, value string) (StoreResult, error) {
	n, err := f.peer(addr)
	if err != nil {
		return StoreResult{}, err
	}
	return n.Store(ctx, key, value, true)
}

func (f *fakeTransport) LookupRemote(ctx context.Context, addr string, key string) (LookupResult, error) {
	n, err := f.peer(addr)
	if err != nil {
		return LookupResult{}, err
	}
	return n.Lookup(ctx, key, true)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
