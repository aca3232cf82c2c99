package transport

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chordring/internal/chord"
)

// TestHTTPTransportForwardsStoreAndLookup drives HTTPTransport against a
// real Server over httptest, exercising the exact wire shapes of §6
// rather than the in-process fakeTransport the chord package tests use.
// It pins down the one-hop forward contract: StoreRemote/LookupRemote
// must recover the owning node id and path from the /store and /lookup
// response bodies, and LookupRemote must derive "found" from HTTP status
// since the wire body carries no such field (§7 "key not found" -> 404).
func TestHTTPTransportForwardsStoreAndLookup(t *testing.T) {
	self := chord.NodeRef{ID: 42, IP: "127.0.0.1", Port: 5003}
	node := chord.New(self, 8, noopTransport{}, nil)
	srv := NewServer(node, nil)
	ts := httptest.NewServer(srv.Echo())
	defer ts.Close()

	addr := ts.Listener.Addr().String()
	client := New(2*time.Second, 2*time.Second, 0, nil)
	ctx := context.Background()

	storeResult, err := client.StoreRemote(ctx, addr, "greeting", "hello")
	require.NoError(t, err)
	require.Equal(t, self.ID, storeResult.OwnerID)
	require.True(t, storeResult.Forwarded)
	require.Equal(t, []uint64{self.ID}, storeResult.Path)

	found, err := client.LookupRemote(ctx, addr, "greeting")
	require.NoError(t, err)
	require.True(t, found.Found)
	require.Equal(t, "hello", found.Value)
	require.Equal(t, self.ID, found.OwnerID)
	require.Equal(t, []uint64{self.ID}, found.Path)

	missing, err := client.LookupRemote(ctx, addr, "nope")
	require.NoError(t, err)
	require.False(t, missing.Found)
	require.Equal(t, self.ID, missing.OwnerID)
}
