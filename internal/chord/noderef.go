package chord

import "strconv"

// NodeRef is the immutable {id, ip, port} triple identifying a peer.
// Equality is by ID. This is the typed replacement for the dynamic
// {"node_id", "ip", "port"} dicts the Python original passes around and
// for the untyped (id, address string) pairs the Go teacher uses
// internally; NodeRef is what actually crosses the wire (§6).
type NodeRef struct {
	ID   uint64 `json:"node_id"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Addr formats the node's dial address as "ip:port".
func (n NodeRef) Addr() string {
	return n.IP + ":" + strconv.Itoa(n.Port)
}

// Equal compares nodes by id, per §3 ("Equality is by id").
func (n NodeRef) Equal(o NodeRef) bool {
	return n.ID == o.ID
}

// IsZero reports whether n is the unset NodeRef (used where a pointer
// isn't handy but "no node" must be distinguishable from a valid one).
func (n NodeRef) IsZero() bool {
	return n == NodeRef{}
}
