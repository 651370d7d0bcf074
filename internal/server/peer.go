package server

import (
	"sort"
	"sync"

	"github.com/ianremillard/labsync/internal/wire"
)

// Peer is one registry entry: a connected socket and its declared role.
// The listening socket is not a registry entry; the published peer table
// adds its address under the "server" key.
type Peer struct {
	Conn *wire.Conn
	Role string
	Addr string
}

// registry is the server's authoritative mapping from live sockets to
// roles. Mutated only while mu is held, so at most one entry exists per
// socket handle even though each peer is read on its own goroutine.
type registry struct {
	mu    sync.Mutex
	peers map[*wire.Conn]*Peer
}

func newRegistry() *registry {
	return &registry{peers: make(map[*wire.Conn]*Peer)}
}

func (r *registry) add(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.Conn] = p
}

func (r *registry) remove(c *wire.Conn) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[c]
	if ok {
		delete(r.peers, c)
	}
	return p, ok
}

// findByRole returns a peer with the given role. The common case has
// exactly one peer per role; if more than one is connected, any one of
// them may be returned.
func (r *registry) findByRole(role string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.peers {
		if p.Role == role {
			return p, true
		}
	}
	return nil, false
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

func (r *registry) snapshot() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// table recomputes the published role → address mapping. Later entries
// win when two peers share a role.
func (r *registry) table() map[string]string {
	peers := r.snapshot()
	sort.Slice(peers, func(i, j int) bool { return peers[i].Addr < peers[j].Addr })
	t := make(map[string]string, len(peers))
	for _, p := range peers {
		t[p.Role] = p.Addr
	}
	return t
}

func (r *registry) closeAll() {
	r.mu.Lock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peers = make(map[*wire.Conn]*Peer)
	r.mu.Unlock()

	for _, p := range peers {
		_ = p.Conn.Close()
	}
}
