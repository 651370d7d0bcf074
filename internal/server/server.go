// Package server implements the multi-client listener and command
// dispatcher: it accepts connections, classifies peers by declared role,
// maintains the peer registry, reads one command per ready peer,
// dispatches it, and publishes a peer table.
//
// One accept goroutine plus one blocking-read goroutine per peer handle
// I/O, with the registry guarded by a mutex rather than owned by a
// single cooperative loop, so a slow or idle peer never blocks any
// other peer's reads.
package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/ianremillard/labsync/internal/config"
	"github.com/ianremillard/labsync/internal/settings"
	"github.com/ianremillard/labsync/internal/statuslog"
	"github.com/ianremillard/labsync/internal/telemetry"
	"github.com/ianremillard/labsync/internal/wire"
)

// Server is the TCP listener, peer registry, and command dispatcher.
// Construct with New, then call Run.
type Server struct {
	cfg     config.Server
	sink    statuslog.Sink
	metrics *telemetry.Metrics
	ext     Extension

	listener     *wire.Listener
	listenerAddr string
	reg          *registry

	mu      sync.Mutex
	mirrors map[string]*settings.Tree // per-role settings mirror

	tableMu sync.Mutex
	onTable func(map[string]string)

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithSink installs the status/log sink.
func WithSink(sink statuslog.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithMetrics installs the telemetry counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithExtension installs the unknown-command / data / info extension hook.
func WithExtension(ext Extension) Option {
	return func(s *Server) { s.ext = ext }
}

// WithTableCallback installs a callback invoked every time the published
// peer table changes.
func WithTableCallback(fn func(map[string]string)) Option {
	return func(s *Server) { s.onTable = fn }
}

// New constructs a Server; it does not open the listening socket until Run.
func New(cfg config.Server, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		sink:    statuslog.Nop{},
		ext:     NopExtension{},
		reg:     newRegistry(),
		mirrors: make(map[string]*settings.Tree),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) log(format string, args ...any) {
	s.sink.Log(fmt.Sprintf(format, args...), statuslog.LevelLog)
}

// Run opens the listening socket and serves until Close is called or an
// unrecoverable bind error occurs. A bind failure is fatal and is
// returned to the caller rather than retried.
func (s *Server) Run() error {
	s.log("Started new server for %s", s.cfg.Addr())
	l, err := wire.Listen("tcp", s.cfg.Addr(), s.cfg.MaxFrameBytes)
	if err != nil {
		return &wire.ConfigurationError{Reason: fmt.Sprintf("bind failed on %s: %v", s.cfg.Addr(), err)}
	}
	s.listener = l
	s.listenerAddr = l.Addr().String()
	s.publishTable()

	go s.tickLoop()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		go s.handleNewConn(conn)
	}
}

// tickLoop republishes the peer table on the configured period. With
// per-peer goroutines already reading peers concurrently, this tick
// carries no polling responsibility of its own: it only guarantees the
// table is periodically refreshed even if a caller never re-renders on
// each individual registry change.
func (s *Server) tickLoop() {
	period := s.cfg.TickPeriod
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.publishTable()
		}
	}
}

// handleNewConn performs the accept-time role handshake, then loops
// reading commands until the peer disconnects or errors.
func (s *Server) handleNewConn(conn *wire.Conn) {
	role, err := conn.GetString()
	if err != nil {
		_ = conn.Close()
		return
	}

	if !s.roleAccepted(role) {
		s.log("%s is not a valid type", role)
		if s.metrics != nil {
			s.metrics.IncClientsRejected()
		}
		_ = conn.Close()
		return
	}

	peer := &Peer{Conn: conn, Role: role, Addr: conn.RemoteAddr().String()}
	s.reg.add(peer)
	s.publishTable()
	s.log("%s connected with %s", role, peer.Addr)

	s.readLoop(peer)
}

func (s *Server) roleAccepted(role string) bool {
	for _, r := range s.cfg.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// readLoop is the per-peer read half of the connection: read one command
// string, dispatch it, and remove the peer on any read error or on "Quit".
func (s *Server) readLoop(peer *Peer) {
	for {
		cmd, err := peer.Conn.GetString()
		if err != nil {
			s.removeClient(peer)
			return
		}
		if s.metrics != nil {
			s.metrics.IncFramesRead()
		}
		if cmd == "Quit" {
			s.removeClient(peer)
			return
		}
		if err := s.dispatch(cmd, peer); err != nil {
			s.log("%v", err)
			if s.metrics != nil {
				s.metrics.IncFramesDropped()
			}
			s.removeClient(peer)
			return
		}
	}
}

func (s *Server) removeClient(peer *Peer) {
	if _, ok := s.reg.remove(peer.Conn); ok {
		_ = peer.Conn.Close()
		s.log("Client %s disconnected", peer.Role)
		s.publishTable()
	}
}

// peerTableLocked builds the full published table, including the
// listening socket's own "server" entry.
func (s *Server) peerTableLocked() map[string]string {
	table := s.reg.table()
	if s.listenerAddr != "" {
		table["server"] = s.listenerAddr
	}
	return table
}

func (s *Server) publishTable() {
	table := s.peerTableLocked()
	if s.metrics != nil {
		s.metrics.SetPeersConnected(s.reg.size())
	}
	s.tableMu.Lock()
	cb := s.onTable
	s.tableMu.Unlock()
	if cb != nil {
		cb(table)
	}
}

// PeerTable returns the current role → address snapshot.
func (s *Server) PeerTable() map[string]string { return s.peerTableLocked() }

// Peer returns the connected peer with the given role, if any, so a host
// can address outbound commands (move_abs, move_rel, set_info) to a
// specific client by role.
func (s *Server) Peer(role string) (*Peer, bool) { return s.reg.findByRole(role) }

// Mirror returns the settings mirror for role, creating an empty one on
// first access.
func (s *Server) Mirror(role string) *settings.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.mirrors[role]
	if !ok {
		t = NewMirror(role)
		s.mirrors[role] = t
	}
	return t
}

// NewMirror builds the per-role mirror shape: a root group with
// "settings_client" and "infos" subgroups.
func NewMirror(role string) *settings.Tree {
	t := settings.NewTree(role)
	t.Root.AddChild(settings.NewGroup("settings_client", "Settings Client"))
	t.Root.AddChild(settings.NewGroup("infos", "Infos"))
	return t
}

// Close shuts the server down: every registered socket is closed
// best-effort, the registry is cleared, and an empty peer table is
// republished.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.reg.closeAll()
		s.listenerAddr = ""
		s.publishTable()
	})
	return nil
}
