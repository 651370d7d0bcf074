// End-to-end tests driving internal/server and internal/client directly
// against each other over a real loopback TCP socket, at the package
// level (no process spawning, no Docker).
package integration_test

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ianremillard/labsync/internal/client"
	"github.com/ianremillard/labsync/internal/config"
	"github.com/ianremillard/labsync/internal/server"
	"github.com/ianremillard/labsync/internal/settings"
	"github.com/ianremillard/labsync/internal/statuslog"
	"github.com/ianremillard/labsync/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExtension struct {
	server.NopExtension
	mu       sync.Mutex
	dataDone [][]wire.Value
	infos    map[string]string
}

func newRecordingExtension() *recordingExtension {
	return &recordingExtension{infos: map[string]string{}}
}

func (e *recordingExtension) OnDataDone(_ *server.Peer, items []wire.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataDone = append(e.dataDone, items)
}

func (e *recordingExtension) OnReadInfo(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.infos[name] = value
}

func (e *recordingExtension) dataDoneCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dataDone)
}

func (e *recordingExtension) infoValue(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.infos[name]
	return v, ok
}

// startServer binds an ephemeral loopback port and runs a Server against
// it, returning the bound config and a teardown func.
func startServer(t *testing.T, ext server.Extension) (config.Server, *server.Server, func()) {
	t.Helper()

	l, err := wire.Listen("tcp", "127.0.0.1:0", 0)
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.DefaultServer()
	cfg.SocketIP = host
	cfg.PortID = port

	srv := server.New(cfg, server.WithSink(statuslog.Nop{}), server.WithExtension(ext))
	go func() { _ = srv.Run() }()

	require.Eventually(t, func() bool {
		_, ok := srv.PeerTable()["server"]
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	return cfg, srv, func() { _ = srv.Close() }
}

func startClient(t *testing.T, srvCfg config.Server, role string) *client.Engine {
	t.Helper()
	cfg := config.DefaultClient()
	cfg.SocketIP = srvCfg.SocketIP
	cfg.PortID = srvCfg.PortID
	cfg.Role = role

	eng := client.New(cfg, settings.NewTree("Settings"), statuslog.Nop{}, 0)
	go eng.Run()
	eng.Enqueue(client.Command{Name: "ini_connection"})

	require.Eventually(t, func() bool { return eng.State() == client.StateRunning }, 2*time.Second, 5*time.Millisecond)
	return eng
}

// A client connects, announces GRABBER, and its data_ready command
// reaches the server extension's OnDataDone.
func TestHandshakeThenDataUploadReachesServer(t *testing.T) {
	ext := newRecordingExtension()
	srvCfg, _, stop := startServer(t, ext)
	defer stop()

	eng := startClient(t, srvCfg, "GRABBER")
	defer eng.Enqueue(client.Command{Name: "quit"})

	arr := wire.Array{Tag: wire.TagFloat64, Shape: []int32{2, 2}, F64: []float64{1, 2, 3, 4}}
	eng.Enqueue(client.Command{Name: "data_ready", Datas: []wire.Value{wire.ArrayValue(arr)}})

	require.Eventually(t, func() bool { return ext.dataDoneCount() > 0 }, 2*time.Second, 5*time.Millisecond)
}

// A raw "Info" peer updates the server's per-role infos mirror and its
// name/value pair is handed to the extension's OnReadInfo hook, which is
// what this test checks — for clients that aren't full framework
// members and so never drive the client engine's own table.
func TestInfoCommandReachesServerExtension(t *testing.T) {
	ext := newRecordingExtension()
	srvCfg, _, stop := startServer(t, ext)
	defer stop()

	conn, err := wire.Dial("tcp", srvCfg.Addr(), 0)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SendString("ACTUATOR"))
	require.NoError(t, conn.SendString("Info"))
	require.NoError(t, conn.SendString("firmware_version"))
	require.NoError(t, conn.SendString("1.2.3"))

	require.Eventually(t, func() bool {
		v, ok := ext.infoValue("firmware_version")
		return ok && v == "1.2.3"
	}, 2*time.Second, 5*time.Millisecond)
}

// The server looks up a connected peer by role and sends it move_abs
// directly; the client engine surfaces it as an inbound event, exercising
// the host-addressed command path end to end.
func TestServerAddressedMoveAbsReachesClient(t *testing.T) {
	ext := newRecordingExtension()
	srvCfg, srv, stop := startServer(t, ext)
	defer stop()

	eng := startClient(t, srvCfg, "ACTUATOR")
	defer eng.Enqueue(client.Command{Name: "quit"})

	require.Eventually(t, func() bool {
		_, ok := srv.Peer("ACTUATOR")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	peer, ok := srv.Peer("ACTUATOR")
	require.True(t, ok)
	require.NoError(t, peer.Conn.SendString("move_abs"))
	require.NoError(t, peer.Conn.SendScalar(wire.Float64Scalar(7.5)))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-eng.Events():
			if ev.Kind == client.EventInbound && ev.Command == "move_abs" {
				assert.Equal(t, 7.5, ev.Position.F64)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for move_abs to reach the client")
		}
	}
}

// A malformed frame from one peer doesn't take the server down; a fresh,
// well-formed client can still connect afterward.
func TestMalformedPeerDoesNotDisruptOtherClients(t *testing.T) {
	ext := newRecordingExtension()
	srvCfg, _, stop := startServer(t, ext)
	defer stop()

	bad, err := net.Dial("tcp", srvCfg.Addr())
	require.NoError(t, err)
	// Oversized role-string length prefix; the role read must fail and
	// the peer must never be registered, but the server keeps serving.
	_, err = bad.Write([]byte{0x40, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, bad.Close())

	eng := startClient(t, srvCfg, "GRABBER")
	defer eng.Enqueue(client.Command{Name: "quit"})
	assert.Equal(t, client.StateRunning, eng.State())
}
