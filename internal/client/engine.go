// Package client implements the client-side state machine: it connects
// to the server, announces its role, uploads its settings tree, then
// loops dispatching inbound commands while honoring outbound commands
// enqueued by its host module.
//
// The concurrency model matches internal/server: one goroutine performs
// blocking reads off the socket; a second goroutine drains the outbound
// command queue and performs the corresponding writes, so a slow host
// never stalls inbound reads and vice versa.
package client

import (
	"fmt"
	"sync"

	"github.com/ianremillard/labsync/internal/config"
	"github.com/ianremillard/labsync/internal/settings"
	"github.com/ianremillard/labsync/internal/statuslog"
	"github.com/ianremillard/labsync/internal/wire"
)

// State is one of the five states in the client state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateRunning
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateRunning:
		return "Running"
	case StateClosing:
		return "Closing"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Command is one outbound instruction the host enqueues for the engine
// to translate into a wire exchange.
type Command struct {
	Name string

	// data_ready
	Datas []wire.Value

	// send_info
	Path  []string
	Param *settings.Node

	// position_is / move_done
	Position wire.Scalar

	// x_axis / y_axis
	Axis AxisData

	// update_connection
	IP   string
	Port int
}

// AxisData carries the array plus label/units sent by x_axis/y_axis.
type AxisData struct {
	Data  wire.Array
	Label string
	Units string
}

// EventKind tags an Engine-originated notification to the host, delivered
// on a channel rather than a Qt signal/slot.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventStatus       EventKind = "status"
	EventGetAxis      EventKind = "get_axis"
	EventInbound      EventKind = "inbound" // a command received from the server
)

// Event is delivered on the Engine's Events() channel.
type Event struct {
	Kind  EventKind
	Text  string        // EventStatus
	Level statuslog.Level
	// EventInbound fields, populated per the received command name.
	Command  string // "set_info", "move_abs", "move_rel"
	Path     []string
	ParamXML string
	Position wire.Scalar
}

// Engine is the client-side counterpart to internal/server.Server.
type Engine struct {
	cfg      config.Client
	settings *settings.Tree
	sink     statuslog.Sink

	cmdCh   chan Command
	eventCh chan Event

	mu    sync.Mutex
	state State
	conn  *wire.Conn
	done  chan struct{}
}

// New constructs an Engine. cmdBuffer sizes the outbound command queue;
// 0 selects a sensible default.
func New(cfg config.Client, tree *settings.Tree, sink statuslog.Sink, cmdBuffer int) *Engine {
	if cmdBuffer <= 0 {
		cmdBuffer = 16
	}
	if sink == nil {
		sink = statuslog.Nop{}
	}
	return &Engine{
		cfg:      cfg,
		settings: tree,
		sink:     sink,
		cmdCh:    make(chan Command, cmdBuffer),
		eventCh:  make(chan Event, cmdBuffer),
		state:    StateDisconnected,
	}
}

// Events returns the channel of engine-originated notifications.
func (e *Engine) Events() <-chan Event { return e.eventCh }

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	select {
	case e.eventCh <- ev:
	default:
		// Host is not draining events fast enough; drop rather than
		// block the engine's own state machine.
	}
}

func (e *Engine) status(text string, level statuslog.Level) {
	e.sink.Log(text, level)
	e.emit(Event{Kind: EventStatus, Text: text, Level: level})
}

// Enqueue queues one outbound command for the engine's run loop to
// process. It must not be called after a "quit" command has been enqueued.
func (e *Engine) Enqueue(cmd Command) {
	e.cmdCh <- cmd
}

// Run starts the engine's command-processing goroutine and blocks until
// it terminates (on "quit", peer close, or unrecoverable I/O error). Call
// it in its own goroutine; drive the engine by calling Enqueue from
// elsewhere.
func (e *Engine) Run() {
	for {
		e.mu.Lock()
		done := e.done
		e.mu.Unlock()
		select {
		case cmd := <-e.cmdCh:
			if e.handleCommand(cmd) {
				return // terminal command processed (quit / send failure)
			}
		case <-done:
			return // connection closed (peer close or read error)
		}
	}
}

// handleCommand processes one outbound Command, returning true if the
// engine has reached Terminated and its goroutine should exit.
func (e *Engine) handleCommand(cmd Command) (terminal bool) {
	switch cmd.Name {
	case "ini_connection":
		e.connect()
		return false
	case "update_connection":
		e.mu.Lock()
		e.cfg.SocketIP = cmd.IP
		e.cfg.PortID = cmd.Port
		e.mu.Unlock()
		return false
	case "quit":
		e.closeConn()
		e.setState(StateTerminated)
		e.emit(Event{Kind: EventDisconnected})
		return true
	default:
		if e.State() != StateRunning {
			return false
		}
		if err := e.sendOutbound(cmd); err != nil {
			e.status(fmt.Sprintf("send %s: %v", cmd.Name, err), statuslog.LevelError)
			e.setState(StateClosing)
			e.closeConn()
			e.setState(StateTerminated)
			e.emit(Event{Kind: EventDisconnected})
			return true
		}
		return false
	}
}

// sendOutbound translates one outbound Command into its wire exchange.
func (e *Engine) sendOutbound(cmd Command) error {
	conn := e.conn
	switch cmd.Name {
	case "data_ready":
		if err := conn.SendString("Done"); err != nil {
			return err
		}
		return conn.SendList(cmd.Datas)

	case "send_info":
		if err := conn.SendString("Info_xml"); err != nil {
			return err
		}
		if err := conn.SendList(wire.StringsToList(cmd.Path)); err != nil {
			return err
		}
		xmlStr, err := settings.NodeToXML(cmd.Param)
		if err != nil {
			return err
		}
		return conn.SendString(xmlStr)

	case "position_is":
		if err := conn.SendString("position_is"); err != nil {
			return err
		}
		return conn.SendScalar(cmd.Position)

	case "move_done":
		if err := conn.SendString("move_done"); err != nil {
			return err
		}
		return conn.SendScalar(cmd.Position)

	case "x_axis", "y_axis":
		if err := conn.SendString(cmd.Name); err != nil {
			return err
		}
		if err := conn.SendArray(cmd.Axis.Data); err != nil {
			return err
		}
		if err := conn.SendString(cmd.Axis.Label); err != nil {
			return err
		}
		return conn.SendString(cmd.Axis.Units)

	default:
		return fmt.Errorf("unknown outbound command %q", cmd.Name)
	}
}

// connect implements the connect sequence: open TCP, send role, send
// Infos + settings XML, emit get_axis, then start the inbound read loop.
// Returns true on success (state now Running).
func (e *Engine) connect() bool {
	e.setState(StateConnecting)

	conn, err := wire.Dial("tcp", e.cfg.Addr(), e.cfg.MaxFrameBytes)
	if err != nil {
		e.setState(StateDisconnected)
		e.status(fmt.Sprintf("connect %s: %v", e.cfg.Addr(), err), statuslog.LevelLog)
		e.emit(Event{Kind: EventDisconnected})
		return false
	}

	if err := conn.SendString(e.cfg.Role); err != nil {
		e.setState(StateDisconnected)
		e.status(fmt.Sprintf("send role: %v", err), statuslog.LevelLog)
		_ = conn.Close()
		e.emit(Event{Kind: EventDisconnected})
		return false
	}

	xmlStr, err := e.settings.ToXML()
	if err != nil {
		e.setState(StateDisconnected)
		_ = conn.Close()
		e.emit(Event{Kind: EventDisconnected})
		return false
	}
	if err := conn.SendString("Infos"); err != nil {
		e.setState(StateDisconnected)
		_ = conn.Close()
		e.emit(Event{Kind: EventDisconnected})
		return false
	}
	if err := conn.SendString(xmlStr); err != nil {
		e.setState(StateDisconnected)
		_ = conn.Close()
		e.emit(Event{Kind: EventDisconnected})
		return false
	}

	e.mu.Lock()
	e.conn = conn
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.setState(StateRunning)
	e.emit(Event{Kind: EventConnected})
	e.emit(Event{Kind: EventGetAxis})

	go e.readLoop(conn)
	return true
}

// readLoop is the engine's blocking-read goroutine. It reads one command
// at a time off the socket and dispatches it.
func (e *Engine) readLoop(conn *wire.Conn) {
	for {
		cmdName, err := conn.GetString()
		if err != nil {
			e.setState(StateClosing)
			e.status(fmt.Sprintf("read: %v", err), statuslog.LevelLog)
			e.closeConn()
			e.setState(StateTerminated)
			e.emit(Event{Kind: EventDisconnected})
			return
		}
		e.dispatchInbound(cmdName, conn)
	}
}

// dispatchInbound handles one command read off the server socket:
// "set_info", "move_abs", "move_rel" are forwarded to the host as typed
// events; anything else is ignored.
func (e *Engine) dispatchInbound(cmdName string, conn *wire.Conn) {
	switch cmdName {
	case "set_info":
		pathItems, err := conn.GetListOf(wire.KindString)
		if err != nil {
			return
		}
		path, err := wire.ListToStrings(pathItems)
		if err != nil {
			return
		}
		xmlStr, err := conn.GetString()
		if err != nil {
			return
		}
		e.emit(Event{Kind: EventInbound, Command: cmdName, Path: path, ParamXML: xmlStr})

	case "move_abs", "move_rel":
		pos, err := conn.GetScalar()
		if err != nil {
			return
		}
		e.emit(Event{Kind: EventInbound, Command: cmdName, Position: pos})

	default:
		// Unknown inbound commands are silently ignored.
	}
}

func (e *Engine) closeConn() {
	e.mu.Lock()
	conn := e.conn
	done := e.done
	e.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
}
