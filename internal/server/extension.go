package server

import "github.com/ianremillard/labsync/internal/wire"

// Extension is the narrow surface a host implementation supplies to
// extend the dispatcher beyond the well-known command vocabulary, in
// place of subclassing the dispatcher itself.
type Extension interface {
	// OnUnknownCommand handles a command name outside the built-in
	// vocabulary. Returning handled=false is not an error; unrecognized
	// commands are silently ignored either way.
	OnUnknownCommand(name string, source *Peer) (handled bool)

	// OnDataDone is called once a "Done" command's framed list has been
	// read in full, handing the data upward.
	OnDataDone(source *Peer, items []wire.Value)

	// OnReadInfo is called when an "Info" free-form key/value pair is
	// received.
	OnReadInfo(name, value string)

	// OnPositionIs and OnMoveDone forward the "position_is"/"move_done"
	// scalar commands upward as typed events.
	OnPositionIs(source *Peer, position wire.Scalar)
	OnMoveDone(source *Peer, position wire.Scalar)
}

// NopExtension implements Extension with no-ops, for hosts that only
// need the well-known command vocabulary.
type NopExtension struct{}

func (NopExtension) OnUnknownCommand(string, *Peer) bool { return false }
func (NopExtension) OnDataDone(*Peer, []wire.Value)      {}
func (NopExtension) OnReadInfo(string, string)           {}
func (NopExtension) OnPositionIs(*Peer, wire.Scalar)     {}
func (NopExtension) OnMoveDone(*Peer, wire.Scalar)       {}
