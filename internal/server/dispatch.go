package server

import (
	"fmt"

	"github.com/ianremillard/labsync/internal/settings"
	"github.com/ianremillard/labsync/internal/wire"
)

// dispatch handles one command read off a peer's socket. Dispatcher bugs
// (e.g. a path not found in the mirror) are logged and the command is
// dropped; they never kill the peer. Only a read/protocol error on the
// peer's own socket propagates, so the caller can remove that one peer.
func (s *Server) dispatch(cmd string, peer *Peer) error {
	switch cmd {
	case "Done":
		return s.handleDone(peer)
	case "Infos":
		return s.handleInfos(peer)
	case "Info_xml":
		return s.handleInfoXML(peer)
	case "Info":
		return s.handleInfo(peer)
	case "position_is":
		return s.handlePositionIs(peer)
	case "move_done":
		return s.handleMoveDone(peer)
	default:
		if !s.ext.OnUnknownCommand(cmd, peer) {
			// Unrecognized commands beyond the extension hook are
			// silently ignored, not an error.
		}
		return nil
	}
}

// handleDone implements "Done": the peer finished producing data and
// now sends a framed list.
func (s *Server) handleDone(peer *Peer) error {
	items, err := peer.Conn.GetList()
	if err != nil {
		return fmt.Errorf("Done: read list: %w", err)
	}
	s.ext.OnDataDone(peer, items)
	return nil
}

// handleInfos implements "Infos": the peer uploads its complete settings
// tree, replacing the settings_client subtree of that role's mirror.
func (s *Server) handleInfos(peer *Peer) error {
	xmlStr, err := peer.Conn.GetString()
	if err != nil {
		return fmt.Errorf("Infos: read xml: %w", err)
	}
	tree, err := settings.FromXML(xmlStr)
	if err != nil {
		s.log("Infos: parse error: %v", err)
		return nil
	}

	// The client's own root name is replaced so the uploaded tree sits
	// under settings_client in the mirror.
	tree.Root.Name = "settings_client"

	mirror := s.Mirror(peer.Role)
	s.mu.Lock()
	_ = mirror.Root.ReplaceChild([]string{"settings_client"}, tree.Root)
	s.mu.Unlock()
	return nil
}

// handleInfoXML implements "Info_xml": one leaf delta. The leading path
// element is dropped because it repeats the mirror root.
func (s *Server) handleInfoXML(peer *Peer) error {
	pathItems, err := peer.Conn.GetListOf(wire.KindString)
	if err != nil {
		return fmt.Errorf("Info_xml: read path: %w", err)
	}
	path, err := wire.ListToStrings(pathItems)
	if err != nil {
		return fmt.Errorf("Info_xml: %w", err)
	}
	xmlStr, err := peer.Conn.GetString()
	if err != nil {
		return fmt.Errorf("Info_xml: read xml: %w", err)
	}
	if len(path) < 1 {
		s.log("Info_xml: empty path")
		return nil
	}

	mirror := s.Mirror(peer.Role)
	s.mu.Lock()
	defer s.mu.Unlock()

	fullPath := append([]string{"settings_client"}, path[1:]...)
	leaf, err := mirror.Root.Find(fullPath)
	if err != nil {
		s.log("Info_xml: %v", err)
		return nil
	}
	if err := leaf.RestoreFrom(xmlStr); err != nil {
		s.log("Info_xml: restore failed: %v", err)
	}
	return nil
}

// handleInfo implements "Info": a free-form key/value pair for clients
// that are not full framework members.
func (s *Server) handleInfo(peer *Peer) error {
	name, err := peer.Conn.GetString()
	if err != nil {
		return fmt.Errorf("Info: read name: %w", err)
	}
	value, err := peer.Conn.GetString()
	if err != nil {
		return fmt.Errorf("Info: read value: %w", err)
	}

	mirror := s.Mirror(peer.Role)
	s.mu.Lock()
	infos, _ := mirror.Root.Child("infos")
	if leaf, ok := infos.Child(name); ok {
		leaf.Value = value
	} else {
		infos.AddChild(settings.NewLeaf(name, "str", value))
	}
	s.mu.Unlock()

	s.ext.OnReadInfo(name, value)
	return nil
}

func (s *Server) handlePositionIs(peer *Peer) error {
	p, err := peer.Conn.GetScalar()
	if err != nil {
		return fmt.Errorf("position_is: read scalar: %w", err)
	}
	s.ext.OnPositionIs(peer, p)
	return nil
}

func (s *Server) handleMoveDone(peer *Peer) error {
	p, err := peer.Conn.GetScalar()
	if err != nil {
		return fmt.Errorf("move_done: read scalar: %w", err)
	}
	s.ext.OnMoveDone(peer, p)
	return nil
}
