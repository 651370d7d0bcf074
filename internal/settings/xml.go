package settings

import "encoding/xml"

// xmlNode mirrors Node for encoding/xml, which cannot marshal a
// leaf-or-group tagged union directly.
type xmlNode struct {
	XMLName  xml.Name  `xml:"node"`
	Name     string    `xml:"name,attr"`
	Group    bool      `xml:"group,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	Value    string    `xml:"value,attr,omitempty"`
	Default  string    `xml:"default,attr,omitempty"`
	ReadOnly bool      `xml:"readonly,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Children []xmlNode `xml:"node,omitempty"`
}

func toXMLNode(n *Node) xmlNode {
	x := xmlNode{
		Name:     n.Name,
		Group:    n.IsGroup,
		Type:     n.Type,
		Value:    n.Value,
		Default:  n.Default,
		ReadOnly: n.ReadOnly,
		Title:    n.Title,
	}
	for _, c := range n.Children {
		x.Children = append(x.Children, toXMLNode(c))
	}
	return x
}

func fromXMLNode(x xmlNode) *Node {
	n := &Node{
		Name:     x.Name,
		IsGroup:  x.Group,
		Type:     x.Type,
		Value:    x.Value,
		Default:  x.Default,
		ReadOnly: x.ReadOnly,
		Title:    x.Title,
	}
	for _, c := range x.Children {
		n.Children = append(n.Children, fromXMLNode(c))
	}
	return n
}

// ToXML serializes the tree to the opaque XML string the dispatcher
// round-trips.
func (t *Tree) ToXML() (string, error) {
	data, err := xml.Marshal(toXMLNode(t.Root))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromXML parses a tree previously produced by ToXML.
func FromXML(data string) (*Tree, error) {
	var x xmlNode
	if err := xml.Unmarshal([]byte(data), &x); err != nil {
		return nil, err
	}
	return &Tree{Root: fromXMLNode(x)}, nil
}

// NodeToXML serializes a single node, used for one leaf delta sent with
// Info_xml: the XML-serialized subtree applied to a single addressed leaf.
func NodeToXML(n *Node) (string, error) {
	data, err := xml.Marshal(toXMLNode(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NodeFromXML parses a single node produced by NodeToXML.
func NodeFromXML(data string) (*Node, error) {
	var x xmlNode
	if err := xml.Unmarshal([]byte(data), &x); err != nil {
		return nil, err
	}
	return fromXMLNode(x), nil
}

// RestoreFrom overwrites n's own fields (not its identity in its parent)
// from the node encoded in data, leaving n in place within its parent.
func (n *Node) RestoreFrom(data string) error {
	restored, err := NodeFromXML(data)
	if err != nil {
		return err
	}
	n.IsGroup = restored.IsGroup
	n.Type = restored.Type
	n.Value = restored.Value
	n.Default = restored.Default
	n.ReadOnly = restored.ReadOnly
	n.Title = restored.Title
	n.Children = restored.Children
	return nil
}
