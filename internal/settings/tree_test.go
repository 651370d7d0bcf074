package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleTree() *Tree {
	tr := NewTree("Settings")
	groupA := NewGroup("group_a", "Group A")
	groupA.AddChild(NewLeaf("leaf_x", "int", "10"))
	tr.Root.AddChild(groupA)
	tr.Root.AddChild(NewLeaf("top_leaf", "str", "hi"))
	return tr
}

func TestTreeXMLRoundTrip(t *testing.T) {
	tr := buildSampleTree()
	xmlStr, err := tr.ToXML()
	require.NoError(t, err)

	back, err := FromXML(xmlStr)
	require.NoError(t, err)
	assert.True(t, tr.Root.Equal(back.Root))
}

func TestFindAndReplaceChild(t *testing.T) {
	tr := buildSampleTree()

	leaf, err := tr.Root.Find([]string{"group_a", "leaf_x"})
	require.NoError(t, err)
	assert.Equal(t, "10", leaf.Value)

	replacement := NewLeaf("leaf_x", "int", "42")
	require.NoError(t, tr.Root.ReplaceChild([]string{"group_a", "leaf_x"}, replacement))

	leaf, err = tr.Root.Find([]string{"group_a", "leaf_x"})
	require.NoError(t, err)
	assert.Equal(t, "42", leaf.Value)
}

func TestFindMissingPath(t *testing.T) {
	tr := buildSampleTree()
	_, err := tr.Root.Find([]string{"nope"})
	assert.Error(t, err)
}

func TestRestoreFromUpdatesLeafValue(t *testing.T) {
	tr := buildSampleTree()
	leaf, err := tr.Root.Find([]string{"group_a", "leaf_x"})
	require.NoError(t, err)

	updated := NewLeaf("leaf_x", "int", "42")
	xmlStr, err := NodeToXML(updated)
	require.NoError(t, err)

	require.NoError(t, leaf.RestoreFrom(xmlStr))
	assert.Equal(t, "42", leaf.Value)
}

func TestCloneIsIndependent(t *testing.T) {
	tr := buildSampleTree()
	clone := tr.Root.Clone()
	clone.Children[0].Children[0].Value = "999"

	leaf, err := tr.Root.Find([]string{"group_a", "leaf_x"})
	require.NoError(t, err)
	assert.Equal(t, "10", leaf.Value, "mutating the clone must not affect the original")
}
