package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"héllo wörld — 日本語",
		strings.Repeat("x", 1<<20), // 1 MiB
	}
	for _, s := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteString(&buf, s))
		got, err := ReadString(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	cases := []Scalar{
		Float64Scalar(3.1415926535),
		Float64Scalar(-0.0),
		Float32Scalar(2.5),
		Int32Scalar(-12345),
		Int64Scalar(1 << 40),
		BoolScalar(true),
		BoolScalar(false),
	}
	for _, s := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteScalar(&buf, s))
		got, err := ReadScalar(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestArrayRoundTrip1D2D3D(t *testing.T) {
	arrays := []Array{
		{Tag: TagFloat64, Shape: []int32{6}, F64: []float64{1, 2, 3, 4, 5, 6}},
		{Tag: TagFloat64, Shape: []int32{3, 2}, F64: []float64{1, 2, 3, 4, 5, 6}},
		{Tag: TagInt32, Shape: []int32{2, 2, 2}, I32: []int32{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, a := range arrays {
		var buf bytes.Buffer
		require.NoError(t, WriteArray(&buf, a))
		got, err := ReadArray(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
}

func TestListRoundTripMixedKinds(t *testing.T) {
	items := []Value{
		StringValue("path"),
		ScalarValue(Int32Scalar(7)),
		ArrayValue(Array{Tag: TagFloat64, Shape: []int32{2}, F64: []float64{1.5, 2.5}}),
		ListValue([]Value{StringValue("nested"), ScalarValue(BoolScalar(true))}),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteList(&buf, items))
	got, err := ReadList(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestGetListOfRejectsMismatchedKind(t *testing.T) {
	items := []Value{StringValue("a"), ScalarValue(Int32Scalar(1))}
	var buf bytes.Buffer
	require.NoError(t, WriteList(&buf, items))

	_, err := ReadListOf(&buf, KindString, 0)
	require.Error(t, err)
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}

func TestTruncatedFrameRaisesEOF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "hello"))
	full := buf.Bytes()
	// Drop the final byte of the body: length prefix correct, body short.
	short := full[:len(full)-1]

	_, err := ReadString(bytes.NewReader(short), 0)
	assert.ErrorIs(t, err, ErrEOF)
}

func TestOversizeLengthRejectedWithoutReadingBody(t *testing.T) {
	var hdr [4]byte
	hdr[0] = 0x40 // 2^30 in the top byte, big-endian
	r := bytes.NewReader(append(hdr[:], []byte("body")...))

	_, err := ReadString(r, DefaultMaxFrameBytes)
	require.Error(t, err)
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
	// No body was consumed past the 4-byte length prefix.
	assert.Equal(t, len("body"), r.Len())
}

func TestNegativeLengthRejected(t *testing.T) {
	var hdr [4]byte
	hdr[0] = 0xFF // sign bit set → negative int32
	_, err := ReadString(bytes.NewReader(hdr[:]), 0)
	require.Error(t, err)
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}

func TestStringsToListRoundTrip(t *testing.T) {
	path := []string{"root", "group_a", "leaf_x"}
	items := StringsToList(path)
	var buf bytes.Buffer
	require.NoError(t, WriteList(&buf, items))
	got, err := ReadListOf(&buf, KindString, 0)
	require.NoError(t, err)
	back, err := ListToStrings(got)
	require.NoError(t, err)
	assert.Equal(t, path, back)
}
