package wire

import (
	"encoding/binary"
	"io"
	"math"
)

// DefaultMaxFrameBytes is the default ceiling on any single length-prefixed
// payload.
const DefaultMaxFrameBytes = 64 << 20 // 64 MiB

// Kind tags a framed list item as one of "string"/"scalar"/"array"/"list".
type Kind string

const (
	KindString Kind = "string"
	KindScalar Kind = "scalar"
	KindArray  Kind = "array"
	KindList   Kind = "list"
)

// Scalar tag strings, fixing each type's on-wire byte width.
const (
	TagFloat64 = "f8"
	TagFloat32 = "f4"
	TagInt32   = "i4"
	TagInt64   = "i8"
	TagBool    = "b1"
)

// Scalar is a single typed value, tagged so get_scalar can drive a fixed
// decode table.
type Scalar struct {
	Tag  string
	F64  float64
	F32  float32
	I32  int32
	I64  int64
	Bool bool
}

func Float64Scalar(v float64) Scalar { return Scalar{Tag: TagFloat64, F64: v} }
func Float32Scalar(v float32) Scalar { return Scalar{Tag: TagFloat32, F32: v} }
func Int32Scalar(v int32) Scalar     { return Scalar{Tag: TagInt32, I32: v} }
func Int64Scalar(v int64) Scalar     { return Scalar{Tag: TagInt64, I64: v} }
func BoolScalar(v bool) Scalar       { return Scalar{Tag: TagBool, Bool: v} }

// Array is an ndim typed array in C (row-major) order.
type Array struct {
	Tag   string
	Shape []int32
	F64   []float64
	F32   []float32
	I32   []int32
	I64   []int64
	Bool  []bool
}

// NElem returns the element count implied by Shape.
func (a Array) NElem() int {
	n := 1
	for _, s := range a.Shape {
		n *= int(s)
	}
	return n
}

// Value is one framed item within a list: exactly one of its fields is
// meaningful, selected by Kind. A single list may mix kinds freely.
type Value struct {
	Kind   Kind
	Str    string
	Scalar Scalar
	Array  Array
	List   []Value
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func ScalarValue(s Scalar) Value { return Value{Kind: KindScalar, Scalar: s} }
func ArrayValue(a Array) Value   { return Value{Kind: KindArray, Array: a} }
func ListValue(l []Value) Value  { return Value{Kind: KindList, List: l} }

// readFull reads exactly len(buf) bytes, looping over short reads, and
// translates any premature close into ErrEOF.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrEOF
		}
		return err
	}
	return nil
}

func writeLen(w io.Writer, n int) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(n))
	_, err := w.Write(hdr[:])
	return err
}

func readLen(r io.Reader, maxFrame int) (int, error) {
	var hdr [4]byte
	if err := readFull(r, hdr[:]); err != nil {
		return 0, err
	}
	n := int32(binary.BigEndian.Uint32(hdr[:]))
	if n < 0 {
		return 0, newProtocolError("negative frame length %d", n)
	}
	if maxFrame > 0 && int(n) > maxFrame {
		return 0, newProtocolError("frame length %d exceeds maximum %d", n, maxFrame)
	}
	return int(n), nil
}

// WriteString writes a string as [len:int32][utf8 bytes].
func WriteString(w io.Writer, s string) error {
	if err := writeLen(w, len(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a string frame, rejecting a length prefix beyond
// maxFrame before reading the body.
func ReadString(r io.Reader, maxFrame int) (string, error) {
	n, err := readLen(r, maxFrame)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := readFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func scalarWidth(tag string) (int, bool) {
	switch tag {
	case TagFloat64, TagInt64:
		return 8, true
	case TagFloat32, TagInt32:
		return 4, true
	case TagBool:
		return 1, true
	default:
		return 0, false
	}
}

func encodeScalarBody(s Scalar) ([]byte, error) {
	switch s.Tag {
	case TagFloat64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(s.F64))
		return buf, nil
	case TagFloat32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(s.F32))
		return buf, nil
	case TagInt32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(s.I32))
		return buf, nil
	case TagInt64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(s.I64))
		return buf, nil
	case TagBool:
		if s.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, newProtocolError("unknown scalar type tag %q", s.Tag)
	}
}

func decodeScalarBody(tag string, body []byte) (Scalar, error) {
	switch tag {
	case TagFloat64:
		return Scalar{Tag: tag, F64: math.Float64frombits(binary.BigEndian.Uint64(body))}, nil
	case TagFloat32:
		return Scalar{Tag: tag, F32: math.Float32frombits(binary.BigEndian.Uint32(body))}, nil
	case TagInt32:
		return Scalar{Tag: tag, I32: int32(binary.BigEndian.Uint32(body))}, nil
	case TagInt64:
		return Scalar{Tag: tag, I64: int64(binary.BigEndian.Uint64(body))}, nil
	case TagBool:
		return Scalar{Tag: tag, Bool: body[0] != 0}, nil
	default:
		return Scalar{}, newProtocolError("unknown scalar type tag %q", tag)
	}
}

// WriteScalar writes [len:int32][tag][payload big-endian]. The length
// prefix covers the tag string plus the fixed-width payload so a reader
// unfamiliar with a tag can still skip the frame.
func WriteScalar(w io.Writer, s Scalar) error {
	body, err := encodeScalarBody(s)
	if err != nil {
		return err
	}
	payload := append([]byte(s.Tag), body...)
	if err := writeLen(w, len(payload)); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadScalar inverts WriteScalar, using the tag to drive a fixed decode
// table.
func ReadScalar(r io.Reader, maxFrame int) (Scalar, error) {
	n, err := readLen(r, maxFrame)
	if err != nil {
		return Scalar{}, err
	}
	if n < 2 {
		return Scalar{}, newProtocolError("scalar frame too short: %d bytes", n)
	}
	payload := make([]byte, n)
	if err := readFull(r, payload); err != nil {
		return Scalar{}, err
	}
	tag := string(payload[:2])
	width, ok := scalarWidth(tag)
	if !ok {
		return Scalar{}, newProtocolError("unknown scalar type tag %q", tag)
	}
	body := payload[2:]
	if len(body) != width {
		return Scalar{}, newProtocolError("scalar tag %q expects %d bytes, got %d", tag, width, len(body))
	}
	return decodeScalarBody(tag, body)
}

func arrayElemTag(a Array) string {
	switch {
	case a.F64 != nil:
		return TagFloat64
	case a.F32 != nil:
		return TagFloat32
	case a.I32 != nil:
		return TagInt32
	case a.I64 != nil:
		return TagInt64
	case a.Bool != nil:
		return TagBool
	default:
		return a.Tag
	}
}

// WriteArray writes [len:int32][tag][ndim:int32][shape...][elements] with
// elements in C (row-major) order, big-endian.
func WriteArray(w io.Writer, a Array) error {
	tag := arrayElemTag(a)
	width, ok := scalarWidth(tag)
	if !ok {
		return newProtocolError("unknown array element tag %q", tag)
	}

	hdr := make([]byte, 0, 2+4+4*len(a.Shape))
	hdr = append(hdr, tag...)
	var ndimBuf [4]byte
	binary.BigEndian.PutUint32(ndimBuf[:], uint32(len(a.Shape)))
	hdr = append(hdr, ndimBuf[:]...)
	for _, s := range a.Shape {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(s))
		hdr = append(hdr, b[:]...)
	}

	n := a.NElem()
	body := make([]byte, n*width)
	switch tag {
	case TagFloat64:
		for i, v := range a.F64 {
			binary.BigEndian.PutUint64(body[i*8:], math.Float64bits(v))
		}
	case TagFloat32:
		for i, v := range a.F32 {
			binary.BigEndian.PutUint32(body[i*4:], math.Float32bits(v))
		}
	case TagInt32:
		for i, v := range a.I32 {
			binary.BigEndian.PutUint32(body[i*4:], uint32(v))
		}
	case TagInt64:
		for i, v := range a.I64 {
			binary.BigEndian.PutUint64(body[i*8:], uint64(v))
		}
	case TagBool:
		for i, v := range a.Bool {
			if v {
				body[i] = 1
			}
		}
	}

	if err := writeLen(w, len(hdr)+len(body)); err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadArray inverts WriteArray, allocating by shape then reading.
func ReadArray(r io.Reader, maxFrame int) (Array, error) {
	n, err := readLen(r, maxFrame)
	if err != nil {
		return Array{}, err
	}
	payload := make([]byte, n)
	if err := readFull(r, payload); err != nil {
		return Array{}, err
	}
	if len(payload) < 6 {
		return Array{}, newProtocolError("array frame too short: %d bytes", len(payload))
	}
	tag := string(payload[:2])
	width, ok := scalarWidth(tag)
	if !ok {
		return Array{}, newProtocolError("unknown array element tag %q", tag)
	}
	ndim := int(binary.BigEndian.Uint32(payload[2:6]))
	off := 6
	if len(payload) < off+4*ndim {
		return Array{}, newProtocolError("array frame truncated shape")
	}
	shape := make([]int32, ndim)
	for i := 0; i < ndim; i++ {
		shape[i] = int32(binary.BigEndian.Uint32(payload[off:]))
		off += 4
	}
	a := Array{Tag: tag, Shape: shape}
	nElem := a.NElem()
	if len(payload)-off != nElem*width {
		return Array{}, newProtocolError("array element count mismatch: shape implies %d, body has %d", nElem, (len(payload)-off)/max(width, 1))
	}
	body := payload[off:]
	switch tag {
	case TagFloat64:
		a.F64 = make([]float64, nElem)
		for i := range a.F64 {
			a.F64[i] = math.Float64frombits(binary.BigEndian.Uint64(body[i*8:]))
		}
	case TagFloat32:
		a.F32 = make([]float32, nElem)
		for i := range a.F32 {
			a.F32[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
		}
	case TagInt32:
		a.I32 = make([]int32, nElem)
		for i := range a.I32 {
			a.I32[i] = int32(binary.BigEndian.Uint32(body[i*4:]))
		}
	case TagInt64:
		a.I64 = make([]int64, nElem)
		for i := range a.I64 {
			a.I64[i] = int64(binary.BigEndian.Uint64(body[i*8:]))
		}
	case TagBool:
		a.Bool = make([]bool, nElem)
		for i := range a.Bool {
			a.Bool[i] = body[i] != 0
		}
	}
	return a, nil
}

// WriteValue writes one kind-tagged list item: [kind tag string][value].
func WriteValue(w io.Writer, v Value) error {
	if err := WriteString(w, string(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case KindString:
		return WriteString(w, v.Str)
	case KindScalar:
		return WriteScalar(w, v.Scalar)
	case KindArray:
		return WriteArray(w, v.Array)
	case KindList:
		return WriteList(w, v.List)
	default:
		return newProtocolError("unknown list item kind %q", v.Kind)
	}
}

// ReadValue reads one kind-tagged list item produced by WriteValue.
func ReadValue(r io.Reader, maxFrame int) (Value, error) {
	kindStr, err := ReadString(r, maxFrame)
	if err != nil {
		return Value{}, err
	}
	kind := Kind(kindStr)
	switch kind {
	case KindString:
		s, err := ReadString(r, maxFrame)
		return StringValue(s), err
	case KindScalar:
		s, err := ReadScalar(r, maxFrame)
		return ScalarValue(s), err
	case KindArray:
		a, err := ReadArray(r, maxFrame)
		return ArrayValue(a), err
	case KindList:
		l, err := ReadList(r, maxFrame)
		return ListValue(l), err
	default:
		return Value{}, newProtocolError("unknown list item kind %q", kindStr)
	}
}

// WriteList writes [n:int32] followed by n kind-tagged items.
func WriteList(w io.Writer, items []Value) error {
	if err := writeLen(w, len(items)); err != nil {
		return err
	}
	for _, v := range items {
		if err := WriteValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadList reads a heterogeneous list, honoring each item's own kind tag.
func ReadList(r io.Reader, maxFrame int) ([]Value, error) {
	n, err := readLen(r, maxFrame)
	if err != nil {
		return nil, err
	}
	items := make([]Value, n)
	for i := 0; i < n; i++ {
		v, err := ReadValue(r, maxFrame)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// ReadListOf reads a list that is expected to be homogeneous in kind
// (e.g. a settings path, always KindString), refusing a mismatched tag
// with a ProtocolError.
func ReadListOf(r io.Reader, kind Kind, maxFrame int) ([]Value, error) {
	items, err := ReadList(r, maxFrame)
	if err != nil {
		return nil, err
	}
	for i, v := range items {
		if v.Kind != kind {
			return nil, newProtocolError("list item %d: expected kind %q, got %q", i, kind, v.Kind)
		}
	}
	return items, nil
}

// StringsToList converts a plain []string path into a homogeneous list of
// string values, for sending things like the Info_xml path.
func StringsToList(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = StringValue(s)
	}
	return out
}

// ListToStrings inverts StringsToList, erroring if any item is not a string.
func ListToStrings(items []Value) ([]string, error) {
	out := make([]string, len(items))
	for i, v := range items {
		if v.Kind != KindString {
			return nil, newProtocolError("list item %d: expected string, got %q", i, v.Kind)
		}
		out[i] = v.Str
	}
	return out, nil
}
