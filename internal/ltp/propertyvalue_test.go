package ltp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeInteger_Widths(t *testing.T) {
	i16, err := DecodeInteger16([]byte{0x34, 0x12})
	require.NoError(t, err)
	require.Equal(t, int16(0x1234), i16)

	i32, err := DecodeInteger32([]byte{0x78, 0x56, 0x34, 0x12})
	require.NoError(t, err)
	require.Equal(t, int32(0x12345678), i32)

	i64, err := DecodeInteger64([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	require.Equal(t, int64(0x0807060504030201), i64)

	_, err = DecodeInteger32([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeBoolean(t *testing.T) {
	v, err := DecodeBoolean([]byte{1, 0})
	require.NoError(t, err)
	require.True(t, v)

	v, err = DecodeBoolean([]byte{0, 0})
	require.NoError(t, err)
	require.False(t, v)

	_, err = DecodeBoolean([]byte{2, 0})
	require.Error(t, err)
}

func TestDecodeFloating(t *testing.T) {
	b4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(b4, 0x3F800000) // 1.0
	f32, err := DecodeFloating32(b4)
	require.NoError(t, err)
	require.Equal(t, float32(1.0), f32)

	b8 := make([]byte, 8)
	binary.LittleEndian.PutUint64(b8, 0x3FF0000000000000) // 1.0
	f64, err := DecodeFloating64(b8)
	require.NoError(t, err)
	require.Equal(t, 1.0, f64)
}

func TestDecodeTime_EpochRoundTrip(t *testing.T) {
	got, err := DecodeTime([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)))

	// One day later, in 100ns ticks.
	ticks := int64(24 * time.Hour / (100 * time.Nanosecond))
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(ticks))
	got, err = DecodeTime(buf)
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(1601, time.January, 2, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeGuid(t *testing.T) {
	want := uuid.MustParse("12345678-1234-5678-1234-567812345678")
	// Encode the same GUID in the little-endian wire layout DecodeGuid expects.
	wireBytes, err := want.MarshalBinary() // big-endian (RFC 4122) bytes
	require.NoError(t, err)
	wire := make([]byte, 16)
	binary.LittleEndian.PutUint32(wire[0:4], binary.BigEndian.Uint32(wireBytes[0:4]))
	binary.LittleEndian.PutUint16(wire[4:6], binary.BigEndian.Uint16(wireBytes[4:6]))
	binary.LittleEndian.PutUint16(wire[6:8], binary.BigEndian.Uint16(wireBytes[6:8]))
	copy(wire[8:16], wireBytes[8:16])

	got, err := DecodeGuid(wire)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeString_UTF16LE(t *testing.T) {
	// "Hi", UTF-16LE, no trailing NUL: the byte range is authoritative.
	data := []byte{'H', 0, 'i', 0}
	got, err := DecodeString(data)
	require.NoError(t, err)
	require.Equal(t, "Hi", got)
}

func TestDecodeString_DoesNotStripTrailingNUL(t *testing.T) {
	// A trailing UTF-16LE NUL code unit within the given range is data, not
	// a terminator to discard.
	data := []byte{'H', 0, 'i', 0, 0, 0}
	got, err := DecodeString(data)
	require.NoError(t, err)
	require.Equal(t, "Hi\x00", got)
}

func TestDecodeString8_Latin1(t *testing.T) {
	data := []byte{'H', 'i', 0}
	require.Equal(t, "Hi", DecodeString8(data))
}

func TestDecodeMultiInteger32(t *testing.T) {
	// Fixed-size Multiple* arrays have no count prefix: the element count
	// is implicit in the payload length.
	buf := make([]byte, 2*4)
	binary.LittleEndian.PutUint32(buf[0:4], 10)
	binary.LittleEndian.PutUint32(buf[4:8], 20)

	got, err := DecodeMultiInteger32(buf)
	require.NoError(t, err)
	require.Equal(t, []int32{10, 20}, got)

	_, err = DecodeMultiInteger32(buf[:6])
	require.Error(t, err)
}

func TestDecodeMultiInteger16(t *testing.T) {
	buf := []byte{0x01, 0x00, 0x02, 0x00}
	got, err := DecodeMultiInteger16(buf)
	require.NoError(t, err)
	require.Equal(t, []int16{1, 2}, got)
}

func TestDecodeMultiInteger64(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], 100)
	binary.LittleEndian.PutUint64(buf[8:16], 200)
	got, err := DecodeMultiInteger64(buf)
	require.NoError(t, err)
	require.Equal(t, []int64{100, 200}, got)
}

func TestDecodeMultiFloating(t *testing.T) {
	b4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(b4, 0x3F800000) // 1.0
	f32s, err := DecodeMultiFloating32(b4)
	require.NoError(t, err)
	require.Equal(t, []float32{1.0}, f32s)

	b8 := make([]byte, 8)
	binary.LittleEndian.PutUint64(b8, 0x3FF0000000000000) // 1.0
	f64s, err := DecodeMultiFloating64(b8)
	require.NoError(t, err)
	require.Equal(t, []float64{1.0}, f64s)
}

func TestDecodeMultiTime(t *testing.T) {
	buf := make([]byte, 8)
	got, err := DecodeMultiTime(buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Equal(time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeMultiGuid(t *testing.T) {
	g := uuid.MustParse("12345678-1234-5678-1234-567812345678")
	wireBytes, err := g.MarshalBinary()
	require.NoError(t, err)
	wire := make([]byte, 16)
	binary.LittleEndian.PutUint32(wire[0:4], binary.BigEndian.Uint32(wireBytes[0:4]))
	binary.LittleEndian.PutUint16(wire[4:6], binary.BigEndian.Uint16(wireBytes[4:6]))
	binary.LittleEndian.PutUint16(wire[6:8], binary.BigEndian.Uint16(wireBytes[6:8]))
	copy(wire[8:16], wireBytes[8:16])

	got, err := DecodeMultiGuid(wire)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{g}, got)
}

func TestDecodeMultiString(t *testing.T) {
	// Two items: "Hi" (4 bytes) and "Bye" (6 bytes), offset-table encoded.
	item0 := []byte{'H', 0, 'i', 0}
	item1 := []byte{'B', 0, 'y', 0, 'e', 0}
	const count = 2
	buf := make([]byte, 4+count*4+len(item0)+len(item1))
	binary.LittleEndian.PutUint32(buf[0:4], count)
	off0 := uint32(4 + count*4)
	off1 := off0 + uint32(len(item0))
	binary.LittleEndian.PutUint32(buf[4:8], off0)
	binary.LittleEndian.PutUint32(buf[8:12], off1)
	copy(buf[off0:], item0)
	copy(buf[off1:], item1)

	got, err := DecodeMultiString(buf)
	require.NoError(t, err)
	require.Equal(t, []string{"Hi", "Bye"}, got)
}

func TestDecodeMultiString8(t *testing.T) {
	item0 := []byte{'H', 'i'}
	item1 := []byte{'B', 'y', 'e'}
	const count = 2
	buf := make([]byte, 4+count*4+len(item0)+len(item1))
	binary.LittleEndian.PutUint32(buf[0:4], count)
	off0 := uint32(4 + count*4)
	off1 := off0 + uint32(len(item0))
	binary.LittleEndian.PutUint32(buf[4:8], off0)
	binary.LittleEndian.PutUint32(buf[8:12], off1)
	copy(buf[off0:], item0)
	copy(buf[off1:], item1)

	got, err := DecodeMultiString8(buf)
	require.NoError(t, err)
	require.Equal(t, []string{"Hi", "Bye"}, got)
}

func TestDecodeMultiBinary(t *testing.T) {
	item0 := []byte{0xAA, 0xBB}
	item1 := []byte{0xCC}
	const count = 2
	buf := make([]byte, 4+count*4+len(item0)+len(item1))
	binary.LittleEndian.PutUint32(buf[0:4], count)
	off0 := uint32(4 + count*4)
	off1 := off0 + uint32(len(item0))
	binary.LittleEndian.PutUint32(buf[4:8], off0)
	binary.LittleEndian.PutUint32(buf[8:12], off1)
	copy(buf[off0:], item0)
	copy(buf[off1:], item1)

	got, err := DecodeMultiBinary(buf)
	require.NoError(t, err)
	require.Equal(t, [][]byte{item0, item1}, got)

	_, err = DecodeMultiBinary(buf[:2])
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	ref, hn := classify(0) // zero HID
	require.Equal(t, valueRefInline, ref)
	require.True(t, hn.AsHID().Zero())

	ref, _ = classify(uint32(DecodeHID(1 << 5))) // valid HID
	require.Equal(t, valueRefHeap, ref)

	ref, _ = classify(0x00000025) // low 5 bits nonzero: a NID
	require.Equal(t, valueRefSubNode, ref)
}
