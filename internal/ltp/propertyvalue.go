package ltp

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// utf16leDecoder decodes PtypString's length-delimited UTF-16LE payload,
// MS-PST section 2.5's String property encoding.
var utf16leDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

// pstEpoch is the MS-PST Time base: January 1, 1601, the same epoch
// Windows FILETIME uses.
var pstEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// DecodeInteger16 interprets data as a little-endian PtypInteger16.
func DecodeInteger16(data []byte) (int16, error) {
	if len(data) != 2 {
		return 0, ndbCorruptf("PtypInteger16 needs 2 bytes, got %d", len(data))
	}
	return int16(binary.LittleEndian.Uint16(data)), nil
}

// DecodeInteger32 interprets data as a little-endian PtypInteger32.
func DecodeInteger32(data []byte) (int32, error) {
	if len(data) != 4 {
		return 0, ndbCorruptf("PtypInteger32 needs 4 bytes, got %d", len(data))
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// DecodeInteger64 interprets data as a little-endian PtypInteger64.
func DecodeInteger64(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, ndbCorruptf("PtypInteger64 needs 8 bytes, got %d", len(data))
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// DecodeBoolean interprets data as a PtypBoolean, restricted to 0 or 1.
func DecodeBoolean(data []byte) (bool, error) {
	v, err := DecodeInteger16(data)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ndbCorruptf("PtypBoolean value %d is not 0 or 1", v)
	}
}

// DecodeFloating32 interprets data as an IEEE-754 single-precision float.
func DecodeFloating32(data []byte) (float32, error) {
	if len(data) != 4 {
		return 0, ndbCorruptf("PtypFloating32 needs 4 bytes, got %d", len(data))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
}

// DecodeFloating64 interprets data as an IEEE-754 double-precision float.
func DecodeFloating64(data []byte) (float64, error) {
	if len(data) != 8 {
		return 0, ndbCorruptf("PtypFloating64 needs 8 bytes, got %d", len(data))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
}

// DecodeTime interprets data as the number of 100-nanosecond intervals
// since January 1, 1601 and returns the corresponding UTC time.
func DecodeTime(data []byte) (time.Time, error) {
	ticks, err := DecodeInteger64(data)
	if err != nil {
		return time.Time{}, fmt.Errorf("PtypTime: %w", err)
	}
	return pstEpoch.Add(time.Duration(ticks) * 100 * time.Nanosecond), nil
}

// DecodeGuid interprets a 16-byte little-endian Data1/Data2/Data3/Data4 GUID.
func DecodeGuid(data []byte) (uuid.UUID, error) {
	if len(data) != 16 {
		return uuid.UUID{}, ndbCorruptf("PtypGuid needs 16 bytes, got %d", len(data))
	}
	var be [16]byte
	binary.BigEndian.PutUint32(be[0:4], binary.LittleEndian.Uint32(data[0:4]))
	binary.BigEndian.PutUint16(be[4:6], binary.LittleEndian.Uint16(data[4:6]))
	binary.BigEndian.PutUint16(be[6:8], binary.LittleEndian.Uint16(data[6:8]))
	copy(be[8:16], data[8:16])
	return uuid.FromBytes(be[:])
}

// DecodeString decodes a PtypString's UTF-16LE payload. The byte range is
// authoritative; there is no trailing-NUL convention to strip (MS-PST
// section 2.5's String values are length-delimited, not NUL-terminated).
func DecodeString(data []byte) (string, error) {
	out, err := utf16leDecoder.Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding PtypString: %w", err)
	}
	return string(out), nil
}

// DecodeString8 decodes a PtypString8's payload as Latin-1, one rune per
// byte, dropping a single trailing NUL byte if present. The node's actual
// codepage is not consulted.
func DecodeString8(data []byte) string {
	if len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// Fixed-size Multiple* properties (MS-PST section 2.11.1.3) have no count
// prefix or offset table: the element count is implicit in the payload
// length, since every element is the same size.

// DecodeMultiInteger16 decodes a PtypMultipleInteger16 array.
func DecodeMultiInteger16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, ndbCorruptf("PtypMultipleInteger16 payload of %d bytes is not a multiple of 2", len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return out, nil
}

// DecodeMultiInteger32 decodes a PtypMultipleInteger32 array.
func DecodeMultiInteger32(data []byte) ([]int32, error) {
	if len(data)%4 != 0 {
		return nil, ndbCorruptf("PtypMultipleInteger32 payload of %d bytes is not a multiple of 4", len(data))
	}
	out := make([]int32, len(data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return out, nil
}

// DecodeMultiInteger64 decodes a PtypMultipleInteger64 array.
func DecodeMultiInteger64(data []byte) ([]int64, error) {
	if len(data)%8 != 0 {
		return nil, ndbCorruptf("PtypMultipleInteger64 payload of %d bytes is not a multiple of 8", len(data))
	}
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return out, nil
}

// DecodeMultiFloating32 decodes a PtypMultipleFloating32 array.
func DecodeMultiFloating32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, ndbCorruptf("PtypMultipleFloating32 payload of %d bytes is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return out, nil
}

// DecodeMultiFloating64 decodes a PtypMultipleFloating64 array.
func DecodeMultiFloating64(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, ndbCorruptf("PtypMultipleFloating64 payload of %d bytes is not a multiple of 8", len(data))
	}
	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return out, nil
}

// DecodeMultiTime decodes a PtypMultipleTime array.
func DecodeMultiTime(data []byte) ([]time.Time, error) {
	if len(data)%8 != 0 {
		return nil, ndbCorruptf("PtypMultipleTime payload of %d bytes is not a multiple of 8", len(data))
	}
	out := make([]time.Time, len(data)/8)
	for i := range out {
		t, err := DecodeTime(data[i*8 : i*8+8])
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// DecodeMultiGuid decodes a PtypMultipleGuid array.
func DecodeMultiGuid(data []byte) ([]uuid.UUID, error) {
	if len(data)%16 != 0 {
		return nil, ndbCorruptf("PtypMultipleGuid payload of %d bytes is not a multiple of 16", len(data))
	}
	out := make([]uuid.UUID, len(data)/16)
	for i := range out {
		g, err := DecodeGuid(data[i*16 : i*16+16])
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

// decodeMultiOffsets splits a variable-length Multiple* payload into its
// item byte ranges: [count:u32][offsets:u32*count][item bytes], offsets
// relative to the start of the payload, with an implicit trailing offset
// of len(data) for the final item (MS-PST section 2.11.1.3).
func decodeMultiOffsets(data []byte) ([][]byte, error) {
	if len(data) < 4 {
		return nil, ndbCorruptf("multi-value payload needs a 4-byte count")
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	offTableSize := int(count) * 4
	if len(data) < 4+offTableSize {
		return nil, ndbCorruptf("multi-value payload too short for %d offsets", count)
	}
	offsets := make([]uint32, count+1)
	for i := 0; i < int(count); i++ {
		offsets[i] = binary.LittleEndian.Uint32(data[4+i*4 : 4+i*4+4])
	}
	offsets[count] = uint32(len(data))

	items := make([][]byte, count)
	for i := 0; i < int(count); i++ {
		start, end := offsets[i], offsets[i+1]
		if start > end || int(end) > len(data) {
			return nil, ndbCorruptf("multi-value item %d offsets [%d,%d) out of range", i, start, end)
		}
		items[i] = data[start:end]
	}
	return items, nil
}

// DecodeMultiString decodes a PtypMultipleString array.
func DecodeMultiString(data []byte) ([]string, error) {
	items, err := decodeMultiOffsets(data)
	if err != nil {
		return nil, fmt.Errorf("PtypMultipleString: %w", err)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := DecodeString(item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// DecodeMultiString8 decodes a PtypMultipleString8 array.
func DecodeMultiString8(data []byte) ([]string, error) {
	items, err := decodeMultiOffsets(data)
	if err != nil {
		return nil, fmt.Errorf("PtypMultipleString8: %w", err)
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = DecodeString8(item)
	}
	return out, nil
}

// DecodeMultiBinary decodes a PtypMultipleBinary array.
func DecodeMultiBinary(data []byte) ([][]byte, error) {
	items, err := decodeMultiOffsets(data)
	if err != nil {
		return nil, fmt.Errorf("PtypMultipleBinary: %w", err)
	}
	return items, nil
}

// valueRef classifies where a property value's bytes actually live, given
// its HNID: inline in the PC/TC record itself, in a heap allocation, or in
// a sub-node-tree-addressed data tree.
type valueRef int

const (
	valueRefInline valueRef = iota
	valueRefHeap
	valueRefSubNode
)

// classify decides how to resolve a variable-size or fixed-but-oversized
// property's 4-byte payload: as a raw HNID pointing into the heap or a
// sub-node.
func classify(raw uint32) (valueRef, HNID) {
	hn := HNID(raw)
	if hn.IsHID() {
		if hn.AsHID().Zero() {
			return valueRefInline, hn
		}
		return valueRefHeap, hn
	}
	return valueRefSubNode, hn
}
