package ltp

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/pstkit/pst/internal/ndb"
)

// PropertyContext is a tag-to-value map built directly on a BTH with
// cbKey=2 and cbEnt=6 (MS-PST section 2.3.3): the existence of a PC is
// signaled by the containing heap's bClientSig being bTypePC.
type PropertyContext struct {
	heap  *HeapOnNode
	bth   *BTreeOnHeap
	nodes *ndb.SubNodeBTree // may be nil if the node has no sub-node tree
}

// pcRecordSize is the fixed 6-byte value width of every PC BTH record:
// wPropType(2) + dwValueHnid(4).
const pcRecordSize = 6

// OpenPropertyContext builds a PC over tree's heap. subNodes (which may be
// nil) resolves HNID values that refer to a sub-node-tree NID rather than a
// heap HID, searching recursively through any nested sub-node trees.
func OpenPropertyContext(tree *ndb.DataTree, subNodes *ndb.SubNodeBTree) (*PropertyContext, error) {
	heap, err := OpenHeapOnNode(tree)
	if err != nil {
		return nil, err
	}
	if heap.ClientSig != ndb.BTypePC {
		return nil, ndbCorruptf("heap client signature %v is not bTypePC", heap.ClientSig)
	}
	bth, err := OpenBTH(heap, heap.UserRoot)
	if err != nil {
		return nil, err
	}
	if bth.CbKey != 2 || bth.CbEnt != pcRecordSize {
		return nil, ndbCorruptf("PC BTH must have cbKey=2 cbEnt=6, got cbKey=%d cbEnt=%d", bth.CbKey, bth.CbEnt)
	}
	return &PropertyContext{heap: heap, bth: bth, nodes: subNodes}, nil
}

// Exists reports whether propID is present in this property context.
func (pc *PropertyContext) Exists(propID PidTag) bool {
	_, _, err := pc.lookup(propID)
	return err == nil
}

// lookup finds propID's raw record and splits it into its type and value bytes.
func (pc *PropertyContext) lookup(propID PidTag) (PropertyType, []byte, error) {
	var key [2]byte
	binary.LittleEndian.PutUint16(key[:], uint16(propID))
	rec, err := pc.bth.Get(key[:])
	if err != nil {
		return 0, nil, ndbNotFoundf("property 0x%04X", uint16(propID))
	}
	propType := PropertyType(binary.LittleEndian.Uint16(rec[0:2]))
	return propType, rec[2:6], nil
}

// resolve returns the fully materialized bytes for a property's value,
// following an HNID into the heap or sub-node tree when the value isn't
// stored inline.
func (pc *PropertyContext) resolve(propType PropertyType, raw []byte) ([]byte, error) {
	if size, fixed := propType.FixedSize(); fixed && size <= 4 {
		return raw[:size], nil
	}
	ref, hn := classify(binary.LittleEndian.Uint32(raw))
	switch ref {
	case valueRefInline:
		return nil, ndbNotFoundf("property value is empty")
	case valueRefHeap:
		return pc.heap.Get(hn.AsHID())
	case valueRefSubNode:
		if pc.nodes == nil {
			return nil, ndbCorruptf("property value refers to a sub-node but node has no sub-node tree")
		}
		subTree, err := pc.nodes.DataTree(hn.AsNID())
		if err != nil {
			return nil, err
		}
		return subTree.ConcatAll()
	default:
		return nil, ndbCorruptf("unreachable value reference kind")
	}
}

// As returns the value for propID as one of: int16, int32, int64, float32,
// float64, bool, string, time.Time, uuid.UUID, []byte, or the corresponding
// []int16/[]int32/[]int64/[]float32/[]float64/[]string/[]uuid.UUID/[]time.Time/
// [][]byte slice for a Multiple* PropertyType, depending on its stored
// PropertyType. Callers that know the expected Go type should type-assert
// the result.
func (pc *PropertyContext) As(propID PidTag) (any, error) {
	propType, raw, err := pc.lookup(propID)
	if err != nil {
		return nil, err
	}
	value, err := pc.resolve(propType, raw)
	if err != nil {
		return nil, err
	}
	return decodeByType(propType, value)
}

func decodeByType(propType PropertyType, value []byte) (any, error) {
	switch propType {
	case PtypInteger16:
		return DecodeInteger16(value)
	case PtypInteger32:
		return DecodeInteger32(value)
	case PtypInteger64:
		return DecodeInteger64(value)
	case PtypFloating32:
		return DecodeFloating32(value)
	case PtypFloating64:
		return DecodeFloating64(value)
	case PtypBoolean:
		return DecodeBoolean(value)
	case PtypString:
		return DecodeString(value)
	case PtypString8:
		return DecodeString8(value), nil
	case PtypTime:
		return DecodeTime(value)
	case PtypGuid:
		return DecodeGuid(value)
	case PtypMultipleInteger16:
		return DecodeMultiInteger16(value)
	case PtypMultipleInteger32:
		return DecodeMultiInteger32(value)
	case PtypMultipleInteger64:
		return DecodeMultiInteger64(value)
	case PtypMultipleFloating32:
		return DecodeMultiFloating32(value)
	case PtypMultipleFloating64:
		return DecodeMultiFloating64(value)
	case PtypMultipleString:
		return DecodeMultiString(value)
	case PtypMultipleString8:
		return DecodeMultiString8(value)
	case PtypMultipleGuid:
		return DecodeMultiGuid(value)
	case PtypMultipleTime:
		return DecodeMultiTime(value)
	case PtypMultipleBinary:
		return DecodeMultiBinary(value)
	case PtypBinary:
		return value, nil
	default:
		return value, nil
	}
}

// Int32 is a convenience typed accessor for the common PtypInteger32 case.
func (pc *PropertyContext) Int32(propID PidTag) (int32, error) {
	v, err := pc.As(propID)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int32)
	if !ok {
		return 0, ndbCorruptf("property 0x%04X is not an Integer32", uint16(propID))
	}
	return i, nil
}

// String is a convenience typed accessor for the common PtypString case.
func (pc *PropertyContext) String(propID PidTag) (string, error) {
	v, err := pc.As(propID)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", ndbCorruptf("property 0x%04X is not a String", uint16(propID))
	}
	return s, nil
}

// Time is a convenience typed accessor for the common PtypTime case.
func (pc *PropertyContext) Time(propID PidTag) (time.Time, error) {
	v, err := pc.As(propID)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, ndbCorruptf("property 0x%04X is not a Time", uint16(propID))
	}
	return t, nil
}

// Guid is a convenience typed accessor for the common PtypGuid case.
func (pc *PropertyContext) Guid(propID PidTag) (uuid.UUID, error) {
	v, err := pc.As(propID)
	if err != nil {
		return uuid.UUID{}, err
	}
	g, ok := v.(uuid.UUID)
	if !ok {
		return uuid.UUID{}, ndbCorruptf("property 0x%04X is not a Guid", uint16(propID))
	}
	return g, nil
}

// Tags returns every property ID present in this context, for enumeration.
func (pc *PropertyContext) Tags() []PidTag {
	all := pc.bth.All()
	out := make([]PidTag, len(all))
	for i, kv := range all {
		out[i] = PidTag(binary.LittleEndian.Uint16(kv[0]))
	}
	return out
}
