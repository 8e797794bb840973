// Package ltp implements the List, Table, and Property layer of a Unicode
// PST file: the heap-on-node allocator, the BTree-on-Heap index, and the
// Property Context and Table Context built atop it. See MS-PST section 2.3.
package ltp

import (
	"encoding/binary"
	"fmt"

	"github.com/pstkit/pst/internal/ndb"
	"github.com/pstkit/pst/internal/utils"
)

// HID is a 4-byte heap item identifier: a 5-bit NID_TYPE_HID tag, an
// 11-bit 1-based allocation index, and a 16-bit zero-based data block
// index, MS-PST section 2.3.1.1.
type HID uint32

// DecodeHID extracts an HID from its 32-bit wire representation.
func DecodeHID(raw uint32) HID { return HID(raw) }

// Zero reports whether this HID is the sentinel "absent" value.
func (h HID) Zero() bool { return h == 0 }

// AllocIndex returns the 1-based allocation index; it is never zero for a
// valid, non-zero HID.
func (h HID) AllocIndex() uint32 { return (uint32(h) >> 5) & 0x7FF }

// BlockIndex returns the zero-based data block index the item resides in.
func (h HID) BlockIndex() uint32 { return (uint32(h) >> 16) & 0xFFFF }

func (h HID) String() string {
	return fmt.Sprintf("HID(alloc=%d block=%d)", h.AllocIndex(), h.BlockIndex())
}

// HNID is either an HID (item lives in the heap) or an NID (item lives in
// a sub-node tree), discriminated by the low 5 bits, MS-PST section
// 2.3.1.1.1.
type HNID uint32

// IsHID reports whether this hybrid ID should be interpreted as a heap item.
func (h HNID) IsHID() bool { return uint32(h)&0x1F == 0 }

// AsHID interprets this HNID as a heap item ID.
func (h HNID) AsHID() HID { return HID(h) }

// AsNID interprets this HNID as a sub-node-local node ID.
func (h HNID) AsNID() ndb.NID { return ndb.DecodeNID(uint32(h)) }

// hnSignature is the fixed bSig byte marking the start of every heap-on-node.
const hnSignature = 0xEC

// HeapOnNode is the allocator layered over a node's DataTree: a flat
// address space of variably-sized allocations, each addressable by HID,
// materialized eagerly from the tree's data blocks at construction time
// (MS-PST section 2.3.1).
type HeapOnNode struct {
	ClientSig ndb.BType
	UserRoot  HID
	blocks    [][]byte // one entry per underlying data block, including its header
	allocs    [][]uint16 // per-block rgibAlloc offset table
}

// OpenHeapOnNode reads every block of tree and parses the HN header, the
// per-block page headers, and each block's allocation map.
func OpenHeapOnNode(tree *ndb.DataTree) (*HeapOnNode, error) {
	count, err := tree.BlockCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ndbCorruptf("heap-on-node has no data blocks")
	}

	hn := &HeapOnNode{
		blocks: make([][]byte, count),
		allocs: make([][]uint16, count),
	}

	first, err := tree.Block(0)
	if err != nil {
		return nil, err
	}
	if len(first) < 8 {
		return nil, ndbCorruptf("HNHDR shorter than header")
	}
	ibHnpm := binary.LittleEndian.Uint16(first[0:2])
	bSig := first[2]
	bClientSig := first[3]
	if bSig != hnSignature {
		return nil, ndbCorruptf("HNHDR signature 0x%02X != 0xEC", bSig)
	}
	hn.ClientSig = ndb.BType(bClientSig)
	hn.UserRoot = DecodeHID(binary.LittleEndian.Uint32(first[4:8]))
	// rgbFillLevel (8 bytes) follows at [8:16]; fill level is advisory for
	// allocation placement and not needed for read-only access.

	hn.blocks[0] = first
	if err := hn.parsePageMap(0, first, int(ibHnpm)); err != nil {
		return nil, err
	}

	for i := 1; i < count; i++ {
		raw, err := tree.Block(i)
		if err != nil {
			return nil, err
		}
		hn.blocks[i] = raw
		if len(raw) < 2 {
			return nil, ndbCorruptf("HN page %d shorter than header", i)
		}
		// Every 128th block starting at index 8 carries an HNBITMAPHDR
		// (64-byte fill map) instead of the plain 2-byte HNPAGEHDR; the
		// ibHnpm field sits in the same leading position either way.
		ibHnpm := binary.LittleEndian.Uint16(raw[0:2])
		if err := hn.parsePageMap(i, raw, int(ibHnpm)); err != nil {
			return nil, err
		}
	}
	return hn, nil
}

// parsePageMap reads the HNPAGEMAP at byte offset mapOff within block i and
// records its allocation table.
func (hn *HeapOnNode) parsePageMap(i int, block []byte, mapOff int) error {
	if mapOff < 0 || mapOff+4 > len(block) {
		return ndbCorruptf("HNPAGEMAP offset %d out of range for block of %d bytes", mapOff, len(block))
	}
	cAlloc := binary.LittleEndian.Uint16(block[mapOff : mapOff+2])
	need := mapOff + 4 + int(cAlloc+1)*2
	if need > len(block) {
		return ndbCorruptf("HNPAGEMAP allocation table exceeds block bounds")
	}
	table := make([]uint16, cAlloc+1)
	for j := range table {
		off := mapOff + 4 + j*2
		table[j] = binary.LittleEndian.Uint16(block[off : off+2])
	}
	hn.allocs[i] = table
	return nil
}

// Get resolves a heap item ID to its raw byte slice.
func (hn *HeapOnNode) Get(hid HID) ([]byte, error) {
	if hid.Zero() {
		return nil, ndbNotFoundf("zero HID")
	}
	blockIdx := int(hid.BlockIndex())
	if blockIdx < 0 || blockIdx >= len(hn.blocks) {
		return nil, ndbNotFoundf("HID block index %d out of range", blockIdx)
	}
	table := hn.allocs[blockIdx]
	allocIdx := hid.AllocIndex()
	if allocIdx == 0 || int(allocIdx) >= len(table) {
		return nil, ndbNotFoundf("HID alloc index %d out of range for block %d", allocIdx, blockIdx)
	}
	start := table[allocIdx-1]
	end := table[allocIdx]
	if end < start || int(end) > len(hn.blocks[blockIdx]) {
		return nil, ndbCorruptf("heap allocation [%d,%d) out of range", start, end)
	}
	return hn.blocks[blockIdx][start:end], nil
}

func ndbCorruptf(format string, args ...any) error {
	return utils.NewError(utils.KindCorrupt, fmt.Sprintf(format, args...), nil)
}

func ndbNotFoundf(format string, args ...any) error {
	return utils.NewError(utils.KindNotFound, fmt.Sprintf(format, args...), nil)
}
