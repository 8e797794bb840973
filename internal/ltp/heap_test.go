package ltp

import (
	"encoding/binary"
	"testing"

	"github.com/pstkit/pst/internal/ndb"
	"github.com/stretchr/testify/require"
)

// buildSingleBlockHeap assembles one HN data block: HNHDR + two allocations
// + HNPAGEMAP, and returns the block bytes plus the HIDs of each allocation.
func buildSingleBlockHeap(t *testing.T, clientSig ndb.BType, item1, item2 []byte) ([]byte, HID, HID) {
	t.Helper()
	const hdrSize = 16
	item1Off := hdrSize
	item2Off := item1Off + len(item1)
	mapOff := item2Off + len(item2)
	cAlloc := 2
	mapSize := 4 + (cAlloc+1)*2
	block := make([]byte, mapOff+mapSize)

	binary.LittleEndian.PutUint16(block[0:2], uint16(mapOff)) // ibHnpm
	block[2] = hnSignature
	block[3] = byte(clientSig)
	binary.LittleEndian.PutUint32(block[4:8], 0) // hidUserRoot

	copy(block[item1Off:], item1)
	copy(block[item2Off:], item2)

	binary.LittleEndian.PutUint16(block[mapOff:mapOff+2], uint16(cAlloc))
	binary.LittleEndian.PutUint16(block[mapOff+2:mapOff+4], 0) // cFree
	binary.LittleEndian.PutUint16(block[mapOff+4:mapOff+6], uint16(item1Off))
	binary.LittleEndian.PutUint16(block[mapOff+6:mapOff+8], uint16(item2Off))
	binary.LittleEndian.PutUint16(block[mapOff+8:mapOff+10], uint16(mapOff))

	hid1 := DecodeHID(1 << 5)
	hid2 := DecodeHID(2 << 5)
	return block, hid1, hid2
}

func TestOpenHeapOnNode_SingleBlock(t *testing.T) {
	item1 := []byte{0xAA, 0xBB, 0xCC}
	item2 := []byte{0x11, 0x22, 0x33, 0x44}
	block, hid1, hid2 := buildSingleBlockHeap(t, ndb.BTypePC, item1, item2)

	hn := buildFixtureHeap(t, ndb.DecodeNID(0x00000024), block)
	require.Equal(t, ndb.BTypePC, hn.ClientSig)

	got1, err := hn.Get(hid1)
	require.NoError(t, err)
	require.Equal(t, item1, got1)

	got2, err := hn.Get(hid2)
	require.NoError(t, err)
	require.Equal(t, item2, got2)
}

func TestOpenHeapOnNode_BadSignature(t *testing.T) {
	item1 := []byte{0x01}
	item2 := []byte{0x02}
	block, _, _ := buildSingleBlockHeap(t, ndb.BTypePC, item1, item2)
	block[2] = 0x00 // corrupt bSig

	rd := buildFixtureReader(t, ndb.DecodeNID(0x00000024), block)
	tree, err := rd.NodeDataTree(ndb.DecodeNID(0x00000024))
	require.NoError(t, err)
	_, err = OpenHeapOnNode(tree)
	require.Error(t, err)
}

func TestHeapOnNode_GetOutOfRangeHID(t *testing.T) {
	item1 := []byte{0x01, 0x02}
	item2 := []byte{0x03, 0x04}
	block, _, _ := buildSingleBlockHeap(t, ndb.BTypePC, item1, item2)
	hn := buildFixtureHeap(t, ndb.DecodeNID(0x00000024), block)

	_, err := hn.Get(DecodeHID(99 << 5))
	require.Error(t, err)

	_, err = hn.Get(DecodeHID(0))
	require.Error(t, err)
}
