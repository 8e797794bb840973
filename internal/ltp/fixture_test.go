package ltp

import (
	"encoding/binary"
	"testing"

	"github.com/pstkit/pst/internal/ndb"
	"github.com/stretchr/testify/require"
)

// memReaderAt serves bytes from an in-memory image for fixture readers.
type memReaderAt struct {
	data []byte
}

func (m *memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

const (
	fixtureNBTEntrySize = 32
	fixtureBBTEntrySize = 24
)

func buildNBTLeafPage(t *testing.T, ib uint64, pageBID ndb.BID, entries []ndb.NBTEntry) []byte {
	t.Helper()
	page := make([]byte, ndb.PageSize)
	for i, e := range entries {
		off := i * fixtureNBTEntrySize
		binary.LittleEndian.PutUint64(page[off:off+8], uint64(e.NID.Raw()))
		binary.LittleEndian.PutUint64(page[off+8:off+16], e.BIDData.Raw())
		binary.LittleEndian.PutUint64(page[off+16:off+24], e.BIDSub.Raw())
		binary.LittleEndian.PutUint32(page[off+24:off+28], e.NIDParent.Raw())
	}
	page[488] = byte(len(entries))
	page[489] = byte(488 / fixtureNBTEntrySize)
	page[490] = byte(fixtureNBTEntrySize)
	page[491] = 0

	sig := ndb.ComputeSig(ib, pageBID.Raw())
	page[496] = byte(ndb.PTypeNBT)
	page[497] = byte(ndb.PTypeNBT)
	binary.LittleEndian.PutUint16(page[498:500], sig)
	binary.LittleEndian.PutUint64(page[504:512], pageBID.Raw())
	return page
}

func buildBBTLeafPage(t *testing.T, ib uint64, pageBID ndb.BID, entries []ndb.BBTEntry) []byte {
	t.Helper()
	page := make([]byte, ndb.PageSize)
	for i, e := range entries {
		off := i * fixtureBBTEntrySize
		binary.LittleEndian.PutUint64(page[off:off+8], e.Ref.BID.Raw())
		binary.LittleEndian.PutUint64(page[off+8:off+16], e.Ref.IB)
		binary.LittleEndian.PutUint16(page[off+16:off+18], e.Cb)
		binary.LittleEndian.PutUint16(page[off+18:off+20], e.Cref)
	}
	page[488] = byte(len(entries))
	page[489] = byte(488 / fixtureBBTEntrySize)
	page[490] = byte(fixtureBBTEntrySize)
	page[491] = 0

	sig := ndb.ComputeSig(ib, pageBID.Raw())
	page[496] = byte(ndb.PTypeBBT)
	page[497] = byte(ndb.PTypeBBT)
	binary.LittleEndian.PutUint16(page[498:500], sig)
	binary.LittleEndian.PutUint64(page[504:512], pageBID.Raw())
	return page
}

// buildDataBlockImage encodes plain into an on-disk block allocation
// (encoded data + trailer, padded to 64 bytes) at absolute offset ib.
func buildDataBlockImage(t *testing.T, ib uint64, bid ndb.BID, plain []byte) ([]byte, ndb.BBTEntry) {
	t.Helper()
	cb := uint16(len(plain))
	total := int(cb) + ndb.BlockTrailerSize
	if rem := total % 64; rem != 0 {
		total += 64 - rem
	}
	block := make([]byte, total)
	copy(block, plain)

	trailerOff := total - ndb.BlockTrailerSize
	binary.LittleEndian.PutUint16(block[trailerOff:trailerOff+2], cb)
	sig := ndb.ComputeSig(ib, bid.Raw())
	binary.LittleEndian.PutUint16(block[trailerOff+2:trailerOff+4], sig)
	crc := ndb.ComputeCRC(plain)
	binary.LittleEndian.PutUint32(block[trailerOff+4:trailerOff+8], crc)
	binary.LittleEndian.PutUint64(block[trailerOff+8:trailerOff+16], bid.Raw())

	entry := ndb.BBTEntry{Ref: ndb.BREF{BID: bid, IB: ib}, Cb: cb, Cref: 1}
	return block, entry
}

// buildFixtureReader assembles a minimal valid NDB image with the message
// store and root folder nodes present (required by NBT integrity checks)
// plus a third node, nidContent, whose single data block holds content.
func buildFixtureReader(t *testing.T, nidContent ndb.NID, content []byte) *ndb.Reader {
	t.Helper()

	storeBID := ndb.DecodeBID(0x10)
	rootBID := ndb.DecodeBID(0x14)
	contentBID := ndb.DecodeBID(0x18)

	storeBlock, storeEntry := buildDataBlockImage(t, 0x10000, storeBID, []byte("s"))
	rootBlock, rootEntry := buildDataBlockImage(t, 0x11000, rootBID, []byte("r"))
	contentBlock, contentEntry := buildDataBlockImage(t, 0x12000, contentBID, content)

	bbtPage := buildBBTLeafPage(t, 0x2000, ndb.DecodeBID(0x11), []ndb.BBTEntry{storeEntry, rootEntry, contentEntry})

	nbtEntries := []ndb.NBTEntry{
		{NID: ndb.NIDMessageStore, BIDData: storeBID},
		{NID: ndb.NIDRootFolder, BIDData: rootBID, NIDParent: ndb.NIDMessageStore},
		{NID: nidContent, BIDData: contentBID, NIDParent: ndb.NIDRootFolder},
	}
	nbtPage := buildNBTLeafPage(t, 0x1000, ndb.DecodeBID(0x21), nbtEntries)

	img := make([]byte, 0x13000)
	copy(img[0x1000:], nbtPage)
	copy(img[0x2000:], bbtPage)
	copy(img[0x10000:], storeBlock)
	copy(img[0x11000:], rootBlock)
	copy(img[0x12000:], contentBlock)

	rd, err := ndb.OpenReader(&memReaderAt{data: img}, ndb.CryptMethodNone,
		ndb.BREF{BID: ndb.DecodeBID(0x21), IB: 0x1000},
		ndb.BREF{BID: ndb.DecodeBID(0x11), IB: 0x2000})
	require.NoError(t, err)
	return rd
}

// buildFixtureHeap builds a reader and returns the HeapOnNode resolved
// from the content node's single data block.
func buildFixtureHeap(t *testing.T, nidContent ndb.NID, heapBlock []byte) *HeapOnNode {
	t.Helper()
	rd := buildFixtureReader(t, nidContent, heapBlock)
	tree, err := rd.NodeDataTree(nidContent)
	require.NoError(t, err)
	hn, err := OpenHeapOnNode(tree)
	require.NoError(t, err)
	return hn
}
