package ndb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBBTLeafPage assembles a minimal 512-byte BBT leaf page (cLevel=0)
// containing the given BBT entries, with a correctly computed trailer.
func buildBBTLeafPage(t *testing.T, ib uint64, pageBID BID, entries []BBTEntry) []byte {
	t.Helper()
	page := make([]byte, PageSize)
	for i, e := range entries {
		off := i * bBTEntrySize
		binary.LittleEndian.PutUint64(page[off:off+8], e.Ref.BID.Raw())
		binary.LittleEndian.PutUint64(page[off+8:off+16], e.Ref.IB)
		binary.LittleEndian.PutUint16(page[off+16:off+18], e.Cb)
		binary.LittleEndian.PutUint16(page[off+18:off+20], e.Cref)
	}
	page[488] = byte(len(entries))
	page[489] = byte(488 / bBTEntrySize)
	page[490] = byte(bBTEntrySize)
	page[491] = 0 // cLevel

	sig := ComputeSig(ib, pageBID.Raw())
	page[496] = byte(PTypeBBT)
	page[497] = byte(PTypeBBT)
	binary.LittleEndian.PutUint16(page[498:500], sig)
	binary.LittleEndian.PutUint64(page[504:512], pageBID.Raw())
	return page
}

func TestOpenReader_EndToEnd(t *testing.T) {
	storePlain := []byte("message store property context bytes")
	storeBID := DecodeBID(0x40)
	dataBlock, dataEntry := buildDataBlockImage(t, 0x5000, storeBID, storePlain, CryptMethodNone)

	bbtPage := buildBBTLeafPage(t, 0x2000, DecodeBID(0x11), []BBTEntry{dataEntry})

	nbtEntries := []NBTEntry{
		{NID: NIDMessageStore, BIDData: storeBID},
		{NID: NIDRootFolder, BIDData: storeBID, NIDParent: NIDMessageStore},
	}
	nbtPage := buildNBTLeafPage(t, 0x1000, DecodeBID(0x21), nbtEntries)

	img := make([]byte, 0x6000)
	copy(img[0x1000:], nbtPage)
	copy(img[0x2000:], bbtPage)
	copy(img[0x5000:], dataBlock)

	rd, err := OpenReader(&memReaderAt{data: img}, CryptMethodNone,
		BREF{BID: DecodeBID(0x21), IB: 0x1000},
		BREF{BID: DecodeBID(0x11), IB: 0x2000})
	require.NoError(t, err)

	ent, err := rd.Node(NIDMessageStore)
	require.NoError(t, err)
	require.Equal(t, storeBID, ent.BIDData)

	dt, err := rd.NodeDataTree(NIDMessageStore)
	require.NoError(t, err)
	got, err := dt.ConcatAll()
	require.NoError(t, err)
	require.Equal(t, storePlain, got)

	_, err = rd.Node(DecodeNID(0xFFFFFF))
	require.Error(t, err)
}

func TestReader_SubNodeTree_ZeroBIDIsEmpty(t *testing.T) {
	storeBID := DecodeBID(0x40)
	storePlain := []byte("x")
	dataBlock, dataEntry := buildDataBlockImage(t, 0x5000, storeBID, storePlain, CryptMethodNone)
	bbtPage := buildBBTLeafPage(t, 0x2000, DecodeBID(0x11), []BBTEntry{dataEntry})
	nbtEntries := []NBTEntry{
		{NID: NIDMessageStore, BIDData: storeBID},
		{NID: NIDRootFolder, BIDData: storeBID, NIDParent: NIDMessageStore},
	}
	nbtPage := buildNBTLeafPage(t, 0x1000, DecodeBID(0x21), nbtEntries)

	img := make([]byte, 0x6000)
	copy(img[0x1000:], nbtPage)
	copy(img[0x2000:], bbtPage)
	copy(img[0x5000:], dataBlock)

	rd, err := OpenReader(&memReaderAt{data: img}, CryptMethodNone,
		BREF{BID: DecodeBID(0x21), IB: 0x1000},
		BREF{BID: DecodeBID(0x11), IB: 0x2000})
	require.NoError(t, err)

	snb, err := rd.NodeSubNodeTree(NIDMessageStore)
	require.NoError(t, err)
	require.Equal(t, 0, snb.Count())
}
