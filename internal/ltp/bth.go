package ltp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/pstkit/pst/internal/ndb"
	"github.com/pstkit/pst/internal/utils"
)

const bthHeaderSize = 8

// BTreeOnHeap is a small B-tree whose nodes are themselves heap
// allocations (MS-PST section 2.3.2). Only a single level of leaf records
// (bIdxLevels == 0) is supported; a genuinely multi-level BTH is rejected
// as Unsupported rather than partially read.
type BTreeOnHeap struct {
	CbKey int
	CbEnt int
	heap  *HeapOnNode
	recs  []bthRecord
}

type bthRecord struct {
	key  []byte
	data []byte
}

// OpenBTH reads the BTHHEADER at rootHID and every leaf record reachable
// from it.
func OpenBTH(heap *HeapOnNode, rootHID HID) (*BTreeOnHeap, error) {
	hdr, err := heap.Get(rootHID)
	if err != nil {
		return nil, err
	}
	if len(hdr) < bthHeaderSize {
		return nil, ndbCorruptf("BTHHEADER shorter than %d bytes", bthHeaderSize)
	}
	bType := hdr[0]
	cbKey := int(hdr[1])
	cbEnt := int(hdr[2])
	bIdxLevels := hdr[3]
	hidRoot := DecodeHID(binary.LittleEndian.Uint32(hdr[4:8]))

	if bType != byte(ndb.BTypeBTH) {
		return nil, ndbCorruptf("BTHHEADER bType 0x%02X != 0xB5", bType)
	}
	if cbKey != 2 && cbKey != 4 && cbKey != 8 && cbKey != 16 {
		return nil, ndbCorruptf("BTHHEADER cbKey %d is not one of 2,4,8,16", cbKey)
	}
	if cbEnt == 0 || cbEnt > 32 {
		return nil, ndbCorruptf("BTHHEADER cbEnt %d must be in (0,32]", cbEnt)
	}
	if bIdxLevels != 0 {
		return nil, utils.NewError(utils.KindUnsupported, fmt.Sprintf("multi-level BTH (bIdxLevels=%d)", bIdxLevels), nil)
	}

	bth := &BTreeOnHeap{CbKey: cbKey, CbEnt: cbEnt, heap: heap}
	if hidRoot.Zero() {
		return bth, nil
	}
	leaf, err := heap.Get(hidRoot)
	if err != nil {
		return nil, err
	}
	recSize := cbKey + cbEnt
	if recSize == 0 || len(leaf)%recSize != 0 {
		return nil, ndbCorruptf("BTH leaf allocation of %d bytes is not a multiple of record size %d", len(leaf), recSize)
	}
	n := len(leaf) / recSize
	bth.recs = make([]bthRecord, n)
	for i := 0; i < n; i++ {
		off := i * recSize
		bth.recs[i] = bthRecord{
			key:  leaf[off : off+cbKey],
			data: leaf[off+cbKey : off+recSize],
		}
	}
	sort.Slice(bth.recs, func(i, j int) bool { return bytes.Compare(bth.recs[i].key, bth.recs[j].key) < 0 })
	return bth, nil
}

// Get returns the data value paired with key, or KindNotFound if absent.
func (bth *BTreeOnHeap) Get(key []byte) ([]byte, error) {
	i := sort.Search(len(bth.recs), func(i int) bool { return bytes.Compare(bth.recs[i].key, key) >= 0 })
	if i < len(bth.recs) && bytes.Equal(bth.recs[i].key, key) {
		return bth.recs[i].data, nil
	}
	return nil, ndbNotFoundf("BTH key %x", key)
}

// Count returns the number of leaf records.
func (bth *BTreeOnHeap) Count() int { return len(bth.recs) }

// All returns every (key, data) record in ascending key order.
func (bth *BTreeOnHeap) All() [][2][]byte {
	out := make([][2][]byte, len(bth.recs))
	for i, r := range bth.recs {
		out[i] = [2][]byte{r.key, r.data}
	}
	return out
}
