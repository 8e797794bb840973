package ndb

import (
	"encoding/binary"
	"fmt"

	set3 "github.com/TomTonic/Set3"

	"github.com/pstkit/pst/internal/utils"
)

// SubNodeEntry is a resolved leaf of a node's sub-node B-tree: a local NID
// together with its data BID and an optional nested sub-node tree BID.
type SubNodeEntry struct {
	NID     NID
	BIDData BID
	BIDSub  BID
}

// SubNodeBTree is the per-node auxiliary index mapping local NIDs to
// nested data trees or further sub-node trees (MS-PST section 2.2.2.8.3.3).
// A node's sub-node tree is modeled here as a tree, not a graph: each
// SLEntry/SIEntry is visited exactly once during construction.
type SubNodeBTree struct {
	pager       *Pager
	bbt         *BlockBTree
	crypt       CryptMethod
	entries     map[NID]SubNodeEntry
	seenNID     *set3.Set3[NID]
	seenBID     *set3.Set3[BID]
	nestedTrees map[BID]*SubNodeBTree
}

const (
	slEntrySize = 24
	siEntrySize = 16
	subBlockHeaderSize = 8
)

// buildSubNodeBTree resolves the sub-node tree rooted at bid. A zero BID
// means the node has no sub-node tree; the result has zero entries.
func buildSubNodeBTree(pager *Pager, bbt *BlockBTree, crypt CryptMethod, bid BID) (*SubNodeBTree, error) {
	snb := &SubNodeBTree{
		pager:   pager,
		bbt:     bbt,
		crypt:   crypt,
		entries: make(map[NID]SubNodeEntry),
		seenNID: set3.Empty[NID](),
		seenBID: set3.Empty[BID](),
	}
	if bid.Zero() {
		return snb, nil
	}
	if err := snb.walkBID(bid); err != nil {
		return nil, err
	}
	return snb, nil
}

// walkBID reads and decodes the sub-node block at bid, guarding against a
// corrupt SIBLOCK chain that revisits a BID it has already expanded.
func (snb *SubNodeBTree) walkBID(bid BID) error {
	if snb.seenBID.Contains(bid) {
		return NewCorruptError(fmt.Sprintf("sub-node tree revisits bid %s", bid), nil)
	}
	snb.seenBID.Add(bid)

	entry, err := snb.bbt.Get(bid)
	if err != nil {
		return err
	}
	data, _, err := readRawBlock(snb.pager, snb.crypt, entry)
	if err != nil {
		return err
	}
	return snb.walk(data)
}

// walk decodes one SLBLOCK or SIBLOCK and, for an SIBLOCK, recurses into
// each referenced SLBLOCK.
func (snb *SubNodeBTree) walk(raw []byte) error {
	if len(raw) < subBlockHeaderSize {
		return NewCorruptError("sub-node block shorter than header", nil)
	}
	btype := raw[0]
	cLevel := raw[1]
	cEnt := binary.LittleEndian.Uint16(raw[2:4])
	if btype != 0x02 {
		return NewCorruptError(fmt.Sprintf("sub-node block btype must be 0x02, got 0x%02X", btype), nil)
	}

	body := raw[subBlockHeaderSize:]

	switch cLevel {
	case 0x00: // SLBLOCK: leaf entries
		need := int(cEnt) * slEntrySize
		if len(body) < need {
			return NewCorruptError("SLBLOCK too short for declared entry count", nil)
		}
		for i := 0; i < int(cEnt); i++ {
			off := i * slEntrySize
			rec := body[off : off+slEntrySize]
			nid := DecodeNID(uint32(binary.LittleEndian.Uint64(rec[0:8])))
			bidData := DecodeBID(binary.LittleEndian.Uint64(rec[8:16]))
			bidSub := DecodeBID(binary.LittleEndian.Uint64(rec[16:24]))
			if snb.seenNID.Contains(nid) {
				return NewCorruptError(fmt.Sprintf("duplicate local NID 0x%X in sub-node tree", nid.Raw()), nil)
			}
			snb.seenNID.Add(nid)
			snb.entries[nid] = SubNodeEntry{NID: nid, BIDData: bidData, BIDSub: bidSub}
		}
		return nil
	case 0x01: // SIBLOCK: intermediate entries pointing at SLBLOCKs
		need := int(cEnt) * siEntrySize
		if len(body) < need {
			return NewCorruptError("SIBLOCK too short for declared entry count", nil)
		}
		for i := 0; i < int(cEnt); i++ {
			off := i * siEntrySize
			rec := body[off : off+siEntrySize]
			childBID := DecodeBID(binary.LittleEndian.Uint64(rec[8:16]))
			if err := snb.walkBID(childBID); err != nil {
				return err
			}
		}
		return nil
	default:
		return NewCorruptError(fmt.Sprintf("sub-node block cLevel must be 0 or 1, got %d", cLevel), nil)
	}
}

// Get looks up a local NID within this node's sub-node tree.
func (snb *SubNodeBTree) Get(nid NID) (SubNodeEntry, error) {
	ent, ok := snb.entries[nid]
	if !ok {
		return SubNodeEntry{}, NewNotFoundError(fmt.Sprintf("sub-node nid 0x%X", nid.Raw()))
	}
	return ent, nil
}

// DataTree resolves nid's primary data tree. If nid isn't a local entry of
// this sub-node tree, the search continues recursively into every nested
// sub-node tree reachable from this level (MS-PST section 2.2.2.8.3.3.3),
// matching the original reader's getDataTree: a NID held behind a nested
// sub-node tree is still expected to resolve through the owning node's
// top-level SubNodeBTree.
func (snb *SubNodeBTree) DataTree(nid NID) (*DataTree, error) {
	return snb.dataTree(nid, set3.Empty[BID]())
}

func (snb *SubNodeBTree) dataTree(nid NID, visited *set3.Set3[BID]) (*DataTree, error) {
	if entry, ok := snb.entries[nid]; ok {
		return newDataTree(snb.pager, snb.bbt, snb.crypt, entry.BIDData), nil
	}
	for _, entry := range snb.entries {
		if entry.BIDSub.Zero() || visited.Contains(entry.BIDSub) {
			continue
		}
		visited.Add(entry.BIDSub)
		nested, err := snb.nestedTree(entry.BIDSub)
		if err != nil {
			return nil, err
		}
		dt, err := nested.dataTree(nid, visited)
		if err == nil {
			return dt, nil
		}
		if !utils.KindNotFound.Is(err) {
			return nil, err
		}
	}
	return nil, NewNotFoundError(fmt.Sprintf("nid 0x%X not found in sub-node tree or its nested sub-node trees", nid.Raw()))
}

// Nested returns the nested sub-node tree rooted at nid's own bidSub, a
// direct lookup at this level only — unlike DataTree, it does not search
// into other nested sub-node trees for nid (MS-PST section 2.2.2.8.3.3.3's
// getNestedSubNodeTree looks up exactly the entry asked for).
func (snb *SubNodeBTree) Nested(nid NID) (*SubNodeBTree, error) {
	entry, ok := snb.entries[nid]
	if !ok || entry.BIDSub.Zero() {
		return nil, NewNotFoundError(fmt.Sprintf("nid 0x%X has no nested sub-node tree", nid.Raw()))
	}
	return snb.nestedTree(entry.BIDSub)
}

// nestedTree lazily builds and caches the nested SubNodeBTree rooted at bidSub.
func (snb *SubNodeBTree) nestedTree(bidSub BID) (*SubNodeBTree, error) {
	if snb.nestedTrees == nil {
		snb.nestedTrees = make(map[BID]*SubNodeBTree)
	}
	if cached, ok := snb.nestedTrees[bidSub]; ok {
		return cached, nil
	}
	nested, err := buildSubNodeBTree(snb.pager, snb.bbt, snb.crypt, bidSub)
	if err != nil {
		return nil, err
	}
	snb.nestedTrees[bidSub] = nested
	return nested, nil
}

// All returns every resolved sub-node entry.
func (snb *SubNodeBTree) All() []SubNodeEntry {
	out := make([]SubNodeEntry, 0, len(snb.entries))
	for _, e := range snb.entries {
		out = append(out, e)
	}
	return out
}

// Count returns the number of local NIDs in this sub-node tree.
func (snb *SubNodeBTree) Count() int { return len(snb.entries) }
