package ndb

import (
	"fmt"

	set3 "github.com/TomTonic/Set3"
)

// NodeBTree is the file-wide index from NID to NBTEntry, eagerly walked and
// flattened at open time (MS-PST section 2.2.2.7.7.4 leaves, assembled
// breadth-first).
type NodeBTree struct {
	entries map[NID]NBTEntry
}

// BlockBTree is the file-wide index from BID to BBTEntry.
type BlockBTree struct {
	entries map[BID]BBTEntry
}

// buildNodeBTree walks the NBT page tree breadth-first from its root BREF
// and materializes every leaf entry.
func buildNodeBTree(pager *Pager, root BREF) (*NodeBTree, error) {
	nbt := &NodeBTree{entries: make(map[NID]NBTEntry)}
	queue := []BREF{root}
	visited := set3.Empty[uint64]()
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if visited.Contains(ref.IB) {
			return nil, NewCorruptError(fmt.Sprintf("NBT page tree revisits offset 0x%X", ref.IB), nil)
		}
		visited.Add(ref.IB)

		page, err := pager.ReadPage(ref.IB)
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeBTPage(page, ref.IB)
		if err != nil {
			return nil, err
		}
		if decoded.Trailer.PType != PTypeNBT {
			return nil, NewCorruptError(fmt.Sprintf("expected NBT page, got %s", decoded.Trailer.PType), nil)
		}
		if decoded.CLevel == 0 {
			for _, raw := range decoded.Entries {
				ent, err := decodeNBTEntry(raw)
				if err != nil {
					return nil, err
				}
				if _, dup := nbt.entries[ent.NID]; dup {
					return nil, NewCorruptError(fmt.Sprintf("duplicate NID 0x%X in NBT", ent.NID.Raw()), nil)
				}
				nbt.entries[ent.NID] = ent
			}
			continue
		}
		for _, raw := range decoded.Entries {
			bte, err := decodeBTEntry(raw)
			if err != nil {
				return nil, err
			}
			queue = append(queue, bte.Page)
		}
	}
	if err := nbt.checkIntegrity(); err != nil {
		return nil, err
	}
	return nbt, nil
}

// checkIntegrity enforces the uniqueness invariants a well-formed store
// must satisfy: exactly one message store and root folder, at most one
// name-to-ID map, normal-folder template, search-folder template, and
// search-update queue.
func (nbt *NodeBTree) checkIntegrity() error {
	singleton := func(nid NID) int {
		if _, ok := nbt.entries[nid]; ok {
			return 1
		}
		return 0
	}
	if c := singleton(NIDMessageStore); c != 1 {
		return NewCorruptError("exactly one message store NID is required", nil)
	}
	if c := singleton(NIDRootFolder); c != 1 {
		return NewCorruptError("exactly one root folder NID is required", nil)
	}

	seen := set3.Empty[NID]()
	for nid := range nbt.entries {
		if nid.Type() == NIDTypeInternal && nid != NIDNameToIDMap {
			continue
		}
		if seen.Contains(nid) {
			return NewCorruptError(fmt.Sprintf("duplicate well-known NID 0x%X", nid.Raw()), nil)
		}
		seen.Add(nid)
	}
	return nil
}

// Get looks up a node's NBT entry by NID.
func (nbt *NodeBTree) Get(nid NID) (NBTEntry, error) {
	ent, ok := nbt.entries[nid]
	if !ok {
		return NBTEntry{}, NewNotFoundError(fmt.Sprintf("nid 0x%X", nid.Raw()))
	}
	return ent, nil
}

// All returns every NBT leaf sharing the given NID index, keyed by
// NIDType. This is the four-part folder lookup (MS-PST section 2.4.4.1):
// a folder's NormalFolder, HierarchyTable, ContentsTable, and
// AssocContentsTable NIDs all share one index and differ only in type.
// It is an error for two entries at the same index to carry the same
// NIDType, since the map could not represent both.
func (nbt *NodeBTree) All(index uint32) (map[NIDType]NBTEntry, error) {
	out := make(map[NIDType]NBTEntry)
	for nid, e := range nbt.entries {
		if nid.Index() != index {
			continue
		}
		if _, dup := out[nid.Type()]; dup {
			return nil, NewCorruptError(fmt.Sprintf("duplicate NIDType %s at index 0x%X", nid.Type(), index), nil)
		}
		out[nid.Type()] = e
	}
	return out, nil
}

// Count returns the number of distinct NIDs indexed.
func (nbt *NodeBTree) Count() int { return len(nbt.entries) }

// buildBlockBTree walks the BBT page tree breadth-first from its root BREF.
func buildBlockBTree(pager *Pager, root BREF) (*BlockBTree, error) {
	bbt := &BlockBTree{entries: make(map[BID]BBTEntry)}
	queue := []BREF{root}
	visited := set3.Empty[uint64]()
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if visited.Contains(ref.IB) {
			return nil, NewCorruptError(fmt.Sprintf("BBT page tree revisits offset 0x%X", ref.IB), nil)
		}
		visited.Add(ref.IB)

		page, err := pager.ReadPage(ref.IB)
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeBTPage(page, ref.IB)
		if err != nil {
			return nil, err
		}
		if decoded.Trailer.PType != PTypeBBT {
			return nil, NewCorruptError(fmt.Sprintf("expected BBT page, got %s", decoded.Trailer.PType), nil)
		}
		if decoded.CLevel == 0 {
			for _, raw := range decoded.Entries {
				ent, err := decodeBBTEntry(raw)
				if err != nil {
					return nil, err
				}
				if _, dup := bbt.entries[ent.Ref.BID]; dup {
					return nil, NewCorruptError(fmt.Sprintf("duplicate BID 0x%X in BBT", ent.Ref.BID.Raw()), nil)
				}
				bbt.entries[ent.Ref.BID] = ent
			}
			continue
		}
		for _, raw := range decoded.Entries {
			bte, err := decodeBTEntry(raw)
			if err != nil {
				return nil, err
			}
			queue = append(queue, bte.Page)
		}
	}
	return bbt, nil
}

// Get looks up a block's BBT entry by BID.
func (bbt *BlockBTree) Get(bid BID) (BBTEntry, error) {
	ent, ok := bbt.entries[bid]
	if !ok {
		return BBTEntry{}, NewNotFoundError(fmt.Sprintf("bid 0x%X", bid.Raw()))
	}
	return ent, nil
}

// Count returns the number of distinct BIDs indexed.
func (bbt *BlockBTree) Count() int { return len(bbt.entries) }
