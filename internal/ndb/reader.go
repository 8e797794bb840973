package ndb

import (
	"fmt"

	"github.com/pstkit/pst/internal/utils"
)

// Reader is the NDB layer's entry point: the pager plus the two file-wide
// B-trees, exposing factory methods the LTP layer uses to resolve a node's
// data and sub-node trees without knowing about pages or blocks directly.
type Reader struct {
	Pager *Pager
	NBT   *NodeBTree
	BBT   *BlockBTree
	Crypt CryptMethod
}

// OpenReader builds the NDB reader from the two root BREFs recorded in the
// file header, eagerly materializing both B-trees.
func OpenReader(r utils.ReaderAt, crypt CryptMethod, nbtRoot, bbtRoot BREF) (*Reader, error) {
	pager := NewPager(r)

	bbt, err := buildBlockBTree(pager, bbtRoot)
	if err != nil {
		return nil, utils.WrapError("building block B-tree", err)
	}
	nbt, err := buildNodeBTree(pager, nbtRoot)
	if err != nil {
		return nil, utils.WrapError("building node B-tree", err)
	}
	return &Reader{Pager: pager, NBT: nbt, BBT: bbt, Crypt: crypt}, nil
}

// Node resolves a NID to its NBT entry.
func (rd *Reader) Node(nid NID) (NBTEntry, error) {
	return rd.NBT.Get(nid)
}

// DataTree builds the lazy data tree for a node's primary data BID.
func (rd *Reader) DataTree(bid BID) (*DataTree, error) {
	if bid.Zero() {
		return nil, NewNotFoundError(fmt.Sprintf("node has no data block (bid 0x%X)", bid.Raw()))
	}
	return newDataTree(rd.Pager, rd.BBT, rd.Crypt, bid), nil
}

// SubNodeTree resolves a node's sub-node tree, if any.
func (rd *Reader) SubNodeTree(bid BID) (*SubNodeBTree, error) {
	return buildSubNodeBTree(rd.Pager, rd.BBT, rd.Crypt, bid)
}

// NodeDataTree is a convenience combining Node and DataTree for the common
// case of reading a node's primary payload by NID.
func (rd *Reader) NodeDataTree(nid NID) (*DataTree, error) {
	ent, err := rd.Node(nid)
	if err != nil {
		return nil, err
	}
	return rd.DataTree(ent.BIDData)
}

// NodeSubNodeTree resolves the sub-node tree attached to a node, by NID.
func (rd *Reader) NodeSubNodeTree(nid NID) (*SubNodeBTree, error) {
	ent, err := rd.Node(nid)
	if err != nil {
		return nil, err
	}
	return rd.SubNodeTree(ent.BIDSub)
}
