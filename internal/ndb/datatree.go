package ndb

import (
	"fmt"

	"github.com/pstkit/pst/internal/utils"
)

// DataTree lazily assembles the ordered sequence of DataBlocks that make up
// a node's variable-length payload, transparently expanding up to two
// levels of XBLOCK/XXBLOCK indirection (MS-PST section 2.2.2.8.3).
type DataTree struct {
	pager  *Pager
	crypt  CryptMethod
	bbt    *BlockBTree
	root   BID
	blocks []DataBlock
	loaded bool
}

// newDataTree constructs a DataTree rooted at bid. Nothing is read until
// the tree is first resolved.
func newDataTree(pager *Pager, bbt *BlockBTree, crypt CryptMethod, root BID) *DataTree {
	return &DataTree{pager: pager, crypt: crypt, bbt: bbt, root: root}
}

// resolve performs the one-time expansion of the tree into its flat block list.
func (dt *DataTree) resolve() error {
	if dt.loaded {
		return nil
	}
	entry, err := dt.bbt.Get(dt.root)
	if err != nil {
		return err
	}
	blocks, err := dt.expand(entry, 0)
	if err != nil {
		return err
	}
	dt.blocks = blocks
	dt.loaded = true
	return nil
}

// expand decodes a single block and, if it is an XBLOCK/XXBLOCK, recurses
// into its children. depth guards against a malformed file cycling past
// the two indirection levels MS-PST allows.
func (dt *DataTree) expand(entry BBTEntry, depth int) ([]DataBlock, error) {
	if depth > 2 {
		return nil, NewCorruptError("data tree indirection exceeds two levels", nil)
	}
	if !entry.Ref.BID.Internal() {
		data, trailer, err := readRawBlock(dt.pager, dt.crypt, entry)
		if err != nil {
			return nil, err
		}
		return []DataBlock{{Data: data, Trailer: trailer}}, nil
	}

	raw, trailer, err := readRawBlock(dt.pager, dt.crypt, entry)
	if err != nil {
		return nil, err
	}
	xb, err := decodeXBlock(raw)
	if err != nil {
		return nil, err
	}
	_ = trailer

	var out []DataBlock
	for _, childBID := range xb.RgBID {
		childEntry, err := dt.bbt.Get(childBID)
		if err != nil {
			return nil, err
		}
		children, err := dt.expand(childEntry, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

// BlockCount returns the number of leaf data blocks in the tree.
func (dt *DataTree) BlockCount() (int, error) {
	if err := dt.resolve(); err != nil {
		return 0, err
	}
	return len(dt.blocks), nil
}

// Block returns the i-th leaf data block's plaintext content.
func (dt *DataTree) Block(i int) ([]byte, error) {
	if err := dt.resolve(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(dt.blocks) {
		return nil, NewNotFoundError(fmt.Sprintf("block index %d out of range [0,%d)", i, len(dt.blocks)))
	}
	return dt.blocks[i].Data, nil
}

// ConcatAll concatenates every leaf block's plaintext into a single buffer,
// failing if the summed block sizes exceed MaxDataTreeSize.
func (dt *DataTree) ConcatAll() ([]byte, error) {
	if err := dt.resolve(); err != nil {
		return nil, err
	}
	var total uint64
	for _, b := range dt.blocks {
		total += uint64(len(b.Data))
	}
	if total > utils.MaxDataTreeSize {
		return nil, NewCorruptError(fmt.Sprintf("data tree size %d exceeds maximum %d", total, utils.MaxDataTreeSize), nil)
	}
	out := make([]byte, 0, total)
	for _, b := range dt.blocks {
		out = append(out, b.Data...)
	}
	return out, nil
}
