package ltp

import (
	"encoding/binary"
	"sort"

	"github.com/pstkit/pst/internal/ndb"
)

// TColDesc describes one column of a Table Context's Row Matrix, MS-PST
// section 2.3.4.2.
type TColDesc struct {
	Tag    uint32
	IbData uint16
	CbData byte
	IBit   byte
}

// PropID returns the upper 16 bits of Tag, the column's property ID.
func (c TColDesc) PropID() PidTag { return PidTag(c.Tag >> 16) }

// PropType returns the lower 16 bits of Tag, the column's property type.
func (c TColDesc) PropType() PropertyType { return PropertyType(c.Tag) }

const tColDescSize = 8

// rgib indices into TCINFO's 4-entry offset array, MS-PST section 2.3.4.1.
const (
	tci4b = 0
	tci2b = 1
	tci1b = 2
	tciBm = 3
)

// TableContext is a row matrix backed by a row-index BTH and a row-data
// heap or sub-node data tree, MS-PST section 2.3.4.
type TableContext struct {
	heap      *HeapOnNode
	rowIndex  *BTreeOnHeap
	columns   []TColDesc
	rowSize   int
	offset4b  int
	offset2b  int
	offset1b  int
	cebOffset int
	rowBlocks [][]byte         // row matrix, concatenated in row-index order
	subNodes  *ndb.SubNodeBTree // may be nil; resolves sub-node-backed cell values
}

// OpenTableContext builds a TC over tree's heap. subNodes resolves
// hnidRows when the row matrix lives in a sub-node tree rather than the heap.
func OpenTableContext(tree *ndb.DataTree, subNodes *ndb.SubNodeBTree) (*TableContext, error) {
	heap, err := OpenHeapOnNode(tree)
	if err != nil {
		return nil, err
	}
	if heap.ClientSig != ndb.BTypeTC {
		return nil, ndbCorruptf("heap client signature %v is not bTypeTC", heap.ClientSig)
	}

	hdr, err := heap.Get(heap.UserRoot)
	if err != nil {
		return nil, err
	}
	if len(hdr) < 22 {
		return nil, ndbCorruptf("TCINFO shorter than fixed header")
	}
	bType := hdr[0]
	if bType != byte(ndb.BTypeTC) {
		return nil, ndbCorruptf("TCINFO bType 0x%02X != 0x7C", bType)
	}
	cCols := int(hdr[1])
	rgib := [4]uint16{
		binary.LittleEndian.Uint16(hdr[2:4]),
		binary.LittleEndian.Uint16(hdr[4:6]),
		binary.LittleEndian.Uint16(hdr[6:8]),
		binary.LittleEndian.Uint16(hdr[8:10]),
	}
	hidRowIndex := DecodeHID(binary.LittleEndian.Uint32(hdr[10:14]))
	hnidRows := HNID(binary.LittleEndian.Uint32(hdr[14:18]))

	colBytes := hdr[22:]
	need := cCols * tColDescSize
	if len(colBytes) < need {
		return nil, ndbCorruptf("TCINFO column array shorter than cCols*%d", tColDescSize)
	}
	columns := make([]TColDesc, cCols)
	for i := 0; i < cCols; i++ {
		off := i * tColDescSize
		rec := colBytes[off : off+tColDescSize]
		columns[i] = TColDesc{
			Tag:    binary.LittleEndian.Uint32(rec[0:4]),
			IbData: binary.LittleEndian.Uint16(rec[4:6]),
			CbData: rec[6],
			IBit:   rec[7],
		}
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].Tag < columns[j].Tag })

	tc := &TableContext{
		heap:      heap,
		columns:   columns,
		rowSize:   int(rgib[tciBm]),
		offset4b:  int(rgib[tci4b]),
		offset2b:  int(rgib[tci2b]),
		offset1b:  int(rgib[tci1b]),
		cebOffset: int(rgib[tci1b]),
		subNodes:  subNodes,
	}

	if !hidRowIndex.Zero() {
		rowIndex, err := OpenBTH(heap, hidRowIndex)
		if err != nil {
			return nil, err
		}
		tc.rowIndex = rowIndex
	}

	if hnidRows != 0 {
		rows, err := tc.resolveRowMatrix(hnidRows, subNodes)
		if err != nil {
			return nil, err
		}
		tc.rowBlocks = rows
	}
	return tc, nil
}

// resolveRowMatrix fetches the row matrix bytes, which live either as a
// single heap allocation (hnidRows is an HID) or in a sub-node data tree
// (hnidRows is an NID), and splits them into rowSize-byte rows.
func (tc *TableContext) resolveRowMatrix(hnidRows HNID, subNodes *ndb.SubNodeBTree) ([][]byte, error) {
	var all []byte
	if hnidRows.IsHID() {
		data, err := tc.heap.Get(hnidRows.AsHID())
		if err != nil {
			return nil, err
		}
		all = data
	} else {
		if subNodes == nil {
			return nil, ndbCorruptf("TC row matrix is sub-node-backed but node has no sub-node tree")
		}
		tree, err := subNodes.DataTree(hnidRows.AsNID())
		if err != nil {
			return nil, err
		}
		all, err = tree.ConcatAll()
		if err != nil {
			return nil, err
		}
	}
	if tc.rowSize == 0 {
		return nil, ndbCorruptf("TC row size is zero")
	}
	if len(all)%tc.rowSize != 0 {
		return nil, ndbCorruptf("row matrix of %d bytes is not a multiple of row size %d", len(all), tc.rowSize)
	}
	n := len(all) / tc.rowSize
	rows := make([][]byte, n)
	for i := 0; i < n; i++ {
		rows[i] = all[i*tc.rowSize : (i+1)*tc.rowSize]
	}
	return rows, nil
}

// RowCount returns the number of rows currently materialized in the row matrix.
func (tc *TableContext) RowCount() int { return len(tc.rowBlocks) }

// RowIndexOf resolves a 32-bit row ID (typically a NID) to its zero-based
// row-matrix index via the row-index BTH.
func (tc *TableContext) RowIndexOf(rowID uint32) (int, error) {
	if tc.rowIndex == nil {
		return 0, ndbNotFoundf("table context has no rows")
	}
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], rowID)
	data, err := tc.rowIndex.Get(key[:])
	if err != nil {
		return 0, ndbNotFoundf("row id 0x%X", rowID)
	}
	if len(data) < 4 {
		return 0, ndbCorruptf("TCROWID data shorter than 4 bytes")
	}
	return int(binary.LittleEndian.Uint32(data[0:4])), nil
}

// cebBit reports whether the Cell Existence Bitmap marks column iBit as
// present for the given row.
func cebBit(row []byte, cebOffset int, iBit byte) bool {
	ceb := row[cebOffset:]
	byteIdx := int(iBit) / 8
	if byteIdx >= len(ceb) {
		return false
	}
	return ceb[byteIdx]&(1<<(7-(iBit%8))) != 0
}

// Cell returns the raw bytes of column propID for the row at rowIdx, or
// KindNotFound if the Cell Existence Bitmap marks it absent.
func (tc *TableContext) Cell(rowIdx int, propID PidTag) ([]byte, PropertyType, error) {
	if rowIdx < 0 || rowIdx >= len(tc.rowBlocks) {
		return nil, 0, ndbNotFoundf("row index %d out of range [0,%d)", rowIdx, len(tc.rowBlocks))
	}
	row := tc.rowBlocks[rowIdx]
	col, ok := tc.findColumn(propID)
	if !ok {
		return nil, 0, ndbNotFoundf("column 0x%04X", uint16(propID))
	}
	if !cebBit(row, tc.cebOffset, col.IBit) {
		return nil, 0, ndbNotFoundf("column 0x%04X not set for row %d", uint16(propID), rowIdx)
	}
	if int(col.IbData)+int(col.CbData) > len(row) {
		return nil, 0, ndbCorruptf("column data [%d,%d) out of row bounds", col.IbData, int(col.IbData)+int(col.CbData))
	}
	return row[col.IbData : int(col.IbData)+int(col.CbData)], col.PropType(), nil
}

// As decodes the cell at (rowIdx, propID) the same way PropertyContext.As does.
func (tc *TableContext) As(rowIdx int, propID PidTag) (any, error) {
	raw, propType, err := tc.Cell(rowIdx, propID)
	if err != nil {
		return nil, err
	}
	if size, fixed := propType.FixedSize(); fixed && size <= 4 {
		return decodeByType(propType, raw[:size])
	}
	ref, hn := classify(binary.LittleEndian.Uint32(raw))
	switch ref {
	case valueRefHeap:
		data, err := tc.heap.Get(hn.AsHID())
		if err != nil {
			return nil, err
		}
		return decodeByType(propType, data)
	case valueRefSubNode:
		if tc.subNodes == nil {
			return nil, ndbCorruptf("table cell refers to a sub-node but node has no sub-node tree")
		}
		subTree, err := tc.subNodes.DataTree(hn.AsNID())
		if err != nil {
			return nil, err
		}
		data, err := subTree.ConcatAll()
		if err != nil {
			return nil, err
		}
		return decodeByType(propType, data)
	default:
		return decodeByType(propType, raw)
	}
}

func (tc *TableContext) findColumn(propID PidTag) (TColDesc, bool) {
	for _, c := range tc.columns {
		if c.PropID() == propID {
			return c, true
		}
	}
	return TColDesc{}, false
}

// Columns returns every column descriptor, in tag-sorted order.
func (tc *TableContext) Columns() []TColDesc { return tc.columns }
