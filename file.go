// Package pst reads the Node Database and List/Table/Property layers of a
// Unicode Microsoft Outlook PST file (MS-PST). It opens a file, walks its
// node and block B-trees, and exposes Property Contexts and Table Contexts
// for the nodes within it; building Message/Folder semantics atop those is
// left to callers.
package pst

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pstkit/pst/internal/ltp"
	"github.com/pstkit/pst/internal/ndb"
	"github.com/pstkit/pst/internal/utils"
)

// headerSize is the fixed size of a Unicode-format PST header.
const headerSize = 564

// rootOffset is the absolute file offset of the 72-byte ROOT structure.
const rootOffset = 180

var magicDwMagic = [4]byte{0x21, 0x42, 0x44, 0x4E} // "!BDN"
var magicClient = [2]byte{0x53, 0x4D}              // "SM"

const (
	wVerClientUnicode = 19
	bPlatform         = 0x01
	bSentinelValue    = 0x80
)

// Header holds the validated fields of a Unicode PST file header, MS-PST
// section 2.2.2.6.
type Header struct {
	FileSize     uint64
	IbAMapLast   uint64
	NBTRoot      ndb.BREF
	BBTRoot      ndb.BREF
	CryptMethod  ndb.CryptMethod
}

// parseHeader validates and decodes the 564-byte Unicode PST header.
func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, utils.NewError(utils.KindCorrupt, fmt.Sprintf("header shorter than %d bytes", headerSize), nil)
	}
	if [4]byte(buf[0:4]) != magicDwMagic {
		return Header{}, utils.NewError(utils.KindCorrupt, "dwMagic is not \"!BDN\"", nil)
	}
	if [2]byte(buf[8:10]) != magicClient {
		return Header{}, utils.NewError(utils.KindCorrupt, "wMagicClient is not \"SM\"", nil)
	}
	wVer := binary.LittleEndian.Uint16(buf[10:12])
	if wVer < 23 {
		return Header{}, utils.NewError(utils.KindUnsupported, fmt.Sprintf("wVer %d is an ANSI-format PST, not Unicode", wVer), nil)
	}
	wVerClient := binary.LittleEndian.Uint16(buf[12:14])
	if wVerClient != wVerClientUnicode {
		return Header{}, utils.NewError(utils.KindCorrupt, fmt.Sprintf("wVerClient %d != 19", wVerClient), nil)
	}
	if buf[14] != bPlatform || buf[15] != bPlatform {
		return Header{}, utils.NewError(utils.KindCorrupt, "bPlatformCreate/bPlatformAccess must both be 0x01", nil)
	}

	rgnid := buf[44:172]
	for i := 0; i < 32; i++ {
		v := binary.LittleEndian.Uint32(rgnid[i*4 : i*4+4])
		if v&0x1F != uint32(i)&0x1F {
			return Header{}, utils.NewError(utils.KindCorrupt, fmt.Sprintf("rgnid[%d] NID_TYPE mismatch", i), nil)
		}
	}

	root := buf[rootOffset : rootOffset+72]
	ibFileEof := binary.LittleEndian.Uint64(root[4:12])
	ibAMapLast := binary.LittleEndian.Uint64(root[12:20])
	nbtRef, err := ndb.DecodeBREF(root[36:52])
	if err != nil {
		return Header{}, utils.WrapError("decoding BREFNBT", err)
	}
	bbtRef, err := ndb.DecodeBREF(root[52:68])
	if err != nil {
		return Header{}, utils.WrapError("decoding BREFBBT", err)
	}

	if buf[512] != bSentinelValue {
		return Header{}, utils.NewError(utils.KindCorrupt, fmt.Sprintf("bSentinel 0x%02X != 0x80", buf[512]), nil)
	}
	crypt := ndb.CryptMethod(buf[513])
	if crypt != ndb.CryptMethodPermute {
		return Header{}, utils.NewError(utils.KindUnsupported, fmt.Sprintf("bCryptMethod 0x%02X", byte(crypt)), nil)
	}

	return Header{
		FileSize:    ibFileEof,
		IbAMapLast:  ibAMapLast,
		NBTRoot:     nbtRef,
		BBTRoot:     bbtRef,
		CryptMethod: crypt,
	}, nil
}

// File is an opened PST file: a validated header plus the NDB reader built
// from its two B-tree roots.
type File struct {
	f      *os.File
	Header Header
	reader *ndb.Reader
}

// Open validates path's header and eagerly materializes the node and block
// B-trees. Callers must Close the returned File.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("opening %s", path), err)
	}

	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		f.Close()
		return nil, utils.WrapError("reading header", err)
	}
	hdr, err := parseHeader(buf)
	if err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, utils.WrapError("stat", err)
	}
	if uint64(info.Size()) < hdr.FileSize {
		f.Close()
		return nil, utils.NewError(utils.KindCorrupt, fmt.Sprintf("file is %d bytes, header declares %d", info.Size(), hdr.FileSize), nil)
	}

	reader, err := ndb.OpenReader(f, hdr.CryptMethod, hdr.NBTRoot, hdr.BBTRoot)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, Header: hdr, reader: reader}, nil
}

// Close releases the underlying file handle.
func (pf *File) Close() error {
	return pf.f.Close()
}

// Node resolves a NID to its NBT entry.
func (pf *File) Node(nid ndb.NID) (ndb.NBTEntry, error) {
	return pf.reader.Node(nid)
}

// Block resolves a BID to its BBT entry.
func (pf *File) Block(bid ndb.BID) (ndb.BBTEntry, error) {
	return pf.reader.BBT.Get(bid)
}

// DataTree builds the lazy data tree for a data BID.
func (pf *File) DataTree(bid ndb.BID) (*ndb.DataTree, error) {
	return pf.reader.DataTree(bid)
}

// SubNodeTree resolves the sub-node tree rooted at bid, if any.
func (pf *File) SubNodeTree(bid ndb.BID) (*ndb.SubNodeBTree, error) {
	return pf.reader.SubNodeTree(bid)
}

// OpenPropertyContext builds the Property Context stored in nid's primary
// data tree, wiring in nid's sub-node tree for HNID values that spill
// outside the heap.
func (pf *File) OpenPropertyContext(nid ndb.NID) (*ltp.PropertyContext, error) {
	tree, err := pf.reader.NodeDataTree(nid)
	if err != nil {
		return nil, err
	}
	subNodes, err := pf.reader.NodeSubNodeTree(nid)
	if err != nil {
		return nil, err
	}
	return ltp.OpenPropertyContext(tree, subNodes)
}

// OpenTableContext builds the Table Context stored in nid's primary data tree.
func (pf *File) OpenTableContext(nid ndb.NID) (*ltp.TableContext, error) {
	tree, err := pf.reader.NodeDataTree(nid)
	if err != nil {
		return nil, err
	}
	subNodes, err := pf.reader.NodeSubNodeTree(nid)
	if err != nil {
		return nil, err
	}
	return ltp.OpenTableContext(tree, subNodes)
}
