package ndb

import (
	"encoding/binary"
	"fmt"
)

// BlockTrailerSize is the 16-byte trailer appended to every data block.
const BlockTrailerSize = 16

// BlockTrailer is the footer of a raw or XBLOCK/XXBLOCK data block, MS-PST
// section 2.2.2.8.
type BlockTrailer struct {
	Cb  uint16
	Sig uint16
	CRC uint32
	BID BID
}

// DecodeBlockTrailer parses the final 16 bytes of a block's on-disk allocation.
func DecodeBlockTrailer(b []byte) (BlockTrailer, error) {
	if len(b) != BlockTrailerSize {
		return BlockTrailer{}, NewCorruptError(fmt.Sprintf("block trailer must be %d bytes, got %d", BlockTrailerSize, len(b)), nil)
	}
	return BlockTrailer{
		Cb:  binary.LittleEndian.Uint16(b[0:2]),
		Sig: binary.LittleEndian.Uint16(b[2:4]),
		CRC: binary.LittleEndian.Uint32(b[4:8]),
		BID: DecodeBID(binary.LittleEndian.Uint64(b[8:16])),
	}, nil
}

// Verify checks the trailer's signature and CRC against the decoded block
// content and the absolute offset it was read from.
func (bt BlockTrailer) Verify(ib uint64, data []byte) error {
	wantSig := ComputeSig(ib, bt.BID.Raw())
	if bt.Sig != wantSig {
		return NewCorruptError(fmt.Sprintf("block signature mismatch: on-disk 0x%04X computed 0x%04X", bt.Sig, wantSig), nil)
	}
	wantCRC := ComputeCRC(data)
	if bt.CRC != wantCRC {
		return NewCorruptError(fmt.Sprintf("block CRC mismatch: on-disk 0x%08X computed 0x%08X", bt.CRC, wantCRC), nil)
	}
	return nil
}

// DataBlock is a single leaf block of plaintext data, already decoded and
// CRC-verified.
type DataBlock struct {
	Data    []byte
	Trailer BlockTrailer
}

// xBlockHeaderSize covers btype(1) + cLevel(1) + cEnt(2) + lcbTotal(4).
const xBlockHeaderSize = 8

// xBlock is the decoded form of an XBLOCK or XXBLOCK: an array of child BIDs
// plus the total byte count of the data they reference, transitively.
type xBlock struct {
	CLevel   byte
	LcbTotal uint32
	RgBID    []BID
}

func decodeXBlock(raw []byte) (xBlock, error) {
	if len(raw) < xBlockHeaderSize {
		return xBlock{}, NewCorruptError("XBLOCK shorter than header", nil)
	}
	btype := raw[0]
	cLevel := raw[1]
	if btype != 0x01 {
		return xBlock{}, NewCorruptError(fmt.Sprintf("XBLOCK btype must be 0x01, got 0x%02X", btype), nil)
	}
	if cLevel != 0x01 && cLevel != 0x02 {
		return xBlock{}, NewCorruptError(fmt.Sprintf("XBLOCK cLevel must be 1 or 2, got %d", cLevel), nil)
	}
	cEnt := binary.LittleEndian.Uint16(raw[2:4])
	lcbTotal := binary.LittleEndian.Uint32(raw[4:8])

	need := xBlockHeaderSize + int(cEnt)*8
	if len(raw) < need {
		return xBlock{}, NewCorruptError(fmt.Sprintf("XBLOCK too short for %d BID entries", cEnt), nil)
	}
	rgbid := make([]BID, cEnt)
	for i := 0; i < int(cEnt); i++ {
		off := xBlockHeaderSize + i*8
		rgbid[i] = DecodeBID(binary.LittleEndian.Uint64(raw[off : off+8]))
	}
	return xBlock{CLevel: cLevel, LcbTotal: lcbTotal, RgBID: rgbid}, nil
}

// readRawBlock reads, decrypts, and validates a single block given its BBT
// entry. It does not interpret btype; callers decide whether the result is
// a leaf DataBlock or the raw bytes of an XBLOCK/XXBLOCK.
func readRawBlock(pager *Pager, crypt CryptMethod, entry BBTEntry) ([]byte, BlockTrailer, error) {
	total := paddedBlockSize(entry.Cb)
	raw, err := pager.ReadBlockRange(entry.Ref.IB, total)
	if err != nil {
		return nil, BlockTrailer{}, err
	}
	if len(raw) < BlockTrailerSize {
		return nil, BlockTrailer{}, NewCorruptError("block allocation smaller than trailer", nil)
	}
	encoded := raw[:entry.Cb]
	trailer, err := DecodeBlockTrailer(raw[len(raw)-BlockTrailerSize:])
	if err != nil {
		return nil, BlockTrailer{}, err
	}
	if trailer.Cb != entry.Cb {
		return nil, BlockTrailer{}, NewCorruptError(fmt.Sprintf("trailer cb %d != BBT entry cb %d", trailer.Cb, entry.Cb), nil)
	}

	decoded, err := Decode(crypt, encoded)
	if err != nil {
		return nil, BlockTrailer{}, err
	}
	if err := trailer.Verify(entry.Ref.IB, decoded); err != nil {
		return nil, BlockTrailer{}, err
	}
	return decoded, trailer, nil
}
