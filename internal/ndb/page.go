package ndb

import (
	"encoding/binary"
	"fmt"
)

// PType identifies the contents of a 512-byte page, MS-PST section 2.2.2.7.
type PType byte

const (
	PTypeBBT   PType = 0x80
	PTypeNBT   PType = 0x81
	PTypeFMap  PType = 0x82
	PTypePMap  PType = 0x83
	PTypeAMap  PType = 0x84
	PTypeFPMap PType = 0x85
	PTypeDL    PType = 0x86
)

func (p PType) String() string {
	switch p {
	case PTypeBBT:
		return "BBT"
	case PTypeNBT:
		return "NBT"
	case PTypeFMap:
		return "FMap"
	case PTypePMap:
		return "PMap"
	case PTypeAMap:
		return "AMap"
	case PTypeFPMap:
		return "FPMap"
	case PTypeDL:
		return "DL"
	default:
		return fmt.Sprintf("PType(0x%02X)", byte(p))
	}
}

// BType identifies the kind of heap-on-node the HNHDR's bClientSig field
// names, MS-PST section 2.3.1.2.
type BType byte

const (
	BTypeTC  BType = 0x7C
	BTypeBTH BType = 0xB5
	BTypePC  BType = 0xBC
)

func (b BType) String() string {
	switch b {
	case BTypeTC:
		return "TC"
	case BTypeBTH:
		return "BTH"
	case BTypePC:
		return "PC"
	default:
		return fmt.Sprintf("BType(0x%02X)", byte(b))
	}
}

// PageSize is the fixed on-disk size of every BTPage.
const PageSize = 512

// PageTrailerSize is the 16-byte trailer appended to every page.
const PageTrailerSize = 16

// PageTrailer is the common footer of every 512-byte page, MS-PST section 2.2.2.7.1.
type PageTrailer struct {
	PType       PType
	PTypeRepeat PType
	Sig         uint16
	CRC         uint32
	BID         BID
}

// DecodePageTrailer parses the trailing 16 bytes of a page.
func DecodePageTrailer(b []byte) (PageTrailer, error) {
	if len(b) != PageTrailerSize {
		return PageTrailer{}, NewCorruptError(fmt.Sprintf("page trailer must be %d bytes, got %d", PageTrailerSize, len(b)), nil)
	}
	pt := PageTrailer{
		PType:       PType(b[0]),
		PTypeRepeat: PType(b[1]),
		Sig:         binary.LittleEndian.Uint16(b[2:4]),
		CRC:         binary.LittleEndian.Uint32(b[4:8]),
		BID:         DecodeBID(binary.LittleEndian.Uint64(b[8:16])),
	}
	if pt.PType != pt.PTypeRepeat {
		return PageTrailer{}, NewCorruptError(fmt.Sprintf("page trailer ptype 0x%02X != ptypeRepeat 0x%02X", pt.PType, pt.PTypeRepeat), nil)
	}
	return pt, nil
}

// Verify checks the trailer's signature against the absolute offset and BID
// it was read from. Only NBT and BBT pages carry a non-zero computed signature.
func (pt PageTrailer) Verify(ib uint64) error {
	if pt.PType != PTypeNBT && pt.PType != PTypeBBT {
		return nil
	}
	want := ComputeSig(ib, pt.BID.Raw())
	if pt.Sig != want {
		return NewCorruptError(fmt.Sprintf("page signature mismatch: on-disk 0x%04X computed 0x%04X", pt.Sig, want), nil)
	}
	return nil
}

// Fixed Unicode-format widths of the B-tree page entries: an 8-byte key
// plus whichever value type the page holds.
const (
	btKeySize      = 8
	bTEntrySize    = 24 // key(8) + BREF(16)
	nBTEntrySize   = 32 // nid(8) + bidData(8) + bidSub(8) + nidParent(4) + pad(4)
	bBTEntrySize   = 24 // BREF(16) + cb(2) + cref(2) + pad(4)
)

// BTPageHeader is the common header preceding a page's entry array, MS-PST
// section 2.2.2.7.7.1.
type BTPageHeader struct {
	CEnt      byte
	CEntMax   byte
	CbEnt     byte
	CLevel    byte
	PageTrail PageTrailer
}

// BTEntry is an interior B-tree page entry: key plus a BREF to the child page.
type BTEntry struct {
	Key  uint64
	Page BREF
}

// NBTEntry is a Node B-tree leaf entry, MS-PST section 2.2.2.7.7.4.
// Field read order is nid, bidData, bidSub, nidParent, dwPadding — this
// matches the on-disk layout exactly, not the narrative order in prose
// descriptions of the structure.
type NBTEntry struct {
	NID       NID
	BIDData   BID
	BIDSub    BID
	NIDParent NID
}

// BBTEntry is a Block B-tree leaf entry, MS-PST section 2.2.2.7.7.3.
type BBTEntry struct {
	Ref       BREF
	Cb        uint16
	Cref      uint16
}

// decodeBTEntry reads a 24-byte interior entry: 8-byte key + 16-byte BREF.
func decodeBTEntry(b []byte) (BTEntry, error) {
	if len(b) != bTEntrySize {
		return BTEntry{}, NewCorruptError(fmt.Sprintf("BTENTRY must be %d bytes, got %d", bTEntrySize, len(b)), nil)
	}
	ref, err := DecodeBREF(b[8:24])
	if err != nil {
		return BTEntry{}, err
	}
	return BTEntry{Key: binary.LittleEndian.Uint64(b[0:8]), Page: ref}, nil
}

// decodeNBTEntry reads a 32-byte NBT leaf entry.
func decodeNBTEntry(b []byte) (NBTEntry, error) {
	if len(b) != nBTEntrySize {
		return NBTEntry{}, NewCorruptError(fmt.Sprintf("NBTENTRY must be %d bytes, got %d", nBTEntrySize, len(b)), nil)
	}
	return NBTEntry{
		NID:       DecodeNID(uint32(binary.LittleEndian.Uint64(b[0:8]))),
		BIDData:   DecodeBID(binary.LittleEndian.Uint64(b[8:16])),
		BIDSub:    DecodeBID(binary.LittleEndian.Uint64(b[16:24])),
		NIDParent: DecodeNID(binary.LittleEndian.Uint32(b[24:28])),
	}, nil
}

// decodeBBTEntry reads a 24-byte BBT leaf entry: 16-byte BREF + cb(2) + cref(2) + padding(4).
func decodeBBTEntry(b []byte) (BBTEntry, error) {
	if len(b) != bBTEntrySize {
		return BBTEntry{}, NewCorruptError(fmt.Sprintf("BBTENTRY must be %d bytes, got %d", bBTEntrySize, len(b)), nil)
	}
	ref, err := DecodeBREF(b[0:16])
	if err != nil {
		return BBTEntry{}, err
	}
	return BBTEntry{
		Ref:  ref,
		Cb:   binary.LittleEndian.Uint16(b[16:18]),
		Cref: binary.LittleEndian.Uint16(b[18:20]),
	}, nil
}

// decodeBTPageHeader reads the fixed layout fields following the 488 bytes
// of entry slots: rgentries[488], cEnt, cEntMax, cbEnt, cLevel, dwPadding,
// then the 16-byte PageTrailer — total 512 bytes.
func decodeBTPageHeader(page []byte) (cEnt, cEntMax, cbEnt, cLevel byte, trailer PageTrailer, err error) {
	if len(page) != PageSize {
		err = NewCorruptError(fmt.Sprintf("page must be %d bytes, got %d", PageSize, len(page)), nil)
		return
	}
	cEnt = page[488]
	cEntMax = page[489]
	cbEnt = page[490]
	cLevel = page[491]
	trailer, err = DecodePageTrailer(page[496:512])
	return
}

// DecodedBTPage is a 512-byte B-tree page split into its header fields and
// raw entry slots, leaving interpretation of each cbEnt-sized slot to the
// caller (interior vs leaf shape depends on cLevel and the tree's ptype).
type DecodedBTPage struct {
	CEnt    byte
	CEntMax byte
	CbEnt   byte
	CLevel  byte
	Entries [][]byte
	Trailer PageTrailer
}

// DecodeBTPage splits the 488-byte entry region into cEnt slots of cbEnt
// bytes each and validates the trailer against ib.
func DecodeBTPage(page []byte, ib uint64) (DecodedBTPage, error) {
	cEnt, cEntMax, cbEnt, cLevel, trailer, err := decodeBTPageHeader(page)
	if err != nil {
		return DecodedBTPage{}, err
	}
	if err := trailer.Verify(ib); err != nil {
		return DecodedBTPage{}, err
	}
	if trailer.PType != PTypeNBT && trailer.PType != PTypeBBT {
		return DecodedBTPage{}, NewCorruptError(fmt.Sprintf("not a B-tree page: ptype %s", trailer.PType), nil)
	}
	if cbEnt == 0 {
		return DecodedBTPage{}, NewCorruptError("cbEnt must be non-zero", nil)
	}
	maxSlots := 488 / int(cbEnt)
	if int(cEnt) > maxSlots {
		return DecodedBTPage{}, NewCorruptError(fmt.Sprintf("cEnt %d exceeds capacity %d for cbEnt %d", cEnt, maxSlots, cbEnt), nil)
	}
	entries := make([][]byte, cEnt)
	for i := 0; i < int(cEnt); i++ {
		start := i * int(cbEnt)
		entries[i] = page[start : start+int(cbEnt)]
	}
	_ = cEntMax
	return DecodedBTPage{
		CEnt:    cEnt,
		CEntMax: cEntMax,
		CbEnt:   cbEnt,
		CLevel:  cLevel,
		Entries: entries,
		Trailer: trailer,
	}, nil
}
