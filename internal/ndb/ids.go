// Package ndb implements the Node Database layer of a Unicode PST file: the
// file-wide B-tree pair, block assembly across XBLOCK/XXBLOCK indirection,
// and the per-node sub-node B-tree. See MS-PST section 2.2.2.
package ndb

import (
	"encoding/binary"
	"fmt"
)

// NIDType is the low 5 bits of a NID; it has no meaning to the NDB layer
// itself but is carried so the LTP and Messaging layers can dispatch on it.
type NIDType uint32

// Node ID types, MS-PST section 2.2.2.1.
const (
	NIDTypeHID                  NIDType = 0x00
	NIDTypeInternal             NIDType = 0x01
	NIDTypeNormalFolder         NIDType = 0x02
	NIDTypeSearchFolder         NIDType = 0x03
	NIDTypeNormalMessage        NIDType = 0x04
	NIDTypeAttachment           NIDType = 0x05
	NIDTypeSearchUpdateQueue    NIDType = 0x06
	NIDTypeSearchCriteriaObject NIDType = 0x07
	NIDTypeAssocMessage         NIDType = 0x08
	NIDTypeContentsTableIndex   NIDType = 0x0A
	NIDTypeReceiveFolderTable   NIDType = 0x0B
	NIDTypeOutgoingQueueTable   NIDType = 0x0C
	NIDTypeHierarchyTable       NIDType = 0x0D
	NIDTypeContentsTable        NIDType = 0x0E
	NIDTypeAssocContentsTable   NIDType = 0x0F
	NIDTypeSearchContentsTable  NIDType = 0x10
	NIDTypeAttachmentTable      NIDType = 0x11
	NIDTypeRecipientTable       NIDType = 0x12
	NIDTypeSearchTableIndex     NIDType = 0x13
	NIDTypeLTP                  NIDType = 0x1F
	NIDTypeInvalid              NIDType = 0xFFFFFFFF
)

func (t NIDType) String() string {
	switch t {
	case NIDTypeHID:
		return "HID"
	case NIDTypeInternal:
		return "INTERNAL"
	case NIDTypeNormalFolder:
		return "NORMAL_FOLDER"
	case NIDTypeSearchFolder:
		return "SEARCH_FOLDER"
	case NIDTypeNormalMessage:
		return "NORMAL_MESSAGE"
	case NIDTypeAttachment:
		return "ATTACHMENT"
	case NIDTypeSearchUpdateQueue:
		return "SEARCH_UPDATE_QUEUE"
	case NIDTypeSearchCriteriaObject:
		return "SEARCH_CRITERIA_OBJECT"
	case NIDTypeAssocMessage:
		return "ASSOC_MESSAGE"
	case NIDTypeContentsTableIndex:
		return "CONTENTS_TABLE_INDEX"
	case NIDTypeReceiveFolderTable:
		return "RECEIVE_FOLDER_TABLE"
	case NIDTypeOutgoingQueueTable:
		return "OUTGOING_QUEUE_TABLE"
	case NIDTypeHierarchyTable:
		return "HIERARCHY_TABLE"
	case NIDTypeContentsTable:
		return "CONTENTS_TABLE"
	case NIDTypeAssocContentsTable:
		return "ASSOC_CONTENTS_TABLE"
	case NIDTypeSearchContentsTable:
		return "SEARCH_CONTENTS_TABLE"
	case NIDTypeAttachmentTable:
		return "ATTACHMENT_TABLE"
	case NIDTypeRecipientTable:
		return "RECIPIENT_TABLE"
	case NIDTypeSearchTableIndex:
		return "SEARCH_TABLE_INDEX"
	case NIDTypeLTP:
		return "LTP"
	default:
		return "INVALID"
	}
}

// NID is a 32-bit node identifier: low 5 bits are the NIDType, upper 27
// bits are the index. Two NIDs are equal iff their raw values match.
type NID uint32

// DecodeNID extracts a NID from its 32-bit wire representation.
func DecodeNID(raw uint32) NID { return NID(raw) }

// Type returns the NIDType embedded in the low 5 bits.
func (n NID) Type() NIDType { return NIDType(uint32(n) & 0x1F) }

// Index returns the raw value with the low 5 type bits cleared; the upper
// 27 bits are left in place, not shifted down.
func (n NID) Index() uint32 { return uint32(n) &^ 0x1F }

// Raw returns the unmodified 32-bit value.
func (n NID) Raw() uint32 { return uint32(n) }

func (n NID) String() string {
	return fmt.Sprintf("NID(0x%08X type=%s index=0x%X)", uint32(n), n.Type(), n.Index())
}

// Well-known NIDs, MS-PST section 2.4.1.
const (
	NIDMessageStore           NID = 0x21
	NIDNameToIDMap            NID = 0x61
	NIDNormalFolderTemplate   NID = 0xA1
	NIDSearchFolderTemplate   NID = 0xC1
	NIDRootFolder             NID = 0x122
	NIDSearchManagementQueue  NID = 0x1E1
)

// BID is a 64-bit block identifier. Bit 1 (0x02) flags "internal" (a
// metadata block such as an XBLOCK/XXBLOCK/SLBLOCK/SIBLOCK, not raw data).
// Page BIDs use the full width and increment by 1; block BIDs reserve the
// low two bits and increment by 4.
type BID uint64

// DecodeBID extracts a BID from its 64-bit wire representation.
func DecodeBID(raw uint64) BID { return BID(raw) }

// Internal reports whether this BID names a metadata block rather than raw data.
func (b BID) Internal() bool { return uint64(b)&0x02 != 0 }

// Index returns the bidIndex with the two reserved flag bits masked off.
func (b BID) Index() uint64 { return (uint64(b) >> 2) << 2 }

// Raw returns the unmodified 64-bit value.
func (b BID) Raw() uint64 { return uint64(b) }

// Zero reports whether this BID is the sentinel "absent" value (bidSub==0,
// or a sub-node BID of 0 meaning "no nested sub-node tree").
func (b BID) Zero() bool { return uint64(b) == 0 }

func (b BID) String() string {
	return fmt.Sprintf("BID(0x%016X internal=%v)", uint64(b), b.Internal())
}

// BREF pairs a BID with its absolute file offset: the sole bridge between
// logical identity and physical location.
type BREF struct {
	BID BID
	IB  uint64
}

// DecodeBREF reads a 16-byte BREF: 8 bytes BID followed by 8 bytes IB, both little-endian.
func DecodeBREF(b []byte) (BREF, error) {
	if len(b) != 16 {
		return BREF{}, fmt.Errorf("BREF must be 16 bytes, got %d", len(b))
	}
	return BREF{
		BID: DecodeBID(binary.LittleEndian.Uint64(b[0:8])),
		IB:  binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

func (r BREF) String() string {
	return fmt.Sprintf("BREF{%s @0x%X}", r.BID, r.IB)
}
