package ltp

// PropertyType is the on-disk type tag of a property value, the lower 16
// bits of a property tag (MS-PST section 2.5, mirroring [MS-OXCDATA]
// section 2.11.1).
type PropertyType uint16

const (
	PtypInteger16    PropertyType = 0x0002
	PtypInteger32    PropertyType = 0x0003
	PtypFloating32   PropertyType = 0x0004
	PtypFloating64   PropertyType = 0x0005
	PtypCurrency     PropertyType = 0x0006
	PtypFloatingTime PropertyType = 0x0007
	PtypErrorCode    PropertyType = 0x000A
	PtypBoolean      PropertyType = 0x000B
	PtypObject       PropertyType = 0x000D
	PtypInteger64    PropertyType = 0x0014
	PtypString8      PropertyType = 0x001E
	PtypString       PropertyType = 0x001F
	PtypTime         PropertyType = 0x0040
	PtypGuid         PropertyType = 0x0048
	PtypServerId     PropertyType = 0x00FB
	PtypRestriction  PropertyType = 0x00FD
	PtypRuleAction   PropertyType = 0x00FE
	PtypBinary       PropertyType = 0x0102

	PtypMultipleInteger16  PropertyType = 0x1002
	PtypMultipleInteger32  PropertyType = 0x1003
	PtypMultipleFloating32 PropertyType = 0x1004
	PtypMultipleFloating64 PropertyType = 0x1005
	PtypMultipleCurrency   PropertyType = 0x1006
	PtypMultipleFloatingTime PropertyType = 0x1007
	PtypMultipleInteger64  PropertyType = 0x1014
	PtypMultipleString     PropertyType = 0x101F
	PtypMultipleString8    PropertyType = 0x101E
	PtypMultipleTime       PropertyType = 0x1040
	PtypMultipleGuid       PropertyType = 0x1048
	PtypMultipleBinary     PropertyType = 0x1102

	PtypUnspecified PropertyType = 0x0000
	PtypNull        PropertyType = 0x0001
)

// FixedSize returns the in-line byte width of a fixed-size property type,
// and false for variable-size or multi-value types whose payload is
// addressed indirectly via an HNID.
func (t PropertyType) FixedSize() (int, bool) {
	switch t {
	case PtypInteger16, PtypBoolean:
		return 2, true
	case PtypInteger32, PtypFloating32, PtypErrorCode:
		return 4, true
	case PtypFloating64, PtypCurrency, PtypFloatingTime, PtypInteger64, PtypTime:
		return 8, true
	default:
		return 0, false
	}
}

// Multivalued reports whether t is one of the PtypMultiple* array types.
func (t PropertyType) Multivalued() bool {
	switch t {
	case PtypMultipleInteger16, PtypMultipleInteger32, PtypMultipleFloating32,
		PtypMultipleFloating64, PtypMultipleCurrency, PtypMultipleFloatingTime,
		PtypMultipleInteger64, PtypMultipleString, PtypMultipleString8,
		PtypMultipleTime, PtypMultipleGuid, PtypMultipleBinary:
		return true
	default:
		return false
	}
}

// PidTag names a well-known property used by the Messaging layer and by
// the name-to-ID map, MS-PST section 2.4.7.1 plus [MS-OXPROPS].
type PidTag uint16

const (
	PidTagRecordKey             PidTag = 0x0FF9
	PidTagDisplayName           PidTag = 0x3001
	PidTagIpmSubTreeEntryId     PidTag = 0x35E0
	PidTagIpmWastebasketEntryId PidTag = 0x35E3
	PidTagFinderEntryId         PidTag = 0x35E7
	PidTagContentCount          PidTag = 0x3602
	PidTagContentUnreadCount    PidTag = 0x3603
	PidTagSubfolders            PidTag = 0x360A
	PidTagNameidBucketCount     PidTag = 0x0001
	PidTagNameidStreamGuid      PidTag = 0x0002
	PidTagNameidStreamEntry     PidTag = 0x0003
	PidTagNameidStreamString    PidTag = 0x0004
	PidTagNameidBucketBase      PidTag = 0x1000
	PidTagItemTemporaryFlags    PidTag = 0x1097
	PidTagLtpParentNid          PidTag = 0x67F1
	PidTagLtpRowId              PidTag = 0x67F2
	PidTagLtpRowVer             PidTag = 0x67F3
	PidTagReplItemid            PidTag = 0x0E30
	PidTagReplChangenum         PidTag = 0x0E33
	PidTagReplVersionHistory    PidTag = 0x0E34
	PidTagReplFlags             PidTag = 0x0E38
)
