//go:build windows

package serac

import "golang.org/x/sys/windows"

// Native FWP structures, mirrored field for field so descriptors can be
// passed to fwpuclnt.dll directly. Offsets assume 64-bit Windows.

type fwpmDisplayData0 struct {
	name        *uint16
	description *uint16
}

type fwpByteBlob struct {
	size uint32
	data *byte
}

// fwpValue0 mirrors FWP_VALUE0 and FWP_CONDITION_VALUE0: a type tag and an
// 8-byte union. Integers up to 32 bits live inline in value; uint64 and
// structured types are pointers.
type fwpValue0 struct {
	valueType uint32
	value     uintptr
}

type fwpRange0 struct {
	valueLow  fwpValue0
	valueHigh fwpValue0
}

type fwpV4AddrAndMask struct {
	addr uint32
	mask uint32
}

type fwpV6AddrAndMask struct {
	addr         [16]byte
	prefixLength uint8
}

type fwpmFilterCondition0 struct {
	fieldKey       GUID
	matchType      uint32
	conditionValue fwpValue0
}

// fwpmAction0 mirrors FWPM_ACTION0; the GUID union member is the callout
// key for callout actions and reserved otherwise.
type fwpmAction0 struct {
	actionType uint32
	calloutKey GUID
}

type fwpmSession0 struct {
	sessionKey           GUID
	displayData          fwpmDisplayData0
	flags                uint32
	txnWaitTimeoutInMSec uint32
	processId            uint32
	sid                  *windows.SID
	username             *uint16
	kernelMode           int32
}

type fwpmSubLayer0 struct {
	subLayerKey  GUID
	displayData  fwpmDisplayData0
	flags        uint32
	providerKey  *GUID
	providerData fwpByteBlob
	weight       uint16
}

type fwpmProvider0 struct {
	providerKey  GUID
	displayData  fwpmDisplayData0
	flags        uint32
	providerData fwpByteBlob
	serviceName  *uint16
}

type fwpmFilter0 struct {
	filterKey           GUID
	displayData         fwpmDisplayData0
	flags               uint32
	providerKey         *GUID
	providerData        fwpByteBlob
	layerKey            GUID
	subLayerKey         GUID
	weight              fwpValue0
	numFilterConditions uint32
	filterCondition     *fwpmFilterCondition0
	action              fwpmAction0
	rawContext          [2]uint64 // union with the provider context key
	reserved            *GUID
	filterId            uint64
	effectiveWeight     fwpValue0
}

type fwpmFilterEnumTemplate0 struct {
	providerKey             *GUID
	layerKey                GUID
	enumType                uint32
	flags                   uint32
	providerContextTemplate uintptr
	numFilterConditions     uint32
	filterCondition         *fwpmFilterCondition0
	actionMask              uint32
	calloutKey              *GUID
}

type fwpmSubLayerEnumTemplate0 struct {
	providerKey *GUID
}

// FWP_DATA_TYPE tags used by this package.
const (
	fwpEmpty           uint32 = 0
	fwpUint8           uint32 = 1
	fwpUint16          uint32 = 2
	fwpUint32          uint32 = 3
	fwpUint64          uint32 = 4
	fwpByteArray16Type uint32 = 11
	fwpByteBlobType    uint32 = 12
	fwpV4AddrMask      uint32 = 0x100
	fwpV6AddrMask      uint32 = 0x101
	fwpRangeType       uint32 = 0x102
)

const (
	fwpmSessionFlagDynamic   = 0x00000001
	fwpFilterEnumOverlapping = 1
	rpcCAuthnDefault         = 0xFFFFFFFF
	errorNoMoreItems         = 259
)
