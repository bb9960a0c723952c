// Package pdo reads and writes the communication and mapping parameters of
// a node's Process Data Objects (RPDOs and TPDOs) over SDO. It does not
// participate in PDO traffic itself; see pkg/router for consuming the PDOs
// once configured.
package pdo

import "github.com/canlink-go/cankit/pkg/can"

// maxPDONumber is the largest channel number CiA 301 reserves a
// communication/mapping object pair for (0x1400+511 still fits below the
// TPDO mapping range's ceiling).
const maxPDONumber uint16 = 511

func checkPDONumber(n uint16) error {
	if n > maxPDONumber {
		return &InvalidPDONumberError{Value: n}
	}
	return nil
}

// rpdoCommunicationIndex, rpdoMappingIndex, tpdoCommunicationIndex and
// tpdoMappingIndex compute the object dictionary index of PDO number n's
// communication or mapping record.
func rpdoCommunicationIndex(n uint16) uint16 { return 0x1400 + n }
func rpdoMappingIndex(n uint16) uint16       { return 0x1600 + n }
func tpdoCommunicationIndex(n uint16) uint16 { return 0x1800 + n }
func tpdoMappingIndex(n uint16) uint16       { return 0x1A00 + n }

// Mapping is one entry of a PDO's mapping record: the object it carries and
// how many bits of it to pack into the PDO.
type Mapping struct {
	Index     uint16
	SubIndex  uint8
	BitLength uint8
}

// mappingFromRaw decodes a mapping record entry as stored in the object
// dictionary: index in bits 31:16, sub-index in bits 15:8, bit length in
// bits 7:0.
func mappingFromRaw(raw uint32) Mapping {
	return Mapping{
		Index:     uint16(raw >> 16),
		SubIndex:  uint8(raw >> 8),
		BitLength: uint8(raw),
	}
}

func (m Mapping) raw() uint32 {
	return uint32(m.Index)<<16 | uint32(m.SubIndex)<<8 | uint32(m.BitLength)
}

// RPDOTransmissionType is the transmission type of a Receive PDO.
type RPDOTransmissionType uint8

// SynchronousRPDO is the only standard RPDO transmission type: the last
// received PDO value is applied at the next SYNC.
func SynchronousRPDO() RPDOTransmissionType { return RPDOTransmissionType(0) }

// IsSynchronous reports whether t is one of the synchronous transmission
// type values (0-0xF0).
func (t RPDOTransmissionType) IsSynchronous() bool { return t <= 0xF0 }

// IsReserved reports whether t falls in CiA 301's reserved range.
func (t RPDOTransmissionType) IsReserved() bool { return t >= 0xF1 && t <= 0xFB }

// EventDrivenRPDO applies the mapped values as soon as the PDO is received,
// rather than waiting for a SYNC.
func EventDrivenRPDO(manufacturerSpecific bool) RPDOTransmissionType {
	if manufacturerSpecific {
		return RPDOTransmissionType(0xFE)
	}
	return RPDOTransmissionType(0xFF)
}

// IsEventDriven reports whether t is event driven, and if so whether it is
// the manufacturer-specific variant.
func (t RPDOTransmissionType) IsEventDriven() (manufacturerSpecific bool, ok bool) {
	switch t {
	case 0xFE:
		return true, true
	case 0xFF:
		return false, true
	default:
		return false, false
	}
}

// TPDOTransmissionType is the transmission type of a Transmit PDO.
type TPDOTransmissionType uint8

// SynchronousAcyclicTPDO sends the PDO on the next SYNC only if a mapped
// value changed since the last transmission.
func SynchronousAcyclicTPDO() TPDOTransmissionType { return TPDOTransmissionType(0) }

// IsSynchronousAcyclic reports whether t is the acyclic synchronous type.
func (t TPDOTransmissionType) IsSynchronousAcyclic() bool { return t == 0 }

// SynchronousTPDO sends the PDO every interval SYNC commands (1 meaning
// every SYNC). interval must be in [1, 240].
func SynchronousTPDO(interval uint8) (TPDOTransmissionType, error) {
	if interval < 1 || interval > 0xF0 {
		return 0, &InvalidSyncIntervalError{Value: interval}
	}
	return TPDOTransmissionType(interval), nil
}

// IsSynchronous reports whether t is cyclic-synchronous, returning the
// configured interval.
func (t TPDOTransmissionType) IsSynchronous() (interval uint8, ok bool) {
	if t >= 1 && t <= 0xF0 {
		return uint8(t), true
	}
	return 0, false
}

// IsReserved reports whether t falls in CiA 301's reserved range.
func (t TPDOTransmissionType) IsReserved() bool { return t >= 0xF1 && t <= 0xFB }

// RTROnlyTPDO sends the PDO only in response to a remote-transmission
// request, optionally gated by SYNC as well.
func RTROnlyTPDO(synchronous bool) TPDOTransmissionType {
	if synchronous {
		return TPDOTransmissionType(0xFC)
	}
	return TPDOTransmissionType(0xFD)
}

// IsRTROnly reports whether t is one of the RTR-only transmission types.
func (t TPDOTransmissionType) IsRTROnly() (synchronous bool, ok bool) {
	switch t {
	case 0xFC:
		return true, true
	case 0xFD:
		return false, true
	default:
		return false, false
	}
}

// EventDrivenTPDO sends the PDO as soon as a mapped value changes, ignoring
// SYNC entirely.
func EventDrivenTPDO(manufacturerSpecific bool) TPDOTransmissionType {
	if manufacturerSpecific {
		return TPDOTransmissionType(0xFE)
	}
	return TPDOTransmissionType(0xFF)
}

// IsEventDriven reports whether t is event driven, and if so whether it is
// the manufacturer-specific variant.
func (t TPDOTransmissionType) IsEventDriven() (manufacturerSpecific bool, ok bool) {
	switch t {
	case 0xFE:
		return true, true
	case 0xFF:
		return false, true
	default:
		return false, false
	}
}

// RPDOCommunicationParameters is the communication record (sub-indices 1-5)
// of a Receive PDO.
type RPDOCommunicationParameters struct {
	Enabled          bool
	COBID            can.ID
	TransmissionType RPDOTransmissionType
	InhibitTime100us uint16
	DeadlineTimerMs  uint16
}

// RPDOConfiguration bundles an RPDO's communication parameters with its
// mapping record.
type RPDOConfiguration struct {
	Communication RPDOCommunicationParameters
	Mapping       []Mapping
}

// TPDOCommunicationParameters is the communication record (sub-indices 1-6)
// of a Transmit PDO.
type TPDOCommunicationParameters struct {
	Enabled          bool
	RTRAllowed       bool
	COBID            can.ID
	TransmissionType TPDOTransmissionType
	InhibitTime100us uint16
	EventTimerMs     uint16
	StartSync        uint8
}

// TPDOConfiguration bundles a TPDO's communication parameters with its
// mapping record.
type TPDOConfiguration struct {
	Communication TPDOCommunicationParameters
	Mapping       []Mapping
}

// decodeRPDOCOBID splits a raw sub-index-1 value into the enable bit (bit
// 31, clear means enabled) and the CAN identifier, honoring the extended-
// frame bit (bit 29).
func decodeRPDOCOBID(raw uint32) (enabled bool, id can.ID, err error) {
	enabled = raw&(1<<31) == 0
	id, err = decodeCOBID(raw)
	return enabled, id, err
}

// decodeTPDOCOBID is decodeRPDOCOBID plus the RTR-allowed bit (bit 30,
// clear means RTR is allowed).
func decodeTPDOCOBID(raw uint32) (enabled, rtrAllowed bool, id can.ID, err error) {
	enabled = raw&(1<<31) == 0
	rtrAllowed = raw&(1<<30) == 0
	id, err = decodeCOBID(raw)
	return enabled, rtrAllowed, id, err
}

func decodeCOBID(raw uint32) (can.ID, error) {
	if raw&(1<<29) != 0 {
		return can.NewExtendedCanID(raw & can.MaxExtendedID)
	}
	return can.NewStandardCanID(uint16(raw & uint32(can.MaxStandardID)))
}

// encodeRPDOCOBID packs enabled and id back into a sub-index-1 raw value.
func encodeRPDOCOBID(enabled bool, id can.ID) uint32 {
	raw := encodeCOBID(id)
	if !enabled {
		raw |= 1 << 31
	}
	return raw
}

// encodeTPDOCOBID is encodeRPDOCOBID plus the RTR-allowed bit.
func encodeTPDOCOBID(enabled, rtrAllowed bool, id can.ID) uint32 {
	raw := encodeRPDOCOBID(enabled, id)
	if !rtrAllowed {
		raw |= 1 << 30
	}
	return raw
}

func encodeCOBID(id can.ID) uint32 {
	if id.IsExtended() {
		return id.AsU32() | 1<<29
	}
	return id.AsU32()
}
