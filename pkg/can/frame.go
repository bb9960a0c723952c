package can

import (
	"encoding/binary"
	"fmt"
)

// WireSize is the byte length of the kernel-compatible struct can_frame
// encoding used by pkg/can/socketcan.
const WireSize = 16

const (
	effFlag uint32 = 1 << 31 // extended frame format
	rtrFlag uint32 = 1 << 30 // remote transmission request
	errFlag uint32 = 1 << 29 // error frame (ignored on decode, never set on encode)
)

// Frame is a single CAN frame: an identifier, the remote-transmission-request
// bit, and a payload. RTR frames carry no data bytes but may still carry a
// DLC, preserved as metadata (spec §3/§9): Data() is empty for an RTR frame,
// DataLengthCode() still reports whatever the peer declared.
type Frame struct {
	id   ID
	rtr  bool
	data Data
}

// NewFrame builds a non-RTR data frame whose DLC equals len(payload).
func NewFrame(id ID, payload []byte) (Frame, error) {
	data, err := NewData(payload)
	if err != nil {
		return Frame{}, &NewFrameError{cause: err}
	}
	return Frame{id: id, data: data}, nil
}

// NewFrameWithLengthCode builds a non-RTR data frame with an explicit DLC,
// validating it against payload the same way NewDataWithLengthCode does.
func NewFrameWithLengthCode(id ID, payload []byte, dlc uint8) (Frame, error) {
	data, err := NewDataWithLengthCode(payload, dlc)
	if err != nil {
		return Frame{}, &NewFrameError{cause: err}
	}
	return Frame{id: id, data: data}, nil
}

// NewRTRFrame builds a remote-transmission-request frame carrying no payload
// bytes but tagged with dlc (0-15).
func NewRTRFrame(id ID, dlc uint8) (Frame, error) {
	data, err := Data{}.WithDataLengthCode(dlc)
	if err != nil {
		return Frame{}, &NewFrameError{cause: err}
	}
	return Frame{id: id, rtr: true, data: data}, nil
}

// ID returns the frame's identifier.
func (f Frame) ID() ID { return f.id }

// IsRTR reports whether this is a remote-transmission-request frame.
func (f Frame) IsRTR() bool { return f.rtr }

// Data returns the payload bytes. Always empty for an RTR frame.
func (f Frame) Data() []byte {
	if f.rtr {
		return nil
	}
	return f.data.Bytes()
}

// DataLengthCode returns the declared DLC, meaningful even on RTR frames.
func (f Frame) DataLengthCode() uint8 { return f.data.DataLengthCode() }

// MarshalBinary encodes f into the 16-byte kernel struct can_frame layout:
// a little-endian u32 id (EFF/RTR/ERR flags in the top three bits), the
// actual payload length, two reserved/padding bytes, the len8_dlc byte
// (nonzero only when the DLC is in [9,15]), then 8 payload bytes.
func (f Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, WireSize)

	word := f.id.AsU32()
	if f.id.IsExtended() {
		word |= effFlag
	}
	if f.rtr {
		word |= rtrFlag
	}
	binary.LittleEndian.PutUint32(buf[0:4], word)

	buf[4] = f.data.Len()
	// buf[5], buf[6] are reserved/padding, left zero.
	if dlc := f.data.DataLengthCode(); dlc > MaxDataLength {
		buf[7] = dlc
	}
	copy(buf[8:16], f.data.Bytes())

	return buf, nil
}

// UnmarshalFrame decodes the 16-byte kernel struct can_frame layout produced
// by MarshalBinary (or read directly off a SocketCAN raw socket).
func UnmarshalFrame(buf []byte) (Frame, error) {
	if len(buf) < WireSize {
		return Frame{}, &NewFrameError{cause: fmt.Errorf("wire buffer of %d bytes is shorter than the %d-byte frame encoding", len(buf), WireSize)}
	}

	word := binary.LittleEndian.Uint32(buf[0:4])
	extended := word&effFlag != 0
	rtr := word&rtrFlag != 0

	var id ID
	var err error
	if extended {
		id, err = NewExtendedCanID(word & MaxExtendedID)
	} else {
		id, err = NewStandardCanID(uint16(word & uint32(MaxStandardID)))
	}
	if err != nil {
		return Frame{}, &NewFrameError{cause: err}
	}

	length := buf[4]
	if length > MaxDataLength {
		length = MaxDataLength
	}
	dlc := length
	if len8 := buf[7]; len8 > MaxDataLength && len8 <= MaxDataLengthCode {
		dlc = len8
	}

	payload := buf[8 : 8+length]
	if rtr {
		data, err := Data{}.WithDataLengthCode(dlc)
		if err != nil {
			return Frame{}, &NewFrameError{cause: err}
		}
		return Frame{id: id, rtr: true, data: data}, nil
	}

	data, err := NewDataWithLengthCode(payload, dlc)
	if err != nil {
		return Frame{}, &NewFrameError{cause: err}
	}
	return Frame{id: id, data: data}, nil
}
