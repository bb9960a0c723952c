package can

// MaxDataLength is the largest payload a classic CAN frame can carry.
const MaxDataLength = 8

// MaxDataLengthCode is the largest representable data length code.
const MaxDataLengthCode uint8 = 15

// Data is a CAN payload of zero to eight bytes, plus a separate data length
// code (DLC). For DLCs 0-8 the payload length equals the DLC. For DLCs 9-15
// the payload length is always 8 and the DLC is preserved purely as an opaque
// tag some devices use to smuggle extra metadata (see spec §3).
type Data struct {
	bytes  [MaxDataLength]byte
	length uint8
	dlc    uint8
}

// NewData builds a Data whose DLC equals the payload length.
func NewData(payload []byte) (Data, error) {
	if len(payload) > MaxDataLength {
		return Data{}, &TooMuchDataError{Length: len(payload)}
	}
	var d Data
	copy(d.bytes[:], payload)
	d.length = uint8(len(payload))
	d.dlc = d.length
	return d, nil
}

// NewDataWithLengthCode builds a Data with an explicit DLC, validating that
// either the payload length equals dlc (dlc in [0,8]) or the payload length
// is 8 and dlc is in [9,15].
func NewDataWithLengthCode(payload []byte, dlc uint8) (Data, error) {
	if len(payload) > MaxDataLength {
		return Data{}, &TooMuchDataError{Length: len(payload)}
	}
	if dlc > MaxDataLengthCode {
		return Data{}, &InvalidDataLengthCodeError{Value: dlc}
	}
	switch {
	case dlc <= MaxDataLength && len(payload) != int(dlc):
		return Data{}, &InvalidDataLengthCodeError{Value: dlc}
	case dlc > MaxDataLength && len(payload) != MaxDataLength:
		return Data{}, &InvalidDataLengthCodeError{Value: dlc}
	}
	var d Data
	copy(d.bytes[:], payload)
	d.length = uint8(len(payload))
	d.dlc = dlc
	return d, nil
}

// WithDataLengthCode returns a copy of d re-tagged with dlc. The resulting
// payload length is min(dlc, 8): existing bytes are kept up to that length,
// truncated or zero-padded as needed. Fails only if dlc exceeds 15.
func (d Data) WithDataLengthCode(dlc uint8) (Data, error) {
	if dlc > MaxDataLengthCode {
		return Data{}, &InvalidDataLengthCodeError{Value: dlc}
	}
	n := dlc
	if n > MaxDataLength {
		n = MaxDataLength
	}
	out := Data{dlc: dlc, length: n}
	copy(out.bytes[:n], d.bytes[:])
	return out, nil
}

// Bytes returns the actual payload (Len() bytes).
func (d Data) Bytes() []byte {
	return append([]byte(nil), d.bytes[:d.length]...)
}

// Len returns the actual payload length (0-8).
func (d Data) Len() uint8 { return d.length }

// DataLengthCode returns the declared DLC (0-15), which may exceed Len()
// when it carries an opaque tag in [9,15].
func (d Data) DataLengthCode() uint8 { return d.dlc }
