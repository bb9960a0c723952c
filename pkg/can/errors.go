package can

import "fmt"

// InvalidIDError reports a numeric identifier outside its declared bit width.
type InvalidIDError struct {
	Value    uint32
	Extended bool
}

func (e *InvalidIDError) Error() string {
	if e.Extended {
		return fmt.Sprintf("can: id 0x%X exceeds the 29-bit extended range", e.Value)
	}
	return fmt.Sprintf("can: id 0x%X exceeds the 11-bit standard range", e.Value)
}

// ParseIDError reports a failure to parse a CAN identifier from text, either
// because the text wasn't a recognized number or because the parsed number
// doesn't fit in any CAN id variant.
type ParseIDError struct {
	InvalidFormat bool
	InvalidValue  bool
	cause         error
}

func (e *ParseIDError) Error() string {
	if e.InvalidFormat {
		return fmt.Sprintf("can: invalid id format: %s", e.cause)
	}
	return fmt.Sprintf("can: invalid id value: %s", e.cause)
}

func (e *ParseIDError) Unwrap() error { return e.cause }

// TooMuchDataError reports a payload longer than the 8 bytes a classic CAN
// frame can carry.
type TooMuchDataError struct {
	Length int
}

func (e *TooMuchDataError) Error() string {
	return fmt.Sprintf("can: payload of %d bytes exceeds the 8-byte maximum", e.Length)
}

// InvalidDataLengthCodeError reports a DLC outside the representable [0,15]
// range, or one that does not agree with the payload length (a DLC of 0-8
// must equal it, a DLC of 9-15 needs an 8-byte payload).
type InvalidDataLengthCodeError struct {
	Value uint8
}

func (e *InvalidDataLengthCodeError) Error() string {
	if e.Value > MaxDataLengthCode {
		return fmt.Sprintf("can: data length code %d exceeds the maximum of 15", e.Value)
	}
	return fmt.Sprintf("can: data length code %d does not match the payload length", e.Value)
}

// NewFrameError wraps whichever of the id/payload/DLC checks failed while
// constructing a Frame.
type NewFrameError struct {
	cause error
}

func (e *NewFrameError) Error() string {
	return fmt.Sprintf("can: invalid frame: %s", e.cause)
}

func (e *NewFrameError) Unwrap() error { return e.cause }
