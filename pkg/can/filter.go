package can

// invertFilterFlag mirrors Linux's CAN_INV_FILTER: set on the can_id half of
// a struct can_filter to invert the match. Numerically the same bit as the
// error-frame flag on a frame's can_id, but it means something different in
// filter context.
const invertFilterFlag uint32 = 1 << 29

// Filter selects frames by identifier value/mask, frame format and RTR bit.
// The zero value matches everything: every predicate below starts as "don't
// care" and only narrows as builder methods are chained.
type Filter struct {
	idValue      uint32
	idMask       uint32
	wantExtended *bool
	wantRTR      *bool
	invert       bool
}

// NewFilter returns a filter matching every frame.
func NewFilter() Filter { return Filter{} }

// MatchIDValue narrows the filter to frames whose id's numeric value exactly
// matches id's; it leaves frame format unconstrained, so a Standard and an
// Extended id carrying the same numeric value both match. Chain
// MatchFrameFormat (or use MatchExactID) to also require a specific variant.
func (f Filter) MatchIDValue(id ID) Filter {
	f.idValue = id.AsU32()
	f.idMask = MaxExtendedID
	return f
}

// MatchIDMask narrows the filter to frames whose id agrees with id on every
// bit set in mask; it leaves frame format unconstrained. Bits of mask above
// the 29-bit id space are ignored.
func (f Filter) MatchIDMask(id ID, mask uint32) Filter {
	f.idMask = mask & MaxExtendedID
	f.idValue = id.AsU32() & f.idMask
	return f
}

// MatchExactID narrows the filter to id exactly, including its Standard/
// Extended variant: MatchIDValue composed with MatchFrameFormat.
func (f Filter) MatchExactID(id ID) Filter {
	return f.MatchIDValue(id).MatchFrameFormat(id.IsExtended())
}

// MatchFrameFormat narrows the filter to only Standard or only Extended ids.
func (f Filter) MatchFrameFormat(extended bool) Filter {
	f.wantExtended = &extended
	return f
}

// MatchRTROnly narrows the filter to remote-transmission-request frames.
func (f Filter) MatchRTROnly() Filter {
	want := true
	f.wantRTR = &want
	return f
}

// MatchDataOnly narrows the filter to non-RTR data frames.
func (f Filter) MatchDataOnly() Filter {
	want := false
	f.wantRTR = &want
	return f
}

// Inverted toggles the filter's match result.
func (f Filter) Inverted() Filter {
	f.invert = !f.invert
	return f
}

// Test evaluates the filter against frame locally (used by pkg/router; the
// kernel performs the equivalent test in-driver when RawFilter is installed
// via CAN_RAW_FILTER).
func (f Filter) Test(frame Frame) bool {
	matched := true
	if f.idMask != 0 {
		matched = matched && frame.ID().AsU32()&f.idMask == f.idValue&f.idMask
	}
	if f.wantExtended != nil {
		matched = matched && frame.ID().IsExtended() == *f.wantExtended
	}
	if f.wantRTR != nil {
		matched = matched && frame.IsRTR() == *f.wantRTR
	}
	if f.invert {
		matched = !matched
	}
	return matched
}

// RawFilter encodes the filter as a (can_id, can_mask) pair suitable for the
// kernel's struct can_filter, as installed via CAN_RAW_FILTER.
func (f Filter) RawFilter() (id uint32, mask uint32) {
	id, mask = f.idValue, f.idMask
	if f.wantExtended != nil {
		mask |= effFlag
		if *f.wantExtended {
			id |= effFlag
		}
	}
	if f.wantRTR != nil {
		mask |= rtrFlag
		if *f.wantRTR {
			id |= rtrFlag
		}
	}
	if f.invert {
		id |= invertFilterFlag
	}
	return id, mask
}
