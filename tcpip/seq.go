package tcpip

// SeqNum is a TCP sequence or acknowledgement number. It wraps at 2^32, so
// every comparison and subtraction goes through signed 32-bit difference
// arithmetic instead of the natural unsigned order.
//
// Grounded on m-lab/etl/tcp/sequence.go's SeqNum.diff and the Sequence
// operators in original_source/eva/util.h.
type SeqNum uint32

// Diff returns sn-other as a signed 32-bit delta, mod 2^32.
func (sn SeqNum) Diff(other SeqNum) int32 {
	return int32(sn - other)
}

// Less reports whether sn precedes other in sequence-space order.
func (sn SeqNum) Less(other SeqNum) bool {
	return sn.Diff(other) < 0
}

// LessEqual reports whether sn precedes or equals other.
func (sn SeqNum) LessEqual(other SeqNum) bool {
	return sn.Diff(other) <= 0
}

// Greater reports whether sn follows other in sequence-space order.
func (sn SeqNum) Greater(other SeqNum) bool {
	return sn.Diff(other) > 0
}

// GreaterEqual reports whether sn follows or equals other.
func (sn SeqNum) GreaterEqual(other SeqNum) bool {
	return sn.Diff(other) >= 0
}

// Add returns sn+delta, wrapping at 2^32.
func (sn SeqNum) Add(delta uint32) SeqNum {
	return sn + SeqNum(delta)
}
