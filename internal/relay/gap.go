package relay

import "github.com/satstream/relay/internal/stream"

// MissingRange computes the sequence numbers strictly between last and
// current, in delivery order. These are the transmissions announced while
// the feed was down (or lost in flight) that must be recovered before
// current counts as delivered.
//
// A nil last means nothing has been delivered this run, so there is nothing
// to recover. current at or behind last is treated as a wrap of the
// [0, 2^31) sequence space: the range is computed over unwrapped values and
// reduced back modulo 2^31. A repeated sequence number yields an empty range.
func MissingRange(last *uint32, current uint32) []uint32 {
	if last == nil || current == *last {
		return nil
	}

	lo := uint64(*last)
	hi := uint64(current)
	if hi < lo {
		hi += stream.MaxSeqNum
	}

	missing := make([]uint32, 0, hi-lo-1)
	for seq := lo + 1; seq < hi; seq++ {
		missing = append(missing, uint32(seq%stream.MaxSeqNum))
	}
	return missing
}
