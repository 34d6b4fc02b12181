// Package classify turns a flow's rate samples and round-trip closures into
// a per-round-trip throughput-limit verdict, following the voting scheme and
// heuristic overrides of the original eva::Analyzer.
package classify

// Result is the vote a single rate sample casts, and the majority verdict a
// round trip is given before label-specific overrides and subdivision.
//
// Grounded on original_source/eva/Analyzer.h's Result enum.
type Result int

const (
	SlowStart Result = iota
	Bandwidth
	Sender
	Receiver
	Congestion
	Unknown
	nResults
)

func (r Result) String() string {
	switch r {
	case SlowStart:
		return "slow start"
	case Bandwidth:
		return "bandwidth limited"
	case Sender:
		return "sender limited"
	case Receiver:
		return "receiver limited"
	case Congestion:
		return "congestion limited"
	default:
		return "unknown limited"
	}
}
