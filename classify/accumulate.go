package classify

import (
	"fmt"
	"io"
	"time"
)

// Category is one of the eight buckets a completed round trip's duration,
// bytes, and count are charged to. Unlike Result, Category distinguishes the
// three ways a SENDER verdict can be subdivided for the summary row.
type Category int

const (
	CatSlowStart Category = iota
	CatApplication
	CatSendBuffer
	CatCC
	CatReceiveWindow
	CatBandwidth
	CatCongestion
	CatBufferBloat
	nCategories
)

// Accumulator holds one flow's running per-category totals. The original
// kept this in process-wide globals flushed at object destruction; here it
// is a plain value owned by the Analyzer that produces it, which prints it
// when the flow closes, so nothing is shared across flows.
type Accumulator struct {
	durationMs [nCategories]int64
	bytes      [nCategories]int64
	count      [nCategories]int64
}

// Add charges one completed round trip to a category.
func (a *Accumulator) Add(cat Category, duration time.Duration, bytes int64) {
	a.durationMs[cat] += duration.Milliseconds()
	a.bytes[cat] += bytes
	a.count[cat]++
}

// WriteSummary prints the fixed-order summary row spec.md §6 describes: 8
// durations (ms), 8 byte totals, 8 counts, in category-declaration order.
func (a *Accumulator) WriteSummary(w io.Writer, key fmt.Stringer) {
	fmt.Fprintf(w, "%s", key)
	for _, d := range a.durationMs {
		fmt.Fprintf(w, " %d", d)
	}
	for _, b := range a.bytes {
		fmt.Fprintf(w, " %d", b)
	}
	for _, c := range a.count {
		fmt.Fprintf(w, " %d", c)
	}
	fmt.Fprintln(w)
}
