// Package bwfilter estimates a flow's bottleneck bandwidth as the maximum
// delivery rate observed over a trailing window of round trips.
package bwfilter

type sample struct {
	time  uint32
	value int64
}

// Filter is Kathleen Nichols' three-estimate windowed-max filter, the
// algorithm Linux's BBR congestion control uses to track bottleneck
// bandwidth over a rolling window. It keeps the best, second-best, and
// third-best samples seen in the window so that when the current best ages
// out, the next-best candidate is already known rather than needing a
// rescan.
//
// Grounded on the WindowedFilter<int64_t, MaxFilter<int64_t>, uint32_t,
// uint32_t> instantiation in original_source/eva/Analyzer.h; no source for
// the template itself was in the retrieval pack, so the three-slot
// eviction logic here follows the algorithm's standard published form.
type Filter struct {
	windowLength uint32
	hasSample    bool
	estimates    [3]sample
}

// New returns a Filter tracking the maximum value sampled over the last
// windowLength ticks. In this tool, ticks are round-trip indices.
func New(windowLength uint32) *Filter {
	return &Filter{windowLength: windowLength}
}

// Best returns the current windowed-maximum estimate, or zero if Update has
// never been called.
func (f *Filter) Best() int64 {
	return f.estimates[0].value
}

// Update folds in a new (value, time) sample. time must be monotonically
// non-decreasing across calls.
func (f *Filter) Update(value int64, time uint32) {
	if !f.hasSample || value >= f.estimates[0].value || time-f.estimates[2].time > f.windowLength {
		f.reset(value, time)
		return
	}

	s := sample{time, value}
	switch {
	case value >= f.estimates[1].value:
		f.estimates[1] = s
		f.estimates[2] = s
	case value >= f.estimates[2].value:
		f.estimates[2] = s
	}

	if time-f.estimates[0].time > f.windowLength {
		f.estimates[0] = f.estimates[1]
		f.estimates[1] = f.estimates[2]
		f.estimates[2] = s
		if time-f.estimates[0].time > f.windowLength {
			f.estimates[0] = f.estimates[1]
			f.estimates[1] = f.estimates[2]
		}
		return
	}

	if f.estimates[1].time == f.estimates[0].time && time-f.estimates[1].time > f.windowLength>>2 {
		f.estimates[1] = s
		f.estimates[2] = s
		return
	}
	if f.estimates[2].time == f.estimates[1].time && time-f.estimates[2].time > f.windowLength>>1 {
		f.estimates[2] = s
	}
}

func (f *Filter) reset(value int64, time uint32) {
	s := sample{time, value}
	f.estimates[0] = s
	f.estimates[1] = s
	f.estimates[2] = s
	f.hasSample = true
}
