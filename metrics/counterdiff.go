package metrics

// CounterDiffResult tags which variant of CounterDiff.Update's result is
// populated.
type CounterDiffResult uint8

const (
	// FirstTime means no previous reading existed; there is no diff yet.
	FirstTime CounterDiffResult = iota
	// Difference means the counter did not wrap between readings.
	Difference
	// CorrectedDifference means the counter wrapped exactly once between
	// readings and the diff below has been corrected for it.
	CorrectedDifference
)

// CounterDiffOutcome is the result of a single CounterDiff.Update call.
type CounterDiffOutcome struct {
	Kind CounterDiffResult
	// Diff is meaningful only for Difference and CorrectedDifference.
	Diff uint64
}

// CounterDiff is a stateful subtractor for wrap-around-safe delta
// computation on an unsigned hardware counter that wraps at MaxValue
// (inclusive). Every probe that reads a wrapping register (RAPL, perf_event,
// powercap, AMD/NVIDIA energy counters) must route readings through one
// CounterDiff instance per counter, and must Reset it on pipeline restart.
type CounterDiff struct {
	maxValue uint64
	last     uint64
	hasLast  bool
}

// NewCounterDiff returns a CounterDiff for a counter that wraps after
// maxValue (i.e. the counter's domain is [0, maxValue]).
func NewCounterDiff(maxValue uint64) *CounterDiff {
	return &CounterDiff{maxValue: maxValue}
}

// Update feeds a new raw reading and returns how it relates to the previous
// one. The invariant maintained is that any returned Diff is <= MaxValue.
func (c *CounterDiff) Update(reading uint64) CounterDiffOutcome {
	if !c.hasLast {
		c.last = reading
		c.hasLast = true
		return CounterDiffOutcome{Kind: FirstTime}
	}

	prev := c.last
	c.last = reading

	if reading >= prev {
		return CounterDiffOutcome{Kind: Difference, Diff: reading - prev}
	}

	// Single wrap: the counter went from prev up through MaxValue, wrapped
	// to 0, and continued up to reading.
	diff := c.maxValue - prev + reading + 1
	return CounterDiffOutcome{Kind: CorrectedDifference, Diff: diff}
}

// Reset discards the last reading, so the next Update reports FirstTime.
// Must be called whenever the pipeline (re)starts, since a counter's
// hardware register may have been reset or may belong to a different run.
func (c *CounterDiff) Reset() {
	c.hasLast = false
	c.last = 0
}
