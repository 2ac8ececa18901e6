package metrics

// MeasurementBuffer is an ordered batch of points moved as one unit through
// the pipeline: exactly one "flush unit" between a source and the transform
// stage, or between the transform stage and an output. It is owned by at
// most one task at a time; a channel send transfers that ownership.
type MeasurementBuffer struct {
	points []MeasurementPoint
}

// NewMeasurementBuffer allocates a buffer with capacity for sizeHint points
// without pre-populating any.
func NewMeasurementBuffer(sizeHint int) *MeasurementBuffer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &MeasurementBuffer{points: make([]MeasurementPoint, 0, sizeHint)}
}

// Append adds a point to the end of the buffer.
func (b *MeasurementBuffer) Append(p MeasurementPoint) {
	b.points = append(b.points, p)
}

// Len returns the number of points currently in the buffer.
func (b *MeasurementBuffer) Len() int {
	return len(b.points)
}

// Cap returns the buffer's current capacity hint.
func (b *MeasurementBuffer) Cap() int {
	return cap(b.points)
}

// Points returns the buffer's points. Callers must not retain the slice
// past the buffer's ownership window.
func (b *MeasurementBuffer) Points() []MeasurementPoint {
	return b.points
}

// ForEach calls fn for every point, in order.
func (b *MeasurementBuffer) ForEach(fn func(MeasurementPoint)) {
	for _, p := range b.points {
		fn(p)
	}
}

// Clone returns a shallow copy of the buffer (an independent points slice
// sharing the same MeasurementPoint values, which are themselves treated as
// immutable once built). Used by the output fan-out dispatcher so each
// subscriber owns an independent buffer reference.
func (b *MeasurementBuffer) Clone() *MeasurementBuffer {
	cp := make([]MeasurementPoint, len(b.points))
	copy(cp, b.points)
	return &MeasurementBuffer{points: cp}
}

// MeasurementAccumulator is the write-only view of a MeasurementBuffer
// exposed to a Source's Poll method, so a source can append points without
// being able to read or clear buffer state set up by the runtime.
type MeasurementAccumulator struct {
	buf *MeasurementBuffer
}

func NewMeasurementAccumulator(buf *MeasurementBuffer) *MeasurementAccumulator {
	return &MeasurementAccumulator{buf: buf}
}

// Push appends a point to the underlying buffer.
func (a *MeasurementAccumulator) Push(p MeasurementPoint) {
	a.buf.Append(p)
}
