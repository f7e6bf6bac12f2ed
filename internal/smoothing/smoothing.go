package smoothing

// Number covers the raw sensor value types we smooth.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~int | ~int32 | ~int64 | ~float32 | ~float64
}

// RunningAverage is a fixed-size shift register whose output is the mean of
// its contents. Producers push, consumers sample Value when they need it.
type RunningAverage[T Number] struct {
	buf   []T
	next  int
	ready bool
}

func NewRunningAverage[T Number](size int) *RunningAverage[T] {
	if size < 1 {
		size = 1
	}
	return &RunningAverage[T]{buf: make([]T, size)}
}

// Push stores v as the newest sample. The first sample fills every slot so
// the output never averages in empty buckets.
func (a *RunningAverage[T]) Push(v T) {
	if !a.ready {
		for i := range a.buf {
			a.buf[i] = v
		}
		a.ready = true
		a.next = 0
		return
	}
	a.buf[a.next] = v
	a.next = (a.next + 1) % len(a.buf)
}

// Value returns the mean of the window. Integer types truncate.
func (a *RunningAverage[T]) Value() T {
	var sum float64
	for _, v := range a.buf {
		sum += float64(v)
	}
	return T(sum / float64(len(a.buf)))
}

func (a *RunningAverage[T]) Ready() bool { return a.ready }

func (a *RunningAverage[T]) Size() int { return len(a.buf) }

func (a *RunningAverage[T]) Reset() {
	for i := range a.buf {
		a.buf[i] = 0
	}
	a.next = 0
	a.ready = false
}

const RecentBuckets = 32

// RunningMax keeps the last RecentBuckets samples and reports the largest.
type RunningMax[T Number] struct {
	buf   [RecentBuckets]T
	next  int
	count int
}

func NewRunningMax[T Number]() *RunningMax[T] {
	return &RunningMax[T]{}
}

func (m *RunningMax[T]) Push(v T) {
	m.buf[m.next] = v
	m.next = (m.next + 1) % RecentBuckets
	if m.count < RecentBuckets {
		m.count++
	}
}

func (m *RunningMax[T]) Value() T {
	var top T
	for i := 0; i < m.count; i++ {
		if i == 0 || m.buf[i] > top {
			top = m.buf[i]
		}
	}
	return top
}

func (m *RunningMax[T]) Ready() bool { return m.count > 0 }

func (m *RunningMax[T]) Reset() {
	m.next = 0
	m.count = 0
}
