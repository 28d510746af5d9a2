package pose

import "sort"

// DefaultSmoothingWindow is the number of samples each joint's median covers.
const DefaultSmoothingWindow = 7

// Smoother is a per-joint sliding median filter. It is not safe for
// concurrent use; a session owns exactly one.
type Smoother struct {
	window  int
	buffers map[Joint][]float64
}

// NewSmoother creates a Smoother with the given window. Values <= 0 use
// DefaultSmoothingWindow.
func NewSmoother(window int) *Smoother {
	if window <= 0 {
		window = DefaultSmoothingWindow
	}
	return &Smoother{
		window:  window,
		buffers: make(map[Joint][]float64),
	}
}

// Push appends a sample for joint, drops the oldest one once the window is
// full, and returns the median of what is buffered.
func (s *Smoother) Push(joint Joint, value float64) float64 {
	buf := append(s.buffers[joint], value)
	if len(buf) > s.window {
		buf = buf[len(buf)-s.window:]
	}
	s.buffers[joint] = buf
	return median(buf)
}

// PushAll pushes every angle in the set and returns the smoothed set.
// Joints missing from angles keep their history but are not reported.
func (s *Smoother) PushAll(angles AngleSet) AngleSet {
	out := make(AngleSet, len(angles))
	for j, v := range angles {
		out[j] = s.Push(j, v)
	}
	return out
}

// Len returns the number of samples buffered for joint.
func (s *Smoother) Len(joint Joint) int {
	return len(s.buffers[joint])
}

// Window returns the configured window size.
func (s *Smoother) Window() int {
	return s.window
}

// Reset discards all buffered history.
func (s *Smoother) Reset() {
	s.buffers = make(map[Joint][]float64)
}

// median returns the middle value, taking the lower-middle on even sizes.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[(len(sorted)-1)/2]
}
