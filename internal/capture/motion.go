package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// DefaultMotionThreshold is the percent of changed pixels that counts as motion.
	DefaultMotionThreshold = 1.0
	// BlurKernel is the Gaussian kernel size used to suppress sensor noise.
	BlurKernel = 21
	// PixelDelta is the grey level difference at which a pixel counts as changed.
	PixelDelta = 25
)

// Motion is the outcome of comparing a frame with the previous one.
type Motion struct {
	Moving  bool
	Changed float64 // percent of pixels that changed
}

// MotionDetector compares consecutive frames by blurred grey level
// differencing.
type MotionDetector struct {
	mu          sync.Mutex
	threshold   float64
	prev        gocv.Mat
	initialized bool
}

// NewMotionDetector creates a MotionDetector. A threshold <= 0 uses
// DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect compares frame with the previous one. The first frame after
// construction or Reset only becomes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) Motion {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Motion{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(BlurKernel, BlurKernel), 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		m.swap(blurred)
		m.initialized = true
		return Motion{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, PixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	m.swap(blurred)

	return Motion{Moving: changed > m.threshold, Changed: changed}
}

// swap makes next the baseline and takes ownership of it.
func (m *MotionDetector) swap(next gocv.Mat) {
	m.prev.Close()
	m.prev = next
}

// Reset forgets the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swap(gocv.NewMat())
	m.initialized = false
}

// Close releases the baseline frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.Reset()
}

// Threshold returns the motion threshold in percent.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold changes the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}
