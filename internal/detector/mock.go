package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	pose  *PoseLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose that will be returned by Detect. nil means nobody in frame.
func (m *MockDetector) SetPose(pose *PoseLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = pose
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns a copy of the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*PoseLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.pose == nil {
		return nil, nil
	}
	pose := *m.pose
	return &pose, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

func fullyVisible(points map[int]Point2D) PoseLandmarks {
	pose := PoseLandmarks{Score: 0.95}
	for i := 0; i < NumLandmarks; i++ {
		p, ok := points[i]
		if !ok {
			pose.Points[i] = Landmark{Absent: true}
			continue
		}
		pose.Points[i] = Landmark{X: p.X, Y: p.Y, Visibility: 1.0}
	}
	return pose
}

// StandingLandmarks returns a preset pose of a person standing upright
// facing the camera with arms hanging straight down.
// Image Y grows downward.
func StandingLandmarks() PoseLandmarks {
	return fullyVisible(map[int]Point2D{
		Nose:          {X: 0.50, Y: 0.15},
		LeftEyeInner:  {X: 0.49, Y: 0.13},
		LeftEye:       {X: 0.48, Y: 0.13},
		LeftEyeOuter:  {X: 0.47, Y: 0.13},
		RightEyeInner: {X: 0.51, Y: 0.13},
		RightEye:      {X: 0.52, Y: 0.13},
		RightEyeOuter: {X: 0.53, Y: 0.13},
		LeftEar:       {X: 0.46, Y: 0.14},
		RightEar:      {X: 0.54, Y: 0.14},
		MouthLeft:     {X: 0.49, Y: 0.17},
		MouthRight:    {X: 0.51, Y: 0.17},

		LeftShoulder:  {X: 0.40, Y: 0.25},
		RightShoulder: {X: 0.60, Y: 0.25},
		LeftElbow:     {X: 0.40, Y: 0.38},
		RightElbow:    {X: 0.60, Y: 0.38},
		LeftWrist:     {X: 0.40, Y: 0.50},
		RightWrist:    {X: 0.60, Y: 0.50},
		LeftPinky:     {X: 0.40, Y: 0.53},
		RightPinky:    {X: 0.60, Y: 0.53},
		LeftIndex:     {X: 0.40, Y: 0.54},
		RightIndex:    {X: 0.60, Y: 0.54},
		LeftThumb:     {X: 0.41, Y: 0.52},
		RightThumb:    {X: 0.59, Y: 0.52},

		LeftHip:        {X: 0.44, Y: 0.55},
		RightHip:       {X: 0.56, Y: 0.55},
		LeftKnee:       {X: 0.44, Y: 0.72},
		RightKnee:      {X: 0.56, Y: 0.72},
		LeftAnkle:      {X: 0.44, Y: 0.90},
		RightAnkle:     {X: 0.56, Y: 0.90},
		LeftHeel:       {X: 0.44, Y: 0.92},
		RightHeel:      {X: 0.56, Y: 0.92},
		LeftFootIndex:  {X: 0.42, Y: 0.94},
		RightFootIndex: {X: 0.58, Y: 0.94},
	})
}

// ArmsRaisedLandmarks returns a preset pose with both arms raised sideways
// to shoulder height and elbows bent to ninety degrees, forearms pointing up.
func ArmsRaisedLandmarks() PoseLandmarks {
	pose := StandingLandmarks()
	pose.Points[LeftElbow] = Landmark{X: 0.27, Y: 0.25, Visibility: 1.0}
	pose.Points[RightElbow] = Landmark{X: 0.73, Y: 0.25, Visibility: 1.0}
	pose.Points[LeftWrist] = Landmark{X: 0.27, Y: 0.13, Visibility: 1.0}
	pose.Points[RightWrist] = Landmark{X: 0.73, Y: 0.13, Visibility: 1.0}
	pose.Points[LeftPinky] = Landmark{X: 0.27, Y: 0.10, Visibility: 1.0}
	pose.Points[RightPinky] = Landmark{X: 0.73, Y: 0.10, Visibility: 1.0}
	pose.Points[LeftIndex] = Landmark{X: 0.27, Y: 0.09, Visibility: 1.0}
	pose.Points[RightIndex] = Landmark{X: 0.73, Y: 0.09, Visibility: 1.0}
	pose.Points[LeftThumb] = Landmark{X: 0.28, Y: 0.11, Visibility: 1.0}
	pose.Points[RightThumb] = Landmark{X: 0.72, Y: 0.11, Visibility: 1.0}
	return pose
}

// SquatLandmarks returns a preset pose of a half squat: hips lowered, knees
// forward and torso leaning slightly forward.
func SquatLandmarks() PoseLandmarks {
	pose := StandingLandmarks()
	shift := func(i int, x, y float64) {
		pose.Points[i] = Landmark{X: x, Y: y, Visibility: 1.0}
	}
	for _, i := range []int{Nose, LeftEyeInner, LeftEye, LeftEyeOuter, RightEyeInner,
		RightEye, RightEyeOuter, LeftEar, RightEar, MouthLeft, MouthRight} {
		p := pose.Points[i]
		shift(i, p.X+0.03, p.Y+0.20)
	}
	shift(LeftShoulder, 0.43, 0.45)
	shift(RightShoulder, 0.63, 0.45)
	shift(LeftElbow, 0.50, 0.52)
	shift(RightElbow, 0.70, 0.52)
	shift(LeftWrist, 0.58, 0.50)
	shift(RightWrist, 0.78, 0.50)
	shift(LeftHip, 0.40, 0.70)
	shift(RightHip, 0.52, 0.70)
	shift(LeftKnee, 0.52, 0.78)
	shift(RightKnee, 0.64, 0.78)
	return pose
}
