// Package detector provides body landmark types and pose detection interfaces.
package detector

import (
	"encoding/json"
	"fmt"
	"math"
)

// Body landmark indices following the MediaPipe pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33

	// MidHip is the synthetic hip midpoint, only present in a NormalizedPose.
	MidHip    = 33
	NumPoints = 34
)

// LandmarkNames maps each landmark index to its snake_case name.
var LandmarkNames = [NumPoints]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear", "mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_pinky", "right_pinky",
	"left_index", "right_index", "left_thumb", "right_thumb",
	"left_hip", "right_hip", "left_knee", "right_knee",
	"left_ankle", "right_ankle", "left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
	"mid_hip",
}

var landmarkIndex = func() map[string]int {
	m := make(map[string]int, NumPoints)
	for i, name := range LandmarkNames {
		m[name] = i
	}
	return m
}()

// LandmarkIndex returns the index for a landmark name such as "left_knee".
func LandmarkIndex(name string) (int, bool) {
	i, ok := landmarkIndex[name]
	return i, ok
}

// Point2D is a position in a 2D plane.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmark is a single tracked body point in normalized image coordinates.
// Absent marks a point the detector did not report.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
	Absent     bool    `json:"-"`
}

// OK reports whether the landmark carries a usable position.
func (l Landmark) OK() bool {
	return !l.Absent && !math.IsNaN(l.X) && !math.IsNaN(l.Y) &&
		!math.IsInf(l.X, 0) && !math.IsInf(l.Y, 0)
}

// Point returns the landmark position.
func (l Landmark) Point() Point2D {
	return Point2D{X: l.X, Y: l.Y}
}

// PoseLandmarks represents the 33 body landmarks of one detected person.
type PoseLandmarks struct {
	Points [NumLandmarks]Landmark
	Score  float64
}

type jsonPose struct {
	Points []*Landmark `json:"points"`
	Score  float64     `json:"score"`
}

// MarshalJSON encodes absent landmarks as null.
func (p PoseLandmarks) MarshalJSON() ([]byte, error) {
	out := jsonPose{Points: make([]*Landmark, NumLandmarks), Score: p.Score}
	for i := range p.Points {
		if p.Points[i].OK() {
			lm := p.Points[i]
			out.Points[i] = &lm
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a points array; null or missing entries become absent.
func (p *PoseLandmarks) UnmarshalJSON(data []byte) error {
	var in jsonPose
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Points) > NumLandmarks {
		return fmt.Errorf("got %d landmarks, expected at most %d", len(in.Points), NumLandmarks)
	}
	p.Score = in.Score
	for i := 0; i < NumLandmarks; i++ {
		if i < len(in.Points) && in.Points[i] != nil {
			p.Points[i] = *in.Points[i]
			p.Points[i].Absent = false
		} else {
			p.Points[i] = Landmark{Absent: true}
		}
	}
	return nil
}

// Visibility returns the visibility of landmark i, or 0 if it is absent or
// not a number.
func (p *PoseLandmarks) Visibility(i int) float64 {
	if p == nil || i < 0 || i >= NumLandmarks || !p.Points[i].OK() {
		return 0
	}
	if v := p.Points[i].Visibility; !math.IsNaN(v) {
		return v
	}
	return 0
}
