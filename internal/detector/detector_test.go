package detector

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

// transform rotates every present landmark about the image origin, scales it
// and translates it.
func transform(p PoseLandmarks, angle, scale, dx, dy float64) PoseLandmarks {
	cos, sin := math.Cos(angle), math.Sin(angle)
	out := p
	for i := range out.Points {
		lm := out.Points[i]
		if !lm.OK() {
			continue
		}
		x := lm.X*cos - lm.Y*sin
		y := lm.X*sin + lm.Y*cos
		out.Points[i].X = x*scale + dx
		out.Points[i].Y = y*scale + dy
	}
	return out
}

func TestPoseLandmarks_Normalize(t *testing.T) {
	t.Run("hip midpoint at origin after normalization", func(t *testing.T) {
		pose := StandingLandmarks()

		normalized := pose.Normalize()
		if normalized == nil {
			t.Fatal("expected normalized pose, got nil")
		}

		if !normalized.Has(MidHip) {
			t.Fatal("expected synthetic mid hip to be present")
		}
		if normalized.Points[MidHip] != (Point2D{}) {
			t.Errorf("expected mid hip at origin, got %+v", normalized.Points[MidHip])
		}

		lh := normalized.Points[LeftHip]
		rh := normalized.Points[RightHip]
		if math.Abs(lh.X+rh.X) > epsilon || math.Abs(lh.Y+rh.Y) > epsilon {
			t.Errorf("expected hips symmetric about origin, got %+v and %+v", lh, rh)
		}
	})

	t.Run("left shoulder to hip distance is 1.0", func(t *testing.T) {
		pose := StandingLandmarks()
		normalized := pose.Normalize()

		ls := normalized.Points[LeftShoulder]
		lh := normalized.Points[LeftHip]
		dist := math.Hypot(ls.X-lh.X, ls.Y-lh.Y)
		if math.Abs(dist-1.0) > 1e-4 {
			t.Errorf("expected unit shoulder-hip distance, got %f", dist)
		}
	})

	t.Run("shoulder line is horizontal", func(t *testing.T) {
		pose := transform(StandingLandmarks(), 0.4, 1.0, 0.1, -0.05)
		normalized := pose.Normalize()

		ls := normalized.Points[LeftShoulder]
		rs := normalized.Points[RightShoulder]
		if math.Abs(rs.Y-ls.Y) > 1e-9 {
			t.Errorf("expected horizontal shoulders, got dy=%f", rs.Y-ls.Y)
		}
		if rs.X <= ls.X {
			t.Errorf("expected right shoulder on +x side, got ls=%+v rs=%+v", ls, rs)
		}
	})

	t.Run("invariant under translation, scale and rotation", func(t *testing.T) {
		base := StandingLandmarks()
		moved := transform(base, -0.7, 2.5, 0.3, 0.2)

		a := base.Normalize()
		b := moved.Normalize()
		for i := 0; i < NumPoints; i++ {
			if a.Present[i] != b.Present[i] {
				t.Fatalf("presence mismatch at %s", LandmarkNames[i])
			}
			if math.Abs(a.Points[i].X-b.Points[i].X) > 1e-4 || math.Abs(a.Points[i].Y-b.Points[i].Y) > 1e-4 {
				t.Errorf("%s: %+v != %+v", LandmarkNames[i], a.Points[i], b.Points[i])
			}
		}
	})

	t.Run("returns nil when a hip is missing", func(t *testing.T) {
		pose := StandingLandmarks()
		pose.Points[LeftHip] = Landmark{Absent: true}
		pose.Points[RightHip] = Landmark{Absent: true}

		if got := pose.Normalize(); got != nil {
			t.Errorf("expected nil for missing hips, got %+v", got)
		}
	})

	t.Run("returns nil when a shoulder is NaN", func(t *testing.T) {
		pose := StandingLandmarks()
		pose.Points[RightShoulder].X = math.NaN()

		if got := pose.Normalize(); got != nil {
			t.Error("expected nil for NaN shoulder")
		}
	})

	t.Run("low visibility anchors still normalize", func(t *testing.T) {
		pose := StandingLandmarks()
		pose.Points[LeftHip].Visibility = 0.01

		if pose.Normalize() == nil {
			t.Error("expected normalization to ignore visibility")
		}
	})

	t.Run("coincident anchors stay finite", func(t *testing.T) {
		pose := StandingLandmarks()
		pose.Points[LeftShoulder] = pose.Points[LeftHip]

		normalized := pose.Normalize()
		if normalized == nil {
			t.Fatal("expected a result for degenerate frame")
		}
		for i := 0; i < NumPoints; i++ {
			p := normalized.Points[i]
			if math.IsNaN(p.X) || math.IsNaN(p.Y) {
				t.Errorf("%s is NaN", LandmarkNames[i])
			}
		}
	})

	t.Run("absent points stay absent", func(t *testing.T) {
		pose := StandingLandmarks()
		pose.Points[LeftWrist] = Landmark{Absent: true}

		normalized := pose.Normalize()
		if normalized.Has(LeftWrist) {
			t.Error("expected left wrist to be absent")
		}
	})

	t.Run("nil receiver", func(t *testing.T) {
		var pose *PoseLandmarks
		if pose.Normalize() != nil {
			t.Error("expected nil")
		}
	})
}

func TestPoseLandmarks_JSON(t *testing.T) {
	t.Run("null entries decode as absent", func(t *testing.T) {
		data := []byte(`{"points":[{"x":0.5,"y":0.1,"visibility":0.9},null],"score":0.8}`)

		var pose PoseLandmarks
		if err := json.Unmarshal(data, &pose); err != nil {
			t.Fatalf("unmarshal error = %v", err)
		}

		if !pose.Points[Nose].OK() {
			t.Error("expected nose to be present")
		}
		if pose.Points[Nose].Visibility != 0.9 {
			t.Errorf("expected visibility 0.9, got %f", pose.Points[Nose].Visibility)
		}
		if pose.Points[LeftEyeInner].OK() {
			t.Error("expected null entry to be absent")
		}
		if pose.Points[RightFootIndex].OK() {
			t.Error("expected missing tail entries to be absent")
		}
	})

	t.Run("absent landmarks encode as null", func(t *testing.T) {
		pose := StandingLandmarks()
		pose.Points[LeftKnee] = Landmark{Absent: true}

		data, err := json.Marshal(pose)
		if err != nil {
			t.Fatalf("marshal error = %v", err)
		}

		var decoded PoseLandmarks
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal error = %v", err)
		}
		if decoded.Points[LeftKnee].OK() {
			t.Error("expected left knee to stay absent")
		}
		if decoded.Points[RightKnee] != pose.Points[RightKnee] {
			t.Errorf("right knee changed: %+v != %+v", decoded.Points[RightKnee], pose.Points[RightKnee])
		}
	})

	t.Run("rejects too many points", func(t *testing.T) {
		points := make([]Landmark, NumLandmarks+1)
		data, _ := json.Marshal(map[string]any{"points": points})

		var pose PoseLandmarks
		if err := json.Unmarshal(data, &pose); err == nil {
			t.Error("expected error for 34 landmarks")
		}
	})
}

func TestPoseLandmarks_Visibility(t *testing.T) {
	p := StandingLandmarks()
	p.Points[LeftWrist].Visibility = math.NaN()
	p.Points[RightWrist].Visibility = 0.7
	p.Points[LeftAnkle] = Landmark{Absent: true, Visibility: 1}

	tests := []struct {
		name string
		i    int
		want float64
	}{
		{"NaN reads as hidden", LeftWrist, 0},
		{"present", RightWrist, 0.7},
		{"absent", LeftAnkle, 0},
		{"out of range", NumLandmarks, 0},
		{"negative index", -1, 0},
	}

	for _, tt := range tests {
		if got := p.Visibility(tt.i); got != tt.want {
			t.Errorf("%s: Visibility(%d) = %v, want %v", tt.name, tt.i, got, tt.want)
		}
	}

	var nilPose *PoseLandmarks
	if got := nilPose.Visibility(Nose); got != 0 {
		t.Errorf("nil pose Visibility = %v, want 0", got)
	}
}

func TestLandmarkIndex(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"nose", Nose, true},
		{"left_knee", LeftKnee, true},
		{"right_foot_index", RightFootIndex, true},
		{"mid_hip", MidHip, true},
		{"tail", 0, false},
	}

	for _, tt := range tests {
		got, ok := LandmarkIndex(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("LandmarkIndex(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns nil when no pose is set", func(t *testing.T) {
		mock := NewMockDetector()

		pose, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if pose != nil {
			t.Errorf("expected nil pose, got %+v", pose)
		}
	})

	t.Run("returns a copy of the configured pose", func(t *testing.T) {
		mock := NewMockDetector()
		standing := StandingLandmarks()
		mock.SetPose(&standing)

		pose, err := mock.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pose.Points[Nose].X = 99

		if standing.Points[Nose].X == 99 {
			t.Error("expected Detect to return a copy")
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		standing := StandingLandmarks()
		mock.SetPose(&standing)
		mock.SetError(expectedErr)

		pose, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if pose != nil {
			t.Errorf("expected nil pose when error is set, got %v", pose)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
	})
}

func TestPresetPoses(t *testing.T) {
	t.Run("standing pose is fully visible", func(t *testing.T) {
		pose := StandingLandmarks()
		for i := 0; i < NumLandmarks; i++ {
			if !pose.Points[i].OK() || pose.Visibility(i) != 1.0 {
				t.Errorf("%s not fully visible", LandmarkNames[i])
			}
		}
	})

	t.Run("arms raised wrists above shoulders", func(t *testing.T) {
		pose := ArmsRaisedLandmarks()
		if pose.Points[LeftWrist].Y >= pose.Points[LeftShoulder].Y {
			t.Error("left wrist should be above left shoulder (lower Y value)")
		}
		if pose.Points[RightWrist].Y >= pose.Points[RightShoulder].Y {
			t.Error("right wrist should be above right shoulder (lower Y value)")
		}
	})

	t.Run("squat knees are ahead of hips", func(t *testing.T) {
		pose := SquatLandmarks()
		if pose.Points[LeftKnee].X <= pose.Points[LeftHip].X {
			t.Error("left knee should be forward of left hip")
		}
	})
}
