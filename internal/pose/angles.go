// Package pose derives joint angles, bone directions and embeddings from
// normalized body landmarks, and holds the reference pose templates they are
// compared against.
package pose

import (
	"math"
	"sort"

	"github.com/ayusman/posecoach/internal/detector"
)

// Joint names a scored joint angle.
type Joint string

const (
	LeftElbow     Joint = "left_elbow"
	RightElbow    Joint = "right_elbow"
	LeftKnee      Joint = "left_knee"
	RightKnee     Joint = "right_knee"
	LeftShoulder  Joint = "left_shoulder"
	RightShoulder Joint = "right_shoulder"
	LeftHip       Joint = "left_hip"
	RightHip      Joint = "right_hip"
	SpineTilt     Joint = "spine_tilt"
)

// vecEpsilon guards vector norms of coincident landmarks.
const vecEpsilon = 1e-9

// Joints lists every joint the extractor knows, in a stable order.
var Joints = []Joint{
	LeftElbow, RightElbow,
	LeftKnee, RightKnee,
	LeftShoulder, RightShoulder,
	LeftHip, RightHip,
	SpineTilt,
}

// JointChains maps each joint to the landmarks it is computed from. Limb
// joints list {a, vertex, c}; spine_tilt lists both shoulders then both hips.
var JointChains = map[Joint][]int{
	LeftElbow:     {detector.LeftShoulder, detector.LeftElbow, detector.LeftWrist},
	RightElbow:    {detector.RightShoulder, detector.RightElbow, detector.RightWrist},
	LeftKnee:      {detector.LeftHip, detector.LeftKnee, detector.LeftAnkle},
	RightKnee:     {detector.RightHip, detector.RightKnee, detector.RightAnkle},
	LeftShoulder:  {detector.LeftElbow, detector.LeftShoulder, detector.LeftHip},
	RightShoulder: {detector.RightElbow, detector.RightShoulder, detector.RightHip},
	LeftHip:       {detector.LeftShoulder, detector.LeftHip, detector.LeftKnee},
	RightHip:      {detector.RightShoulder, detector.RightHip, detector.RightKnee},
	SpineTilt:     {detector.LeftShoulder, detector.RightShoulder, detector.LeftHip, detector.RightHip},
}

// AngleSet maps joints to degrees. A joint that could not be computed is
// absent from the map.
type AngleSet map[Joint]float64

// Clone returns a copy of the set.
func (a AngleSet) Clone() AngleSet {
	out := make(AngleSet, len(a))
	for j, v := range a {
		out[j] = v
	}
	return out
}

// Sorted returns the joints present in the set in name order.
func (a AngleSet) Sorted() []Joint {
	joints := make([]Joint, 0, len(a))
	for j := range a {
		joints = append(joints, j)
	}
	sort.Slice(joints, func(i, k int) bool { return joints[i] < joints[k] })
	return joints
}

// ExtractAngles computes every joint angle whose landmarks are present.
func ExtractAngles(np *detector.NormalizedPose) AngleSet {
	angles := make(AngleSet, len(JointChains))
	if np == nil {
		return angles
	}

	for _, joint := range Joints {
		chain := JointChains[joint]
		if !hasAll(np, chain) {
			continue
		}

		var v float64
		if joint == SpineTilt {
			v = spineTilt(np)
		} else {
			v = InteriorAngle(np.Points[chain[0]], np.Points[chain[1]], np.Points[chain[2]])
		}

		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		angles[joint] = v
	}

	return angles
}

// InteriorAngle returns the angle in degrees at vertex b formed by a-b-c.
func InteriorAngle(a, b, c detector.Point2D) float64 {
	bax, bay := a.X-b.X, a.Y-b.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y

	norm := math.Hypot(bax, bay)*math.Hypot(bcx, bcy) + vecEpsilon
	cos := (bax*bcx + bay*bcy) / norm
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * 180 / math.Pi
}

// spineTilt is the deviation of the shoulder-midpoint to hip-midpoint line
// from vertical: 0 when upright, 90 when horizontal.
func spineTilt(np *detector.NormalizedPose) float64 {
	ls, rs := np.Points[detector.LeftShoulder], np.Points[detector.RightShoulder]
	midX := (ls.X + rs.X) / 2
	midY := (ls.Y + rs.Y) / 2

	// Hip midpoint is the canonical origin.
	dx, dy := 0-midX, 0-midY
	if math.Hypot(dx, dy) < vecEpsilon {
		return math.NaN()
	}

	deg := math.Atan2(dy, dx) * 180 / math.Pi
	deg = math.Mod(deg, 180)
	if deg < 0 {
		deg += 180
	}
	return math.Abs(deg - 90)
}

func hasAll(np *detector.NormalizedPose, idx []int) bool {
	for _, i := range idx {
		if !np.Has(i) {
			return false
		}
	}
	return true
}
