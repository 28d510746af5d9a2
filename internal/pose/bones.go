package pose

import (
	"math"

	"github.com/ayusman/posecoach/internal/detector"
)

// Bone is a skeleton segment between two landmarks.
type Bone struct {
	Name     string
	From, To int
}

// Bones are the segments compared by orientation in hybrid scoring.
var Bones = []Bone{
	{"left_upper_arm", detector.LeftShoulder, detector.LeftElbow},
	{"left_forearm", detector.LeftElbow, detector.LeftWrist},
	{"right_upper_arm", detector.RightShoulder, detector.RightElbow},
	{"right_forearm", detector.RightElbow, detector.RightWrist},
	{"left_thigh", detector.LeftHip, detector.LeftKnee},
	{"left_shin", detector.LeftKnee, detector.LeftAnkle},
	{"right_thigh", detector.RightHip, detector.RightKnee},
	{"right_shin", detector.RightKnee, detector.RightAnkle},
	{"shoulder_line", detector.LeftShoulder, detector.RightShoulder},
	{"hip_line", detector.LeftHip, detector.RightHip},
}

// embeddingLandmarks are the body points whose offsets form the embedding.
var embeddingLandmarks = []int{
	detector.LeftShoulder, detector.RightShoulder,
	detector.LeftElbow, detector.RightElbow,
	detector.LeftWrist, detector.RightWrist,
	detector.LeftHip, detector.RightHip,
	detector.LeftKnee, detector.RightKnee,
	detector.LeftAnkle, detector.RightAnkle,
}

// EmbeddingLen is the length of the vector returned by Embedding.
var EmbeddingLen = 2*len(embeddingLandmarks) + 2*len(Bones)

// Vec2 is a 2D direction.
type Vec2 struct {
	X, Y float64
}

// Dot returns the dot product.
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// BoneVectors returns unit direction vectors for every bone whose endpoints
// are present, indexed like Bones. Missing bones have ok=false.
func BoneVectors(np *detector.NormalizedPose) (vecs []Vec2, ok []bool) {
	vecs = make([]Vec2, len(Bones))
	ok = make([]bool, len(Bones))
	if np == nil {
		return vecs, ok
	}

	for i, b := range Bones {
		if !np.Has(b.From) || !np.Has(b.To) {
			continue
		}
		vecs[i] = unit(np.Points[b.From], np.Points[b.To])
		ok[i] = true
	}
	return vecs, ok
}

// Embedding flattens the pose into a translation-invariant feature vector:
// offsets of the main body landmarks from the shoulder midpoint followed by
// the unit bone vectors. Returns nil if any component is missing.
func Embedding(np *detector.NormalizedPose) []float64 {
	if np == nil || !np.Has(detector.LeftShoulder) || !np.Has(detector.RightShoulder) {
		return nil
	}

	ls, rs := np.Points[detector.LeftShoulder], np.Points[detector.RightShoulder]
	cx, cy := (ls.X+rs.X)/2, (ls.Y+rs.Y)/2

	vec := make([]float64, 0, EmbeddingLen)
	for _, i := range embeddingLandmarks {
		if !np.Has(i) {
			return nil
		}
		p := np.Points[i]
		vec = append(vec, p.X-cx, p.Y-cy)
	}

	bones, ok := BoneVectors(np)
	for i, b := range bones {
		if !ok[i] {
			return nil
		}
		vec = append(vec, b.X, b.Y)
	}

	return vec
}

func unit(from, to detector.Point2D) Vec2 {
	dx, dy := to.X-from.X, to.Y-from.Y
	n := math.Hypot(dx, dy) + vecEpsilon
	return Vec2{X: dx / n, Y: dy / n}
}
