package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/pose"
)

// Blend weights.
const (
	angleWeight = 0.60
	boneWeight  = 0.25
	embedWeight = 0.15

	fallbackBoneWeight  = 0.65
	fallbackEmbedWeight = 0.35

	// embedMarginPerDim scales the soft margin with sqrt(vector length).
	embedMarginPerDim = 0.15
)

// BoneScore is the mean positive cosine similarity between the user's and
// the reference unit bone vectors over visible bones, scaled to 0-100.
// Returns nil when no bone can be compared.
func BoneScore(np *detector.NormalizedPose, lm *detector.PoseLandmarks, tpl *pose.Template, threshold float64) *float64 {
	ref, refOK := tpl.ReferenceBones()
	if ref == nil {
		return nil
	}
	user, userOK := pose.BoneVectors(np)

	var sum float64
	var n int
	for i, b := range pose.Bones {
		if !userOK[i] || !refOK[i] || !BoneVisible(b, lm, threshold) {
			continue
		}
		cos := user[i].Dot(ref[i])
		if math.IsNaN(cos) {
			continue
		}
		sum += math.Max(0, math.Min(1, cos))
		n++
	}
	if n == 0 {
		return nil
	}

	v := 100 * sum / float64(n)
	return &v
}

// EmbedScore converts the Euclidean distance between user and reference
// embeddings into a 0-100 similarity with a soft margin of
// sqrt(len)*0.15. Returns nil when either embedding is unavailable.
func EmbedScore(np *detector.NormalizedPose, tpl *pose.Template) *float64 {
	ref := tpl.ReferenceEmbedding()
	user := pose.Embedding(np)
	if ref == nil || user == nil || len(ref) != len(user) {
		return nil
	}

	d := floats.Distance(user, ref, 2)
	margin := math.Sqrt(float64(len(user))) * embedMarginPerDim
	v := 100 * math.Max(0, 1-d/margin)
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Blend combines the components into the final score. With an angle score
// all three are blended when bone and embedding are both present, otherwise
// the angle score stands alone. Without one, bone and embedding are blended
// if both exist.
func Blend(angle *int, bone, embed *float64) *int {
	var v float64
	switch {
	case angle != nil && bone != nil && embed != nil:
		v = angleWeight*float64(*angle) + boneWeight**bone + embedWeight**embed
	case angle != nil:
		v = float64(*angle)
	case bone != nil && embed != nil:
		v = fallbackBoneWeight**bone + fallbackEmbedWeight**embed
	default:
		return nil
	}

	if math.IsNaN(v) {
		return nil
	}
	out := int(math.Max(0, math.Min(100, math.Round(v))))
	return &out
}

func boneCoverage(lm *detector.PoseLandmarks, threshold float64) float64 {
	var visible int
	for _, b := range pose.Bones {
		if BoneVisible(b, lm, threshold) {
			visible++
		}
	}
	return float64(visible) / float64(len(pose.Bones))
}
