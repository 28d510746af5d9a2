// Package scoring compares live pose features against a reference template
// and turns the comparison into a 0-100 score.
package scoring

import (
	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/pose"
)

// DefaultVisibilityThreshold is the minimum landmark visibility for a joint
// or bone to be scored.
const DefaultVisibilityThreshold = 0.5

// JointVisible reports whether every landmark in the joint's chain meets the
// visibility threshold.
func JointVisible(j pose.Joint, lm *detector.PoseLandmarks, threshold float64) bool {
	chain, ok := pose.JointChains[j]
	if !ok {
		return false
	}
	return allVisible(chain, lm, threshold)
}

// BoneVisible reports whether both endpoints of the bone meet the threshold.
func BoneVisible(b pose.Bone, lm *detector.PoseLandmarks, threshold float64) bool {
	return allVisible([]int{b.From, b.To}, lm, threshold)
}

// Gate returns the subset of angles whose supporting landmarks are visible.
// Lowering any visibility can only remove joints.
func Gate(angles pose.AngleSet, lm *detector.PoseLandmarks, threshold float64) pose.AngleSet {
	gated := make(pose.AngleSet, len(angles))
	for j, v := range angles {
		if JointVisible(j, lm, threshold) {
			gated[j] = v
		}
	}
	return gated
}

func allVisible(idx []int, lm *detector.PoseLandmarks, threshold float64) bool {
	for _, i := range idx {
		if lm.Visibility(i) < threshold {
			return false
		}
	}
	return true
}
