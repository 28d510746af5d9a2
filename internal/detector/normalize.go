package detector

import "math"

// scaleEpsilon keeps degenerate frames (shoulder on top of hip) finite.
const scaleEpsilon = 1e-6

// NormalizedPose holds landmark positions in the canonical body frame:
// hip midpoint at the origin, unit length equal to the left shoulder-hip
// distance and the shoulder line horizontal.
type NormalizedPose struct {
	Points  [NumPoints]Point2D
	Present [NumPoints]bool
}

// Has reports whether point i is present.
func (n *NormalizedPose) Has(i int) bool {
	return n != nil && i >= 0 && i < NumPoints && n.Present[i]
}

// Normalize removes translation, scale and in-plane rotation from the pose.
// Returns nil when either shoulder or either hip is absent. Visibility is
// not considered here.
func (p *PoseLandmarks) Normalize() *NormalizedPose {
	if p == nil {
		return nil
	}

	ls, rs := p.Points[LeftShoulder], p.Points[RightShoulder]
	lh, rh := p.Points[LeftHip], p.Points[RightHip]
	if !ls.OK() || !rs.OK() || !lh.OK() || !rh.OK() {
		return nil
	}

	midX := (lh.X + rh.X) / 2
	midY := (lh.Y + rh.Y) / 2
	scale := math.Hypot(ls.X-lh.X, ls.Y-lh.Y) + scaleEpsilon
	theta := math.Atan2(rs.Y-ls.Y, rs.X-ls.X)
	cos, sin := math.Cos(-theta), math.Sin(-theta)

	normalized := &NormalizedPose{}
	for i := 0; i < NumLandmarks; i++ {
		lm := p.Points[i]
		if !lm.OK() {
			continue
		}
		x := (lm.X - midX) / scale
		y := (lm.Y - midY) / scale
		normalized.Points[i] = Point2D{
			X: x*cos - y*sin,
			Y: x*sin + y*cos,
		}
		normalized.Present[i] = true
	}

	normalized.Points[MidHip] = Point2D{}
	normalized.Present[MidHip] = true

	return normalized
}
