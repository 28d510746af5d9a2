package feedback

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/pose"
)

// segment is a drawn skeleton line. joints lists the scored joints whose
// severity colors it; the worst one wins.
type segment struct {
	from, to int
	joints   []pose.Joint
}

var skeleton = []segment{
	{detector.LeftShoulder, detector.LeftElbow, []pose.Joint{pose.LeftShoulder, pose.LeftElbow}},
	{detector.LeftElbow, detector.LeftWrist, []pose.Joint{pose.LeftElbow}},
	{detector.RightShoulder, detector.RightElbow, []pose.Joint{pose.RightShoulder, pose.RightElbow}},
	{detector.RightElbow, detector.RightWrist, []pose.Joint{pose.RightElbow}},
	{detector.LeftHip, detector.LeftKnee, []pose.Joint{pose.LeftHip, pose.LeftKnee}},
	{detector.LeftKnee, detector.LeftAnkle, []pose.Joint{pose.LeftKnee}},
	{detector.RightHip, detector.RightKnee, []pose.Joint{pose.RightHip, pose.RightKnee}},
	{detector.RightKnee, detector.RightAnkle, []pose.Joint{pose.RightKnee}},
	{detector.LeftShoulder, detector.LeftHip, []pose.Joint{pose.LeftShoulder, pose.LeftHip, pose.SpineTilt}},
	{detector.RightShoulder, detector.RightHip, []pose.Joint{pose.RightShoulder, pose.RightHip, pose.SpineTilt}},
	{detector.LeftShoulder, detector.RightShoulder, []pose.Joint{pose.SpineTilt}},
	{detector.LeftHip, detector.RightHip, []pose.Joint{pose.SpineTilt}},
}

// Neutral color for segments with no scored joint.
var neutralColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}

// OverlayStyle controls skeleton drawing.
type OverlayStyle struct {
	LineThickness int
	JointRadius   int
	// MinVisibility hides landmarks below this confidence.
	MinVisibility float64
}

// DefaultOverlayStyle returns the style used by the stream.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{LineThickness: 3, JointRadius: 4, MinVisibility: 0.5}
}

// SegmentColor returns the color for the line between two landmarks given
// the per-joint severities.
func SegmentColor(from, to int, colors map[pose.Joint]Severity) color.RGBA {
	for _, s := range skeleton {
		if (s.from == from && s.to == to) || (s.from == to && s.to == from) {
			return worst(s.joints, colors)
		}
	}
	return neutralColor
}

func worst(joints []pose.Joint, colors map[pose.Joint]Severity) color.RGBA {
	found := false
	var sev Severity
	for _, j := range joints {
		if s, ok := colors[j]; ok {
			if !found || s > sev {
				sev = s
			}
			found = true
		}
	}
	if !found {
		return neutralColor
	}
	return sev.Color()
}

// DrawSkeleton draws the landmarks onto img, coloring each segment by the
// worst severity of the joints it belongs to. Landmark coordinates are
// fractions of the frame size.
func DrawSkeleton(img *gocv.Mat, lm *detector.PoseLandmarks, colors map[pose.Joint]Severity, style OverlayStyle) {
	if img == nil || img.Empty() || lm == nil {
		return
	}
	w, h := img.Cols(), img.Rows()

	visible := func(i int) bool {
		p := lm.Points[i]
		return p.OK() && p.Visibility >= style.MinVisibility
	}
	pixel := func(i int) image.Point {
		p := lm.Points[i]
		return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
	}

	for _, s := range skeleton {
		if !visible(s.from) || !visible(s.to) {
			continue
		}
		gocv.Line(img, pixel(s.from), pixel(s.to), worst(s.joints, colors), style.LineThickness)
	}

	for _, s := range skeleton {
		for _, i := range []int{s.from, s.to} {
			if visible(i) {
				gocv.Circle(img, pixel(i), style.JointRadius, neutralColor, -1)
			}
		}
	}
}

// DrawStatus writes the score and feedback line in the top-left corner.
func DrawStatus(img *gocv.Mat, score *int, text string) {
	if img == nil || img.Empty() {
		return
	}

	label := "Score: --"
	if score != nil {
		label = fmt.Sprintf("Score: %d", *score)
	}
	gocv.PutText(img, label, image.Pt(12, 32), gocv.FontHersheySimplex, 0.9, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)
	if text != "" {
		gocv.PutText(img, text, image.Pt(12, 62), gocv.FontHersheySimplex, 0.6, color.RGBA{R: 255, G: 230, B: 120, A: 255}, 1)
	}
}
