package pose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ayusman/posecoach/internal/detector"
)

// Template defaults applied when an entry is missing.
const (
	DefaultToleranceDeg = 12.0
	DefaultWeight       = 1.0
)

// ErrDegenerateTemplate is returned for a template with no angles and no
// usable reference landmarks. Such a template can never produce a score.
var ErrDegenerateTemplate = errors.New("template has no angles and no reference landmarks")

// Template is a reference pose. It is read-only once loaded; a new exercise
// step replaces it wholesale.
type Template struct {
	PoseID       string
	Name         string
	AnglesDeg    map[Joint]float64
	ToleranceDeg map[Joint]float64
	Weights      map[Joint]float64
	CameraView   string

	// Landmarks is the optional reference pose in the live landmark space.
	Landmarks *detector.PoseLandmarks

	// Ignored lists angle keys that name no known joint.
	Ignored []string

	reference *detector.NormalizedPose
	bones     []Vec2
	boneOK    []bool
	embedding []float64
}

// Tolerance returns the allowed deviation for joint in degrees.
func (t *Template) Tolerance(j Joint) float64 {
	if v, ok := t.ToleranceDeg[j]; ok {
		return v
	}
	return DefaultToleranceDeg
}

// Weight returns the relative importance of joint.
func (t *Template) Weight(j Joint) float64 {
	if v, ok := t.Weights[j]; ok {
		return v
	}
	return DefaultWeight
}

// Joints returns the scored joints in name order.
func (t *Template) Joints() []Joint {
	return AngleSet(t.AnglesDeg).Sorted()
}

// Degenerate reports whether the template can never be scored.
func (t *Template) Degenerate() bool {
	return len(t.AnglesDeg) == 0 && t.Reference() == nil
}

// Validate returns ErrDegenerateTemplate for an unscorable template.
func (t *Template) Validate() error {
	if t.Degenerate() {
		return fmt.Errorf("template %q: %w", t.PoseID, ErrDegenerateTemplate)
	}
	return nil
}

// Prepare normalizes the reference landmarks once and caches the derived
// bone vectors and embedding. ParseTemplate calls it; templates built by
// hand should call it before use.
func (t *Template) Prepare() {
	t.reference = nil
	t.bones, t.boneOK, t.embedding = nil, nil, nil
	if t.Landmarks == nil {
		return
	}
	t.reference = t.Landmarks.Normalize()
	if t.reference == nil {
		return
	}
	t.bones, t.boneOK = BoneVectors(t.reference)
	t.embedding = Embedding(t.reference)
}

// Reference returns the normalized reference pose, or nil if Prepare has
// not run or the reference anchors are missing. It never modifies t, so a
// prepared template is safe to share between sessions.
func (t *Template) Reference() *detector.NormalizedPose {
	return t.reference
}

// ReferenceBones returns the reference unit bone vectors.
func (t *Template) ReferenceBones() ([]Vec2, []bool) {
	if t.Reference() == nil {
		return nil, nil
	}
	return t.bones, t.boneOK
}

// ReferenceEmbedding returns the reference embedding, or nil.
func (t *Template) ReferenceEmbedding() []float64 {
	if t.Reference() == nil {
		return nil
	}
	return t.embedding
}

type templateJSON struct {
	PoseID       string             `json:"pose_id"`
	Name         string             `json:"name,omitempty"`
	AnglesDeg    map[string]float64 `json:"angles_deg"`
	ToleranceDeg map[string]float64 `json:"tolerance_deg,omitempty"`
	Weights      map[string]float64 `json:"weights,omitempty"`
	CameraView   string             `json:"camera_view,omitempty"`
	Landmarks    json.RawMessage    `json:"landmarks,omitempty"`
}

type refPoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// ParseTemplate decodes a template record. Reference landmarks may be given
// either as an index array or as an object keyed by landmark name (or index);
// both become the fixed 33-slot array here, once.
func ParseTemplate(data []byte) (*Template, error) {
	var raw templateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}

	t := &Template{
		PoseID:       raw.PoseID,
		Name:         raw.Name,
		AnglesDeg:    make(map[Joint]float64, len(raw.AnglesDeg)),
		ToleranceDeg: make(map[Joint]float64, len(raw.ToleranceDeg)),
		Weights:      make(map[Joint]float64, len(raw.Weights)),
		CameraView:   raw.CameraView,
	}

	for name, v := range raw.AnglesDeg {
		j := Joint(name)
		if _, ok := JointChains[j]; !ok {
			t.Ignored = append(t.Ignored, name)
			continue
		}
		t.AnglesDeg[j] = v
	}
	sort.Strings(t.Ignored)
	for name, v := range raw.ToleranceDeg {
		t.ToleranceDeg[Joint(name)] = v
	}
	for name, v := range raw.Weights {
		t.Weights[Joint(name)] = v
	}

	lm, err := parseReferenceLandmarks(raw.Landmarks)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", raw.PoseID, err)
	}
	t.Landmarks = lm
	t.Prepare()

	return t, nil
}

func parseReferenceLandmarks(data json.RawMessage) (*detector.PoseLandmarks, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	pose := &detector.PoseLandmarks{Score: 1}
	for i := range pose.Points {
		pose.Points[i] = detector.Landmark{Absent: true}
	}
	set := func(i int, p refPoint) {
		vis := 1.0
		if p.Visibility != nil {
			vis = *p.Visibility
		}
		pose.Points[i] = detector.Landmark{X: p.X, Y: p.Y, Visibility: vis}
	}

	switch data[0] {
	case '[':
		var points []*refPoint
		if err := json.Unmarshal(data, &points); err != nil {
			return nil, fmt.Errorf("decode landmarks: %w", err)
		}
		if len(points) > detector.NumLandmarks {
			return nil, fmt.Errorf("got %d landmarks, expected at most %d", len(points), detector.NumLandmarks)
		}
		for i, p := range points {
			if p != nil {
				set(i, *p)
			}
		}
	case '{':
		var points map[string]refPoint
		if err := json.Unmarshal(data, &points); err != nil {
			return nil, fmt.Errorf("decode landmarks: %w", err)
		}
		for key, p := range points {
			i, ok := detector.LandmarkIndex(key)
			if !ok {
				n, err := strconv.Atoi(key)
				if err != nil {
					return nil, fmt.Errorf("unknown landmark %q", key)
				}
				i = n
			}
			if i < 0 || i >= detector.NumLandmarks {
				return nil, fmt.Errorf("landmark %q out of range", key)
			}
			set(i, p)
		}
	default:
		return nil, fmt.Errorf("landmarks must be an array or an object")
	}

	return pose, nil
}

// MarshalJSON encodes the template contract, landmarks as an index array.
func (t *Template) MarshalJSON() ([]byte, error) {
	raw := templateJSON{
		PoseID:       t.PoseID,
		Name:         t.Name,
		AnglesDeg:    make(map[string]float64, len(t.AnglesDeg)),
		ToleranceDeg: make(map[string]float64, len(t.ToleranceDeg)),
		Weights:      make(map[string]float64, len(t.Weights)),
		CameraView:   t.CameraView,
	}
	for j, v := range t.AnglesDeg {
		raw.AnglesDeg[string(j)] = v
	}
	for j, v := range t.ToleranceDeg {
		raw.ToleranceDeg[string(j)] = v
	}
	for j, v := range t.Weights {
		raw.Weights[string(j)] = v
	}

	if t.Landmarks != nil {
		points := make([]*refPoint, detector.NumLandmarks)
		for i, lm := range t.Landmarks.Points {
			if !lm.OK() {
				continue
			}
			vis := lm.Visibility
			points[i] = &refPoint{X: lm.X, Y: lm.Y, Visibility: &vis}
		}
		data, err := json.Marshal(points)
		if err != nil {
			return nil, err
		}
		raw.Landmarks = data
	}

	return json.Marshal(raw)
}
