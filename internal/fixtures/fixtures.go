// Package fixtures provides reference templates and matching detector
// poses for tests across packages.
package fixtures

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/pose"
)

//go:embed templates/*.json
var templatesFS embed.FS

// Pose IDs of the embedded templates.
const (
	Standing   = "standing"
	ArmsRaised = "arms_raised"
	Squat      = "squat"
)

// TemplateJSON returns the raw template document for poseID.
func TemplateJSON(poseID string) ([]byte, error) {
	data, err := templatesFS.ReadFile(path.Join("templates", poseID+".json"))
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", poseID, err)
	}
	return data, nil
}

// Template parses the embedded template for poseID.
func Template(poseID string) (*pose.Template, error) {
	data, err := TemplateJSON(poseID)
	if err != nil {
		return nil, err
	}
	return pose.ParseTemplate(data)
}

// PoseIDs lists the embedded templates in name order.
func PoseIDs() []string {
	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids
}

// Landmarks returns the detector pose that matches the template poseID.
func Landmarks(poseID string) (detector.PoseLandmarks, error) {
	switch poseID {
	case Standing:
		return detector.StandingLandmarks(), nil
	case ArmsRaised:
		return detector.ArmsRaisedLandmarks(), nil
	case Squat:
		return detector.SquatLandmarks(), nil
	}
	return detector.PoseLandmarks{}, fmt.Errorf("no landmarks for pose %q", poseID)
}
