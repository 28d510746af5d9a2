package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/posecoach/internal/app"
	"github.com/ayusman/posecoach/internal/pose"
)

// Coach is the live coaching state the handler drives.
type Coach interface {
	Templates() []*pose.Template
	CurrentTemplate() *pose.Template
	SelectTemplate(poseID string) (*app.CompletedStep, error)
	CompleteStep() (*app.CompletedStep, error)
	LastStep() *app.CompletedStep
	IsEnabled() bool
	SetEnabled(enabled bool)
}

// CoachHandler handles the live session endpoints under /api/session.
type CoachHandler struct {
	coach Coach
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(c Coach) *CoachHandler {
	return &CoachHandler{coach: c}
}

// ServeHTTP routes /api/session, /api/session/template,
// /api/session/step and /api/session/enabled.
func (h *CoachHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/session")

	var route string
	if len(parts) == 1 {
		route = parts[0]
	} else if len(parts) > 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch {
	case route == "" && r.Method == http.MethodGet:
		h.state(w, r)
	case route == "template" && r.Method == http.MethodPost:
		h.selectTemplate(w, r)
	case route == "step" && r.Method == http.MethodPost:
		h.completeStep(w, r)
	case route == "enabled" && r.Method == http.MethodPost:
		h.setEnabled(w, r)
	case route == "" || route == "template" || route == "step" || route == "enabled":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type templateSummary struct {
	PoseID     string       `json:"pose_id"`
	Name       string       `json:"name"`
	CameraView string       `json:"camera_view,omitempty"`
	Joints     []pose.Joint `json:"joints"`
}

type stateResponse struct {
	Enabled   bool               `json:"enabled"`
	Current   *templateSummary   `json:"current"`
	Templates []templateSummary  `json:"templates"`
	LastStep  *app.CompletedStep `json:"last_step"`
}

type selectTemplateRequest struct {
	PoseID string `json:"pose_id"`
}

type selectTemplateResponse struct {
	PoseID    string             `json:"pose_id"`
	Completed *app.CompletedStep `json:"completed_step"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func summarize(tpl *pose.Template) templateSummary {
	return templateSummary{
		PoseID:     tpl.PoseID,
		Name:       tpl.Name,
		CameraView: tpl.CameraView,
		Joints:     tpl.Joints(),
	}
}

// state handles GET /api/session.
func (h *CoachHandler) state(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		Enabled:   h.coach.IsEnabled(),
		Templates: []templateSummary{},
		LastStep:  h.coach.LastStep(),
	}
	if cur := h.coach.CurrentTemplate(); cur != nil {
		s := summarize(cur)
		resp.Current = &s
	}
	for _, tpl := range h.coach.Templates() {
		resp.Templates = append(resp.Templates, summarize(tpl))
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectTemplate handles POST /api/session/template. An empty pose_id
// clears the template.
func (h *CoachHandler) selectTemplate(w http.ResponseWriter, r *http.Request) {
	var req selectTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	done, err := h.coach.SelectTemplate(req.PoseID)
	if err != nil {
		if errors.Is(err, app.ErrUnknownTemplate) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to select template")
		return
	}

	writeJSON(w, http.StatusOK, selectTemplateResponse{PoseID: req.PoseID, Completed: done})
}

// completeStep handles POST /api/session/step.
func (h *CoachHandler) completeStep(w http.ResponseWriter, r *http.Request) {
	if h.coach.CurrentTemplate() == nil {
		writeError(w, http.StatusConflict, "No template selected")
		return
	}

	done, err := h.coach.CompleteStep()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to complete step")
		return
	}
	writeJSON(w, http.StatusOK, done)
}

// setEnabled handles POST /api/session/enabled.
func (h *CoachHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	h.coach.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}
