package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/posecoach/internal/pose"
	"github.com/ayusman/posecoach/internal/store"
)

// maxTemplateSize bounds template uploads.
const maxTemplateSize = 1 << 20

// Reloader refreshes the in-memory templates after the store changes.
type Reloader interface {
	LoadTemplates() error
}

// TemplateHandler handles HTTP requests for pose template resources.
type TemplateHandler struct {
	store    *store.Store
	reloader Reloader
}

// NewTemplateHandler creates a new TemplateHandler. reloader may be nil.
func NewTemplateHandler(s *store.Store, reloader Reloader) *TemplateHandler {
	return &TemplateHandler{store: s, reloader: reloader}
}

// ServeHTTP routes /api/templates and /api/templates/{id}.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/templates")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type templateResponse struct {
	ID         string          `json:"id"`
	PoseID     string          `json:"pose_id"`
	Name       string          `json:"name"`
	CameraView string          `json:"camera_view,omitempty"`
	Joints     []pose.Joint    `json:"joints"`
	Ignored    []string        `json:"ignored,omitempty"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

func toTemplateResponse(rec *store.Template) templateResponse {
	resp := templateResponse{
		ID:         rec.ID,
		PoseID:     rec.PoseID,
		Name:       rec.Name,
		CameraView: rec.CameraView,
		Joints:     []pose.Joint{},
		Data:       rec.Data,
		CreatedAt:  formatTime(rec.CreatedAt),
		UpdatedAt:  formatTime(rec.UpdatedAt),
	}
	if tpl, err := pose.ParseTemplate(rec.Data); err == nil {
		resp.Joints = tpl.Joints()
		resp.Ignored = tpl.Ignored
	}
	return resp
}

// readTemplate decodes and validates a template document from the body.
func readTemplate(r *http.Request) (*pose.Template, json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateSize))
	if err != nil {
		return nil, nil, err
	}
	tpl, err := pose.ParseTemplate(body)
	if err != nil {
		return nil, nil, err
	}
	if tpl.PoseID == "" {
		return nil, nil, errors.New("pose_id is required")
	}
	if err := tpl.Validate(); err != nil {
		return nil, nil, err
	}
	doc, err := tpl.MarshalJSON()
	if err != nil {
		return nil, nil, err
	}
	return tpl, doc, nil
}

func (h *TemplateHandler) reload() {
	if h.reloader == nil {
		return
	}
	if err := h.reloader.LoadTemplates(); err != nil {
		log.Printf("Failed to reload templates: %v", err)
	}
}

// list handles GET /api/templates.
func (h *TemplateHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Templates().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	response := listTemplatesResponse{
		Templates: make([]templateResponse, 0, len(records)),
	}
	for _, rec := range records {
		response.Templates = append(response.Templates, toTemplateResponse(rec))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/templates/{id}.
func (h *TemplateHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}

	writeJSON(w, http.StatusOK, toTemplateResponse(rec))
}

// create handles POST /api/templates. The body is a template document.
func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	tpl, doc, err := readTemplate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.store.Templates().GetByPoseID(tpl.PoseID); err == nil {
		writeError(w, http.StatusConflict, "Template with this pose_id already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check template")
		return
	}

	rec := &store.Template{
		ID:         uuid.New().String(),
		PoseID:     tpl.PoseID,
		Name:       tpl.Name,
		CameraView: tpl.CameraView,
		Data:       doc,
	}
	if rec.Name == "" {
		rec.Name = tpl.PoseID
	}

	if err := h.store.Templates().Create(rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}
	h.reload()

	writeJSON(w, http.StatusCreated, toTemplateResponse(rec))
}

// update handles PUT /api/templates/{id}. The body replaces the document.
func (h *TemplateHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}

	tpl, doc, err := readTemplate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if tpl.PoseID != rec.PoseID {
		if _, err := h.store.Templates().GetByPoseID(tpl.PoseID); err == nil {
			writeError(w, http.StatusConflict, "Template with this pose_id already exists")
			return
		}
	}

	rec.PoseID = tpl.PoseID
	rec.CameraView = tpl.CameraView
	rec.Data = doc
	if tpl.Name != "" {
		rec.Name = tpl.Name
	}

	if err := h.store.Templates().Update(rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}
	h.reload()

	writeJSON(w, http.StatusOK, toTemplateResponse(rec))
}

// delete handles DELETE /api/templates/{id}.
func (h *TemplateHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Templates().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}
	h.reload()

	w.WriteHeader(http.StatusNoContent)
}
