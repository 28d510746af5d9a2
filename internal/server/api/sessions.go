package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/ayusman/posecoach/internal/report"
	"github.com/ayusman/posecoach/internal/store"
)

// Chart dimensions.
const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// SessionHandler handles HTTP requests for past sessions and their results.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id},
// /api/sessions/{id}/results and /api/sessions/{id}/chart.png.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "results":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.results(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "chart.png":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.chart(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID        string  `json:"id"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type resultResponse struct {
	Step        int    `json:"step"`
	PoseID      string `json:"pose_id"`
	StableScore *int   `json:"stable_score"`
	Frames      int    `json:"frames"`
	Scores      []int  `json:"scores"`
	CompletedAt string `json:"completed_at"`
}

type resultsResponse struct {
	Session sessionResponse  `json:"session"`
	Results []resultResponse `json:"results"`
	Summary report.Summary   `json:"summary"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{ID: s.ID, StartedAt: formatTime(s.StartedAt)}
	if s.EndedAt != nil {
		ended := formatTime(*s.EndedAt)
		resp.EndedAt = &ended
	}
	return resp
}

func toSteps(results []store.StepResult) []report.Step {
	steps := make([]report.Step, len(results))
	for i, res := range results {
		steps[i] = report.Step{PoseID: res.PoseID, StableScore: res.StableScore, Scores: res.Scores}
	}
	return steps
}

// lookup writes the error response and returns nil when the session is missing.
func (h *SessionHandler) lookup(w http.ResponseWriter, id string) *store.Session {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil
	}
	return sess
}

// list handles GET /api/sessions. ?limit=N keeps the N most recent.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if limit < len(sessions) {
			sessions = sessions[:limit]
		}
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.lookup(w, id)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// delete handles DELETE /api/sessions/{id}. Step results go with it.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// results handles GET /api/sessions/{id}/results.
func (h *SessionHandler) results(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.lookup(w, id)
	if sess == nil {
		return
	}

	results, err := h.store.Results().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}

	response := resultsResponse{
		Session: toSessionResponse(sess),
		Results: make([]resultResponse, 0, len(results)),
		Summary: report.Summarize(toSteps(results)),
	}
	for _, res := range results {
		scores := res.Scores
		if scores == nil {
			scores = []int{}
		}
		response.Results = append(response.Results, resultResponse{
			Step:        res.Step,
			PoseID:      res.PoseID,
			StableScore: res.StableScore,
			Frames:      res.Frames,
			Scores:      scores,
			CompletedAt: formatTime(res.CompletedAt),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// chart handles GET /api/sessions/{id}/chart.png.
func (h *SessionHandler) chart(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.lookup(w, id)
	if sess == nil {
		return
	}

	results, err := h.store.Results().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Session %s", sess.StartedAt.Format("2006-01-02 15:04"))
	if err := report.WritePNG(&buf, toSteps(results), title, chartWidth, chartHeight); err != nil {
		if errors.Is(err, report.ErrNoData) {
			writeError(w, http.StatusNotFound, "No scores to chart")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}
