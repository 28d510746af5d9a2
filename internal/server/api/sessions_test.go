package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/posecoach/internal/store"
)

func intPtr(v int) *int { return &v }

func seedSession(t *testing.T, s *store.Store, id string, started time.Time, results ...store.StepResult) {
	t.Helper()
	require.NoError(t, s.Sessions().Create(&store.Session{ID: id, StartedAt: started}))
	for i := range results {
		results[i].SessionID = id
		require.NoError(t, s.Results().Create(&results[i]))
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedSession(t, s, "old", now.Add(-time.Hour))
	seedSession(t, s, "new", now)
	require.NoError(t, s.Sessions().End("old"))

	handler := NewSessionHandler(s)

	rec := serve(handler, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listSessionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "new", resp.Sessions[0].ID)
	assert.Nil(t, resp.Sessions[0].EndedAt)
	assert.NotNil(t, resp.Sessions[1].EndedAt)

	rec = serve(handler, http.MethodGet, "/api/sessions?limit=1", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Sessions, 1)

	rec = serve(handler, http.MethodGet, "/api/sessions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Results(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "s1", time.Now(),
		store.StepResult{Step: 0, PoseID: "squat", StableScore: intPtr(80), Frames: 3, Scores: []int{70, 80, 90}},
		store.StepResult{Step: 1, PoseID: "standing", StableScore: intPtr(90), Frames: 2, Scores: []int{88, 92}},
		store.StepResult{Step: 2, PoseID: "squat", Frames: 0},
	)

	handler := NewSessionHandler(s)
	rec := serve(handler, http.MethodGet, "/api/sessions/s1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "s1", resp.Session.ID)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, []int{70, 80, 90}, resp.Results[0].Scores)
	assert.Nil(t, resp.Results[2].StableScore)
	assert.Equal(t, []int{}, resp.Results[2].Scores)

	assert.Equal(t, 3, resp.Summary.Steps)
	assert.Equal(t, 2, resp.Summary.Scored)
	assert.InDelta(t, 85.0, resp.Summary.Mean, 1e-9)
	assert.Equal(t, 90, resp.Summary.Best)
	assert.Equal(t, 80, resp.Summary.Worst)
}

func TestSessionHandler_Chart(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "s1", time.Now(),
		store.StepResult{Step: 0, PoseID: "squat", StableScore: intPtr(80), Frames: 3, Scores: []int{70, 80, 90}},
	)
	seedSession(t, s, "empty", time.Now())

	handler := NewSessionHandler(s)

	rec := serve(handler, http.MethodGet, "/api/sessions/s1/chart.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), "body is not a PNG")

	rec = serve(handler, http.MethodGet, "/api/sessions/empty/chart.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_NotFound(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	for _, path := range []string{
		"/api/sessions/missing",
		"/api/sessions/missing/results",
		"/api/sessions/missing/chart.png",
		"/api/sessions/missing/other",
	} {
		rec := serve(handler, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := serve(handler, http.MethodDelete, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "s1", time.Now(),
		store.StepResult{Step: 0, PoseID: "squat", StableScore: intPtr(80), Frames: 1, Scores: []int{80}},
	)
	handler := NewSessionHandler(s)

	rec := serve(handler, http.MethodDelete, "/api/sessions/s1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(handler, http.MethodGet, "/api/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	results, err := s.Results().ListBySession("s1")
	require.NoError(t, err)
	assert.Empty(t, results)
}
