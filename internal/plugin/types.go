// Package plugin runs external hook programs when coaching events occur,
// such as a completed exercise step.
package plugin

import "encoding/json"

// Event names a hook point.
type Event string

const (
	// EventStepCompleted fires after a step's stable score is known.
	EventStepCompleted Event = "step_completed"
	// EventSessionEnded fires when a coaching session is closed.
	EventSessionEnded Event = "session_ended"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []Event         `json:"events"`
	Config       json.RawMessage `json:"config,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the plugin subscribes to ev.
func (m Manifest) Handles(ev Event) bool {
	for _, e := range m.Events {
		if e == ev {
			return true
		}
	}
	return false
}

// StepPayload describes a completed step.
type StepPayload struct {
	SessionID   string `json:"session_id"`
	Step        int    `json:"step"`
	PoseID      string `json:"pose_id"`
	StableScore *int   `json:"stable_score"`
	Frames      int    `json:"frames"`
	CompletedAt string `json:"completed_at"`
}

// Request is written to a plugin's stdin as JSON.
type Request struct {
	Event     Event           `json:"event"`
	SessionID string          `json:"session_id,omitempty"`
	Step      *StepPayload    `json:"step,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
