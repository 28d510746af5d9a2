// Package main provides a step hook plugin that appends every completed
// step's stable score to a CSV file.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Step      *Step           `json:"step"`
	Config    json.RawMessage `json:"config"`
}

// Step is the completed step payload.
type Step struct {
	SessionID   string `json:"session_id"`
	Step        int    `json:"step"`
	PoseID      string `json:"pose_id"`
	StableScore *int   `json:"stable_score"`
	Frames      int    `json:"frames"`
	CompletedAt string `json:"completed_at"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the manifest or the request.
type Config struct {
	Path string `json:"path"`
}

var header = []string{"session_id", "step", "pose_id", "stable_score", "frames", "completed_at"}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Event {
	case "step_completed":
		if req.Step == nil {
			writeErrorResponse("step_completed without step payload")
			return
		}
		path, err := outputPath(req.Config)
		if err != nil {
			writeErrorResponse(err.Error())
			return
		}
		if err := appendRow(path, req.Step); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to append row: %v", err))
			return
		}
	case "session_ended":
		// rows are already on disk
	default:
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	writeSuccessResponse()
}

func outputPath(raw json.RawMessage) (string, error) {
	cfg := Config{Path: "step_scores.csv"}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.Path == "" {
		return "", fmt.Errorf("config path is empty")
	}
	return cfg.Path, nil
}

// appendRow writes the header on first use, then one row per step.
func appendRow(path string, s *Step) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return err
		}
	}

	score := ""
	if s.StableScore != nil {
		score = strconv.Itoa(*s.StableScore)
	}
	row := []string{s.SessionID, strconv.Itoa(s.Step), s.PoseID, score, strconv.Itoa(s.Frames), s.CompletedAt}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(msg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: msg})
}
