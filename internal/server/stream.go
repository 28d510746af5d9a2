package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/posecoach/internal/app"
)

// Subscriber delivers processed frames from the capture pipeline.
type Subscriber interface {
	Subscribe(frames bool) (<-chan app.Update, func())
}

// StreamHandler serves the annotated camera frames as MJPEG.
type StreamHandler struct {
	source Subscriber
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source Subscriber) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams MJPEG frames until the client goes away or the
// pipeline shuts down.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	updates, unsubscribe := h.source.Subscribe(true)
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if len(u.Frame) == 0 {
				continue
			}
			if err := writePart(w, u.Frame); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// writePart writes one JPEG as a multipart section.
func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
