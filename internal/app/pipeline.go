package app

import (
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/feedback"
	"github.com/ayusman/posecoach/internal/session"
)

// runPipeline is the capture loop. It reads frames at the rate chosen by the
// rate controller:
// 1. Start in idle mode
// 2. Score every frame against the current template
// 3. Motion or a person in frame switches to active mode
// 4. After the idle timeout without either, switch back to idle mode
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	cam := a.Camera()
	ticker := time.NewTicker(a.rate.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := cam.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			motion := a.motion.Detect(frame)
			_, present := a.processFrame(frame)
			frame.Close()

			fps, changed := a.rate.Observe(motion.Moving || present, time.Now())
			if changed {
				cam.SetFPS(fps)
				ticker.Reset(a.rate.Interval())
				if a.rate.Active() {
					log.Printf("Switched to active mode (%d fps)", fps)
				} else {
					log.Printf("Switched to idle mode (%d fps)", fps)
				}
			}
		}
	}
}

// processFrame scores one frame and publishes the result. It reports
// whether a person was found. A detector error skips the frame.
func (a *App) processFrame(frame *gocv.Mat) (Update, bool) {
	lm, err := a.Detector().Detect(frame)
	if err != nil {
		log.Printf("Error detecting pose: %v", err)
		return Update{}, false
	}

	a.mu.RLock()
	sessionID := a.sessionID
	a.mu.RUnlock()

	res := a.session.Process(lm)
	u := Update{
		Result:    res,
		SessionID: sessionID,
		Step:      a.session.Step(),
		Timestamp: time.Now().UnixMilli(),
	}

	if a.hub.len() == 0 {
		return u, lm != nil
	}

	if a.hub.wantsFrames() {
		annotated := frame.Clone()
		a.drawOverlay(&annotated, lm, res)
		if buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated); err == nil {
			u.Frame = append([]byte(nil), buf.GetBytes()...)
			buf.Close()
		} else {
			log.Printf("Error encoding frame: %v", err)
		}
		annotated.Close()
	}

	a.hub.publish(u)
	return u, lm != nil
}

// drawOverlay paints the skeleton and the status line onto img.
func (a *App) drawOverlay(img *gocv.Mat, lm *detector.PoseLandmarks, res session.FrameResult) {
	feedback.DrawSkeleton(img, lm, res.JointColors, a.overlay)
	feedback.DrawStatus(img, res.Score, res.FeedbackText)
}
