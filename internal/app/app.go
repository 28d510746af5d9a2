// Package app provides the main application logic for posecoach: it runs
// the camera through the pose detector and scoring session and publishes
// every frame result to its subscribers.
package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/posecoach/internal/capture"
	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/feedback"
	"github.com/ayusman/posecoach/internal/plugin"
	"github.com/ayusman/posecoach/internal/pose"
	"github.com/ayusman/posecoach/internal/session"
	"github.com/ayusman/posecoach/internal/store"
)

// ErrUnknownTemplate is returned when selecting a pose ID that is not loaded.
var ErrUnknownTemplate = errors.New("unknown template")

// Config holds configuration options for the application.
type Config struct {
	Store        *store.Store
	PluginDir    string
	CameraID     int
	MotionThresh float64
	IdleFPS      int
	ActiveFPS    int
	IdleTimeout  time.Duration
	HookTimeout  time.Duration
	Session      session.Config
	Detector     detector.Config
}

// App is the main application that orchestrates capture, scoring and step hooks.
type App struct {
	config   Config
	camera   capture.Camera
	motion   *capture.MotionDetector
	rate     *capture.RateController
	detector detector.Detector
	session  *session.Session
	overlay  feedback.OverlayStyle

	pluginMgr *plugin.Manager
	hooks     *plugin.Dispatcher
	hub       *hub

	mu        sync.RWMutex
	enabled   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	sessionID string

	templatesMu sync.RWMutex
	templates   map[string]*pose.Template

	// stepMu serializes step completion and template selection.
	stepMu     sync.Mutex
	lastStep   *CompletedStep
	stepFuncs  []func(CompletedStep)
	stepFuncMu sync.RWMutex
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	config.Session = config.Session.WithDefaults()

	rate := capture.NewRateController(config.IdleFPS, config.ActiveFPS, config.IdleTimeout)

	a := &App{
		config: config,
		camera: capture.NewCameraWithConfig(capture.CameraConfig{
			DeviceID: config.CameraID,
			FPS:      rate.IdleFPS,
		}),
		motion:    capture.NewMotionDetector(config.MotionThresh),
		rate:      rate,
		session:   session.New(config.Session),
		overlay:   feedback.DefaultOverlayStyle(),
		pluginMgr: plugin.NewManager(config.PluginDir),
		hub:       newHub(),
		enabled:   true,
		templates: make(map[string]*pose.Template),
	}
	a.hooks = plugin.NewDispatcher(a.pluginMgr, plugin.NewExecutor(config.HookTimeout))

	// Try MediaPipe first, fall back to mock detector
	if mp, err := detector.NewMediaPipeDetector(config.Detector); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe pose detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = detector.NewMockDetector()
	}

	return a
}

// SetEnabled enables or disables coaching. Frames are not scored while disabled.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether coaching is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the pose detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the frame source. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start opens a coaching session and begins the capture pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.rate.IdleFPS)

	if err := a.openSessionLocked(); err != nil {
		a.camera.Close()
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Println("Coaching pipeline started")
	return nil
}

// Stop halts the pipeline, closes the session and waits for pending hooks.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Reset()
	a.session.Reset()

	a.closeSession()
	a.hooks.Wait()

	log.Println("Coaching pipeline stopped")
}

// Close stops the pipeline and releases the detector.
func (a *App) Close() error {
	a.Stop()
	a.motion.Close()
	a.hub.closeAll()
	return a.Detector().Close()
}

// IsRunning reports whether the pipeline goroutine is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// openSessionLocked starts a new session record. a.mu must be held.
func (a *App) openSessionLocked() error {
	if a.sessionID != "" {
		return nil
	}
	id := uuid.New().String()
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(&store.Session{ID: id}); err != nil {
			return err
		}
	}
	a.sessionID = id
	log.Printf("Started session %s", id)
	return nil
}

// SessionID returns the current session ID, starting a session if needed.
func (a *App) SessionID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.openSessionLocked(); err != nil {
		return "", err
	}
	return a.sessionID, nil
}

func (a *App) closeSession() {
	a.mu.Lock()
	id := a.sessionID
	a.sessionID = ""
	a.mu.Unlock()

	if id == "" {
		return
	}
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().End(id); err != nil {
			log.Printf("Failed to end session %s: %v", id, err)
		}
	}
	a.hooks.DispatchAsync(plugin.Request{Event: plugin.EventSessionEnded, SessionID: id})
	log.Printf("Ended session %s", id)
}

// Subscribe registers for frame updates. With frames set, updates carry the
// JPEG-encoded camera frame with the skeleton overlay. Call the returned
// function to unsubscribe.
func (a *App) Subscribe(frames bool) (<-chan Update, func()) {
	sub := a.hub.subscribe(frames)
	return sub.ch, func() { a.hub.unsubscribe(sub) }
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Session returns the scoring session.
func (a *App) Session() *session.Session {
	return a.session
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}
