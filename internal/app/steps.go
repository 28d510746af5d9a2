package app

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/posecoach/internal/plugin"
	"github.com/ayusman/posecoach/internal/pose"
	"github.com/ayusman/posecoach/internal/session"
	"github.com/ayusman/posecoach/internal/store"
)

// CompletedStep is a finished exercise step with its stable score.
type CompletedStep struct {
	SessionID string `json:"session_id"`
	Step      int    `json:"step"`
	session.StepResult
	CompletedAt time.Time `json:"completed_at"`
}

// LoadTemplates replaces the in-memory templates with those in the store
// and restores the previously selected one. Records that fail to parse are
// logged and skipped.
func (a *App) LoadTemplates() error {
	if a.config.Store == nil {
		return nil
	}

	records, err := a.config.Store.Templates().List()
	if err != nil {
		return err
	}

	loaded := make(map[string]*pose.Template, len(records))
	for _, rec := range records {
		tpl, err := pose.ParseTemplate(rec.Data)
		if err != nil {
			log.Printf("Failed to parse template %s: %v", rec.PoseID, err)
			continue
		}
		if len(tpl.Ignored) > 0 {
			log.Printf("Template %s: ignoring unknown joints %s", rec.PoseID, strings.Join(tpl.Ignored, ", "))
		}
		tpl.PoseID = rec.PoseID
		loaded[rec.PoseID] = tpl
	}

	a.templatesMu.Lock()
	a.templates = loaded
	a.templatesMu.Unlock()
	log.Printf("Loaded %d templates from database", len(loaded))

	// An unchanged current template keeps its pointer so the step in
	// progress is not reset.
	if cur := a.session.Template(); cur != nil {
		tpl, ok := loaded[cur.PoseID]
		switch {
		case !ok:
			a.session.SetTemplate(nil)
		case sameTemplate(cur, tpl):
			a.templatesMu.Lock()
			a.templates[cur.PoseID] = cur
			a.templatesMu.Unlock()
		default:
			a.session.SetTemplate(tpl)
		}
		return nil
	}

	active, err := a.config.Store.Settings().Get(store.SettingActiveTemplate)
	switch {
	case errors.Is(err, store.ErrNotFound), active == "":
		return nil
	case err != nil:
		return err
	}
	if tpl, ok := loaded[active]; ok {
		a.session.SetTemplate(tpl)
		log.Printf("Restored active template %s", active)
	}
	return nil
}

// ImportTemplates stores every *.json template document in dir, creating
// new records and updating those whose pose ID already exists. It returns
// the number of templates imported.
func (a *App) ImportTemplates(dir string) (int, error) {
	if a.config.Store == nil || dir == "" {
		return 0, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}

	repo := a.config.Store.Templates()
	n := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return n, err
		}
		tpl, err := pose.ParseTemplate(data)
		if err != nil {
			log.Printf("Skipping %s: %v", filepath.Base(path), err)
			continue
		}
		if tpl.PoseID == "" {
			tpl.PoseID = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		if err := tpl.Validate(); err != nil {
			log.Printf("Skipping %s: %v", filepath.Base(path), err)
			continue
		}

		doc, err := tpl.MarshalJSON()
		if err != nil {
			return n, err
		}

		existing, err := repo.GetByPoseID(tpl.PoseID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			err = repo.Create(&store.Template{
				ID:         uuid.New().String(),
				PoseID:     tpl.PoseID,
				Name:       tpl.Name,
				CameraView: tpl.CameraView,
				Data:       doc,
			})
		case err == nil:
			existing.Name = tpl.Name
			existing.CameraView = tpl.CameraView
			existing.Data = doc
			err = repo.Update(existing)
		}
		if err != nil {
			return n, fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}
		n++
	}

	log.Printf("Imported %d templates from %s", n, dir)
	return n, nil
}

// AddTemplate registers tpl in memory, replacing any with the same pose ID.
// tpl must already be prepared.
func (a *App) AddTemplate(tpl *pose.Template) {
	a.templatesMu.Lock()
	defer a.templatesMu.Unlock()
	a.templates[tpl.PoseID] = tpl
}

// Template returns the loaded template for poseID.
func (a *App) Template(poseID string) (*pose.Template, bool) {
	a.templatesMu.RLock()
	defer a.templatesMu.RUnlock()
	tpl, ok := a.templates[poseID]
	return tpl, ok
}

// Templates returns the loaded templates in pose ID order.
func (a *App) Templates() []*pose.Template {
	a.templatesMu.RLock()
	defer a.templatesMu.RUnlock()

	out := make([]*pose.Template, 0, len(a.templates))
	for _, tpl := range a.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoseID < out[j].PoseID })
	return out
}

// CurrentTemplate returns the template being coached, or nil.
func (a *App) CurrentTemplate() *pose.Template {
	return a.session.Template()
}

// SelectTemplate switches coaching to poseID; an empty poseID clears the
// template. When a different template was active its step is completed
// first and returned. Selecting the current template again does nothing.
func (a *App) SelectTemplate(poseID string) (*CompletedStep, error) {
	var next *pose.Template
	if poseID != "" {
		tpl, ok := a.Template(poseID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, poseID)
		}
		next = tpl
	}

	a.stepMu.Lock()
	defer a.stepMu.Unlock()

	cur := a.session.Template()
	if cur == next {
		return nil, nil
	}

	var done *CompletedStep
	if cur != nil {
		step, err := a.completeStepLocked()
		if err != nil {
			return nil, err
		}
		done = step
	}

	a.session.SetTemplate(next)
	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingActiveTemplate, poseID); err != nil {
			log.Printf("Failed to save active template: %v", err)
		}
	}
	if poseID == "" {
		log.Println("Cleared template")
	} else {
		log.Printf("Selected template %s", poseID)
	}
	return done, nil
}

// CompleteStep closes the current step: its stable score is stored, step
// hooks run in the background and the buffers start over.
func (a *App) CompleteStep() (*CompletedStep, error) {
	a.stepMu.Lock()
	defer a.stepMu.Unlock()
	return a.completeStepLocked()
}

func (a *App) completeStepLocked() (*CompletedStep, error) {
	sessionID, err := a.SessionID()
	if err != nil {
		return nil, err
	}

	index := a.session.Step()
	res := a.session.CompleteStep()
	step := &CompletedStep{
		SessionID:   sessionID,
		Step:        index,
		StepResult:  res,
		CompletedAt: time.Now(),
	}

	if a.config.Store != nil {
		err := a.config.Store.Results().Create(&store.StepResult{
			SessionID:   sessionID,
			Step:        index,
			PoseID:      res.PoseID,
			StableScore: res.StableScore,
			Frames:      res.Frames,
			Scores:      res.Scores,
			CompletedAt: step.CompletedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("save step result: %w", err)
		}
	}

	if res.StableScore != nil {
		log.Printf("Step %d (%s) completed: stable score %d from %d frames", index, res.PoseID, *res.StableScore, res.Frames)
	} else {
		log.Printf("Step %d (%s) completed without a stable score", index, res.PoseID)
	}

	a.hooks.DispatchAsync(plugin.Request{
		Event:     plugin.EventStepCompleted,
		SessionID: sessionID,
		Step: &plugin.StepPayload{
			SessionID:   sessionID,
			Step:        index,
			PoseID:      res.PoseID,
			StableScore: res.StableScore,
			Frames:      res.Frames,
			CompletedAt: step.CompletedAt.Format(time.RFC3339),
		},
	})

	a.lastStep = step
	a.stepFuncMu.RLock()
	funcs := a.stepFuncs
	a.stepFuncMu.RUnlock()
	for _, fn := range funcs {
		fn(*step)
	}

	return step, nil
}

// OnStep registers fn to be called after every completed step.
func (a *App) OnStep(fn func(CompletedStep)) {
	a.stepFuncMu.Lock()
	defer a.stepFuncMu.Unlock()
	a.stepFuncs = append(a.stepFuncs, fn)
}

// LastStep returns the most recently completed step, or nil.
func (a *App) LastStep() *CompletedStep {
	a.stepMu.Lock()
	defer a.stepMu.Unlock()
	return a.lastStep
}

func sameTemplate(a, b *pose.Template) bool {
	da, errA := a.MarshalJSON()
	db, errB := b.MarshalJSON()
	return errA == nil && errB == nil && bytes.Equal(da, db)
}
