package app

import (
	"sync"

	"github.com/ayusman/posecoach/internal/session"
)

// subscriberBuffer is how many updates a slow subscriber may fall behind
// before updates are dropped for it.
const subscriberBuffer = 8

// Update is one processed frame as seen by subscribers.
type Update struct {
	Result    session.FrameResult `json:"result"`
	SessionID string              `json:"session_id,omitempty"`
	Step      int                 `json:"step"`
	Timestamp int64               `json:"timestamp"`

	// Frame is the JPEG-encoded frame with overlay, set only for frame subscribers.
	Frame []byte `json:"-"`
}

type subscriber struct {
	ch     chan Update
	frames bool
}

// hub fans updates out to subscribers without ever blocking the pipeline.
type hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe(frames bool) *subscriber {
	s := &subscriber{ch: make(chan Update, subscriberBuffer), frames: frames}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// len returns the number of subscribers.
func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) wantsFrames() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.frames {
			return true
		}
	}
	return false
}

func (h *hub) publish(u Update) {
	bare := u
	bare.Frame = nil

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		msg := bare
		if s.frames {
			msg = u
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}
