// Package progress relays export progress to subscribers scoped by job id.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultBuffer = 16

	// How long a finished topic keeps answering late subscribers with its
	// terminal update.
	defaultRetain = time.Minute
)

// Update is one progress notification for a job.
type Update struct {
	JobID    string  `json:"jobId"`
	Percent  float64 `json:"percent"`
	Status   string  `json:"status"`
	Step     int     `json:"step"`
	Error    string  `json:"error,omitempty"`
	Path     string  `json:"path,omitempty"`
	Filename string  `json:"filename,omitempty"`

	// Done marks the terminal update. Subscriber channels are closed after it.
	Done bool `json:"done"`
}

type topic struct {
	subs   map[int]chan Update
	nextID int
	last   *Update
	closed bool
}

// Hub fans updates out to per-job subscribers. Publishing never blocks: a
// subscriber that falls behind loses intermediate updates but always
// receives the terminal one.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
	buffer int
	retain time.Duration
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]*topic),
		buffer: defaultBuffer,
		retain: defaultRetain,
		logger: logger,
	}
}

func (h *Hub) topic(jobID string) *topic {
	t, ok := h.topics[jobID]
	if !ok {
		t = &topic{subs: make(map[int]chan Update)}
		h.topics[jobID] = t
	}
	return t
}

// Subscribe returns a channel of updates for one job and a function that
// unsubscribes. A subscriber joining mid-job first receives the latest
// update; one joining after the job finished receives the terminal update
// and a closed channel.
func (h *Hub) Subscribe(jobID string) (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Update, h.buffer)
	t := h.topic(jobID)
	if t.last != nil {
		ch <- *t.last
	}
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.topics[jobID]; ok && cur == t {
				if c, ok := t.subs[id]; ok {
					delete(t.subs, id)
					close(c)
				}
				// Nothing was ever published here; no close will evict it.
				if len(t.subs) == 0 && t.last == nil && !t.closed {
					delete(h.topics, jobID)
				}
			}
		})
	}
}

// Publish delivers u to the subscribers of u.JobID only.
func (h *Hub) Publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topic(u.JobID)
	if t.closed {
		return
	}
	last := u
	t.last = &last

	for id, ch := range t.subs {
		if !offer(ch, u) && u.Done {
			// Make room for the terminal update by dropping the oldest.
			select {
			case <-ch:
			default:
			}
			if !offer(ch, u) {
				h.logger.Warn("progress subscriber lost terminal update", "job_id", u.JobID, "subscriber", id)
			}
		}
	}

	if u.Done {
		h.closeTopic(u.JobID, t)
	}
}

func offer(ch chan Update, u Update) bool {
	select {
	case ch <- u:
		return true
	default:
		return false
	}
}

// Close ends a job's topic without a terminal update.
func (h *Hub) Close(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[jobID]; ok && !t.closed {
		h.closeTopic(jobID, t)
	}
}

// closeTopic must be called with h.mu held.
func (h *Hub) closeTopic(jobID string, t *topic) {
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	time.AfterFunc(h.retain, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.topics[jobID]; ok && cur == t {
			delete(h.topics, jobID)
		}
	})
}

// Last returns the most recent update published for a job.
func (h *Hub) Last(jobID string) (Update, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[jobID]
	if !ok || t.last == nil {
		return Update{}, false
	}
	return *t.last, true
}

// Subscribers returns the number of live subscribers for a job.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[jobID]; ok {
		return len(t.subs)
	}
	return 0
}
