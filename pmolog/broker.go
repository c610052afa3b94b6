package pmolog

import (
	"container/ring"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const bufferSize = 1000

// Event est un message diffusé aux clients SSE.
type Event struct {
	Name string
	Data string
}

// ---------- SSE Broker ----------

// Broker diffuse des événements nommés (logs, état du lecteur, liste des
// renderers) aux clients Server-Sent Events. Les derniers événements sont
// rejoués aux nouveaux clients.
type Broker struct {
	clients map[chan Event]bool
	mu      sync.RWMutex

	history *ring.Ring
	histMu  sync.Mutex
}

func NewBroker() *Broker {
	return &Broker{
		clients: make(map[chan Event]bool),
		history: ring.New(bufferSize),
	}
}

// Default est le broker du processus, celui qu'alimente le hook logrus.
var Default = NewBroker()

// Publish encode payload en JSON et l'envoie à tous les clients connectés.
// Un client trop lent perd l'événement.
func (b *Broker) Publish(event string, payload interface{}) {
	var data string
	switch p := payload.(type) {
	case string:
		data = p
	case []byte:
		data = string(p)
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Debugf("❌ cannot encode %s event: %v", event, err)
			return
		}
		data = string(raw)
	}

	ev := Event{Name: event, Data: data}

	b.histMu.Lock()
	b.history.Value = ev
	b.history = b.history.Next()
	b.histMu.Unlock()

	b.mu.RLock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default: // skip if full
		}
	}
	b.mu.RUnlock()
}

// Subscribe enregistre un client. La fonction retournée le désinscrit.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 20)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// History retourne les événements mémorisés, du plus ancien au plus récent.
func (b *Broker) History() []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()

	var out []Event
	b.history.Do(func(v interface{}) {
		if ev, ok := v.(Event); ok {
			out = append(out, ev)
		}
	})
	return out
}

// ServeHTTP ouvre un flux text/event-stream.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	// replay buffer
	for _, ev := range b.History() {
		writeEvent(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case ev := <-ch:
			writeEvent(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
}

// ---------- Hook for Logrus ----------

// SSELogHook recopie chaque entrée logrus dans un Broker, sous l'événement
// "message".
type SSELogHook struct {
	Broker *Broker
}

func (SSELogHook) Levels() []log.Level { return log.AllLevels }

func (h SSELogHook) Fire(entry *log.Entry) error {
	b := h.Broker
	if b == nil {
		b = Default
	}
	b.Publish("message", map[string]string{
		"time":    entry.Time.Format(time.RFC3339),
		"level":   entry.Level.String(),
		"content": entry.Message,
	})
	return nil
}
