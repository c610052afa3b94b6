package pmorenderer

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
)

// Listener est appelé après chaque changement de la liste, avec une copie.
type Listener func(list []*Renderer)

// Registry tient la liste des cibles disponibles. L'indice 0 est toujours le
// renderer local ; la liste ne contient jamais deux renderers égaux.
// Les notifications sont émises sur la goroutine de découverte.
type Registry struct {
	mu        sync.Mutex
	list      []*Renderer
	listeners map[int]Listener
	nextID    int
	fallback  func(removed *Renderer)
}

func NewRegistry() *Registry {
	return &Registry{
		list:      []*Renderer{Local()},
		listeners: make(map[int]Listener),
	}
}

// DeviceAdded ajoute un device complètement résolu qui expose AVTransport.
// Les annonces en double sont ignorées.
func (reg *Registry) DeviceAdded(dev *pmoupnp.Device) {
	if dev == nil {
		return
	}
	if !dev.Hydrated() {
		log.Debugf("🔎 Ignoring %s: service descriptions not resolved", dev)
		return
	}
	r, err := NewRenderer(dev)
	if err != nil {
		log.Debugf("🔎 Ignoring %s: %v", dev, err)
		return
	}

	reg.mu.Lock()
	for _, known := range reg.list {
		if known.Equal(r) {
			reg.mu.Unlock()
			return
		}
	}
	reg.list = append(reg.list, r)
	list, listeners := reg.snapshotLocked()
	reg.mu.Unlock()

	log.Infof("✅ Renderer added: %s (pause=%v)", r, r.CanPause())
	notify(listeners, list)
}

// DeviceRemoved retire le renderer du device. Le hook de repli est appelé de
// manière synchrone avant les listeners.
func (reg *Registry) DeviceRemoved(dev *pmoupnp.Device) {
	if dev == nil {
		return
	}

	reg.mu.Lock()
	var removed *Renderer
	for i, r := range reg.list {
		if !r.IsLocal() && r.dev.UDN() == dev.UDN() {
			removed = r
			reg.list = append(reg.list[:i:i], reg.list[i+1:]...)
			break
		}
	}
	if removed == nil {
		reg.mu.Unlock()
		return
	}
	list, listeners := reg.snapshotLocked()
	fallback := reg.fallback
	reg.mu.Unlock()

	log.Infof("👋 Renderer removed: %s", removed)
	if fallback != nil {
		fallback(removed)
	}
	notify(listeners, list)
}

func (reg *Registry) snapshotLocked() ([]*Renderer, []Listener) {
	list := make([]*Renderer, len(reg.list))
	copy(list, reg.list)

	listeners := make([]Listener, 0, len(reg.listeners))
	for id := 0; id < reg.nextID; id++ {
		if l, ok := reg.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	return list, listeners
}

func notify(listeners []Listener, list []*Renderer) {
	for _, l := range listeners {
		l(list)
	}
}

// List retourne une copie de la liste courante.
func (reg *Registry) List() []*Renderer {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	list, _ := reg.snapshotLocked()
	return list
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.list)
}

// Get retourne le renderer d'indice i.
func (reg *Registry) Get(i int) (*Renderer, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if i < 0 || i >= len(reg.list) {
		return nil, false
	}
	return reg.list[i], true
}

// Find cherche un renderer par UDN ("uuid:" facultatif) ou par nom, sans
// tenir compte de la casse.
func (reg *Registry) Find(id string) (*Renderer, bool) {
	id = strings.TrimSpace(id)
	udn := pmoupnp.UDNFromUSN(id)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.list {
		if r.ID() == udn || strings.EqualFold(r.Name(), id) {
			return r, true
		}
	}
	return nil, false
}

// Contains indique si un renderer égal à r est dans la liste.
func (reg *Registry) Contains(r *Renderer) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, known := range reg.list {
		if known.Equal(r) {
			return true
		}
	}
	return false
}

// AddListener enregistre l. La fonction retournée le désinscrit.
func (reg *Registry) AddListener(l Listener) (unregister func()) {
	reg.mu.Lock()
	id := reg.nextID
	reg.nextID++
	reg.listeners[id] = l
	reg.mu.Unlock()

	return func() {
		reg.mu.Lock()
		delete(reg.listeners, id)
		reg.mu.Unlock()
	}
}

// SetFallback installe le hook appelé quand un renderer disparaît ; nil le
// retire.
func (reg *Registry) SetFallback(fallback func(removed *Renderer)) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.fallback = fallback
}
