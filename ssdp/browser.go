package ssdp

import (
	"context"
	"strings"
	"sync"
	"time"

	gossdp "github.com/koron/go-ssdp"
	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
)

const (
	// MaxAge par défaut quand l'annonce n'a pas de CACHE-CONTROL exploitable.
	MaxAge = 1800

	SearchType = pmoupnp.DeviceMediaRenderer
)

// Sink reçoit les devices résolus et leur disparition. pmorenderer.Registry
// l'implémente.
type Sink interface {
	DeviceAdded(dev *pmoupnp.Device)
	DeviceRemoved(dev *pmoupnp.Device)
}

// Fetcher résout un device depuis l'URL de sa description.
type Fetcher func(ctx context.Context, location string) (*pmoupnp.Device, error)

type entry struct {
	dev     *pmoupnp.Device
	expires time.Time
}

// Browser découvre les MediaRenderers : M-SEARCH périodique et écoute des
// NOTIFY alive/byebye. Chaque device est décrit une seule fois puis remis au
// Sink. Un device dont le max-age expire sans nouvelle annonce est retiré.
type Browser struct {
	sink      Sink
	fetch     Fetcher
	waitSec   int
	interval  time.Duration
	localAddr string
	now       func() time.Time

	mu      sync.Mutex
	known   map[string]*entry
	pending map[string]bool

	monitor *gossdp.Monitor
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Browser)

// WithFetcher remplace la résolution HTTP des descriptions.
func WithFetcher(f Fetcher) Option {
	return func(b *Browser) { b.fetch = f }
}

// WithSearch règle l'attente des réponses M-SEARCH et la période de
// recherche.
func WithSearch(waitSec int, interval time.Duration) Option {
	return func(b *Browser) {
		b.waitSec = waitSec
		b.interval = interval
	}
}

// WithLocalAddr restreint la recherche à une adresse locale ("ip:port" ou "").
func WithLocalAddr(addr string) Option {
	return func(b *Browser) { b.localAddr = addr }
}

// WithClock remplace l'horloge utilisée pour l'expiration.
func WithClock(now func() time.Time) Option {
	return func(b *Browser) { b.now = now }
}

func NewBrowser(sink Sink, opts ...Option) *Browser {
	b := &Browser{
		sink:     sink,
		waitSec:  3,
		interval: time.Minute,
		now:      time.Now,
		known:    make(map[string]*entry),
		pending:  make(map[string]bool),
	}
	b.fetch = func(ctx context.Context, location string) (*pmoupnp.Device, error) {
		return pmoupnp.FetchDevice(ctx, nil, location)
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b
}

// Start lance l'écoute des NOTIFY et la recherche périodique.
func (b *Browser) Start() error {
	log.Infof("✅ Starting SSDP browser for %s", SearchType)

	b.monitor = &gossdp.Monitor{
		Alive: func(m *gossdp.AliveMessage) {
			b.HandleAlive(m.USN, m.Type, m.Location, m.MaxAge())
		},
		Bye: func(m *gossdp.ByeMessage) {
			b.HandleBye(m.USN, m.Type)
		},
	}
	if err := b.monitor.Start(); err != nil {
		log.Warnf("❌ SSDP monitor unavailable, relying on M-SEARCH only: %v", err)
		b.monitor = nil
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.loop()
	}()
	return nil
}

func (b *Browser) loop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	sweep := time.NewTicker(30 * time.Second)
	defer sweep.Stop()

	b.Search()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.Search()
		case <-sweep.C:
			b.Sweep()
		}
	}
}

// Search envoie un M-SEARCH et traite les réponses.
func (b *Browser) Search() {
	services, err := gossdp.Search(SearchType, b.waitSec, b.localAddr)
	if err != nil {
		log.Warnf("❌ SSDP search failed: %v", err)
		return
	}
	log.Debugf("🔎 SSDP search: %d answers", len(services))
	for _, s := range services {
		b.HandleAlive(s.USN, s.Type, s.Location, s.MaxAge())
	}
}

// Close arrête la découverte. Les devices connus ne sont pas retirés du Sink.
func (b *Browser) Close() error {
	b.cancel()
	var err error
	if b.monitor != nil {
		err = b.monitor.Close()
	}
	b.wg.Wait()
	return err
}

func isRenderer(nt string) bool {
	return strings.HasPrefix(nt, "urn:schemas-upnp-org:device:MediaRenderer:") ||
		strings.HasPrefix(nt, "urn:schemas-upnp-org:service:AVTransport:")
}

// HandleAlive traite une annonce alive ou une réponse de recherche.
func (b *Browser) HandleAlive(usn, nt, location string, maxAge int) {
	if !isRenderer(nt) || location == "" {
		return
	}
	udn := pmoupnp.UDNFromUSN(usn)
	if udn == "" {
		return
	}
	if maxAge <= 0 {
		maxAge = MaxAge
	}
	expires := b.now().Add(time.Duration(maxAge) * time.Second)

	b.mu.Lock()
	if e, ok := b.known[udn]; ok {
		e.expires = expires
		b.mu.Unlock()
		return
	}
	if _, ok := b.pending[udn]; ok {
		b.mu.Unlock()
		return
	}
	b.pending[udn] = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.resolve(udn, location, expires)
	}()
}

func (b *Browser) resolve(udn, location string, expires time.Time) {
	log.Infof("📡 New renderer %s at %s", udn, location)

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()
	dev, err := b.fetch(ctx, location)

	b.mu.Lock()
	wanted := b.pending[udn]
	delete(b.pending, udn)
	if err != nil {
		b.mu.Unlock()
		log.Warnf("❌ Cannot describe renderer %s: %v", location, err)
		return
	}
	if !wanted || b.ctx.Err() != nil {
		b.mu.Unlock()
		return
	}
	b.known[udn] = &entry{dev: dev, expires: expires}
	b.mu.Unlock()

	b.sink.DeviceAdded(dev)
}

// HandleBye traite un byebye.
func (b *Browser) HandleBye(usn, nt string) {
	if nt != "" && !isRenderer(nt) {
		return
	}
	udn := pmoupnp.UDNFromUSN(usn)

	b.mu.Lock()
	if _, ok := b.pending[udn]; ok {
		b.pending[udn] = false
	}
	e, ok := b.known[udn]
	if ok {
		delete(b.known, udn)
	}
	b.mu.Unlock()

	if ok {
		log.Infof("👋 Renderer %s left", e.dev)
		b.sink.DeviceRemoved(e.dev)
	}
}

// Sweep retire les devices dont le max-age est dépassé.
func (b *Browser) Sweep() {
	now := b.now()

	var expired []*pmoupnp.Device
	b.mu.Lock()
	for udn, e := range b.known {
		if now.After(e.expires) {
			expired = append(expired, e.dev)
			delete(b.known, udn)
		}
	}
	b.mu.Unlock()

	for _, dev := range expired {
		log.Infof("👋 Renderer %s expired", dev)
		b.sink.DeviceRemoved(dev)
	}
}

// Known retourne le nombre de devices actuellement connus.
func (b *Browser) Known() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.known)
}
