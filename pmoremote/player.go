package pmoremote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/didl"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconfig"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoengine"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/soap"
)

const (
	DefaultAttempts            = 7
	DefaultTimeout             = 2000 * time.Millisecond
	DefaultCompletionThreshold = 500 * time.Millisecond
	DefaultRedirectHops        = 10
	DefaultPollBackoff         = 100 * time.Millisecond
)

// Player implémente pmoengine.Engine sur un renderer distant.
//
// Les actions qui changent l'état sont rejouées jusqu'à attempts fois, chaque
// essai attendant au plus timeout. Les lectures (position, volume) ne font
// qu'un essai.
type Player struct {
	renderer *pmorenderer.Renderer
	avt      *pmoupnp.Service
	rc       *pmoupnp.Service
	invoker  pmoupnp.Invoker
	client   *http.Client

	attempts  int
	timeout   time.Duration
	threshold int64
	hops      int
	backoff   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners pmoengine.Listeners
	src       pmoengine.Source
	state     State
	seq       int

	duration     int64
	durationHint bool
	position     int64
	capsKnown    bool
	hasRelTime   bool
	hasAbsTime   bool
	completed    bool
	volume       int
}

type Option func(*Player)

func WithInvoker(inv pmoupnp.Invoker) Option {
	return func(p *Player) { p.invoker = inv }
}

// WithHTTPClient fixe le client utilisé pour les actions SOAP et la
// résolution des redirections.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Player) { p.client = client }
}

func WithAttempts(n int) Option {
	return func(p *Player) { p.attempts = max(n, 1) }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Player) { p.timeout = d }
}

func WithCompletionThreshold(d time.Duration) Option {
	return func(p *Player) { p.threshold = d.Milliseconds() }
}

func WithRedirectHops(n int) Option {
	return func(p *Player) { p.hops = n }
}

// WithPollBackoff fixe la première attente entre deux GetTransportInfo
// pendant Prepare ; elle double ensuite jusqu'à timeout.
func WithPollBackoff(d time.Duration) Option {
	return func(p *Player) { p.backoff = d }
}

// WithConfig reprend les réglages de la section control.
func WithConfig(cfg *pmoconfig.Config) Option {
	return func(p *Player) {
		p.attempts = cfg.GetActionAttempts()
		p.timeout = cfg.GetActionTimeout()
		p.threshold = cfg.GetCompletionThreshold().Milliseconds()
		p.hops = cfg.GetRedirectHops()
	}
}

// NewPlayer lie un Player au renderer r, qui ne peut pas être le renderer
// local.
func NewPlayer(r *pmorenderer.Renderer, opts ...Option) (*Player, error) {
	if r.IsLocal() {
		return nil, fmt.Errorf("remote player: %s is not a remote renderer", r)
	}

	p := &Player{
		renderer:  r,
		avt:       r.AVTransport(),
		rc:        r.RenderingControl(),
		attempts:  DefaultAttempts,
		timeout:   DefaultTimeout,
		threshold: DefaultCompletionThreshold.Milliseconds(),
		hops:      DefaultRedirectHops,
		backoff:   DefaultPollBackoff,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.invoker == nil {
		p.invoker = pmoupnp.NewHTTPInvoker(p.client)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p, nil
}

func (p *Player) Renderer() *pmorenderer.Renderer {
	return p.renderer
}

// State retourne le dernier état connu du transport.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) String() string {
	return p.renderer.String()
}

// ---------- Invocation ----------

// once lance une action et attend son résultat au plus timeout.
func (p *Player) once(svc *pmoupnp.Service, req *soap.ActionRequest) (map[string]string, error) {
	if p.ctx.Err() != nil {
		return nil, pmoengine.ErrReleased
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	done := make(chan pmoupnp.Result, 1)
	p.invoker.Invoke(ctx, svc, req, func(r pmoupnp.Result) {
		done <- r
	})

	select {
	case r := <-done:
		if r.Err != nil {
			return nil, fmt.Errorf("%s: %w: %w", req.Name, pmoengine.ErrActionFailed, r.Err)
		}
		return r.Values, nil
	case <-ctx.Done():
		if p.ctx.Err() != nil {
			return nil, pmoengine.ErrReleased
		}
		return nil, fmt.Errorf("%s: %w", req.Name, pmoengine.ErrActionTimeout)
	}
}

// call rejoue req jusqu'au premier succès, au plus attempts fois.
func (p *Player) call(svc *pmoupnp.Service, req *soap.ActionRequest) (map[string]string, error) {
	var last error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		values, err := p.once(svc, req)
		if err == nil {
			if attempt > 1 {
				log.Infof("✅ %s on %s succeeded at attempt %d", req.Name, p.renderer, attempt)
			}
			return values, nil
		}
		if errors.Is(err, pmoengine.ErrReleased) {
			return nil, err
		}
		last = err
		log.Warnf("⚠️ %s on %s (attempt %d/%d): %v", req.Name, p.renderer, attempt, p.attempts, err)
	}
	return nil, fmt.Errorf("after %d attempts: %w", p.attempts, last)
}

// poll interroge GetTransportInfo jusqu'à ce que accept soit vrai. L'attente
// entre deux essais double à partir de backoff sans dépasser timeout ; le
// tout est borné par attempts × timeout.
func (p *Player) poll(accept func(State) bool) (State, error) {
	deadline := time.Now().Add(time.Duration(p.attempts) * p.timeout)
	wait := p.backoff
	last := StateError

	for {
		values, err := p.once(p.avt, pmoupnp.GetTransportInfo(p.avt))
		if errors.Is(err, pmoengine.ErrReleased) {
			return last, err
		}
		if err == nil {
			if info, derr := pmoupnp.DecodeTransportInfo(values); derr == nil {
				last = StateFromTransport(info.State)
				if accept(last) {
					return last, nil
				}
			}
		}

		if time.Now().Add(wait).After(deadline) {
			return last, pmoengine.ErrPrepareTimeout
		}
		select {
		case <-time.After(wait):
		case <-p.ctx.Done():
			return last, pmoengine.ErrReleased
		}
		wait = min(wait*2, p.timeout)
	}
}

// setState enregistre un état issu d'une action et invalide les
// GetTransportInfo encore en vol.
func (p *Player) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.seq++
	p.mu.Unlock()
}

// refresh demande l'état réel du transport sans l'attendre.
func (p *Player) refresh() {
	p.mu.Lock()
	seq := p.seq
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	p.invoker.Invoke(ctx, p.avt, pmoupnp.GetTransportInfo(p.avt), func(r pmoupnp.Result) {
		defer cancel()
		if r.Err != nil {
			return
		}
		info, err := pmoupnp.DecodeTransportInfo(r.Values)
		if err != nil {
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if seq == p.seq {
			p.state = StateFromTransport(info.State)
		}
	})
}

// ---------- pmoengine.Engine ----------

func (p *Player) SetListeners(l pmoengine.Listeners) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = l
}

func (p *Player) fireError(what, extra int) {
	p.mu.Lock()
	l := p.listeners
	p.mu.Unlock()
	l.Error(what, extra)
}

// SetDataSource charge src sur le renderer. Un échec est terminal pour ce
// média : le listener d'erreur est appelé une fois et ErrDataSource retourné.
func (p *Player) SetDataSource(src pmoengine.Source) error {
	if p.ctx.Err() != nil {
		return pmoengine.ErrReleased
	}

	p.mu.Lock()
	busy := p.state == StateStarted || p.state == StatePaused || p.state == StatePreparing
	p.mu.Unlock()
	if busy {
		if _, err := p.call(p.avt, pmoupnp.Stop(p.avt)); err != nil {
			log.Warnf("⚠️ Stop before SetAVTransportURI on %s: %v", p.renderer, err)
		}
	}

	target, err := ResolveRedirects(p.ctx, p.client, src.URL, p.hops)
	if err != nil {
		log.Errorf("❌ %s: %v", p.renderer, err)
		return p.dataSourceFailed(err)
	}

	p.mu.Lock()
	p.src = src
	p.src.URL = target
	p.capsKnown = false
	p.hasRelTime, p.hasAbsTime = false, false
	p.completed = false
	p.position = 0
	p.duration = src.Duration
	p.durationHint = src.Duration > 0
	p.mu.Unlock()

	log.Infof("📡 SetAVTransportURI %s on %s", target, p.renderer)
	if _, err := p.call(p.avt, pmoupnp.SetAVTransportURI(p.avt, target, src.Metadata)); err != nil {
		log.Errorf("❌ SetAVTransportURI failed on %s: %v", p.renderer, err)
		return p.dataSourceFailed(err)
	}

	p.setState(StateStopped)
	p.refresh()
	return nil
}

func (p *Player) dataSourceFailed(err error) error {
	if errors.Is(err, pmoengine.ErrReleased) {
		return err
	}
	p.setState(StateError)
	p.fireError(pmoengine.MediaErrorUnknown, 1)
	return fmt.Errorf("%w: %w", pmoengine.ErrDataSource, err)
}

// Prepare simule un chargement sans lecture : muet, Play, attente de
// l'état STARTED ou PAUSED, Pause, puis retour du son. Sans action Pause
// rien ne peut garder le média chargé, Prepare ne fait alors rien.
func (p *Player) Prepare() error {
	if p.ctx.Err() != nil {
		return pmoengine.ErrReleased
	}
	if !p.renderer.CanPause() {
		log.Debugf("🔎 %s cannot pause, prepare skipped", p.renderer)
		return nil
	}

	p.setState(StatePreparing)
	p.setMute(true)

	if _, err := p.call(p.avt, pmoupnp.Play(p.avt)); err != nil {
		p.setMute(false)
		p.setState(StateError)
		return fmt.Errorf("prepare: %w", err)
	}

	state, err := p.poll(func(s State) bool {
		return s == StateStarted || s == StatePaused
	})
	if err != nil {
		p.setMute(false)
		p.setState(StateError)
		log.Errorf("❌ %s never started (last state %s)", p.renderer, state)
		return fmt.Errorf("prepare: %w", err)
	}

	if state == StateStarted {
		if _, err := p.call(p.avt, pmoupnp.Pause(p.avt)); err != nil {
			p.setMute(false)
			p.setState(StateError)
			return fmt.Errorf("prepare: %w", err)
		}
	}
	p.setMute(false)
	p.setState(StatePaused)
	return nil
}

func (p *Player) setMute(mute bool) {
	if p.rc == nil {
		return
	}
	if _, err := p.call(p.rc, pmoupnp.SetMute(p.rc, mute)); err != nil {
		log.Warnf("⚠️ SetMute(%v) on %s: %v", mute, p.renderer, err)
	}
}

func (p *Player) Start() error {
	if _, err := p.call(p.avt, pmoupnp.Play(p.avt)); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	p.setState(StateStarted)
	p.refresh()
	return nil
}

// Pause devient Stop sur un renderer qui ne déclare pas l'action Pause.
func (p *Player) Pause() error {
	if !p.renderer.CanPause() {
		log.Debugf("🔎 %s cannot pause, stopping instead", p.renderer)
		return p.Stop()
	}
	if _, err := p.call(p.avt, pmoupnp.Pause(p.avt)); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	p.setState(StatePaused)
	p.refresh()
	return nil
}

func (p *Player) Stop() error {
	if _, err := p.call(p.avt, pmoupnp.Stop(p.avt)); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	p.setState(StateStopped)
	p.refresh()
	return nil
}

// SeekMode retourne l'unité de Seek : REL_TIME sauf si le renderer ne
// renseigne que AbsTime.
func (p *Player) SeekMode() pmoupnp.SeekMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasRelTime && p.hasAbsTime {
		return pmoupnp.SeekAbsTime
	}
	return pmoupnp.SeekRelTime
}

func (p *Player) SeekTo(ms int64) error {
	ms = max(ms, 0)
	if _, err := p.call(p.avt, pmoupnp.Seek(p.avt, p.SeekMode(), ms)); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	p.mu.Lock()
	p.position = ms
	if p.duration-ms >= p.threshold {
		p.completed = false
	}
	l := p.listeners
	p.mu.Unlock()

	l.SeekComplete()
	return nil
}

// Release coupe les attentes en cours et oublie les listeners. Aucune action
// n'est envoyée.
func (p *Player) Release() {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = pmoengine.Listeners{}
	p.state = StateEnd
	p.seq++
}

func (p *Player) Duration() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// CurrentPosition interroge GetPositionInfo et retourne la dernière
// position reçue. La première réponse après SetDataSource fixe les
// capacités RelTime/AbsTime du renderer.
func (p *Player) CurrentPosition() int64 {
	values, err := p.once(p.avt, pmoupnp.GetPositionInfo(p.avt))
	if err != nil {
		log.Debugf("❌ GetPositionInfo on %s: %v", p.renderer, err)
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.position
	}
	return p.updatePosition(pmoupnp.DecodePositionInfo(values))
}

func (p *Player) updatePosition(info pmoupnp.PositionInfo) int64 {
	p.mu.Lock()

	if !p.capsKnown {
		p.capsKnown = true
		p.hasRelTime = info.HasRelTime()
		p.hasAbsTime = info.HasAbsTime()
		log.Debugf("🔎 %s reports RelTime=%v AbsTime=%v", p.renderer, p.hasRelTime, p.hasAbsTime)
	}

	if !p.durationHint {
		if d, ok := pmoupnp.ParseTime(info.TrackDuration); ok && d > 0 {
			p.duration = d
		} else if d := metadataDuration(info.TrackMetaData); d > 0 {
			p.duration = d
		}
	}

	pos, ok := pmoupnp.ParseTime(info.RelTime)
	if !ok {
		pos, ok = pmoupnp.ParseTime(info.AbsTime)
	}

	fire := false
	if ok {
		p.position = pos
		if p.duration > 0 {
			if p.duration-pos < p.threshold {
				fire = !p.completed
				p.completed = true
			} else {
				p.completed = false
			}
		}
	}

	position := p.position
	l := p.listeners
	url := p.src.URL
	p.mu.Unlock()

	if fire {
		log.Infof("🏁 %s reached the end of %s", p.renderer, url)
		l.Completion()
	}
	return position
}

func metadataDuration(meta string) int64 {
	if meta == "" || meta == pmoupnp.NotImplemented {
		return 0
	}
	item, err := didl.ParseItem(meta)
	if err != nil {
		return 0
	}
	res, ok := didl.First(item.GetPrimaryResource())
	if !ok {
		return 0
	}
	d, _ := pmoupnp.ParseTime(res.Duration)
	return d
}

func (p *Player) IsPlaying() bool {
	return p.State() == StateStarted
}

// SetVolume n'envoie que left, borné à [0,100]. Un seul essai.
func (p *Player) SetVolume(left, _ int) error {
	if p.rc == nil {
		return pmoengine.ErrUnsupported
	}
	v := pmoupnp.ClampVolume(left)
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()

	if _, err := p.once(p.rc, pmoupnp.SetVolume(p.rc, v)); err != nil {
		log.Warnf("⚠️ SetVolume(%d) on %s: %v", v, p.renderer, err)
		return err
	}
	return nil
}

// Volume interroge GetVolume et retourne la valeur en cache. Un seul essai.
func (p *Player) Volume() int {
	if p.rc != nil {
		values, err := p.once(p.rc, pmoupnp.GetVolume(p.rc))
		if err == nil {
			if v, derr := pmoupnp.DecodeVolume(values); derr == nil {
				p.mu.Lock()
				p.volume = v
				p.mu.Unlock()
			}
		} else {
			log.Debugf("❌ GetVolume on %s: %v", p.renderer, err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

var _ pmoengine.Engine = (*Player)(nil)
