package pmoplayer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/didl"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconfig"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoengine"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoremote"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
)

// NoRemotePlayer est retourné par VolumeUp/VolumeDown quand la cible est
// locale.
const NoRemotePlayer = -1

// EngineFactory construit l'engine d'une cible. Appelée une fois par
// session et par cible.
type EngineFactory func(target *pmorenderer.Renderer) (pmoengine.Engine, error)

// NewEngineFactory retourne local() pour la cible locale et un
// pmoremote.Player pour un renderer.
func NewEngineFactory(local func() pmoengine.Engine, opts ...pmoremote.Option) EngineFactory {
	return func(target *pmorenderer.Renderer) (pmoengine.Engine, error) {
		if target.IsLocal() {
			return local(), nil
		}
		return pmoremote.NewPlayer(target, opts...)
	}
}

// MediaPublisher rend un fichier local accessible en HTTP aux renderers.
type MediaPublisher interface {
	PublishFile(path string) (string, error)
}

// ArtworkResolver donne l'URL d'une pochette servie pour les renderers.
type ArtworkResolver interface {
	ArtworkURL(src string) (string, error)
}

// Service est la machine à états de lecture. Toutes les opérations qui la
// modifient passent par un worker unique ; mu est tenu pendant chaque
// opération, y compris par le repli déclenché par la découverte.
type Service struct {
	registry  *pmorenderer.Registry
	factory   EngineFactory
	callback  Callback
	publisher MediaPublisher
	artwork   ArtworkResolver
	interval  time.Duration
	step      int

	worker    *worker
	ticking   atomic.Bool
	stop      chan struct{}
	ticker    sync.WaitGroup
	closeOnce sync.Once

	mu          sync.Mutex
	target      *pmorenderer.Renderer
	engine      pmoengine.Engine
	engineGen   int
	stream      bool
	afterSeek   PlayerStatus
	localVolume int

	// statusMu protège la paire statut/média lue par Info, et le dernier
	// volume connu du renderer distant.
	statusMu     sync.Mutex
	status       PlayerStatus
	media        Playable
	current      *pmorenderer.Renderer
	remoteVolume int
}

type Option func(*Service)

func WithCallback(cb Callback) Option {
	return func(s *Service) { s.callback = cb }
}

func WithPublisher(p MediaPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithArtwork(a ArtworkResolver) Option {
	return func(s *Service) { s.artwork = a }
}

// WithPositionInterval règle la période de lecture de la position pendant
// la lecture ; 0 la désactive.
func WithPositionInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

func WithVolumeStep(step int) Option {
	return func(s *Service) { s.step = step }
}

func WithConfig(cfg *pmoconfig.Config) Option {
	return func(s *Service) {
		s.interval = cfg.GetPositionInterval()
		s.step = cfg.GetVolumeStep()
	}
}

// NewService démarre le worker et s'inscrit comme repli auprès du
// registre. Close défait les deux.
func NewService(registry *pmorenderer.Registry, factory EngineFactory, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		factory:     factory,
		callback:    CallbackFuncs{},
		interval:    time.Second,
		step:        5,
		target:      pmorenderer.Local(),
		current:     pmorenderer.Local(),
		localVolume: 100,
		stop:        make(chan struct{}),

		remoteVolume: NoRemotePlayer,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.worker = newWorker()
	if registry != nil {
		registry.SetFallback(s.fallback)
	}
	if s.interval > 0 {
		s.ticker.Add(1)
		go s.tick()
	}
	return s
}

// Close arrête le ticker, stoppe l'engine courant et termine le worker.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.registry != nil {
			s.registry.SetFallback(nil)
		}
		close(s.stop)
		s.ticker.Wait()

		s.worker.submit(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.engine != nil {
				s.stopEngineLocked()
				s.releaseEngineLocked()
			}
		})
		s.worker.close()
		log.Info("👋 Player closed")
	})
}

// Flush attend que toutes les opérations déjà soumises soient exécutées.
func (s *Service) Flush() {
	s.worker.flush()
}

func (s *Service) enqueue(name string, job func()) {
	if !s.worker.submit(job) {
		log.Debugf("❌ player closed, %s dropped", name)
	}
}

// locked soumet job au worker, sous mu.
func (s *Service) locked(name string, job func()) {
	s.enqueue(name, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		job()
	})
}

// ---------- Lecture de l'état ----------

func (s *Service) Info() Info {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return Info{Status: s.status, Media: s.media, Renderer: s.current}
}

func (s *Service) Status() PlayerStatus {
	return s.Info().Status
}

// Renderer retourne la cible courante.
func (s *Service) Renderer() *pmorenderer.Renderer {
	return s.Info().Renderer
}

// Position retourne la dernière position connue du média, en ms.
func (s *Service) Position() int64 {
	if m := s.Info().Media; m != nil {
		return m.Position()
	}
	return 0
}

func (s *Service) Duration() int64 {
	if m := s.Info().Media; m != nil {
		return m.Duration()
	}
	return 0
}

// setStatus change la paire statut/média d'un coup et prévient le callback.
func (s *Service) setStatus(status PlayerStatus, media Playable) {
	s.statusMu.Lock()
	s.status = status
	s.media = media
	s.current = s.target
	info := Info{Status: status, Media: media, Renderer: s.target}
	s.statusMu.Unlock()

	log.Debugf("🎛️ Player status %s (%s)", status, s.target)
	s.callback.StatusChanged(info)
}

// ---------- Opérations ----------

// PlayMediaObject lit item. Rien n'est fait si item est déjà en lecture.
// stream choisit StreamURL plutôt que LocalMediaURL. Sur un renderer, le
// média reste PREPARED : la préparation l'a déjà lancé puis mis en pause.
func (s *Service) PlayMediaObject(item Playable, stream, startWhenPrepared, prepareImmediately bool) {
	s.locked("play", func() {
		s.playMediaObjectLocked(item, stream, startWhenPrepared, prepareImmediately)
	})
}

func (s *Service) playMediaObjectLocked(item Playable, stream, startWhenPrepared, prepareImmediately bool) {
	info := s.Info()
	if info.Media != nil && info.Status == StatusPlaying && info.Media.Identifier() == item.Identifier() {
		log.Debugf("🔎 %s already playing", item.Identifier())
		return
	}

	if s.engine != nil {
		if info.Status == StatusPlaying {
			if err := s.engine.Pause(); err != nil {
				log.Warnf("⚠️ pause before switching media: %v", err)
			}
			s.persistPositionLocked(info.Media)
			s.setStatus(StatusPaused, info.Media)
		}
		s.stopEngineLocked()
		s.releaseEngineLocked()
	}
	s.setStatus(StatusIndeterminate, nil)

	engine, err := s.factory(s.target)
	if err != nil {
		log.Errorf("❌ cannot build engine for %s: %v", s.target, err)
		s.setStatus(StatusError, nil)
		return
	}
	s.bindEngineLocked(engine)
	s.stream = stream

	s.setStatus(StatusInitializing, item)
	if err := item.LoadMetadata(); err != nil {
		log.Warnf("⚠️ metadata of %s: %v", item.Identifier(), err)
	}
	if err := s.setDataSourceLocked(item); err != nil {
		log.Errorf("❌ %s: %v", item.Identifier(), err)
		s.setStatus(StatusError, nil)
		return
	}
	s.setStatus(StatusInitialized, item)

	if !prepareImmediately {
		return
	}
	s.setStatus(StatusPreparing, item)
	if err := s.prepareLocked(item); err != nil {
		log.Errorf("❌ prepare %s: %v", item.Identifier(), err)
		s.setStatus(StatusError, nil)
		return
	}
	s.setStatus(StatusPrepared, item)

	if startWhenPrepared && s.target.IsLocal() {
		s.startLocked(item)
	}
}

// SetRenderer bascule la lecture vers r. Un média en lecture reprend sur la
// nouvelle cible ; sinon il y reste en pause.
func (s *Service) SetRenderer(r *pmorenderer.Renderer) {
	if r == nil {
		r = pmorenderer.Local()
	}
	s.locked("set renderer", func() {
		s.setRendererLocked(r, true)
	})
}

// setRendererLocked rejoue data source et prepare sur r. reachable est faux
// quand l'ancienne cible a disparu : aucune action ne lui est alors envoyée.
func (s *Service) setRendererLocked(r *pmorenderer.Renderer, reachable bool) {
	if r.Equal(s.target) {
		return
	}
	// une sélection mise en file avant le retrait du renderer
	if !r.IsLocal() && s.registry != nil && !s.registry.Contains(r) {
		log.Warnf("👋 Renderer %s is gone, selection ignored", r)
		return
	}
	log.Infof("🔀 Switching from %s to %s", s.target, r)

	info := s.Info()
	media := info.Media
	restart := info.Status == StatusPlaying

	if s.engine != nil {
		if reachable {
			if restart {
				if err := s.engine.Pause(); err != nil {
					log.Warnf("⚠️ pause on %s: %v", s.target, err)
				}
				s.setStatus(StatusPaused, media)
			}
			s.persistPositionLocked(media)
			s.stopEngineLocked()
		}
		s.releaseEngineLocked()
	}

	s.target = r
	if media == nil {
		s.setStatus(info.Status, nil)
		return
	}

	engine, err := s.factory(r)
	if err != nil {
		log.Errorf("❌ cannot build engine for %s: %v", r, err)
		s.setStatus(StatusError, nil)
		return
	}
	s.bindEngineLocked(engine)

	s.setStatus(StatusInitializing, media)
	if err := s.setDataSourceLocked(media); err != nil {
		log.Errorf("❌ %s on %s: %v", media.Identifier(), r, err)
		s.setStatus(StatusError, nil)
		return
	}
	s.setStatus(StatusInitialized, media)
	s.setStatus(StatusPreparing, media)
	if err := s.prepareLocked(media); err != nil {
		log.Errorf("❌ prepare %s on %s: %v", media.Identifier(), r, err)
		s.setStatus(StatusError, nil)
		return
	}
	s.setStatus(StatusPrepared, media)

	if restart {
		s.startLocked(media)
	} else {
		s.setStatus(StatusPaused, media)
	}
}

// fallback est appelé par le registre, sur la goroutine de découverte,
// quand un renderer disparaît.
func (s *Service) fallback(removed *pmorenderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !removed.Equal(s.target) {
		return
	}
	log.Warnf("👋 Active renderer %s is gone, falling back to local playback", removed)
	s.setRendererLocked(pmorenderer.Local(), false)
}

func (s *Service) Pause() {
	s.locked("pause", func() {
		info := s.Info()
		if info.Status != StatusPlaying || s.engine == nil {
			return
		}
		if err := s.engine.Pause(); err != nil {
			log.Errorf("❌ pause: %v", err)
			return
		}
		s.persistPositionLocked(info.Media)
		s.setStatus(StatusPaused, info.Media)
	})
}

// Resume démarre un média préparé ou en pause ; un média seulement
// initialisé est d'abord préparé.
func (s *Service) Resume() {
	s.locked("resume", func() {
		info := s.Info()
		if s.engine == nil || info.Media == nil {
			return
		}
		switch info.Status {
		case StatusInitialized:
			s.setStatus(StatusPreparing, info.Media)
			if err := s.prepareLocked(info.Media); err != nil {
				log.Errorf("❌ prepare %s: %v", info.Media.Identifier(), err)
				s.setStatus(StatusError, nil)
				return
			}
			s.setStatus(StatusPrepared, info.Media)
		case StatusPrepared, StatusPaused, StatusStopped:
		default:
			return
		}
		s.startLocked(info.Media)
	})
}

// SeekTo passe en SEEKING jusqu'à ce que l'engine confirme.
func (s *Service) SeekTo(ms int64) {
	s.locked("seek", func() {
		info := s.Info()
		switch info.Status {
		case StatusPlaying, StatusPaused, StatusPrepared:
		default:
			return
		}
		s.afterSeek = info.Status
		s.setStatus(StatusSeeking, info.Media)
		if err := s.engine.SeekTo(ms); err != nil {
			log.Errorf("❌ seek to %s: %v", pmoupnp.FormatTime(ms), err)
			s.setStatus(info.Status, info.Media)
			return
		}
		info.Media.SetPosition(ms)
	})
}

// EndPlayback arrête le média courant et revient à INDETERMINATE.
func (s *Service) EndPlayback() {
	s.locked("end playback", func() {
		s.endPlaybackLocked()
	})
}

func (s *Service) endPlaybackLocked() {
	media := s.Info().Media
	if s.engine != nil {
		s.stopEngineLocked()
		s.releaseEngineLocked()
	}
	s.setStatus(StatusIndeterminate, nil)
	if media != nil {
		media.SetPosition(0)
		s.callback.PlaybackEnded(media)
	}
}

// SetVolume règle le volume de la cible courante, borné à [0,100].
func (s *Service) SetVolume(v int) {
	v = pmoupnp.ClampVolume(v)
	s.locked("volume", func() {
		if s.target.IsLocal() {
			s.localVolume = v
		} else if s.engine != nil {
			s.setRemoteVolume(v)
		}
		if s.engine != nil {
			if err := s.engine.SetVolume(v, v); err != nil {
				log.Warnf("⚠️ volume on %s: %v", s.target, err)
			}
		}
	})
}

// VolumeUp monte le volume du renderer distant d'un cran et retourne la
// nouvelle valeur, NoRemotePlayer si la lecture est locale. La valeur est
// calculée sur le dernier volume connu ; l'envoi passe par le worker.
func (s *Service) VolumeUp() int {
	return s.adjustVolume(s.step)
}

func (s *Service) VolumeDown() int {
	return s.adjustVolume(-s.step)
}

func (s *Service) adjustVolume(delta int) int {
	s.statusMu.Lock()
	if s.remoteVolume == NoRemotePlayer {
		s.statusMu.Unlock()
		return NoRemotePlayer
	}
	v := pmoupnp.ClampVolume(s.remoteVolume + delta)
	s.remoteVolume = v
	s.statusMu.Unlock()

	s.locked("volume step", func() {
		if s.target.IsLocal() || s.engine == nil {
			return
		}
		if err := s.engine.SetVolume(v, v); err != nil {
			log.Warnf("⚠️ volume on %s: %v", s.target, err)
		}
	})
	return v
}

func (s *Service) setRemoteVolume(v int) {
	s.statusMu.Lock()
	s.remoteVolume = v
	s.statusMu.Unlock()
}

// ---------- Engine ----------

func (s *Service) bindEngineLocked(e pmoengine.Engine) {
	s.engineGen++
	gen := s.engineGen

	e.SetListeners(pmoengine.Listeners{
		OnCompletion: func() {
			s.locked("completion", func() {
				if gen == s.engineGen {
					log.Infof("🏁 End of media on %s", s.target)
					s.endPlaybackLocked()
				}
			})
		},
		OnSeekComplete: func() {
			s.locked("seek complete", func() {
				info := s.Info()
				if gen == s.engineGen && info.Status == StatusSeeking {
					s.setStatus(s.afterSeek, info.Media)
				}
			})
		},
		OnError: func(what, extra int) {
			log.Errorf("❌ media error %d/%d", what, extra)
			s.callback.MediaError(what, extra)
		},
		OnInfo: func(what, extra int) {
			log.Debugf("🔎 media info %d/%d", what, extra)
		},
	})

	if s.target.IsLocal() {
		if err := e.SetVolume(s.localVolume, s.localVolume); err != nil {
			log.Debugf("❌ local volume: %v", err)
		}
	} else {
		s.setRemoteVolume(e.Volume())
	}
	s.engine = e
}

func (s *Service) stopEngineLocked() {
	switch s.Info().Status {
	case StatusPlaying, StatusPaused, StatusPrepared, StatusSeeking:
		if err := s.engine.Stop(); err != nil {
			log.Warnf("⚠️ stop on %s: %v", s.target, err)
		}
	}
}

func (s *Service) releaseEngineLocked() {
	s.engine.Release()
	s.engine = nil
	s.engineGen++
	s.setRemoteVolume(NoRemotePlayer)
}

func (s *Service) persistPositionLocked(media Playable) {
	if media == nil || s.engine == nil {
		return
	}
	if pos := s.engine.CurrentPosition(); pos > 0 {
		media.SetPosition(pos)
	}
}

func (s *Service) startLocked(media Playable) {
	if err := s.engine.Start(); err != nil {
		log.Errorf("❌ start on %s: %v", s.target, err)
		s.setStatus(StatusPaused, media)
		return
	}
	s.setStatus(StatusPlaying, media)
}

// prepareLocked prépare l'engine, revient à la position mémorisée et
// retient la durée de l'engine si le média n'en a pas.
func (s *Service) prepareLocked(media Playable) error {
	if err := s.engine.Prepare(); err != nil {
		return err
	}
	if pos := media.Position(); pos > 0 {
		if err := s.engine.SeekTo(pos); err != nil {
			log.Warnf("⚠️ restore position %s: %v", pmoupnp.FormatTime(pos), err)
		}
	}
	if media.Duration() == 0 {
		media.SetDuration(s.engine.Duration())
	}
	return nil
}

var errNoPublisher = errors.New("no media publisher for remote playback of local files")

func (s *Service) setDataSourceLocked(media Playable) error {
	src, err := s.sourceLocked(media)
	if err != nil {
		// l'engine ne verra jamais ce média, l'erreur est signalée ici
		s.callback.MediaError(pmoengine.MediaErrorUnknown, 0)
		return err
	}
	return s.engine.SetDataSource(src)
}

// sourceLocked choisit l'URL du média et, pour un renderer, publie le
// fichier local et construit le DIDL-Lite.
func (s *Service) sourceLocked(media Playable) (pmoengine.Source, error) {
	url := media.LocalMediaURL()
	if s.stream || url == "" {
		url = media.StreamURL()
	}
	src := pmoengine.Source{URL: url, Duration: media.Duration()}
	if s.target.IsLocal() {
		return src, nil
	}

	if !s.stream && media.LocalMediaURL() != "" {
		if s.publisher == nil {
			return src, errNoPublisher
		}
		published, err := s.publisher.PublishFile(media.LocalMediaURL())
		if err != nil {
			return src, fmt.Errorf("publish %s: %w", media.LocalMediaURL(), err)
		}
		src.URL = published
	}
	if src.URL == "" {
		return src, fmt.Errorf("%s has no URL", media.Identifier())
	}

	src.Metadata = s.metadataOf(media, src.URL)
	return src, nil
}

func (s *Service) metadataOf(media Playable, url string) string {
	meta := media.Metadata()
	item := didl.NewMusicTrack(media.Identifier(), meta.Title)
	item.Artist = meta.Artist
	item.Creator = meta.Artist
	item.Album = meta.Album
	if meta.CoverURL != "" {
		item.AlbumArt = meta.CoverURL
		if s.artwork != nil {
			if art, err := s.artwork.ArtworkURL(meta.CoverURL); err == nil {
				item.AlbumArt = art
			} else {
				log.Warnf("⚠️ cover %s: %v", meta.CoverURL, err)
			}
		}
	}
	duration := ""
	if d := media.Duration(); d > 0 {
		duration = pmoupnp.FormatTime(d)
	}
	item.AddResource(url, meta.MimeType, duration)

	doc, err := item.Document().Marshal()
	if err != nil {
		log.Warnf("⚠️ DIDL-Lite for %s: %v", media.Identifier(), err)
		return ""
	}
	return doc
}

// ---------- Position ----------

func (s *Service) tick() {
	defer s.ticker.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			if s.Status() != StatusPlaying || !s.ticking.CompareAndSwap(false, true) {
				continue
			}
			s.locked("position", func() {
				defer s.ticking.Store(false)
				s.updatePositionLocked()
			})
		}
	}
}

func (s *Service) updatePositionLocked() {
	info := s.Info()
	if info.Status != StatusPlaying || info.Media == nil || s.engine == nil {
		return
	}
	pos := s.engine.CurrentPosition()
	info.Media.SetPosition(pos)
	if info.Media.Duration() == 0 {
		info.Media.SetDuration(s.engine.Duration())
	}
	s.callback.PositionChanged(info.Media, pos, info.Media.Duration())
}
