package pmoengine

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	log "github.com/sirupsen/logrus"
)

// Output est la sortie audio d'un LocalEngine.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer) error
	Clear()
	Lock()
	Unlock()
}

const speakerRate = beep.SampleRate(44100)

type speakerOutput struct {
	once sync.Once
	err  error
}

var defaultSpeaker = &speakerOutput{}

// Speaker retourne la sortie son du système, initialisée au premier Play.
func Speaker() Output {
	return defaultSpeaker
}

func (s *speakerOutput) SampleRate() beep.SampleRate {
	return speakerRate
}

func (s *speakerOutput) Play(st beep.Streamer) error {
	s.once.Do(func() {
		s.err = speaker.Init(speakerRate, speakerRate.N(100*time.Millisecond))
		if s.err == nil {
			log.Infof("✅ Audio output ready at %d Hz", speakerRate)
		}
	})
	if s.err != nil {
		return fmt.Errorf("audio output: %w", s.err)
	}
	speaker.Play(st)
	return nil
}

func (s *speakerOutput) Clear() {
	if s.err == nil {
		speaker.Clear()
	}
}

func (s *speakerOutput) Lock()   { speaker.Lock() }
func (s *speakerOutput) Unlock() { speaker.Unlock() }

// Opener ouvre le flux désigné par une URL et retourne son extension
// (".mp3", ".flac"...).
type Opener func(url string) (io.ReadCloser, string, error)

type localState int

const (
	localIdle localState = iota
	localInitialized
	localPrepared
	localStarted
	localPaused
	localStopped
	localCompleted
	localReleased
)

// LocalEngine lit un fichier ou un flux HTTP sur la sortie son locale.
type LocalEngine struct {
	out  Output
	open Opener

	mu        sync.Mutex
	listeners Listeners
	src       Source
	state     localState
	gen       int

	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	vol    *effects.Volume
	volume int
}

type LocalOption func(*LocalEngine)

func WithOutput(out Output) LocalOption {
	return func(e *LocalEngine) { e.out = out }
}

func WithOpener(open Opener) LocalOption {
	return func(e *LocalEngine) { e.open = open }
}

func NewLocalEngine(opts ...LocalOption) *LocalEngine {
	e := &LocalEngine{
		out:    Speaker(),
		open:   OpenURL,
		volume: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenURL ouvre un fichier local ou une URL http(s).
func OpenURL(u string) (io.ReadCloser, string, error) {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		resp, err := http.Get(u)
		if err != nil {
			return nil, "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, u)
		}
		ext := extensionOf(resp.Header.Get("Content-Type"), u)
		return resp.Body, ext, nil
	}

	f, err := os.Open(strings.TrimPrefix(u, "file://"))
	if err != nil {
		return nil, "", err
	}
	return f, strings.ToLower(path.Ext(u)), nil
}

func extensionOf(contentType, u string) string {
	switch {
	case strings.Contains(contentType, "mpeg"):
		return ".mp3"
	case strings.Contains(contentType, "flac"):
		return ".flac"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "ogg"), strings.Contains(contentType, "vorbis"):
		return ".ogg"
	}
	clean, _, _ := strings.Cut(u, "?")
	return strings.ToLower(path.Ext(clean))
}

func decode(rc io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext {
	case ".flac":
		return flac.Decode(rc)
	case ".wav":
		return wav.Decode(rc)
	case ".mp3":
		return mp3.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported format: %q", ext)
}

func (e *LocalEngine) SetListeners(l Listeners) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = l
}

func (e *LocalEngine) SetDataSource(src Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == localReleased {
		return ErrReleased
	}
	e.teardownLocked()
	e.src = src
	e.state = localInitialized
	return nil
}

// Prepare décode l'en-tête du média et le place en pause sur la sortie.
func (e *LocalEngine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case localReleased:
		return ErrReleased
	case localIdle:
		return fmt.Errorf("prepare: %w", ErrDataSource)
	case localPrepared, localStarted, localPaused:
		return nil
	}

	rc, ext, err := e.open(e.src.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataSource, err)
	}
	stream, format, err := decode(rc, ext)
	if err != nil {
		rc.Close()
		return fmt.Errorf("%w: %v", ErrDataSource, err)
	}

	e.stream = stream
	e.format = format
	e.gen++
	gen := e.gen

	var s beep.Streamer = stream
	if rate := e.out.SampleRate(); format.SampleRate != rate {
		s = beep.Resample(4, format.SampleRate, rate, s)
	}
	e.vol = &effects.Volume{Streamer: s, Base: 2}
	e.applyVolumeLocked()
	e.ctrl = &beep.Ctrl{Streamer: e.vol, Paused: true}

	if err := e.out.Play(beep.Seq(e.ctrl, beep.Callback(func() {
		// appelé sous le verrou de la sortie
		go e.finished(gen)
	}))); err != nil {
		e.closeStreamLocked()
		return err
	}

	e.state = localPrepared
	log.Debugf("🎵 Local engine prepared %s (%d Hz, %v)", e.src.URL, format.SampleRate, e.durationLocked())
	return nil
}

func (e *LocalEngine) finished(gen int) {
	e.mu.Lock()
	if gen != e.gen || e.state != localStarted {
		e.mu.Unlock()
		return
	}
	e.state = localCompleted
	l := e.listeners
	e.mu.Unlock()

	log.Debugf("🎵 Local engine reached the end of %s", e.src.URL)
	l.Completion()
}

func (e *LocalEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case localReleased:
		return ErrReleased
	case localPrepared, localPaused, localStarted:
	default:
		return fmt.Errorf("start in state %d", e.state)
	}

	e.setPausedLocked(false)
	e.state = localStarted
	return nil
}

func (e *LocalEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case localReleased:
		return ErrReleased
	case localStarted, localPrepared, localPaused:
		e.setPausedLocked(true)
		e.state = localPaused
	}
	return nil
}

func (e *LocalEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == localReleased {
		return ErrReleased
	}
	if e.state != localIdle {
		e.teardownLocked()
		e.state = localStopped
	}
	return nil
}

func (e *LocalEngine) SeekTo(ms int64) error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return fmt.Errorf("seek: no media")
	}

	e.out.Lock()
	target := min(e.format.SampleRate.N(time.Duration(ms)*time.Millisecond), e.stream.Len())
	err := e.stream.Seek(max(target, 0))
	e.out.Unlock()

	l := e.listeners
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	l.SeekComplete()
	return nil
}

func (e *LocalEngine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
	e.listeners = Listeners{}
	e.state = localReleased
}

func (e *LocalEngine) Duration() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked().Milliseconds()
}

func (e *LocalEngine) durationLocked() time.Duration {
	if e.stream != nil {
		if n := e.stream.Len(); n > 0 {
			return e.format.SampleRate.D(n)
		}
	}
	return time.Duration(e.src.Duration) * time.Millisecond
}

func (e *LocalEngine) CurrentPosition() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	e.out.Lock()
	p := e.stream.Position()
	e.out.Unlock()
	return e.format.SampleRate.D(p).Milliseconds()
}

func (e *LocalEngine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == localStarted
}

func (e *LocalEngine) SetVolume(left, _ int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = min(max(left, 0), 100)
	if e.vol != nil {
		e.out.Lock()
		e.applyVolumeLocked()
		e.out.Unlock()
	}
	return nil
}

func (e *LocalEngine) Volume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// 100 est le gain unité, 50 divise l'amplitude par deux.
func (e *LocalEngine) applyVolumeLocked() {
	if e.vol == nil {
		return
	}
	if e.volume == 0 {
		e.vol.Silent = true
		return
	}
	e.vol.Silent = false
	e.vol.Volume = math.Log2(float64(e.volume) / 100)
}

func (e *LocalEngine) setPausedLocked(paused bool) {
	if e.ctrl == nil {
		return
	}
	e.out.Lock()
	e.ctrl.Paused = paused
	e.out.Unlock()
}

func (e *LocalEngine) teardownLocked() {
	if e.ctrl != nil {
		e.out.Clear()
	}
	e.closeStreamLocked()
}

func (e *LocalEngine) closeStreamLocked() {
	e.gen++
	if e.stream != nil {
		if err := e.stream.Close(); err != nil {
			log.Debugf("❌ closing %s: %v", e.src.URL, err)
		}
	}
	e.stream = nil
	e.ctrl = nil
	e.vol = nil
}

var _ Engine = (*LocalEngine)(nil)
