package pmoengine_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoengine"
)

// fakeOutput remplace le speaker : le test tire lui-même les échantillons.
type fakeOutput struct {
	mu      sync.Mutex
	streams []beep.Streamer
	cleared int
}

func (o *fakeOutput) SampleRate() beep.SampleRate { return 44100 }

func (o *fakeOutput) Play(s beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = append(o.streams, s)
	return nil
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = nil
	o.cleared++
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

// drain consomme au plus n échantillons et retourne le nombre lu.
func (o *fakeOutput) drain(n int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.streams) == 0 {
		return 0
	}
	s := o.streams[len(o.streams)-1]
	buf := make([][2]float64, 512)
	total := 0
	for total < n {
		want := min(len(buf), n-total)
		got, ok := s.Stream(buf[:want])
		total += got
		if !ok {
			break
		}
	}
	return total
}

// writeSilence écrit un WAV stéréo de ms millisecondes à 44,1 kHz.
func writeSilence(t *testing.T, ms int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Silence(format.SampleRate.N(time.Duration(ms)*time.Millisecond)), format); err != nil {
		t.Fatal(err)
	}
	return p
}

func newEngine(t *testing.T) (*pmoengine.LocalEngine, *fakeOutput) {
	out := &fakeOutput{}
	e := pmoengine.NewLocalEngine(pmoengine.WithOutput(out))
	t.Cleanup(e.Release)
	return e, out
}

func TestLocalPrepareAndStart(t *testing.T) {
	e, out := newEngine(t)
	if err := e.SetDataSource(pmoengine.Source{URL: writeSilence(t, 1000)}); err != nil {
		t.Fatal(err)
	}
	if err := e.Prepare(); err != nil {
		t.Fatal(err)
	}
	if d := e.Duration(); d != 1000 {
		t.Fatalf("duration = %d", d)
	}
	if e.IsPlaying() {
		t.Fatal("prepared engine must not be playing")
	}

	// en pause, la sortie reçoit du silence sans avancer
	out.drain(4410)
	if p := e.CurrentPosition(); p != 0 {
		t.Fatalf("position moved while paused: %d", p)
	}

	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if !e.IsPlaying() {
		t.Fatal("engine should be playing")
	}
	out.drain(22050)
	if p := e.CurrentPosition(); p != 500 {
		t.Fatalf("position = %d, want 500", p)
	}

	if err := e.Pause(); err != nil {
		t.Fatal(err)
	}
	out.drain(4410)
	if p := e.CurrentPosition(); p != 500 {
		t.Fatalf("position moved after pause: %d", p)
	}
}

func TestLocalCompletion(t *testing.T) {
	e, out := newEngine(t)
	done := make(chan struct{}, 2)
	e.SetListeners(pmoengine.Listeners{OnCompletion: func() { done <- struct{}{} }})

	if err := e.SetDataSource(pmoengine.Source{URL: writeSilence(t, 200)}); err != nil {
		t.Fatal(err)
	}
	if err := e.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	out.drain(44100)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion not received")
	}
	if e.IsPlaying() {
		t.Fatal("engine still playing after completion")
	}
	select {
	case <-done:
		t.Fatal("completion fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalSeek(t *testing.T) {
	e, _ := newEngine(t)
	seeks := 0
	e.SetListeners(pmoengine.Listeners{OnSeekComplete: func() { seeks++ }})

	if err := e.SeekTo(100); err == nil {
		t.Fatal("seek without media must fail")
	}

	if err := e.SetDataSource(pmoengine.Source{URL: writeSilence(t, 1000)}); err != nil {
		t.Fatal(err)
	}
	if err := e.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := e.SeekTo(250); err != nil {
		t.Fatal(err)
	}
	if p := e.CurrentPosition(); p != 250 {
		t.Fatalf("position = %d", p)
	}
	if err := e.SeekTo(5000); err != nil {
		t.Fatal(err)
	}
	if p := e.CurrentPosition(); p != 1000 {
		t.Fatalf("seek past the end gave %d", p)
	}
	if seeks != 2 {
		t.Fatalf("seek complete called %d times", seeks)
	}
}

func TestLocalDataSourceErrors(t *testing.T) {
	e, _ := newEngine(t)

	if err := e.Prepare(); !errors.Is(err, pmoengine.ErrDataSource) {
		t.Fatalf("prepare without source: %v", err)
	}

	p := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(p, []byte("pas de l'audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.SetDataSource(pmoengine.Source{URL: p})
	if err := e.Prepare(); !errors.Is(err, pmoengine.ErrDataSource) {
		t.Fatalf("unsupported format: %v", err)
	}

	e.SetDataSource(pmoengine.Source{URL: filepath.Join(t.TempDir(), "absent.mp3"), Duration: 4200})
	if err := e.Prepare(); !errors.Is(err, pmoengine.ErrDataSource) {
		t.Fatalf("missing file: %v", err)
	}
	if d := e.Duration(); d != 4200 {
		t.Fatalf("duration hint ignored: %d", d)
	}
}

func TestLocalStopAndRelease(t *testing.T) {
	e, out := newEngine(t)
	e.SetDataSource(pmoengine.Source{URL: writeSilence(t, 500)})
	if err := e.Prepare(); err != nil {
		t.Fatal(err)
	}
	e.Start()

	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	if out.cleared == 0 {
		t.Fatal("stop must clear the output")
	}
	if e.IsPlaying() || e.CurrentPosition() != 0 {
		t.Fatal("stopped engine still active")
	}

	e.Release()
	if err := e.SetDataSource(pmoengine.Source{URL: "x.wav"}); !errors.Is(err, pmoengine.ErrReleased) {
		t.Fatalf("after release: %v", err)
	}
	if err := e.Start(); !errors.Is(err, pmoengine.ErrReleased) {
		t.Fatalf("start after release: %v", err)
	}
}

func TestLocalVolume(t *testing.T) {
	e, _ := newEngine(t)
	if e.Volume() != 100 {
		t.Fatalf("default volume %d", e.Volume())
	}
	e.SetVolume(150, 150)
	if e.Volume() != 100 {
		t.Fatalf("volume not clamped: %d", e.Volume())
	}
	e.SetVolume(-3, -3)
	if e.Volume() != 0 {
		t.Fatalf("volume not clamped: %d", e.Volume())
	}

	e.SetDataSource(pmoengine.Source{URL: writeSilence(t, 100)})
	if err := e.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVolume(40, 40); err != nil || e.Volume() != 40 {
		t.Fatalf("set volume on a prepared engine: %v %d", err, e.Volume())
	}
}
