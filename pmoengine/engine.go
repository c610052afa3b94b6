// Package pmoengine définit l'interface de lecture commune au lecteur local
// et aux renderers distants.
package pmoengine

import "errors"

// Codes passés à Listeners.OnError.
const (
	MediaErrorUnknown    = 1
	MediaErrorServerDied = 100
)

var (
	// ErrActionFailed : une action distante a échoué (faute SOAP, HTTP...).
	ErrActionFailed = errors.New("action failed")
	// ErrActionTimeout : pas de réponse dans le délai imparti.
	ErrActionTimeout = errors.New("action timed out")
	// ErrUnsupported : le renderer ne sait pas faire.
	ErrUnsupported = errors.New("unsupported by renderer")
	// ErrDataSource : la source n'a pas pu être chargée, terminal pour le média.
	ErrDataSource = errors.New("cannot set data source")
	// ErrPrepareTimeout : le renderer n'a jamais atteint l'état attendu.
	ErrPrepareTimeout = errors.New("prepare timed out")
	// ErrReleased : l'engine a été libéré.
	ErrReleased = errors.New("engine released")
)

// Source est le média à lire. Duration est une durée connue à l'avance en
// millisecondes, 0 si inconnue. Metadata est un document DIDL-Lite, vide
// accepté.
type Source struct {
	URL      string
	Metadata string
	Duration int64
}

// Listeners reçoit les événements d'un engine. Les callbacks peuvent être
// appelés depuis n'importe quelle goroutine et ne doivent pas bloquer.
type Listeners struct {
	OnCompletion   func()
	OnSeekComplete func()
	OnError        func(what, extra int)
	OnInfo         func(what, extra int)
}

func (l Listeners) Completion() {
	if l.OnCompletion != nil {
		l.OnCompletion()
	}
}

func (l Listeners) SeekComplete() {
	if l.OnSeekComplete != nil {
		l.OnSeekComplete()
	}
}

func (l Listeners) Error(what, extra int) {
	if l.OnError != nil {
		l.OnError(what, extra)
	}
}

func (l Listeners) Info(what, extra int) {
	if l.OnInfo != nil {
		l.OnInfo(what, extra)
	}
}

// Engine est l'interface de lecture. Les positions et durées sont en
// millisecondes, le volume entre 0 et 100.
type Engine interface {
	SetListeners(l Listeners)
	SetDataSource(src Source) error
	Prepare() error
	Start() error
	Pause() error
	Stop() error
	SeekTo(ms int64) error
	// Release libère l'engine sans agir sur la cible.
	Release()

	Duration() int64
	CurrentPosition() int64
	IsPlaying() bool

	SetVolume(left, right int) error
	Volume() int
}
