// Package pmoplayer orchestre la lecture : une seule machine à états,
// locale ou déportée sur un renderer UPnP.
package pmoplayer

import (
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
)

type PlayerStatus int

const (
	StatusIndeterminate PlayerStatus = iota
	StatusInitializing
	StatusInitialized
	StatusPreparing
	StatusPrepared
	StatusPlaying
	StatusPaused
	StatusSeeking
	StatusStopped
	StatusError
)

var statusNames = [...]string{
	StatusIndeterminate: "INDETERMINATE",
	StatusInitializing:  "INITIALIZING",
	StatusInitialized:   "INITIALIZED",
	StatusPreparing:     "PREPARING",
	StatusPrepared:      "PREPARED",
	StatusPlaying:       "PLAYING",
	StatusPaused:        "PAUSED",
	StatusSeeking:       "SEEKING",
	StatusStopped:       "STOPPED",
	StatusError:         "ERROR",
}

func (s PlayerStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// Info est un instantané cohérent du statut et du média actif.
type Info struct {
	Status   PlayerStatus
	Media    Playable
	Renderer *pmorenderer.Renderer
}

// Callback reçoit les événements du Service. Les méthodes sont appelées
// depuis le worker : elles ne doivent pas attendre une opération du Service.
type Callback interface {
	StatusChanged(info Info)
	PositionChanged(media Playable, position, duration int64)
	MediaError(what, extra int)
	PlaybackEnded(media Playable)
}

// CallbackFuncs adapte des fonctions en Callback ; les champs nil sont
// ignorés.
type CallbackFuncs struct {
	OnStatus   func(Info)
	OnPosition func(media Playable, position, duration int64)
	OnError    func(what, extra int)
	OnEnded    func(media Playable)
}

func (c CallbackFuncs) StatusChanged(info Info) {
	if c.OnStatus != nil {
		c.OnStatus(info)
	}
}

func (c CallbackFuncs) PositionChanged(media Playable, position, duration int64) {
	if c.OnPosition != nil {
		c.OnPosition(media, position, duration)
	}
}

func (c CallbackFuncs) MediaError(what, extra int) {
	if c.OnError != nil {
		c.OnError(what, extra)
	}
}

func (c CallbackFuncs) PlaybackEnded(media Playable) {
	if c.OnEnded != nil {
		c.OnEnded(media)
	}
}
