package pmorenderer

import (
	"fmt"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
)

// Renderer identifie une cible de lecture : le lecteur local ou un
// MediaRenderer découvert. Deux Renderers sont égaux s'ils désignent le même
// device (même UDN), quelle que soit l'instance.
type Renderer struct {
	dev              *pmoupnp.Device
	avTransport      *pmoupnp.Service
	renderingControl *pmoupnp.Service
}

var local = &Renderer{}

// Local retourne le renderer synthétique qui représente la lecture locale.
func Local() *Renderer {
	return local
}

// NewRenderer construit le descripteur d'un device. Le device doit exposer
// un service AVTransport.
func NewRenderer(dev *pmoupnp.Device) (*Renderer, error) {
	if dev == nil {
		return nil, fmt.Errorf("nil device")
	}
	avt := dev.FindService("AVTransport")
	if avt == nil {
		return nil, fmt.Errorf("device %s has no AVTransport service", dev)
	}
	return &Renderer{
		dev:              dev,
		avTransport:      avt,
		renderingControl: dev.FindService("RenderingControl"),
	}, nil
}

func (r *Renderer) IsLocal() bool {
	return r == nil || r.dev == nil
}

func (r *Renderer) Device() *pmoupnp.Device {
	if r == nil {
		return nil
	}
	return r.dev
}

// ID retourne l'UDN du device, "local" pour le renderer local.
func (r *Renderer) ID() string {
	if r.IsLocal() {
		return "local"
	}
	return r.dev.UDN()
}

func (r *Renderer) Name() string {
	if r.IsLocal() {
		return "local"
	}
	return r.dev.FriendlyName()
}

// CanPause indique que la SCPD AVTransport déclare l'action Pause.
func (r *Renderer) CanPause() bool {
	if r.IsLocal() {
		return true
	}
	return r.avTransport.HasAction("Pause")
}

func (r *Renderer) AVTransport() *pmoupnp.Service {
	if r.IsLocal() {
		return nil
	}
	return r.avTransport
}

// RenderingControl peut être nil : certains renderers n'ont pas de contrôle
// du volume.
func (r *Renderer) RenderingControl() *pmoupnp.Service {
	if r.IsLocal() {
		return nil
	}
	return r.renderingControl
}

func (r *Renderer) Equal(o *Renderer) bool {
	if r.IsLocal() || o.IsLocal() {
		return r.IsLocal() && o.IsLocal()
	}
	return r.dev.UDN() == o.dev.UDN()
}

func (r *Renderer) String() string {
	if r.IsLocal() {
		return "local"
	}
	return fmt.Sprintf("%s (%s)", r.dev.FriendlyName(), r.dev.UDN())
}

// Selector choisit une cible dans la liste. ok est faux si l'utilisateur
// annule.
type Selector interface {
	SelectRenderer(list []*Renderer, current *Renderer) (selected *Renderer, ok bool)
}

// SelectorFunc adapte une fonction en Selector.
type SelectorFunc func(list []*Renderer, current *Renderer) (*Renderer, bool)

func (f SelectorFunc) SelectRenderer(list []*Renderer, current *Renderer) (*Renderer, bool) {
	return f(list, current)
}
