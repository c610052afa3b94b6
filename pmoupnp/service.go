package pmoupnp

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Action est une action déclarée dans la SCPD d'un service.
type Action struct {
	Name      string
	Arguments []Argument
}

// Argument décrit un argument d'action (direction "in" ou "out").
type Argument struct {
	Name                 string
	Direction            string
	RelatedStateVariable string
}

// Service est la vue control point d'un service d'un device distant. Les URLs
// sont absolues, résolues contre l'URL de la description.
type Service struct {
	serviceType string
	serviceID   string
	scpdURL     string
	controlURL  string
	eventSubURL string

	actions  map[string]*Action
	hydrated bool
}

// NewService crée un service. Sans SCPD il n'est pas hydraté : HasAction
// répond toujours faux.
func NewService(serviceType, serviceID, controlURL string) *Service {
	return &Service{
		serviceType: serviceType,
		serviceID:   serviceID,
		controlURL:  controlURL,
		actions:     make(map[string]*Action),
	}
}

func (svc *Service) ServiceType() string {
	return svc.serviceType
}

func (svc *Service) ServiceID() string {
	return svc.serviceID
}

func (svc *Service) SCPDURL() string {
	return svc.scpdURL
}

func (svc *Service) ControlURL() string {
	return svc.controlURL
}

func (svc *Service) EventSubURL() string {
	return svc.eventSubURL
}

// Name retourne le nom court du service, "AVTransport" pour
// urn:schemas-upnp-org:service:AVTransport:1.
func (svc *Service) Name() string {
	parts := strings.Split(svc.serviceType, ":")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return svc.serviceType
}

// Version retourne la version du type de service, 1 si illisible.
func (svc *Service) Version() int {
	var v int
	if i := strings.LastIndex(svc.serviceType, ":"); i >= 0 {
		fmt.Sscanf(svc.serviceType[i+1:], "%d", &v)
	}
	if v < 1 {
		return 1
	}
	return v
}

// Is indique si le service est du type name ("AVTransport"), toutes versions
// confondues.
func (svc *Service) Is(name string) bool {
	return strings.EqualFold(svc.Name(), name) ||
		strings.HasSuffix(svc.serviceID, ":"+name)
}

// AddAction enregistre une action et marque le service comme hydraté.
func (svc *Service) AddAction(name string, args ...Argument) *Service {
	svc.actions[name] = &Action{Name: name, Arguments: args}
	svc.hydrated = true
	return svc
}

// SetHydrated marque la SCPD comme lue, même si elle ne déclare aucune action.
func (svc *Service) SetHydrated() {
	svc.hydrated = true
}

func (svc *Service) Hydrated() bool {
	return svc.hydrated
}

func (svc *Service) HasAction(name string) bool {
	_, ok := svc.actions[name]
	return ok
}

func (svc *Service) Action(name string) *Action {
	return svc.actions[name]
}

// Actions itère sur les noms d'actions, triés.
func (svc *Service) Actions() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(svc.actions)))
}

func (svc *Service) String() string {
	return fmt.Sprintf("%s (%s)", svc.Name(), svc.controlURL)
}
