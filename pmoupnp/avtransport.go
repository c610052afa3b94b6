package pmoupnp

import (
	"fmt"
	"strings"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/soap"
)

// TransportState est la valeur de la variable d'état TransportState.
type TransportState string

const (
	StatePlaying        TransportState = "PLAYING"
	StatePausedPlayback TransportState = "PAUSED_PLAYBACK"
	StateStopped        TransportState = "STOPPED"
	StateNoMediaPresent TransportState = "NO_MEDIA_PRESENT"
	StateTransitioning  TransportState = "TRANSITIONING"
)

// SeekMode est l'unité de l'action Seek.
type SeekMode string

const (
	SeekRelTime SeekMode = "REL_TIME"
	SeekAbsTime SeekMode = "ABS_TIME"
)

// ----- Requêtes AVTransport -----

func avtAction(svc *Service, name string) *soap.ActionRequest {
	return soap.NewAction(serviceTypeOf(svc, ServiceAVTransport), name).Set("InstanceID", "0")
}

func SetAVTransportURI(svc *Service, uri, metadata string) *soap.ActionRequest {
	return avtAction(svc, "SetAVTransportURI").
		Set("CurrentURI", uri).
		Set("CurrentURIMetaData", metadata)
}

func Play(svc *Service) *soap.ActionRequest {
	return avtAction(svc, "Play").Set("Speed", "1")
}

func Pause(svc *Service) *soap.ActionRequest {
	return avtAction(svc, "Pause")
}

func Stop(svc *Service) *soap.ActionRequest {
	return avtAction(svc, "Stop")
}

// Seek se positionne à ms millisecondes selon mode.
func Seek(svc *Service, mode SeekMode, ms int64) *soap.ActionRequest {
	return avtAction(svc, "Seek").
		Set("Unit", string(mode)).
		Set("Target", FormatTime(ms))
}

func GetTransportInfo(svc *Service) *soap.ActionRequest {
	return avtAction(svc, "GetTransportInfo")
}

func GetPositionInfo(svc *Service) *soap.ActionRequest {
	return avtAction(svc, "GetPositionInfo")
}

// ----- Réponses -----

type TransportInfo struct {
	State  TransportState
	Status string
	Speed  string
}

func DecodeTransportInfo(values map[string]string) (TransportInfo, error) {
	state, ok := values["CurrentTransportState"]
	if !ok {
		return TransportInfo{}, fmt.Errorf("GetTransportInfo: missing CurrentTransportState")
	}
	return TransportInfo{
		State:  TransportState(strings.TrimSpace(state)),
		Status: values["CurrentTransportStatus"],
		Speed:  values["CurrentSpeed"],
	}, nil
}

// PositionInfo garde les champs bruts : les renderers y mettent volontiers
// NOT_IMPLEMENTED ou une chaîne vide.
type PositionInfo struct {
	Track         string
	TrackDuration string
	TrackMetaData string
	TrackURI      string
	RelTime       string
	AbsTime       string
}

func DecodePositionInfo(values map[string]string) PositionInfo {
	return PositionInfo{
		Track:         values["Track"],
		TrackDuration: values["TrackDuration"],
		TrackMetaData: values["TrackMetaData"],
		TrackURI:      values["TrackURI"],
		RelTime:       values["RelTime"],
		AbsTime:       values["AbsTime"],
	}
}

// HasRelTime indique que le renderer renseigne RelTime.
func (pi PositionInfo) HasRelTime() bool {
	_, ok := ParseTime(pi.RelTime)
	return ok
}

// HasAbsTime indique que le renderer renseigne AbsTime.
func (pi PositionInfo) HasAbsTime() bool {
	_, ok := ParseTime(pi.AbsTime)
	return ok
}

func serviceTypeOf(svc *Service, def string) string {
	if svc != nil && svc.ServiceType() != "" {
		return svc.ServiceType()
	}
	return def
}
