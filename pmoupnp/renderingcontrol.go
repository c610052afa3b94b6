package pmoupnp

import (
	"fmt"
	"strconv"
	"strings"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/soap"
)

func rcAction(svc *Service, name string) *soap.ActionRequest {
	return soap.NewAction(serviceTypeOf(svc, ServiceRenderingControl), name).
		Set("InstanceID", "0").
		Set("Channel", "Master")
}

func GetVolume(svc *Service) *soap.ActionRequest {
	return rcAction(svc, "GetVolume")
}

// SetVolume borne volume dans [0,100].
func SetVolume(svc *Service, volume int) *soap.ActionRequest {
	return rcAction(svc, "SetVolume").Set("DesiredVolume", strconv.Itoa(ClampVolume(volume)))
}

func SetMute(svc *Service, mute bool) *soap.ActionRequest {
	v := "0"
	if mute {
		v = "1"
	}
	return rcAction(svc, "SetMute").Set("DesiredMute", v)
}

func DecodeVolume(values map[string]string) (int, error) {
	raw, ok := values["CurrentVolume"]
	if !ok {
		return 0, fmt.Errorf("GetVolume: missing CurrentVolume")
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("GetVolume: invalid CurrentVolume %q", raw)
	}
	return ClampVolume(v), nil
}

func ClampVolume(v int) int {
	return min(max(v, 0), 100)
}
