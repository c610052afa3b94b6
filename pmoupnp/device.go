package pmoupnp

import (
	"fmt"
	"iter"
	"strings"
)

const (
	DeviceMediaRenderer = "urn:schemas-upnp-org:device:MediaRenderer:1"

	ServiceAVTransport       = "urn:schemas-upnp-org:service:AVTransport:1"
	ServiceRenderingControl  = "urn:schemas-upnp-org:service:RenderingControl:1"
	ServiceConnectionManager = "urn:schemas-upnp-org:service:ConnectionManager:1"
)

// Device est un device UPnP distant, tel que décrit par sa description XML.
// Son identité est son UDN.
type Device struct {
	location string

	udn          string
	deviceType   string
	friendlyName string
	manufacturer string
	modelName    string
	modelNumber  string

	services []*Service
	devices  []*Device
}

// NewDevice crée un device vide, sans services.
func NewDevice(udn, deviceType, friendlyName string) *Device {
	return &Device{
		udn:          normalizeUDN(udn),
		deviceType:   deviceType,
		friendlyName: friendlyName,
	}
}

func (d *Device) UDN() string {
	return d.udn
}

func (d *Device) DeviceType() string {
	return d.deviceType
}

func (d *Device) FriendlyName() string {
	return d.friendlyName
}

func (d *Device) Manufacturer() string {
	return d.manufacturer
}

func (d *Device) ModelName() string {
	return d.modelName
}

func (d *Device) ModelNumber() string {
	return d.modelNumber
}

// Location est l'URL de la description du device.
func (d *Device) Location() string {
	return d.location
}

func (d *Device) SetLocation(location string) {
	d.location = location
}

func (d *Device) AddService(svc *Service) *Device {
	d.services = append(d.services, svc)
	return d
}

func (d *Device) AddDevice(sub *Device) *Device {
	d.devices = append(d.devices, sub)
	return d
}

// Services itère sur les services du device puis sur ceux de ses
// sous-devices.
func (d *Device) Services() iter.Seq[*Service] {
	return func(yield func(*Service) bool) {
		for _, svc := range d.services {
			if !yield(svc) {
				return
			}
		}
		for _, sub := range d.devices {
			for svc := range sub.Services() {
				if !yield(svc) {
					return
				}
			}
		}
	}
}

// FindService retourne le premier service du type name ("AVTransport"),
// toutes versions confondues, ou nil.
func (d *Device) FindService(name string) *Service {
	for svc := range d.Services() {
		if svc.Is(name) {
			return svc
		}
	}
	return nil
}

// Hydrated indique que la SCPD de chaque service a été lue.
func (d *Device) Hydrated() bool {
	for svc := range d.Services() {
		if !svc.Hydrated() {
			return false
		}
	}
	return true
}

func (d *Device) String() string {
	if d.friendlyName != "" {
		return d.friendlyName
	}
	return d.udn
}

// normalizeUDN retire le préfixe "uuid:" pour que les UDN venant de la
// description et des USN SSDP se comparent.
func normalizeUDN(udn string) string {
	udn = strings.TrimSpace(udn)
	if len(udn) > 5 && strings.EqualFold(udn[:5], "uuid:") {
		return udn[5:]
	}
	return udn
}

// UDNFromUSN extrait l'UDN d'un USN SSDP (uuid:XXX::urn:...).
func UDNFromUSN(usn string) string {
	udn, _, _ := strings.Cut(usn, "::")
	return normalizeUDN(udn)
}

// Equal compare deux devices par UDN.
func (d *Device) Equal(o *Device) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.udn == o.udn
}

func (d *Device) describe() string {
	return fmt.Sprintf("%s [%s] %s %s", d.friendlyName, d.udn, d.manufacturer, d.modelName)
}
