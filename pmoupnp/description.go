package pmoupnp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"
)

const maxDescriptionSize = 1 << 20

// FetchDevice télécharge la description du device située à location puis la
// SCPD de chacun de ses services. Un service dont la SCPD est illisible reste
// non hydraté, le device est retourné quand même.
func FetchDevice(ctx context.Context, client *http.Client, location string) (*Device, error) {
	if client == nil {
		client = http.DefaultClient
	}

	data, err := fetch(ctx, client, location)
	if err != nil {
		return nil, fmt.Errorf("device description %s: %w", location, err)
	}

	dev, err := ParseDeviceDescription(data, location)
	if err != nil {
		return nil, err
	}

	for svc := range dev.Services() {
		if svc.scpdURL == "" {
			continue
		}
		scpd, err := fetch(ctx, client, svc.scpdURL)
		if err != nil {
			log.Warnf("❌ Cannot fetch SCPD %s of %s: %v", svc.scpdURL, dev, err)
			continue
		}
		if err := ParseSCPD(scpd, svc); err != nil {
			log.Warnf("❌ Invalid SCPD %s of %s: %v", svc.scpdURL, dev, err)
		}
	}

	log.Debugf("🔎 Device %s described, hydrated=%v", dev.describe(), dev.Hydrated())
	return dev, nil
}

func fetch(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
}

// ParseDeviceDescription lit une description <root><device>. Les URLs des
// services sont résolues contre URLBase, ou location à défaut.
func ParseDeviceDescription(data []byte, location string) (*Device, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("invalid device description: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "root" {
		return nil, fmt.Errorf("invalid device description: missing root")
	}

	base := location
	if ub := root.SelectElement("URLBase"); ub != nil && strings.TrimSpace(ub.Text()) != "" {
		base = strings.TrimSpace(ub.Text())
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}

	de := root.SelectElement("device")
	if de == nil {
		return nil, fmt.Errorf("invalid device description: missing device")
	}

	dev := parseDevice(de, baseURL)
	if dev.udn == "" {
		return nil, fmt.Errorf("invalid device description: missing UDN")
	}
	dev.location = location
	return dev, nil
}

func parseDevice(e *etree.Element, base *url.URL) *Device {
	dev := &Device{
		udn:          normalizeUDN(childText(e, "UDN")),
		deviceType:   childText(e, "deviceType"),
		friendlyName: childText(e, "friendlyName"),
		manufacturer: childText(e, "manufacturer"),
		modelName:    childText(e, "modelName"),
		modelNumber:  childText(e, "modelNumber"),
	}

	for _, se := range e.FindElements("serviceList/service") {
		svc := NewService(
			childText(se, "serviceType"),
			childText(se, "serviceId"),
			resolve(base, childText(se, "controlURL")),
		)
		svc.scpdURL = resolve(base, childText(se, "SCPDURL"))
		svc.eventSubURL = resolve(base, childText(se, "eventSubURL"))
		dev.services = append(dev.services, svc)
	}

	for _, sub := range e.FindElements("deviceList/device") {
		dev.devices = append(dev.devices, parseDevice(sub, base))
	}

	return dev
}

// ParseSCPD lit la liste d'actions d'une SCPD dans svc.
func ParseSCPD(data []byte, svc *Service) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("invalid SCPD: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "scpd" {
		return fmt.Errorf("invalid SCPD: missing scpd")
	}

	for _, ae := range root.FindElements("actionList/action") {
		name := childText(ae, "name")
		if name == "" {
			continue
		}
		var args []Argument
		for _, arg := range ae.FindElements("argumentList/argument") {
			args = append(args, Argument{
				Name:                 childText(arg, "name"),
				Direction:            childText(arg, "direction"),
				RelatedStateVariable: childText(arg, "relatedStateVariable"),
			})
		}
		svc.AddAction(name, args...)
	}
	svc.SetHydrated()
	return nil
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
