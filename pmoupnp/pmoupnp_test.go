package pmoupnp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp/upnptest"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/soap"
)

func TestFormatTime(t *testing.T) {
	cases := map[int64]string{
		0:         "0:00:00",
		999:       "0:00:00",
		61_000:    "0:01:01",
		3_723_000: "1:02:03",
		-5:        "0:00:00",
	}
	for in, want := range cases {
		if got := pmoupnp.FormatTime(in); got != want {
			t.Errorf("FormatTime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in string
		ms int64
		ok bool
	}{
		{"0:00:00", 0, true},
		{"1:02:03", 3_723_000, true},
		{"00:03:20.5", 200_500, true},
		{"0:00:01.250", 1_250, true},
		{"0:00:01.1/4", 1_250, true},
		{"123:00:00", 442_800_000, true},
		{"NOT_IMPLEMENTED", 0, false},
		{"", 0, false},
		{"1:60:00", 0, false},
		{"12:34", 0, false},
		{"a:b:c", 0, false},
	}
	for _, c := range cases {
		ms, ok := pmoupnp.ParseTime(c.in)
		if ok != c.ok || ms != c.ms {
			t.Errorf("ParseTime(%q) = %d, %v; want %d, %v", c.in, ms, ok, c.ms, c.ok)
		}
	}
}

func TestFetchDevice(t *testing.T) {
	r := upnptest.NewRenderer("Salon")
	defer r.Close()

	dev, err := pmoupnp.FetchDevice(context.Background(), nil, r.Location())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if dev.UDN() != r.UDN() {
		t.Fatalf("udn = %q, want %q", dev.UDN(), r.UDN())
	}
	if dev.FriendlyName() != "Salon" || dev.String() != "Salon" {
		t.Fatalf("friendly name = %q", dev.FriendlyName())
	}
	if !dev.Hydrated() {
		t.Fatal("device should be hydrated")
	}

	avt := dev.FindService("AVTransport")
	if avt == nil {
		t.Fatal("no AVTransport service")
	}
	if !avt.HasAction("Pause") || !avt.HasAction("SetAVTransportURI") {
		t.Fatalf("missing actions on %s", avt)
	}

	rc := dev.FindService("RenderingControl")
	if rc == nil {
		t.Fatal("no RenderingControl service")
	}
	if want := r.Location()[:len(r.Location())-len("/desc.xml")] + "/rc/control"; rc.ControlURL() != want {
		t.Fatalf("control url = %q, want %q", rc.ControlURL(), want)
	}
}

func TestFetchDeviceWithoutPause(t *testing.T) {
	r := upnptest.NewRenderer("Cuisine", upnptest.WithoutPause())
	defer r.Close()

	dev, err := pmoupnp.FetchDevice(context.Background(), nil, r.Location())
	if err != nil {
		t.Fatal(err)
	}
	if dev.FindService("AVTransport").HasAction("Pause") {
		t.Fatal("Pause must not be listed")
	}
}

func TestParseDeviceDescriptionErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"<root/>",
		`<root><device><friendlyName>x</friendlyName></device></root>`,
	} {
		if _, err := pmoupnp.ParseDeviceDescription([]byte(in), "http://h/desc.xml"); err == nil {
			t.Errorf("expected an error for %q", in)
		}
	}
}

func TestDeviceServicesIncludeEmbedded(t *testing.T) {
	desc := `<root xmlns="urn:schemas-upnp-org:device-1-0">
<URLBase>http://10.0.0.9:49152/</URLBase>
<device>
  <UDN>uuid:root-1</UDN>
  <deviceList><device>
    <UDN>uuid:sub-1</UDN>
    <serviceList><service>
      <serviceType>urn:schemas-upnp-org:service:AVTransport:2</serviceType>
      <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
      <controlURL>/upnp/control/avt</controlURL>
      <SCPDURL>/avt.xml</SCPDURL>
    </service></serviceList>
  </device></deviceList>
</device>
</root>`

	dev, err := pmoupnp.ParseDeviceDescription([]byte(desc), "http://10.0.0.9:49152/desc.xml")
	if err != nil {
		t.Fatal(err)
	}
	avt := dev.FindService("AVTransport")
	if avt == nil {
		t.Fatal("embedded AVTransport not found")
	}
	if avt.Version() != 2 || avt.ControlURL() != "http://10.0.0.9:49152/upnp/control/avt" {
		t.Fatalf("unexpected service %s v%d", avt, avt.Version())
	}
	if dev.Hydrated() {
		t.Fatal("SCPD not read yet, device must not be hydrated")
	}
}

func TestUDNFromUSN(t *testing.T) {
	if got := pmoupnp.UDNFromUSN("uuid:abc-1::urn:schemas-upnp-org:device:MediaRenderer:1"); got != "abc-1" {
		t.Fatalf("got %q", got)
	}
	if got := pmoupnp.UDNFromUSN("uuid:abc-2"); got != "abc-2" {
		t.Fatalf("got %q", got)
	}
}

func invoke(t *testing.T, inv pmoupnp.Invoker, svc *pmoupnp.Service, req *soap.ActionRequest) pmoupnp.Result {
	t.Helper()
	ch := make(chan pmoupnp.Result, 1)
	inv.Invoke(context.Background(), svc, req, func(r pmoupnp.Result) {
		ch <- r
	})
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("invoke timed out")
	}
	return pmoupnp.Result{}
}

func TestHTTPInvoker(t *testing.T) {
	r := upnptest.NewRenderer("Bureau")
	defer r.Close()

	dev := r.Device()
	avt := dev.FindService("AVTransport")
	rc := dev.FindService("RenderingControl")
	inv := pmoupnp.NewHTTPInvoker(nil)

	res := invoke(t, inv, avt, pmoupnp.SetAVTransportURI(avt, "http://nas/a.mp3", ""))
	if res.Err != nil {
		t.Fatalf("SetAVTransportURI failed: %v", res.Err)
	}
	if r.URI() != "http://nas/a.mp3" {
		t.Fatalf("renderer uri = %q", r.URI())
	}

	if res := invoke(t, inv, avt, pmoupnp.Play(avt)); res.Err != nil {
		t.Fatalf("Play failed: %v", res.Err)
	}

	res = invoke(t, inv, avt, pmoupnp.GetTransportInfo(avt))
	info, err := pmoupnp.DecodeTransportInfo(res.Values)
	if err != nil || info.State != pmoupnp.StatePlaying {
		t.Fatalf("transport info = %+v, %v", info, err)
	}

	if res := invoke(t, inv, rc, pmoupnp.SetVolume(rc, 140)); res.Err != nil {
		t.Fatal(res.Err)
	}
	res = invoke(t, inv, rc, pmoupnp.GetVolume(rc))
	if v, err := pmoupnp.DecodeVolume(res.Values); err != nil || v != 100 {
		t.Fatalf("volume = %d, %v", v, err)
	}

	if c := r.LastCall("SetVolume"); c == nil {
		t.Fatal("SetVolume not recorded")
	} else if ch, _ := c.Get("Channel"); ch != "Master" {
		t.Fatalf("Channel = %q", ch)
	}
}

func TestHTTPInvokerFault(t *testing.T) {
	r := upnptest.NewRenderer("Chambre")
	defer r.Close()

	avt := r.Device().FindService("AVTransport")
	r.FailNext("Stop", 1)

	res := invoke(t, pmoupnp.NewHTTPInvoker(nil), avt, pmoupnp.Stop(avt))
	var fault *soap.Fault
	if !errors.As(res.Err, &fault) || fault.UPnPErrorCode != 501 {
		t.Fatalf("expected UPnPError 501, got %v", res.Err)
	}
}

func TestPositionInfoCapabilities(t *testing.T) {
	pi := pmoupnp.DecodePositionInfo(map[string]string{
		"RelTime": "0:00:10",
		"AbsTime": "NOT_IMPLEMENTED",
	})
	if !pi.HasRelTime() || pi.HasAbsTime() {
		t.Fatalf("unexpected capabilities %+v", pi)
	}
}

func TestSeekRequest(t *testing.T) {
	req := pmoupnp.Seek(nil, pmoupnp.SeekAbsTime, 90_500)
	if unit, _ := req.Get("Unit"); unit != "ABS_TIME" {
		t.Fatalf("Unit = %q", unit)
	}
	if target, _ := req.Get("Target"); target != "0:01:30" {
		t.Fatalf("Target = %q", target)
	}
	if req.ServiceType != pmoupnp.ServiceAVTransport {
		t.Fatalf("service type = %q", req.ServiceType)
	}
}
