package ssdp_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp/upnptest"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/ssdp"
)

type sink struct {
	mu      sync.Mutex
	added   []*pmoupnp.Device
	removed []*pmoupnp.Device
	events  chan string
}

func newSink() *sink {
	return &sink{events: make(chan string, 16)}
}

func (s *sink) DeviceAdded(dev *pmoupnp.Device) {
	s.mu.Lock()
	s.added = append(s.added, dev)
	s.mu.Unlock()
	s.events <- "added:" + dev.UDN()
}

func (s *sink) DeviceRemoved(dev *pmoupnp.Device) {
	s.mu.Lock()
	s.removed = append(s.removed, dev)
	s.mu.Unlock()
	s.events <- "removed:" + dev.UDN()
}

func (s *sink) wait(t *testing.T) string {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event from browser")
	}
	return ""
}

func (s *sink) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-s.events:
		t.Fatalf("unexpected event %s", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func staticFetcher(devices map[string]*pmoupnp.Device) ssdp.Fetcher {
	return func(_ context.Context, location string) (*pmoupnp.Device, error) {
		if dev, ok := devices[location]; ok {
			return dev, nil
		}
		return nil, errors.New("unknown location")
	}
}

const rendererNT = "urn:schemas-upnp-org:device:MediaRenderer:1"

func TestAliveThenBye(t *testing.T) {
	dev := pmoupnp.NewDevice("uuid:r1", rendererNT, "Salon")
	s := newSink()
	b := ssdp.NewBrowser(s, ssdp.WithFetcher(staticFetcher(map[string]*pmoupnp.Device{
		"http://r1/desc.xml": dev,
	})))
	defer b.Close()

	b.HandleAlive("uuid:r1::"+rendererNT, rendererNT, "http://r1/desc.xml", 1800)
	if ev := s.wait(t); ev != "added:r1" {
		t.Fatalf("got %s", ev)
	}

	// les annonces suivantes ne redécrivent pas le device
	b.HandleAlive("uuid:r1::"+rendererNT, rendererNT, "http://r1/desc.xml", 1800)
	s.none(t)

	b.HandleBye("uuid:r1::"+rendererNT, rendererNT)
	if ev := s.wait(t); ev != "removed:r1" {
		t.Fatalf("got %s", ev)
	}
	if b.Known() != 0 {
		t.Fatalf("known = %d", b.Known())
	}
}

func TestIgnoresOtherDevices(t *testing.T) {
	s := newSink()
	b := ssdp.NewBrowser(s, ssdp.WithFetcher(staticFetcher(nil)))
	defer b.Close()

	b.HandleAlive("uuid:ms::urn:schemas-upnp-org:device:MediaServer:1",
		"urn:schemas-upnp-org:device:MediaServer:1", "http://ms/desc.xml", 1800)
	b.HandleAlive("uuid:x::upnp:rootdevice", "upnp:rootdevice", "http://x/desc.xml", 1800)
	s.none(t)
}

func TestFetchFailureAllowsRetry(t *testing.T) {
	devices := map[string]*pmoupnp.Device{}
	var mu sync.Mutex
	fetch := func(ctx context.Context, location string) (*pmoupnp.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		return staticFetcher(devices)(ctx, location)
	}

	s := newSink()
	b := ssdp.NewBrowser(s, ssdp.WithFetcher(fetch))
	defer b.Close()

	b.HandleAlive("uuid:r2", rendererNT, "http://r2/desc.xml", 1800)
	s.none(t)

	mu.Lock()
	devices["http://r2/desc.xml"] = pmoupnp.NewDevice("r2", rendererNT, "Cuisine")
	mu.Unlock()

	b.HandleAlive("uuid:r2", rendererNT, "http://r2/desc.xml", 1800)
	if ev := s.wait(t); ev != "added:r2" {
		t.Fatalf("got %s", ev)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := newSink()
	b := ssdp.NewBrowser(s,
		ssdp.WithClock(clock),
		ssdp.WithFetcher(staticFetcher(map[string]*pmoupnp.Device{
			"http://r3/desc.xml": pmoupnp.NewDevice("r3", rendererNT, "Bureau"),
		})))
	defer b.Close()

	b.HandleAlive("uuid:r3", rendererNT, "http://r3/desc.xml", 60)
	s.wait(t)

	mu.Lock()
	now = now.Add(30 * time.Second)
	mu.Unlock()
	b.Sweep()
	s.none(t)

	mu.Lock()
	now = now.Add(31 * time.Second)
	mu.Unlock()
	b.Sweep()
	if ev := s.wait(t); ev != "removed:r3" {
		t.Fatalf("got %s", ev)
	}
}

func TestResolvesRealDescription(t *testing.T) {
	r := upnptest.NewRenderer("Chambre")
	defer r.Close()

	s := newSink()
	b := ssdp.NewBrowser(s)
	defer b.Close()

	b.HandleAlive("uuid:"+r.UDN()+"::"+rendererNT, rendererNT, r.Location(), 1800)
	if ev := s.wait(t); ev != "added:"+r.UDN() {
		t.Fatalf("got %s", ev)
	}

	s.mu.Lock()
	dev := s.added[0]
	s.mu.Unlock()
	if !dev.Hydrated() || dev.FindService("AVTransport") == nil {
		t.Fatal("device not fully resolved")
	}
}
