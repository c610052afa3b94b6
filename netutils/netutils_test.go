package netutils_test

import (
	"net"
	"testing"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/netutils"
)

func TestGuessLocalIPParses(t *testing.T) {
	if ip := net.ParseIP(netutils.GuessLocalIP()); ip == nil || ip.To4() == nil {
		t.Errorf("not an IPv4 address: %v", ip)
	}
}

func TestLocalIPUnknownInterface(t *testing.T) {
	if _, err := netutils.LocalIP("pmo-does-not-exist0"); err == nil {
		t.Error("expected an error")
	}
}

func TestLocalIPEmptyGuesses(t *testing.T) {
	ip, err := netutils.LocalIP("")
	if err != nil {
		t.Fatal(err)
	}
	if ip != netutils.GuessLocalIP() {
		t.Errorf("LocalIP(\"\") = %s", ip)
	}
}

func TestListAllIPsSkipsLoopback(t *testing.T) {
	for name, ips := range netutils.ListAllIPs() {
		for _, s := range ips {
			ip := net.ParseIP(s)
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				t.Errorf("%s: unexpected address %q", name, s)
			}
		}
	}
}
