// Package netutils choisit l'adresse locale à annoncer aux renderers.
package netutils

import (
	"fmt"
	"net"
)

// GuessLocalIP retourne l'adresse source de la route par défaut. La socket
// UDP n'émet rien ; sans route, on retombe sur la boucle locale.
func GuessLocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// LocalIP retourne la première IPv4 de l'interface iface, ou GuessLocalIP
// quand iface est vide.
func LocalIP(iface string) (string, error) {
	if iface == "" {
		return GuessLocalIP(), nil
	}

	ips := ListAllIPs()
	if addrs, ok := ips[iface]; ok && len(addrs) > 0 {
		return addrs[0], nil
	}
	return "", fmt.Errorf("no IPv4 address on interface %q", iface)
}
