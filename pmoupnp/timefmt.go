package pmoupnp

import (
	"fmt"
	"strconv"
	"strings"
)

// NotImplemented est la valeur renvoyée par les renderers pour un champ
// qu'ils ne gèrent pas.
const NotImplemented = "NOT_IMPLEMENTED"

// FormatTime formate une durée en millisecondes au format UPnP H:MM:SS.
// Les millisecondes sont tronquées.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// ParseTime lit une durée UPnP H+:MM:SS[.F+] ou H+:MM:SS[.F0/F1] et retourne
// des millisecondes. ok est faux pour une valeur vide, NOT_IMPLEMENTED ou
// mal formée.
func ParseTime(s string) (ms int64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == NotImplemented {
		return 0, false
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}

	secPart, frac, hasFrac := strings.Cut(parts[2], ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 || sec > 59 {
		return 0, false
	}

	var fracMs int64
	if hasFrac {
		fracMs, ok = parseFraction(frac)
		if !ok {
			return 0, false
		}
	}

	ms = ((h*60+m)*60+sec)*1000 + fracMs
	if neg {
		ms = -ms
	}
	return ms, true
}

// parseFraction accepte les deux formes de fraction UPnP : décimale (".5")
// ou rationnelle ("1/3").
func parseFraction(f string) (int64, bool) {
	if num, den, isRatio := strings.Cut(f, "/"); isRatio {
		n, err1 := strconv.ParseInt(num, 10, 64)
		d, err2 := strconv.ParseInt(den, 10, 64)
		if err1 != nil || err2 != nil || d <= 0 || n < 0 || n >= d {
			return 0, false
		}
		return n * 1000 / d, true
	}

	if f == "" {
		return 0, true
	}
	if len(f) > 3 {
		f = f[:3]
	}
	v, err := strconv.ParseInt(f, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	for i := len(f); i < 3; i++ {
		v *= 10
	}
	return v, true
}
