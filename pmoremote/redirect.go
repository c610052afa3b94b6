package pmoremote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ResolveRedirects suit lui-même les redirections HTTP de rawURL, au plus
// hops fois, et retourne l'URL finale. Beaucoup de renderers ne suivent pas
// les 30x. Les URLs non HTTP sont retournées telles quelles.
func ResolveRedirects(ctx context.Context, client *http.Client, rawURL string, hops int) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return rawURL, nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	// copie du client sans suivi automatique
	noFollow := *client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	current := rawURL
	for hop := 0; hop <= hops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("redirect resolution: %w", err)
		}
		resp, err := noFollow.Do(req)
		if err != nil {
			return "", fmt.Errorf("redirect resolution: %w", err)
		}
		// on ne lit pas le média
		resp.Body.Close()

		if !isRedirect(resp.StatusCode) {
			if resp.StatusCode >= 400 {
				return "", fmt.Errorf("redirect resolution: HTTP %d for %s", resp.StatusCode, current)
			}
			return current, nil
		}

		location := resp.Header.Get("Location")
		if location == "" {
			return current, nil
		}
		next, err := resolveLocation(current, location)
		if err != nil {
			return "", fmt.Errorf("redirect resolution: %w", err)
		}
		log.Debugf("↪️ redirect %s -> %s", current, next)
		current = next
	}
	return "", fmt.Errorf("redirect resolution: more than %d redirects for %s", hops, rawURL)
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}
