package pmoserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmocover"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoplayer"
)

// PublishFile rend path accessible sous /media/<jeton>/<nom>. Un même
// fichier garde son jeton ; seuls les fichiers publiés sont servis.
func (s *Server) PublishFile(path string) (string, error) {
	abs, err := filepath.Abs(strings.TrimPrefix(path, "file://"))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", abs)
	}

	s.mu.Lock()
	token, ok := s.published[abs]
	if !ok {
		token = uuid.NewString()
		s.published[abs] = token
		s.media[token] = abs
	}
	base := s.baseURL
	s.mu.Unlock()

	if !ok {
		log.Debugf("📤 %s published as %s", abs, token)
	}
	return base + "/media/" + token + "/" + url.PathEscape(filepath.Base(abs)), nil
}

func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request) {
	token, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/media/"), "/")

	s.mu.RLock()
	path, ok := s.media[token]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	if t := pmoplayer.MimeOf(strings.ToLower(filepath.Ext(path))); t != "" {
		w.Header().Set("Content-Type", t)
	}
	log.Debugf("🎵 %s %s for %s", r.Method, filepath.Base(path), r.RemoteAddr)
	http.ServeFile(w, r, path)
}

// ArtworkURL met src en cache et retourne l'URL de sa déclinaison carrée.
// src est une URL HTTP ou un chemin local.
func (s *Server) ArtworkURL(src string) (string, error) {
	if s.covers == nil {
		return "", fmt.Errorf("no cover cache")
	}

	var pk string
	var err error
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pk, err = s.covers.EnsureFromURL(ctx, src)
	} else {
		pk, err = s.covers.EnsureFromFile(strings.TrimPrefix(src, "file://"))
	}
	if err != nil {
		return "", err
	}
	return s.BaseURL() + pmocover.ImagePath(pk, s.variant), nil
}

var (
	_ pmoplayer.MediaPublisher  = (*Server)(nil)
	_ pmoplayer.ArtworkResolver = (*Server)(nil)
)
