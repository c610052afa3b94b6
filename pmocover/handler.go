package pmocover

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ImagePath est le chemin HTTP d'une pochette ; size 0 désigne l'original.
func ImagePath(pk string, size int) string {
	if size <= 0 {
		return "/covers/images/" + pk
	}
	return fmt.Sprintf("/covers/images/%s/%d", pk, size)
}

// ServeMux branche /covers/images/{pk}[/{size}] et /covers/stats.
func (c *Cache) ServeMux(mux *http.ServeMux) {
	mux.HandleFunc("/covers/images/", c.serveImage)
	mux.HandleFunc("/covers/stats", c.serveStats)
}

func (c *Cache) serveImage(w http.ResponseWriter, r *http.Request) {
	pk, sizeStr, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/covers/images/"), "/")
	if pk == "" || strings.ContainsAny(pk, `./\`) {
		http.Error(w, "missing or invalid key", http.StatusBadRequest)
		return
	}

	path, err := c.Get(pk)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	if sizeStr == "" {
		http.ServeFile(w, r, path)
		return
	}

	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 || size > 4096 {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	data, err := c.generateVariant(pk, size)
	if err != nil {
		log.Errorf("❌ cover %s at %d: %v", pk, size, err)
		http.Error(w, "cannot generate variant", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (c *Cache) serveStats(w http.ResponseWriter, r *http.Request) {
	entries, err := c.Entries()
	if err != nil {
		http.Error(w, "cannot retrieve stats", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*CacheEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}
