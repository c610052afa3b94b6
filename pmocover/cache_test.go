package pmocover_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/chai2010/webp"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmocover"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newCache(t *testing.T, limit int) *pmocover.Cache {
	t.Helper()
	c, err := pmocover.NewCache(filepath.Join(t.TempDir(), "covers"), limit)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEnsureFromURLDownloadsOnce(t *testing.T) {
	data := pngBytes(t, 40, 20)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	c := newCache(t, 0)
	pk, err := c.EnsureFromURL(context.Background(), srv.URL+"/cover.png")
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.EnsureFromURL(context.Background(), srv.URL+"/cover.png")
	if err != nil {
		t.Fatal(err)
	}
	if pk != again {
		t.Errorf("keys differ: %s vs %s", pk, again)
	}
	if hits.Load() != 1 {
		t.Errorf("downloaded %d times, want 1", hits.Load())
	}

	path, err := c.Get(pk)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := webp.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("original size %v", b)
	}
}

func TestEnsureFromURLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/garbage" {
			w.Write([]byte("not an image"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newCache(t, 0)
	if _, err := c.EnsureFromURL(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected an error on 404")
	}
	if _, err := c.EnsureFromURL(context.Background(), srv.URL+"/garbage"); err == nil {
		t.Error("expected a decode error")
	}
}

func TestEnsureFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folder.png")
	if err := os.WriteFile(path, pngBytes(t, 16, 16), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newCache(t, 0)
	pk, err := c.EnsureFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if pk == "" {
		t.Fatal("empty key")
	}
	if _, err := c.EnsureFromFile(filepath.Join(t.TempDir(), "none.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestHandlerServesVariant(t *testing.T) {
	c := newCache(t, 0)
	pk, err := c.Add("mem://a", pngBytes(t, 60, 30))
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	c.ServeMux(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + pmocover.ImagePath(pk, 32))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/webp" {
		t.Errorf("content type %q", ct)
	}
	img, err := webp.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("variant size %v", b)
	}

	for path, want := range map[string]int{
		pmocover.ImagePath("0000000000000000", 0): http.StatusNotFound,
		pmocover.ImagePath(pk, 0) + "/big":         http.StatusBadRequest,
		"/covers/images/":                          http.StatusBadRequest,
	} {
		r, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		r.Body.Close()
		if r.StatusCode != want {
			t.Errorf("%s: status %d, want %d", path, r.StatusCode, want)
		}
	}
}

func TestEvictionKeepsLimit(t *testing.T) {
	c := newCache(t, 2)
	data := pngBytes(t, 8, 8)

	first, err := c.Add("mem://1", data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Add("mem://2", data)
	if err != nil {
		t.Fatal(err)
	}
	// second est consultée, first devient la moins utilisée
	if _, err := c.Get(second); err != nil {
		t.Fatal(err)
	}
	third, err := c.Add("mem://3", data)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := c.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("%d entries, want 2", len(entries))
	}
	if _, err := c.Get(first); err == nil {
		t.Error("least used cover still present")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), first+".orig.webp")); !os.IsNotExist(err) {
		t.Error("evicted file still on disk")
	}
	for _, pk := range []string{second, third} {
		if _, err := c.Get(pk); err != nil {
			t.Errorf("%s evicted: %v", pk, err)
		}
	}
}

func TestStatsAndPurge(t *testing.T) {
	c := newCache(t, 0)
	pk, err := c.Add("mem://s", pngBytes(t, 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	c.Get(pk)
	c.Get(pk)

	mux := http.NewServeMux()
	c.ServeMux(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/covers/stats", nil))

	var entries []pmocover.CacheEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].PK != pk || entries[0].Hits != 2 || entries[0].SourceURL != "mem://s" {
		t.Errorf("stats = %+v", entries)
	}

	if err := c.Purge(); err != nil {
		t.Fatal(err)
	}
	if entries, _ := c.Entries(); len(entries) != 0 {
		t.Errorf("%d entries after purge", len(entries))
	}
}
