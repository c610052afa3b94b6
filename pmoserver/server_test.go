package pmoserver_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconfig"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmocover"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoplayer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoserver"
)

const base = "http://192.0.2.10:1401"

func config(t *testing.T) *pmoconfig.Config {
	t.Helper()
	cfg, err := pmoconfig.ParseConfig([]byte("host:\n  base_url: " + base + "\ncovers:\n  variant: 64\n"))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newServer(t *testing.T, opts ...pmoserver.ServerOption) *pmoserver.Server {
	t.Helper()
	s, err := pmoserver.NewServer("test", config(t), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func get(t *testing.T, s *pmoserver.Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(url, base), nil))
	return rec
}

func TestPublishFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mon titre.flac")
	if err := os.WriteFile(path, []byte("fLaC-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newServer(t)
	url, err := s.PublishFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, base+"/media/") || !strings.HasSuffix(url, "/mon%20titre.flac") {
		t.Errorf("url = %s", url)
	}
	again, _ := s.PublishFile("file://" + path)
	if again != url {
		t.Errorf("token changed: %s vs %s", again, url)
	}

	rec := get(t, s, url)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/flac" {
		t.Errorf("content type %q", ct)
	}
	if rec.Body.String() != "fLaC-data" {
		t.Errorf("body %q", rec.Body.String())
	}

	if rec := get(t, s, "/media/unknown/x.flac"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown token: status %d", rec.Code)
	}
	if _, err := s.PublishFile(dir); err == nil {
		t.Error("a directory must not be published")
	}
	if _, err := s.PublishFile(filepath.Join(dir, "none.mp3")); err == nil {
		t.Error("a missing file must not be published")
	}
}

func TestArtworkURL(t *testing.T) {
	cover := filepath.Join(t.TempDir(), "cover.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cover, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	cache, err := pmocover.NewCache(filepath.Join(t.TempDir(), "covers"), 10)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	s := newServer(t, pmoserver.WithCovers(cache, 64))
	url, err := s.ArtworkURL(cover)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, base+"/covers/images/") || !strings.HasSuffix(url, "/64") {
		t.Errorf("url = %s", url)
	}

	rec := get(t, s, url)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/webp" {
		t.Errorf("status %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	if _, err := newServer(t).ArtworkURL(cover); err == nil {
		t.Error("expected an error without a cover cache")
	}
}

type fixedStatus pmoplayer.Info

func (f fixedStatus) Info() pmoplayer.Info { return pmoplayer.Info(f) }

func TestDebugIndex(t *testing.T) {
	media := pmoplayer.NewMediaItem("", "http://radio/stream", "", pmoplayer.Metadata{Title: "Radio <3>"})
	s := newServer(t,
		pmoserver.WithRegistry(pmorenderer.NewRegistry()),
		pmoserver.WithPlayer(fixedStatus{Status: pmoplayer.StatusPlaying, Media: media}),
	)

	rec := get(t, s, "/")
	body := rec.Body.String()
	for _, want := range []string{base, "PLAYING", "Radio &lt;3&gt;", "<td>local</td>"} {
		if !strings.Contains(body, want) {
			t.Errorf("index lacks %q", want)
		}
	}
	if rec := get(t, s, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status %d", rec.Code)
	}

	rec = get(t, s, "/debug/renderers.xml")
	xml := rec.Body.String()
	if !strings.HasPrefix(xml, `<?xml version="1.0" encoding="utf-8"?>`) {
		t.Errorf("missing header: %s", xml)
	}
	if !strings.Contains(xml, `<renderer index="0" id="local">`) {
		t.Errorf("local renderer missing: %s", xml)
	}
}

func TestStartStop(t *testing.T) {
	s, err := pmoserver.NewServer("test", config(t), pmoserver.WithBaseURL(""), pmoserver.WithPort(0))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if s.HTTPPort == 0 || strings.HasSuffix(s.BaseURL(), ":0") {
		t.Fatalf("port not resolved: %s", s.BaseURL())
	}

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(s.HTTPPort) + "/")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
