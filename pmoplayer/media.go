package pmoplayer

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Metadata décrit un média pour l'affichage et le DIDL-Lite envoyé aux
// renderers.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	CoverURL string
	MimeType string
}

// Playable est un média lisible, en flux ou depuis un fichier local.
// Durée et position sont en millisecondes.
type Playable interface {
	Identifier() string
	StreamURL() string
	LocalMediaURL() string
	Duration() int64
	SetDuration(ms int64)
	Position() int64
	SetPosition(ms int64)
	LoadMetadata() error
	Metadata() Metadata
}

// MediaItem est l'implémentation simple de Playable utilisée par la console.
type MediaItem struct {
	id     string
	stream string
	local  string

	mu       sync.Mutex
	meta     Metadata
	duration int64
	position int64
}

// NewMediaItem crée un média. stream ou local peut être vide.
func NewMediaItem(id, stream, local string, meta Metadata) *MediaItem {
	if id == "" {
		id = stream
		if id == "" {
			id = local
		}
	}
	return &MediaItem{id: id, stream: stream, local: local, meta: meta}
}

// MediaFromArg construit un média depuis un argument de la ligne de
// commande : une URL http(s) ou un chemin de fichier.
func MediaFromArg(arg string) (*MediaItem, bool, error) {
	if u, err := url.Parse(arg); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return NewMediaItem(arg, arg, "", Metadata{}), true, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, false, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, false, fmt.Errorf("media %s: %w", arg, err)
	}
	return NewMediaItem(abs, "", abs, Metadata{}), false, nil
}

func (m *MediaItem) Identifier() string    { return m.id }
func (m *MediaItem) StreamURL() string     { return m.stream }
func (m *MediaItem) LocalMediaURL() string { return m.local }

func (m *MediaItem) Duration() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *MediaItem) SetDuration(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = ms
}

func (m *MediaItem) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *MediaItem) SetPosition(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = max(ms, 0)
}

func (m *MediaItem) Metadata() Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}

// LoadMetadata complète le titre et le type MIME à partir du nom du média.
func (m *MediaItem) LoadMetadata() error {
	name := m.local
	if name == "" {
		u, err := url.Parse(m.stream)
		if err != nil {
			return fmt.Errorf("media %s: %w", m.id, err)
		}
		name = u.Path
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ext := strings.ToLower(path.Ext(name))
	if m.meta.Title == "" {
		m.meta.Title = strings.TrimSuffix(path.Base(filepath.ToSlash(name)), path.Ext(name))
	}
	if m.meta.MimeType == "" && ext != "" {
		m.meta.MimeType = MimeOf(ext)
	}
	return nil
}

// MimeOf donne le type MIME audio d'une extension, point compris.
func MimeOf(ext string) string {
	switch ext {
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	return ""
}

func (m *MediaItem) String() string {
	if t := m.Metadata().Title; t != "" {
		return t
	}
	return m.id
}
