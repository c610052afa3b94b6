package pmocover

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/fileutils"
)

const maxCoverSize = 16 << 20

// CacheEntry est une pochette indexée.
type CacheEntry struct {
	PK        string `json:"pk"`
	SourceURL string `json:"source_url"`
	Hits      int    `json:"hits"`
	LastUsed  string `json:"last_used"`
}

// Cache garde les pochettes en WebP sur disque, indexées dans SQLite. Au
// delà de limit entrées, les moins utilisées sont supprimées.
type Cache struct {
	dir    string
	limit  int
	db     *DB
	client *http.Client

	mu sync.Mutex
}

func NewCache(dir string, limit int) (*Cache, error) {
	if err := fileutils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("cover cache: %w", err)
	}

	db, err := InitDB(dir)
	if err != nil {
		return nil, fmt.Errorf("cover cache: %w", err)
	}

	return &Cache{
		dir:    dir,
		limit:  limit,
		db:     db,
		client: http.DefaultClient,
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Dir() string {
	return c.dir
}

// EnsureFromURL retourne la clé de la pochette de url, en la téléchargeant
// si elle n'est pas encore en cache.
func (c *Cache) EnsureFromURL(ctx context.Context, url string) (string, error) {
	if pk, ok := c.cached(url); ok {
		return pk, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cover %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverSize))
	if err != nil {
		return "", err
	}
	return c.Add(url, data)
}

// EnsureFromFile fait de même pour un fichier local.
func (c *Cache) EnsureFromFile(path string) (string, error) {
	if pk, ok := c.cached(path); ok {
		return pk, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return c.Add(path, data)
}

func (c *Cache) cached(source string) (string, bool) {
	pk := pkFromURL(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Get(pk); err != nil {
		return "", false
	}
	if _, err := os.Stat(c.origPath(pk)); err != nil {
		return "", false
	}
	return pk, true
}

// Add convertit data en WebP et l'indexe sous la clé de source.
func (c *Cache) Add(source string, data []byte) (string, error) {
	pk := pkFromURL(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.origPath(pk)); errors.Is(err, os.ErrNotExist) {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("cover %s: %w", source, err)
		}
		buf, err := encodeWebP(img)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(c.origPath(pk), buf, 0o644); err != nil {
			return "", err
		}
	}

	if err := c.db.Add(pk, source); err != nil {
		return "", err
	}
	c.evictLocked(pk)
	return pk, nil
}

// evictLocked supprime les entrées en trop, jamais keep.
func (c *Cache) evictLocked(keep string) {
	if c.limit <= 0 {
		return
	}
	n, err := c.db.Count()
	if err != nil || n <= c.limit {
		return
	}
	victims, err := c.db.LeastUsed(n - c.limit + 1)
	if err != nil {
		log.Warnf("⚠️ cover eviction: %v", err)
		return
	}
	for _, v := range victims {
		if n <= c.limit {
			break
		}
		if v.PK == keep {
			continue
		}
		c.removeFilesLocked(v.PK)
		if err := c.db.Delete(v.PK); err != nil {
			log.Warnf("⚠️ cover eviction of %s: %v", v.PK, err)
			continue
		}
		n--
		log.Debugf("🗑️ cover %s evicted", v.PK)
	}
}

func (c *Cache) removeFilesLocked(pk string) {
	files, _ := filepath.Glob(filepath.Join(c.dir, pk+".*.webp"))
	for _, f := range files {
		os.Remove(f)
	}
}

// Get retourne le chemin de l'original et compte l'accès.
func (c *Cache) Get(pk string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Get(pk); err != nil {
		return "", err
	}
	if err := c.db.UpdateHit(pk); err != nil {
		log.Debugf("❌ cover hit %s: %v", pk, err)
	}

	path := c.origPath(pk)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Purge vide le cache.
func (c *Cache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, _ := filepath.Glob(filepath.Join(c.dir, "*.webp"))
	for _, f := range files {
		os.Remove(f)
	}
	return c.db.Purge()
}

// Entries retourne l'index, les plus utilisées d'abord.
func (c *Cache) Entries() ([]*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.GetAll()
}

func (c *Cache) origPath(pk string) string {
	return filepath.Join(c.dir, pk+".orig.webp")
}

// pkFromURL donne une clé stable pour une source.
func pkFromURL(url string) string {
	h := sha1.Sum([]byte(url))
	return hex.EncodeToString(h[:8])
}
