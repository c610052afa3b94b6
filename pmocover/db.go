package pmocover

import (
	"database/sql"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB tient l'index SQLite des pochettes : clé, URL d'origine et usage.
type DB struct {
	conn *sql.DB
}

// InitDB ouvre ou crée cache.db dans dir.
func InitDB(dir string) (*DB, error) {
	conn, err := sql.Open("sqlite", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, err
	}
	// une seule connexion : SQLite sérialise de toute façon les écritures
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initTables(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initTables() error {
	_, err := db.conn.Exec(`
	CREATE TABLE IF NOT EXISTS covers (
		pk TEXT PRIMARY KEY,
		source_url TEXT,
		hits INTEGER DEFAULT 0,
		last_used TEXT
	);
	`)
	return err
}

// stamp garde une largeur fixe pour que l'ordre lexical suive le temps.
const stamp = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(stamp)
}

// Add insère pk ou rafraîchit son URL et sa date d'usage.
func (db *DB) Add(pk, url string) error {
	_, err := db.conn.Exec(`
	INSERT INTO covers(pk, source_url, hits, last_used)
	VALUES(?, ?, 0, ?)
	ON CONFLICT(pk) DO UPDATE SET
		source_url=excluded.source_url,
		last_used=excluded.last_used;
	`, pk, url, now())
	return err
}

func (db *DB) Get(pk string) (*CacheEntry, error) {
	row := db.conn.QueryRow(`
	SELECT pk, source_url, hits, last_used
	FROM covers
	WHERE pk = ?
	`, pk)
	return scanEntry(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*CacheEntry, error) {
	entry := &CacheEntry{}
	var lastUsed sql.NullString
	if err := row.Scan(&entry.PK, &entry.SourceURL, &entry.Hits, &lastUsed); err != nil {
		return nil, err
	}
	entry.LastUsed = lastUsed.String
	return entry, nil
}

func (db *DB) UpdateHit(pk string) error {
	_, err := db.conn.Exec(`
	UPDATE covers
	SET hits = hits + 1,
	    last_used = ?
	WHERE pk = ?
	`, now(), pk)
	return err
}

func (db *DB) Delete(pk string) error {
	_, err := db.conn.Exec(`DELETE FROM covers WHERE pk = ?`, pk)
	return err
}

func (db *DB) Count() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM covers`).Scan(&n)
	return n, err
}

// LeastUsed retourne les n entrées les moins utilisées, les plus anciennes
// d'abord à usage égal.
func (db *DB) LeastUsed(n int) ([]*CacheEntry, error) {
	return db.query(`
		SELECT pk, source_url, hits, last_used
		FROM covers
		ORDER BY hits ASC, last_used ASC
		LIMIT ?
	`, n)
}

func (db *DB) Purge() error {
	_, err := db.conn.Exec(`DELETE FROM covers`)
	return err
}

// GetAll retourne toutes les entrées, les plus utilisées d'abord.
func (db *DB) GetAll() ([]*CacheEntry, error) {
	return db.query(`
		SELECT pk, source_url, hits, last_used
		FROM covers
		ORDER BY hits DESC
	`)
}

func (db *DB) query(q string, args ...any) ([]*CacheEntry, error) {
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
