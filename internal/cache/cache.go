// Package cache keeps the frames extracted from the last input on disk,
// together with the key they were extracted for.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/vidflut/internal/db"
	"github.com/llehouerou/vidflut/internal/source"
)

const (
	appName    = "vidflut"
	dbFileName = "cache.db"
	framesDir  = "frames"
)

// Key identifies one extraction of an input.
type Key struct {
	Input  string
	Width  int
	Height int
	// FPS is the requested frame rate, 0 for the native one.
	FPS float64
	// Size and ModTime of the input, so a replaced file misses.
	Size    int64
	ModTime time.Time
}

// NewKey builds the key for input, resolving its absolute path.
func NewKey(input string, width, height int, fps float64) (Key, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return Key{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Key{}, err
	}
	return Key{
		Input:   abs,
		Width:   width,
		Height:  height,
		FPS:     fps,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// ID returns a stable hash of the key.
func (k Key) ID() string {
	data := fmt.Sprintf("%s:%d:%d:%g:%d:%d",
		k.Input, k.Width, k.Height, k.FPS, k.Size, k.ModTime.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Store is the frame cache. It holds at most one extraction at a time.
type Store struct {
	db  *sql.DB
	dir string
}

// DefaultDir returns the cache directory under the XDG cache home.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// Open opens the cache rooted at dir, or DefaultDir when dir is empty.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	return open(dir, filepath.Join(dir, dbFileName))
}

func open(dir, dbPath string) (*Store, error) {
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{db: conn, dir: dir}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FramesDir returns the directory the frames are extracted to.
func (s *Store) FramesDir() string {
	return filepath.Join(s.dir, framesDir)
}

// Lookup returns the metadata stored for key. ok is false when the cache
// holds another key or its frames are missing.
func (s *Store) Lookup(key Key) (meta source.Metadata, ok bool, err error) {
	var keyID string
	err = s.db.QueryRow(`
		SELECT key_id, fps, frame_count FROM cache_entry WHERE id = 1
	`).Scan(&keyID, &meta.FPS, &meta.FrameCount)
	if errors.Is(err, sql.ErrNoRows) {
		return source.Metadata{}, false, nil
	}
	if err != nil {
		return source.Metadata{}, false, err
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "Store.Lookup",
		"input":    key.Input,
	})

	if keyID != key.ID() {
		log.Info("Cache miss: different input")
		return source.Metadata{}, false, nil
	}

	n, err := source.CountFrames(s.FramesDir())
	if err != nil || n < meta.FrameCount {
		log.WithField("frames", n).Info("Cache miss: frames missing")
		return source.Metadata{}, false, nil
	}

	log.WithField("frames", meta.FrameCount).Info("Cache hit")
	return meta, true, nil
}

// valid reports whether the cache holds the frames for key.
func (s *Store) valid(key Key) bool {
	_, ok, err := s.Lookup(key)
	return err == nil && ok
}

// Save records that the frames directory now holds key's frames.
func (s *Store) Save(key Key, meta source.Metadata) error {
	return db.WithTx(s.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO cache_entry
				(id, key_id, input, width, height, fps, frame_count, created_at)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		`, key.ID(), key.Input, key.Width, key.Height, meta.FPS, meta.FrameCount, time.Now().Unix())
		return err
	})
}

// Invalidate forgets the cached key and deletes the extracted frames.
func (s *Store) Invalidate() error {
	if _, err := s.db.Exec(`DELETE FROM cache_entry`); err != nil {
		return err
	}
	if err := os.RemoveAll(s.FramesDir()); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Store.Invalidate",
		"dir":      s.FramesDir(),
	}).Debug("Cache cleared")
	return nil
}
