package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/klaviyo-report/pkg/logger"
)

var (
	bucketResponses = []byte("responses") // Key -> expiry + body
)

// boltStore implements Store using BoltDB.
type boltStore struct {
	db     *bolt.DB
	logger logger.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the BoltDB cache at cfg.DBPath.
//
// Parameters:
//   - cfg: Store configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Store
//   - Error if the database cannot be opened
func Open(cfg Config, log logger.Logger) (Store, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := ExpandHome(cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	store, err := NewBoltStore(db, log)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close cache database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Debug("response cache opened", "db_path", dbPath)
	return store, nil
}

// NewBoltStore creates a Store on an already open database.
//
// Close closes db.
func NewBoltStore(db *bolt.DB, log logger.Logger) (Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketResponses)
		return createErr
	}); err != nil {
		return nil, fmt.Errorf("failed to create responses bucket: %w", err)
	}

	return &boltStore{
		db:     db,
		logger: log,
		now:    time.Now,
	}, nil
}

// Get implements Store.Get.
func (s *boltStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	var value []byte
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketResponses).Get([]byte(key))
		if data == nil {
			return nil
		}

		v, expires, decodeErr := decodeEntry(data)
		if decodeErr != nil {
			return fmt.Errorf("%w: %s", decodeErr, key)
		}
		if expired(expires, s.now()) {
			return nil
		}

		// Bolt memory is only valid inside the transaction.
		value = append([]byte(nil), v...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return value, found, nil
}

// Put implements Store.Put.
func (s *boltStore) Put(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketResponses).Put([]byte(key), encodeEntry(value, ttl, s.now())); err != nil {
			return fmt.Errorf("failed to store cache entry: %w", err)
		}
		return nil
	})
}

// Delete implements Store.Delete.
func (s *boltStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Delete([]byte(key))
	})
}

// Purge implements Store.Purge.
func (s *boltStore) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	removed := 0
	now := s.now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		var stale [][]byte
		b := tx.Bucket(bucketResponses)
		if err := b.ForEach(func(k, v []byte) error {
			_, expires, decodeErr := decodeEntry(v)
			if decodeErr != nil || expired(expires, now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to delete cache entry: %w", err)
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Debug("purged expired cache entries", "count", removed)
	}
	return removed, nil
}

// Close implements Store.Close.
func (s *boltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading "~" in path with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
