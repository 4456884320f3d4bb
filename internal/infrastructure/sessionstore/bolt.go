package sessionstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/taskpane/app/domain"
)

var (
	bucketName = []byte("session")
	currentKey = []byte("current")
)

// Store persists the active session bundle across process restarts, the
// same role browser storage plays for the hosted backend's web clients.
type Store struct {
	db *bolt.DB
}

// Open initializes the bolt file and ensures the session bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Load returns the persisted session, or nil when none is stored.
func (s *Store) Load() (*domain.Session, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}

	var session *domain.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(currentKey)
		if len(raw) == 0 {
			return nil
		}
		var decoded domain.Session
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// a corrupt bundle is treated as signed out
			return nil
		}
		session = &decoded
		return nil
	})
	return session, err
}

// Save replaces the persisted session.
func (s *Store) Save(session *domain.Session) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if session == nil || session.AccessToken == "" {
		return domain.NewError(domain.ErrCodeInvalid, "refusing to persist empty session")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(currentKey, payload)
	})
}

// Clear removes the persisted session.
func (s *Store) Clear() error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(currentKey)
	})
}

// Close closes the bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
