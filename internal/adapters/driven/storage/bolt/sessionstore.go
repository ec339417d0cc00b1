// Package bolt provides a bbolt-backed implementation of driven.SessionStore.
// Each session is one key in the sessions bucket holding the JSON-encoded turns.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
)

var _ driven.SessionStore = (*SessionStore)(nil)

var bucketSessions = []byte("sessions")

// dbFile is the database file name inside the data directory.
const dbFile = "sessions.db"

// openTimeout bounds the wait for the file lock held by another process.
const openTimeout = 5 * time.Second

// SessionStore persists conversation turns per session name.
type SessionStore struct {
	db *bbolt.DB
}

// NewSessionStore opens or creates the session database in dataDir.
// If dataDir is empty, defaults to ~/.finrag/data.
func NewSessionStore(dataDir string) (*SessionStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".finrag", "data")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, dbFile), 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Load returns the turns saved for session. An unknown session yields no turns.
func (s *SessionStore) Load(_ context.Context, session string) ([]domain.Turn, error) {
	if session == "" {
		return nil, fmt.Errorf("%w: session name is required", domain.ErrInvalidInput)
	}

	var turns []domain.Turn
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(session))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &turns)
	})
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", session, err)
	}
	return turns, nil
}

// Save replaces the turns saved for session.
func (s *SessionStore) Save(_ context.Context, session string, turns []domain.Turn) error {
	if session == "" {
		return fmt.Errorf("%w: session name is required", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshalling turns: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(session), data)
	})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", session, err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(_ context.Context, session string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(session))
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", session, err)
	}
	return nil
}

// List returns the names of all saved sessions in key order.
func (s *SessionStore) List(_ context.Context) ([]string, error) {
	names := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return names, nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
