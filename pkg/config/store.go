package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Settings sections and keys
const (
	SectionAgent = "agent"

	KeyClients       = "clients"
	KeyServers       = "servers"
	KeyServerPrivkey = "server_privkey"
	KeyServerPubkey  = "server_pubkey"
	KeyClientPrivkey = "client_privkey"
	KeyClientPubkey  = "client_pubkey"
)

// Store persists mutable agent settings. Every mutating call commits
// synchronously before it returns; the on-disk value always reflects the
// in-memory value once a Put or Increment call has returned.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if necessary) the settings database in dataDir
func OpenStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "agentd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(SectionAgent))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// GetInt64 reads an integer setting; missing keys read as zero
func (s *Store) GetInt64(section, key string) (int64, error) {
	var value int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(section))
		if b == nil {
			return fmt.Errorf("unknown settings section: %s", section)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return fmt.Errorf("corrupt integer setting %s/%s", section, key)
		}
		value = int64(binary.BigEndian.Uint64(data))
		return nil
	})

	return value, err
}

// PutInt64 writes an integer setting and flushes it to disk
func (s *Store) PutInt64(section, key string, value int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(section))
		if err != nil {
			return err
		}
		var data [8]byte
		binary.BigEndian.PutUint64(data[:], uint64(value))
		return b.Put([]byte(key), data[:])
	})
}

// Increment atomically increments an integer setting and returns the new
// value. The increment and the flush happen in one transaction.
func (s *Store) Increment(section, key string) (int64, error) {
	var value int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(section))
		if err != nil {
			return err
		}
		if data := b.Get([]byte(key)); len(data) == 8 {
			value = int64(binary.BigEndian.Uint64(data))
		}
		value++
		var data [8]byte
		binary.BigEndian.PutUint64(data[:], uint64(value))
		return b.Put([]byte(key), data[:])
	})

	return value, err
}

// GetString reads a string setting; missing keys read as empty
func (s *Store) GetString(section, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(section))
		if b == nil {
			return fmt.Errorf("unknown settings section: %s", section)
		}
		value = string(b.Get([]byte(key)))
		return nil
	})

	return value, err
}

// PutString writes a string setting and flushes it to disk
func (s *Store) PutString(section, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(section))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

// SeedInt64 writes an integer setting only if the key is not present yet.
// It returns the effective value.
func (s *Store) SeedInt64(section, key string, value int64) (int64, error) {
	effective := value
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(section))
		if err != nil {
			return err
		}
		if data := b.Get([]byte(key)); len(data) == 8 {
			effective = int64(binary.BigEndian.Uint64(data))
			return nil
		}
		var data [8]byte
		binary.BigEndian.PutUint64(data[:], uint64(value))
		return b.Put([]byte(key), data[:])
	})

	return effective, err
}
