package identity

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	identityBucket = []byte("identity")
	nameKey        = []byte("displayName")
)

// BoltStore keeps the identity in a single-bucket bbolt file.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(identityBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init identity bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

var _ Store = (*BoltStore)(nil)

func (s *BoltStore) LoadName() (string, bool, error) {
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(identityBucket).Get(nameKey)
		if v != nil {
			name = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("load display name: %w", err)
	}
	return name, name != "", nil
}

func (s *BoltStore) SaveName(name string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(identityBucket).Put(nameKey, []byte(name))
	})
	if err != nil {
		return fmt.Errorf("save display name: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
