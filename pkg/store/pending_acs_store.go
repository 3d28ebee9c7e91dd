package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// PendingAcsStore holds custody fingerprints awaiting an aggregate custody
// signal, keyed by the fingerprint string pkg/bundle assigns a bundle once
// custody is accepted (Bundle.CustodyID). Records are opaque byte blobs —
// the aggregate-signal payload format is a CLA/router concern, not this
// store's.
type PendingAcsStore struct {
	db *bolt.DB
}

func (s *PendingAcsStore) Add(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPendingAcs).Put([]byte(key), value)
	})
}

func (s *PendingAcsStore) Update(key string, value []byte) error { return s.Add(key, value) }

func (s *PendingAcsStore) Del(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPendingAcs).Delete([]byte(key))
	})
}

func (s *PendingAcsStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPendingAcs).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("store: pending acs %q not found", key)
		}
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

func (s *PendingAcsStore) Iterate(fn func(key string, value []byte) error) error {
	var keys []string
	var vals [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPendingAcs).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			vals = append(vals, append([]byte(nil), v...))
			return nil
		})
	})
	if err != nil {
		return err
	}
	for i, k := range keys {
		if err := fn(k, vals[i]); err != nil {
			return err
		}
	}
	return nil
}
