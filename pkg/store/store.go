package store

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/dtnd/pkg/bundle"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBundles       = []byte("bundles")
	bucketRegistrations = []byte("registrations")
	bucketPendingAcs    = []byte("pending_acs")
)

// DB opens the single bbolt file backing all three stores and constructs
// each one against it, mirroring the teacher's single-file, multi-bucket
// BoltStore.
type DB struct {
	db *bolt.DB
}

// Open creates (or opens) the node's data directory database and ensures
// every bucket exists.
func Open(dataDir string) (*DB, error) {
	path := filepath.Join(dataDir, "dtnd.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBundles, bucketRegistrations, bucketPendingAcs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// BundleStore returns the BundleStore view over this database.
func (d *DB) BundleStore(reg *bundle.Registry) *BundleStore {
	return &BundleStore{db: d.db, codec: bundle.NewCodec(reg)}
}

// RegistrationStore returns the RegistrationStore view over this database.
func (d *DB) RegistrationStore() *RegistrationStore {
	return &RegistrationStore{db: d.db}
}

// PendingAcsStore returns the PendingAcsStore view over this database.
func (d *DB) PendingAcsStore() *PendingAcsStore {
	return &PendingAcsStore{db: d.db}
}

func uint64Key(id uint64) []byte {
	var k [8]byte
	for i := 0; i < 8; i++ {
		k[7-i] = byte(id >> (8 * i))
	}
	return k[:]
}
