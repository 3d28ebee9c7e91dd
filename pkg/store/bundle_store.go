package store

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/dtnd/pkg/bundle"
	bolt "go.etcd.io/bbolt"
)

// bundleRecord is the durable envelope around a bundle's wire image. When
// the payload is file-backed, Wire's payload block carries no bytes —
// PayloadFile/PayloadLen describe where to find them instead, so large
// transfers never round-trip through bbolt's page cache.
type bundleRecord struct {
	LocalID     uint64
	Wire        []byte
	PayloadFile string
	PayloadLen  uint64
}

// BundleStore is the durable bundle table keyed by LocalID (spec §4.7).
// Bundles are serialized with the same codec used on the wire, plus a
// header describing payload location.
type BundleStore struct {
	db    *bolt.DB
	codec *bundle.Codec
}

// Add persists b, upserting if LocalID already has a record.
func (s *BundleStore) Add(b *bundle.Bundle) error {
	rec, err := s.toRecord(b)
	if err != nil {
		return fmt.Errorf("store: encode bundle %d: %w", b.LocalID, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal bundle %d: %w", b.LocalID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBundles).Put(uint64Key(b.LocalID), data)
	})
}

// Update is an alias for Add — both are upserts, matching the teacher's
// Create-is-Update idiom.
func (s *BundleStore) Update(b *bundle.Bundle) error { return s.Add(b) }

// Del removes the bundle record for localID.
func (s *BundleStore) Del(localID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBundles).Delete(uint64Key(localID))
	})
}

// Get loads and decodes the bundle record for localID, reconstructing
// derived fields via every received block's ReloadPostProcess.
func (s *BundleStore) Get(localID uint64) (*bundle.Bundle, error) {
	var rec bundleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBundles).Get(uint64Key(localID))
		if data == nil {
			return fmt.Errorf("store: bundle %d not found", localID)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return s.fromRecord(rec)
}

// Iterate calls fn for every stored bundle, stopping at the first error.
func (s *BundleStore) Iterate(fn func(*bundle.Bundle) error) error {
	var records []bundleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBundles).ForEach(func(k, v []byte) error {
			var rec bundleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		b, err := s.fromRecord(rec)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *BundleStore) toRecord(b *bundle.Bundle) (bundleRecord, error) {
	var payloadFile string
	var payloadLen uint64
	var restore func()

	if b.Payload != nil && b.Payload.IsFile() {
		payloadFile = b.Payload.FilePath()
		payloadLen = b.Payload.Len()
		if blk := findPayloadBlock(b); blk != nil {
			orig := blk.Data
			blk.Data = nil
			restore = func() { blk.Data = orig }
		}
	}

	wire, err := s.codec.EncodeForStorage(b)
	if restore != nil {
		restore()
	}
	if err != nil {
		return bundleRecord{}, err
	}
	return bundleRecord{LocalID: b.LocalID, Wire: wire, PayloadFile: payloadFile, PayloadLen: payloadLen}, nil
}

func (s *BundleStore) fromRecord(rec bundleRecord) (*bundle.Bundle, error) {
	b, err := s.codec.DecodeFromStorage(rec.Wire)
	if err != nil {
		return nil, fmt.Errorf("store: decode bundle %d: %w", rec.LocalID, err)
	}
	if rec.PayloadFile != "" {
		b.Payload = bundle.NewFilePayload(rec.PayloadFile, rec.PayloadLen)
	}
	return b, nil
}

func findPayloadBlock(b *bundle.Bundle) *bundle.Block {
	for _, blk := range b.AllBlocks() {
		if blk.Type == bundle.BlockTypePayload {
			return blk
		}
	}
	return nil
}
