package store

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/reg"
	bolt "go.etcd.io/bbolt"
)

type registrationRecord struct {
	RegID         uint64
	Scheme        string
	SSP           string
	FailureAction reg.FailureAction
	Script        string
}

// RegistrationStore is the durable registration table (spec §4.7).
// Registrations with RegID <= reg.MaxReservedRegID never reach it — the
// table only calls Add/Del/Update for persisted ones. It satisfies
// reg.Persister.
type RegistrationStore struct {
	db *bolt.DB
}

func (s *RegistrationStore) Add(r *reg.Registration) error {
	rec := registrationRecord{
		RegID:         r.RegID,
		Scheme:        r.Endpoint.Scheme,
		SSP:           r.Endpoint.SSP,
		FailureAction: r.FailureAction,
		Script:        r.Script,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal registration %d: %w", r.RegID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistrations).Put(uint64Key(r.RegID), data)
	})
}

func (s *RegistrationStore) Update(r *reg.Registration) error { return s.Add(r) }

func (s *RegistrationStore) Del(regID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistrations).Delete(uint64Key(regID))
	})
}

// Get loads a single registration record, reconstructed as a fresh
// Registration with an empty in-memory queue.
func (s *RegistrationStore) Get(regID uint64) (*reg.Registration, error) {
	var rec registrationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRegistrations).Get(uint64Key(regID))
		if data == nil {
			return fmt.Errorf("store: registration %d not found", regID)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return fromRegistrationRecord(rec), nil
}

// Iterate calls fn for every stored registration, e.g. to repopulate
// reg.Table at startup.
func (s *RegistrationStore) Iterate(fn func(*reg.Registration) error) error {
	var records []registrationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistrations).ForEach(func(k, v []byte) error {
			var rec registrationRecord
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
		if err := fn(fromRegistrationRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

func fromRegistrationRecord(rec registrationRecord) *reg.Registration {
	return &reg.Registration{
		RegID:         rec.RegID,
		Endpoint:      eid.EID{Scheme: rec.Scheme, SSP: rec.SSP},
		FailureAction: rec.FailureAction,
		Script:        rec.Script,
	}
}
