package store

import (
	"testing"

	"github.com/cuemby/dtnd/pkg/blockproc"
	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *bundle.Registry {
	r := bundle.NewRegistry()
	r.Register(blockproc.PayloadProcessor{})
	r.Register(blockproc.AgeProcessor{})
	return r
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBundleStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	bs := db.BundleStore(newTestRegistry())

	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: 100, Seq: 0},
		Lifetime:    3600,
	}
	b := bundle.New(p, bundle.NewMemoryPayload([]byte("payload bytes")))
	b.ReceivedBlocks = append(b.ReceivedBlocks, &bundle.Block{
		Type:      bundle.BlockTypePayload,
		Data:      []byte("payload bytes"),
		Processor: blockproc.PayloadProcessor{},
	})

	require.NoError(t, bs.Add(b))

	loaded, err := bs.Get(b.LocalID)
	require.NoError(t, err)
	require.Equal(t, b.Primary.Destination, loaded.Primary.Destination)
	require.Equal(t, b.Primary.Source, loaded.Primary.Source)
	data, err := loaded.Payload.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "payload bytes", string(data))
}

func TestBundleStoreIterateAndDel(t *testing.T) {
	db := openTestDB(t)
	bs := db.BundleStore(newTestRegistry())

	var ids []uint64
	for i := 0; i < 3; i++ {
		p := bundle.PrimaryBlock{
			Destination: eid.MustParse("dtn://b/demux"),
			Source:      eid.MustParse("dtn://a/demux"),
			Creation:    bundle.Timestamp{Seconds: uint64(i), Seq: 0},
			Lifetime:    3600,
		}
		b := bundle.New(p, bundle.NewMemoryPayload([]byte("x")))
		b.ReceivedBlocks = append(b.ReceivedBlocks, &bundle.Block{Type: bundle.BlockTypePayload, Data: []byte("x"), Processor: blockproc.PayloadProcessor{}})
		require.NoError(t, bs.Add(b))
		ids = append(ids, b.LocalID)
	}

	count := 0
	require.NoError(t, bs.Iterate(func(b *bundle.Bundle) error {
		count++
		return nil
	}))
	require.Equal(t, 3, count)

	require.NoError(t, bs.Del(ids[0]))
	count = 0
	require.NoError(t, bs.Iterate(func(b *bundle.Bundle) error {
		count++
		return nil
	}))
	require.Equal(t, 2, count)
}

func TestRegistrationStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	rs := db.RegistrationStore()

	r := &reg.Registration{
		RegID:         reg.MaxReservedRegID + 1,
		Endpoint:      eid.MustParse("dtn://node/app"),
		FailureAction: reg.FailureDefer,
	}
	require.NoError(t, rs.Add(r))

	loaded, err := rs.Get(r.RegID)
	require.NoError(t, err)
	require.Equal(t, r.Endpoint, loaded.Endpoint)
	require.Equal(t, r.FailureAction, loaded.FailureAction)

	require.NoError(t, rs.Del(r.RegID))
	_, err = rs.Get(r.RegID)
	require.Error(t, err)
}

func TestPendingAcsStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ps := db.PendingAcsStore()

	require.NoError(t, ps.Add("fingerprint-1", []byte("custody-data")))
	data, err := ps.Get("fingerprint-1")
	require.NoError(t, err)
	require.Equal(t, "custody-data", string(data))

	seen := 0
	require.NoError(t, ps.Iterate(func(key string, value []byte) error {
		seen++
		return nil
	}))
	require.Equal(t, 1, seen)
}
