package link

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/stretchr/testify/require"
)

type fakeCLA struct {
	openErr error
	opened  int
	sent    []*bundle.Bundle
}

func (f *fakeCLA) OpenContact(l *Link) error {
	f.opened++
	return f.openErr
}

func (f *fakeCLA) CloseContact(l *Link) error { return nil }

func (f *fakeCLA) Send(l *Link, b *bundle.Bundle, wire []byte) error {
	f.sent = append(f.sent, b)
	return nil
}

func testBundle() *bundle.Bundle {
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: 1, Seq: 0},
		Lifetime:    3600,
	}
	return bundle.New(p, bundle.NewMemoryPayload([]byte("x")))
}

func TestLinkHappyPathToOpen(t *testing.T) {
	cla := &fakeCLA{}
	l := New("l1", "10.0.0.1:4556", cla, Params{QueueDepthLimit: 2})
	require.Equal(t, StateUnavailable, l.State())

	require.NoError(t, l.LinkAvailable())
	require.Equal(t, StateAvailable, l.State())

	require.NoError(t, l.OpenRequest())
	require.Equal(t, StateOpening, l.State())
	require.Equal(t, 1, cla.opened)

	var notified []Event
	l.OnRouter = func(e Event) { notified = append(notified, e) }

	require.NoError(t, l.ContactUp())
	require.Equal(t, StateOpen, l.State())
	require.Len(t, notified, 1)
	require.Equal(t, EventLinkOpened, notified[0].Kind)
}

func TestLinkOpenRequestInvalidFromUnavailable(t *testing.T) {
	l := New("l1", "x", &fakeCLA{}, Params{})
	err := l.OpenRequest()
	require.Error(t, err)
}

func TestLinkOpenRequestFailureRevertsToAvailable(t *testing.T) {
	cla := &fakeCLA{openErr: errors.New("connection refused")}
	l := New("l1", "x", cla, Params{})
	require.NoError(t, l.LinkAvailable())

	err := l.OpenRequest()
	require.Error(t, err)
	require.Equal(t, StateAvailable, l.State())
}

func TestLinkEnqueueTransitionsToBusyAtThreshold(t *testing.T) {
	cla := &fakeCLA{}
	l := New("l1", "x", cla, Params{QueueDepthLimit: 2})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())

	var events []Event
	l.OnRouter = func(e Event) { events = append(events, e) }

	l.Enqueue(testBundle())
	require.Equal(t, StateOpen, l.State())
	l.Enqueue(testBundle())
	require.Equal(t, StateBusy, l.State())
	require.Equal(t, 2, l.QueueLen())
	require.Len(t, events, 1)
	require.Equal(t, EventLinkBusy, events[0].Kind)
}

func TestLinkDequeueMovesToInflight(t *testing.T) {
	cla := &fakeCLA{}
	l := New("l1", "x", cla, Params{QueueDepthLimit: 10})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())

	b := testBundle()
	l.Enqueue(b)
	require.Equal(t, 1, l.QueueLen())
	require.Equal(t, 0, l.InflightLen())

	got := l.Dequeue()
	require.Same(t, b, got)
	require.Equal(t, 0, l.QueueLen())
	require.Equal(t, 1, l.InflightLen())

	l.Ack(b, true)
	require.Equal(t, 0, l.InflightLen())
}

func TestLinkBusyResumesToOpen(t *testing.T) {
	cla := &fakeCLA{}
	l := New("l1", "x", cla, Params{QueueDepthLimit: 1})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())
	l.Enqueue(testBundle())
	require.Equal(t, StateBusy, l.State())

	require.NoError(t, l.LinkStateChangeRequest(StateOpen, ReasonNoInfo))
	require.Equal(t, StateOpen, l.State())
}

func TestLinkContactDownDrainsInflightAsFailed(t *testing.T) {
	cla := &fakeCLA{}
	l := New("l1", "x", cla, Params{QueueDepthLimit: 10})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())

	b := testBundle()
	l.Enqueue(b)
	l.Dequeue()
	require.Equal(t, 1, l.InflightLen())

	var events []Event
	l.OnRouter = func(e Event) { events = append(events, e) }

	require.NoError(t, l.ContactDown(ReasonBroken))
	require.Equal(t, StateAvailable, l.State())
	require.Equal(t, 0, l.InflightLen())
	require.Len(t, events, 1)
	require.Equal(t, EventBundleTransmitFailed, events[0].Kind)
	log := b.ForwardLog()
	require.Equal(t, bundle.ForwardTransmitFailed, log[len(log)-1].State)
}

func TestLinkContactDownReopensWithBackoff(t *testing.T) {
	cla := &fakeCLA{}
	l := New("l1", "x", cla, Params{
		QueueDepthLimit:  10,
		Reopen:           true,
		RetryInterval:    10 * time.Millisecond,
		MinRetryInterval: 5 * time.Millisecond,
		MaxRetryInterval: 100 * time.Millisecond,
	})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.OpenRequest())
	require.NoError(t, l.ContactUp())

	require.NoError(t, l.ContactDown(ReasonBroken))

	require.Eventually(t, func() bool {
		return cla.opened >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestLinkShutdownIsTerminal(t *testing.T) {
	l := New("l1", "x", &fakeCLA{}, Params{})
	require.NoError(t, l.ShutdownRequest())
	require.Equal(t, StateClosed, l.State())
	require.Error(t, l.LinkAvailable())
}

func TestLinkStateChangeToUnavailableFromAnyState(t *testing.T) {
	l := New("l1", "x", &fakeCLA{}, Params{})
	require.NoError(t, l.LinkAvailable())
	require.NoError(t, l.LinkStateChangeRequest(StateUnavailable, ReasonUser))
	require.Equal(t, StateUnavailable, l.State())
}

func TestContactManagerAddGetRemove(t *testing.T) {
	m := NewContactManager()
	l := New("l1", "x", &fakeCLA{}, Params{})
	require.NoError(t, m.Add(l))
	require.Error(t, m.Add(l))

	got, ok := m.Get("l1")
	require.True(t, ok)
	require.Same(t, l, got)

	require.NoError(t, m.Remove("l1"))
	_, ok = m.Get("l1")
	require.False(t, ok)
	require.Equal(t, StateClosed, l.State())
}
