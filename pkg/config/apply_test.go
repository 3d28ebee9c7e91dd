package config

import (
	"context"
	"testing"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/cuemby/dtnd/pkg/router"
	"github.com/cuemby/dtnd/pkg/security"
	"github.com/stretchr/testify/require"
)

type fakeListenerCLA struct {
	bindAddr string
	bindErr  error
	listened bool
}

func (f *fakeListenerCLA) OpenContact(l *link.Link) error  { return nil }
func (f *fakeListenerCLA) CloseContact(l *link.Link) error { return nil }
func (f *fakeListenerCLA) Send(l *link.Link, b *bundle.Bundle, wire []byte) error {
	return nil
}
func (f *fakeListenerCLA) Bind() (string, error) {
	if f.bindErr != nil {
		return "", f.bindErr
	}
	return f.bindAddr, nil
}
func (f *fakeListenerCLA) Listen(ctx context.Context) error {
	f.listened = true
	<-ctx.Done()
	return ctx.Err()
}

func newTestApplier(t *testing.T, clas map[string]ListenerCLA) *Applier {
	t.Helper()
	local := eid.MustParse("dtn://node/node")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewApplier(ctx, events.NewQueue(), link.NewContactManager(), router.NewStaticRouter(local), reg.NewTable(nil), security.NewInMemoryKeySteward(), clas)
}

func TestApplyLinkBringsLinkUp(t *testing.T) {
	cla := &fakeListenerCLA{}
	a := newTestApplier(t, map[string]ListenerCLA{"tcp": cla})

	res := Resource{
		Kind:     KindLink,
		Metadata: Metadata{Name: "l1"},
		Spec: map[string]interface{}{
			"cla":      "tcp",
			"next_hop": "10.0.0.1:4556",
		},
	}
	require.NoError(t, a.Apply(res))

	l, ok := a.Links.Get("l1")
	require.True(t, ok)
	require.Equal(t, link.StateOpening, l.State())
}

func TestApplyLinkRejectsMissingName(t *testing.T) {
	a := newTestApplier(t, map[string]ListenerCLA{"tcp": &fakeListenerCLA{}})
	res := Resource{Kind: KindLink, Spec: map[string]interface{}{"cla": "tcp"}}
	require.Error(t, a.Apply(res))
}

func TestApplyLinkRejectsUnknownCLA(t *testing.T) {
	a := newTestApplier(t, map[string]ListenerCLA{})
	res := Resource{Kind: KindLink, Metadata: Metadata{Name: "l1"}, Spec: map[string]interface{}{"cla": "bogus"}}
	require.Error(t, a.Apply(res))
}

func TestApplyRouteAddsEntry(t *testing.T) {
	a := newTestApplier(t, nil)
	res := Resource{
		Kind: KindRoute,
		Spec: map[string]interface{}{
			"pattern":      "dtn://b/*",
			"link":         "l1",
			"forward_mode": "unique",
		},
	}
	require.NoError(t, a.Apply(res))
}

func TestApplyRouteRejectsBadPattern(t *testing.T) {
	a := newTestApplier(t, nil)
	res := Resource{Kind: KindRoute, Spec: map[string]interface{}{"pattern": ""}}
	require.Error(t, a.Apply(res))
}

func TestApplyRegistrationAddsEndpoint(t *testing.T) {
	a := newTestApplier(t, nil)
	res := Resource{
		Kind: KindRegistration,
		Spec: map[string]interface{}{
			"endpoint":       "dtn://node/app",
			"failure_action": "abort",
		},
	}
	require.NoError(t, a.Apply(res))

	matches := a.Regs.GetMatching(eid.MustParse("dtn://node/app"))
	require.Len(t, matches, 1)
	require.Equal(t, reg.FailureAbort, matches[0].FailureAction)
}

func TestApplySecurityKeyHMAC(t *testing.T) {
	a := newTestApplier(t, nil)
	res := Resource{
		Kind: KindSecurityKey,
		Spec: map[string]interface{}{
			"peer":  "dtn://peer/node",
			"type":  "hmac",
			"value": "c2VjcmV0a2V5", // base64("secretkey")
		},
	}
	require.NoError(t, a.Apply(res))
}

func TestApplySecurityKeyGenerate(t *testing.T) {
	a := newTestApplier(t, nil)
	res := Resource{
		Kind: KindSecurityKey,
		Spec: map[string]interface{}{
			"peer": "dtn://node/node",
			"type": "generate",
		},
	}
	require.NoError(t, a.Apply(res))
}

func TestApplySecurityKeyUnknownType(t *testing.T) {
	a := newTestApplier(t, nil)
	res := Resource{
		Kind: KindSecurityKey,
		Spec: map[string]interface{}{
			"peer": "dtn://peer/node",
			"type": "bogus",
		},
	}
	require.Error(t, a.Apply(res))
}

func TestApplyInterfaceBindsAndListens(t *testing.T) {
	cla := &fakeListenerCLA{bindAddr: "0.0.0.0:4224"}
	a := newTestApplier(t, map[string]ListenerCLA{"tcp": cla})
	res := Resource{Kind: KindInterface, Spec: map[string]interface{}{"cla": "tcp"}}
	require.NoError(t, a.Apply(res))
}

func TestApplyUnknownKind(t *testing.T) {
	a := newTestApplier(t, nil)
	require.Error(t, a.Apply(Resource{Kind: "Bogus"}))
}

func TestApplyAllStopsAtFirstError(t *testing.T) {
	a := newTestApplier(t, nil)
	resources := []Resource{
		{Kind: KindRegistration, Spec: map[string]interface{}{"endpoint": "dtn://node/a"}},
		{Kind: "Bogus"},
		{Kind: KindRegistration, Spec: map[string]interface{}{"endpoint": "dtn://node/b"}},
	}
	err := a.ApplyAll(resources)
	require.Error(t, err)
	require.Len(t, a.Regs.GetMatching(eid.MustParse("dtn://node/a")), 1)
	require.Len(t, a.Regs.GetMatching(eid.MustParse("dtn://node/b")), 0)
}
