package config

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/link"
	"github.com/cuemby/dtnd/pkg/log"
	"github.com/cuemby/dtnd/pkg/reg"
	"github.com/cuemby/dtnd/pkg/router"
	"github.com/cuemby/dtnd/pkg/security"
	"github.com/rs/zerolog"
)

// ListenerCLA is the subset of a CLA's own type (not link.CLA, which is
// deliberately transport-agnostic) that owns a listening socket. Both
// cla.TCPCLA and ltp.LTPCLA satisfy it.
type ListenerCLA interface {
	Bind() (string, error)
	Listen(ctx context.Context) error
}

// linkRegistrar is implemented by router.FloodRouter: flooding has no
// route table, so a link becomes a flood target by registration rather
// than by a Route resource.
type linkRegistrar interface {
	AddLink(name string)
	RemoveLink(name string)
}

// Applier submits parsed resources to a running daemon's in-process
// state: the ContactManager, the chosen Router, the registration table,
// and the key steward. It is the Go-native stand-in for spec.md §6's
// "opaque admin channel... a registration function per verb" — one
// method here per Kind.
type Applier struct {
	Ctx    context.Context
	Queue  *events.Queue
	Links  *link.ContactManager
	Router router.Router
	Regs   *reg.Table
	Keys   *security.InMemoryKeySteward
	CLAs   map[string]ListenerCLA // keyed by spec's "cla" name: "tcp", "ltp"

	logger zerolog.Logger
}

// NewApplier wires an Applier against a running daemon's components.
func NewApplier(ctx context.Context, q *events.Queue, links *link.ContactManager, rt router.Router, regs *reg.Table, keys *security.InMemoryKeySteward, clas map[string]ListenerCLA) *Applier {
	return &Applier{
		Ctx:    ctx,
		Queue:  q,
		Links:  links,
		Router: rt,
		Regs:   regs,
		Keys:   keys,
		CLAs:   clas,
		logger: log.WithComponent("config"),
	}
}

// Apply dispatches res to the handler for its Kind.
func (a *Applier) Apply(res Resource) error {
	switch res.Kind {
	case KindLink:
		return a.applyLink(res)
	case KindRoute:
		return a.applyRoute(res)
	case KindRegistration:
		return a.applyRegistration(res)
	case KindSecurityKey:
		return a.applySecurityKey(res)
	case KindInterface:
		return a.applyInterface(res)
	default:
		return fmt.Errorf("config: unknown kind %q", res.Kind)
	}
}

// ApplyAll applies every resource in order, stopping at the first error.
func (a *Applier) ApplyAll(resources []Resource) error {
	for _, res := range resources {
		if err := a.Apply(res); err != nil {
			return fmt.Errorf("config: apply %s %q: %w", res.Kind, res.Metadata.Name, err)
		}
	}
	return nil
}

// applyLink creates a Link bound to an already-constructed CLA (looked up
// by spec.cla) and registers it on the ContactManager, then immediately
// brings it up: LinkAvailable followed by OpenRequest, matching a node
// operator adding a link and expecting it to start dialing right away.
func (a *Applier) applyLink(res Resource) error {
	name := res.Metadata.Name
	if name == "" {
		return fmt.Errorf("config: Link resource missing metadata.name")
	}
	claName, _ := getString(res.Spec, "cla")
	cla, ok := a.CLAs[claName]
	if !ok {
		return fmt.Errorf("config: link %q references unknown cla %q", name, claName)
	}
	nextHop, _ := getString(res.Spec, "next_hop")

	params := link.Params{
		MTU:              intOr(res.Spec, "mtu", 65000),
		RetryInterval:    durationOr(res.Spec, "retry_interval", 5*time.Second),
		MinRetryInterval: durationOr(res.Spec, "min_retry_interval", 5*time.Second),
		MaxRetryInterval: durationOr(res.Spec, "max_retry_interval", 5*time.Minute),
		IdleClose:        durationOr(res.Spec, "idle_close", 0),
		QueueDepthLimit:  intOr(res.Spec, "queue_depth_limit", 50),
	}
	if reopen, ok := getBool(res.Spec, "reopen"); ok {
		params.Reopen = reopen
	} else {
		params.Reopen = true
	}

	claAdapter, ok := cla.(link.CLA)
	if !ok {
		return fmt.Errorf("config: cla %q does not implement link.CLA", claName)
	}
	l := link.New(name, nextHop, claAdapter, params)
	l.OnRouter = func(ev link.Event) { a.dispatchLinkEvent(name, ev) }

	if err := a.Links.Add(l); err != nil {
		return err
	}
	if fr, ok := a.Router.(linkRegistrar); ok {
		fr.AddLink(name)
	}

	if err := l.LinkAvailable(); err != nil {
		return fmt.Errorf("config: link %q available: %w", name, err)
	}
	if err := l.OpenRequest(); err != nil {
		return fmt.Errorf("config: link %q open: %w", name, err)
	}
	return nil
}

// dispatchLinkEvent translates a link.Event into the daemon's own event
// union for the links this Applier builds.
func (a *Applier) dispatchLinkEvent(linkName string, ev link.Event) {
	switch ev.Kind {
	case link.EventLinkOpened:
		a.Queue.Push(&events.Event{Kind: events.ContactUp, LinkName: linkName})
	case link.EventBundleTransmitFailed:
		a.Queue.Push(&events.Event{Kind: events.ContactDown, LinkName: linkName, Reason: ev.Reason})
	default:
		a.logger.Debug().Str("link", linkName).Int("event", int(ev.Kind)).Msg("link event, no daemon translation")
	}
}

// applyRoute adds a route table entry by feeding a RouteAdd event through
// the Router interface, the same path the daemon's event loop uses.
func (a *Applier) applyRoute(res Resource) error {
	pattern, _ := getString(res.Spec, "pattern")
	p, err := eid.Parse(pattern)
	if err != nil {
		return fmt.Errorf("config: route pattern: %w", err)
	}
	linkName, _ := getString(res.Spec, "link")
	mode := router.ForwardCopy
	if m, _ := getString(res.Spec, "forward_mode"); m == "unique" {
		mode = router.ForwardUnique
	}
	a.Router.HandleEvent(router.Event{
		Kind:  router.EventRouteAdd,
		Route: router.RouteEntry{Pattern: p, LinkName: linkName, ForwardMode: mode},
	})
	return nil
}

// applyRegistration adds a new application-facing endpoint binding.
func (a *Applier) applyRegistration(res Resource) error {
	endpoint, _ := getString(res.Spec, "endpoint")
	e, err := eid.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("config: registration endpoint: %w", err)
	}
	action := reg.FailureDefer
	switch s, _ := getString(res.Spec, "failure_action"); s {
	case "abort":
		action = reg.FailureAbort
	case "exec":
		action = reg.FailureExec
	}
	script, _ := getString(res.Spec, "script")
	return a.Regs.Add(&reg.Registration{Endpoint: e, FailureAction: action, Script: script})
}

// applySecurityKey loads key material into the in-memory key steward.
// Symmetric keys are base64; asymmetric keys are PEM, matching how an
// operator would paste either into a YAML scalar. type: generate creates
// a fresh RSA keypair for this node and logs the public key so it can be
// handed to peers out of band.
func (a *Applier) applySecurityKey(res Resource) error {
	peerStr, _ := getString(res.Spec, "peer")
	peer, err := eid.Parse(peerStr)
	if err != nil {
		return fmt.Errorf("config: security key peer: %w", err)
	}
	keyType, _ := getString(res.Spec, "type")

	switch keyType {
	case "hmac":
		value, _ := getString(res.Spec, "value")
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return fmt.Errorf("config: decode hmac key: %w", err)
		}
		a.Keys.SetHMACKey(peer, raw)
		return nil
	case "rsa-private":
		key, err := parseRSAPrivateKeyPEM(res.Spec)
		if err != nil {
			return err
		}
		a.Keys.SetRSAPrivateKey(peer, key)
		return nil
	case "rsa-public":
		key, err := parseRSAPublicKeyPEM(res.Spec)
		if err != nil {
			return err
		}
		a.Keys.SetRSAPublicKey(peer, key)
		return nil
	case "generate":
		pub, err := a.Keys.GenerateRSAKeyPair(peer)
		if err != nil {
			return err
		}
		a.logger.Info().Str("peer", peer.String()).Int("key_size", pub.N.BitLen()).Msg("generated RSA keypair, share public key out of band")
		return nil
	default:
		return fmt.Errorf("config: unknown security key type %q", keyType)
	}
}

func parseRSAPrivateKeyPEM(spec map[string]interface{}) (*rsa.PrivateKey, error) {
	value, _ := getString(spec, "value")
	block, _ := pem.Decode([]byte(value))
	if block == nil {
		return nil, fmt.Errorf("config: rsa-private value is not PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("config: parse rsa private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("config: PKCS8 key is not RSA")
	}
	return rsaKey, nil
}

func parseRSAPublicKeyPEM(spec map[string]interface{}) (*rsa.PublicKey, error) {
	value, _ := getString(spec, "value")
	block, _ := pem.Decode([]byte(value))
	if block == nil {
		return nil, fmt.Errorf("config: rsa-public value is not PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("config: parse rsa public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("config: PKIX key is not RSA")
	}
	return rsaKey, nil
}

// applyInterface binds and starts a CLA's listening socket, matching
// spec.md §6's "registration function per verb" for the servlib interface
// command.
func (a *Applier) applyInterface(res Resource) error {
	claName, _ := getString(res.Spec, "cla")
	cla, ok := a.CLAs[claName]
	if !ok {
		return fmt.Errorf("config: interface references unknown cla %q", claName)
	}
	addr, err := cla.Bind()
	if err != nil {
		return fmt.Errorf("config: bind interface %q: %w", claName, err)
	}
	a.logger.Info().Str("cla", claName).Str("addr", addr).Msg("interface bound")
	go func() {
		if err := cla.Listen(a.Ctx); err != nil {
			a.logger.Error().Err(err).Str("cla", claName).Msg("interface listen exited")
		}
	}()
	return nil
}

func intOr(spec map[string]interface{}, key string, def int) int {
	if v, ok := getInt(spec, key); ok {
		return v
	}
	return def
}

func durationOr(spec map[string]interface{}, key string, def time.Duration) time.Duration {
	if s, ok := getString(spec, key); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	if n, ok := getInt(spec, key); ok {
		return time.Duration(n) * time.Second
	}
	return def
}
