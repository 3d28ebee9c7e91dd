package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cuemby/dtnd/pkg/apiproto"
	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/daemon"
	"github.com/cuemby/dtnd/pkg/dtnerr"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/events"
	"github.com/cuemby/dtnd/pkg/reg"
)

// recvPoll is how often Recv checks a registration's queue while waiting,
// matching the "short poll timeouts (<=10ms)" idiom every blocking daemon
// loop uses instead of a wakeup channel per registration.
const recvPoll = 10 * time.Millisecond

// daemonHandler answers the application API's six verbs against a running
// node's registration table and event queue. It is the only piece of
// apiproto.Handler cmd/dtnd needs to supply; everything else is generic
// wire handling already done by apiproto.Server.
type daemonHandler struct {
	d    *daemon.Daemon
	regs *reg.Table

	seq uint64 // monotonic creation-timestamp disambiguator for locally submitted bundles
}

func newDaemonHandler(d *daemon.Daemon, regs *reg.Table) *daemonHandler {
	return &daemonHandler{d: d, regs: regs}
}

func (h *daemonHandler) GetInfo() (string, error) {
	return h.d.Local.String(), nil
}

func (h *daemonHandler) Register(endpoint string, failureAction uint32, script string, expiration uint64) (uint64, error) {
	ep, err := eid.Parse(endpoint)
	if err != nil {
		return 0, dtnerr.Protocol("register: parse endpoint", err)
	}
	if failureAction > uint32(reg.FailureExec) {
		return 0, dtnerr.Protocol("register: invalid failure_action", fmt.Errorf("value %d", failureAction))
	}
	r := &reg.Registration{
		Endpoint:      ep,
		FailureAction: reg.FailureAction(failureAction),
		Script:        script,
	}
	if err := h.regs.Add(r); err != nil {
		return 0, dtnerr.Policy("register: add to table", err)
	}
	return r.RegID, nil
}

func (h *daemonHandler) Bind(regID uint64) error {
	r, ok := h.regs.Get(regID)
	if !ok {
		return dtnerr.Protocol("bind", fmt.Errorf("regid %d not found", regID))
	}
	r.Bind()
	return nil
}

func (h *daemonHandler) Send(args *apiproto.SendArgs) (string, error) {
	source, err := eid.Parse(args.Source)
	if err != nil {
		return "", dtnerr.Protocol("send: parse source", err)
	}
	destination, err := eid.Parse(args.Destination)
	if err != nil {
		return "", dtnerr.Protocol("send: parse destination", err)
	}
	var replyTo eid.EID
	if args.ReplyTo != "" {
		replyTo, err = eid.Parse(args.ReplyTo)
		if err != nil {
			return "", dtnerr.Protocol("send: parse reply_to", err)
		}
	}

	var payload *bundle.Payload
	if args.PayloadFile != "" {
		info, err := os.Stat(args.PayloadFile)
		if err != nil {
			return "", dtnerr.Fatal("send: stat payload file", err)
		}
		payload = bundle.NewFilePayload(args.PayloadFile, uint64(info.Size()))
	} else {
		payload = bundle.NewMemoryPayload(args.Payload)
	}

	creation := bundle.Timestamp{Seconds: bundle.Now().Seconds, Seq: atomic.AddUint64(&h.seq, 1)}
	primary := bundle.PrimaryBlock{
		Destination: destination,
		Source:      source,
		ReplyTo:     replyTo,
		Priority:    bundle.Priority(args.Priority),
		Flags:       bundle.DeliveryOpts(args.DeliveryOptions),
		Creation:    creation,
		Lifetime:    args.Lifetime,
		OrigLen:     payload.Len(),
	}

	b := bundle.New(primary, payload)
	b.APIBlocks = []*bundle.Block{{Type: bundle.BlockTypePayload}}

	h.d.Queue.Push(&events.Event{Kind: events.BundleReceived, Bundle: b})

	return fmt.Sprintf("%s-%d-%d", source.String(), creation.Seconds, creation.Seq), nil
}

func (h *daemonHandler) Recv(ctx context.Context, regID uint64, timeoutMs uint64) (*apiproto.RecvResult, error) {
	r, ok := h.regs.Get(regID)
	if !ok {
		return nil, dtnerr.Protocol("recv", fmt.Errorf("regid %d not found", regID))
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		if b := r.Dequeue(); b != nil {
			data, err := b.Payload.ReadAll()
			b.Release()
			if err != nil {
				return nil, dtnerr.Fatal("recv: read payload", err)
			}
			return &apiproto.RecvResult{
				Source:       b.Primary.Source.String(),
				Destination:  b.Primary.Destination.String(),
				CreationSecs: b.Primary.Creation.Seconds,
				CreationSeq:  b.Primary.Creation.Seq,
				Payload:      data,
			}, nil
		}
		if timeoutMs > 0 && time.Now().After(deadline) {
			return nil, dtnerr.Transient("recv", fmt.Errorf("timed out after %dms", timeoutMs))
		}
		if timeoutMs == 0 {
			return nil, dtnerr.Transient("recv", fmt.Errorf("no bundle queued"))
		}
		select {
		case <-ctx.Done():
			return nil, dtnerr.Transient("recv", ctx.Err())
		case <-time.After(recvPoll):
		}
	}
}

func (h *daemonHandler) Close(regID uint64) error {
	r, ok := h.regs.Get(regID)
	if !ok {
		return dtnerr.Protocol("close", fmt.Errorf("regid %d not found", regID))
	}
	r.Unbind()
	if err := h.regs.Remove(regID); err != nil {
		return dtnerr.Policy("close: remove registration", err)
	}
	return nil
}
