// Package attackctl implements the attack lifecycle state machine
// and leech dispatch. Start persists the Attack row, picks a leech, opens
// the RPC call, and returns the attack uuid immediately; a background
// goroutine then consumes the leech's response stream and hands each frame
// to the sink, one transaction per frame.
package attackctl

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/internal/app/metrics"
	"github.com/kraken-ng/kraken/internal/app/rpc"
	"github.com/kraken-ng/kraken/internal/app/sink"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/internal/app/ws"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/pkg/logger"
)

const codeNoLeechAvailable = "NoLeechAvailable"

// running tracks one in-flight attack so Cancel (triggered by attack
// deletion) can tear down its stream.
type running struct {
	cancel context.CancelFunc
	stream rpc.Stream
}

// Controller drives attack dispatch and stream consumption.
type Controller struct {
	store storage.AttackStore
	hosts storage.HostStore
	ports storage.PortStore
	pool  *rpc.Pool
	sink  *sink.Sink

	notify ws.Notifier
	tracer core.Tracer
	log    *logger.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]*running
	wg       sync.WaitGroup
}

// New constructs a Controller. notify and log may be nil.
func New(store storage.AttackStore, hosts storage.HostStore, ports storage.PortStore, pool *rpc.Pool, snk *sink.Sink, notify ws.Notifier, log *logger.Logger) *Controller {
	if notify == nil {
		notify = ws.NoopNotifier{}
	}
	if log == nil {
		log = logger.NewDefault("attackctl")
	}
	return &Controller{
		store:    store,
		hosts:    hosts,
		ports:    ports,
		pool:     pool,
		sink:     snk,
		notify:   notify,
		tracer:   core.NoopTracer,
		log:      log,
		inFlight: make(map[uuid.UUID]*running),
	}
}

// SetTracer configures the tracer used for dispatch/stream spans.
func (c *Controller) SetTracer(t core.Tracer) {
	if t == nil {
		t = core.NoopTracer
	}
	c.tracer = t
}

// Name identifies this component for system.Service / logging.
func (c *Controller) Name() string { return "attackctl" }

// Start launches one attack: persist, choose a leech, open the call,
// return the attack uuid. Stream consumption happens on a background
// goroutine tracked in c.wg so Stop can drain it.
func (c *Controller) Start(ctx context.Context, ws_, startedBy uuid.UUID, kind attack.Kind, leechID *uuid.UUID, targets []string, params map[string]string) (uuid.UUID, error) {
	ctx, end := c.tracer.StartSpan(ctx, "attackctl.Start")
	var err error
	defer func() { end(err) }()

	var lc rpc.LeechConn
	var ok bool
	if leechID != nil {
		lc, ok = c.pool.Get(*leechID)
	} else {
		lc, ok = c.pool.Next()
	}
	if !ok {
		err = krakenerr.New(krakenerr.Integration, codeNoLeechAvailable, "no leech available to dispatch attack")
		return uuid.Nil, err
	}

	a := attack.Attack{
		UUID:      uuid.New(),
		Workspace: ws_,
		StartedBy: startedBy,
		Kind:      kind,
		Leech:     lc.Leech.UUID,
		Status:    attack.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	a, err = c.store.CreateAttack(ctx, a)
	if err != nil {
		return uuid.Nil, err
	}

	stream, cerr := lc.Client.Call(ctx, rpc.Request{
		AttackUUID: a.UUID,
		Kind:       kind,
		Targets:    targets,
		Params:     params,
	})
	if cerr != nil {
		err = cerr
		_ = c.store.FinishAttack(ctx, a.UUID, time.Now().UTC(), cerr.Error())
		c.notify.Notify(ws_, ws.KindAttackFinished, ws.AttackFinishedPayload{UUID: a.UUID, OK: false})
		return a.UUID, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.inFlight[a.UUID] = &running{cancel: cancel, stream: stream}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consume(runCtx, ws_, startedBy, a.UUID, kind, stream)

	return a.UUID, nil
}

// Cancel tears down a running attack: deleting a running
// attack must stop its in-flight stream. The Attack row itself and its
// provenance cascade are the caller's responsibility (storage delete);
// Cancel only tears down the live goroutine and transport.
func (c *Controller) Cancel(attackUUID uuid.UUID) {
	c.mu.Lock()
	r, ok := c.inFlight[attackUUID]
	delete(c.inFlight, attackUUID)
	c.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	_ = r.stream.Close()
}

// Stop waits for every in-flight stream consumer to exit, used during
// graceful shutdown.
func (c *Controller) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume drains one attack's response stream, dispatching each frame to
// the sink and finishing the attack row on stream end. DnsTxtScan
// frames arrive one TXT record at a time but classification needs every
// record for a domain at once, so they're accumulated per domain
// and flushed to the sink when the stream ends.
func (c *Controller) consume(ctx context.Context, ws_, requestedBy, attackUUID uuid.UUID, kind attack.Kind, stream rpc.Stream) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, attackUUID)
		c.mu.Unlock()
	}()

	ctx, end := c.tracer.StartSpan(ctx, "attackctl.consume")
	var streamErr error
	defer func() { end(streamErr) }()

	txtRecords := make(map[string][][]byte)
	frames := 0
	started := time.Now()

	for {
		frame, rerr := stream.Recv(ctx)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			streamErr = rerr
			break
		}
		frames++
		metrics.RecordAttackFrame(string(kind))
		if derr := c.dispatch(ctx, ws_, requestedBy, attackUUID, frame, txtRecords); derr != nil {
			// Per-item errors are fatal to the stream.
			streamErr = derr
			break
		}
	}

	if streamErr == nil && kind == attack.KindDNSTxtScan {
		for domain, records := range txtRecords {
			if ferr := c.sink.HandleDnsTxtScan(ctx, ws_, requestedBy, attackUUID, domain, records); ferr != nil {
				streamErr = ferr
				break
			}
		}
	}

	_ = stream.Close()

	// A cancelled attack is being deleted: exit without writing a
	// terminal state, the row is gone.
	if errors.Is(streamErr, context.Canceled) {
		c.log.WithField("attack", attackUUID).Debug("attack stream cancelled")
		return
	}

	ok := streamErr == nil
	errMsg := ""
	if streamErr != nil {
		errMsg = streamErr.Error()
		c.log.WithField("attack", attackUUID).WithField("error", streamErr).Warn("attack stream ended with error")
	}
	if err := c.store.FinishAttack(ctx, attackUUID, time.Now().UTC(), errMsg); err != nil {
		c.log.WithField("attack", attackUUID).WithField("error", err).Error("failed to record attack completion")
	}
	c.log.WithField("attack", attackUUID).WithField("frames", frames).WithField("ok", ok).Debug("attack stream finished")
	metrics.RecordAttackCompletion(string(kind), ok, time.Since(started))
	c.notify.Notify(ws_, ws.KindAttackFinished, ws.AttackFinishedPayload{UUID: attackUUID, OK: ok})
}

// dispatch routes one frame to the sink handler for its kind. txtRecords
// accumulates DnsTxtScan frames in place rather than hitting the sink
// immediately.
func (c *Controller) dispatch(ctx context.Context, ws_, requestedBy, attackUUID uuid.UUID, f *rpc.Frame, txtRecords map[string][][]byte) error {
	switch f.Kind {
	case attack.KindBruteforceSubdomains, attack.KindDNSResolution:
		if f.BruteforceSubdomains == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged BruteforceSubdomains carries no payload")
		}
		r := *f.BruteforceSubdomains
		r.Attack = attackUUID
		return c.sink.HandleBruteforceSubdomains(ctx, ws_, requestedBy, r)

	case attack.KindHostsAlive:
		if f.HostAlive == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged HostsAlive carries no payload")
		}
		r := *f.HostAlive
		r.Attack = attackUUID
		return c.sink.HandleHostAlive(ctx, ws_, r)

	case attack.KindServiceDetection, attack.KindUDPServiceDetection:
		if f.ServiceDetection == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged ServiceDetection carries no payload")
		}
		r := *f.ServiceDetection
		r.Attack = attackUUID
		return c.sink.HandleServiceDetection(ctx, ws_, r)

	case attack.KindCertificateTransparency:
		if f.CertificateTransparency == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged CertificateTransparency carries no payload")
		}
		r := *f.CertificateTransparency
		r.Attack = attackUUID
		return c.sink.HandleCertificateTransparency(ctx, ws_, requestedBy, r)

	case attack.KindOSDetection:
		if f.OSDetection == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged OsDetection carries no payload")
		}
		r := *f.OSDetection
		r.Attack = attackUUID
		return c.sink.HandleOSDetection(ctx, ws_, r)

	case attack.KindTestSSL:
		if f.TestSSL == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged TestSsl carries no payload")
		}
		r := *f.TestSSL
		r.Attack = attackUUID
		portID, perr := c.resolvePort(ctx, ws_, r.Host, r.Port)
		if perr != nil {
			return perr
		}
		return c.sink.HandleTestSSL(ctx, ws_, portID, r)

	case attack.KindDehashedQuery:
		if f.DehashedEntry == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged DehashedQuery carries no payload")
		}
		r := *f.DehashedEntry
		r.Attack = attackUUID
		return c.sink.HandleDehashedQuery(ctx, r)

	case attack.KindDNSTxtScan:
		if f.DnsTxtRecord == nil {
			return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "frame tagged DnsTxtScan carries no payload")
		}
		d := f.DnsTxtRecord.Domain
		txtRecords[d] = append(txtRecords[d], f.DnsTxtRecord.Record)
		return nil

	case attack.KindTCPPortScan:
		// Deprecated: no sink handler is registered for this kind by
		// design; a leech should not
		// dispatch this kind for new attacks, but a stray frame is
		// ignored rather than failing the stream.
		return nil

	default:
		return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMalformedResult, "unrecognized frame kind")
	}
}

// resolvePort looks up the port uuid a TestSSL frame's (host, port) pair
// already maps to, since testssl results carry no certainty signal of
// their own and must attach to a port already aggregated by a prior
// ServiceDetection frame. testssl always runs over TCP.
func (c *Controller) resolvePort(ctx context.Context, ws_ uuid.UUID, hostIP net.IP, number uint16) (uuid.UUID, error) {
	h, found, err := c.hosts.FindHostByIP(ctx, ws_, hostIP.String())
	if err != nil {
		return uuid.Nil, err
	}
	if !found {
		return uuid.Nil, krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMalformedResult, "testssl result references an unknown host")
	}
	p, found, err := c.ports.FindPort(ctx, port.NaturalKey{Workspace: ws_, Host: h.UUID, Number: number, Transport: port.TCP})
	if err != nil {
		return uuid.Nil, err
	}
	if !found {
		return uuid.Nil, krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMalformedResult, "testssl result references an unknown port")
	}
	return p.UUID, nil
}
