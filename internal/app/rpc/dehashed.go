package rpc

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/internal/app/system"
	"github.com/kraken-ng/kraken/pkg/logger"
)

const codeDehashedUnavailable = "DehashedUnavailable"

// DehashedQuery is one lookup against the dehashed API.
type DehashedQuery struct {
	Column string // email, ip_address, name, domain, ...
	Term   string
}

// DehashedQuerier executes one dehashed lookup against the upstream API.
// The concrete HTTP client is an external collaborator; attacks only see
// the decoded entry rows.
type DehashedQuerier interface {
	Query(ctx context.Context, q DehashedQuery) ([]rawresult.DehashedEntry, error)
}

type dehashedRequest struct {
	ctx   context.Context
	query DehashedQuery
	reply chan dehashedReply
}

type dehashedReply struct {
	entries []rawresult.DehashedEntry
	err     error
}

// DehashedDispatcher funnels dehashed lookups through a bounded-capacity
// channel drained by a single worker gated on a rate limiter.
type DehashedDispatcher struct {
	querier DehashedQuerier
	limiter *rate.Limiter
	queue   chan dehashedRequest
	done    chan struct{}
	log     *logger.Logger
}

var _ system.Service = (*DehashedDispatcher)(nil)

// NewDehashedDispatcher builds a dispatcher. rps/burst shape the upstream
// rate limit; capacity bounds the pending-request channel. log may be nil.
func NewDehashedDispatcher(querier DehashedQuerier, rps float64, burst, capacity int, log *logger.Logger) *DehashedDispatcher {
	if log == nil {
		log = logger.NewDefault("dehashed")
	}
	if burst <= 0 {
		burst = 1
	}
	if capacity <= 0 {
		capacity = 16
	}
	return &DehashedDispatcher{
		querier: querier,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		queue:   make(chan dehashedRequest, capacity),
		log:     log,
	}
}

// Name identifies this component for system.Service / logging.
func (d *DehashedDispatcher) Name() string { return "dehashed" }

// Start launches the single drain worker.
func (d *DehashedDispatcher) Start(ctx context.Context) error {
	if d.done != nil {
		return nil
	}
	d.done = make(chan struct{})
	go d.drain(ctx)
	return nil
}

// Stop terminates the drain worker; queued requests receive an error.
func (d *DehashedDispatcher) Stop(_ context.Context) error {
	if d.done == nil {
		return nil
	}
	close(d.done)
	d.done = nil
	return nil
}

// Do enqueues one lookup and awaits its reply. Enqueueing blocks once the
// channel is at capacity; the only escape hatch is the caller's context.
func (d *DehashedDispatcher) Do(ctx context.Context, q DehashedQuery) ([]rawresult.DehashedEntry, error) {
	if d.querier == nil {
		return nil, krakenerr.New(krakenerr.Integration, codeDehashedUnavailable, "dehashed API not configured")
	}
	req := dehashedRequest{ctx: ctx, query: q, reply: make(chan dehashedReply, 1)}
	select {
	case d.queue <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.entries, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *DehashedDispatcher) drain(ctx context.Context) {
	done := d.done
	for {
		select {
		case req := <-d.queue:
			if err := d.limiter.Wait(req.ctx); err != nil {
				req.reply <- dehashedReply{err: err}
				continue
			}
			entries, err := d.querier.Query(req.ctx, req.query)
			if err != nil {
				d.log.WithField("error", err).Warn("dehashed query failed")
				err = krakenerr.Wrap(krakenerr.Integration, codeDehashedUnavailable, err)
			}
			req.reply <- dehashedReply{entries: entries, err: err}
		case <-done:
			for {
				select {
				case req := <-d.queue:
					req.reply <- dehashedReply{err: krakenerr.New(krakenerr.Integration, codeDehashedUnavailable, "dehashed dispatcher stopped")}
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
