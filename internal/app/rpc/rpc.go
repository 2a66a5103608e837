// Package rpc defines the Go-level leech<->kraken contract: one streaming
// or unary method per attack kind, correlated by attack uuid. Wire
// framing, transport, and code generation live outside this module; this
// package only fixes the typed request/response/stream shapes a transport
// adapter must satisfy, with the concrete transport supplied by the
// caller.
package rpc

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
)

// Request carries the attack-kind-specific parameters plus the
// correlation id every call is keyed by.
type Request struct {
	AttackUUID uuid.UUID
	Kind       attack.Kind
	Targets    []string // domains or CIDRs/IPs depending on Kind
	Params     map[string]string
}

// Frame is one decoded item from a leech's response stream, tagged with
// the attack kind so the receiving sink dispatcher can switch on it
// without a second decode pass.
type Frame struct {
	Kind                     attack.Kind
	BruteforceSubdomains     *rawresult.BruteforceSubdomains
	HostAlive                *rawresult.HostAlive
	ServiceDetection         *rawresult.ServiceDetection
	CertificateTransparency  *rawresult.CertificateTransparency
	OSDetection              *rawresult.OSDetection
	TestSSL                  *rawresult.TestSSL
	DehashedEntry            *rawresult.DehashedEntry
	DnsTxtRecord             *DnsTxtRecordFrame
}

// DnsTxtRecordFrame is one raw TXT record observed for a domain during a
// DnsTxtScan attack; classification into service-hints/SPF happens in the
// sink, not on the wire.
type DnsTxtRecordFrame struct {
	Domain string
	Record []byte
}

// Stream is what a transport adapter exposes to the attack controller:
// pull frames until Recv returns io.EOF, or another (transport or
// upstream-malformed) error. Implementations decide their own framing;
// this interface is transport-agnostic.
type Stream interface {
	// Recv blocks for the next frame. It returns (nil, io.EOF) on a clean
	// end of stream.
	Recv(ctx context.Context) (*Frame, error)
	// Close releases any transport resources, cancelling an in-flight
	// call server-side where the transport supports it.
	Close() error
}

// Client opens a call against one leech for a given request, returning a
// Stream the controller consumes.
type Client interface {
	Call(ctx context.Context, req Request) (Stream, error)
}

// Leech identifies one registered worker node.
type Leech struct {
	UUID    uuid.UUID
	Name    string
	Address net.Addr
}

// Pool tracks live leech connections: a plain mutex over a map, not a
// concurrent map type.
type Pool struct {
	mu      sync.Mutex
	leeches map[uuid.UUID]LeechConn
	order   []uuid.UUID // insertion order, for round-robin selection
	next    int
}

// LeechConn pairs a Leech's identity with the Client used to reach it.
type LeechConn struct {
	Leech  Leech
	Client Client
}

// NewPool constructs an empty leech pool.
func NewPool() *Pool {
	return &Pool{leeches: make(map[uuid.UUID]LeechConn)}
}

// Add registers or replaces a leech connection.
func (p *Pool) Add(lc LeechConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.leeches[lc.Leech.UUID]; !exists {
		p.order = append(p.order, lc.Leech.UUID)
	}
	p.leeches[lc.Leech.UUID] = lc
}

// Remove drops a leech connection, used on ws-manager disconnect
// notifications.
func (p *Pool) Remove(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leeches, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	if p.next >= len(p.order) {
		p.next = 0
	}
}

// Get returns the connection for an explicit leech uuid.
func (p *Pool) Get(id uuid.UUID) (LeechConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lc, ok := p.leeches[id]
	return lc, ok
}

// Next round-robins across registered leeches.
func (p *Pool) Next() (LeechConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return LeechConn{}, false
	}
	id := p.order[p.next%len(p.order)]
	p.next++
	return p.leeches[id], true
}
