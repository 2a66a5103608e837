package sink

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/aggregator"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"

	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
)

func newTestSink(t *testing.T) (*Sink, *memory.Memory) {
	t.Helper()
	mem := memory.New()
	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	prov := provrecorder.New(mem, nil)
	return New(agg, prov, mem, mem, mem, mem, nil, nil, nil), mem
}

// A bruteforce A record creates the raw row, a Verified
// host, a Verified domain, a direct relation, and provenance for host and
// domain.
func TestBruteforce_ARecord(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()
	user := uuid.New()

	err := s.HandleBruteforceSubdomains(ctx, ws, user, rawresult.BruteforceSubdomains{
		UUID:       uuid.New(),
		Attack:     uuid.New(),
		Source:     "kraken.test",
		RecordType: rawresult.DNSRecordA,
		To:         "203.0.113.7",
	})
	require.NoError(t, err)

	h, found, err := mem.FindHostByIP(ctx, ws, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, host.Verified, h.Certainty)

	d, found, err := mem.FindDomainByName(ctx, ws, "kraken.test")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domainentity.Verified, d.Certainty)

	rels, err := mem.ListDomainHostRelations(ctx, ws, d.UUID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, rels[0].IsDirect)
	assert.Equal(t, h.UUID, rels[0].Host)

	counts, err := mem.Simple(ctx, ws, provenance.TableHost, []uuid.UUID{h.UUID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[h.UUID][provenance.SourceBruteforceSubdomains])
	counts, err = mem.Simple(ctx, ws, provenance.TableDomain, []uuid.UUID{d.UUID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[d.UUID][provenance.SourceBruteforceSubdomains])
}

// A CNAME chain materialises the domain-domain edge plus
// an indirect relation from the source to the destination's hosts.
func TestBruteforce_CNAMEChain(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()
	user := uuid.New()

	// The CNAME arrives before the A record; the indirect relation must
	// still materialise once the host appears.
	err := s.HandleBruteforceSubdomains(ctx, ws, user, rawresult.BruteforceSubdomains{
		UUID: uuid.New(), Source: "a.example", RecordType: rawresult.DNSRecordCNAME, To: "b.example",
	})
	require.NoError(t, err)
	err = s.HandleBruteforceSubdomains(ctx, ws, user, rawresult.BruteforceSubdomains{
		UUID: uuid.New(), Source: "b.example", RecordType: rawresult.DNSRecordA, To: "198.51.100.5",
	})
	require.NoError(t, err)

	a, found, err := mem.FindDomainByName(ctx, ws, "a.example")
	require.NoError(t, err)
	require.True(t, found)
	b, found, err := mem.FindDomainByName(ctx, ws, "b.example")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domainentity.Verified, a.Certainty)
	assert.Equal(t, domainentity.Verified, b.Certainty)

	h, found, err := mem.FindHostByIP(ctx, ws, "198.51.100.5")
	require.NoError(t, err)
	require.True(t, found)

	direct, err := mem.FindDirectDomainHostRelations(ctx, ws, b.UUID)
	require.NoError(t, err)
	require.Len(t, direct, 1)
	assert.Equal(t, h.UUID, direct[0].Host)

	indirect, err := mem.ListDomainHostRelations(ctx, ws, a.UUID)
	require.NoError(t, err)
	require.Len(t, indirect, 1)
	assert.False(t, indirect[0].IsDirect)
	assert.Equal(t, h.UUID, indirect[0].Host)
}

// The reverse frame order (A before CNAME) converges on the same state.
func TestBruteforce_CNAMEChainReversedOrder(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()
	user := uuid.New()

	err := s.HandleBruteforceSubdomains(ctx, ws, user, rawresult.BruteforceSubdomains{
		UUID: uuid.New(), Source: "b.example", RecordType: rawresult.DNSRecordA, To: "198.51.100.5",
	})
	require.NoError(t, err)
	err = s.HandleBruteforceSubdomains(ctx, ws, user, rawresult.BruteforceSubdomains{
		UUID: uuid.New(), Source: "a.example", RecordType: rawresult.DNSRecordCNAME, To: "b.example",
	})
	require.NoError(t, err)

	a, found, err := mem.FindDomainByName(ctx, ws, "a.example")
	require.NoError(t, err)
	require.True(t, found)
	indirect, err := mem.ListDomainHostRelations(ctx, ws, a.UUID)
	require.NoError(t, err)
	require.Len(t, indirect, 1)
	assert.False(t, indirect[0].IsDirect)
}

// Certainty is monotonic across sources.
func TestHostAlive_UpgradesCertainty(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()

	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	_, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.SupposedTo)
	require.NoError(t, err)

	err = s.HandleHostAlive(ctx, ws, rawresult.HostAlive{
		UUID: uuid.New(), Host: net.ParseIP("203.0.113.7"),
	})
	require.NoError(t, err)

	hosts, total, err := mem.ListHosts(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "one host row per (workspace, ip)")
	assert.Equal(t, host.Verified, hosts[0].Certainty)
}

// A DefinitelyVerified result with two names violates the
// reader contract and must fail the stream.
func TestServiceDetection_DefinitelyVerifiedNameContract(t *testing.T) {
	s, _ := newTestSink(t)
	ctx := context.Background()

	err := s.HandleServiceDetection(ctx, uuid.New(), rawresult.ServiceDetection{
		UUID:      uuid.New(),
		Host:      net.ParseIP("203.0.113.9"),
		Port:      22,
		Transport: "Tcp",
		Certainty: rawresult.HintDefinitelyVerified,
		Names:     []string{"ssh", "openssh"},
	})
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.UpstreamMalformed))

	err = s.HandleServiceDetection(ctx, uuid.New(), rawresult.ServiceDetection{
		UUID:      uuid.New(),
		Host:      net.ParseIP("203.0.113.9"),
		Port:      22,
		Transport: "Tcp",
		Certainty: rawresult.HintMaybeVerified,
	})
	require.Error(t, err, "MaybeVerified requires at least one name")
}

func TestServiceDetection_AggregatesHostPortService(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()

	err := s.HandleServiceDetection(ctx, ws, rawresult.ServiceDetection{
		UUID:      uuid.New(),
		Host:      net.ParseIP("203.0.113.9"),
		Port:      22,
		Transport: "Tcp",
		Certainty: rawresult.HintDefinitelyVerified,
		Names:     []string{"ssh"},
	})
	require.NoError(t, err)

	_, hostTotal, err := mem.ListHosts(ctx, ws, 10, 0)
	require.NoError(t, err)
	_, portTotal, err := mem.ListPorts(ctx, ws, 10, 0)
	require.NoError(t, err)
	svcs, svcTotal, err := mem.ListServices(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, hostTotal)
	assert.Equal(t, 1, portTotal)
	require.Equal(t, 1, svcTotal)
	assert.Equal(t, "ssh", svcs[0].Name)
}

// Replay property: running the same input twice yields the same rows
// and provenance as running it once.
func TestReplay_IsIdempotent(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()
	user := uuid.New()

	r := rawresult.BruteforceSubdomains{
		UUID:       uuid.New(),
		Attack:     uuid.New(),
		Source:     "kraken.test",
		RecordType: rawresult.DNSRecordA,
		To:         "203.0.113.7",
	}
	require.NoError(t, s.HandleBruteforceSubdomains(ctx, ws, user, r))
	require.NoError(t, s.HandleBruteforceSubdomains(ctx, ws, user, r))

	_, hostTotal, err := mem.ListHosts(ctx, ws, 10, 0)
	require.NoError(t, err)
	_, domainTotal, err := mem.ListDomains(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, hostTotal)
	assert.Equal(t, 1, domainTotal)

	h, _, err := mem.FindHostByIP(ctx, ws, "203.0.113.7")
	require.NoError(t, err)
	counts, err := mem.Simple(ctx, ws, provenance.TableHost, []uuid.UUID{h.UUID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[h.UUID][provenance.SourceBruteforceSubdomains], "provenance replay is a no-op")
}

func TestCertificateTransparency_UnverifiedDomains(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()

	err := s.HandleCertificateTransparency(ctx, ws, uuid.New(), rawresult.CertificateTransparency{
		UUID:       uuid.New(),
		CommonName: "kraken.test",
		SANs:       []string{"www.kraken.test", "api.kraken.test"},
	})
	require.NoError(t, err)

	_, total, err := mem.ListDomains(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	d, found, err := mem.FindDomainByName(ctx, ws, "api.kraken.test")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domainentity.Unverified, d.Certainty)
}

func TestOSDetection_RefinesUnknownOnly(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()

	err := s.HandleOSDetection(ctx, ws, rawresult.OSDetection{
		UUID: uuid.New(), Host: net.ParseIP("203.0.113.7"), OSType: host.OSLinux,
	})
	require.NoError(t, err)
	h, _, err := mem.FindHostByIP(ctx, ws, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, host.OSLinux, h.OSType)

	// A later Windows guess does not overwrite the Linux classification.
	err = s.HandleOSDetection(ctx, ws, rawresult.OSDetection{
		UUID: uuid.New(), Host: net.ParseIP("203.0.113.7"), OSType: host.OSWindows,
	})
	require.NoError(t, err)
	h, _, err = mem.FindHostByIP(ctx, ws, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, host.OSLinux, h.OSType)
}

// include: is excluded from aggregation; ip4: networks
// land as SupposedTo hosts.
func TestDnsTxtScan_SPFAggregation(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()

	err := s.HandleDnsTxtScan(ctx, ws, uuid.New(), uuid.New(), "kraken.test", [][]byte{
		[]byte("v=spf1 include:_spf.example ip4:192.0.2.0/24 -all"),
	})
	require.NoError(t, err)

	scanned, found, err := mem.FindDomainByName(ctx, ws, "kraken.test")
	require.NoError(t, err)
	require.True(t, found, "the scanned domain itself is aggregated")
	assert.Equal(t, domainentity.Verified, scanned.Certainty)

	_, found, err = mem.FindDomainByName(ctx, ws, "_spf.example")
	require.NoError(t, err)
	assert.False(t, found, "Include is excluded from aggregation")

	h, found, err := mem.FindHostByIP(ctx, ws, "192.0.2.0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, host.SupposedTo, h.Certainty)
}

func TestDnsTxtScan_ServiceHints(t *testing.T) {
	s, mem := newTestSink(t)
	ctx := context.Background()
	ws := uuid.New()
	attackID := uuid.New()

	err := s.HandleDnsTxtScan(ctx, ws, uuid.New(), attackID, "kraken.test", [][]byte{
		[]byte("google-site-verification=abc123"),
		[]byte("unmatched arbitrary record"),
	})
	require.NoError(t, err)

	// The hints themselves imply no hosts or extra domains, but the
	// scanned domain is aggregated as Verified with provenance.
	domains, total, err := mem.ListDomains(ctx, ws, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "kraken.test", domains[0].Name)
	assert.Equal(t, domainentity.Verified, domains[0].Certainty)

	counts, err := mem.Simple(ctx, ws, provenance.TableDomain, []uuid.UUID{domains[0].UUID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domains[0].UUID][provenance.SourceDNSTxtScan])

	_, hostTotal, err := mem.ListHosts(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, hostTotal)
}

func TestBruteforce_MissingSourceFailsStream(t *testing.T) {
	s, _ := newTestSink(t)
	err := s.HandleBruteforceSubdomains(context.Background(), uuid.New(), uuid.New(), rawresult.BruteforceSubdomains{
		UUID: uuid.New(), RecordType: rawresult.DNSRecordA, To: "203.0.113.7",
	})
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.UpstreamMalformed))
}
