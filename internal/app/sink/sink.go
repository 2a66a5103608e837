// Package sink implements result ingestion: one handler per attack kind, each
// validating a streamed result, inserting its raw row, driving the
// aggregator, recording provenance, and pushing a live notification, with
// (b)-(d) committed as a single transaction.
package sink

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/aggregator"
	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/finding"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	findingfactory "github.com/kraken-ng/kraken/internal/app/finding"
	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
	"github.com/kraken-ng/kraken/internal/app/spf"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/internal/app/ws"
	"github.com/kraken-ng/kraken/pkg/logger"
)

// Sink wires together the aggregator, provenance recorder, raw result
// storage, finding factory, and WS push surface behind one handler set.
type Sink struct {
	agg     *aggregator.Aggregator
	prov    *provrecorder.Recorder
	raw     storage.RawResultStore
	domains storage.DomainStore
	hosts   storage.HostStore
	db      storage.Database
	factory *findingfactory.Factory
	notify  ws.Notifier
	tracer  core.Tracer
	log     *logger.Logger
}

// New constructs a Sink. notify and log may be nil.
func New(agg *aggregator.Aggregator, prov *provrecorder.Recorder, raw storage.RawResultStore, domains storage.DomainStore, hosts storage.HostStore, db storage.Database, factory *findingfactory.Factory, notify ws.Notifier, log *logger.Logger) *Sink {
	if notify == nil {
		notify = ws.NoopNotifier{}
	}
	if log == nil {
		log = logger.NewDefault("sink")
	}
	return &Sink{agg: agg, prov: prov, raw: raw, domains: domains, hosts: hosts, db: db, factory: factory, notify: notify, tracer: core.NoopTracer, log: log}
}

// SetTracer configures the tracer used for per-handler spans.
func (s *Sink) SetTracer(t core.Tracer) {
	if t == nil {
		t = core.NoopTracer
	}
	s.tracer = t
}

// HandleBruteforceSubdomains implements the A/AAAA/CNAME handling shared
// by bruteforce-subdomains and DNS-resolution attacks (the latter is the
// same shape with full record-type coverage).
func (s *Sink) HandleBruteforceSubdomains(ctx context.Context, ws_ uuid.UUID, requestedBy uuid.UUID, r rawresult.BruteforceSubdomains) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.BruteforceSubdomains")
	var err error
	defer func() { end(err) }()

	if r.Source == "" {
		err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "bruteforce result missing source domain")
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		row, ierr := s.raw.InsertBruteforceSubdomains(ctx, r)
		if ierr != nil {
			return ierr
		}

		sourceDomainID, aerr := s.agg.AggregateDomain(ctx, ws_, row.Source, domainentity.Verified, requestedBy)
		if aerr != nil {
			return aerr
		}
		if perr := s.prov.Record(ctx, ws_, provenance.SourceBruteforceSubdomains, row.UUID, provenance.TableDomain, sourceDomainID); perr != nil {
			return perr
		}

		switch row.RecordType {
		case rawresult.DNSRecordA, rawresult.DNSRecordAAAA:
			ip := net.ParseIP(row.To)
			if ip == nil {
				return krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMalformedResult, "A/AAAA record target is not a valid IP")
			}
			hostID, herr := s.agg.AggregateHost(ctx, ws_, ip, host.Verified)
			if herr != nil {
				return herr
			}
			if perr := s.prov.Record(ctx, ws_, provenance.SourceBruteforceSubdomains, row.UUID, provenance.TableHost, hostID); perr != nil {
				return perr
			}
			if rerr := s.agg.AggregateDomainHostRelation(ctx, ws_, sourceDomainID, hostID, true); rerr != nil {
				return rerr
			}
			// Every domain that CNAME-chains onto this one now reaches
			// the host indirectly, regardless of which frame arrived
			// first.
			ancestors, aerr2 := s.domainAncestors(ctx, ws_, sourceDomainID)
			if aerr2 != nil {
				return aerr2
			}
			for _, ancestor := range ancestors {
				if rerr := s.agg.AggregateDomainHostRelation(ctx, ws_, ancestor, hostID, false); rerr != nil {
					return rerr
				}
			}

		case rawresult.DNSRecordCNAME:
			destDomainID, derr := s.agg.AggregateDomain(ctx, ws_, row.To, domainentity.Verified, requestedBy)
			if derr != nil {
				return derr
			}
			if perr := s.prov.Record(ctx, ws_, provenance.SourceBruteforceSubdomains, row.UUID, provenance.TableDomain, destDomainID); perr != nil {
				return perr
			}
			if rerr := s.agg.AggregateDomainDomainRelation(ctx, ws_, sourceDomainID, destDomainID); rerr != nil {
				return rerr
			}
			// Materialize indirect domain-host relations by transitive
			// closure: the destination's already-known hosts become
			// reachable from the source and everything chaining onto it.
			known, lerr := s.domains.ListDomainHostRelations(ctx, ws_, destDomainID)
			if lerr != nil {
				return lerr
			}
			if len(known) > 0 {
				reachers := []uuid.UUID{sourceDomainID}
				ancestors, aerr2 := s.domainAncestors(ctx, ws_, sourceDomainID)
				if aerr2 != nil {
					return aerr2
				}
				reachers = append(reachers, ancestors...)
				for _, reacher := range reachers {
					for _, rel := range known {
						if rerr := s.agg.AggregateDomainHostRelation(ctx, ws_, reacher, rel.Host, false); rerr != nil {
							return rerr
						}
					}
				}
			}
		}
		return nil
	})
	if err == nil {
		s.notify.Notify(ws_, ws.KindBruteforceSubdomains, r)
	}
	return err
}

// HandleHostAlive upserts the observed host as Verified.
func (s *Sink) HandleHostAlive(ctx context.Context, ws_ uuid.UUID, r rawresult.HostAlive) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.HostAlive")
	var err error
	defer func() { end(err) }()

	if r.Host == nil {
		err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "host-alive result missing host")
		return err
	}
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		row, ierr := s.raw.InsertHostAlive(ctx, r)
		if ierr != nil {
			return ierr
		}
		hostID, aerr := s.agg.AggregateHost(ctx, ws_, row.Host, host.Verified)
		if aerr != nil {
			return aerr
		}
		return s.prov.Record(ctx, ws_, provenance.SourceHostAlive, row.UUID, provenance.TableHost, hostID)
	})
	return err
}

// HandleServiceDetection covers both TCP and UDP service detection
// (transport distinguishes the port's protocol). The reader contract
// requires at least one name for MaybeVerified and exactly one for
// DefinitelyVerified; a violation fails the stream.
func (s *Sink) HandleServiceDetection(ctx context.Context, ws_ uuid.UUID, r rawresult.ServiceDetection) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.ServiceDetection")
	var err error
	defer func() { end(err) }()

	if r.Host == nil {
		err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "service detection missing host")
		return err
	}
	switch r.Certainty {
	case rawresult.HintMaybeVerified:
		if len(r.Names) < 1 {
			err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMalformedResult, "MaybeVerified service detection requires at least one name")
			return err
		}
	case rawresult.HintDefinitelyVerified:
		if len(r.Names) != 1 {
			err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMalformedResult, "DefinitelyVerified service detection requires exactly one name")
			return err
		}
	}

	transport := port.TCP
	sourceType := provenance.SourceServiceDetection
	if r.Transport == "Udp" {
		transport = port.UDP
		sourceType = provenance.SourceUDPServiceDetection
	}
	certainty := serviceCertainty(r.Certainty)
	name := ""
	if len(r.Names) > 0 {
		name = r.Names[0]
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		row, ierr := s.raw.InsertServiceDetection(ctx, r)
		if ierr != nil {
			return ierr
		}
		hostID, herr := s.agg.AggregateHost(ctx, ws_, row.Host, host.Verified)
		if herr != nil {
			return herr
		}
		if perr := s.prov.Record(ctx, ws_, sourceType, row.UUID, provenance.TableHost, hostID); perr != nil {
			return perr
		}
		portID, perr2 := s.agg.AggregatePort(ctx, ws_, hostID, row.Port, transport, port.Verified)
		if perr2 != nil {
			return perr2
		}
		if perr := s.prov.Record(ctx, ws_, sourceType, row.UUID, provenance.TablePort, portID); perr != nil {
			return perr
		}
		svcID, serr := s.agg.AggregateService(ctx, ws_, hostID, &portID, 0, name, certainty)
		if serr != nil {
			return serr
		}
		return s.prov.Record(ctx, ws_, sourceType, row.UUID, provenance.TableService, svcID)
	})
	return err
}

func serviceCertainty(hint rawresult.ServiceCertaintyHint) service.Certainty {
	switch hint {
	case rawresult.HintDefinitelyVerified:
		return service.DefinitelyVerified
	case rawresult.HintMaybeVerified:
		return service.MaybeVerified
	default:
		return service.UnknownService
	}
}

// HandleCertificateTransparency upserts the common-name domain and every
// SAN as Unverified domains; no host/port/service is implied.
func (s *Sink) HandleCertificateTransparency(ctx context.Context, ws_ uuid.UUID, requestedBy uuid.UUID, r rawresult.CertificateTransparency) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.CertificateTransparency")
	var err error
	defer func() { end(err) }()

	if r.CommonName == "" {
		err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "certificate transparency result missing common name")
		return err
	}
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		row, ierr := s.raw.InsertCertificateTransparency(ctx, r)
		if ierr != nil {
			return ierr
		}
		cnID, cerr := s.agg.AggregateDomain(ctx, ws_, row.CommonName, domainentity.Unverified, requestedBy)
		if cerr != nil {
			return cerr
		}
		if perr := s.prov.Record(ctx, ws_, provenance.SourceCertificateTransparency, row.UUID, provenance.TableDomain, cnID); perr != nil {
			return perr
		}
		for _, san := range row.SANs {
			sanID, serr := s.agg.AggregateDomain(ctx, ws_, san, domainentity.Unverified, requestedBy)
			if serr != nil {
				return serr
			}
			if perr := s.prov.Record(ctx, ws_, provenance.SourceCertificateTransparency, row.UUID, provenance.TableDomain, sanID); perr != nil {
				return perr
			}
		}
		return nil
	})
	return err
}

// HandleOSDetection refines a host's os_type, never overwriting a
// non-Unknown classification with a weaker guess.
func (s *Sink) HandleOSDetection(ctx context.Context, ws_ uuid.UUID, r rawresult.OSDetection) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.OSDetection")
	var err error
	defer func() { end(err) }()

	if r.Host == nil {
		err = krakenerr.New(krakenerr.UpstreamMalformed, krakenerr.CodeMissingField, "os detection missing host")
		return err
	}
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		row, ierr := s.raw.InsertOSDetection(ctx, r)
		if ierr != nil {
			return ierr
		}
		hostID, herr := s.agg.AggregateHost(ctx, ws_, row.Host, host.Verified)
		if herr != nil {
			return herr
		}
		if perr := s.prov.Record(ctx, ws_, provenance.SourceOSDetection, row.UUID, provenance.TableHost, hostID); perr != nil {
			return perr
		}
		existing, gerr := s.domainsHostGet(ctx, ws_, hostID)
		if gerr != nil {
			return gerr
		}
		if existing.OSType == host.OSUnknown && row.OSType != host.OSUnknown {
			existing.OSType = row.OSType
			_, uerr := s.hostStore().UpsertHost(ctx, existing)
			return uerr
		}
		return nil
	})
	return err
}

// HandleDehashedQuery is a raw insert with no aggregation.
func (s *Sink) HandleDehashedQuery(ctx context.Context, r rawresult.DehashedEntry) error {
	_, err := s.raw.InsertDehashedEntry(ctx, r)
	return err
}

// HandleTestSSL inserts the raw finding, limited to aggregating against
// the host/port pair already known to exist (no new host/port is
// created), and feeds the finding factory with the probe's own
// finding-id as the late-bound identifier.
func (s *Sink) HandleTestSSL(ctx context.Context, ws_ uuid.UUID, portID uuid.UUID, r rawresult.TestSSL) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.TestSSL")
	var err error
	defer func() { end(err) }()

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		row, ierr := s.raw.InsertTestSSL(ctx, r)
		if ierr != nil {
			return ierr
		}
		return s.prov.Record(ctx, ws_, provenance.SourceTestSSL, row.UUID, provenance.TablePort, portID)
	})
	if err == nil && r.FindingID != "" && s.factory != nil {
		s.factory.Add(ws_, portID, finding.EntityPort, r.FindingID)
	}
	return err
}

// HandleDnsTxtScan classifies every TXT record via the spf package,
// storing an envelope row plus its classified entries, and upserts
// Unverified domains (A/MX/PTR) and SupposedTo hosts (IP4/IP6) implied by
// SPF mechanisms.
// The scanned domain itself is always aggregated as Verified: we just
// queried it.
func (s *Sink) HandleDnsTxtScan(ctx context.Context, ws_ uuid.UUID, requestedBy uuid.UUID, attackUUID uuid.UUID, domainName string, records [][]byte) error {
	ctx, end := s.tracer.StartSpan(ctx, "sink.DnsTxtScan")
	var err error
	defer func() { end(err) }()

	hints, spfResults := spf.ClassifyDomainRecords(records)

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		domainID, aerr := s.agg.AggregateDomain(ctx, ws_, domainName, domainentity.Verified, requestedBy)
		if aerr != nil {
			return aerr
		}

		envelopes := 0
		insertEnvelope := func(collectionType rawresult.DnsTxtScanSummaryType) (rawresult.DnsTxtScan, error) {
			envelope, eerr := s.raw.InsertDnsTxtScan(ctx, rawresult.DnsTxtScan{
				UUID: uuid.New(), Attack: attackUUID, Domain: domainName,
				CollectionType: collectionType, CreatedAt: time.Now().UTC(),
			})
			if eerr != nil {
				return rawresult.DnsTxtScan{}, eerr
			}
			envelopes++
			return envelope, s.prov.Record(ctx, ws_, provenance.SourceDNSTxtScan, envelope.UUID, provenance.TableDomain, domainID)
		}

		if len(hints) > 0 {
			envelope, eerr := insertEnvelope(rawresult.DnsTxtSummaryServiceHints)
			if eerr != nil {
				return eerr
			}
			for _, h := range hints {
				if _, herr := s.raw.InsertServiceHintEntry(ctx, rawresult.ServiceHintEntry{
					UUID: uuid.New(), Scan: envelope.UUID, Rule: h.Rule, HintType: string(h.Hint), CreatedAt: time.Now().UTC(),
				}); herr != nil {
					return herr
				}
			}
		}

		for _, parts := range spfResults {
			envelope, eerr := insertEnvelope(rawresult.DnsTxtSummarySPF)
			if eerr != nil {
				return eerr
			}
			for _, p := range parts {
				entry, spfType, perr := spfPartToEntry(envelope.UUID, p)
				if perr != nil {
					return perr
				}
				if _, ierr := s.raw.InsertSpfEntry(ctx, entry); ierr != nil {
					return ierr
				}
				if err := s.aggregateSpfMechanism(ctx, ws_, requestedBy, spfType, p); err != nil {
					return err
				}
			}
		}

		// A scan whose records all went unclassified still happened:
		// insert an empty envelope so the domain upsert keeps a source.
		if envelopes == 0 {
			if _, eerr := insertEnvelope(rawresult.DnsTxtSummaryServiceHints); eerr != nil {
				return eerr
			}
		}
		return nil
	})
	if err == nil {
		s.notify.Notify(ws_, ws.KindDnsTxtScanResult, map[string]interface{}{"domain": domainName, "hints": hints})
	}
	return err
}

func spfPartToEntry(scan uuid.UUID, p spf.Part) (rawresult.SpfEntry, rawresult.DnsTxtScanSpfType, error) {
	e := rawresult.SpfEntry{UUID: uuid.New(), Scan: scan, CreatedAt: time.Now().UTC()}
	switch p.Kind {
	case spf.KindDirective:
		switch p.Mechanism.Kind {
		case spf.MechAll:
			e.SpfType = rawresult.SpfTypeAll
		case spf.MechInclude:
			e.SpfType, e.Domain = rawresult.SpfTypeInclude, p.Mechanism.Domain
		case spf.MechA:
			e.SpfType, e.Domain = rawresult.SpfTypeA, p.Mechanism.Domain
		case spf.MechMX:
			e.SpfType, e.Domain = rawresult.SpfTypeMX, p.Mechanism.Domain
		case spf.MechPTR:
			e.SpfType, e.Domain = rawresult.SpfTypePTR, p.Mechanism.Domain
		case spf.MechIP:
			if isIPv6Network(p.Mechanism.Network) {
				e.SpfType = rawresult.SpfTypeIP6
			} else {
				e.SpfType = rawresult.SpfTypeIP4
			}
			e.IPNetwork = p.Mechanism.Network
		case spf.MechExists:
			e.SpfType, e.Domain = rawresult.SpfTypeExists, p.Mechanism.Domain
		}
	case spf.KindRedirect:
		e.SpfType, e.Domain = rawresult.SpfTypeRedirect, p.Domain
	case spf.KindExplanation:
		e.SpfType, e.Domain = rawresult.SpfTypeExplain, p.Domain
	default:
		e.SpfType = rawresult.SpfTypeUnknown
	}
	return e, e.SpfType, nil
}

// aggregateSpfMechanism aggregates what an SPF part implies: A/MX/PTR
// directives upsert an Unverified domain, IP4/IP6 upsert SupposedTo
// hosts. Include is deliberately excluded from aggregation.
func (s *Sink) aggregateSpfMechanism(ctx context.Context, ws_ uuid.UUID, requestedBy uuid.UUID, t rawresult.DnsTxtScanSpfType, p spf.Part) error {
	switch t {
	case rawresult.SpfTypeA, rawresult.SpfTypeMX, rawresult.SpfTypePTR:
		if p.Mechanism.Domain == "" {
			return nil
		}
		_, err := s.agg.AggregateDomain(ctx, ws_, p.Mechanism.Domain, domainentity.Unverified, requestedBy)
		return err
	case rawresult.SpfTypeIP4, rawresult.SpfTypeIP6:
		ip, _, perr := net.ParseCIDR(p.Mechanism.Network)
		if perr != nil {
			ip = net.ParseIP(p.Mechanism.Network)
		}
		if ip == nil {
			return nil
		}
		_, err := s.agg.AggregateHost(ctx, ws_, ip, host.SupposedTo)
		return err
	}
	return nil
}

// domainAncestors walks domain-domain edges backwards from start,
// returning every domain that chains onto it (CNAME sources, their
// sources, and so on). Cycle-safe via the visited set.
func (s *Sink) domainAncestors(ctx context.Context, ws_ uuid.UUID, start uuid.UUID) ([]uuid.UUID, error) {
	visited := map[uuid.UUID]bool{start: true}
	var out []uuid.UUID
	queue := []uuid.UUID{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sources, err := s.domains.FindDomainDomainSources(ctx, ws_, current)
		if err != nil {
			return nil, err
		}
		for _, edge := range sources {
			if visited[edge.Source] {
				continue
			}
			visited[edge.Source] = true
			out = append(out, edge.Source)
			queue = append(queue, edge.Source)
		}
	}
	return out, nil
}

// domainsHostGet is a small seam so HandleOSDetection can read-then-write
// a Host row without the aggregator exposing a raw getter (the
// aggregator's contract is upsert-only).
func (s *Sink) domainsHostGet(ctx context.Context, ws_ uuid.UUID, id uuid.UUID) (host.Host, error) {
	return s.hosts.GetHost(ctx, ws_, id)
}

func (s *Sink) hostStore() storage.HostStore {
	return s.hosts
}

// isIPv6Network reports whether an SPF ip4:/ip6: mechanism's Network
// string is an IPv6 literal, mirroring spf.ipPrefix's own test.
func isIPv6Network(network string) bool {
	return strings.Contains(network, ":")
}
