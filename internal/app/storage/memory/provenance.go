package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
)

// RecordSource is idempotent by the tuple: a replay is detected by the
// Key and returns the existing row unchanged rather than creating a
// duplicate.
func (m *Memory) RecordSource(_ context.Context, s provenance.Source) (provenance.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.Key()
	if existing, ok := m.provenance[key]; ok {
		return existing, nil
	}
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	m.provenance[key] = s
	return s, nil
}

func (m *Memory) Simple(_ context.Context, ws uuid.UUID, table provenance.Table, ids []uuid.UUID) (map[uuid.UUID]provenance.CountsBySource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[uuid.UUID]provenance.CountsBySource, len(ids))
	for _, s := range m.provenance {
		if s.Workspace != ws || s.AggregatedTable != table || !want[s.AggregatedUUID] {
			continue
		}
		counts, ok := out[s.AggregatedUUID]
		if !ok {
			counts = provenance.CountsBySource{}
			out[s.AggregatedUUID] = counts
		}
		counts[s.SourceType]++
	}
	return out, nil
}

func (m *Memory) Full(_ context.Context, ws uuid.UUID, table provenance.Table, id uuid.UUID) ([]provenance.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []provenance.Source
	for _, s := range m.provenance {
		if s.Workspace == ws && s.AggregatedTable == table && s.AggregatedUUID == id {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ResolveSourceAttack maps a raw source row back to its attack; manual
// rows report (Nil, false).
func (m *Memory) ResolveSourceAttack(_ context.Context, sourceType provenance.SourceType, sourceUUID uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch sourceType {
	case provenance.SourceBruteforceSubdomains, provenance.SourceDNSResolution:
		if r, ok := m.bruteforce[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceTCPPortScan:
		if r, ok := m.tcpPortScan[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceHostAlive:
		if r, ok := m.hostAlive[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceServiceDetection, provenance.SourceUDPServiceDetection:
		if r, ok := m.svcDetect[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceCertificateTransparency:
		if r, ok := m.certTrans[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceDNSTxtScan:
		if r, ok := m.dnsTxtScan[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceOSDetection:
		if r, ok := m.osDetect[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceTestSSL:
		if r, ok := m.testSSL[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	case provenance.SourceDehashed:
		if r, ok := m.dehashed[sourceUUID]; ok {
			return r.Attack, true, nil
		}
	}
	return uuid.Nil, false, nil
}

// GetRawPayload rehydrates the typed raw row a source points at.
func (m *Memory) GetRawPayload(_ context.Context, sourceType provenance.SourceType, sourceUUID uuid.UUID) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch sourceType {
	case provenance.SourceBruteforceSubdomains, provenance.SourceDNSResolution:
		if r, ok := m.bruteforce[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceTCPPortScan:
		if r, ok := m.tcpPortScan[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceHostAlive:
		if r, ok := m.hostAlive[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceServiceDetection, provenance.SourceUDPServiceDetection:
		if r, ok := m.svcDetect[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceCertificateTransparency:
		if r, ok := m.certTrans[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceDNSTxtScan:
		if r, ok := m.dnsTxtScan[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceOSDetection:
		if r, ok := m.osDetect[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceTestSSL:
		if r, ok := m.testSSL[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceDehashed:
		if r, ok := m.dehashed[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceManualHost:
		if r, ok := m.manualHost[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceManualPort:
		if r, ok := m.manualPort[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceManualService:
		if r, ok := m.manualService[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceManualDomain:
		if r, ok := m.manualDomain[sourceUUID]; ok {
			return r, nil
		}
	case provenance.SourceManualHttpService:
		if r, ok := m.manualHTTP[sourceUUID]; ok {
			return r, nil
		}
	}
	return nil, notFound("raw source row")
}
