package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
)

func (m *Memory) InsertBruteforceSubdomains(_ context.Context, r rawresult.BruteforceSubdomains) (rawresult.BruteforceSubdomains, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.bruteforce[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertTCPPortScan(_ context.Context, r rawresult.TCPPortScan) (rawresult.TCPPortScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.tcpPortScan[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertHostAlive(_ context.Context, r rawresult.HostAlive) (rawresult.HostAlive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.hostAlive[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertServiceDetection(_ context.Context, r rawresult.ServiceDetection) (rawresult.ServiceDetection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.svcDetect[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertCertificateTransparency(_ context.Context, r rawresult.CertificateTransparency) (rawresult.CertificateTransparency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.certTrans[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertOSDetection(_ context.Context, r rawresult.OSDetection) (rawresult.OSDetection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.osDetect[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertTestSSL(_ context.Context, r rawresult.TestSSL) (rawresult.TestSSL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.testSSL[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertDehashedEntry(_ context.Context, r rawresult.DehashedEntry) (rawresult.DehashedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.dehashed[r.UUID] = r
	return r, nil
}

// ListDehashedEntries returns every dehashed-query row whose owning attack
// belongs to ws.
func (m *Memory) ListDehashedEntries(_ context.Context, ws uuid.UUID) ([]rawresult.DehashedEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rawresult.DehashedEntry
	for _, r := range m.dehashed {
		if a, ok := m.attacks[r.Attack]; ok && a.Workspace == ws {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListTestSSL returns every testssl row whose owning attack belongs to ws.
func (m *Memory) ListTestSSL(_ context.Context, ws uuid.UUID) ([]rawresult.TestSSL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rawresult.TestSSL
	for _, r := range m.testSSL {
		if a, ok := m.attacks[r.Attack]; ok && a.Workspace == ws {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) InsertDnsTxtScan(_ context.Context, r rawresult.DnsTxtScan) (rawresult.DnsTxtScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.dnsTxtScan[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertServiceHintEntry(_ context.Context, e rawresult.ServiceHintEntry) (rawresult.ServiceHintEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	m.svcHintEntry[e.UUID] = e
	return e, nil
}

func (m *Memory) InsertSpfEntry(_ context.Context, e rawresult.SpfEntry) (rawresult.SpfEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	m.spfEntry[e.UUID] = e
	return e, nil
}

func (m *Memory) InsertManualHost(_ context.Context, r rawresult.ManualHost) (rawresult.ManualHost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.manualHost[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertManualPort(_ context.Context, r rawresult.ManualPort) (rawresult.ManualPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.manualPort[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertManualService(_ context.Context, r rawresult.ManualService) (rawresult.ManualService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.manualService[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertManualDomain(_ context.Context, r rawresult.ManualDomain) (rawresult.ManualDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.manualDomain[r.UUID] = r
	return r, nil
}

func (m *Memory) InsertManualHttpService(_ context.Context, r rawresult.ManualHttpService) (rawresult.ManualHttpService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.manualHTTP[r.UUID] = r
	return r, nil
}
