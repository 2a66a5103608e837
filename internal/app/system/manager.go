package system

import (
	"context"
	"fmt"
	"sync"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
)

// Manager owns the start/stop lifecycle of every background Service: the
// attack controller, the search dispatcher, each editor-cache flusher.
// Start/Stop are idempotent (guarded by sync.Once); services stop in
// reverse registration order, and a failed Start rolls back whatever
// already started.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  bool

	startOnce sync.Once
	stopOnce  sync.Once

	descriptorProviders []DescriptorProvider
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds svc to the managed set. It is an error to register after
// Start has run, or to register a nil Service.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc == nil {
		return fmt.Errorf("system: cannot register a nil service")
	}
	if m.started {
		return fmt.Errorf("system: cannot register %s after Start", svc.Name())
	}
	for _, existing := range m.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("system: service %s already registered", svc.Name())
		}
	}
	m.services = append(m.services, svc)
	if dp, ok := svc.(DescriptorProvider); ok {
		m.descriptorProviders = append(m.descriptorProviders, dp)
	}
	return nil
}

// RegisterDescriptor adds a component to the descriptor inventory without
// giving it a managed lifecycle (used for components that are not
// themselves a Service, e.g. the aggregator or provenance recorder).
func (m *Manager) RegisterDescriptor(dp DescriptorProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dp != nil {
		m.descriptorProviders = append(m.descriptorProviders, dp)
	}
}

// Start launches every registered service in registration order. If one
// fails, every service already started is stopped in reverse order before
// the error is returned. Subsequent calls are no-ops.
func (m *Manager) Start(ctx context.Context) error {
	var err error
	m.startOnce.Do(func() {
		m.mu.Lock()
		services := append([]Service(nil), m.services...)
		m.started = true
		m.mu.Unlock()

		started := make([]Service, 0, len(services))
		for _, svc := range services {
			if serr := svc.Start(ctx); serr != nil {
				for i := len(started) - 1; i >= 0; i-- {
					_ = started[i].Stop(ctx)
				}
				err = fmt.Errorf("start %s: %w", svc.Name(), serr)
				return
			}
			started = append(started, svc)
		}
	})
	return err
}

// Stop halts every started service in reverse registration order,
// collecting the first error but still attempting every Stop.
// Subsequent calls are no-ops.
func (m *Manager) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		services := append([]Service(nil), m.services...)
		m.mu.Unlock()

		for i := len(services) - 1; i >= 0; i-- {
			if serr := services[i].Stop(ctx); serr != nil && err == nil {
				err = fmt.Errorf("stop %s: %w", services[i].Name(), serr)
			}
		}
	})
	return err
}

// DescriptorProviders returns every component registered for the
// descriptor inventory, including services and descriptor-only entries.
func (m *Manager) DescriptorProviders() []DescriptorProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DescriptorProvider(nil), m.descriptorProviders...)
}

// Descriptors collects the full /system/descriptors inventory.
func (m *Manager) Descriptors() []core.Descriptor {
	return CollectDescriptors(m.DescriptorProviders())
}
