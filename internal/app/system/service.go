// Package system defines the lifecycle contract every long-running kraken
// component satisfies, and the inventory helper used by the
// /system/descriptors surface.
package system

import (
	"context"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
)

// Service is a lifecycle-managed component: the attack controller, the
// editor cache flusher, the search dispatcher and similar background
// workers all implement it so the application can start/stop them
// deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DescriptorProvider optionally advertises a component's placement and
// capabilities.
type DescriptorProvider interface {
	Descriptor() core.Descriptor
}
