// Package service collects the small cross-cutting helpers shared by every
// component in internal/app: observation hooks, retry, pagination clamping
// and service descriptors.
package service

import (
	"context"
	"time"
)

// ObservationHooks captures optional span-like callbacks around an
// operation, without pulling in a tracing SDK.
type ObservationHooks struct {
	OnStart    func(ctx context.Context, meta map[string]string)
	OnComplete func(ctx context.Context, meta map[string]string, err error, duration time.Duration)
}

// NoopObservationHooks is the zero-value default: no-op hooks.
var NoopObservationHooks = ObservationHooks{}

// StartObservation invokes OnStart and returns a closure to invoke on
// completion with the resulting error and elapsed duration.
func StartObservation(ctx context.Context, hooks ObservationHooks, meta map[string]string) func(error) {
	if hooks.OnStart != nil {
		hooks.OnStart(ctx, meta)
	}
	start := time.Now()
	return func(err error) {
		if hooks.OnComplete != nil {
			hooks.OnComplete(ctx, meta, err, time.Since(start))
		}
	}
}

// Tracer is the minimal span interface components accept for attack/request
// tracing; NoopTracer satisfies it without any backend.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func(error))
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// NoopTracer discards every span.
var NoopTracer Tracer = noopTracer{}
