package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WorkspaceChecker is the minimal lookup Base needs; storage.WorkspaceStore
// satisfies it. Declared locally to avoid an import cycle with storage.
type WorkspaceChecker interface {
	IsMember(ctx context.Context, ws, userID uuid.UUID) (bool, error)
}

// Base bundles the workspace-scoping checks every aggregator/sink/finding
// component performs before touching storage.
type Base struct {
	workspaces WorkspaceChecker
	tracer     Tracer
}

// NewBase constructs a helper bound to the given workspace checker. A nil
// checker disables membership enforcement (used by in-process tests).
func NewBase(workspaces WorkspaceChecker) *Base {
	return &Base{workspaces: workspaces, tracer: NoopTracer}
}

// SetTracer configures the tracer used for cross-cutting spans.
func (b *Base) SetTracer(tracer Tracer) {
	if tracer == nil {
		b.tracer = NoopTracer
		return
	}
	b.tracer = tracer
}

// EnsureWorkspace validates that ws is non-nil and, when a user is
// supplied, that the user is a member.
func (b *Base) EnsureWorkspace(ctx context.Context, ws uuid.UUID, userID uuid.UUID) error {
	if ws == uuid.Nil {
		return fmt.Errorf("workspace is required")
	}
	if b.workspaces == nil || userID == uuid.Nil {
		return nil
	}
	ok, err := b.workspaces.IsMember(ctx, ws, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s is not a member of workspace %s", userID, ws)
	}
	return nil
}

// Tracer exposes the currently configured tracer (defaults to no-op).
func (b *Base) Tracer() Tracer {
	if b == nil || b.tracer == nil {
		return NoopTracer
	}
	return b.tracer
}
