// Package tag models the two tag collections every aggregated entity
// exposes: global tags (cross-workspace) and workspace tags (local). Tags
// are many-to-many with cascade on the join row, never on the tagged
// entity or the tag itself.
package tag

import (
	"github.com/google/uuid"
)

// Color is an RGBA-ish hint used by the editor UI; stored opaque here.
type Color struct {
	R, G, B, A uint8
}

// GlobalTag is visible across every workspace.
type GlobalTag struct {
	UUID  uuid.UUID
	Name  string
	Color Color
}

// WorkspaceTag is scoped to a single workspace.
type WorkspaceTag struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	Name      string
	Color     Color
}
