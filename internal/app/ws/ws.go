// Package ws defines the server->client push surface and a
// gorilla/websocket-backed broadcaster. Routing, authentication, and
// per-connection framing beyond the Go broadcaster type belong to the
// upstream HTTP layer; this package only owns the typed message contract
// and fan-out to registered connections.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kraken-ng/kraken/pkg/logger"
)

// MessageKind tags the server->client frame families.
type MessageKind string

const (
	KindAttackFinished          MessageKind = "AttackFinished"
	KindBruteforceSubdomains    MessageKind = "BruteforceSubdomainsResult"
	KindCertificateTransparency MessageKind = "CertificateTransparencyResult"
	KindDnsTxtScanResult        MessageKind = "DnsTxtScanResult"
	KindDeletedHost             MessageKind = "DeletedHost"
	KindDeletedPort             MessageKind = "DeletedPort"
	KindDeletedService          MessageKind = "DeletedService"
	KindDeletedHttpService      MessageKind = "DeletedHttpService"
	KindDeletedDomain           MessageKind = "DeletedDomain"
	KindUpdatedWorkspaceTags    MessageKind = "UpdatedWorkspaceTags"
	KindUpdatedGlobalTags       MessageKind = "UpdatedGlobalTags"
	KindInvitationToWorkspace   MessageKind = "InvitationToWorkspace"
	KindSearchFinished          MessageKind = "SearchFinished"
)

// Message is one server->client frame, scoped to the workspace whose
// members should receive it (the zero UUID means "every connection",
// used for InvitationToWorkspace which targets a specific user instead).
type Message struct {
	Kind      MessageKind `json:"kind"`
	Workspace uuid.UUID   `json:"workspace,omitempty"`
	Payload   interface{} `json:"payload"`
}

// AttackFinishedPayload is KindAttackFinished's payload.
type AttackFinishedPayload struct {
	UUID uuid.UUID `json:"uuid"`
	OK   bool      `json:"ok"`
}

// SearchFinishedPayload is KindSearchFinished's payload.
type SearchFinishedPayload struct {
	UUID uuid.UUID `json:"uuid"`
	OK   bool      `json:"ok"`
}

// Notifier is the push surface consumed by the sink, attack controller,
// and search dispatcher. Implementations never propagate a send failure
// to their caller.
type Notifier interface {
	Notify(workspace uuid.UUID, kind MessageKind, payload interface{})
}

// conn is one registered client connection.
type conn struct {
	ws    *websocket.Conn
	user  uuid.UUID
	wsMu  sync.Mutex
}

// Broadcaster fans Notify calls out to every connection whose member set
// includes the target workspace. Connection registration/auth and the
// actual HTTP upgrade handshake are left to the caller (out of scope per
// upstream); Broadcaster only owns delivery once a *websocket.Conn has
// been registered.
type Broadcaster struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*conn // keyed by connection id, not user id

	members func(ws, user uuid.UUID) bool

	log *logger.Logger
}

// NewBroadcaster builds a Broadcaster. membership reports whether a user
// belongs to a workspace, used to scope fan-out; it may be nil, in which
// case every registered connection receives every message (single-tenant
// / test mode). log may be nil.
func NewBroadcaster(membership func(ws, user uuid.UUID) bool, log *logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.NewDefault("ws-broadcaster")
	}
	return &Broadcaster{conns: make(map[uuid.UUID]*conn), members: membership, log: log}
}

// Register adds a connection for user, returning a handle used to
// Unregister it on disconnect.
func (b *Broadcaster) Register(c *websocket.Conn, user uuid.UUID) uuid.UUID {
	id := uuid.New()
	b.mu.Lock()
	b.conns[id] = &conn{ws: c, user: user}
	b.mu.Unlock()
	return id
}

// Unregister drops a connection registered via Register.
func (b *Broadcaster) Unregister(id uuid.UUID) {
	b.mu.Lock()
	delete(b.conns, id)
	b.mu.Unlock()
}

// Notify implements Notifier. Delivery is synchronous: connections are
// written one after another on the caller's goroutine with no write
// deadline, so a slow connection delays the caller and the connections
// after it. Send failures are logged and otherwise ignored; a failed
// write does not stop delivery to the others.
func (b *Broadcaster) Notify(workspace uuid.UUID, kind MessageKind, payload interface{}) {
	msg := Message{Kind: kind, Workspace: workspace, Payload: payload}
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.WithField("kind", kind).WithField("error", err).Warn("failed to marshal ws message")
		return
	}

	b.mu.RLock()
	targets := make([]*conn, 0, len(b.conns))
	for _, c := range b.conns {
		if workspace == uuid.Nil || b.members == nil || b.members(workspace, c.user) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range targets {
		c.wsMu.Lock()
		err := c.ws.WriteMessage(websocket.TextMessage, data)
		c.wsMu.Unlock()
		if err != nil {
			b.log.WithField("user", c.user).WithField("error", err).Warn("ws push failed")
		}
	}
}

// NoopNotifier discards every notification; used in tests and by
// components run without a live push surface wired in.
type NoopNotifier struct{}

func (NoopNotifier) Notify(uuid.UUID, MessageKind, interface{}) {}
