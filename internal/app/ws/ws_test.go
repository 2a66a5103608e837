package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dial spins up a loopback websocket pair and registers the server side
// with the broadcaster.
func dial(t *testing.T, b *Broadcaster, user uuid.UUID) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		b.Register(conn, user)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	<-registered
	return client
}

func readMessage(t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestNotify_DeliversToMembers(t *testing.T) {
	wsID := uuid.New()
	member := uuid.New()
	b := NewBroadcaster(func(w, u uuid.UUID) bool { return u == member }, nil)

	client := dial(t, b, member)
	b.Notify(wsID, KindAttackFinished, AttackFinishedPayload{UUID: uuid.New(), OK: true})

	msg := readMessage(t, client)
	assert.Equal(t, KindAttackFinished, msg.Kind)
	assert.Equal(t, wsID, msg.Workspace)
}

func TestNotify_SkipsNonMembers(t *testing.T) {
	member := uuid.New()
	b := NewBroadcaster(func(w, u uuid.UUID) bool { return u == member }, nil)

	outsider := dial(t, b, uuid.New())
	insider := dial(t, b, member)

	b.Notify(uuid.New(), KindSearchFinished, SearchFinishedPayload{UUID: uuid.New(), OK: true})

	msg := readMessage(t, insider)
	assert.Equal(t, KindSearchFinished, msg.Kind)

	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := outsider.ReadMessage()
	assert.Error(t, err, "non-member receives nothing")
}

func TestNotify_NilWorkspaceReachesEveryone(t *testing.T) {
	b := NewBroadcaster(func(w, u uuid.UUID) bool { return false }, nil)
	client := dial(t, b, uuid.New())

	b.Notify(uuid.Nil, KindInvitationToWorkspace, map[string]string{"workspace": "w"})
	msg := readMessage(t, client)
	assert.Equal(t, KindInvitationToWorkspace, msg.Kind)
}

func TestNotify_DeadConnectionIsSwallowed(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	client := dial(t, b, uuid.New())
	require.NoError(t, client.Close())

	// Push failures are logged and swallowed, never propagated.
	b.Notify(uuid.New(), KindDeletedHost, map[string]string{"uuid": uuid.New().String()})
}

func TestUnregister(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	upgrader := websocket.Upgrader{}
	var id uuid.UUID
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		id = b.Register(conn, uuid.New())
		close(registered)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	<-registered

	b.Unregister(id)
	b.Notify(uuid.New(), KindDeletedDomain, nil)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = client.ReadMessage()
	assert.Error(t, err, "unregistered connection receives nothing")
}
