package oauthsrv

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

var sessionKey = []byte("0123456789abcdef0123456789abcdef")

func challenge(verifier string) string {
	d := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(d[:])
}

func newServer(t *testing.T) (*Server, Client) {
	t.Helper()
	srv, err := New(sessionKey, nil)
	require.NoError(t, err)
	client := Client{UUID: uuid.New(), Name: "sdk", RedirectURI: "https://sdk.test/cb"}
	srv.RegisterClient(client)
	return srv, client
}

func TestFullCodeFlow(t *testing.T) {
	srv, client := newServer(t)
	ws := uuid.New()
	user := uuid.New()
	verifier := "correct horse battery staple"

	reqID, err := srv.Authorize(context.Background(), AuthRequest{
		ClientID:        client.UUID,
		State:           "xyzzy",
		CodeChallenge:   challenge(verifier),
		ChallengeMethod: "S256",
		Workspace:       ws,
	})
	require.NoError(t, err)

	code, state, err := srv.Accept(reqID, user)
	require.NoError(t, err)
	assert.Equal(t, "xyzzy", state)

	token, ttl, err := srv.Token("authorization_code", code, verifier)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	claims, err := srv.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.String(), claims.Subject)
	assert.Equal(t, ws.String(), claims.Workspace)
	assert.Equal(t, client.UUID.String(), claims.ClientID)
}

func TestAuthorizeRejectsPlainChallenge(t *testing.T) {
	srv, client := newServer(t)
	_, err := srv.Authorize(context.Background(), AuthRequest{
		ClientID:        client.UUID,
		State:           "s",
		CodeChallenge:   "challenge",
		ChallengeMethod: "plain",
	})
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.ClientInput))
}

func TestAuthorizeRequiresState(t *testing.T) {
	srv, client := newServer(t)
	_, err := srv.Authorize(context.Background(), AuthRequest{
		ClientID:        client.UUID,
		CodeChallenge:   "challenge",
		ChallengeMethod: "S256",
	})
	require.Error(t, err)
}

func TestTokenRejectsWrongVerifier(t *testing.T) {
	srv, client := newServer(t)
	reqID, err := srv.Authorize(context.Background(), AuthRequest{
		ClientID:        client.UUID,
		State:           "s",
		CodeChallenge:   challenge("right"),
		ChallengeMethod: "S256",
	})
	require.NoError(t, err)
	code, _, err := srv.Accept(reqID, uuid.New())
	require.NoError(t, err)

	_, _, err = srv.Token("authorization_code", code, "wrong")
	require.Error(t, err)

	// The code is single-use even after a failed exchange.
	_, _, err = srv.Token("authorization_code", code, "right")
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	srv, client := newServer(t)
	srv.now = func() time.Time { return time.Now().Add(-time.Hour) }

	reqID, err := srv.Authorize(context.Background(), AuthRequest{
		ClientID:        client.UUID,
		State:           "s",
		CodeChallenge:   challenge("v"),
		ChallengeMethod: "S256",
	})
	require.NoError(t, err)
	code, _, err := srv.Accept(reqID, uuid.New())
	require.NoError(t, err)
	token, _, err := srv.Token("authorization_code", code, "v")
	require.NoError(t, err)

	_, err = srv.Verify(token)
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.Authorization))
}

func TestDeriveKeyIsPurposeBound(t *testing.T) {
	a, err := DeriveKey(sessionKey, "oauth-access-token")
	require.NoError(t, err)
	b, err := DeriveKey(sessionKey, "state-cookie")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
