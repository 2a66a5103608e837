// Package oauthsrv issues workspace-scoped access tokens over the OAuth
// authorization-code flow with a mandatory PKCE S256 challenge. The
// authorization server's outer HTTP surface (routing, consent pages,
// session middleware) is an external collaborator; this
// package owns the flow state machine and token issuance only.
//
// State is required against CSRF, S256 is the only accepted
// code_challenge_method, and the code verifier is checked by comparing
// the base64url-encoded SHA-256 of the verifier against the stored
// challenge. Tokens are signed JWTs carrying the granted workspace as a
// claim so resource handlers can authorize statelessly.
package oauthsrv

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/pkg/logger"
)

const (
	codeInvalidGrant      = "InvalidGrant"
	codeInvalidChallenge  = "InvalidChallenge"
	codeUnknownClient     = "UnknownClient"
	codeVerifierMismatch  = "VerifierMismatch"
	codeTokenExpired      = "TokenExpired"
	codeTokenInvalid      = "TokenInvalid"
	defaultAccessTokenTTL = 120 * time.Second
)

// Client is one registered OAuth application.
type Client struct {
	UUID        uuid.UUID
	Name        string
	RedirectURI string
	Secret      string
}

// AuthRequest is an incoming authorization request before user consent.
type AuthRequest struct {
	ClientID      uuid.UUID
	State         string
	CodeChallenge string
	// ChallengeMethod must be "S256"; "plain" is rejected outright.
	ChallengeMethod string
	Workspace       uuid.UUID
}

// openRequest tracks a request from Authorize until the code is redeemed.
type openRequest struct {
	client        Client
	state         string
	codeChallenge string
	workspace     uuid.UUID
	user          uuid.UUID
	accepted      bool
}

// Claims is the access-token payload: the granted user, client, and
// workspace scope.
type Claims struct {
	jwt.StandardClaims
	Workspace string `json:"workspace"`
	ClientID  string `json:"client_id"`
}

// Server drives the code+PKCE flow and signs access tokens.
type Server struct {
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	clients  map[uuid.UUID]Client
	open     map[uuid.UUID]*openRequest // keyed by request id pre-consent
	accepted map[uuid.UUID]*openRequest // keyed by authorization code

	log *logger.Logger
}

// New constructs a Server. sessionKey is the configured session key; the
// JWT signing key is derived from it, never used raw. log may be nil.
func New(sessionKey []byte, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewDefault("oauthsrv")
	}
	signingKey, err := DeriveKey(sessionKey, "oauth-access-token")
	if err != nil {
		return nil, err
	}
	return &Server{
		signingKey: signingKey,
		tokenTTL:   defaultAccessTokenTTL,
		now:        time.Now,
		clients:    make(map[uuid.UUID]Client),
		open:       make(map[uuid.UUID]*openRequest),
		accepted:   make(map[uuid.UUID]*openRequest),
		log:        log,
	}, nil
}

// RegisterClient adds or replaces a client application.
func (s *Server) RegisterClient(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.UUID] = c
}

// Authorize validates an authorization request and parks it awaiting user
// consent, returning the request id the consent UI round-trips.
func (s *Server) Authorize(_ context.Context, req AuthRequest) (uuid.UUID, error) {
	if req.State == "" {
		return uuid.Nil, krakenerr.New(krakenerr.ClientInput, codeInvalidGrant, "missing state")
	}
	if req.CodeChallenge == "" {
		return uuid.Nil, krakenerr.New(krakenerr.ClientInput, codeInvalidChallenge, "missing code_challenge")
	}
	if req.ChallengeMethod != "S256" {
		return uuid.Nil, krakenerr.New(krakenerr.ClientInput, codeInvalidChallenge, "unsupported code_challenge_method")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[req.ClientID]
	if !ok {
		return uuid.Nil, krakenerr.New(krakenerr.ClientInput, codeUnknownClient, "unknown client")
	}
	id := uuid.New()
	s.open[id] = &openRequest{
		client:        client,
		state:         req.State,
		codeChallenge: req.CodeChallenge,
		workspace:     req.Workspace,
	}
	return id, nil
}

// Accept records user consent for an open request and mints the
// authorization code the client exchanges at the token endpoint. It
// returns the code plus the state to echo in the redirect.
func (s *Server) Accept(requestID, user uuid.UUID) (code uuid.UUID, state string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.open[requestID]
	if !ok {
		return uuid.Nil, "", krakenerr.New(krakenerr.NotFound, krakenerr.CodeInvalidUUID, "unknown authorization request")
	}
	delete(s.open, requestID)
	req.user = user
	req.accepted = true
	code = uuid.New()
	s.accepted[code] = req
	return code, req.state, nil
}

// Deny drops an open request; the caller redirects with access_denied.
func (s *Server) Deny(requestID uuid.UUID) (state string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.open[requestID]
	if !ok {
		return "", krakenerr.New(krakenerr.NotFound, krakenerr.CodeInvalidUUID, "unknown authorization request")
	}
	delete(s.open, requestID)
	return req.state, nil
}

// Token redeems an authorization code: the grant type must be
// authorization_code and the verifier's S256 digest must match the
// challenge stored at Authorize time. The code is single-use.
func (s *Server) Token(grantType string, code uuid.UUID, verifier string) (string, time.Duration, error) {
	if grantType != "authorization_code" {
		return "", 0, krakenerr.New(krakenerr.ClientInput, codeInvalidGrant, "unsupported grant_type")
	}
	if verifier == "" {
		return "", 0, krakenerr.New(krakenerr.ClientInput, codeVerifierMismatch, "missing code_verifier")
	}

	s.mu.Lock()
	req, ok := s.accepted[code]
	delete(s.accepted, code)
	s.mu.Unlock()
	if !ok {
		return "", 0, krakenerr.New(krakenerr.ClientInput, codeInvalidGrant, "unknown or already redeemed code")
	}

	digest := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(digest[:])
	if subtle.ConstantTimeCompare([]byte(computed), []byte(req.codeChallenge)) != 1 {
		s.log.WithField("client", req.client.UUID).Warn("pkce verifier does not match challenge")
		return "", 0, krakenerr.New(krakenerr.ClientInput, codeVerifierMismatch, "code_verifier doesn't match code_challenge")
	}

	now := s.now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   req.user.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
			Issuer:    "kraken",
		},
		Workspace: req.workspace.String(),
		ClientID:  req.client.UUID.String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", 0, krakenerr.Wrap(krakenerr.Internal, codeTokenInvalid, err)
	}
	return signed, s.tokenTTL, nil
}

// Verify parses and validates an access token, returning its claims.
func (s *Server) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, krakenerr.New(krakenerr.Authorization, codeTokenInvalid, "unexpected signing method")
		}
		return s.signingKey, nil
	})
	if err != nil {
		if v, ok := err.(*jwt.ValidationError); ok && v.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, krakenerr.New(krakenerr.Authorization, codeTokenExpired, "access token expired")
		}
		return nil, krakenerr.Wrap(krakenerr.Authorization, codeTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, krakenerr.New(krakenerr.Authorization, codeTokenInvalid, "invalid access token")
	}
	return claims, nil
}
