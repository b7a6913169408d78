// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hashicorp/capauth/jwt"
)

const testProviderKeyID = "test-key"

// TestProvider is a local https server that supports the provider endpoints
// used by this module, which makes writing tests much easier. It serves
// discovery, the jwks, the authorize, token, revoke, social token and logout
// endpoints at the paths DefaultEndpoints derives from its issuer.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	key        *rsa.PrivateKey
	jwks       *jwt.JWKS

	mu                   sync.Mutex
	clientID             string
	subject              string
	expectedAuthCode     string
	expectedAuthNonce    string
	expectedChallenge    string
	expectedRefreshToken string
	rotateRefreshToken   bool
	expiresIn            time.Duration
	customClaims         map[string]interface{}
	omitIDToken          bool
	omitExpiresIn        bool
	tokenError           *testTokenError
	socialToken          string
	socialConnection     string
	issued               int
	revoked              []string
	tokenRequests        []url.Values

	t *testing.T
}

type testTokenError struct {
	status int
	body   map[string]interface{}
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		clientID:  "test-client-id",
		subject:   "auth0|r3qXcK2bix9eFECzsU3Sbmh0K16fatW6",
		expiresIn: time.Hour,
		t:         t,
	}
	p.key = jwt.TestGenerateRSAKey(t)
	p.jwks = &jwt.JWKS{Keys: []jwt.JWK{jwt.TestJWK(t, &p.key.PublicKey, testProviderKeyID)}}

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Issuer returns the issuer, which is Addr with a trailing slash.
func (p *TestProvider) Issuer() string { return p.httpServer.URL + "/" }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client which trusts the provider's certificate.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// SigningKey returns the key and key id used to sign id_tokens.
func (p *TestProvider) SigningKey() (*rsa.PrivateKey, string) { return p.key, testProviderKeyID }

// ClientID returns the client id the provider accepts.
func (p *TestProvider) ClientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID
}

// Subject returns the sub claim of the issued id_tokens.
func (p *TestProvider) Subject() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subject
}

// Config returns a config for the provider, trusting its CA certificate.
func (p *TestProvider) Config(redirectURL string, opt ...Option) *Config {
	p.t.Helper()
	opt = append([]Option{WithProviderCA(p.CACert())}, opt...)
	c, err := NewConfig(p.Issuer(), p.ClientID(), redirectURL, opt...)
	require.NoError(p.t, err)
	return c
}

// SetClientID configures the client id the provider accepts.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetExpectedAuthCode configures the auth code to return from /authorize and
// the allowed auth code for /oauth/token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedAuthNonce configures the nonce embedded in the issued id_tokens.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthNonce = nonce
}

// SetExpectedChallenge configures the S256 code challenge the code_verifier
// of a code exchange must match.
func (p *TestProvider) SetExpectedChallenge(challenge string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedChallenge = challenge
}

// SetExpectedRefreshToken configures the refresh token the provider accepts
// for refresh, revocation and token exchange, and issues on code exchange.
func (p *TestProvider) SetExpectedRefreshToken(rt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedRefreshToken = rt
}

// SetRotateRefreshToken makes refresh and token exchange responses carry a
// new refresh token.
func (p *TestProvider) SetRotateRefreshToken(rotate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateRefreshToken = rotate
}

// SetExpiresIn configures the lifetime of the issued tokens.
func (p *TestProvider) SetExpiresIn(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = d
}

// OmitExpiresIn removes expires_in from token responses.
func (p *TestProvider) OmitExpiresIn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitExpiresIn = true
}

// SetCustomClaims lets you set claims to return in the id_tokens. A nil
// value removes the claim.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// OmitIDTokens makes the token endpoint omit the id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetTokenError forces every /oauth/token and /oauth/revoke request to fail
// with the status and body. A zero status clears it.
func (p *TestProvider) SetTokenError(status int, body map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == 0 {
		p.tokenError = nil
		return
	}
	p.tokenError = &testTokenError{status: status, body: body}
}

// SetSocialToken configures the third party token and connection accepted by
// /oauth/access_token.
func (p *TestProvider) SetSocialToken(token, connection string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.socialToken = token
	p.socialConnection = connection
}

// RevokedTokens returns the refresh tokens revoked so far.
func (p *TestProvider) RevokedTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

// TokenRequests returns the forms posted to /oauth/token so far.
func (p *TestProvider) TokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.tokenRequests...)
}

// IDToken signs an id_token for the provider's client with the nonce.
func (p *TestProvider) IDToken(nonce string) IDToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idToken(nonce)
}

func (p *TestProvider) idToken(nonce string) IDToken {
	claims := TestIDTokenClaims(p.Issuer(), p.clientID, p.subject, nonce, time.Now())
	claims["exp"] = time.Now().Add(p.expiresIn).Unix()
	for k, v := range p.customClaims {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return TestSignIDToken(p.t, p.key, testProviderKeyID, claims)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	q := url.Values{"state": {qv.Get("state")}, "error": {errorCode}}
	if errorMessage != "" {
		q.Set("error_description", errorMessage)
	}
	http.Redirect(w, req, qv.Get("redirect_uri")+"?"+q.Encode(), http.StatusFound)
}

// nextToken returns a new opaque token value.
func (p *TestProvider) nextToken(prefix string) string {
	p.issued++
	return fmt.Sprintf("%s-%d", prefix, p.issued)
}

func (p *TestProvider) tokenReply(refreshToken string, withIDToken bool, nonce string) map[string]interface{} {
	reply := map[string]interface{}{
		"access_token": p.nextToken("access-token"),
		"token_type":   "Bearer",
		"scope":        "openid profile email",
	}
	if !p.omitExpiresIn {
		reply["expires_in"] = int64(p.expiresIn.Seconds())
	}
	if refreshToken != "" {
		reply["refresh_token"] = refreshToken
	}
	if withIDToken && !p.omitIDToken {
		reply["id_token"] = string(p.idToken(nonce))
	}
	return reply
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ep := DefaultEndpoints(p.Issuer())
		reply := struct {
			Issuer             string   `json:"issuer"`
			AuthEndpoint       string   `json:"authorization_endpoint"`
			TokenEndpoint      string   `json:"token_endpoint"`
			JWKSURI            string   `json:"jwks_uri"`
			RevocationEndpoint string   `json:"revocation_endpoint"`
			EndSessionEndpoint string   `json:"end_session_endpoint"`
			PAREndpoint        string   `json:"pushed_authorization_request_endpoint"`
			UserinfoEndpoint   string   `json:"userinfo_endpoint"`
			Algs               []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:             p.Issuer(),
			AuthEndpoint:       ep.AuthURL,
			TokenEndpoint:      ep.TokenURL,
			JWKSURI:            ep.JWKSURL,
			RevocationEndpoint: ep.RevokeURL,
			EndSessionEndpoint: ep.LogoutURL,
			PAREndpoint:        ep.PARURL,
			UserinfoEndpoint:   ep.UserInfoURL,
			Algs:               []string{jwt.RS256},
		}
		_ = p.writeJSON(w, &reply)

	case "/.well-known/jwks.json":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		switch {
		case qv.Get("redirect_uri") == "":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "missing redirect_uri parameter")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client")
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case p.expectedAuthCode == "":
			p.writeAuthErrorResponse(w, req, "access_denied", "User cancelled")
			return
		}
		p.expectedAuthNonce = qv.Get("nonce")
		p.expectedChallenge = qv.Get("code_challenge")
		q := url.Values{"state": {qv.Get("state")}, "code": {p.expectedAuthCode}}
		http.Redirect(w, req, qv.Get("redirect_uri")+"?"+q.Encode(), http.StatusFound)

	case "/v2/logout":
		returnTo := req.URL.Query().Get("returnTo")
		if req.URL.Query().Get("client_id") != p.clientID || returnTo == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.Redirect(w, req, returnTo, http.StatusFound)

	case "/oauth/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		p.tokenRequests = append(p.tokenRequests, req.PostForm)
		if p.tokenError != nil {
			w.WriteHeader(p.tokenError.status)
			_ = p.writeJSON(w, p.tokenError.body)
			return
		}
		if req.PostForm.Get("client_id") != p.clientID {
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "access_denied", "Unauthorized")
			return
		}
		switch req.PostForm.Get("grant_type") {
		case "authorization_code":
			switch {
			case p.expectedAuthCode == "" || req.PostForm.Get("code") != p.expectedAuthCode:
				_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "invalid_grant", "Invalid authorization code")
				return
			case p.expectedChallenge != "" && oauth2.S256ChallengeFromVerifier(req.PostForm.Get("code_verifier")) != p.expectedChallenge:
				_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "invalid_grant", "Failed to verify code verifier")
				return
			}
			_ = p.writeJSON(w, p.tokenReply(p.expectedRefreshToken, true, p.expectedAuthNonce))

		case "refresh_token":
			if p.expectedRefreshToken == "" || req.PostForm.Get("refresh_token") != p.expectedRefreshToken {
				_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "invalid_grant", "Unknown or invalid refresh token.")
				return
			}
			var rotated string
			if p.rotateRefreshToken {
				rotated = p.nextToken("refresh-token")
				p.expectedRefreshToken = rotated
			}
			reply := p.tokenReply(rotated, true, "")
			if s := req.PostForm.Get("scope"); s != "" {
				reply["scope"] = s
			}
			_ = p.writeJSON(w, reply)

		case grantTypeTokenExchange:
			if p.expectedRefreshToken == "" || req.PostForm.Get("subject_token") != p.expectedRefreshToken ||
				req.PostForm.Get("subject_token_type") != TokenTypeRefreshToken ||
				req.PostForm.Get("requested_token_type") != TokenTypeSessionTransfer {
				_ = p.writeTokenErrorResponse(w, http.StatusForbidden, "invalid_grant", "Unknown or invalid refresh token.")
				return
			}
			reply := map[string]interface{}{
				"access_token":      p.nextToken("session-transfer-token"),
				"issued_token_type": TokenTypeSessionTransfer,
				"token_type":        "N_A",
				"expires_in":        "60",
				"id_token":          string(p.idToken("")),
			}
			if p.rotateRefreshToken {
				rotated := p.nextToken("refresh-token")
				p.expectedRefreshToken = rotated
				reply["refresh_token"] = rotated
			}
			_ = p.writeJSON(w, reply)

		default:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		}

	case "/oauth/access_token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if p.socialToken == "" || req.PostForm.Get("access_token") != p.socialToken || req.PostForm.Get("connection") != p.socialConnection {
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_request", "invalid social access token")
			return
		}
		_ = p.writeJSON(w, p.tokenReply(p.expectedRefreshToken, true, ""))

	case "/oauth/revoke":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if p.tokenError != nil {
			w.WriteHeader(p.tokenError.status)
			_ = p.writeJSON(w, p.tokenError.body)
			return
		}
		if req.PostForm.Get("client_id") != p.clientID || req.PostForm.Get("token") == "" {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "missing token or client_id")
			return
		}
		p.revoked = append(p.revoked, req.PostForm.Get("token"))
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
