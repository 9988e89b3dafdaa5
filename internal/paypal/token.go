package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTokenMargin is kept in reserve before a cached token's expiry.
const DefaultTokenMargin = time.Minute

const accessTokenKey = "access_token"

// TokenStore holds the current access token. Get returns ErrTokenMiss when
// nothing is stored.
type TokenStore interface {
	Get(ctx context.Context) (AccessToken, error)
	Set(ctx context.Context, token AccessToken) error
	Delete(ctx context.Context) error
}

// TokenSource hands out bearer tokens for provider calls. Invalidate drops a
// token the provider refused so the next call fetches a new one.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (AccessToken, error)
	Invalidate(ctx context.Context, token AccessToken)
}

// TokenCache obtains access and client tokens. Concurrent refreshes collapse
// into a single token request.
type TokenCache struct {
	client *Client
	creds  Credentials
	store  TokenStore
	margin time.Duration
	now    func() time.Time
	sfg    singleflight.Group
	logger *slog.Logger
}

// NewTokenCache returns a TokenCache. A nil store fetches a fresh token for
// every call.
func NewTokenCache(client *Client, creds Credentials, store TokenStore, margin time.Duration) *TokenCache {
	if store == nil {
		store = NoTokenStore{}
	}
	if margin < 0 {
		margin = 0
	}
	return &TokenCache{
		client: client,
		creds:  creds,
		store:  store,
		margin: margin,
		now:    time.Now,
		logger: client.logger,
	}
}

// GetAccessToken returns a token valid for at least the configured margin.
// Missing credentials fail with *ConfigError before any network call.
func (t *TokenCache) GetAccessToken(ctx context.Context) (AccessToken, error) {
	if err := t.creds.Validate(); err != nil {
		return AccessToken{}, err
	}

	if tok, ok := t.cached(ctx); ok {
		return tok, nil
	}

	// The refresh outlives a single cancelled caller so that the other
	// waiters still get a token.
	ch := t.sfg.DoChan(accessTokenKey, func() (any, error) {
		return t.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return AccessToken{}, &AuthError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	}
}

func (t *TokenCache) cached(ctx context.Context) (AccessToken, bool) {
	tok, err := t.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrTokenMiss) {
			t.logger.WarnContext(ctx, "token store read failed", slog.Any("error", err))
		}
		return AccessToken{}, false
	}
	return tok, tok.ValidAt(t.now(), t.margin)
}

func (t *TokenCache) refresh(ctx context.Context) (AccessToken, error) {
	// another flight may have stored a token between our miss and this call
	if tok, ok := t.cached(ctx); ok {
		return tok, nil
	}

	tok, err := t.fetchAccessToken(ctx)
	if err != nil {
		return AccessToken{}, err
	}

	if err := t.store.Set(ctx, tok); err != nil {
		t.logger.WarnContext(ctx, "token store write failed", slog.Any("error", err))
	}
	return tok, nil
}

// Invalidate removes token from the store unless a newer token has already
// replaced it.
func (t *TokenCache) Invalidate(ctx context.Context, token AccessToken) {
	stored, err := t.store.Get(ctx)
	if err != nil || stored.Value != token.Value {
		return
	}
	if err := t.store.Delete(ctx); err != nil {
		t.logger.WarnContext(ctx, "token store delete failed", slog.Any("error", err))
		return
	}
	t.logger.InfoContext(ctx, "access token invalidated")
}

func (t *TokenCache) fetchAccessToken(ctx context.Context) (AccessToken, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := t.client.newRequest(ctx, http.MethodPost, "/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, &AuthError{Err: err}
	}
	req.Header.Set("Authorization", "Basic "+t.creds.basicAuth())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	obtainedAt := t.now()
	resp, err := t.client.do(req)
	if err != nil {
		return AccessToken{}, &AuthError{Err: err}
	}
	if !resp.ok() {
		return AccessToken{}, &AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return AccessToken{}, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return AccessToken{}, &AuthError{StatusCode: resp.StatusCode, Err: errors.New("token response has no access_token")}
	}

	t.logger.DebugContext(ctx, "access token obtained", slog.Int64("expires_in", tr.ExpiresIn))
	return AccessToken{Value: tr.AccessToken, ObtainedAt: obtainedAt, ExpiresIn: tr.ExpiresIn}, nil
}

// GetClientToken requests a short-lived token for the browser widget.
func (t *TokenCache) GetClientToken(ctx context.Context) (ClientToken, error) {
	tok, err := t.GetAccessToken(ctx)
	if err != nil {
		return ClientToken{}, err
	}

	req, err := t.client.newRequest(ctx, http.MethodPost, "/v1/identity/generate-token", nil)
	if err != nil {
		return ClientToken{}, &AuthError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Accept-Language", "en_US")
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.do(req)
	if err != nil {
		return ClientToken{}, &AuthError{Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.Invalidate(ctx, tok)
	}
	if !resp.ok() {
		return ClientToken{}, &AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var cr clientTokenResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		return ClientToken{}, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode client token response: %w", err)}
	}
	if cr.ClientToken == "" {
		return ClientToken{}, &AuthError{StatusCode: resp.StatusCode, Err: errors.New("response has no client_token")}
	}

	return ClientToken{Value: cr.ClientToken, ExpiresIn: cr.ExpiresIn}, nil
}

// NoTokenStore never caches, so every GetAccessToken call exchanges the
// credentials again.
type NoTokenStore struct{}

func (NoTokenStore) Get(context.Context) (AccessToken, error) { return AccessToken{}, ErrTokenMiss }
func (NoTokenStore) Set(context.Context, AccessToken) error   { return nil }
func (NoTokenStore) Delete(context.Context) error             { return nil }

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token AccessToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get(context.Context) (AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.Value == "" {
		return AccessToken{}, ErrTokenMiss
	}
	return s.token, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, token AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = AccessToken{}
	return nil
}
