package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xxomega77xx/googlepay/internal/catalog"
)

const (
	testClientID   = "test-client"
	testSecret     = "test-secret-value"
	testMerchantID = "XWVWZ4HG4YH9N"
	testToken      = "A21AA-test-token"
)

func testCredentials() Credentials {
	return Credentials{ClientID: testClientID, ClientSecret: testSecret, MerchantID: testMerchantID}
}

// stubProvider is a fake payment provider. Unregistered routes answer 404
// the way the provider does.
type stubProvider struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	bodies   map[string][]byte
	handlers map[string]http.HandlerFunc
}

func newStubProvider(t *testing.T) *stubProvider {
	s := &stubProvider{
		calls:    make(map[string]int),
		bodies:   make(map[string][]byte),
		handlers: make(map[string]http.HandlerFunc),
	}
	s.handle(http.MethodPost, "/v1/oauth2/token", tokenHandler(testClientID, testSecret))
	s.srv = httptest.NewServer(s)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.calls[key]++
	s.bodies[key] = body
	h, ok := s.handlers[key]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, `{"name":"RESOURCE_NOT_FOUND"}`)
		return
	}
	h(w, r)
}

func (s *stubProvider) handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = h
}

func (s *stubProvider) count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *stubProvider) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *stubProvider) lastBody(method, path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[method+" "+path]
}

func tokenHandler(clientID, secret string) http.HandlerFunc {
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+secret))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			writeJSON(w, http.StatusBadRequest, `{"error":"unsupported_grant_type"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"scope":"openid","access_token":"`+testToken+`","token_type":"Bearer","app_id":"APP-1","expires_in":32400,"nonce":"n"}`)
	}
}

// bearer wraps h so that it only answers requests carrying the test token.
func bearer(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_token"}`)
			return
		}
		h(w, r)
	}
}

func respond(status int, body string) http.HandlerFunc {
	return bearer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func testCatalog() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog(
		catalog.Product{SKU: "checkout-demo", Name: "Checkout demo", Price: decimal.RequireFromString("0.10"), Currency: "USD"},
		catalog.Product{SKU: "sticker-pack", Name: "Sticker pack", Price: decimal.RequireFromString("1.99"), Currency: "USD"},
	)
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []*CaptureResult
	err     error
}

func (n *recordingNotifier) PaymentCaptured(_ context.Context, result *CaptureResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
	return n.err
}

type fixture struct {
	stub     *stubProvider
	client   *Client
	tokens   *TokenCache
	gateway  *OrderGateway
	notifier *recordingNotifier
}

func newFixture(t *testing.T, creds Credentials, store TokenStore) *fixture {
	stub := newStubProvider(t)
	client := NewClient(ClientConfig{BaseURL: stub.srv.URL, HTTPClient: stub.srv.Client()})
	tokens := NewTokenCache(client, creds, store, DefaultTokenMargin)
	notifier := &recordingNotifier{}
	gateway := NewOrderGateway(client, tokens, testCatalog(), notifier, GatewayConfig{
		MerchantID: creds.MerchantID,
		Currency:   "USD",
		DefaultSKU: "checkout-demo",
		SCAMethod:  "SCA_WHEN_REQUIRED",
	})
	return &fixture{stub: stub, client: client, tokens: tokens, gateway: gateway, notifier: notifier}
}
