package http_api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/macaroon.v2"

	"github.com/satgate/satgate/internal/l402"
	"github.com/satgate/satgate/internal/lightning"
	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/internal/repository"
	"github.com/satgate/satgate/pkg/logger"
)

const (
	testPriceSats = int64(1000)
	testLocation  = "https://example.com/api"
)

var testRootKey = []byte("test-root-key-exactly-32-bytes!!")

func init() {
	gin.SetMode(gin.TestMode)
}

// failingBackend refuses everything, simulating a dead Lightning node.
type failingBackend struct{}

func (failingBackend) CreateInvoice(ctx context.Context, amountSats int64, memo string) (*models.Invoice, error) {
	return nil, fmt.Errorf("dial: %w", models.ErrBackendUnavailable)
}

func (failingBackend) CheckSettlement(ctx context.Context, paymentHash string) (*models.SettlementStatus, error) {
	return nil, fmt.Errorf("dial: %w", models.ErrBackendUnavailable)
}

func (failingBackend) Close() error { return nil }

func newTestServer(t *testing.T, backend models.LightningBackend) *HTTPServer {
	t.Helper()
	return newTestServerWithNotifier(t, backend, nil)
}

func newTestServerWithNotifier(t *testing.T, backend models.LightningBackend, notifier models.NotificationService) *HTTPServer {
	t.Helper()

	log := logger.NewNopLogger()
	repo := repository.NewMemoryDB()

	minter, err := l402.NewMinter(testRootKey, backend, repo, time.Hour, log)
	require.NoError(t, err)
	verifier, err := l402.NewVerifier(testRootKey, backend, false, log)
	require.NoError(t, err)

	gate := NewGate(minter, verifier, repo, notifier, testPriceSats, testLocation, log)
	return NewHTTPServer(0, gate, backend, repo, true, log)
}

// recordingNotifier captures settlement notifications for assertions.
type recordingNotifier struct {
	notified []*models.Challenge
}

func (r *recordingNotifier) NotifySettled(challenge *models.Challenge) {
	r.notified = append(r.notified, challenge)
}

func (s *HTTPServer) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGateChallengesUnauthenticatedRequest(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	w := srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	challenge := w.Header().Get("WWW-Authenticate")
	assert.True(t, strings.HasPrefix(challenge, `L402 macaroon="`), "got %q", challenge)
	assert.Contains(t, challenge, `, invoice="`)

	body := decodeBody(t, w)
	assert.Equal(t, "payment_required", body["status"])
	assert.NotEmpty(t, body["macaroon"])
	assert.NotEmpty(t, body["invoice"])
	assert.NotEmpty(t, body["payment_hash"])
	assert.Equal(t, float64(testPriceSats), body["amount_sats"])
}

func TestGatePaidFlow(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	// Receive the challenge.
	w := srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decodeBody(t, w)
	token := body["macaroon"].(string)
	paymentHash := body["payment_hash"].(string)

	// Pay the invoice through the simulated payer.
	w = srv.serve(httptest.NewRequest(http.MethodPost, "/api/v1/mock/settle/"+paymentHash, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/mock/preimage/"+paymentHash, nil))
	require.Equal(t, http.StatusOK, w.Code)
	preimage := decodeBody(t, w)["preimage"].(string)

	// Retry with the proof of payment.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil)
	req.Header.Set("Authorization", "L402 "+token+":"+preimage)
	w = srv.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["authenticated"])

	// The ledger now shows the settlement.
	w = srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody(t, w)
	assert.Equal(t, float64(1), status["challenges_issued"])
	assert.Equal(t, float64(1), status["challenges_settled"])

	// The token is a pass, not a one-shot: a second request still works.
	w = srv.serve(req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateNotifiesFirstSettlementOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	srv := newTestServerWithNotifier(t, lightning.NewMockBackend(false, logger.NewNopLogger()), notifier)

	w := srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decodeBody(t, w)
	token := body["macaroon"].(string)
	paymentHash := body["payment_hash"].(string)

	w = srv.serve(httptest.NewRequest(http.MethodPost, "/api/v1/mock/settle/"+paymentHash, nil))
	require.Equal(t, http.StatusOK, w.Code)
	w = srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/mock/preimage/"+paymentHash, nil))
	require.Equal(t, http.StatusOK, w.Code)
	preimage := decodeBody(t, w)["preimage"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil)
	req.Header.Set("Authorization", "L402 "+token+":"+preimage)

	// The notification is delivered before the authorized response returns.
	w = srv.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, paymentHash, notifier.notified[0].PaymentHash)
	assert.True(t, notifier.notified[0].Settled)

	// Reusing the token does not notify again.
	w = srv.serve(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, notifier.notified, 1)
}

func TestGateRejectsWrongPreimage(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	w := srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	token := decodeBody(t, w)["macaroon"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil)
	req.Header.Set("Authorization", "L402 "+token+":"+strings.Repeat("00", 32))
	w = srv.serve(req)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	// A new challenge comes back, with the rejection reason attached.
	body := decodeBody(t, w)
	assert.Equal(t, "preimage does not match invoice", body["reason"])
	assert.NotEmpty(t, body["macaroon"])
}

func TestGateRejectsMalformedCredential(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil)
	req.Header.Set("Authorization", "L402 no-colon-here")
	w := srv.serve(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "malformed credential", decodeBody(t, w)["error"])
}

func TestGateRejectsExpiredToken(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	token, _ := mintExpiredToken(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil)
	req.Header.Set("Authorization", "L402 "+token+":"+strings.Repeat("ab", 32))

	w := srv.serve(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "expired", decodeBody(t, w)["error"])
}

func TestGateAnswers503WhenBackendDown(t *testing.T) {
	srv := newTestServer(t, failingBackend{})

	w := srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/protected/test", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "payment backend unavailable", decodeBody(t, w)["error"])
}

func TestChallengeEndpoint(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	w := srv.serve(httptest.NewRequest(http.MethodGet, "/api/v1/challenge", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	assert.NotEmpty(t, decodeBody(t, w)["macaroon"])
}

func TestInvoiceEndpoint(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	w := srv.serve(jsonRequest(t, http.MethodPost, "/api/v1/invoice", map[string]any{"amount": 2500, "memo": "test"}))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["paymentHash"])
	assert.NotEmpty(t, body["paymentRequest"])
	assert.Equal(t, float64(2500), body["amountSats"])

	w = srv.serve(jsonRequest(t, http.MethodPost, "/api/v1/invoice", map[string]any{"memo": "no amount"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.serve(jsonRequest(t, http.MethodPost, "/api/v1/invoice", map[string]any{"amount": -5}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceEndpointBackendDown(t *testing.T) {
	srv := newTestServer(t, failingBackend{})

	w := srv.serve(jsonRequest(t, http.MethodPost, "/api/v1/invoice", map[string]any{"amount": 100}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, lightning.NewMockBackend(false, logger.NewNopLogger()))

	w := srv.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func jsonRequest(t *testing.T, method, path string, payload map[string]any) *http.Request {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// mintExpiredToken signs a token with the shared root key whose expiration
// caveat is already in the past.
func mintExpiredToken(t *testing.T) (token, paymentHash string) {
	t.Helper()

	paymentHash = strings.Repeat("cd", 32)
	id := make([]byte, 66)
	binary.BigEndian.PutUint16(id[:2], 0)
	for i := 2; i < 66; i++ {
		id[i] = 0xcd
	}

	mac, err := macaroon.New(testRootKey, id, testLocation, macaroon.LatestVersion)
	require.NoError(t, err)
	require.NoError(t, mac.AddFirstPartyCaveat([]byte("payment_hash="+paymentHash)))
	expiration := time.Now().Add(-time.Hour).Unix()
	require.NoError(t, mac.AddFirstPartyCaveat([]byte(fmt.Sprintf("expiration=%d", expiration))))
	require.NoError(t, mac.AddFirstPartyCaveat([]byte("location="+testLocation)))

	token, err = l402.EncodeMacaroon(mac)
	require.NoError(t, err)
	return token, paymentHash
}
