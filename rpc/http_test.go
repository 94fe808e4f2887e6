package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"trustrent/core"
	"trustrent/core/pricing"
	"trustrent/core/types"
	"trustrent/crypto"
	"trustrent/storage"
)

const (
	testSecret = "rpc-test-secret"
	testStart  = int64(1_700_000_000)
	day        = int64(24 * 3600)
)

var (
	hostAddr    = [20]byte{0x11}
	guestAddr   = [20]byte{0x22}
	arbiterAddr = [20]byte{0x33}
	otherAddr   = [20]byte{0x44}
)

type testClock struct{ now int64 }

func (c *testClock) Now() time.Time { return time.Unix(c.now, 0) }

type testResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type testEnv struct {
	node   *core.Node
	server *Server
	clock  *testClock
	tokens map[[20]byte]string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	clock := &testClock{now: testStart}
	feed, err := pricing.NewFixedFeed(big.NewInt(100_000_000), time.Unix(testStart, 0), 0)
	require.NoError(t, err)
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		Arbiter: arbiterAddr,
		Feed:    feed,
		Faucet:  big.NewInt(1_000_000),
		Now:     clock.Now,
	})
	require.NoError(t, err)
	_, err = node.ApplyGenesis([]core.Allocation{{Address: guestAddr, Amount: big.NewInt(10_000_000_000)}})
	require.NoError(t, err)

	cfg.Auth.HMACSecret = testSecret
	if cfg.IdempotencyPath == "" {
		cfg.IdempotencyPath = filepath.Join(t.TempDir(), "idempotency.db")
	}
	server, err := NewServer(node, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	env := &testEnv{node: node, server: server, clock: clock, tokens: make(map[[20]byte]string)}
	for _, addr := range [][20]byte{hostAddr, guestAddr, arbiterAddr, otherAddr} {
		token, err := IssueToken(testSecret, addr, "", "", time.Hour, time.Now())
		require.NoError(t, err)
		env.tokens[addr] = token
	}
	return env
}

func (e *testEnv) call(t *testing.T, as *[20]byte, method string, params interface{}, headers map[string]string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 7, "method": method}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.RemoteAddr = "192.0.2.1:5000"
	if as != nil {
		httpReq.Header.Set("Authorization", "Bearer "+e.tokens[*as])
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httpReq)
	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func (e *testEnv) mustCall(t *testing.T, as *[20]byte, method string, params interface{}, out interface{}) {
	t.Helper()
	rec, resp := e.call(t, as, method, params, nil)
	if resp.Error != nil {
		t.Fatalf("%s failed: %d %s", method, resp.Error.Code, resp.Error.Message)
	}
	require.Equal(t, http.StatusOK, rec.Code)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Result, out))
	}
}

func (e *testEnv) bookOneListing(t *testing.T, months uint64) (ListingResult, BookingResult) {
	t.Helper()
	var listing ListingResult
	e.mustCall(t, &hostAddr, "rental_addListing", map[string]interface{}{"pricePerMonth": "80000"}, &listing)
	e.mustCall(t, &guestAddr, "bank_approve", map[string]interface{}{"amount": "10000000000"}, nil)
	var booking BookingResult
	e.mustCall(t, &guestAddr, "rental_book", map[string]interface{}{
		"listingId":   listing.ID,
		"start":       testStart,
		"months":      months,
		"metadataUri": "ipfs://stay",
	}, &booking)
	return listing, booking
}

func TestBookingFlowOverRPC(t *testing.T) {
	env := newTestEnv(t, Config{})
	listing, booking := env.bookOneListing(t, 2)
	require.Equal(t, crypto.FormatAddress(hostAddr), listing.Host)
	require.Equal(t, "800000000", listing.PerMonth)
	require.Equal(t, "1600000000", booking.EscrowBalance)
	require.Equal(t, "active", booking.Status)
	require.Equal(t, testStart+60*day, booking.End)

	var avail AvailabilityResult
	env.mustCall(t, nil, "rental_isAvailable", map[string]interface{}{"listingId": listing.ID, "start": testStart + 30*day, "months": 1}, &avail)
	require.False(t, avail.Available)

	env.clock.now = testStart + 31*day
	var released AmountResult
	env.mustCall(t, &hostAddr, "rental_releaseAvailable", map[string]interface{}{"bookingId": booking.ID}, &released)
	require.Equal(t, "800000000", released.Amount)

	var refund AmountResult
	env.mustCall(t, &guestAddr, "rental_cancelEarly", map[string]interface{}{"bookingId": booking.ID}, &refund)
	require.Equal(t, "800000000", refund.Amount)

	var balance AmountResult
	env.mustCall(t, nil, "bank_balance", map[string]interface{}{"address": crypto.FormatAddress(hostAddr)}, &balance)
	require.Equal(t, "800000000", balance.Amount)

	var stored BookingResult
	env.mustCall(t, nil, "rental_getBooking", map[string]interface{}{"bookingId": booking.ID}, &stored)
	require.Equal(t, "cancelled", stored.Status)
	require.Equal(t, "0", stored.EscrowBalance)

	var cert CertificateResult
	env.mustCall(t, nil, "certificate_get", map[string]interface{}{"id": booking.CertificateID}, &cert)
	require.Equal(t, crypto.FormatAddress(guestAddr), cert.Owner)
	require.Equal(t, "ipfs://stay", cert.MetadataURI)

	var events EventsResult
	env.mustCall(t, nil, "rental_listEvents", map[string]interface{}{"after": 0}, &events)
	require.Equal(t, events.Head, events.Events[len(events.Events)-1].Sequence)
	last := events.Events[len(events.Events)-1].Event
	require.Equal(t, "rental.cancelled", last.Type)

	var quote QuoteResult
	env.mustCall(t, nil, "rental_quote", map[string]interface{}{"listingId": listing.ID, "months": 3}, &quote)
	require.Equal(t, "2400000000", quote.Amount)
	require.Equal(t, "ok", quote.Status)
}

func TestMutatingMethodsRequireToken(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec, resp := env.call(t, nil, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	forged, err := IssueToken("other-secret", hostAddr, "", "", time.Hour, time.Now())
	require.NoError(t, err)
	rec, resp = env.call(t, nil, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, map[string]string{
		"Authorization": "Bearer " + forged,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	expired, err := IssueToken(testSecret, hostAddr, "", "", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, resp = env.call(t, nil, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, map[string]string{
		"Authorization": "Bearer " + expired,
	})
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	env := newTestEnv(t, Config{Auth: AuthConfig{Issuer: "trustrentctl", Audience: "trustrentd"}})
	wrong, err := IssueToken(testSecret, hostAddr, "someone", "trustrentd", time.Hour, time.Now())
	require.NoError(t, err)
	_, resp := env.call(t, nil, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, map[string]string{
		"Authorization": "Bearer " + wrong,
	})
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	good, err := IssueToken(testSecret, hostAddr, "trustrentctl", "trustrentd", time.Hour, time.Now())
	require.NoError(t, err)
	_, resp = env.call(t, nil, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, map[string]string{
		"Authorization": "Bearer " + good,
	})
	require.Nil(t, resp.Error)
}

func TestDomainErrorCodes(t *testing.T) {
	env := newTestEnv(t, Config{})
	listing, booking := env.bookOneListing(t, 2)

	_, resp := env.call(t, &guestAddr, "rental_book", map[string]interface{}{"listingId": listing.ID, "start": testStart + day, "months": 1}, nil)
	require.Equal(t, codeOverlap, resp.Error.Code)
	require.Equal(t, "Overlap booking", resp.Error.Message)

	_, resp = env.call(t, &otherAddr, "rental_raiseDispute", map[string]interface{}{"bookingId": booking.ID}, nil)
	require.Equal(t, codeForbidden, resp.Error.Code)

	_, resp = env.call(t, &hostAddr, "rental_releaseAvailable", map[string]interface{}{"bookingId": booking.ID}, nil)
	require.Equal(t, codeNothingToRelease, resp.Error.Code)

	env.mustCall(t, &guestAddr, "rental_raiseDispute", map[string]interface{}{"bookingId": booking.ID}, nil)
	_, resp = env.call(t, &guestAddr, "rental_cancelEarly", map[string]interface{}{"bookingId": booking.ID}, nil)
	require.Equal(t, codeInvalidState, resp.Error.Code)

	_, resp = env.call(t, &arbiterAddr, "rental_resolveDispute", map[string]interface{}{
		"bookingId": booking.ID, "hostAmount": "1600000000", "guestAmount": "1",
	}, nil)
	require.Equal(t, codeExceedEscrow, resp.Error.Code)
	require.Equal(t, "Exceed escrow", resp.Error.Message)

	_, resp = env.call(t, nil, "rental_getBooking", map[string]interface{}{"bookingId": 99}, nil)
	require.Equal(t, codeNotFound, resp.Error.Code)

	_, resp = env.call(t, &otherAddr, "bank_transfer", map[string]interface{}{"to": crypto.FormatAddress(hostAddr), "amount": "5"}, nil)
	require.Equal(t, codeInsufficientFunds, resp.Error.Code)

	_, resp = env.call(t, &hostAddr, "rental_addListing", map[string]interface{}{"pricePerMonth": "-1"}, nil)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = env.call(t, &hostAddr, "rental_addListing", map[string]interface{}{"price": "1"}, nil)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestPauseOverRPC(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, resp := env.call(t, &hostAddr, "rental_setPaused", map[string]interface{}{"paused": true}, nil)
	require.Equal(t, codeForbidden, resp.Error.Code)

	env.mustCall(t, &arbiterAddr, "rental_setPaused", map[string]interface{}{"paused": true}, nil)
	_, resp = env.call(t, &hostAddr, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, nil)
	require.Equal(t, codePaused, resp.Error.Code)

	var info InfoResult
	env.mustCall(t, nil, "rental_info", nil, &info)
	require.True(t, info.Paused)
	require.Equal(t, crypto.FormatAddress(arbiterAddr), info.Arbiter)

	env.mustCall(t, &arbiterAddr, "rental_setPaused", map[string]interface{}{"paused": false}, nil)
	env.mustCall(t, &hostAddr, "rental_addListing", map[string]interface{}{"pricePerMonth": "1"}, nil)
}

func TestIdempotencyKeyReplaysFirstOutcome(t *testing.T) {
	env := newTestEnv(t, Config{})
	params := map[string]interface{}{"to": crypto.FormatAddress(hostAddr), "amount": "100"}
	headers := map[string]string{headerIdempotency: "transfer-1"}

	rec, resp := env.call(t, &guestAddr, "bank_transfer", params, headers)
	require.Nil(t, resp.Error)
	require.Empty(t, rec.Header().Get("X-Idempotency-Cache"))

	rec, resp = env.call(t, &guestAddr, "bank_transfer", params, headers)
	require.Nil(t, resp.Error)
	require.Equal(t, "hit", rec.Header().Get("X-Idempotency-Cache"))
	require.JSONEq(t, "7", string(resp.ID))

	var balance AmountResult
	env.mustCall(t, nil, "bank_balance", map[string]interface{}{"address": crypto.FormatAddress(hostAddr)}, &balance)
	require.Equal(t, "100", balance.Amount)

	// The key is scoped to the caller.
	env.mustCall(t, &hostAddr, "bank_faucet", nil, nil)
	rec, _ = env.call(t, &hostAddr, "bank_transfer", map[string]interface{}{"to": crypto.FormatAddress(otherAddr), "amount": "1"}, headers)
	require.Empty(t, rec.Header().Get("X-Idempotency-Cache"))
}

func TestIdempotencyKeyRejectsInFlightDuplicate(t *testing.T) {
	env := newTestEnv(t, Config{})
	params := map[string]interface{}{"to": crypto.FormatAddress(hostAddr), "amount": "100"}
	headers := map[string]string{headerIdempotency: "transfer-2"}
	key := idempotencyKey(guestAddr, "bank_transfer", "transfer-2")

	_, found, err := env.server.idempotency.reserve(key, time.Now())
	require.NoError(t, err)
	require.False(t, found)

	rec, resp := env.call(t, &guestAddr, "bank_transfer", params, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInFlight, resp.Error.Code)

	var balance AmountResult
	env.mustCall(t, nil, "bank_balance", map[string]interface{}{"address": crypto.FormatAddress(hostAddr)}, &balance)
	require.Equal(t, "0", balance.Amount)

	require.NoError(t, env.server.idempotency.release(key))
	rec, resp = env.call(t, &guestAddr, "bank_transfer", params, headers)
	require.Nil(t, resp.Error)
	require.Equal(t, http.StatusOK, rec.Code)
	env.mustCall(t, nil, "bank_balance", map[string]interface{}{"address": crypto.FormatAddress(hostAddr)}, &balance)
	require.Equal(t, "100", balance.Amount)
}

func TestIdempotencyKeyExecutesConcurrentDuplicatesOnce(t *testing.T) {
	env := newTestEnv(t, Config{})
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      7,
		"method":  "bank_transfer",
		"params":  []interface{}{map[string]interface{}{"to": crypto.FormatAddress(hostAddr), "amount": "100"}},
	})
	require.NoError(t, err)

	const callers = 8
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
			req.RemoteAddr = "192.0.2.1:5000"
			req.Header.Set("Authorization", "Bearer "+env.tokens[guestAddr])
			req.Header.Set(headerIdempotency, "transfer-3")
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		require.Contains(t, []int{http.StatusOK, http.StatusConflict}, code)
	}
	var balance AmountResult
	env.mustCall(t, nil, "bank_balance", map[string]interface{}{"address": crypto.FormatAddress(hostAddr)}, &balance)
	require.Equal(t, "100", balance.Amount)
}

func TestIdempotencyReservationLifecycle(t *testing.T) {
	store, err := openIdempotencyStore(filepath.Join(t.TempDir(), "idem.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	now := time.Unix(testStart, 0)

	_, found, err := store.reserve("k", now)
	require.NoError(t, err)
	require.False(t, found)
	_, _, err = store.reserve("k", now.Add(time.Second))
	require.ErrorIs(t, err, errIdempotencyInFlight)

	// A reservation abandoned past its window can be reclaimed.
	_, found, err = store.reserve("k", now.Add(pendingIdempotencyTTL+time.Second))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.put("k", idempotencyRecord{StatusCode: http.StatusOK, Body: []byte(`{"id":1}`), StoredAt: now}))
	record, found, err := store.reserve("k", now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, record.Pending)
	require.Equal(t, http.StatusOK, record.StatusCode)

	_, found, err = store.reserve("k", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.False(t, found)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerSecond: 0.001, RateLimitBurst: 1})
	rec, resp := env.call(t, nil, "rental_info", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	rec, resp = env.call(t, nil, "rental_info", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestClientSourceHonoursTrustedProxies(t *testing.T) {
	s := &Server{cfg: Config{TrustProxyHeaders: true, TrustedProxies: []string{"10.0.0.0/8"}}}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")

	req.RemoteAddr = "10.1.2.3:443"
	require.Equal(t, "203.0.113.9", s.clientSource(req))

	req.RemoteAddr = "198.51.100.7:443"
	require.Equal(t, "198.51.100.7", s.clientSource(req))
}

func TestEnvelopeErrors(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, resp := env.call(t, nil, "rental_doesNotExist", nil, nil)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var parsed testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Equal(t, codeParseError, parsed.Error.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	env.call(t, nil, "rental_info", nil, nil)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "trustrent_")
}

func TestEventsWebsocketStreamsBacklogThenLive(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?cursor=0", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() types.JournalEntry {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var entry types.JournalEntry
		require.NoError(t, json.Unmarshal(data, &entry))
		return entry
	}

	backlog := read()
	require.Equal(t, uint64(1), backlog.Sequence)
	require.Equal(t, "bank.mint", backlog.Event.Type)

	_, err = env.node.AddListing(hostAddr, big.NewInt(100))
	require.NoError(t, err)
	live := read()
	require.Equal(t, uint64(2), live.Sequence)
	require.Equal(t, "rental.listing_added", live.Event.Type)
}

func TestEventsWebsocketDeliversBurstWithoutGaps(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?cursor=0", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var first types.JournalEntry
	require.NoError(t, json.Unmarshal(data, &first))
	require.Equal(t, uint64(1), first.Sequence)

	const listings = 200
	for i := 0; i < listings; i++ {
		_, err := env.node.AddListing(hostAddr, big.NewInt(100))
		require.NoError(t, err)
	}
	for want := uint64(2); want <= listings+1; want++ {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var entry types.JournalEntry
		require.NoError(t, json.Unmarshal(data, &entry))
		require.Equal(t, want, entry.Sequence)
	}
}
