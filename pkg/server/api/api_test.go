package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/poster-oracle/pkg/oracle"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

var (
	oracleAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	owner      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	poster     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	modelAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")

	wbtc = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	usdc = common.HexToAddress("0x0000000000000000000000000000000000000b02")

	t0 = time.Unix(1_700_000_000, 0)

	testAssets = []Asset{{Symbol: "WBTC", Address: wbtc}, {Symbol: "USDC", Address: usdc}}
)

func newOracle(t *testing.T) *oracle.Oracle {
	t.Helper()
	o := oracle.New(oracle.Config{Address: oracleAddr, Owner: owner, Poster: poster})
	m, err := pricemodel.NewPosterModel(pricemodel.PosterConfig{
		Name:          "poster",
		Owner:         oracleAddr,
		ValidInterval: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, o.Register(modelAddr, m))
	require.NoError(t, o.SetAssetPriceModel(owner, wbtc, modelAddr))

	price, err := pricemodel.ParseFixed("30000.25")
	require.NoError(t, err)
	require.NoError(t, o.SetPrice(poster, wbtc, price, t0))
	return o
}

func newTestServer(t *testing.T) (*Server, *oracle.Oracle) {
	t.Helper()
	o := newOracle(t)
	s := NewServer(":0", o, testAssets, nil)
	s.clock = func() time.Time { return t0.Add(time.Minute) }
	return s, o
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, o := newTestServer(t)

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Paused)

	require.NoError(t, o.SetPaused(owner, true))
	rec = get(t, s.Handler(), "/health")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.True(t, health.Paused)
}

func TestPrices(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/v1/prices", "/latest"} {
		rec := get(t, s.Handler(), path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var prices []PriceData
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&prices))
		require.Len(t, prices, 2)

		assert.Equal(t, "WBTC", prices[0].Symbol)
		assert.Equal(t, "30000.25", prices[0].Price)
		assert.Equal(t, "30000250000000000000000", prices[0].Raw)
		assert.True(t, prices[0].Valid)
		assert.Equal(t, modelAddr.Hex(), prices[0].Model)

		assert.Equal(t, "USDC", prices[1].Symbol)
		assert.Equal(t, "0", prices[1].Price)
		assert.False(t, prices[1].Valid)
		assert.Empty(t, prices[1].Model)
	}
}

func TestAssetPrice(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantPrice string
		wantValid bool
	}{
		{"by symbol", "/v1/prices/wbtc", http.StatusOK, "30000.25", true},
		{"by address", "/v1/prices/" + strings.ToLower(wbtc.Hex()), http.StatusOK, "30000.25", true},
		{"unrouted address", "/v1/prices/0x0000000000000000000000000000000000000bff", http.StatusOK, "0", false},
		{"unknown symbol", "/v1/prices/DOGE", http.StatusNotFound, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s.Handler(), tt.path)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var p PriceData
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
			assert.Equal(t, tt.wantPrice, p.Price)
			assert.Equal(t, tt.wantValid, p.Valid)
		})
	}
}

func TestPrices_Stale(t *testing.T) {
	s, _ := newTestServer(t)
	s.clock = func() time.Time { return t0.Add(2 * time.Hour) }

	var p PriceData
	require.NoError(t, json.NewDecoder(get(t, s.Handler(), "/v1/prices/WBTC").Body).Decode(&p))
	assert.Equal(t, "30000.25", p.Price)
	assert.False(t, p.Valid)
}

// fakeStream hands the subscribed channel to the test.
type fakeStream struct {
	mu    sync.Mutex
	ch    chan<- oracle.PostEvent
	ready chan struct{}
}

func (f *fakeStream) Subscribe(ch chan<- oracle.PostEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = ch
	close(f.ready)
}

func (f *fakeStream) Unsubscribe(chan<- oracle.PostEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = nil
}

func (f *fakeStream) push(ev oracle.PostEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch <- ev
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestWebSocket(t *testing.T) {
	stream := &fakeStream{ready: make(chan struct{})}
	o := newOracle(t)
	ws := NewWebSocketServer(stream, o, testAssets, nil)
	ws.clock = func() time.Time { return t0.Add(time.Minute) }

	s := NewServer(":0", o, testAssets, nil)
	s.SetWebSocketServer(ws, "/ws")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx) }()
	<-stream.ready

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Narrow the subscription to USDC and wait for the ack.
	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "subscribe", Assets: []string{"usdc"}}))
	var ack map[string]string
	readJSON(t, conn, &ack)
	assert.Equal(t, MsgSubscribed, ack["type"])

	// The subscribe is followed by a snapshot of the followed assets.
	var snap PriceUpdateMessage
	readJSON(t, conn, &snap)
	assert.Equal(t, MsgSnapshot, snap.Type)
	assert.Equal(t, "2023-11-14T22:14:20Z", snap.Timestamp)
	require.Len(t, snap.Prices, 1)
	assert.Equal(t, "USDC", snap.Prices[0].Symbol)
	assert.Equal(t, "0", snap.Prices[0].Price)
	assert.False(t, snap.Prices[0].Valid)

	stream.push(oracle.PostEvent{Asset: wbtc, Model: modelAddr, Price: big.NewInt(1), Valid: true, Timestamp: t0})
	stream.push(oracle.PostEvent{Asset: usdc, Model: modelAddr, Price: new(big.Int).Set(pricemodel.BASE), Valid: true, Timestamp: t0})

	var update PriceUpdateMessage
	readJSON(t, conn, &update)
	assert.Equal(t, MsgPriceUpdate, update.Type)
	assert.Equal(t, "2023-11-14T22:13:20Z", update.Timestamp)
	require.Len(t, update.Prices, 1)
	assert.Equal(t, "USDC", update.Prices[0].Symbol)
	assert.Equal(t, "1", update.Prices[0].Price)
	assert.True(t, update.Prices[0].Valid)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	var pong map[string]string
	readJSON(t, conn, &pong)
	assert.Equal(t, MsgPong, pong["type"])

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
