// Package api provides HTTP and WebSocket endpoints for reading oracle prices.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/metrics"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
	"github.com/StrathCole/poster-oracle/pkg/version"
)

// Reader is the oracle read surface the API serves.
type Reader interface {
	GetUnderlyingPriceAndStatus(ctx context.Context, asset common.Address, now time.Time) (*big.Int, bool)
	PriceModel(asset common.Address) common.Address
	Paused() bool
}

// Asset names an asset for the API.
type Asset struct {
	Symbol  string
	Address common.Address
}

// PriceData represents a single asset price. Price is a decimal string;
// Raw is the fixed-point value scaled by 1e18.
type PriceData struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
	Price   string `json:"price"`
	Raw     string `json:"raw"`
	Valid   bool   `json:"valid"`
	Model   string `json:"model,omitempty"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Paused  bool   `json:"paused"`
	Version string `json:"version"`
}

// Server represents the HTTP API server.
type Server struct {
	addr     string
	oracle   Reader
	assets   *assetIndex
	server   *http.Server
	logger   *logging.Logger
	wsServer *WebSocketServer // Optional WebSocket server for streaming
	wsPath   string
	clock    func() time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, oracle Reader, assets []Asset, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Server{
		addr:   addr,
		oracle: oracle,
		assets: newAssetIndex(assets),
		server: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
		clock:  time.Now,
	}
}

// SetWebSocketServer mounts ws at path for streaming posts.
func (s *Server) SetWebSocketServer(ws *WebSocketServer, path string) {
	s.wsServer = ws
	s.wsPath = path
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/prices", s.handlePrices)
	mux.HandleFunc("GET /v1/prices/{asset}", s.handleAssetPrice)
	mux.HandleFunc("GET /latest", s.handlePrices)
	if s.wsServer != nil {
		mux.HandleFunc(s.wsPath, s.wsServer.HandleWebSocket)
	}
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server.Handler = s.Handler()

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// StartTLS starts the HTTP server with the given certificate.
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.server.Handler = s.Handler()

	s.logger.Info("Starting HTTPS server", "addr", s.addr)
	if err := s.server.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTPS server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server. A server stopped before Start
// never begins listening.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Paused:  s.oracle.Paused(),
		Version: version.Version,
	})
}

// handlePrices handles /v1/prices and /latest endpoints.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/prices", "200", time.Since(start))
	}()

	now := s.clock()
	out := make([]PriceData, 0, len(s.assets.list))
	for _, a := range s.assets.list {
		out = append(out, readPrice(r.Context(), s.oracle, a, now))
	}
	s.sendJSON(w, http.StatusOK, out)
}

// handleAssetPrice handles /v1/prices/{asset}, where asset is a symbol or address.
func (s *Server) handleAssetPrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/prices/{asset}", status, time.Since(start))
	}()

	a, ok := s.assets.resolve(r.PathValue("asset"))
	if !ok {
		status = "404"
		http.Error(w, "unknown asset", http.StatusNotFound)
		return
	}
	s.sendJSON(w, http.StatusOK, readPrice(r.Context(), s.oracle, a, s.clock()))
}

// readPrice reads one asset through the oracle, the same way for HTTP and
// websocket snapshots.
func readPrice(ctx context.Context, reader Reader, a Asset, now time.Time) PriceData {
	price, valid := reader.GetUnderlyingPriceAndStatus(ctx, a.Address, now)
	d := PriceData{
		Symbol:  a.Symbol,
		Address: a.Address.Hex(),
		Price:   pricemodel.ToDecimal(price).String(),
		Raw:     price.String(),
		Valid:   valid,
	}
	if m := reader.PriceModel(a.Address); m != (common.Address{}) {
		d.Model = m.Hex()
	}
	return d
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// assetIndex resolves symbols and addresses to configured assets.
type assetIndex struct {
	list      []Asset
	bySymbol  map[string]Asset
	byAddress map[common.Address]Asset
}

func newAssetIndex(assets []Asset) *assetIndex {
	idx := &assetIndex{
		list:      assets,
		bySymbol:  make(map[string]Asset, len(assets)),
		byAddress: make(map[common.Address]Asset, len(assets)),
	}
	for _, a := range assets {
		idx.bySymbol[strings.ToUpper(a.Symbol)] = a
		idx.byAddress[a.Address] = a
	}
	return idx
}

// resolve accepts a configured symbol or any hex address; unknown
// addresses are served without a symbol.
func (idx *assetIndex) resolve(key string) (Asset, bool) {
	if a, ok := idx.bySymbol[strings.ToUpper(key)]; ok {
		return a, true
	}
	if common.IsHexAddress(key) {
		addr := common.HexToAddress(key)
		if a, ok := idx.byAddress[addr]; ok {
			return a, true
		}
		return Asset{Address: addr}, true
	}
	return Asset{}, false
}

func (idx *assetIndex) symbol(addr common.Address) string {
	return idx.byAddress[addr].Symbol
}
