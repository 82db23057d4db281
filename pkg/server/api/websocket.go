package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/oracle"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBuffer  = 256
	eventBuffer = 100
)

// Message types exchanged with clients.
const (
	MsgSubscribe    = "subscribe"
	MsgUnsubscribe  = "unsubscribe"
	MsgPing         = "ping"
	MsgPong         = "pong"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgSnapshot     = "snapshot"
	MsgPriceUpdate  = "price_update"
)

// PostStream delivers oracle post events.
type PostStream interface {
	Subscribe(ch chan<- oracle.PostEvent)
	Unsubscribe(ch chan<- oracle.PostEvent)
}

// WebSocketServer streams stored prices to connected clients. When a reader
// is set, every subscribe is answered with a snapshot of the current prices.
type WebSocketServer struct {
	stream   PostStream
	reader   Reader
	assets   *assetIndex
	logger   *logging.Logger
	upgrader websocket.Upgrader
	clock    func() time.Time

	mu      sync.RWMutex
	clients map[*WebSocketClient]struct{}
}

// WebSocketClient is one connected client.
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *WebSocketServer
	sub    *subscription
}

// WebSocketMessage is a client request.
type WebSocketMessage struct {
	Type   string   `json:"type"`   // subscribe, unsubscribe, ping
	Assets []string `json:"assets"` // symbols or addresses, "*" or empty for all
}

// PriceUpdateMessage carries prices to clients, either a single post
// (price_update) or the current state after a subscribe (snapshot).
type PriceUpdateMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"` // RFC 3339
	Prices    []PriceData `json:"prices"`
}

// NewWebSocketServer creates a WebSocket server. reader may be nil, in which
// case subscriptions get no snapshot.
func NewWebSocketServer(stream PostStream, reader Reader, assets []Asset, logger *logging.Logger) *WebSocketServer {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &WebSocketServer{
		stream: stream,
		reader: reader,
		assets: newAssetIndex(assets),
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clock:   time.Now,
		clients: make(map[*WebSocketClient]struct{}),
	}
}

// Run forwards post events to clients until ctx is cancelled, then
// disconnects everyone.
func (s *WebSocketServer) Run(ctx context.Context) error {
	events := make(chan oracle.PostEvent, eventBuffer)
	s.stream.Subscribe(events)
	defer s.stream.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			s.dropAll()
			return ctx.Err()
		case ev := <-events:
			s.publish(ev)
		}
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &WebSocketClient{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
		sub:    newSubscription(),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	s.logger.Info("Client connected", "remote", conn.RemoteAddr().String())
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// drop removes c and closes its send channel exactly once.
func (s *WebSocketServer) drop(c *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *WebSocketServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

// deliver queues data for c unless c has been dropped or its buffer is full.
func (s *WebSocketServer) deliver(c *WebSocketClient, data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[c]; ok {
		c.queue(data)
	}
}

func (s *WebSocketServer) publish(ev oracle.PostEvent) {
	symbol := s.assets.symbol(ev.Asset)
	address := ev.Asset.Hex()
	data, err := json.Marshal(PriceUpdateMessage{
		Type:      MsgPriceUpdate,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Prices: []PriceData{{
			Symbol:  symbol,
			Address: address,
			Price:   pricemodel.ToDecimal(ev.Price).String(),
			Raw:     ev.Price.String(),
			Valid:   ev.Valid,
			Model:   ev.Model.Hex(),
		}},
	})
	if err != nil {
		s.logger.Error("Failed to marshal price update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.sub.matches(symbol, address) {
			c.queue(data)
		}
	}
}

// snapshot reads the current price of every configured asset matching sub.
func (s *WebSocketServer) snapshot(ctx context.Context, sub *subscription) ([]byte, error) {
	now := s.clock()
	prices := make([]PriceData, 0, len(s.assets.list))
	for _, a := range s.assets.list {
		if sub.matches(a.Symbol, a.Address.Hex()) {
			prices = append(prices, readPrice(ctx, s.reader, a, now))
		}
	}
	return json.Marshal(PriceUpdateMessage{
		Type:      MsgSnapshot,
		Timestamp: now.UTC().Format(time.RFC3339),
		Prices:    prices,
	})
}

func (c *WebSocketClient) queue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.server.logger.Warn("Client send buffer full, dropping message", "remote", c.conn.RemoteAddr().String())
	}
}

func (c *WebSocketClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.server.logger.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) readLoop() {
	defer func() {
		c.server.drop(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("Connection closed unexpectedly", "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *WebSocketClient) handle(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Debug("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case MsgPing:
		c.reply(MsgPong)
	case MsgSubscribe:
		c.sub.add(msg.Assets)
		c.reply(MsgSubscribed)
		if c.server.reader != nil {
			data, err := c.server.snapshot(context.Background(), c.sub)
			if err != nil {
				c.server.logger.Error("Failed to marshal snapshot", "error", err)
				return
			}
			c.server.deliver(c, data)
		}
	case MsgUnsubscribe:
		c.sub.remove(msg.Assets)
		c.reply(MsgUnsubscribed)
	default:
		c.server.logger.Debug("Unknown message type", "type", msg.Type)
	}
}

func (c *WebSocketClient) reply(msgType string) {
	data, _ := json.Marshal(map[string]string{"type": msgType})
	c.server.deliver(c, data)
}

// subscription is the set of assets a client follows. New clients follow all.
type subscription struct {
	mu   sync.RWMutex
	all  bool
	keys map[string]struct{} // upper-cased symbols, lower-cased hex addresses
}

func newSubscription() *subscription {
	return &subscription{all: true, keys: make(map[string]struct{})}
}

func isWildcard(assets []string) bool {
	return len(assets) == 0 || (len(assets) == 1 && assets[0] == "*")
}

func (s *subscription) add(assets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isWildcard(assets) {
		s.all = true
		s.keys = make(map[string]struct{})
		return
	}
	s.all = false
	for _, a := range assets {
		s.keys[subscriptionKey(a)] = struct{}{}
	}
}

func (s *subscription) remove(assets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isWildcard(assets) {
		s.all = false
		s.keys = make(map[string]struct{})
		return
	}
	for _, a := range assets {
		delete(s.keys, subscriptionKey(a))
	}
}

func (s *subscription) matches(symbol, address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.all {
		return true
	}
	if symbol != "" {
		if _, ok := s.keys[subscriptionKey(symbol)]; ok {
			return true
		}
	}
	_, ok := s.keys[subscriptionKey(address)]
	return ok
}

func subscriptionKey(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strings.ToLower(s)
	}
	return strings.ToUpper(s)
}
