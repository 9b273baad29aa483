package quotes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/quantfolio/trading-bot/internal/logger"
)

const (
	_writeTimeout = 10 * time.Second
	_readTimeout  = 60 * time.Second
	_pingInterval = 20 * time.Second
)

type streamMessage struct {
	Type   string  `json:"T"`
	Symbol string  `json:"S"`
	Bid    float64 `json:"bp"`
	Ask    float64 `json:"ap"`
	At     string  `json:"t"`
	Msg    string  `json:"msg"`
}

// Stream keeps a websocket connection to a market data feed and caches the
// latest quote per subscribed symbol. It satisfies Source from the cache, so
// consumers never block on the wire.
type Stream struct {
	url     string
	key     string
	secret  string
	symbols []string
	logger  logger.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	cache  map[string]Quote
	cancel context.CancelFunc
}

func NewStream(url, key, secret string, symbols []string, logger logger.Logger) *Stream {
	return &Stream{
		url:     url,
		key:     key,
		secret:  secret,
		symbols: symbols,
		logger:  logger,
		cache:   make(map[string]Quote),
	}
}

// Connect dials, authenticates and subscribes, then starts the read pump.
func (s *Stream) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("can't dial quote stream %s: %w", s.url, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	auth := fmt.Sprintf(`{"action":"auth","key":%q,"secret":%q}`, s.key, s.secret)
	if err := s.write([]byte(auth)); err != nil {
		return fmt.Errorf("can't auth quote stream: %w", err)
	}
	sub := fmt.Sprintf(`{"action":"subscribe","quotes":[%q]}`, strings.Join(s.symbols, `","`))
	if err := s.write([]byte(sub)); err != nil {
		return fmt.Errorf("can't subscribe quote stream: %w", err)
	}

	go s.readPump(ctx)
	go s.pingPump(ctx)

	return nil
}

func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *Stream) write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(_writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Stream) readPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(_readTimeout))
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Errorf("%s: quote stream read failed, stopping pump", err)
			return
		}

		var msgs []streamMessage
		if err := sonic.Unmarshal(raw, &msgs); err != nil {
			s.logger.Warnf("%s: can't decode quote stream message", err)
			continue
		}

		for _, m := range msgs {
			switch m.Type {
			case "q":
				at, _ := time.Parse(time.RFC3339Nano, m.At)
				s.mu.Lock()
				s.cache[m.Symbol] = Quote{Symbol: m.Symbol, Bid: m.Bid, Ask: m.Ask, At: at}
				s.mu.Unlock()
			case "error":
				s.logger.Errorf("quote stream error: %s", m.Msg)
			}
		}
	}
}

func (s *Stream) pingPump(ctx context.Context) {
	ticker := time.NewTicker(_pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(_writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				s.logger.Warnf("%s: quote stream ping failed", err)
			}
		}
	}
}

func (s *Stream) Latest(_ context.Context, symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.cache[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("no quote for %s yet", symbol)
	}
	return q, nil
}
