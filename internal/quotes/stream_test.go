package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/trading-bot/internal/logger"
)

// fakeFeed upgrades the connection, records the client's auth and subscribe
// messages and pushes whatever quote frames the test hands it.
type fakeFeed struct {
	server   *httptest.Server
	received chan string
	push     chan string
}

func newFakeFeed(t *testing.T) *fakeFeed {
	t.Helper()

	f := &fakeFeed{received: make(chan string, 4), push: make(chan string, 4)}
	upgrader := websocket.Upgrader{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				f.received <- string(raw)
			}
		}()

		for frame := range f.push {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		close(f.push)
		f.server.Close()
	})
	return f
}

func (f *fakeFeed) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func TestStream_AuthenticatesAndSubscribes(t *testing.T) {
	t.Parallel()

	f := newFakeFeed(t)
	s := NewStream(f.url(), "stream-key", "stream-secret", []string{"AAPL", "MSFT"}, logger.Noop{})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	auth := <-f.received
	assert.Contains(t, auth, `"action":"auth"`)
	assert.Contains(t, auth, `"key":"stream-key"`)

	sub := <-f.received
	assert.Contains(t, sub, `"action":"subscribe"`)
	assert.Contains(t, sub, `"quotes":["AAPL","MSFT"]`)
}

func TestStream_CachesLatestQuote(t *testing.T) {
	t.Parallel()

	f := newFakeFeed(t)
	s := NewStream(f.url(), "k", "s", []string{"AAPL"}, logger.Noop{})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	_, err := s.Latest(context.Background(), "AAPL")
	assert.Error(t, err)

	f.push <- `[{"T":"q","S":"AAPL","bp":99.5,"ap":100.5,"t":"2024-06-03T14:30:00Z"}]`

	var q Quote
	require.Eventually(t, func() bool {
		var err error
		q, err = s.Latest(context.Background(), "AAPL")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	assert.InDelta(t, 99.5, q.Bid, 1e-9)
	assert.InDelta(t, 100.5, q.Ask, 1e-9)
	assert.Equal(t, 2024, q.At.Year())

	// later frame replaces the cached one
	f.push <- `[{"T":"q","S":"AAPL","bp":101,"ap":102,"t":"2024-06-03T14:31:00Z"}]`
	require.Eventually(t, func() bool {
		q, err := s.Latest(context.Background(), "AAPL")
		return err == nil && q.Bid == 101
	}, time.Second, 5*time.Millisecond)
}

func TestStream_IgnoresMalformedFrames(t *testing.T) {
	t.Parallel()

	f := newFakeFeed(t)
	s := NewStream(f.url(), "k", "s", []string{"AAPL"}, logger.Noop{})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	f.push <- `not json`
	f.push <- `[{"T":"error","msg":"auth failed"}]`
	f.push <- `[{"T":"q","S":"AAPL","bp":10,"ap":11,"t":"2024-06-03T14:30:00Z"}]`

	require.Eventually(t, func() bool {
		_, err := s.Latest(context.Background(), "AAPL")
		return err == nil
	}, time.Second, 5*time.Millisecond)
}
