package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newVenueServer starts a websocket server that runs handler for each
// session and returns a dialer pointed at it.
func newVenueServer(t *testing.T, handler func(*websocket.Conn)) *WSDialer {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1089", r.URL.Query().Get("app_id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	return &WSDialer{
		Endpoint:         strings.Replace(server.URL, "http://", "ws://", 1),
		AppID:            "1089",
		HandshakeTimeout: time.Second,
	}
}

func recvFrame(t *testing.T, c Conn) (Frame, bool) {
	t.Helper()
	select {
	case f, ok := <-c.Inbound():
		return f, ok
	case <-time.After(2 * time.Second):
		t.Fatal("no frame within 2s")
		return Frame{}, false
	}
}

func TestWSConn_RoundTrip(t *testing.T) {
	got := make(chan string, 1)
	d := newVenueServer(t, func(conn *websocket.Conn) {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- string(b)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"ping","ping":"pong"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"proposal","proposal":{"id":"Q1","ask_price":10.5,"payout":19}}`))
		conn.ReadMessage() // wait for client close
	})

	c, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(context.Background(), Authorize{Token: "secret"}))
	select {
	case frame := <-got:
		assert.JSONEq(t, `{"authorize":"secret","req_id":1}`, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}

	f, ok := recvFrame(t, c)
	require.True(t, ok)
	assert.Equal(t, Notice{Type: "ping"}, f.Msg)

	f, ok = recvFrame(t, c)
	require.True(t, ok)
	require.NoError(t, f.Err)
	q, isQuote := f.Msg.(PriceQuote)
	require.True(t, isQuote)
	assert.Equal(t, "Q1", q.QuoteID)
	assert.True(t, decimal.RequireFromString("10.5").Equal(q.AskPrice))
}

func TestWSConn_RemoteCloseEndsStream(t *testing.T) {
	d := newVenueServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	c, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer c.Close()

	_, ok := recvFrame(t, c)
	assert.False(t, ok, "stream should end on remote close")
}

func TestWSConn_BadFrameIsError(t *testing.T) {
	d := newVenueServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{{{`))
		conn.ReadMessage()
	})

	c, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer c.Close()

	f, ok := recvFrame(t, c)
	require.True(t, ok)
	assert.Error(t, f.Err)
	assert.Nil(t, f.Msg)

	_, ok = recvFrame(t, c)
	assert.False(t, ok, "error frame must be the last one")
}

func TestWSConn_CloseIdempotentAndSendAfterClose(t *testing.T) {
	d := newVenueServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	c, err := d.Dial(context.Background())
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NotPanics(t, func() { c.Close() })

	err = c.Send(context.Background(), Authorize{Token: "x"})
	assert.ErrorIs(t, err, ErrClosed)

	_, ok := recvFrame(t, c)
	assert.False(t, ok)
}

func TestWSDialer_Errors(t *testing.T) {
	d := &WSDialer{Endpoint: "https://example.com"}
	_, err := d.Dial(context.Background())
	assert.Error(t, err)

	d = &WSDialer{Endpoint: "ws://127.0.0.1:1", HandshakeTimeout: 200 * time.Millisecond}
	_, err = d.Dial(context.Background())
	assert.Error(t, err)
}

func TestWSDialer_URL(t *testing.T) {
	d := &WSDialer{Endpoint: "wss://ws.derivws.com/websockets/v3", AppID: "1089"}
	u, err := d.URL()
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.derivws.com/websockets/v3?app_id=1089", u)
}
