package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bamikavision/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, hub *Hub, allowed []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ServeWS(hub, allowed))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub, nil)

	first := dial(t, srv, nil)
	second := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	msg := models.ContactMessage{ID: 7, Name: "Ada", Email: "ada@example.com", Message: "Hello there", CreatedAt: time.Now().UTC()}
	require.NoError(t, hub.NotifyNewMessage(context.Background(), msg))

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventNewMessage, ev.Type)
		assert.Equal(t, msg.ID, ev.Message.ID)
		assert.Equal(t, "Hello there", ev.Message.Message)
	}
}

func TestClosedClientIsUnregistered(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub, nil)

	stays := dial(t, srv, nil)
	leaves := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, leaves.Close())
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.NotifyNewMessage(context.Background(), models.ContactMessage{ID: 1}))
	assert.Equal(t, int64(1), readEvent(t, stays).Message.ID)
}

func TestBroadcastWithNoClients(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.NotifyNewMessage(context.Background(), models.ContactMessage{ID: 1}))
	assert.Zero(t, hub.Broadcast([]byte("{}")))
}

func TestSlowClientDoesNotBlockOthers(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, send: make(chan []byte, 1), remoteAddr: "slow"}
	fast := &Client{hub: hub, send: make(chan []byte, 4), remoteAddr: "fast"}
	hub.Register(slow)
	hub.Register(fast)

	assert.Zero(t, hub.Broadcast([]byte("one")))
	assert.Equal(t, 1, hub.Broadcast([]byte("two")))

	err := hub.NotifyNewMessage(context.Background(), models.ContactMessage{ID: 3})
	assert.Error(t, err)
	assert.Len(t, fast.send, 3)
	assert.Len(t, slow.send, 1)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 1), remoteAddr: "test"}
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Zero(t, hub.Count())

	_, open := <-c.send
	assert.False(t, open)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub, nil)
	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestPingGetsPong(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub, nil)
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readEvent(t, conn).Type)
}

func TestOriginCheck(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub, []string{"https://bamikavision.com"})

	dial(t, srv, http.Header{"Origin": {"https://bamikavision.com"}})
	dial(t, srv, http.Header{"Origin": {srv.URL}})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestReplySkipsUnregisteredClient(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 1), remoteAddr: "test"}
	hub.Register(c)
	assert.True(t, hub.reply(c, []byte("first")))
	assert.False(t, hub.reply(c, []byte("full")))

	hub.Unregister(c)
	assert.NotPanics(t, func() {
		assert.False(t, hub.reply(c, []byte("late")))
	})
}

func TestPingAfterUnregister(t *testing.T) {
	hub := NewHub()
	result := make(chan any, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			result <- err
			return
		}
		c := NewClient(hub, conn, r.RemoteAddr)
		hub.Register(c)
		hub.Unregister(c)
		go func() {
			defer func() { result <- recover() }()
			c.ReadPump()
		}()
	}))
	t.Cleanup(srv.Close)

	conn := dial(t, srv, nil)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.Close())

	select {
	case v := <-result:
		assert.Nil(t, v)
	case <-time.After(3 * time.Second):
		t.Fatal("ReadPump did not return")
	}
}

func TestPingsDuringHubClose(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub, nil)
	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	stop := make(chan struct{})
	flooded := make(chan struct{})
	go func() {
		defer close(flooded)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)) != nil {
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	hub.Close()
	time.Sleep(100 * time.Millisecond)
	close(stop)
	<-flooded

	assert.Zero(t, hub.Count())
}
