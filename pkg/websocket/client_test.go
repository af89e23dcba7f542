package websocket

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type fakeFeed struct {
    server   *httptest.Server
    upgrader websocket.Upgrader
    conns    chan *websocket.Conn
    received chan string
}

func newFakeFeed(t *testing.T) *fakeFeed {
    feed := &fakeFeed{
        conns:    make(chan *websocket.Conn, 8),
        received: make(chan string, 8),
    }
    feed.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        conn, err := feed.upgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        feed.conns <- conn
        for {
            _, data, err := conn.ReadMessage()
            if err != nil {
                return
            }
            feed.received <- string(data)
        }
    }))
    t.Cleanup(feed.server.Close)
    return feed
}

func (f *fakeFeed) url() string {
    return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeFeed) nextConn(t *testing.T) *websocket.Conn {
    select {
    case conn := <-f.conns:
        return conn
    case <-time.After(2 * time.Second):
        t.Fatal("timeout waiting for a websocket connection")
        return nil
    }
}

func newTestClient(t *testing.T, url string, opts ...ClientOpt) *Client {
    opts = append([]ClientOpt{
        WithURL(url),
        WithMinReconnectInterval(10 * time.Millisecond),
        WithMaxReconnectInterval(50 * time.Millisecond),
    }, opts...)
    client, err := NewClient(opts...)
    require.NoError(t, err)
    t.Cleanup(func() { _ = client.Close() })
    return client
}

func TestNewClient_Validation(t *testing.T) {
    _, err := NewClient()
    assert.Error(t, err)

    _, err = NewClient(
        WithURL("ws://localhost:1"),
        WithMinReconnectInterval(time.Second),
        WithMaxReconnectInterval(time.Millisecond),
    )
    assert.Error(t, err)
}

func TestClient_ConnectAndReceive(t *testing.T) {
    feed := newFakeFeed(t)
    client := newTestClient(t, feed.url())

    messages := make(chan string, 4)
    opened := make(chan struct{}, 4)
    client.OnMessage(func(data []byte) { messages <- string(data) })
    client.OnOpened(func() { opened <- struct{}{} })

    require.True(t, client.Connect(context.Background()))
    assert.Equal(t, Open, client.State())
    <-opened

    serverConn := feed.nextConn(t)
    require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(`{"event":"update"}`)))
    require.NoError(t, serverConn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
    require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(`{"event":"second"}`)))

    assert.Equal(t, `{"event":"update"}`, <-messages)
    assert.Equal(t, `{"event":"second"}`, <-messages)
}

func TestClient_Send(t *testing.T) {
    feed := newFakeFeed(t)
    client := newTestClient(t, feed.url(), WithSendDelay(time.Millisecond))

    require.True(t, client.Connect(context.Background()))
    require.NoError(t, client.Send([]byte("first")))
    require.NoError(t, client.Send([]byte("second")))

    select {
    case msg := <-feed.received:
        assert.Equal(t, "first", msg)
    case <-time.After(2 * time.Second):
        t.Fatal("timeout waiting for first frame")
    }
    select {
    case msg := <-feed.received:
        assert.Equal(t, "second", msg)
    case <-time.After(2 * time.Second):
        t.Fatal("timeout waiting for second frame")
    }
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
    feed := newFakeFeed(t)
    client := newTestClient(t, feed.url())

    var mu sync.Mutex
    var closedCodes []int
    opened := make(chan struct{}, 4)
    client.OnOpened(func() { opened <- struct{}{} })
    client.OnClosed(func(code int, _ string) {
        mu.Lock()
        defer mu.Unlock()
        closedCodes = append(closedCodes, code)
    })

    require.True(t, client.Connect(context.Background()))
    <-opened

    serverConn := feed.nextConn(t)
    require.NoError(t, serverConn.WriteMessage(
        websocket.CloseMessage,
        websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"),
    ))
    _ = serverConn.Close()

    select {
    case <-opened:
    case <-time.After(2 * time.Second):
        t.Fatal("client did not reconnect")
    }
    feed.nextConn(t)

    mu.Lock()
    defer mu.Unlock()
    assert.Contains(t, closedCodes, websocket.CloseGoingAway)
}

func TestClient_FirstDialFailureKeepsRetrying(t *testing.T) {
    feed := newFakeFeed(t)
    url := feed.url()
    feed.server.Close()

    client := newTestClient(t, url)
    errs := make(chan error, 16)
    client.OnError(func(err error) {
        select {
        case errs <- err:
        default:
        }
    })

    assert.False(t, client.Connect(context.Background()))
    assert.NotEqual(t, Open, client.State())

    select {
    case <-errs:
    case <-time.After(time.Second):
        t.Fatal("expected a dial error")
    }
    select {
    case <-errs:
    case <-time.After(time.Second):
        t.Fatal("expected the background loop to retry")
    }
}

func TestClient_CloseIsIdempotentAndSilencesObservers(t *testing.T) {
    feed := newFakeFeed(t)
    client := newTestClient(t, feed.url())

    var mu sync.Mutex
    closed := false
    var lateCalls int
    client.OnStateChanged(func(_, _ State) {
        mu.Lock()
        defer mu.Unlock()
        if closed {
            lateCalls++
        }
    })

    require.True(t, client.Connect(context.Background()))
    feed.nextConn(t)

    require.NoError(t, client.Close())
    mu.Lock()
    closed = true
    mu.Unlock()
    require.NoError(t, client.Close())

    assert.Equal(t, Disconnected, client.State())
    assert.ErrorIs(t, client.Send([]byte("late")), ErrClosed)
    assert.False(t, client.Connect(context.Background()))

    time.Sleep(100 * time.Millisecond)
    mu.Lock()
    defer mu.Unlock()
    assert.Zero(t, lateCalls)
}

func TestClient_CloseDuringReconnectDialIsNotAnError(t *testing.T) {
    handshakeStarted := make(chan struct{}, 4)
    release := make(chan struct{})
    var upgrader websocket.Upgrader
    var mu sync.Mutex
    accepted := false
    server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        mu.Lock()
        first := !accepted
        accepted = true
        mu.Unlock()
        if !first {
            // hold the reconnect handshake open until the test is done
            handshakeStarted <- struct{}{}
            <-release
            return
        }
        conn, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        _ = conn.WriteMessage(
            websocket.CloseMessage,
            websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"),
        )
        _ = conn.Close()
    }))
    t.Cleanup(server.Close)
    t.Cleanup(func() { close(release) })

    client := newTestClient(t, "ws"+strings.TrimPrefix(server.URL, "http"))
    var errs []error
    var errsMu sync.Mutex
    client.OnError(func(err error) {
        errsMu.Lock()
        defer errsMu.Unlock()
        errs = append(errs, err)
    })

    require.True(t, client.Connect(context.Background()))
    select {
    case <-handshakeStarted:
    case <-time.After(2 * time.Second):
        t.Fatal("client did not try to reconnect")
    }

    require.NoError(t, client.Close())

    assert.Equal(t, Disconnected, client.State())
    errsMu.Lock()
    defer errsMu.Unlock()
    assert.Empty(t, errs)
}

func TestClient_WithDialer(t *testing.T) {
    subprotocols := make(chan []string, 1)
    upgrader := websocket.Upgrader{Subprotocols: []string{"phoenix"}}
    server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        subprotocols <- websocket.Subprotocols(r)
        conn, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        defer conn.Close()
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                return
            }
        }
    }))
    t.Cleanup(server.Close)

    client := newTestClient(t,
        "ws"+strings.TrimPrefix(server.URL, "http"),
        WithDialer(&websocket.Dialer{
            HandshakeTimeout: time.Second,
            Subprotocols:     []string{"phoenix"},
        }),
    )

    require.True(t, client.Connect(context.Background()))
    assert.Equal(t, []string{"phoenix"}, <-subprotocols)
}

func TestClient_CloseWithoutConnect(t *testing.T) {
    client := newTestClient(t, "ws://localhost:1")
    assert.NoError(t, client.Close())
    assert.NoError(t, client.Close())
}

func TestState_String(t *testing.T) {
    assert.Equal(t, "open", Open.String())
    assert.Equal(t, "errored", Errored.String())
    assert.Equal(t, "unknown(42)", State(42).String())
}
