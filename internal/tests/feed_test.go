package tests

import (
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"

    "github.com/gorilla/websocket"
)

// fakeFeed is a websocket server that pushes frames to every connected client.
type fakeFeed struct {
    server   *httptest.Server
    upgrader websocket.Upgrader
    mu       sync.Mutex
    conns    []*websocket.Conn
}

func newFakeFeed() *fakeFeed {
    feed := &fakeFeed{}
    feed.server = httptest.NewServer(http.HandlerFunc(feed.serve))
    return feed
}

func (f *fakeFeed) serve(w http.ResponseWriter, r *http.Request) {
    conn, err := f.upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    f.mu.Lock()
    f.conns = append(f.conns, conn)
    f.mu.Unlock()
    for {
        if _, _, err := conn.ReadMessage(); err != nil {
            return
        }
    }
}

func (f *fakeFeed) URL() string {
    return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeFeed) Send(frame []byte) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if len(f.conns) == 0 {
        return fmt.Errorf("no client connected to the feed")
    }
    for _, conn := range f.conns {
        if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
            return fmt.Errorf("failed sending frame: %w", err)
        }
    }
    return nil
}

func (f *fakeFeed) Close() {
    f.mu.Lock()
    for _, conn := range f.conns {
        _ = conn.Close()
    }
    f.conns = nil
    f.mu.Unlock()
    f.server.Close()
}
