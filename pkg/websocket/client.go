package websocket

import (
    "context"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "sync"
    "time"

    "github.com/cenkalti/backoff/v4"
    "github.com/gorilla/websocket"
)

const (
    DefaultMinReconnectInterval = 2 * time.Second
    DefaultMaxReconnectInterval = 30 * time.Second

    pingInterval  = 30 * time.Second
    writeTimeout  = 10 * time.Second
    sendQueueSize = 32
)

var (
    ErrClosed        = errors.New("websocket client is closed")
    ErrSendQueueFull = errors.New("websocket send queue is full")
)

type State int

const (
    Disconnected State = iota
    Connecting
    Open
    Closed
    Errored
)

func (s State) String() string {
    switch s {
    case Disconnected:
        return "disconnected"
    case Connecting:
        return "connecting"
    case Open:
        return "open"
    case Closed:
        return "closed"
    case Errored:
        return "errored"
    default:
        return fmt.Sprintf("unknown(%d)", int(s))
    }
}

// Client is a text-frame websocket client that keeps reconnecting with
// exponential backoff until it is closed. Observers are invoked from a
// single goroutine, one at a time, and never after Close returns.
type Client struct {
    url                  string
    debugMode            bool
    sendDelay            time.Duration
    minReconnectInterval time.Duration
    maxReconnectInterval time.Duration
    dialer               *websocket.Dialer
    logger               *slog.Logger

    ctx    context.Context
    cancel context.CancelFunc
    send   chan []byte

    mu       sync.Mutex
    state    State
    conn     *websocket.Conn
    started  bool
    closed   bool
    loopDone chan struct{}

    observersMu    sync.RWMutex
    onStateChanged []func(state, previous State)
    onMessage      []func(data []byte)
    onOpened       []func()
    onError        []func(err error)
    onClosed       []func(code int, reason string)
}

func NewClient(opts ...ClientOpt) (*Client, error) {
    c := &Client{
        minReconnectInterval: DefaultMinReconnectInterval,
        maxReconnectInterval: DefaultMaxReconnectInterval,
        dialer:               websocket.DefaultDialer,
        logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
        send:                 make(chan []byte, sendQueueSize),
        state:                Disconnected,
        loopDone:             make(chan struct{}),
    }
    for _, opt := range opts {
        opt(c)
    }
    if c.url == "" {
        return nil, errors.New("websocket url is required")
    }
    if c.minReconnectInterval <= 0 || c.maxReconnectInterval < c.minReconnectInterval {
        return nil, fmt.Errorf(
            "invalid reconnect interval bounds: min %s max %s",
            c.minReconnectInterval,
            c.maxReconnectInterval,
        )
    }
    c.ctx, c.cancel = context.WithCancel(context.Background())
    return c, nil
}

func (c *Client) OnStateChanged(observer func(state, previous State)) {
    c.observersMu.Lock()
    defer c.observersMu.Unlock()
    c.onStateChanged = append(c.onStateChanged, observer)
}

func (c *Client) OnMessage(observer func(data []byte)) {
    c.observersMu.Lock()
    defer c.observersMu.Unlock()
    c.onMessage = append(c.onMessage, observer)
}

func (c *Client) OnOpened(observer func()) {
    c.observersMu.Lock()
    defer c.observersMu.Unlock()
    c.onOpened = append(c.onOpened, observer)
}

func (c *Client) OnError(observer func(err error)) {
    c.observersMu.Lock()
    defer c.observersMu.Unlock()
    c.onError = append(c.onError, observer)
}

func (c *Client) OnClosed(observer func(code int, reason string)) {
    c.observersMu.Lock()
    defer c.observersMu.Unlock()
    c.onClosed = append(c.onClosed, observer)
}

func (c *Client) URL() string {
    return c.url
}

func (c *Client) State() State {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.state
}

// Connect performs the first dial synchronously and reports whether it
// succeeded. Either way a background loop takes over and keeps the
// connection alive until Close is called. Calling Connect again only
// reports whether the client is currently open.
func (c *Client) Connect(ctx context.Context) bool {
    c.mu.Lock()
    if c.started || c.closed {
        open := c.state == Open
        c.mu.Unlock()
        return open
    }
    c.started = true
    c.mu.Unlock()

    conn, err := c.dial(ctx)
    go c.run(conn)
    return err == nil
}

// Send queues a text frame. Frames queued while disconnected go out
// once a connection is open again.
func (c *Client) Send(data []byte) error {
    if c.isClosed() {
        return ErrClosed
    }
    select {
    case c.send <- data:
        return nil
    default:
        return ErrSendQueueFull
    }
}

// Close stops reconnecting, closes the current connection and waits for
// the background loop to exit. It is safe to call more than once.
func (c *Client) Close() error {
    c.mu.Lock()
    if c.closed {
        c.mu.Unlock()
        return nil
    }
    c.closed = true
    conn := c.conn
    started := c.started
    c.mu.Unlock()

    c.cancel()
    if conn != nil {
        _ = conn.WriteControl(
            websocket.CloseMessage,
            websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
            time.Now().Add(writeTimeout),
        )
        _ = conn.Close()
    }
    if started {
        <-c.loopDone
    }
    return nil
}

func (c *Client) run(conn *websocket.Conn) {
    defer close(c.loopDone)

    b := c.newBackOff()
    for {
        if conn != nil {
            b.Reset()
            c.serve(conn)
        }
        if c.isClosed() {
            return
        }
        wait := b.NextBackOff()
        c.logger.Debug("websocket reconnect scheduled", slog.Duration("wait", wait))
        select {
        case <-c.ctx.Done():
            return
        case <-time.After(wait):
        }
        conn, _ = c.dial(c.ctx)
    }
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
    b := backoff.NewExponentialBackOff()
    b.InitialInterval = c.minReconnectInterval
    b.MaxInterval = c.maxReconnectInterval
    b.RandomizationFactor = 0
    b.MaxElapsedTime = 0
    b.Reset()
    return b
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
    dialCtx, cancel := context.WithCancel(ctx)
    defer cancel()
    stop := context.AfterFunc(c.ctx, cancel)
    defer stop()

    c.setState(Connecting)
    conn, _, err := c.dialer.DialContext(dialCtx, c.url, nil)
    if err == nil {
        err = c.setConn(conn)
    }
    if err != nil && c.isClosed() {
        // a dial cut short by Close is a shutdown, not a connection failure
        c.setState(Disconnected)
        return nil, err
    }
    if err != nil {
        c.setState(Errored)
        c.notifyError(fmt.Errorf("failed dialing %s: %w", c.url, err))
        c.setState(Disconnected)
        return nil, err
    }
    c.setState(Open)
    c.notifyOpened()
    return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.closed {
        _ = conn.Close()
        return ErrClosed
    }
    c.conn = conn
    return nil
}

func (c *Client) serve(conn *websocket.Conn) {
    stopWriter := make(chan struct{})
    writerDone := make(chan struct{})
    go c.writeLoop(conn, stopWriter, writerDone)

    err := c.readLoop(conn)

    close(stopWriter)
    <-writerDone
    _ = conn.Close()

    c.mu.Lock()
    c.conn = nil
    c.mu.Unlock()

    var closeErr *websocket.CloseError
    switch {
    case c.isClosed():
        c.setState(Closed)
        c.notifyClosed(websocket.CloseNormalClosure, "")
    case errors.As(err, &closeErr):
        c.setState(Closed)
        c.notifyClosed(closeErr.Code, closeErr.Text)
    default:
        c.setState(Errored)
        c.notifyError(err)
    }
    c.setState(Disconnected)
}

func (c *Client) readLoop(conn *websocket.Conn) error {
    for {
        messageType, data, err := conn.ReadMessage()
        if err != nil {
            return err
        }
        if messageType != websocket.TextMessage {
            continue
        }
        if c.debugMode {
            c.logger.Debug("websocket frame received", slog.String("frame", string(data)))
        }
        c.notifyMessage(data)
    }
}

func (c *Client) writeLoop(conn *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
    defer close(done)

    ticker := time.NewTicker(pingInterval)
    defer ticker.Stop()

    for {
        select {
        case <-stop:
            return
        case data := <-c.send:
            if c.debugMode {
                c.logger.Debug("websocket frame sent", slog.String("frame", string(data)))
            }
            _ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
            if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
                c.logger.Warn("failed writing websocket frame", slog.String("error", err.Error()))
                _ = conn.Close()
                return
            }
            if c.sendDelay > 0 {
                select {
                case <-stop:
                    return
                case <-time.After(c.sendDelay):
                }
            }
        case <-ticker.C:
            _ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
            if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
                _ = conn.Close()
                return
            }
        }
    }
}

func (c *Client) isClosed() bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.closed
}

func (c *Client) setState(state State) {
    c.mu.Lock()
    previous := c.state
    if previous == state {
        c.mu.Unlock()
        return
    }
    c.state = state
    c.mu.Unlock()

    c.observersMu.RLock()
    defer c.observersMu.RUnlock()
    for _, observer := range c.onStateChanged {
        observer(state, previous)
    }
}

func (c *Client) notifyMessage(data []byte) {
    c.observersMu.RLock()
    defer c.observersMu.RUnlock()
    for _, observer := range c.onMessage {
        observer(data)
    }
}

func (c *Client) notifyOpened() {
    c.observersMu.RLock()
    defer c.observersMu.RUnlock()
    for _, observer := range c.onOpened {
        observer()
    }
}

func (c *Client) notifyError(err error) {
    c.observersMu.RLock()
    defer c.observersMu.RUnlock()
    for _, observer := range c.onError {
        observer(err)
    }
}

func (c *Client) notifyClosed(code int, reason string) {
    c.observersMu.RLock()
    defer c.observersMu.RUnlock()
    for _, observer := range c.onClosed {
        observer(code, reason)
    }
}
