package websocket

import (
    "context"
    "encoding/json"
    "log/slog"
    "strconv"
    "sync"
    "sync/atomic"

    "machine-stream/internal/metrics"
    "machine-stream/pkg/logattr"
    wsclient "machine-stream/pkg/websocket"

    "github.com/walletera/eventskit/messages"
)

const (
    messagesBufferSize = 64
    phoenixJoinEvent   = "phx_join"
)

// Pipeline feeds the frames received by a websocket client into an eventskit
// message processor. It owns the client: disposing the pipeline closes it.
type Pipeline struct {
    client    *wsclient.Client
    joinTopic string
    logger    *slog.Logger
    metrics   *metrics.Metrics

    messagesCh   chan messages.Message
    disposed     chan struct{}
    registerOnce sync.Once
    disposeOnce  sync.Once
    joinRef      atomic.Int64
}

var _ messages.Consumer = (*Pipeline)(nil)

func NewPipeline(client *wsclient.Client, joinTopic string, logger *slog.Logger, metrics *metrics.Metrics) *Pipeline {
    return &Pipeline{
        client:     client,
        joinTopic:  joinTopic,
        logger:     logger,
        metrics:    metrics,
        messagesCh: make(chan messages.Message, messagesBufferSize),
        disposed:   make(chan struct{}),
    }
}

// ConnectAndRegister registers the connection observers and performs the
// initial connect. A false result does not stop the client from retrying.
func (p *Pipeline) ConnectAndRegister(ctx context.Context) bool {
    p.registerOnce.Do(func() {
        p.client.OnStateChanged(p.stateChanged)
        p.client.OnMessage(p.messageReceived)
        p.client.OnOpened(p.opened)
        p.client.OnError(p.errored)
        p.client.OnClosed(p.closed)
        p.logger.Debug("websocket observers registered")
    })

    p.logger.Info("connecting to websocket feed", logattr.URL(p.client.URL()))
    connected := p.client.Connect(ctx)
    if !connected {
        p.logger.Warn("websocket feed not reachable, retrying in background", logattr.URL(p.client.URL()))
    }
    return connected
}

// DisconnectAndDispose closes the underlying client and the messages channel.
func (p *Pipeline) DisconnectAndDispose() {
    p.disposeOnce.Do(func() {
        p.logger.Info("disconnecting from websocket feed", logattr.URL(p.client.URL()))
        close(p.disposed)
        err := p.client.Close()
        if err != nil {
            p.logger.Error("failed closing websocket client", logattr.Error(err.Error()))
        }
        close(p.messagesCh)
        p.logger.Info("websocket feed disposed")
    })
}

func (p *Pipeline) Consume() (<-chan messages.Message, error) {
    return p.messagesCh, nil
}

func (p *Pipeline) Close() error {
    p.DisconnectAndDispose()
    return nil
}

func (p *Pipeline) stateChanged(state, previous wsclient.State) {
    p.logger.Info(
        "websocket state changed",
        logattr.ConnectionState(state.String()),
        logattr.PreviousConnectionState(previous.String()),
    )
}

func (p *Pipeline) messageReceived(data []byte) {
    p.metrics.MessagesReceived.Inc()
    p.logger.Debug("websocket message received", slog.Int("size", len(data)))
    select {
    case p.messagesCh <- messages.NewMessage(data, acknowledger{}):
    case <-p.disposed:
        p.logger.Warn("websocket message discarded on shutdown")
    }
}

func (p *Pipeline) opened() {
    p.metrics.ConnectionOpens.Inc()
    p.logger.Info("websocket connection opened", logattr.URL(p.client.URL()))
    if p.joinTopic != "" {
        p.join()
    }
}

func (p *Pipeline) errored(err error) {
    p.metrics.ConnectionErrors.Inc()
    p.logger.Error("websocket connection error", logattr.Error(err.Error()))
}

func (p *Pipeline) closed(code int, reason string) {
    p.logger.Info("websocket connection closed", logattr.CloseCode(code), logattr.Message(reason))
}

type joinMessage struct {
    Topic   string          `json:"topic"`
    Event   string          `json:"event"`
    Payload json.RawMessage `json:"payload"`
    Ref     string          `json:"ref"`
    JoinRef string          `json:"join_ref"`
}

func (p *Pipeline) join() {
    ref := strconv.FormatInt(p.joinRef.Add(1), 10)
    data, err := json.Marshal(joinMessage{
        Topic:   p.joinTopic,
        Event:   phoenixJoinEvent,
        Payload: json.RawMessage(`{}`),
        Ref:     ref,
        JoinRef: ref,
    })
    if err != nil {
        p.logger.Error("failed building join message", logattr.Error(err.Error()))
        return
    }
    err = p.client.Send(data)
    if err != nil {
        p.logger.Error("failed joining topic", slog.String("topic", p.joinTopic), logattr.Error(err.Error()))
        return
    }
    p.logger.Info("topic join requested", slog.String("topic", p.joinTopic))
}

// the feed has no delivery acknowledgements
type acknowledger struct{}

func (acknowledger) Ack() error {
    return nil
}

func (acknowledger) Nack(messages.NackOpts) error {
    return nil
}
