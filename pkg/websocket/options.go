package websocket

import (
    "log/slog"
    "time"

    "github.com/gorilla/websocket"
)

type ClientOpt func(c *Client)

func WithURL(url string) ClientOpt {
    return func(c *Client) {
        c.url = url
    }
}

// WithDebugMode logs every inbound and outbound frame at debug level.
func WithDebugMode(debugMode bool) ClientOpt {
    return func(c *Client) {
        c.debugMode = debugMode
    }
}

// WithSendDelay sets the pause between two consecutive outbound frames.
func WithSendDelay(sendDelay time.Duration) ClientOpt {
    return func(c *Client) {
        c.sendDelay = sendDelay
    }
}

func WithMinReconnectInterval(interval time.Duration) ClientOpt {
    return func(c *Client) {
        c.minReconnectInterval = interval
    }
}

func WithMaxReconnectInterval(interval time.Duration) ClientOpt {
    return func(c *Client) {
        c.maxReconnectInterval = interval
    }
}

func WithDialer(dialer *websocket.Dialer) ClientOpt {
    return func(c *Client) {
        c.dialer = dialer
    }
}

func WithLogger(logger *slog.Logger) ClientOpt {
    return func(c *Client) {
        c.logger = logger
    }
}
