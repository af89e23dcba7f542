package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"
)

type Config struct {
    MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
    WebSocket WebSocketConfig `mapstructure:"websocket"`
    PublicAPI PublicAPIConfig `mapstructure:"public_api"`
    Logging   LoggingConfig   `mapstructure:"logging"`
}

// MongoDBConfig locates the event store. When URI is set it takes
// precedence over the discrete connection fields.
type MongoDBConfig struct {
    URI        string `mapstructure:"uri"`
    Server     string `mapstructure:"server"`
    Port       int    `mapstructure:"port"`
    Username   string `mapstructure:"username"`
    Password   string `mapstructure:"password"`
    UseTLS     bool   `mapstructure:"use_tls"`
    AuthDB     string `mapstructure:"auth_db"`
    Mechanism  string `mapstructure:"mechanism"`
    Database   string `mapstructure:"database"`
    Collection string `mapstructure:"collection"`
}

type WebSocketConfig struct {
    URL                  string        `mapstructure:"url"`
    DebugMode            bool          `mapstructure:"debug_mode"`
    SendDelay            time.Duration `mapstructure:"send_delay"`
    MinReconnectInterval time.Duration `mapstructure:"min_reconnect_interval"`
    MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`
    JoinTopic            string        `mapstructure:"join_topic"`
    HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
}

type PublicAPIConfig struct {
    Port int `mapstructure:"port"`
}

type LoggingConfig struct {
    Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
    v := viper.New()

    v.SetDefault("mongodb.server", "localhost")
    v.SetDefault("mongodb.port", 27017)
    v.SetDefault("mongodb.use_tls", false)
    v.SetDefault("mongodb.auth_db", "admin")
    v.SetDefault("mongodb.mechanism", "SCRAM-SHA-256")
    v.SetDefault("mongodb.database", "machine_stream")
    v.SetDefault("mongodb.collection", "events")
    v.SetDefault("websocket.url", "ws://localhost:4000/socket/websocket")
    v.SetDefault("websocket.debug_mode", false)
    v.SetDefault("websocket.send_delay", "0s")
    v.SetDefault("websocket.min_reconnect_interval", "2s")
    v.SetDefault("websocket.max_reconnect_interval", "30s")
    v.SetDefault("websocket.join_topic", "")
    v.SetDefault("websocket.handshake_timeout", "45s")
    v.SetDefault("public_api.port", 8080)
    v.SetDefault("logging.level", "info")
    // registered so that environment variables reach keys without a default
    v.SetDefault("mongodb.uri", "")
    v.SetDefault("mongodb.username", "")
    v.SetDefault("mongodb.password", "")

    if configPath != "" {
        v.SetConfigFile(configPath)
    } else {
        v.SetConfigName("config")
        v.SetConfigType("yaml")
        v.AddConfigPath(".")
        v.AddConfigPath("/etc/machine-stream")
    }

    v.SetEnvPrefix("MACHINESTREAM")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    if err := v.ReadInConfig(); err != nil {
        if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
            return nil, fmt.Errorf("failed to read config: %w", err)
        }
    }

    var cfg Config
    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("failed to unmarshal config: %w", err)
    }

    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return &cfg, nil
}

func (c *Config) Validate() error {
    if c.WebSocket.URL == "" {
        return fmt.Errorf("websocket.url is required")
    }
    if c.MongoDB.URI == "" && c.MongoDB.Server == "" {
        return fmt.Errorf("either mongodb.uri or mongodb.server is required")
    }
    if c.MongoDB.Database == "" || c.MongoDB.Collection == "" {
        return fmt.Errorf("mongodb.database and mongodb.collection are required")
    }
    if c.WebSocket.MinReconnectInterval <= 0 || c.WebSocket.MaxReconnectInterval < c.WebSocket.MinReconnectInterval {
        return fmt.Errorf("invalid websocket reconnect intervals: min %s max %s",
            c.WebSocket.MinReconnectInterval, c.WebSocket.MaxReconnectInterval)
    }
    return nil
}
