package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	Log            LogConfig
	WebSocket      WebSocketConfig
	Rooms          RoomsConfig
	Redis          RedisConfig
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type WebSocketConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// RoomsConfig controls eviction of idle rooms. A zero IdleTimeout keeps rooms
// for the life of the process.
type RoomsConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Addr returns the host:port pair for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load reads configuration from an optional config.yaml and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 64*1024)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("rooms.idle_timeout", "6h")
	v.SetDefault("rooms.reap_interval", "1m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "watchparty")
	v.SetDefault("redis.ttl", "24h")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("port", "PORT")
	v.BindEnv("environment", "ENVIRONMENT")
	v.BindEnv("allowed_origins", "ALLOWED_ORIGINS")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.pretty", "LOG_PRETTY")
	v.BindEnv("websocket.ping_interval", "WS_PING_INTERVAL")
	v.BindEnv("websocket.pong_wait", "WS_PONG_WAIT")
	v.BindEnv("websocket.write_wait", "WS_WRITE_WAIT")
	v.BindEnv("websocket.max_message_size", "WS_MAX_MESSAGE_SIZE")
	v.BindEnv("websocket.send_buffer", "WS_SEND_BUFFER")
	v.BindEnv("rooms.idle_timeout", "ROOM_IDLE_TIMEOUT")
	v.BindEnv("rooms.reap_interval", "ROOM_REAP_INTERVAL")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.key_prefix", "REDIS_KEY_PREFIX")
	v.BindEnv("redis.ttl", "REDIS_TTL")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString("port"),
		Environment:    v.GetString("environment"),
		AllowedOrigins: splitCSV(v.GetString("allowed_origins")),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		WebSocket: WebSocketConfig{
			PingInterval:   v.GetDuration("websocket.ping_interval"),
			PongWait:       v.GetDuration("websocket.pong_wait"),
			WriteWait:      v.GetDuration("websocket.write_wait"),
			MaxMessageSize: v.GetInt64("websocket.max_message_size"),
			SendBuffer:     v.GetInt("websocket.send_buffer"),
		},
		Rooms: RoomsConfig{
			IdleTimeout:  v.GetDuration("rooms.idle_timeout"),
			ReapInterval: v.GetDuration("rooms.reap_interval"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetString("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
			TTL:       v.GetDuration("redis.ttl"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	ws := c.WebSocket
	if ws.PongWait <= 0 || ws.PingInterval <= 0 || ws.WriteWait <= 0 {
		return errors.New("websocket timings must be positive")
	}
	// Pings must land before the peer's read deadline expires.
	if ws.PingInterval >= ws.PongWait {
		return fmt.Errorf("websocket ping interval %s must be shorter than pong wait %s", ws.PingInterval, ws.PongWait)
	}
	if ws.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket max message size must be positive, got %d", ws.MaxMessageSize)
	}
	if ws.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive, got %d", ws.SendBuffer)
	}
	if c.Rooms.IdleTimeout < 0 {
		return fmt.Errorf("room idle timeout must not be negative, got %s", c.Rooms.IdleTimeout)
	}
	if c.Rooms.IdleTimeout > 0 && c.Rooms.ReapInterval <= 0 {
		return fmt.Errorf("room reap interval must be positive when eviction is enabled, got %s", c.Rooms.ReapInterval)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
