package config

import "time"

// Config holds client configuration values.
type Config struct {
	// APIBaseURL is the REST endpoint root, e.g. "http://localhost:8080/api".
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`
	// SocketURL is the STOMP-over-WebSocket endpoint, e.g. "ws://localhost:8080/ws".
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`
	// Token is the bearer token presented on both the REST and STOMP channels.
	Token string `mapstructure:"token" yaml:"token"`

	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ReconnectMinWait time.Duration `mapstructure:"reconnect_min_wait" yaml:"reconnect_min_wait"`
	ReconnectMaxWait time.Duration `mapstructure:"reconnect_max_wait" yaml:"reconnect_max_wait"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIBaseURL:       "http://localhost:8080/api",
		SocketURL:        "ws://localhost:8080/ws",
		ConnectTimeout:   10 * time.Second,
		RequestTimeout:   15 * time.Second,
		ReconnectMinWait: time.Second,
		ReconnectMaxWait: 30 * time.Second,
		LogLevel:         "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.APIBaseURL != "" {
		c.APIBaseURL = other.APIBaseURL
	}
	if other.SocketURL != "" {
		c.SocketURL = other.SocketURL
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.ConnectTimeout != 0 {
		c.ConnectTimeout = other.ConnectTimeout
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.ReconnectMinWait != 0 {
		c.ReconnectMinWait = other.ReconnectMinWait
	}
	if other.ReconnectMaxWait != 0 {
		c.ReconnectMaxWait = other.ReconnectMaxWait
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
