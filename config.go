package orchid

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfiguration is everything a TCPServer needs, as read from a TOML file.
type ServerConfiguration struct {
	ListenAddress  string
	Protocol       string
	Proxy          ProxyType
	MaxConnections int
	Timing         TCPServerConfiguration
}

func DefaultServerConfiguration() ServerConfiguration {
	return ServerConfiguration{
		ListenAddress:  ":4009",
		Protocol:       "length-prefix",
		Proxy:          NoLoadBalancer,
		MaxConnections: 100,
		Timing:         DefaultTCPServerSettings,
	}
}

type fileConfig struct {
	Listen             string `toml:"listen"`
	Protocol           string `toml:"protocol"`
	Proxy              string `toml:"proxy"`
	MaxConnections     int    `toml:"max_connections"`
	PollTimeout        string `toml:"poll_timeout"`
	MaxBufferSize      int    `toml:"max_buffer_size"`
	ReadinessPoll      bool   `toml:"readiness_poll"`
	AcceptBackoffMin   string `toml:"accept_backoff_min"`
	AcceptBackoffMax   string `toml:"accept_backoff_max"`
	ShutdownTimeout    string `toml:"shutdown_timeout"`
	ProxyHeaderTimeout string `toml:"proxy_header_timeout"`
	HandshakeTimeout   string `toml:"handshake_timeout"`
}

// LoadServerConfiguration reads path and overlays every key it defines onto
// DefaultServerConfiguration.
func LoadServerConfiguration(path string) (ServerConfiguration, error) {
	cfg := DefaultServerConfiguration()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfiguration{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("listen") {
		cfg.ListenAddress = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("protocol") {
		cfg.Protocol = strings.ToLower(strings.TrimSpace(raw.Protocol))
	}
	if meta.IsDefined("proxy") {
		proxy, err := ParseProxyType(raw.Proxy)
		if err != nil {
			return ServerConfiguration{}, err
		}
		cfg.Proxy = proxy
	}
	if meta.IsDefined("max_connections") {
		if raw.MaxConnections < 0 {
			return ServerConfiguration{}, fmt.Errorf("max_connections must not be negative: %d", raw.MaxConnections)
		}
		cfg.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("max_buffer_size") {
		cfg.Timing.ReadLoop.MaxBufferSize = raw.MaxBufferSize
	}
	if meta.IsDefined("readiness_poll") {
		cfg.Timing.ReadLoop.ReadinessPoll = raw.ReadinessPoll
	}

	durations := []struct {
		key    string
		value  string
		target *time.Duration
	}{
		{"poll_timeout", raw.PollTimeout, &cfg.Timing.ReadLoop.PollTimeout},
		{"accept_backoff_min", raw.AcceptBackoffMin, &cfg.Timing.AcceptBackoffMin},
		{"accept_backoff_max", raw.AcceptBackoffMax, &cfg.Timing.AcceptBackoffMax},
		{"shutdown_timeout", raw.ShutdownTimeout, &cfg.Timing.ShutdownTimeout},
		{"proxy_header_timeout", raw.ProxyHeaderTimeout, &cfg.Timing.ProxyHeaderTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Timing.HandshakeTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return ServerConfiguration{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	if cfg.Timing.ReadLoop.PollTimeout <= 0 {
		return ServerConfiguration{}, fmt.Errorf("poll_timeout must be positive")
	}

	return cfg, nil
}

func ParseProxyType(raw string) (ProxyType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none", "no", "off":
		return NoLoadBalancer, nil
	case "haproxy", "haproxy-v2", "proxy-v2", "proxyv2":
		return HAProxySendProxyV2, nil
	default:
		return 0, fmt.Errorf("unknown proxy type %q", raw)
	}
}
