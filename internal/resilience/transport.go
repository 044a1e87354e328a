package resilience

import (
	"net"
	"net/http"
	"time"
)

// PoolConfig sizes the keep-alive pool used for a remote dependency
type PoolConfig struct {
	MaxIdle     int           `mapstructure:"max_idle" validate:"gte=0"`
	MaxActive   int           `mapstructure:"max_active" validate:"gte=0"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// DefaultPoolConfig returns a small pool for a single model host
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdle:     10,
		MaxActive:   20,
		IdleTimeout: 90 * time.Second,
	}
}

// NewTransport builds an http.Transport bounded by config
func NewTransport(config PoolConfig) *http.Transport {
	maxIdlePerHost := config.MaxIdle / 2
	if maxIdlePerHost < 1 {
		maxIdlePerHost = 1
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdle,
		MaxConnsPerHost:       config.MaxActive,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
