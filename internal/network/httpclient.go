// Package network builds the HTTP client the browsing session drives.
//
// Redirects are deliberately not followed by the client itself: the session
// implements its own redirect policy (including the browser-like POST to GET
// downgrade), so the client is configured to surface every 3xx response.
package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Constants tuned for interactive browsing.
const (
	DefaultDialTimeout           = 15 * time.Second
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 60 * time.Second

	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
)

const requiredMinTLSVersion = tls.VersionTLS12

// ClientConfig holds the configuration for the session's HTTP client.
type ClientConfig struct {
	// Security
	InsecureSkipVerify bool
	TLSConfig          *tls.Config

	// Timeouts
	RequestTimeout time.Duration

	// Connection pool
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Proxy
	ProxyURL *url.URL

	// State management. The jar persists cookies across exchanges on one session.
	CookieJar http.CookieJar
}

// NewClientConfig creates a configuration suitable for scripted browsing.
func NewClientConfig() *ClientConfig {
	// cookiejar.New only errors on invalid options; we pass none.
	jar, _ := cookiejar.New(nil)

	return &ClientConfig{
		InsecureSkipVerify:  false,
		RequestTimeout:      DefaultRequestTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		CookieJar:           jar,
	}
}

// NewHTTPTransport creates and configures the base http.Transport.
func NewHTTPTransport(config *ClientConfig) *http.Transport {
	if config == nil {
		config = NewClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       configureTLS(config),
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}

	if config.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(config.ProxyURL)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// NewClient creates the configured http.Client for the session.
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = NewClientConfig()
	}

	client := &http.Client{
		Transport: NewHTTPTransport(config),
		Timeout:   config.RequestTimeout,
		Jar:       config.CookieJar,
		// The session tracks navigation, history, and the POST downgrade itself,
		// so redirect responses must be handed back untouched.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return client
}

// configureTLS sets up the TLS configuration with strong defaults and ALPN settings.
func configureTLS(config *ClientConfig) *tls.Config {
	var tlsConfig *tls.Config
	if config.TLSConfig != nil {
		tlsConfig = config.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{}
	}

	if tlsConfig.MinVersion < requiredMinTLSVersion {
		tlsConfig.MinVersion = requiredMinTLSVersion
	}

	// "h2" must be listed before "http/1.1" to prefer HTTP/2.
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{"h2", "http/1.1"}
	}

	tlsConfig.InsecureSkipVerify = config.InsecureSkipVerify

	return tlsConfig
}
