package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	LogProxyNotConfigured = "Proxy not configured, using direct connection"
	LogProxyConfigured    = "Proxy configured"

	defaultTimeout = 3 * time.Minute
)

type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type HTTPClientConfig struct {
	ProxyURL              string
	NoProxy               []string
	Timeout               time.Duration
	DisableKeepAlives     bool
	MaxIdleConns          int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ForceAttemptHTTP2     bool
	DisableCompression    bool
	InsecureSkipVerify    bool
}

func NewDefaultHTTPClientConfig(cfg config.HTTPConfig) HTTPClientConfig {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return HTTPClientConfig{
		ProxyURL:              cfg.GetProxy(),
		NoProxy:               cfg.GetNoProxy(),
		Timeout:               timeout,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// NewBackendHTTPClientConfig is used for model backends. GigaChat is served with
// a certificate chain most systems do not trust, so verification can be switched off per provider.
func NewBackendHTTPClientConfig(cfg config.HTTPConfig, provider config.AIProviderConfig) HTTPClientConfig {
	conf := NewDefaultHTTPClientConfig(cfg)
	conf.InsecureSkipVerify = provider.InsecureSkipVerify
	return conf
}

// NewImagesHTTPClientConfig is used for the image providers, which are slow and rarely reused.
func NewImagesHTTPClientConfig(cfg config.HTTPConfig, images config.ImagesConfig) HTTPClientConfig {
	conf := NewDefaultHTTPClientConfig(cfg)
	if images.Timeout > 0 {
		conf.Timeout = images.Timeout
	}
	conf.MaxIdleConns = 10
	conf.IdleConnTimeout = 10 * time.Second
	conf.DisableKeepAlives = true
	return conf
}

func SetupHTTPClient(cfg HTTPClientConfig, log logger.Logger) (*http.Client, error) {
	transport := &http.Transport{
		ForceAttemptHTTP2:     cfg.ForceAttemptHTTP2,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		DisableCompression:    cfg.DisableCompression,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if cfg.ProxyURL == "" {
		log.Debug(LogProxyNotConfigured)
	} else if err := configureProxy(transport, cfg.ProxyURL, cfg.NoProxy, log); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

func configureProxy(transport *http.Transport, proxyURL string, noProxy []string, log logger.Logger) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("failed to parse proxy URL: %w", err)
	}

	switch parsed.Scheme {
	case "socks5", "socks5h":
		dial, err := socks5Dialer(parsed, noProxy)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = dial
	case "http", "https":
		transport.Proxy = proxyFunc(parsed, noProxy)
	default:
		return fmt.Errorf("unsupported proxy scheme: %q", parsed.Scheme)
	}

	log.WithFields(logger.Fields{
		"proxy":    parsed.Redacted(),
		"no_proxy": noProxy,
	}).Info(LogProxyConfigured)
	return nil
}

func proxyFunc(proxyURL *url.URL, noProxy []string) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if bypassProxy(req.URL.Hostname(), noProxy) {
			return nil, nil
		}
		return proxyURL, nil
	}
}

func socks5Dialer(proxyURL *url.URL, noProxy []string) (DialContextFunc, error) {
	direct := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dialer, err := proxy.FromURL(proxyURL, direct)
	if err != nil {
		return nil, err
	}
	contextDialer, hasContext := dialer.(proxy.ContextDialer)

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		if bypassProxy(host, noProxy) {
			return direct.DialContext(ctx, network, addr)
		}
		if hasContext {
			return contextDialer.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}, nil
}

// bypassProxy matches host against NO_PROXY style patterns: exact hosts,
// "*.example.com" and ".example.com" for subdomains, "*" for everything.
func bypassProxy(host string, noProxy []string) bool {
	host = strings.ToLower(host)
	for _, pattern := range noProxy {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "*."):
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(host, pattern) || host == pattern[1:] {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}
