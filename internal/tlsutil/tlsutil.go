package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// aeadSuites TLS 1.2 下允许的密码套件；TLS 1.3 套件由运行时固定
var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// DefaultTLSConfig 返回加固的 TLS 配置：TLS 1.2 起步，仅 AEAD 套件。
// API 服务器与出站客户端共用。
func DefaultTLSConfig() *tls.Config {
	suites := make([]uint16, len(aeadSuites))
	copy(suites, aeadSuites)
	return &tls.Config{
		MinVersion:       tls.VersionTLS12,
		CipherSuites:     suites,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}
}

// =============================================================================
// 🌐 出站 HTTP 客户端
// =============================================================================

// ClientOption 出站客户端选项
type ClientOption func(*clientOptions)

type clientOptions struct {
	userAgent      string
	maxIdlePerHost int
}

// WithUserAgent 为未显式设置 User-Agent 的请求补上该值
func WithUserAgent(ua string) ClientOption {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithMaxIdleConnsPerHost 单主机空闲连接上限（GitHub 抓取并发较高时调大）
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxIdlePerHost = n
		}
	}
}

// NewHTTPClient 返回带 TLS 加固传输层的 http.Client，供 GitHub 抓取与 LLM 调用使用
func NewHTTPClient(timeout time.Duration, opts ...ClientOption) *http.Client {
	o := clientOptions{maxIdlePerHost: 8}
	for _, opt := range opts {
		opt(&o)
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   o.maxIdlePerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if o.userAgent != "" {
		rt = &userAgentTransport{base: rt, userAgent: o.userAgent}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
