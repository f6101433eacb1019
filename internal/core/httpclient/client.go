// Package httpclient configures the HTTP client used to drive the grid API.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound returns a client whose idle pool fits conns concurrent callers
// against a single host.
func NewOutbound(conns int, timeout time.Duration) *http.Client {
	if conns <= 0 {
		conns = 16
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          2 * conns,
		MaxIdleConnsPerHost:   conns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
