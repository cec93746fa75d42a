package api

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const userIDHeader = "X-User-Id"

// TokenSource supplies the persisted per-installation identity token that is
// attached to authenticated requests. An empty token is allowed; identity is
// attribution, not a credential.
type TokenSource interface {
	UserID() string
}

// Options configures the shared HTTP behavior of the API clients.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

func newHTTPClient(opts Options) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "stockinsight/1.0"
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Content-Type", "application/json")

	return client
}

// authRequest starts a request carrying the identity header. The token is
// resolved per call so identity resets take effect without rebuilding clients.
func authRequest(client *resty.Client, identity TokenSource) *resty.Request {
	req := client.R()
	if identity != nil {
		if id := identity.UserID(); id != "" {
			req.SetHeader(userIDHeader, id)
		}
	}
	return req
}
