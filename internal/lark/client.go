package lark

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"

	"larkpub/internal/version"
)

var userAgent = fmt.Sprintf("LarkPub/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Limiter gates outbound requests. Wait blocks until a slot is available or
// the context is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Options configures a drive client.
type Options struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
	// Limiter, when set, gates every request the client makes, token
	// refreshes included.
	Limiter Limiter
}

// Client talks to the Lark/Feishu Drive open API. All calls carry a tenant
// access token injected by request middleware.
type Client struct {
	http *req.Client
	auth *tokenSource
}

func New(opts *Options) (*Client, error) {
	if opts.AppID == "" || opts.AppSecret == "" {
		return nil, ErrNoCredentials
	}
	if opts.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	// The token endpoint must not receive the bearer middleware below, so
	// the token source gets its own client. It still shares the limiter.
	authClient := newHTTPClient(opts).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			return waitLimiter(opts.Limiter, r)
		})
	auth := newTokenSource(opts.AppID, opts.AppSecret, authClient)

	httpClient := newHTTPClient(opts).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			token, err := auth.Token(r.Context())
			if err != nil {
				return err
			}
			if err := waitLimiter(opts.Limiter, r); err != nil {
				return err
			}
			r.SetBearerAuthToken(token)
			return nil
		})

	return &Client{http: httpClient, auth: auth}, nil
}

func newHTTPClient(opts *Options) *req.Client {
	client := req.C().
		SetBaseURL(opts.BaseURL).
		SetUserAgent(userAgent).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return client
}

func waitLimiter(l Limiter, r *req.Request) error {
	if l == nil {
		return nil
	}
	return l.Wait(r.Context())
}
