package lark

import (
	"context"
	"sync"
	"time"

	"github.com/imroc/req/v3"
)

const (
	authTenantToken = "/open-apis/auth/v3/tenant_access_token/internal"

	// Refresh this long before the server-reported expiry.
	tokenRefreshSkew = 5 * time.Minute

	defaultTokenTTL = 7200 * time.Second
)

// tokenSource fetches and caches the tenant access token. It is safe for
// concurrent use; at most one refresh is in flight at a time.
type tokenSource struct {
	appID     string
	appSecret string
	client    *req.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func newTokenSource(appID, appSecret string, client *req.Client) *tokenSource {
	return &tokenSource{
		appID:     appID,
		appSecret: appSecret,
		client:    client,
		now:       time.Now,
	}
}

// Token returns the cached tenant access token, refreshing it when it is
// missing or within the skew window of expiry.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expiresAt) {
		return t.token, nil
	}

	var out tenantTokenResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(&tenantTokenRequest{AppID: t.appID, AppSecret: t.appSecret}).
		SetSuccessResult(&out).
		SetErrorResult(&out).
		Post(authTenantToken)

	if err := handleAPIError(resp, err, &out.baseResponse, "tenant token"); err != nil {
		return "", err
	}

	ttl := time.Duration(out.Expire) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	t.token = out.TenantAccessToken
	t.expiresAt = t.now().Add(ttl - tokenRefreshSkew)

	return t.token, nil
}
