package repo

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/types"
)

// ErrOAuthNotConfigured 未配置 GitHub OAuth 应用
var ErrOAuthNotConfigured = errors.New("github oauth is not configured")

// DefaultOAuthScopes 读取私有仓库所需的权限
var DefaultOAuthScopes = []string{"repo", "read:user"}

// OAuth GitHub OAuth 授权码流程
type OAuth struct {
	cfg    *oauth2.Config
	client *http.Client
}

// NewOAuth 由配置创建 OAuth；ClientID 或 ClientSecret 为空时 Configured 返回 false
func NewOAuth(cfg config.GitHubConfig) *OAuth {
	return &OAuth{cfg: &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       DefaultOAuthScopes,
		Endpoint:     github.Endpoint,
	}}
}

// WithEndpoint 替换授权端点
func (o *OAuth) WithEndpoint(ep oauth2.Endpoint) *OAuth {
	o.cfg.Endpoint = ep
	return o
}

// WithHTTPClient 替换令牌交换使用的 HTTP 客户端
func (o *OAuth) WithHTTPClient(c *http.Client) *OAuth {
	o.client = c
	return o
}

// Configured 是否已配置 OAuth 应用
func (o *OAuth) Configured() bool {
	return o.cfg.ClientID != "" && o.cfg.ClientSecret != ""
}

// ClientID 返回 OAuth 应用 ID
func (o *OAuth) ClientID() string { return o.cfg.ClientID }

// RedirectURL 返回回调地址
func (o *OAuth) RedirectURL() string { return o.cfg.RedirectURL }

// Scopes 返回申请的权限
func (o *OAuth) Scopes() []string { return o.cfg.Scopes }

// AuthCodeURL 返回用户授权跳转地址
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

// Exchange 用授权码换取访问令牌
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !o.Configured() {
		return nil, types.NewError(types.ErrServiceUnavailable, ErrOAuthNotConfigured.Error()).
			WithHTTPStatus(http.StatusServiceUnavailable)
	}
	if code == "" {
		return nil, types.NewValidationError("code", "authorization code is required")
	}
	if o.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)
	}
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, types.NewError(types.ErrInvalidRequest, "github rejected the authorization code").
				WithCause(err).
				WithHTTPStatus(http.StatusBadRequest).
				WithProvider(githubProvider)
		}
		return nil, types.NewUpstreamError(githubProvider, "token exchange failed").WithCause(err)
	}
	return tok, nil
}
