package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/ghlogin/internal/model"
)

const (
	defaultGitHubAuthURL   = "https://github.com/login/oauth/authorize"
	defaultGitHubTokenURL  = "https://github.com/login/oauth/access_token"
	defaultGitHubUserURL   = "https://api.github.com/user"
	defaultGitHubEmailsURL = "https://api.github.com/user/emails"

	githubAcceptHeader = "application/vnd.github.v3+json"
)

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string
}

// GitHubOAuthProvider はGitHub OAuth 2.0による認証を提供する。
type GitHubOAuthProvider struct {
	config GitHubOAuthConfig
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGitHubAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGitHubTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultGitHubUserURL
	}
	if config.EmailsURL == "" {
		config.EmailsURL = defaultGitHubEmailsURL
	}
	return &GitHubOAuthProvider{config: config}
}

// GitHubUser はGitHubのユーザープロフィール。数値IDとログイン名は必須。
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GitHubEmail はGitHubに登録されたメールアドレス1件を表す。
type GitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GetLoginURL はGitHub OAuthの認証URLを生成する。
// メールアドレス一覧の取得に必要なuser:emailスコープを要求する。
func (p *GitHubOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {"user:email"},
		"state":        {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// githubTokenResponse はGitHubのトークンエンドポイントのレスポンス。
// GitHubは不正なコードでも200を返し、errorフィールドで失敗を伝えることがある。
type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// プロバイダー側の拒否（不正なコード、クライアント認証失敗、通信エラー）は
// すべてmodel.ErrInvalidGrantをラップして返す。リトライは行わない
// （認可コードは単回使用のため）。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %v: %w", err, model.ErrInvalidGrant)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %v: %w", err, model.ErrInvalidGrant)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %w", resp.StatusCode, model.ErrInvalidGrant)
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %v: %w", err, model.ErrInvalidGrant)
	}

	if tokenResp.Error != "" {
		return "", fmt.Errorf("provider rejected the code: %s: %w", tokenResp.Error, model.ErrInvalidGrant)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response: %w", model.ErrInvalidGrant)
	}

	return tokenResp.AccessToken, nil
}

// FetchUser はアクセストークンでGitHubのユーザープロフィールを取得する。
// 非2xxレスポンス、パース不能なボディ、必須フィールドの欠落は
// model.ErrUpstreamをラップして返す。
func (p *GitHubOAuthProvider) FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	body, err := p.getJSON(ctx, p.config.UserURL, accessToken)
	if err != nil {
		return nil, err
	}

	var user GitHubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %v: %w", err, model.ErrUpstream)
	}

	if user.ID == 0 {
		return nil, fmt.Errorf("missing numeric id in user response: %w", model.ErrUpstream)
	}
	if user.Login == "" {
		return nil, fmt.Errorf("missing login in user response: %w", model.ErrUpstream)
	}

	return &user, nil
}

// FetchEmails はアクセストークンでGitHubのメールアドレス一覧を取得する。
// 一覧が空であることのエラー判定は呼び出し側が行う。
func (p *GitHubOAuthProvider) FetchEmails(ctx context.Context, accessToken string) ([]GitHubEmail, error) {
	body, err := p.getJSON(ctx, p.config.EmailsURL, accessToken)
	if err != nil {
		return nil, err
	}

	var emails []GitHubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return nil, fmt.Errorf("failed to parse email list response: %v: %w", err, model.ErrUpstream)
	}

	return emails, nil
}

// getJSON はBearer認証付きのGETリクエストを実行し、レスポンスボディを返す。
func (p *GitHubOAuthProvider) getJSON(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", githubAcceptHeader)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %v: %w", endpoint, err, model.ErrUpstream)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %v: %w", endpoint, err, model.ErrUpstream)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %w", endpoint, resp.StatusCode, model.ErrUpstream)
	}

	return body, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
