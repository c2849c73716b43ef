package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type graphEndpoints struct {
	AuthorizeURL string
	TokenURL     string
	ExchangeURL  string
	RefreshURL   string
	MeURL        string
}

// graphConnector handles the short-lived code, long-lived token exchange used
// by both Instagram and Threads.
type graphConnector struct {
	provider      models.Provider
	cfg           config.Graph
	scope         string
	exchangeGrant string
	refreshGrant  string
	endpoints     graphEndpoints
	http          *http.Client
}

func newInstagramConnector(cfg config.Graph) *graphConnector {
	return &graphConnector{
		provider:      models.ProviderInstagram,
		cfg:           cfg,
		scope:         "instagram_business_basic,instagram_business_content_publish",
		exchangeGrant: "ig_exchange_token",
		refreshGrant:  "ig_refresh_token",
		endpoints: graphEndpoints{
			AuthorizeURL: "https://www.instagram.com/oauth/authorize",
			TokenURL:     "https://api.instagram.com/oauth/access_token",
			ExchangeURL:  "https://graph.instagram.com/access_token",
			RefreshURL:   "https://graph.instagram.com/refresh_access_token",
			MeURL:        "https://graph.instagram.com/me?fields=id,username,name",
		},
		http: http.DefaultClient,
	}
}

func newThreadsConnector(cfg config.Graph) *graphConnector {
	return &graphConnector{
		provider:      models.ProviderThreads,
		cfg:           cfg,
		scope:         "threads_basic,threads_content_publish",
		exchangeGrant: "th_exchange_token",
		refreshGrant:  "th_refresh_token",
		endpoints: graphEndpoints{
			AuthorizeURL: "https://threads.net/oauth/authorize",
			TokenURL:     "https://graph.threads.net/oauth/access_token",
			ExchangeURL:  "https://graph.threads.net/access_token",
			RefreshURL:   "https://graph.threads.net/refresh_access_token",
			MeURL:        "https://graph.threads.net/v1.0/me?fields=id,username",
		},
		http: http.DefaultClient,
	}
}

func (g *graphConnector) AuthURL(_ context.Context, _ int64, state string) (string, error) {
	params := url.Values{}
	params.Add("client_id", g.cfg.ClientID)
	params.Add("scope", g.scope)
	params.Add("response_type", "code")
	params.Add("redirect_uri", g.cfg.RedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", g.endpoints.AuthorizeURL, params.Encode()), nil
}

func (g *graphConnector) Exchange(ctx context.Context, params url.Values) (int64, AccountToken, error) {
	code := params.Get("code")
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return 0, AccountToken{}, err
	}

	shortLived, err := g.shortLivedToken(ctx, code)
	if err != nil {
		return 0, AccountToken{}, fmt.Errorf("failed to get short-lived token: %w", err)
	}

	longLived, err := g.tokenRequest(ctx, g.endpoints.ExchangeURL, url.Values{
		"grant_type":    {g.exchangeGrant},
		"client_secret": {g.cfg.ClientSecret},
		"access_token":  {shortLived},
	})
	if err != nil {
		return 0, AccountToken{}, fmt.Errorf("failed to get long-lived token: %w", err)
	}

	user, err := g.userInfo(ctx, longLived.AccessToken)
	if err != nil {
		return 0, AccountToken{}, err
	}
	longLived.AccountID = user.UserID
	longLived.AccountName = user.Username

	return 0, longLived, nil
}

// Refresh trades a still valid long-lived token for a new one.
func (g *graphConnector) Refresh(ctx context.Context, token string) (AccountToken, error) {
	return g.tokenRequest(ctx, g.endpoints.RefreshURL, url.Values{
		"grant_type":   {g.refreshGrant},
		"access_token": {token},
	})
}

func (g *graphConnector) shortLivedToken(ctx context.Context, code string) (string, error) {
	data := url.Values{}
	data.Set("client_id", g.cfg.ClientID)
	data.Set("client_secret", g.cfg.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", g.cfg.RedirectURI)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoints.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := g.do(req, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", errors.New("empty access token")
	}
	return result.AccessToken, nil
}

func (g *graphConnector) tokenRequest(ctx context.Context, endpoint string, q url.Values) (AccountToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return AccountToken{}, err
	}

	var result transfer.GraphToken
	if err := g.do(req, &result); err != nil {
		return AccountToken{}, err
	}
	if result.AccessToken == "" {
		return AccountToken{}, errors.New("empty access token")
	}

	return AccountToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   GetExpiresAt(int(result.ExpiresIn)),
	}, nil
}

func (g *graphConnector) userInfo(ctx context.Context, accessToken string) (*transfer.GraphUserInfo, error) {
	sep := "?"
	if strings.Contains(g.endpoints.MeURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoints.MeURL+sep+"access_token="+url.QueryEscape(accessToken), nil)
	if err != nil {
		return nil, err
	}

	var userInfo transfer.GraphUserInfo
	if err := g.do(req, &userInfo); err != nil {
		return nil, err
	}
	if userInfo.UserID == "" {
		return nil, fmt.Errorf("%s user info missing id", g.provider)
	}
	return &userInfo, nil
}

func (g *graphConnector) do(req *http.Request, out interface{}) error {
	resp, err := g.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error response from %s: %s (status code: %d)", g.provider, body, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to decode %s response: %w", g.provider, err)
	}
	return nil
}
