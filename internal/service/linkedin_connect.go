package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"golang.org/x/oauth2"
)

const linkedInAPI = "https://api.linkedin.com"

type linkedInConnector struct {
	oauth  *oauth2.Config
	apiURL string
}

func newLinkedInConnector(cfg config.LinkedIn, apiURL string) *linkedInConnector {
	if apiURL == "" {
		apiURL = linkedInAPI
	}
	return &linkedInConnector{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
				TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL: apiURL,
	}
}

func (l *linkedInConnector) AuthURL(_ context.Context, _ int64, state string) (string, error) {
	return l.oauth.AuthCodeURL(state), nil
}

func (l *linkedInConnector) Exchange(ctx context.Context, params url.Values) (int64, AccountToken, error) {
	code := params.Get("code")
	if code == "" {
		return 0, AccountToken{}, errors.New("code is empty")
	}

	tok, err := l.oauth.Exchange(ctx, code)
	if err != nil {
		return 0, AccountToken{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL+"/v2/userinfo", nil)
	if err != nil {
		return 0, AccountToken{}, err
	}
	resp, err := l.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return 0, AccountToken{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, AccountToken{}, fmt.Errorf("linkedin userinfo: status %d", resp.StatusCode)
	}

	var info transfer.LinkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, AccountToken{}, err
	}
	if info.Sub == "" {
		return 0, AccountToken{}, errors.New("linkedin userinfo missing sub")
	}

	return 0, AccountToken{
		AccountID:    info.Sub,
		AccountName:  info.Name,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

func (l *linkedInConnector) Refresh(ctx context.Context, refreshToken string) (AccountToken, error) {
	if refreshToken == "" {
		return AccountToken{}, ErrRefreshNotSupported
	}
	tok, err := l.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return AccountToken{}, err
	}

	// LinkedIn only rotates the refresh token close to its own expiry.
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return AccountToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}
