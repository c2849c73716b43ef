package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"
	twitterauth "github.com/dghubble/oauth1/twitter"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/redis/go-redis/v9"
)

const (
	twitterAPI      = "https://api.twitter.com"
	requestTokenTTL = 15 * time.Minute
)

var ErrRequestTokenNotFound = errors.New("request token not found or expired")

// RequestTokenStore keeps the OAuth 1.0a request secret between the redirect to
// Twitter and the callback.
type RequestTokenStore interface {
	Save(ctx context.Context, token, secret string, userID int64, ttl time.Duration) error
	// Take returns the entry for token and removes it.
	Take(ctx context.Context, token string) (secret string, userID int64, err error)
}

type requestTokenEntry struct {
	Secret string `json:"secret"`
	UserID int64  `json:"user_id"`
}

type redisRequestTokenStore struct {
	rdb *redis.Client
}

func NewRedisRequestTokenStore(rdb *redis.Client) RequestTokenStore {
	return &redisRequestTokenStore{rdb: rdb}
}

func requestTokenKey(token string) string {
	return "oauth1:request:" + token
}

func (s *redisRequestTokenStore) Save(ctx context.Context, token, secret string, userID int64, ttl time.Duration) error {
	data, err := json.Marshal(requestTokenEntry{Secret: secret, UserID: userID})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, requestTokenKey(token), data, ttl).Err()
}

func (s *redisRequestTokenStore) Take(ctx context.Context, token string) (string, int64, error) {
	data, err := s.rdb.GetDel(ctx, requestTokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", 0, ErrRequestTokenNotFound
	}
	if err != nil {
		return "", 0, err
	}

	var entry requestTokenEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", 0, err
	}
	return entry.Secret, entry.UserID, nil
}

type twitterConnector struct {
	oauth  *oauth1.Config
	tokens RequestTokenStore
	apiURL string
}

func newTwitterConnector(cfg config.Twitter, tokens RequestTokenStore, apiURL string) *twitterConnector {
	if apiURL == "" {
		apiURL = twitterAPI
	}
	return &twitterConnector{
		oauth: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint:       twitterauth.AuthorizeEndpoint,
		},
		tokens: tokens,
		apiURL: apiURL,
	}
}

// AuthURL ignores state: the request token itself ties the callback to userID.
func (t *twitterConnector) AuthURL(ctx context.Context, userID int64, _ string) (string, error) {
	requestToken, requestSecret, err := t.oauth.RequestToken()
	if err != nil {
		return "", fmt.Errorf("twitter request token: %w", err)
	}
	if err := t.tokens.Save(ctx, requestToken, requestSecret, userID, requestTokenTTL); err != nil {
		return "", err
	}

	authURL, err := t.oauth.AuthorizationURL(requestToken)
	if err != nil {
		return "", err
	}
	return authURL.String(), nil
}

func (t *twitterConnector) Exchange(ctx context.Context, params url.Values) (int64, AccountToken, error) {
	requestToken := params.Get("oauth_token")
	verifier := params.Get("oauth_verifier")
	if requestToken == "" || verifier == "" {
		return 0, AccountToken{}, errors.New("oauth_token or oauth_verifier is empty")
	}

	requestSecret, userID, err := t.tokens.Take(ctx, requestToken)
	if err != nil {
		return 0, AccountToken{}, err
	}

	accessToken, accessSecret, err := t.oauth.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return 0, AccountToken{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+"/2/users/me", nil)
	if err != nil {
		return 0, AccountToken{}, err
	}
	resp, err := t.oauth.Client(ctx, oauth1.NewToken(accessToken, accessSecret)).Do(req)
	if err != nil {
		return 0, AccountToken{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, AccountToken{}, fmt.Errorf("twitter users/me: status %d", resp.StatusCode)
	}

	var user transfer.TwitterUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return 0, AccountToken{}, err
	}

	// OAuth 1.0a user tokens do not expire.
	return userID, AccountToken{
		AccountID:   user.Data.ID,
		AccountName: user.Data.Username,
		AccessToken: accessToken,
		TokenSecret: accessSecret,
	}, nil
}

func (t *twitterConnector) requestTokenFlow() {}

func (t *twitterConnector) Refresh(context.Context, string) (AccountToken, error) {
	return AccountToken{}, ErrRefreshNotSupported
}
