package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

const stateTTL = 10 * time.Minute

var ErrRefreshNotSupported = errors.New("token refresh not supported")

// connector runs one provider's account authorization flow.
type connector interface {
	AuthURL(ctx context.Context, userID int64, state string) (string, error)
	// Exchange completes the flow from the callback parameters. It returns the
	// user the account belongs to, or 0 when state already identified them.
	Exchange(ctx context.Context, params url.Values) (int64, AccountToken, error)
	Refresh(ctx context.Context, refreshToken string) (AccountToken, error)
}

// requestTokenFlow marks connectors that bind the callback to a user through a
// stored request token instead of the signed state parameter.
type requestTokenFlow interface {
	requestTokenFlow()
}

type PlatformService interface {
	GetAuthURL(ctx context.Context, p models.Provider, userID int64) (string, error)
	Callback(ctx context.Context, p models.Provider, params url.Values) (int64, error)
	RefreshAccount(ctx context.Context, sa *models.SocialAccount) error
}

type platformService struct {
	cfg        config.Config
	accounts   AccountService
	connectors map[models.Provider]connector
}

func NewPlatformService(cfg config.Config, accounts AccountService, tokens RequestTokenStore) PlatformService {
	return newPlatformService(cfg, accounts, map[models.Provider]connector{
		models.ProviderInstagram: newInstagramConnector(cfg.Instagram),
		models.ProviderThreads:   newThreadsConnector(cfg.Threads),
		models.ProviderLinkedIn:  newLinkedInConnector(cfg.LinkedIn, ""),
		models.ProviderTwitter:   newTwitterConnector(cfg.Twitter, tokens, ""),
	})
}

func newPlatformService(cfg config.Config, accounts AccountService, connectors map[models.Provider]connector) PlatformService {
	return &platformService{
		cfg:        cfg,
		accounts:   accounts,
		connectors: connectors,
	}
}

func (s *platformService) connector(p models.Provider) (connector, error) {
	c, ok := s.connectors[p]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported platform", p)
	}
	return c, nil
}

func (s *platformService) GetAuthURL(ctx context.Context, p models.Provider, userID int64) (string, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return "", err
	}
	c, err := s.connector(p)
	if err != nil {
		return "", err
	}

	state, err := utils.GenerateToken(s.cfg.SecretKey, utils.OAuthStateToken, strconv.FormatInt(userID, 10), stateTTL)
	if err != nil {
		return "", err
	}
	return c.AuthURL(ctx, userID, state)
}

// Callback finishes the authorization and stores the new account.
func (s *platformService) Callback(ctx context.Context, p models.Provider, params url.Values) (int64, error) {
	c, err := s.connector(p)
	if err != nil {
		return 0, err
	}

	if e := params.Get("error"); e != "" {
		err = fmt.Errorf("%s authorization denied: %s", p, e)
		slog.Info(err.Error())
		return 0, err
	}

	var userID int64
	if _, ok := c.(requestTokenFlow); !ok {
		if userID, err = s.userFromState(params.Get("state")); err != nil {
			return 0, err
		}
	}

	owner, tok, err := c.Exchange(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("%s token exchange: %w", p, err)
	}
	if owner != 0 {
		userID = owner
	}

	if _, err := s.accounts.Connect(ctx, userID, p, tok); err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *platformService) userFromState(state string) (int64, error) {
	if state == "" {
		return 0, errors.New("missing state")
	}
	claims, err := utils.ValidateToken(s.cfg.SecretKey, utils.OAuthStateToken, state)
	if err != nil {
		return 0, fmt.Errorf("invalid state: %w", err)
	}
	return strconv.ParseInt(claims.UserID, 10, 64)
}

func (s *platformService) RefreshAccount(ctx context.Context, sa *models.SocialAccount) error {
	c, err := s.connector(sa.Platform)
	if err != nil {
		return err
	}

	refreshToken, err := s.accounts.RefreshToken(sa)
	if err != nil {
		return err
	}

	tok, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("refresh %s token: %w", sa.Platform, err)
	}
	tok.AccountID = sa.AccountID
	tok.AccountName = sa.AccountName

	return s.accounts.Refresh(ctx, sa.UserID, sa.Platform, tok)
}
