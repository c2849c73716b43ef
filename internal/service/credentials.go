package service

import (
	"fmt"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

func decryptCredentials(sa *models.SocialAccount, key []byte) (platform.Credentials, error) {
	creds := platform.Credentials{AccountID: sa.AccountID}

	accessToken, err := utils.Decrypt(sa.AccessToken, sa.AccessTokenIV, key)
	if err != nil {
		return platform.Credentials{}, fmt.Errorf("decrypt access token: %w", err)
	}
	creds.AccessToken = accessToken

	if sa.AccessTokenSecret != "" {
		secret, err := utils.Decrypt(sa.AccessTokenSecret, sa.AccessTokenSecretIV, key)
		if err != nil {
			return platform.Credentials{}, fmt.Errorf("decrypt token secret: %w", err)
		}
		creds.TokenSecret = secret
	}

	return creds, nil
}
