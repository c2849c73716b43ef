package linkedin

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const (
	DefaultAPIURL     = "https://api.linkedin.com"
	DefaultAPIVersion = "202401"

	uploadMechanism = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
	recipeImage     = "urn:li:digitalmediaRecipe:feedshare-image"
	recipeVideo     = "urn:li:digitalmediaRecipe:feedshare-video"
	maxImages       = 20
)

type Config struct {
	APIURL     string
	APIVersion string
	HTTPClient *http.Client
}

type Client struct {
	cfg    Config
	caller *platform.Caller
}

func New(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	return &Client{
		cfg:    cfg,
		caller: &platform.Caller{Provider: models.ProviderLinkedIn, HTTP: cfg.HTTPClient},
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderLinkedIn
}

func personURN(accountID string) string {
	return "urn:li:person:" + accountID
}

func (c *Client) Publish(ctx context.Context, creds platform.Credentials, content platform.Content) (*platform.Result, error) {
	if creds.AccountID == "" {
		return nil, fmt.Errorf("linkedin: account id missing from credentials")
	}
	if len(content.Media) == 0 {
		if content.Text == "" {
			return nil, fmt.Errorf("linkedin: nothing to publish")
		}
		return c.shareText(ctx, creds, content.Text)
	}

	if err := checkMedia(content.Media); err != nil {
		return nil, err
	}

	assets := make([]string, 0, len(content.Media))
	for _, m := range content.Media {
		asset, err := c.UploadMedia(ctx, creds, m)
		if err != nil {
			return nil, fmt.Errorf("linkedin media upload %s: %w", m.Key, err)
		}
		assets = append(assets, asset)
	}

	return c.createPost(ctx, creds, content.Text, assets)
}

func checkMedia(media []platform.Media) error {
	var videos int
	for _, m := range media {
		switch {
		case m.IsVideo():
			videos++
		case m.IsImage():
		default:
			return fmt.Errorf("%w: %q", platform.ErrUnsupportedMedia, m.ContentType)
		}
	}
	if videos > 0 && len(media) > 1 {
		return fmt.Errorf("%w: a video must be the only attachment", platform.ErrTooManyMedia)
	}
	if len(media) > maxImages {
		return fmt.Errorf("%w: at most %d images", platform.ErrTooManyMedia, maxImages)
	}
	return nil
}

// UploadMedia registers an upload for the member and PUTs the bytes to the
// returned URL. It returns the digital media asset URN.
func (c *Client) UploadMedia(ctx context.Context, creds platform.Credentials, m platform.Media) (string, error) {
	recipe := recipeImage
	if m.IsVideo() {
		recipe = recipeVideo
	}

	var payload transfer.LinkedInRegisterUploadRequest
	payload.RegisterUploadRequest.Recipes = []string{recipe}
	payload.RegisterUploadRequest.Owner = personURN(creds.AccountID)
	payload.RegisterUploadRequest.ServiceRelationships = []transfer.LinkedInServiceRelationship{
		{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
	}

	req, err := platform.JSON(ctx, http.MethodPost, c.cfg.APIURL+"/v2/assets?action=registerUpload", payload)
	if err != nil {
		return "", err
	}
	c.authorize(req, creds)

	var registered transfer.LinkedInRegisterUploadResponse
	if _, err := c.caller.Do(req, &registered); err != nil {
		return "", fmt.Errorf("register upload: %w", err)
	}

	mechanism, ok := registered.Value.UploadMechanism[uploadMechanism]
	if !ok || mechanism.UploadURL == "" || registered.Value.Asset == "" {
		return "", fmt.Errorf("register upload: response missing upload url or asset")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, mechanism.UploadURL, bytes.NewReader(m.Data))
	if err != nil {
		return "", err
	}
	put.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	put.Header.Set("Content-Type", m.ContentType)
	for k, v := range mechanism.Headers {
		put.Header.Set(k, v)
	}
	if _, err := c.caller.Do(put, nil); err != nil {
		return "", fmt.Errorf("upload bytes: %w", err)
	}

	return registered.Value.Asset, nil
}

func (c *Client) createPost(ctx context.Context, creds platform.Credentials, text string, assets []string) (*platform.Result, error) {
	post := transfer.LinkedInPost{
		Author:     personURN(creds.AccountID),
		Commentary: text,
		Visibility: "PUBLIC",
		Distribution: transfer.LinkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		LifecycleState: "PUBLISHED",
	}

	post.Content = &transfer.LinkedInPostContent{}
	if len(assets) == 1 {
		post.Content.Media = &transfer.LinkedInMediaRef{ID: assets[0]}
	} else {
		images := make([]transfer.LinkedInMediaRef, len(assets))
		for i, a := range assets {
			images[i] = transfer.LinkedInMediaRef{ID: a}
		}
		post.Content.MultiImage = &transfer.LinkedInMultiImage{Images: images}
	}

	req, err := platform.JSON(ctx, http.MethodPost, c.cfg.APIURL+"/rest/posts", post)
	if err != nil {
		return nil, err
	}
	c.authorize(req, creds)
	req.Header.Set("LinkedIn-Version", c.cfg.APIVersion)

	resp, err := c.caller.Do(req, nil)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return result(resp.Header.Get("x-restli-id"), "")
}

func (c *Client) shareText(ctx context.Context, creds platform.Credentials, text string) (*platform.Result, error) {
	post := transfer.LinkedInUGCPost{
		Author:         personURN(creds.AccountID),
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]transfer.LinkedInShareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    transfer.LinkedInShareCommentary{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	req, err := platform.JSON(ctx, http.MethodPost, c.cfg.APIURL+"/v2/ugcPosts", post)
	if err != nil {
		return nil, err
	}
	c.authorize(req, creds)

	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.caller.Do(req, &out)
	if err != nil {
		return nil, fmt.Errorf("share text: %w", err)
	}
	return result(resp.Header.Get("x-restli-id"), out.ID)
}

func (c *Client) authorize(req *http.Request, creds platform.Credentials) {
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
}

func result(headerID, bodyID string) (*platform.Result, error) {
	id := headerID
	if id == "" {
		id = bodyID
	}
	if id == "" {
		return nil, fmt.Errorf("linkedin: no post id returned")
	}
	return &platform.Result{
		PostID: id,
		URL:    "https://www.linkedin.com/feed/update/" + id,
	}, nil
}
