package mastodon

import (
	"context"
	"fmt"
	"time"

	"github.com/blacktop/imgup/internal/logutil"
	"github.com/blacktop/imgup/internal/share"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	envServer       = "IMGUP_MASTODON_SERVER"
	envAccessToken  = "IMGUP_MASTODON_ACCESS_TOKEN"
	envClientID     = "IMGUP_MASTODON_CLIENT_ID"
	envClientSecret = "IMGUP_MASTODON_CLIENT_SECRET"
	envVisibility   = "IMGUP_MASTODON_VISIBILITY"

	providerName   = "mastodon"
	requestTimeout = 30 * time.Second
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
	// Visibility is one of public, unlisted, private or direct. Empty uses the account default.
	Visibility string
}

type statusPoster interface {
	PostStatus(ctx context.Context, toot *mastodonapi.Toot) (*mastodonapi.Status, error)
}

// Client shares links as Mastodon statuses.
type Client struct {
	api        statusPoster
	visibility string
}

// New builds a client from the IMGUP_MASTODON_* environment.
func New(ctx context.Context) (share.Poster, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	api := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       cfg.Server,
		AccessToken:  cfg.AccessToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	api.Timeout = requestTimeout

	return &Client{api: api, visibility: cfg.Visibility}, nil
}

func (c *Client) Name() string { return providerName }

// Post publishes the message and link as a single status.
func (c *Client) Post(ctx context.Context, req share.Request) error {
	if err := req.Validate(providerName); err != nil {
		return err
	}

	logutil.Debugf("mastodon: posting status visibility=%q", c.visibility)
	status, err := c.api.PostStatus(ctx, &mastodonapi.Toot{
		Status:     req.Text(),
		Visibility: c.visibility,
	})
	if err != nil {
		return fmt.Errorf("post status: %w", err)
	}
	if status != nil {
		logutil.Debugf("mastodon: status posted url=%s", status.URL)
	}

	return nil
}

func loadConfigFromEnv() (Config, error) {
	env, err := share.ReadEnv(providerName,
		[]string{envServer, envAccessToken},
		envClientID, envClientSecret, envVisibility)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server:       env[envServer],
		AccessToken:  env[envAccessToken],
		ClientID:     env[envClientID],
		ClientSecret: env[envClientSecret],
		Visibility:   env[envVisibility],
	}
	switch cfg.Visibility {
	case "", "public", "unlisted", "private", "direct":
	default:
		return Config{}, share.ValidationError{Provider: providerName, Reason: fmt.Sprintf("unknown visibility %q", cfg.Visibility)}
	}

	return cfg, nil
}
