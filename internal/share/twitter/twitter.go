package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blacktop/imgup/internal/logutil"
	"github.com/blacktop/imgup/internal/share"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
)

const (
	envAPIKey       = "IMGUP_TWITTER_CONSUMER_KEY"
	envAPISecret    = "IMGUP_TWITTER_CONSUMER_SECRET"
	envAccessToken  = "IMGUP_TWITTER_ACCESS_TOKEN"
	envAccessSecret = "IMGUP_TWITTER_ACCESS_TOKEN_SECRET"
	envDebug        = "IMGUP_TWITTER_DEBUG"

	providerName = "twitter"

	// maxTweetLength is the weighted limit; every URL counts as urlLength.
	maxTweetLength = 280
	urlLength      = 23
)

var httpTimeout = 30 * time.Second

// Config captures the credentials required for OAuth 1.0a user-context requests.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

type createFunc func(ctx context.Context, in *managetweettypes.CreateInput) (*managetweettypes.CreateOutput, error)

// Client shares links as tweets.
type Client struct {
	create createFunc
}

// New constructs a gotwi-backed client from the IMGUP_TWITTER_* environment.
func New(ctx context.Context) (share.Poster, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	debugEnabled := os.Getenv(envDebug) == "1" || logutil.Verbose()
	api, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           &http.Client{Timeout: httpTimeout},
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
		APIKey:               cfg.APIKey,
		APIKeySecret:         cfg.APISecret,
		Debug:                debugEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create X client: %w", err)
	}
	if !api.IsReady() {
		return nil, fmt.Errorf("twitter client not ready")
	}

	return &Client{
		create: func(ctx context.Context, in *managetweettypes.CreateInput) (*managetweettypes.CreateOutput, error) {
			return managetweet.Create(ctx, api, in)
		},
	}, nil
}

func (c *Client) Name() string { return providerName }

// Post tweets the message followed by the link.
func (c *Client) Post(ctx context.Context, req share.Request) error {
	if err := req.Validate(providerName); err != nil {
		return err
	}
	if n := weightedLength(req); n > maxTweetLength {
		return share.ValidationError{
			Provider: providerName,
			Reason:   fmt.Sprintf("tweet is %d characters, limit is %d", n, maxTweetLength),
		}
	}

	logutil.Debugf("twitter: posting tweet")
	if _, err := c.create(ctx, &managetweettypes.CreateInput{Text: gotwi.String(req.Text())}); err != nil {
		return fmt.Errorf("post tweet: %w", unwrapGotwiError(err))
	}
	logutil.Debugf("twitter: tweet posted")

	return nil
}

// weightedLength counts the tweet the way X does for plain text plus one URL.
func weightedLength(req share.Request) int {
	text := req.Text()
	msg := text[:req.LinkOffset()]
	return utf8.RuneCountInString(msg) + urlLength
}

func loadConfigFromEnv() (Config, error) {
	env, err := share.ReadEnv(providerName, []string{envAPIKey, envAPISecret, envAccessToken, envAccessSecret})
	if err != nil {
		return Config{}, err
	}
	return Config{
		APIKey:       env[envAPIKey],
		APISecret:    env[envAPISecret],
		AccessToken:  env[envAccessToken],
		AccessSecret: env[envAccessSecret],
	}, nil
}

func unwrapGotwiError(err error) error {
	var gwErr *gotwi.GotwiError
	if errors.As(err, &gwErr) && gwErr != nil {
		return errors.New(summarizeGotwiError(gwErr))
	}
	return err
}

func summarizeGotwiError(err *gotwi.GotwiError) string {
	parts := make([]string, 0, 4)
	if err.Title != "" {
		parts = append(parts, err.Title)
	}
	if err.Detail != "" {
		parts = append(parts, err.Detail)
	}
	for _, apiErr := range err.APIErrors {
		if apiErr.Message != "" {
			parts = append(parts, apiErr.Message)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "X API request failed")
	}
	return strings.Join(parts, "; ")
}
