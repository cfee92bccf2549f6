package bluesky

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/blacktop/imgup/internal/logutil"
	"github.com/blacktop/imgup/internal/share"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	envHandle      = "IMGUP_BLUESKY_HANDLE"
	envAppPassword = "IMGUP_BLUESKY_APP_PASSWORD"
	envPDSURL      = "IMGUP_BLUESKY_PDS_URL"

	// DefaultPDSURL is used when neither Config nor the environment name a PDS.
	DefaultPDSURL = "https://bsky.social"

	providerName   = "bluesky"
	requestTimeout = 30 * time.Second
	postCollection = "app.bsky.feed.post"
	embedTitle     = "Image on imgur"
)

// Config allows the caller to supply defaults prior to reading environment variables.
type Config struct {
	PDSURL string
}

// ProviderConfig is Config merged with the environment.
type ProviderConfig struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

type createRecordFunc func(ctx context.Context, in *atproto.RepoCreateRecord_Input) (*atproto.RepoCreateRecord_Output, error)

// Client shares links as Bluesky posts with a link facet and an external embed.
type Client struct {
	did          string
	createRecord createRecordFunc
	now          func() time.Time
}

// New logs in with an app password and returns a ready client.
func New(ctx context.Context, base Config) (share.Poster, error) {
	cfg, err := loadConfig(base)
	if err != nil {
		return nil, err
	}

	userAgent := "imgup/1"
	xrpcClient := &xrpc.Client{
		Client:    &http.Client{Timeout: requestTimeout},
		Host:      cfg.PDSURL,
		UserAgent: &userAgent,
	}

	logutil.Debugf("bluesky: creating session host=%s handle=%s", cfg.PDSURL, cfg.Handle)
	session, err := atproto.ServerCreateSession(ctx, xrpcClient, &atproto.ServerCreateSession_Input{
		Identifier: cfg.Handle,
		Password:   cfg.AppPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	xrpcClient.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{
		did: session.Did,
		createRecord: func(ctx context.Context, in *atproto.RepoCreateRecord_Input) (*atproto.RepoCreateRecord_Output, error) {
			return atproto.RepoCreateRecord(ctx, xrpcClient, in)
		},
		now: time.Now,
	}, nil
}

func (c *Client) Name() string { return providerName }

// Post creates an app.bsky.feed.post record in the logged-in repo.
func (c *Client) Post(ctx context.Context, req share.Request) error {
	if err := req.Validate(providerName); err != nil {
		return err
	}

	out, err := c.createRecord(ctx, &atproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       c.did,
		Record:     &util.LexiconTypeDecoder{Val: buildPost(req, c.now())},
	})
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if out != nil {
		logutil.Debugf("bluesky: record created uri=%s", out.Uri)
	}

	return nil
}

// buildPost lays out the text and marks the link bytes so clients render it clickable.
func buildPost(req share.Request, now time.Time) *bsky.FeedPost {
	text := req.Text()
	start := req.LinkOffset()
	link := text[start:]

	return &bsky.FeedPost{
		CreatedAt: now.UTC().Format(time.RFC3339),
		Text:      text,
		Facets: []*bsky.RichtextFacet{
			{
				Index: &bsky.RichtextFacet_ByteSlice{
					ByteStart: int64(start),
					ByteEnd:   int64(len(text)),
				},
				Features: []*bsky.RichtextFacet_Features_Elem{
					{
						RichtextFacet_Link: &bsky.RichtextFacet_Link{
							LexiconTypeID: "app.bsky.richtext.facet#link",
							Uri:           link,
						},
					},
				},
			},
		},
		Embed: &bsky.FeedPost_Embed{
			EmbedExternal: &bsky.EmbedExternal{
				LexiconTypeID: "app.bsky.embed.external",
				External: &bsky.EmbedExternal_External{
					Uri:   link,
					Title: embedTitle,
				},
			},
		},
	}
}

func loadConfig(base Config) (ProviderConfig, error) {
	env, err := share.ReadEnv(providerName, []string{envHandle, envAppPassword}, envPDSURL)
	if err != nil {
		return ProviderConfig{}, err
	}

	cfg := ProviderConfig{
		Handle:      env[envHandle],
		AppPassword: env[envAppPassword],
		PDSURL:      env[envPDSURL],
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = base.PDSURL
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = DefaultPDSURL
	}

	return cfg, nil
}
