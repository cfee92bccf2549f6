package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/imgup/internal/share"
	"github.com/blacktop/imgup/pkg/imgur"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	name string
	err  error
	got  []share.Request
}

func (f *fakePoster) Name() string { return f.name }

func (f *fakePoster) Post(_ context.Context, req share.Request) error {
	f.got = append(f.got, req)
	return f.err
}

func useImgurServer(t *testing.T, status int, body string) <-chan []byte {
	t.Helper()
	uploads := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Client-ID test-id" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"data":{"error":"Invalid client_id"},"success":false}`)
			return
		}
		data, _ := io.ReadAll(r.Body)
		uploads <- data
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	prev := imgurEndpoint
	imgurEndpoint = srv.URL
	t.Cleanup(func() { imgurEndpoint = prev })
	return uploads
}

func usePosters(t *testing.T, posters map[string]*fakePoster) {
	t.Helper()
	prev := posterFactory
	posterFactory = func(_ context.Context, target string) (share.Poster, error) {
		p, ok := posters[target]
		if !ok {
			return nil, share.MissingEnvError{Provider: target}
		}
		return p, nil
	}
	t.Cleanup(func() { posterFactory = prev })
}

func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

const okBody = `{"data":{"id":"abc123","deletehash":"del","link":"https://i.imgur.com/abc123.png"},"success":true,"status":200}`

func TestRoot_UploadsFile(t *testing.T) {
	uploads := useImgurServer(t, http.StatusOK, okBody)
	path := writeImage(t, []byte("png-bytes"))

	out, err := run(t, nil, path, "--client-id", "test-id")
	require.NoError(t, err)
	require.Equal(t, "https://i.imgur.com/abc123.png\n", out)
	require.Equal(t, []byte("png-bytes"), <-uploads)
}

func TestRoot_UploadsStdinWithEnvClientID(t *testing.T) {
	uploads := useImgurServer(t, http.StatusOK, okBody)
	t.Setenv(envClientID, " test-id ")

	out, err := run(t, strings.NewReader("piped"), "-")
	require.NoError(t, err)
	require.Equal(t, "https://i.imgur.com/abc123.png\n", out)
	require.Equal(t, []byte("piped"), <-uploads)
}

func TestRoot_MissingClientID(t *testing.T) {
	t.Setenv(envClientID, "")

	_, err := run(t, strings.NewReader("x"))
	var missing share.MissingEnvError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{envClientID}, missing.Variables)
}

func TestRoot_UploadErrorIsReturned(t *testing.T) {
	useImgurServer(t, http.StatusOK, "not json")

	_, err := run(t, strings.NewReader("x"), "--client-id", "test-id")
	require.True(t, imgur.IsKind(err, imgur.KindInvalidJSON))
	require.Contains(t, err.Error(), `"not json"`)

	_, err = run(t, strings.NewReader("x"), "--client-id", "wrong")
	require.True(t, imgur.IsKind(err, imgur.KindStatus))
	require.Contains(t, err.Error(), "Invalid client_id")
}

func TestRoot_NoLinkIsNotAnError(t *testing.T) {
	useImgurServer(t, http.StatusOK, `{"data":{},"success":true}`)

	out, err := run(t, strings.NewReader("x"), "--client-id", "test-id")
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = run(t, strings.NewReader("x"), "--client-id", "test-id", "--share", "mastodon")
	require.ErrorContains(t, err, "no link to share")
}

func TestRoot_SharesLink(t *testing.T) {
	useImgurServer(t, http.StatusOK, okBody)
	mastodonPoster := &fakePoster{name: "mastodon"}
	blueskyPoster := &fakePoster{name: "bluesky"}
	usePosters(t, map[string]*fakePoster{"mastodon": mastodonPoster, "bluesky": blueskyPoster})

	out, err := run(t, strings.NewReader("x"), "--client-id", "test-id", "-s", "Mastodon,bluesky", "-m", "hello")
	require.NoError(t, err)
	require.Equal(t, "https://i.imgur.com/abc123.png\nshared to bluesky\nshared to mastodon\n", out)

	want := []share.Request{{Message: "hello", Link: "https://i.imgur.com/abc123.png"}}
	require.Equal(t, want, mastodonPoster.got)
	require.Equal(t, want, blueskyPoster.got)
}

func TestRoot_ShareFailuresAreJoined(t *testing.T) {
	useImgurServer(t, http.StatusOK, okBody)
	twitterPoster := &fakePoster{name: "twitter", err: errors.New("rate limited")}
	mastodonPoster := &fakePoster{name: "mastodon"}
	usePosters(t, map[string]*fakePoster{"twitter": twitterPoster, "mastodon": mastodonPoster})

	out, err := run(t, strings.NewReader("x"), "--client-id", "test-id", "--share", "twitter", "--share", "mastodon")
	require.EqualError(t, err, "twitter: rate limited")
	require.Contains(t, out, "shared to mastodon")
	require.Len(t, mastodonPoster.got, 1)
}

func TestRoot_ShareMissingCredentials(t *testing.T) {
	uploads := useImgurServer(t, http.StatusOK, okBody)
	usePosters(t, map[string]*fakePoster{})

	_, err := run(t, strings.NewReader("x"), "--client-id", "test-id", "--share", "all")
	require.ErrorContains(t, err, "bluesky: bluesky credentials not configured")
	require.ErrorContains(t, err, "twitter: twitter credentials not configured")
	require.Empty(t, uploads)
}

func TestRoot_DryRunDoesNotBuildPosters(t *testing.T) {
	useImgurServer(t, http.StatusOK, okBody)
	usePosters(t, map[string]*fakePoster{})

	out, err := run(t, strings.NewReader("x"), "--client-id", "test-id", "--share", "all", "--dry-run", "-m", "hi")
	require.NoError(t, err)
	require.Contains(t, out, `[dry-run] would share to bluesky: "hi\n\nhttps://i.imgur.com/abc123.png"`)
	require.Contains(t, out, "[dry-run] would share to mastodon")
	require.Contains(t, out, "[dry-run] would share to twitter")
}

func TestRoot_InvalidTargetFailsBeforeUpload(t *testing.T) {
	uploads := useImgurServer(t, http.StatusOK, okBody)

	_, err := run(t, strings.NewReader("x"), "--client-id", "test-id", "--share", "myspace")
	require.EqualError(t, err, `unsupported target "myspace"`)
	require.Empty(t, uploads)
}

func TestReadImage_Errors(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader(""))

	_, err := readImage(cmd, []string{filepath.Join(t.TempDir(), "missing.png")})
	require.ErrorContains(t, err, "not found")

	_, err = readImage(cmd, []string{writeImage(t, nil)})
	require.ErrorContains(t, err, "is empty")

	_, err = readImage(cmd, nil)
	require.EqualError(t, err, "stdin is empty")
}

func TestNormalizeTargets(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr string
	}{
		{name: "dedupe and sort", in: []string{"twitter", " Bluesky ", "twitter"}, want: []string{"bluesky", "twitter"}},
		{name: "all", in: []string{"mastodon", "ALL"}, want: []string{"bluesky", "mastodon", "twitter"}},
		{name: "blank", in: []string{" ", ""}, wantErr: "no share targets selected"},
		{name: "unknown", in: []string{"facebook"}, wantErr: `unsupported target "facebook"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeTargets(tt.in)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPosterFactory_ReportsMissingEnv(t *testing.T) {
	for _, name := range []string{
		"IMGUP_MASTODON_SERVER", "IMGUP_MASTODON_ACCESS_TOKEN",
		"IMGUP_TWITTER_CONSUMER_KEY", "IMGUP_TWITTER_CONSUMER_SECRET",
		"IMGUP_TWITTER_ACCESS_TOKEN", "IMGUP_TWITTER_ACCESS_TOKEN_SECRET",
		"IMGUP_BLUESKY_HANDLE", "IMGUP_BLUESKY_APP_PASSWORD",
	} {
		t.Setenv(name, "")
	}

	for _, target := range allTargets() {
		_, err := defaultPosterFactory(context.Background(), target)
		var missing share.MissingEnvError
		require.ErrorAs(t, err, &missing, target)
		require.Equal(t, target, missing.Provider)
	}

	_, err := defaultPosterFactory(context.Background(), "myspace")
	require.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	out, err := run(t, nil, "completion", "bash")
	require.NoError(t, err)
	require.Contains(t, out, "imgup")

	_, err = run(t, nil, "completion", "tcsh")
	require.Error(t, err)
}
