/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/blacktop/imgup/internal/logutil"
	"github.com/blacktop/imgup/internal/share"
	"github.com/blacktop/imgup/internal/share/bluesky"
	"github.com/blacktop/imgup/internal/share/mastodon"
	"github.com/blacktop/imgup/internal/share/twitter"
	"github.com/blacktop/imgup/pkg/imgur"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	clientIDFlag string
	messageFlag  string
	targetsFlag  []string
	dryRun       bool
	verbose      bool
)

var supportedTargets = map[string]struct{}{
	"bluesky":  {},
	"mastodon": {},
	"twitter":  {},
}

const (
	envClientID   = "IMGUP_IMGUR_CLIENT_ID"
	uploadTimeout = 2 * time.Minute
)

// overridden in tests
var (
	imgurEndpoint = imgur.DefaultEndpoint
	posterFactory = defaultPosterFactory
)

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgup [image]",
		Short: "Upload an image to imgur",
		Long: "imgup uploads an image to imgur anonymously and prints its link. " +
			"Pass a file path or pipe the image on stdin, and optionally share the link with --share.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logutil.SetVerbose(verbose)
		},
		RunE: runRoot,
		Example: `  imgup ./shot.png
  cat shot.png | imgup --client-id 0123456789abcde
  imgup ./shot.png --share mastodon --share bluesky -m "new wallpaper"`,
	}

	cmd.Flags().StringVar(&clientIDFlag, "client-id", "", "imgur application client ID (default $"+envClientID+")")
	cmd.Flags().StringSliceVarP(&targetsFlag, "share", "s", nil, "Share the link to targets (twitter, mastodon, bluesky, or all)")
	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Message posted alongside the shared link")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print share actions without posting")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	clientID, err := resolveClientID(clientIDFlag)
	if err != nil {
		return err
	}

	var targets []string
	if len(targetsFlag) > 0 {
		if targets, err = normalizeTargets(targetsFlag); err != nil {
			return err
		}
	}

	data, err := readImage(cmd, args)
	if err != nil {
		return err
	}

	var posters []share.Poster
	if len(targets) > 0 && !dryRun {
		if posters, err = buildPosters(ctx, targets); err != nil {
			return err
		}
	}

	handle := imgur.New(clientID,
		imgur.WithEndpoint(imgurEndpoint),
		imgur.WithHTTPClient(&http.Client{Timeout: uploadTimeout}),
	)
	info, err := handle.Upload(ctx, data)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	out := cmd.OutOrStdout()
	link, ok := info.Link()
	if !ok {
		if len(targets) > 0 {
			return errors.New("upload succeeded but the response has no link to share")
		}
		logutil.Warnf("uploaded, but the response has no link")
		return nil
	}
	fmt.Fprintln(out, link)
	if hash, ok := info.DeleteHash(); ok && hash != "" {
		logutil.Infof("delete hash: %s", hash)
	}

	if len(targets) == 0 {
		return nil
	}

	req := share.Request{Message: messageFlag, Link: link}
	return dispatch(ctx, targets, posters, req, out, dryRun)
}

func resolveClientID(flag string) (string, error) {
	if id := strings.TrimSpace(flag); id != "" {
		return id, nil
	}
	env, err := share.ReadEnv("imgur", []string{envClientID})
	if err != nil {
		return "", err
	}
	return env[envClientID], nil
}

// readImage reads the image named by args, or stdin when no path (or "-") is given.
func readImage(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("image %q not found", args[0])
			}
			return nil, fmt.Errorf("read image: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image %q is empty", args[0])
		}
		return data, nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return nil, errors.New("no image given: pass a path or pipe the image on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("stdin is empty")
	}
	return data, nil
}

func normalizeTargets(values []string) ([]string, error) {
	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return allTargets(), nil
		}
		if _, ok := supportedTargets[raw]; !ok {
			return nil, fmt.Errorf("unsupported target %q", raw)
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}

	if len(result) == 0 {
		return nil, errors.New("no share targets selected")
	}

	sort.Strings(result)
	return result, nil
}

func allTargets() []string {
	out := make([]string, 0, len(supportedTargets))
	for name := range supportedTargets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func defaultPosterFactory(ctx context.Context, target string) (share.Poster, error) {
	switch target {
	case "bluesky":
		return bluesky.New(ctx, bluesky.Config{PDSURL: bluesky.DefaultPDSURL})
	case "mastodon":
		return mastodon.New(ctx)
	case "twitter":
		return twitter.New(ctx)
	default:
		return nil, fmt.Errorf("target %q is not implemented", target)
	}
}

func buildPosters(ctx context.Context, targets []string) ([]share.Poster, error) {
	posters := make([]share.Poster, 0, len(targets))
	var errs []error
	for _, target := range targets {
		poster, err := posterFactory(ctx, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		posters = append(posters, poster)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return posters, nil
}

func dispatch(ctx context.Context, targets []string, posters []share.Poster, req share.Request, out io.Writer, simulate bool) error {
	if simulate {
		for _, target := range targets {
			fmt.Fprintf(out, "[dry-run] would share to %s: %q\n", target, req.Text())
		}
		return nil
	}

	var errs []error
	for _, poster := range posters {
		logutil.Infof("sharing to %s", poster.Name())
		if err := poster.Post(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", poster.Name(), err))
			continue
		}
		fmt.Fprintf(out, "shared to %s\n", poster.Name())
	}

	return errors.Join(errs...)
}
