package share

import (
	"context"
	"strings"
)

// Request is the post published after an upload.
type Request struct {
	Message string
	Link    string
}

// Text returns the post body: the message, a blank line, then the link.
func (r Request) Text() string {
	msg := strings.TrimSpace(r.Message)
	link := strings.TrimSpace(r.Link)
	if msg == "" {
		return link
	}
	return msg + "\n\n" + link
}

// LinkOffset returns the byte offset of the link within Text.
func (r Request) LinkOffset() int {
	return len(r.Text()) - len(strings.TrimSpace(r.Link))
}

// Validate rejects requests that have nothing to share.
func (r Request) Validate(provider string) error {
	if strings.TrimSpace(r.Link) == "" {
		return ValidationError{Provider: provider, Reason: "link is required"}
	}
	return nil
}

// Poster publishes a shared link to a social network.
type Poster interface {
	Name() string
	Post(ctx context.Context, req Request) error
}
