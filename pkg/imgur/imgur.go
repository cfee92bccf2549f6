// Package imgur uploads raw image bytes to the imgur API and exposes the
// shareable link from the response.
package imgur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/blacktop/imgup/internal/logutil"
)

const (
	// APIBase is the root of the imgur v3 API.
	APIBase = "https://api.imgur.com/3/"
	// DefaultEndpoint receives image uploads.
	DefaultEndpoint = APIBase + "image"
)

// HTTPDoer sends a single HTTP request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Handle.
type Option func(*Handle)

// WithHTTPClient replaces the transport used for uploads.
func WithHTTPClient(client HTTPDoer) Option {
	return func(h *Handle) {
		if client != nil {
			h.client = client
		}
	}
}

// WithEndpoint overrides the upload URL.
func WithEndpoint(endpoint string) Option {
	return func(h *Handle) {
		if endpoint != "" {
			h.endpoint = endpoint
		}
	}
}

// Handle is a handle to the imgur API. It is safe for concurrent use.
type Handle struct {
	clientID string
	endpoint string
	client   HTTPDoer
}

// New creates a handle for the given client ID. The ID is not validated.
func New(clientID string, opts ...Option) *Handle {
	h := &Handle{
		clientID: clientID,
		endpoint: DefaultEndpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ClientID returns the identifier sent with every upload.
func (h *Handle) ClientID() string { return h.clientID }

// Upload posts data to imgur and parses the JSON response.
//
// The API-level success flag is not inspected: any 2xx response with a JSON
// body yields an UploadInfo. Every failure is returned as an *UploadError.
func (h *Handle) Upload(ctx context.Context, data []byte) (*UploadInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, &UploadError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Authorization", "Client-ID "+h.clientID)

	logutil.Debugf("upload: endpoint=%s bytes=%d", h.endpoint, len(data))
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &UploadError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UploadError{Kind: KindIO, StatusCode: resp.StatusCode, Err: err}
	}
	logutil.Debugf("upload: status=%d bytes=%d", resp.StatusCode, len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UploadError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if !utf8.Valid(body) {
		return nil, &UploadError{
			Kind:       KindInvalidUTF8,
			StatusCode: resp.StatusCode,
			Err:        &InvalidUTF8Error{ValidUpTo: validUpTo(body)},
		}
	}

	text := string(body)
	doc, err := decode(text)
	if err != nil {
		return nil, &UploadError{
			Kind:       KindInvalidJSON,
			StatusCode: resp.StatusCode,
			Body:       text,
			Err:        err,
		}
	}

	return &UploadInfo{doc: doc}, nil
}

// decode parses exactly one JSON value and rejects trailing data.
func decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid character after top-level value at offset %d", dec.InputOffset())
	}
	return doc, nil
}

func validUpTo(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
